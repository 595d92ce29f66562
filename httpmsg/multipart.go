package httpmsg

import (
	"bufio"
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/functions"
)

// Part implements functions.HTTPPart for one fully read multipart section.
type Part struct {
	name     string
	fileName string
	header   http.Header
	size     int64
	body     *body
}

var _ functions.HTTPPart = (*Part)(nil)

func (q *Request) readParts(contentType string) (map[string]functions.HTTPPart, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Request", "Parts", "parse content type")
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Request", "Parts", "find multipart boundary")
	}

	src, err := q.body.claimParts()
	if err != nil {
		return nil, err
	}

	mr := multipart.NewReader(src, boundary)
	parts := make(map[string]functions.HTTPPart)
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapInvalid(err, "Request", "Parts", "read multipart section")
		}

		data, err := io.ReadAll(p)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Request", "Parts", "read part "+p.FormName())
		}

		header := http.Header(p.Header)
		charset, _ := charsetOf(header.Get("Content-Type"))
		part := &Part{
			name:     p.FormName(),
			fileName: p.FileName(),
			header:   header,
			size:     int64(len(data)),
			body:     &body{src: bytes.NewReader(data), charset: charset},
		}
		if _, dup := parts[part.name]; !dup {
			parts[part.name] = part
		}
	}
	return parts, nil
}

func (p *Part) Name() string {
	return p.name
}

func (p *Part) FileName() (string, bool) {
	return p.fileName, p.fileName != ""
}

func (p *Part) ContentType() (string, bool) {
	return p.FirstHeader("Content-Type")
}

func (p *Part) ContentLength() int64 {
	return p.size
}

func (p *Part) CharacterEncoding() (string, bool) {
	return charsetOf(p.header.Get("Content-Type"))
}

func (p *Part) InputStream() (io.Reader, error) {
	return p.body.inputStream()
}

func (p *Part) Reader() (*bufio.Reader, error) {
	return p.body.textReader()
}

func (p *Part) Headers() map[string][]string {
	return map[string][]string(p.header.Clone())
}

func (p *Part) FirstHeader(name string) (string, bool) {
	values := p.header.Values(name)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}
