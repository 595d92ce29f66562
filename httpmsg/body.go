// Package httpmsg adapts net/http requests and responses to the functions
// authoring API. Request bodies expose two mutually exclusive views, a raw
// stream and a charset-decoding reader; responses are buffered until committed.
package httpmsg

import (
	"bufio"
	"io"
	"mime"
	"strings"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/c360/fnruntime/errors"
)

// body hands out exactly one of the two views of a message body, each cached.
// Once multipart parsing consumed the body, neither view is available.
type body struct {
	mu      sync.Mutex
	src     io.Reader
	charset string
	stream  io.Reader
	reader  *bufio.Reader
	parts   bool
}

func (b *body) inputStream() (io.Reader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.parts:
		return nil, errors.NewUsageError("InputStream", "body already consumed by Parts")
	case b.reader != nil:
		return nil, errors.NewUsageError("InputStream", "Reader already called for this body")
	}
	if b.stream == nil {
		b.stream = b.src
	}
	return b.stream, nil
}

func (b *body) textReader() (*bufio.Reader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.parts:
		return nil, errors.NewUsageError("Reader", "body already consumed by Parts")
	case b.stream != nil:
		return nil, errors.NewUsageError("Reader", "InputStream already called for this body")
	}
	if b.reader == nil {
		enc, err := lookupCharset(b.charset)
		if err != nil {
			return nil, err
		}
		var r io.Reader = b.src
		if enc != nil {
			r = transform.NewReader(b.src, enc.NewDecoder())
		}
		b.reader = bufio.NewReader(r)
	}
	return b.reader, nil
}

// claimParts hands the raw body to the multipart parser. It fails when
// either view was already handed out.
func (b *body) claimParts() (io.Reader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stream != nil || b.reader != nil {
		return nil, errors.NewUsageError("Parts", "body already read through InputStream or Reader")
	}
	b.parts = true
	return b.src, nil
}

// lookupCharset returns nil for UTF-8, which needs no transcoding.
func lookupCharset(charset string) (encoding.Encoding, error) {
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") {
		return nil, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, errors.WrapInvalid(err, "httpmsg", "lookupCharset", "resolve charset "+charset)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return nil, nil
	}
	return enc, nil
}

// charsetOf returns the charset parameter of a Content-Type value.
func charsetOf(contentType string) (string, bool) {
	if contentType == "" {
		return "", false
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	charset, ok := params["charset"]
	return charset, ok
}
