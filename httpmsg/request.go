package httpmsg

import (
	"bufio"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/functions"
)

// Request implements functions.HTTPRequest over an *http.Request.
type Request struct {
	r    *http.Request
	body *body

	partsOnce sync.Once
	parts     map[string]functions.HTTPPart
	partsErr  error

	queryOnce sync.Once
	query     map[string][]string
}

var _ functions.HTTPRequest = (*Request)(nil)

// NewRequest wraps r. The request body is read from r.Body.
func NewRequest(r *http.Request) *Request {
	charset, _ := charsetOf(r.Header.Get("Content-Type"))
	src := r.Body
	if src == nil {
		src = http.NoBody
	}
	return &Request{
		r:    r,
		body: &body{src: src, charset: charset},
	}
}

// Method returns the HTTP method.
func (q *Request) Method() string {
	return q.r.Method
}

// URI returns the full request URI.
func (q *Request) URI() string {
	scheme := "http"
	if q.r.TLS != nil {
		scheme = "https"
	}
	if q.r.Host == "" {
		return q.r.URL.RequestURI()
	}
	return scheme + "://" + q.r.Host + q.r.URL.RequestURI()
}

func (q *Request) Path() string {
	return q.r.URL.Path
}

func (q *Request) Query() (string, bool) {
	if q.r.URL.RawQuery == "" && !q.r.URL.ForceQuery {
		return "", false
	}
	return q.r.URL.RawQuery, true
}

// QueryParameters splits the raw query on & and =, percent-decoding names and
// values. Malformed pairs are skipped.
func (q *Request) QueryParameters() map[string][]string {
	q.queryOnce.Do(func() {
		q.query = parseQuery(q.r.URL.RawQuery)
	})
	out := make(map[string][]string, len(q.query))
	for k, v := range q.query {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (q *Request) FirstQueryParameter(name string) (string, bool) {
	values := q.QueryParameters()[name]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func parseQuery(raw string) map[string][]string {
	params := make(map[string][]string)
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(name)
		if err != nil {
			continue
		}
		value, err = url.QueryUnescape(value)
		if err != nil {
			continue
		}
		params[name] = append(params[name], value)
	}
	return params
}

func (q *Request) Headers() map[string][]string {
	return map[string][]string(q.r.Header.Clone())
}

func (q *Request) FirstHeader(name string) (string, bool) {
	values := q.r.Header.Values(name)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (q *Request) ContentType() (string, bool) {
	return q.FirstHeader("Content-Type")
}

func (q *Request) ContentLength() int64 {
	return q.r.ContentLength
}

func (q *Request) CharacterEncoding() (string, bool) {
	return charsetOf(q.r.Header.Get("Content-Type"))
}

func (q *Request) InputStream() (io.Reader, error) {
	return q.body.inputStream()
}

func (q *Request) Reader() (*bufio.Reader, error) {
	return q.body.textReader()
}

// Parts parses a multipart body on first use. InputStream and Reader fail
// afterwards, and Parts fails if either was called first.
func (q *Request) Parts() (map[string]functions.HTTPPart, error) {
	contentType, _ := q.ContentType()
	if !strings.HasPrefix(strings.ToLower(contentType), "multipart/") {
		return nil, errors.NewUsageError("Parts", "content type is not multipart/*: "+contentType)
	}
	q.partsOnce.Do(func() {
		q.parts, q.partsErr = q.readParts(contentType)
	})
	if q.partsErr != nil {
		return nil, q.partsErr
	}
	out := make(map[string]functions.HTTPPart, len(q.parts))
	for k, v := range q.parts {
		out[k] = v
	}
	return out, nil
}
