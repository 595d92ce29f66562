package httpmsg

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/text/transform"

	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/functions"
)

// Response implements functions.HTTPResponse. Nothing reaches the client until
// Commit, so a response abandoned on timeout leaves no trace on the wire.
type Response struct {
	mu     sync.Mutex
	status int
	reason string
	header http.Header
	buf    bytes.Buffer

	stream io.Writer
	writer *bufio.Writer
	encode io.WriteCloser
}

var _ functions.HTTPResponse = (*Response)(nil)

// NewResponse returns an empty response with status 200.
func NewResponse() *Response {
	return &Response{
		status: http.StatusOK,
		header: make(http.Header),
	}
}

func (s *Response) SetStatusCode(code int) {
	s.SetStatus(code, "")
}

func (s *Response) SetStatus(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
	s.reason = reason
}

func (s *Response) StatusCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Reason returns the reason phrase given to SetStatus. net/http always sends
// the standard text for the code.
func (s *Response) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *Response) SetContentType(contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header.Set("Content-Type", contentType)
}

func (s *Response) ContentType() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.header.Get("Content-Type")
	return v, v != ""
}

func (s *Response) AppendHeader(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header.Add(name, value)
}

func (s *Response) Headers() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string][]string(s.header.Clone())
}

func (s *Response) OutputStream() (io.Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		return nil, errors.NewUsageError("OutputStream", "Writer already called for this response")
	}
	if s.stream == nil {
		s.stream = &lockedWriter{mu: &s.mu, w: &s.buf}
	}
	return s.stream, nil
}

// Writer encodes into the charset of the content type set at the time of the call.
func (s *Response) Writer() (*bufio.Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return nil, errors.NewUsageError("Writer", "OutputStream already called for this response")
	}
	if s.writer == nil {
		charset, _ := charsetOf(s.header.Get("Content-Type"))
		enc, err := lookupCharset(charset)
		if err != nil {
			return nil, err
		}
		var w io.Writer = &lockedWriter{mu: &s.mu, w: &s.buf}
		if enc != nil {
			s.encode = transform.NewWriter(w, enc.NewEncoder())
			w = s.encode
		}
		s.writer = bufio.NewWriter(w)
	}
	return s.writer, nil
}

// Body returns the bytes written so far, flushing any pending text.
func (s *Response) Body() ([]byte, error) {
	if err := s.flush(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.buf.Bytes()), nil
}

func (s *Response) flush() error {
	s.mu.Lock()
	writer, encode := s.writer, s.encode
	s.mu.Unlock()

	if writer != nil {
		if err := writer.Flush(); err != nil {
			return errors.Wrap(err, "Response", "flush", "flush writer")
		}
	}
	if encode != nil {
		if err := encode.Close(); err != nil {
			return errors.Wrap(err, "Response", "flush", "finish charset encoding")
		}
		s.mu.Lock()
		s.encode = nil
		s.mu.Unlock()
	}
	return nil
}

// Commit writes status, headers and body to w. It is called at most once.
func (s *Response) Commit(w http.ResponseWriter) error {
	data, err := s.Body()
	if err != nil {
		return err
	}

	s.mu.Lock()
	status := s.status
	for name, values := range s.header {
		w.Header()[name] = append([]string(nil), values...)
	}
	s.mu.Unlock()

	if w.Header().Get("Content-Length") == "" {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		return errors.WrapTransient(err, "Response", "Commit", "write body")
	}
	return nil
}

// lockedWriter serializes writes into the shared buffer.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
