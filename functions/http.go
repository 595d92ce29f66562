package functions

import (
	"bufio"
	"io"
)

// HTTPMessage is the part of the request API shared by requests and multipart parts.
type HTTPMessage interface {
	// ContentType returns the Content-Type header, if present.
	ContentType() (string, bool)
	// ContentLength returns the body length in bytes, or -1 if unknown.
	ContentLength() int64
	// CharacterEncoding returns the charset parameter of the content type, if present.
	CharacterEncoding() (string, bool)
	// InputStream returns the raw body. It may not be combined with Reader.
	InputStream() (io.Reader, error)
	// Reader returns the body decoded from CharacterEncoding (UTF-8 by default)
	// to UTF-8. It may not be combined with InputStream.
	Reader() (*bufio.Reader, error)
	// Headers returns all headers. Keys are canonicalized; values keep arrival order.
	Headers() map[string][]string
	// FirstHeader returns the first value of the named header, matched case-insensitively.
	FirstHeader(name string) (string, bool)
}

// HTTPRequest is the request seen by an HTTPFunction.
type HTTPRequest interface {
	HTTPMessage

	Method() string
	// URI returns the full request URI including scheme, host and query.
	URI() string
	// Path returns the URI path with the query removed.
	Path() string
	// Query returns the raw query string, if the URI had one.
	Query() (string, bool)
	// QueryParameters returns the decoded query parameters. Values keep their order.
	QueryParameters() map[string][]string
	FirstQueryParameter(name string) (string, bool)
	// Parts returns the parts of a multipart body keyed by part name.
	// Calling it on a request whose content type is not multipart/* is an error.
	Parts() (map[string]HTTPPart, error)
}

// HTTPPart is one part of a multipart request body.
type HTTPPart interface {
	HTTPMessage

	Name() string
	FileName() (string, bool)
}

// HTTPResponse is the buffered response of an HTTPFunction.
type HTTPResponse interface {
	SetStatusCode(code int)
	// SetStatus sets the status code and a reason phrase. The transport may
	// replace the reason with its standard text.
	SetStatus(code int, reason string)
	StatusCode() int
	SetContentType(contentType string)
	ContentType() (string, bool)
	AppendHeader(name, value string)
	Headers() map[string][]string
	// OutputStream returns the raw body sink. It may not be combined with Writer.
	OutputStream() (io.Writer, error)
	// Writer returns a writer that encodes UTF-8 text into the response charset.
	// It may not be combined with OutputStream. Buffered text is flushed by the runtime.
	Writer() (*bufio.Writer, error)
}
