package trigger

import (
	"bytes"
	"net/http"
)

// response collects what the handler writes
type response struct {
	header      http.Header
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

var _ http.ResponseWriter = (*response)(nil)

func newResponse() *response {
	return &response{header: make(http.Header), status: http.StatusOK}
}

func (r *response) Header() http.Header {
	return r.header
}

func (r *response) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
}

func (r *response) Write(p []byte) (int, error) {
	r.WriteHeader(http.StatusOK)
	return r.body.Write(p)
}
