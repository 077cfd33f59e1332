// Package httputils holds the response recorder shared by the request
// observability middleware and the upstream proxy. Both report the status
// their wrapped handler produced, so the writer remembers it.
package httputils

import (
	"bufio"
	"net"
	"net/http"
)

// ResponseWriter records the status code and body size written through it
type ResponseWriter struct {
	http.ResponseWriter

	// StatusCode is the first status sent, 200 until one is
	StatusCode int
	// BytesWritten counts body bytes accepted by the underlying writer
	BytesWritten int
	// HeaderWritten is set once the status line has gone out
	HeaderWritten bool
}

// NewResponseWriter wraps w
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

// WriteHeader records code and forwards only the first call
func (rw *ResponseWriter) WriteHeader(code int) {
	if rw.HeaderWritten {
		return
	}
	rw.StatusCode, rw.HeaderWritten = code, true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.HeaderWritten {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.BytesWritten += n
	return n, err
}

// Hijack hands the connection over for protocol upgrades proxied upstream
func (rw *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

// Flush pushes buffered data so streamed upstream responses are not held back
func (rw *ResponseWriter) Flush() {
	_ = http.NewResponseController(rw.ResponseWriter).Flush()
}

// Unwrap exposes the underlying writer to http.ResponseController
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
