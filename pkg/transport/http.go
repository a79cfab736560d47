package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// HAP endpoints handled by the transport itself.
const (
	PathPairSetup  = "/pair-setup"
	PathPairVerify = "/pair-verify"
	PathPairings   = "/pairings"
)

// StatusConnectionAuthorizationRequired is returned for requests that need
// a verified connection.
const StatusConnectionAuthorizationRequired = 470

// StatusInsufficientPrivileges is the HAP status code in the 470 body.
const StatusInsufficientPrivileges = -70401

// MaxBodySize bounds request bodies.
const MaxBodySize = 1 << 20

// Content types used on the wire.
const (
	ContentTypeHAPJSON = "application/hap+json"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type ctxKey struct{}

// WithControllerID returns a context carrying the verified controller.
func WithControllerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ControllerIDFromContext returns the verified controller of a request
// passed to the application handler.
func ControllerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok
}

// responseWriter buffers an application handler response so that it can be
// written to the connection as one message.
type responseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseWriter() *responseWriter {
	return &responseWriter{header: make(http.Header)}
}

func (w *responseWriter) Header() http.Header {
	return w.header
}

func (w *responseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *responseWriter) result() *response {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	return &response{status: status, header: w.header, body: w.body.Bytes()}
}

// response is one HTTP response about to be written.
type response struct {
	status int
	header http.Header
	body   []byte
}

func newResponse(status int, contentType string, body []byte) *response {
	h := make(http.Header)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &response{status: status, header: h, body: body}
}

func unauthorizedResponse() *response {
	body, _ := json.Marshal(map[string]int{"status": StatusInsufficientPrivileges})
	return newResponse(StatusConnectionAuthorizationRequired, ContentTypeHAPJSON, body)
}

// encode renders r as an HTTP/1.1 response.
func (r *response) encode() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", r.status, statusText(r.status))
	r.header.Set("Content-Length", strconv.Itoa(len(r.body)))
	_ = r.header.Write(&buf)
	buf.WriteString("\r\n")
	buf.Write(r.body)
	return buf.Bytes()
}

func statusText(code int) string {
	if code == StatusConnectionAuthorizationRequired {
		return "Connection Authorization Required"
	}
	if t := http.StatusText(code); t != "" {
		return t
	}
	return "Status"
}

// readBody reads at most MaxBodySize bytes of a request body.
func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()
	body, err := io.ReadAll(io.LimitReader(req.Body, MaxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}
