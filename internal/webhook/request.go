package webhook

import (
	"io"
	"net/http"
	"strings"

	"github.com/mattjoyce/hubgate/internal/signature"
)

// httpRequest adapts an *http.Request for signature.Verifier. The body is
// wrapped for buffering only when the verifier asks for it, so requests
// that are never hashed reach the handler untouched.
type httpRequest struct {
	w        http.ResponseWriter
	r        *http.Request
	endpoint *EndpointConfig
	secure   bool
	spooled  *signature.SpooledBody
}

func newHTTPRequest(w http.ResponseWriter, r *http.Request, ep *EndpointConfig, cfg Config) *httpRequest {
	return &httpRequest{
		w:        w,
		r:        r,
		endpoint: ep,
		secure:   isSecure(r, cfg.TrustForwardedProto, cfg.AllowInsecure),
	}
}

func (h *httpRequest) Method() string { return h.r.Method }
func (h *httpRequest) InScope() bool  { return h.endpoint != nil }
func (h *httpRequest) Secure() bool   { return h.secure }

// Header distinguishes an absent header from an empty one.
func (h *httpRequest) Header(name string) (string, bool) {
	values := h.r.Header.Values(name)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (h *httpRequest) Body() io.ReadSeeker {
	if h.spooled == nil {
		h.r.Body = http.MaxBytesReader(h.w, h.r.Body, h.endpoint.MaxBodySize)
		h.spooled = signature.EnableBuffering(h.r, h.endpoint.BufferThreshold)
	}
	return h.spooled
}

// close releases the spooled copy of the body, if one was made.
func (h *httpRequest) close() error {
	if h.spooled == nil {
		return nil
	}
	return h.spooled.Close()
}

func isSecure(r *http.Request, trustForwarded, allowInsecure bool) bool {
	if allowInsecure || r.TLS != nil {
		return true
	}
	if trustForwarded {
		return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
	}
	return false
}
