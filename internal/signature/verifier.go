package signature

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Outcome is the terminal state of one verification.
type Outcome int

const (
	// NotApplicable means the request is outside the receiver scope or is
	// not a POST. It was not inspected.
	NotApplicable Outcome = iota
	// Skipped means no signature header was sent.
	Skipped
	Passed
	BadHeaderFormat
	BadHexEncoding
	SignatureMismatch
	InsecureTransport
	MissingSecret
	// BodyUnreadable covers read errors and cancellation while hashing.
	BodyUnreadable
)

var outcomeNames = map[Outcome]string{
	NotApplicable:     "not_applicable",
	Skipped:           "skipped",
	Passed:            "passed",
	BadHeaderFormat:   "bad_header_format",
	BadHexEncoding:    "bad_hex_encoding",
	SignatureMismatch: "signature_mismatch",
	InsecureTransport: "insecure_transport",
	MissingSecret:     "missing_secret",
	BodyUnreadable:    "body_unreadable",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Result is what Verify hands back to the HTTP layer.
type Result struct {
	Outcome Outcome
	// Header is the signature header name that was checked.
	Header string
	// Value is the raw header value, set only for BadHeaderFormat.
	Value string
	// Err carries the underlying cause for failed outcomes.
	Err error
}

// Allowed reports whether request handling may continue.
func (r Result) Allowed() bool {
	switch r.Outcome {
	case NotApplicable, Skipped, Passed:
		return true
	default:
		return false
	}
}

// Request is the view of an inbound request the verifier needs.
type Request interface {
	Method() string
	// InScope reports whether the route belongs to a receiver that uses
	// signature verification.
	InScope() bool
	Secure() bool
	Header(name string) (string, bool)
	// Body must be readable from offset 0 and left there afterwards.
	Body() io.ReadSeeker
}

// SecretSource resolves a shared secret by key.
type SecretSource interface {
	Secret(key string) (string, bool)
}

// SecretMap is a SecretSource backed by a map.
type SecretMap map[string]string

func (m SecretMap) Secret(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Options configures a Verifier.
type Options struct {
	// Header defaults to DefaultHeader.
	Header string
	// SecretKey is looked up in Secrets on every call.
	SecretKey string
	Secrets   SecretSource
	Digester  Digester
}

// Verifier applies the signature policy to one receiver's requests. It holds
// no per-request state and is safe for concurrent use.
type Verifier struct {
	header    string
	secretKey string
	secrets   SecretSource
	digester  Digester
}

// NewVerifier builds a Verifier from opts.
func NewVerifier(opts Options) *Verifier {
	header := opts.Header
	if header == "" {
		header = DefaultHeader
	}
	secrets := opts.Secrets
	if secrets == nil {
		secrets = SecretMap{}
	}
	return &Verifier{
		header:    header,
		secretKey: opts.SecretKey,
		secrets:   secrets,
		digester:  opts.Digester,
	}
}

// HeaderName returns the header the verifier reads.
func (v *Verifier) HeaderName() string {
	return v.header
}

// Verify runs the checks in order: scope and method, transport, header
// structure, hex digest, secret, body digest. The first failure wins.
func (v *Verifier) Verify(ctx context.Context, req Request) Result {
	res := Result{Header: v.header}

	if !req.InScope() || !strings.EqualFold(req.Method(), http.MethodPost) {
		res.Outcome = NotApplicable
		return res
	}

	if !req.Secure() {
		res.Outcome = InsecureTransport
		res.Err = ErrInsecureTransport
		return res
	}

	raw, present := req.Header(v.header)
	hdr, err := ParseHeader(raw, present)
	if errors.Is(err, ErrHeaderAbsent) {
		res.Outcome = Skipped
		return res
	}
	if err != nil {
		res.Outcome = BadHeaderFormat
		res.Value = raw
		res.Err = err
		return res
	}

	expected, err := DecodeHex(hdr.Digest)
	if err != nil {
		res.Outcome = BadHexEncoding
		res.Err = err
		return res
	}

	secret, ok := v.secrets.Secret(v.secretKey)
	if !ok || secret == "" {
		res.Outcome = MissingSecret
		res.Err = ErrMissingSecret
		return res
	}

	actual, err := v.digester.Compute(ctx, []byte(secret), req.Body(), nil, nil)
	if err != nil {
		res.Outcome = BodyUnreadable
		res.Err = err
		return res
	}

	if !Equal(expected, actual) {
		res.Outcome = SignatureMismatch
		res.Err = ErrSignatureMismatch
		return res
	}

	res.Outcome = Passed
	return res
}
