package signature

import (
	"fmt"
	"strings"
)

// DefaultHeader is the header WebSub hubs use for the body signature.
const DefaultHeader = "X-Hub-Signature"

// Header is a parsed <algorithm>=<digest> signature header.
type Header struct {
	Algorithm string
	Digest    string
}

// ParseHeader validates a raw header value. present is false when the request
// did not carry the header at all, in which case ErrHeaderAbsent is returned.
//
// The value must contain exactly one '=' with non-empty text on both sides.
// The digest is not checked for hex content.
func ParseHeader(value string, present bool) (Header, error) {
	if !present {
		return Header{}, ErrHeaderAbsent
	}
	if strings.Count(value, "=") != 1 {
		return Header{}, fmt.Errorf("%w: expected <algorithm>=<digest>", ErrBadHeaderFormat)
	}

	algorithm, digest, _ := strings.Cut(value, "=")
	if algorithm == "" {
		return Header{}, fmt.Errorf("%w: empty algorithm", ErrBadHeaderFormat)
	}
	if digest == "" {
		return Header{}, fmt.Errorf("%w: empty digest", ErrBadHeaderFormat)
	}

	return Header{Algorithm: algorithm, Digest: digest}, nil
}

// String renders the header back to its wire form.
func (h Header) String() string {
	return h.Algorithm + "=" + h.Digest
}
