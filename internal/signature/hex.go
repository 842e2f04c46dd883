package signature

import (
	"encoding/hex"
	"fmt"
)

// DecodeHex decodes an even-length string of hex digits (either case).
// The empty string decodes to an empty slice.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHexEncoding, err)
	}
	return b, nil
}

// EncodeHex returns the lowercase hex encoding of b.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}
