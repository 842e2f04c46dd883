package signature

import "crypto/subtle"

// Equal reports whether a and b hold the same bytes. Inputs of different
// length return false at once; for equal lengths every byte is examined.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
