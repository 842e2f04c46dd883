package signature

import "errors"

var (
	// ErrHeaderAbsent reports that the request carries no signature header.
	// It is not a verification failure.
	ErrHeaderAbsent = errors.New("signature header absent")

	ErrBadHeaderFormat   = errors.New("malformed signature header")
	ErrBadHexEncoding    = errors.New("malformed signature digest")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrInsecureTransport = errors.New("secure connection required")
	ErrMissingSecret     = errors.New("signing secret not configured")

	// ErrBodyRewind is returned when the body could not be seeked back to
	// offset 0 after hashing. The request must not proceed.
	ErrBodyRewind = errors.New("request body could not be rewound")
)
