package signature

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

// Algorithm is the token hubgate writes in front of generated digests.
const Algorithm = "sha256"

// DefaultChunkSize is the read size used while hashing a body.
const DefaultChunkSize = 4096

// Digester computes HMAC-SHA256 over a request body without holding it in
// memory. The zero value is ready to use.
type Digester struct {
	// ChunkSize bounds each read from the body (default 4096).
	ChunkSize int
}

// Compute returns HMAC-SHA256(secret, prefix || body || suffix). Empty prefix
// and suffix are skipped.
//
// body is hashed from offset 0 and always seeked back to offset 0 before
// Compute returns. A failed rewind fails the call even if the digest was
// computed. ctx is checked between chunks.
func (d Digester) Compute(ctx context.Context, secret []byte, body io.ReadSeeker, prefix, suffix []byte) (digest []byte, err error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if body == nil {
		return nil, fmt.Errorf("compute digest: body is nil")
	}

	defer func() {
		if errors.Is(err, ErrBodyRewind) {
			return
		}
		if _, serr := body.Seek(0, io.SeekStart); serr != nil {
			digest = nil
			err = errors.Join(err, fmt.Errorf("%w: %v", ErrBodyRewind, serr))
		}
	}()

	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBodyRewind, err)
	}

	size := d.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	mac := hmac.New(sha256.New, secret)
	if len(prefix) > 0 {
		mac.Write(prefix)
	}

	buf := make([]byte, size)
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("compute digest: %w", err)
		}
		n, rerr := body.Read(buf)
		if n > 0 {
			mac.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("read body: %w", rerr)
		}
	}

	if len(suffix) > 0 {
		mac.Write(suffix)
	}
	return mac.Sum(nil), nil
}

// Sign returns the header value a sender would attach to body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return Algorithm + "=" + EncodeHex(mac.Sum(nil))
}
