package signature

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

// DefaultBufferThreshold is how many body bytes SpooledBody keeps in memory
// before spilling to a temporary file.
const DefaultBufferThreshold = 30 * 1024

// SpooledBody makes a forward-only reader seekable by retaining every byte
// read from it. It must wrap the source before anything else reads from it.
//
// A SpooledBody is owned by one request and is not safe for concurrent use.
type SpooledBody struct {
	src       io.Reader
	threshold int64

	mem  []byte
	file *os.File

	size    int64 // bytes retained
	pos     int64
	srcDone bool
}

// NewSpooledBody wraps src. threshold <= 0 selects DefaultBufferThreshold.
func NewSpooledBody(src io.Reader, threshold int64) *SpooledBody {
	if threshold <= 0 {
		threshold = DefaultBufferThreshold
	}
	if src == nil {
		src = http.NoBody
	}
	return &SpooledBody{src: src, threshold: threshold}
}

// EnableBuffering replaces r.Body with a SpooledBody and returns it. A body
// that is already spooled is returned as is.
func EnableBuffering(r *http.Request, threshold int64) *SpooledBody {
	if sb, ok := r.Body.(*SpooledBody); ok {
		return sb
	}
	sb := NewSpooledBody(r.Body, threshold)
	r.Body = sb
	return sb
}

// Read implements io.Reader.
func (b *SpooledBody) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if b.pos < b.size {
		n, err := b.readRetained(p, b.pos)
		b.pos += int64(n)
		return n, err
	}
	if b.srcDone {
		return 0, io.EOF
	}

	n, err := b.src.Read(p)
	if n > 0 {
		if werr := b.retain(p[:n]); werr != nil {
			return 0, werr
		}
		b.pos += int64(n)
	}
	if err == io.EOF {
		b.srcDone = true
		if n > 0 {
			return n, nil
		}
	}
	return n, err
}

// Seek implements io.Seeker. Seeking beyond the retained bytes pulls from the
// source until the target is reached or the source ends.
func (b *SpooledBody) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = b.pos + offset
	case io.SeekEnd:
		if err := b.fill(-1); err != nil {
			return b.pos, err
		}
		target = b.size + offset
	default:
		return b.pos, fmt.Errorf("spooled body: invalid whence %d", whence)
	}
	if target < 0 {
		return b.pos, fmt.Errorf("spooled body: negative position %d", target)
	}
	if target > b.size {
		if err := b.fill(target); err != nil {
			return b.pos, err
		}
	}
	b.pos = target
	return target, nil
}

// Rewind seeks back to offset 0.
func (b *SpooledBody) Rewind() error {
	_, err := b.Seek(0, io.SeekStart)
	return err
}

// Buffered reports how many bytes have been retained so far.
func (b *SpooledBody) Buffered() int64 {
	return b.size
}

// Spilled reports whether the retained bytes moved to a temporary file.
func (b *SpooledBody) Spilled() bool {
	return b.file != nil
}

// Close closes the source and removes any temporary file.
func (b *SpooledBody) Close() error {
	var errs []error
	if c, ok := b.src.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if b.file != nil {
		name := b.file.Name()
		errs = append(errs, b.file.Close(), os.Remove(name))
		b.file = nil
	}
	b.mem = nil
	return errors.Join(errs...)
}

// fill reads from the source until size reaches target. target < 0 drains
// the source.
func (b *SpooledBody) fill(target int64) error {
	buf := make([]byte, DefaultChunkSize)
	for !b.srcDone && (target < 0 || b.size < target) {
		n, err := b.src.Read(buf)
		if n > 0 {
			if werr := b.retain(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			b.srcDone = true
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *SpooledBody) retain(p []byte) error {
	if b.file == nil && b.size+int64(len(p)) <= b.threshold {
		b.mem = append(b.mem, p...)
		b.size += int64(len(p))
		return nil
	}
	if b.file == nil {
		f, err := os.CreateTemp("", "hubgate-body-*")
		if err != nil {
			return fmt.Errorf("spool body: %w", err)
		}
		if _, err := f.Write(b.mem); err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
			return fmt.Errorf("spool body: %w", err)
		}
		b.file = f
		b.mem = nil
	}
	if _, err := b.file.WriteAt(p, b.size); err != nil {
		return fmt.Errorf("spool body: %w", err)
	}
	b.size += int64(len(p))
	return nil
}

func (b *SpooledBody) readRetained(p []byte, off int64) (int, error) {
	if remaining := b.size - off; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	if b.file == nil {
		return copy(p, b.mem[off:]), nil
	}
	n, err := b.file.ReadAt(p, off)
	if err == io.EOF && n == len(p) {
		err = nil
	}
	return n, err
}
