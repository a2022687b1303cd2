package http

import (
	"errors"
	"io"
)

// Body is the readable half of a successful response. When Incremental
// reports false, callers must use ReadAll instead of Next.
type Body struct {
	rc          io.ReadCloser
	buf         []byte
	incremental bool
	pending     error
}

// NewBody wraps rc. readSize bounds each chunk returned by Next; incremental
// false selects the whole-body path.
func NewBody(rc io.ReadCloser, readSize int, incremental bool) *Body {
	if readSize <= 0 {
		readSize = defaultReadSize
	}
	return &Body{
		rc:          rc,
		buf:         make([]byte, readSize),
		incremental: incremental,
	}
}

// Incremental reports whether the body can be consumed chunk by chunk.
func (b *Body) Incremental() bool {
	return b.incremental
}

// Next returns the next chunk of the body, or io.EOF once it is exhausted.
// Each chunk is a fresh slice owned by the caller.
func (b *Body) Next() ([]byte, error) {
	if b.pending != nil {
		return nil, b.pending
	}

	for {
		n, err := b.rc.Read(b.buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, b.buf[:n])
			// Deliver the data now and surface the error on the next call.
			b.pending = err
			return chunk, nil
		}
		if err != nil {
			b.pending = err
			return nil, err
		}
	}
}

// ReadAll reads the remaining body in one piece.
func (b *Body) ReadAll() ([]byte, error) {
	if b.pending != nil && !errors.Is(b.pending, io.EOF) {
		return nil, b.pending
	}
	return io.ReadAll(b.rc)
}

// Close releases the underlying connection.
func (b *Body) Close() error {
	return b.rc.Close()
}
