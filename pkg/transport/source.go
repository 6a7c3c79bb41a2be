package transport

import (
	"context"
	"io"
	"sync"

	"github.com/AmitS1009/Constructure-AI/pkg/core"
)

// ChunkSource yields the raw chunks of one response body.
type ChunkSource interface {
	// Next returns the next chunk, or io.EOF once the stream has ended.
	Next(ctx context.Context) ([]byte, error)

	// Close releases the underlying connection. It is safe to call more than once.
	Close() error
}

// SliceSource replays a fixed list of chunks, optionally ending with an error
// instead of io.EOF.
type SliceSource struct {
	mu     sync.Mutex
	chunks [][]byte
	err    error
	closed bool
}

// NewSliceSource creates a source that yields chunks in order.
func NewSliceSource(chunks ...[]byte) *SliceSource {
	return &SliceSource{chunks: chunks, err: io.EOF}
}

// NewStringSource is NewSliceSource for text chunks.
func NewStringSource(chunks ...string) *SliceSource {
	raw := make([][]byte, len(chunks))
	for i, c := range chunks {
		raw[i] = []byte(c)
	}
	return NewSliceSource(raw...)
}

// FailWith makes the source return err after the last chunk.
func (s *SliceSource) FailWith(err error) *SliceSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Next returns the next chunk
func (s *SliceSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, core.ErrStreamClosed
	}
	if len(s.chunks) == 0 {
		return nil, s.err
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

// Close marks the source closed
func (s *SliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *SliceSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
