package transport

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AmitS1009/Constructure-AI/pkg/core"
)

// DefaultChunkSize is the read buffer size used by ReaderSource.
const DefaultChunkSize = 4096

// ReaderOption configures a ReaderSource
type ReaderOption func(*ReaderSource)

// WithChunkSize sets the maximum chunk size. Non-positive sizes are ignored.
func WithChunkSize(size int) ReaderOption {
	return func(s *ReaderSource) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// ReaderSource reads chunks from an io.ReadCloser.
//
// Reads happen on a pump goroutine so that cancelling the context can close
// the body and release a read that would otherwise block forever. Chunks are
// handed over unbuffered, so the pump never runs ahead of the consumer by more
// than one read.
type ReaderSource struct {
	body      io.ReadCloser
	chunkSize int
	chunks    chan []byte

	// err is written by the pump before it closes chunks.
	err error

	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
	closeErr  error
}

// NewReaderSource starts reading body. The caller must call Close.
func NewReaderSource(ctx context.Context, body io.ReadCloser, options ...ReaderOption) *ReaderSource {
	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)

	s := &ReaderSource{
		body:      body,
		chunkSize: DefaultChunkSize,
		chunks:    make(chan []byte),
		cancel:    cancel,
		group:     group,
	}
	for _, opt := range options {
		opt(s)
	}

	group.Go(func() error {
		s.pump(gctx)
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		return body.Close()
	})

	return s
}

func (s *ReaderSource) pump(ctx context.Context) {
	defer close(s.chunks)

	for {
		buf := make([]byte, s.chunkSize)
		n, err := s.body.Read(buf)
		if n > 0 {
			select {
			case s.chunks <- buf[:n]:
			case <-ctx.Done():
				s.err = ctx.Err()
				return
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			s.err = io.EOF
			return
		case ctx.Err() != nil:
			s.err = ctx.Err()
			return
		default:
			s.err = &core.TransportError{Operation: "read body", Err: err}
			return
		}
	}
}

// Next returns the next chunk read from the body.
func (s *ReaderSource) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case chunk, ok := <-s.chunks:
		if !ok {
			return nil, s.err
		}
		return chunk, nil
	}
}

// Close stops the pump and closes the body.
func (s *ReaderSource) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.group.Wait()
	})
	return s.closeErr
}
