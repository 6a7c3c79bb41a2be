package messages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/AmitS1009/Constructure-AI/pkg/core"
	"github.com/AmitS1009/Constructure-AI/pkg/encoding"
	"github.com/AmitS1009/Constructure-AI/pkg/protocol"
	"github.com/AmitS1009/Constructure-AI/pkg/transport"
)

// Accumulator owns the in-progress assistant message of one response and
// applies parser events to it. It is owned by a single decode loop.
type Accumulator struct {
	message    Message
	content    strings.Builder
	sourcesSet bool
}

// NewAccumulator creates an accumulator for a new assistant message
func NewAccumulator() *Accumulator {
	return &Accumulator{
		message: NewAssistantMessage(),
	}
}

// ID returns the ID of the message being built
func (a *Accumulator) ID() string {
	return a.message.ID
}

// Apply folds ev into the message and reports whether anything changed.
// The thread id and the sources are each set at most once; later events for
// them are ignored.
func (a *Accumulator) Apply(ev protocol.Event) bool {
	switch e := ev.(type) {
	case *protocol.TextAppendedEvent:
		if e.Text == "" {
			return false
		}
		a.content.WriteString(e.Text)
		return true

	case *protocol.ThreadIDFoundEvent:
		if a.message.ThreadID != nil {
			return false
		}
		id := e.ThreadID
		a.message.ThreadID = &id
		return true

	case *protocol.SourcesCompleteEvent:
		if a.sourcesSet {
			return false
		}
		a.sourcesSet = true
		a.message.Sources = core.CloneSources(e.Sources)
		return true
	}
	return false
}

// Snapshot returns an independent copy of the current message
func (a *Accumulator) Snapshot() Message {
	snap := a.message.Clone()
	snap.Content = a.content.String()
	return snap
}

// DecodeOption configures DecodeStream
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	logger        logrus.FieldLogger
	knownThreadID bool
}

// WithLogger sets the logger used for decode diagnostics
func WithLogger(logger logrus.FieldLogger) DecodeOption {
	return func(c *decodeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithKnownThreadID tells the decoder the request already named a thread.
// A thread-id marker in the stream is still removed from the text, but the
// id it carries is dropped.
func WithKnownThreadID() DecodeOption {
	return func(c *decodeConfig) {
		c.knownThreadID = true
	}
}

// DecodeStream reads src to the end and returns the assistant message it
// carries. onSnapshot, if not nil, is called with a fresh snapshot after
// every change, in stream order.
//
// A transport failure ends the decode with a *core.TransportError and the
// last snapshot; the sources segment is then not parsed and text still held
// back as a possible marker prefix is dropped. A malformed sources
// payload is logged and leaves Sources empty. When ctx ends the source is
// closed, no further snapshots are emitted, and the error wraps both
// core.ErrStreamCancelled and the context error.
func DecodeStream(ctx context.Context, src transport.ChunkSource, onSnapshot func(Message), options ...DecodeOption) (Message, error) {
	cfg := decodeConfig{logger: logrus.StandardLogger()}
	for _, opt := range options {
		opt(&cfg)
	}

	var parserOptions []protocol.ParserOption
	if cfg.knownThreadID {
		parserOptions = append(parserOptions, protocol.DiscardThreadID())
	}

	text := encoding.NewTextDecoder()
	parser := protocol.NewParser(parserOptions...)
	acc := NewAccumulator()
	log := cfg.logger.WithField("message_id", acc.ID())

	defer func() {
		if err := src.Close(); err != nil {
			log.WithError(err).Debug("closing query stream")
		}
	}()

	apply := func(events []protocol.Event) error {
		for _, ev := range events {
			if !acc.Apply(ev) {
				if found, ok := ev.(*protocol.ThreadIDFoundEvent); ok {
					log.WithField("thread_id", found.ThreadID).Warn("ignoring repeated thread id")
				}
				continue
			}
			if err := ctx.Err(); err != nil {
				return cancelled(err)
			}
			if onSnapshot != nil {
				onSnapshot(acc.Snapshot())
			}
		}
		return nil
	}

	received := 0
	for {
		chunk, err := src.Next(ctx)
		if len(chunk) > 0 {
			received += len(chunk)
			if aerr := apply(parser.Feed(text.Decode(chunk))); aerr != nil {
				return acc.Snapshot(), aerr
			}
		}

		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.WithField("bytes", received).Debug("query stream cancelled")
			return acc.Snapshot(), cancelled(ctxErr)
		}

		var transportErr *core.TransportError
		if !errors.As(err, &transportErr) {
			err = &core.TransportError{Operation: "read stream", Err: err}
		}
		log.WithError(err).WithFields(logrus.Fields{
			"bytes": received,
			"mode":  parser.Mode().String(),
		}).Warn("query stream failed")
		return acc.Snapshot(), err
	}

	if err := apply(parser.Feed(text.Flush())); err != nil {
		return acc.Snapshot(), err
	}

	events, perr := parser.Close()
	if perr != nil {
		log.WithError(perr).Warn("discarding malformed sources")
	}
	if err := apply(events); err != nil {
		return acc.Snapshot(), err
	}

	final := acc.Snapshot()
	log.WithFields(logrus.Fields{
		"bytes":   received,
		"sources": len(final.Sources),
	}).Debug("query stream decoded")
	return final, nil
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", core.ErrStreamCancelled, err)
}
