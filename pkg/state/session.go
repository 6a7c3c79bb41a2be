package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/AmitS1009/Constructure-AI/pkg/client"
	"github.com/AmitS1009/Constructure-AI/pkg/core"
	"github.com/AmitS1009/Constructure-AI/pkg/messages"
)

// Querier sends one question and decodes its streamed answer.
type Querier interface {
	Query(ctx context.Context, req client.QueryRequest, onSnapshot func(messages.Message)) (messages.Message, error)
}

// Store persists the turns of a thread.
type Store interface {
	SaveTurn(ctx context.Context, threadID int64, msgs ...messages.Message) error
	Messages(ctx context.Context, threadID int64) ([]messages.Message, error)
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithStore persists every completed turn to store.
func WithStore(store Store) SessionOption {
	return func(s *Session) {
		s.store = store
	}
}

// WithLogger sets the session logger
func WithLogger(logger logrus.FieldLogger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithThread starts the session inside an existing thread.
func WithThread(threadID int64, history []messages.Message) SessionOption {
	return func(s *Session) {
		id := threadID
		s.threadID = &id
		s.seed = history
	}
}

// Session is one chat: the thread it belongs to, its history, and at most
// one question in flight. Asking a new question cancels the previous one.
type Session struct {
	querier Querier
	store   Store
	logger  logrus.FieldLogger
	seed    []messages.Message

	mu       sync.Mutex
	threadID *int64
	history  *messages.History
	cancel   context.CancelFunc

	// generation identifies the current Ask; emitMu orders snapshot delivery
	// against supersession so a replaced Ask cannot deliver late snapshots.
	generation atomic.Uint64
	emitMu     sync.Mutex
}

// NewSession creates a session that asks questions through q.
func NewSession(q Querier, options ...SessionOption) (*Session, error) {
	s := &Session{
		querier: q,
		logger:  logrus.StandardLogger(),
		history: messages.NewHistory(),
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.history.AddBatch(s.seed); err != nil {
		return nil, fmt.Errorf("seed history: %w", err)
	}
	s.seed = nil
	return s, nil
}

// Resume opens a session on a thread persisted in store. Later turns are
// saved back to the same store.
func Resume(ctx context.Context, q Querier, store Store, threadID int64, options ...SessionOption) (*Session, error) {
	msgs, err := store.Messages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("resume thread %d: %w", threadID, err)
	}

	options = append(options, WithStore(store), WithThread(threadID, msgs))
	return NewSession(q, options...)
}

// Ask sends question with the session history and streams the answer to
// onSnapshot. A completed answer is folded into the history together with
// the question and saved to the store; a failed one is returned as received
// and leaves the history unchanged.
//
// onSnapshot runs on the calling goroutine and must not call back into
// Ask, Cancel or Reset.
func (s *Session) Ask(ctx context.Context, question string, onSnapshot func(messages.Message)) (messages.Message, error) {
	if strings.TrimSpace(question) == "" {
		return messages.Message{}, &core.ConfigError{
			Field: "question",
			Value: question,
			Err:   errors.New("question cannot be empty"),
		}
	}
	user := messages.NewUserMessage(question)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.emitMu.Lock()
	gen := s.generation.Add(1)
	s.emitMu.Unlock()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	req := client.QueryRequest{
		Question: question,
		History:  s.history.Entries(),
		ThreadID: copyID(s.threadID),
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.generation.Load() == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
	}()

	log := s.logger.WithField("message_id", user.ID)
	if req.ThreadID != nil {
		log = log.WithField("thread_id", *req.ThreadID)
	}

	reply, err := s.querier.Query(ctx, req, func(m messages.Message) {
		s.emitMu.Lock()
		defer s.emitMu.Unlock()
		if s.generation.Load() != gen || ctx.Err() != nil {
			return
		}
		if onSnapshot == nil {
			return
		}
		if m.ThreadID == nil {
			m.ThreadID = copyID(req.ThreadID)
		}
		onSnapshot(m)
	})
	if err != nil {
		log.WithError(err).Debug("question not answered")
		return reply, err
	}

	s.mu.Lock()
	if s.generation.Load() != gen {
		s.mu.Unlock()
		return reply, fmt.Errorf("%w: %w", core.ErrStreamCancelled, context.Canceled)
	}

	switch {
	case s.threadID == nil && reply.ThreadID != nil:
		id := *reply.ThreadID
		s.threadID = &id
		log = log.WithField("thread_id", id)
		log.Debug("thread started")
	case s.threadID != nil && reply.ThreadID != nil && *reply.ThreadID != *s.threadID:
		log.WithField("ignored_thread_id", *reply.ThreadID).Warn("ignoring thread id for a known thread")
	}
	reply.ThreadID = copyID(s.threadID)
	user.ThreadID = copyID(s.threadID)

	if err := s.history.AddBatch([]messages.Message{user, reply}); err != nil {
		s.mu.Unlock()
		return reply, fmt.Errorf("record turn: %w", err)
	}
	threadID := copyID(s.threadID)
	s.mu.Unlock()

	if s.store == nil {
		return reply, nil
	}
	if threadID == nil {
		log.Debug("answer has no thread id; turn not saved")
		return reply, nil
	}
	if err := s.store.SaveTurn(context.WithoutCancel(ctx), *threadID, user, reply); err != nil {
		log.WithError(err).Error("failed to save turn")
		return reply, fmt.Errorf("save turn: %w", err)
	}
	return reply, nil
}

// Cancel stops the question in flight, if any. It is safe to call from
// another goroutine.
func (s *Session) Cancel() {
	s.emitMu.Lock()
	s.generation.Add(1)
	s.emitMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// ThreadID returns the thread of the session once the server has named one.
func (s *Session) ThreadID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.threadID == nil {
		return 0, false
	}
	return *s.threadID, true
}

// History returns the completed turns of the session, oldest first.
func (s *Session) History() []messages.Message {
	return s.history.GetAll()
}

// Reset cancels any question in flight and starts a new chat.
func (s *Session) Reset() {
	s.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadID = nil
	s.history.Clear()
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
