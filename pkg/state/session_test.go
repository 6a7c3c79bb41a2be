package state

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmitS1009/Constructure-AI/pkg/client"
	"github.com/AmitS1009/Constructure-AI/pkg/core"
	"github.com/AmitS1009/Constructure-AI/pkg/messages"
	"github.com/AmitS1009/Constructure-AI/pkg/transport"
)

type sourceFunc func(ctx context.Context) transport.ChunkSource

// fakeQuerier decodes scripted responses the way client.Client does.
type fakeQuerier struct {
	mu        sync.Mutex
	responses []sourceFunc
	requests  []client.QueryRequest
}

func respond(chunks ...string) sourceFunc {
	return func(context.Context) transport.ChunkSource {
		return transport.NewStringSource(chunks...)
	}
}

func (f *fakeQuerier) Query(ctx context.Context, req client.QueryRequest, onSnapshot func(messages.Message)) (messages.Message, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	next := f.responses[0]
	f.responses = f.responses[1:]
	f.mu.Unlock()

	logger, _ := logtest.NewNullLogger()
	options := []messages.DecodeOption{messages.WithLogger(logger)}
	if req.ThreadID != nil {
		options = append(options, messages.WithKnownThreadID())
	}
	return messages.DecodeStream(ctx, next(ctx), onSnapshot, options...)
}

func (f *fakeQuerier) Requests() []client.QueryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.QueryRequest(nil), f.requests...)
}

func newTestSession(t *testing.T, q Querier, options ...SessionOption) *Session {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	s, err := NewSession(q, append([]SessionOption{WithLogger(logger)}, options...)...)
	require.NoError(t, err)
	return s
}

func TestSessionAsk(t *testing.T) {
	q := &fakeQuerier{responses: []sourceFunc{
		respond("__THREAD_ID__:7\n\nD-101 is rated.", "\n\n__SOURCES__\n", `[{"doc_name":"doors.pdf","page_num":2,"text":"D-101"}]`),
		respond("__THREAD_ID__:9\n\nNone on level 2."),
	}}
	s := newTestSession(t, q)

	_, ok := s.ThreadID()
	assert.False(t, ok)

	first, err := s.Ask(context.Background(), "Which doors are fire rated?", nil)
	require.NoError(t, err)
	assert.Equal(t, "D-101 is rated.", first.Content)
	require.Len(t, first.Sources, 1)

	id, ok := s.ThreadID()
	require.True(t, ok)
	assert.Equal(t, int64(7), id)

	var snapshots []messages.Message
	second, err := s.Ask(context.Background(), "And on level 2?", func(m messages.Message) {
		snapshots = append(snapshots, m)
	})
	require.NoError(t, err)
	assert.Equal(t, "None on level 2.", second.Content, "the marker is removed but the session keeps its thread")
	require.NotNil(t, second.ThreadID)
	assert.Equal(t, int64(7), *second.ThreadID)
	require.NotEmpty(t, snapshots)
	assert.Equal(t, int64(7), *snapshots[0].ThreadID)

	requests := q.Requests()
	require.Len(t, requests, 2)
	assert.Nil(t, requests[0].ThreadID)
	assert.Empty(t, requests[0].History)
	require.NotNil(t, requests[1].ThreadID)
	assert.Equal(t, int64(7), *requests[1].ThreadID)
	assert.Equal(t, []messages.HistoryEntry{
		{Role: messages.RoleUser, Content: "Which doors are fire rated?"},
		{Role: messages.RoleAssistant, Content: "D-101 is rated."},
	}, requests[1].History)

	history := s.History()
	require.Len(t, history, 4)
	assert.Equal(t, "And on level 2?", history[2].Content)
}

func TestSessionAskFailure(t *testing.T) {
	q := &fakeQuerier{responses: []sourceFunc{
		func(context.Context) transport.ChunkSource {
			return transport.NewStringSource("__THREAD_ID__:3\n\nPartial").
				FailWith(&core.TransportError{Operation: "read body", Err: io.ErrUnexpectedEOF})
		},
	}}
	s := newTestSession(t, q)

	reply, err := s.Ask(context.Background(), "q", nil)
	var transportErr *core.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "Partial", reply.Content)

	assert.Empty(t, s.History())
	_, ok := s.ThreadID()
	assert.False(t, ok, "a failed answer does not start a thread")
}

func TestSessionEmptyQuestion(t *testing.T) {
	q := &fakeQuerier{}
	s := newTestSession(t, q)

	_, err := s.Ask(context.Background(), " \n", nil)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))
	assert.Empty(t, q.Requests())
}

// blockingResponse delivers first and then waits for more bytes that never come.
func blockingResponse(t *testing.T, first string) sourceFunc {
	return func(ctx context.Context) transport.ChunkSource {
		pr, pw := io.Pipe()
		t.Cleanup(func() { _ = pw.Close() })
		go func() { _, _ = pw.Write([]byte(first)) }()
		return transport.NewReaderSource(ctx, pr)
	}
}

type askResult struct {
	msg messages.Message
	err error
}

func TestSessionSupersede(t *testing.T) {
	q := &fakeQuerier{responses: []sourceFunc{
		blockingResponse(t, "old partial"),
		respond("__THREAD_ID__:11\n\nnew answer"),
	}}
	s := newTestSession(t, q)

	var oldSnapshots atomic.Int32
	started := make(chan struct{})
	done := make(chan askResult, 1)
	go func() {
		var once sync.Once
		msg, err := s.Ask(context.Background(), "old question", func(messages.Message) {
			oldSnapshots.Add(1)
			once.Do(func() { close(started) })
		})
		done <- askResult{msg, err}
	}()

	<-started
	reply, err := s.Ask(context.Background(), "new question", nil)
	require.NoError(t, err)
	assert.Equal(t, "new answer", reply.Content)

	select {
	case old := <-done:
		assert.True(t, errors.Is(old.err, core.ErrStreamCancelled))
		assert.Equal(t, "old partial", old.msg.Content)
	case <-time.After(5 * time.Second):
		t.Fatal("superseded Ask did not return")
	}
	assert.Equal(t, int32(1), oldSnapshots.Load())

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, "new question", history[0].Content)

	requests := q.Requests()
	require.Len(t, requests, 2)
	assert.Empty(t, requests[1].History, "the superseded turn is not sent as history")

	id, ok := s.ThreadID()
	require.True(t, ok)
	assert.Equal(t, int64(11), id)
}

func TestSessionCancel(t *testing.T) {
	q := &fakeQuerier{responses: []sourceFunc{blockingResponse(t, "partial")}}
	s := newTestSession(t, q)

	done := make(chan askResult, 1)
	go func() {
		msg, err := s.Ask(context.Background(), "q", func(messages.Message) {
			go s.Cancel()
		})
		done <- askResult{msg, err}
	}()

	select {
	case res := <-done:
		assert.True(t, errors.Is(res.err, core.ErrStreamCancelled))
		assert.True(t, errors.Is(res.err, context.Canceled))
		assert.Equal(t, "partial", res.msg.Content)
	case <-time.After(5 * time.Second):
		t.Fatal("Ask did not return after Cancel")
	}
	assert.Empty(t, s.History())

	s.Cancel()
}

func TestSessionStoreAndResume(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	q := &fakeQuerier{responses: []sourceFunc{
		respond("__THREAD_ID__:21\n\nfirst answer"),
		respond("second answer"),
		respond("third answer"),
	}}
	s := newTestSession(t, q, WithStore(store))

	_, err := s.Ask(ctx, "first question", nil)
	require.NoError(t, err)
	_, err = s.Ask(ctx, "second question", nil)
	require.NoError(t, err)

	stored, err := store.Messages(ctx, 21)
	require.NoError(t, err)
	require.Len(t, stored, 4)
	for _, msg := range stored {
		require.NotNil(t, msg.ThreadID)
		assert.Equal(t, int64(21), *msg.ThreadID)
	}

	thread, err := store.Thread(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, "first question", thread.Title)

	logger, _ := logtest.NewNullLogger()
	resumed, err := Resume(ctx, q, store, 21, WithLogger(logger))
	require.NoError(t, err)
	assert.Len(t, resumed.History(), 4)

	_, err = resumed.Ask(ctx, "third question", nil)
	require.NoError(t, err)

	requests := q.Requests()
	last := requests[len(requests)-1]
	require.NotNil(t, last.ThreadID)
	assert.Equal(t, int64(21), *last.ThreadID)
	assert.Len(t, last.History, 4)

	stored, err = store.Messages(ctx, 21)
	require.NoError(t, err)
	assert.Len(t, stored, 6)

	_, err = Resume(ctx, q, store, 999)
	assert.True(t, errors.Is(err, ErrThreadNotFound))
}

func TestSessionWithoutThreadIDIsNotSaved(t *testing.T) {
	store := openTestStore(t)
	q := &fakeQuerier{responses: []sourceFunc{respond("no marker")}}
	s := newTestSession(t, q, WithStore(store))

	_, err := s.Ask(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Len(t, s.History(), 2)

	threads, err := store.Threads(context.Background())
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestSessionReset(t *testing.T) {
	q := &fakeQuerier{responses: []sourceFunc{
		respond("__THREAD_ID__:4\n\nanswer"),
		respond("__THREAD_ID__:5\n\nfresh"),
	}}
	s := newTestSession(t, q)

	_, err := s.Ask(context.Background(), "q1", nil)
	require.NoError(t, err)

	s.Reset()
	_, ok := s.ThreadID()
	assert.False(t, ok)
	assert.Empty(t, s.History())

	_, err = s.Ask(context.Background(), "q2", nil)
	require.NoError(t, err)
	id, _ := s.ThreadID()
	assert.Equal(t, int64(5), id)
	assert.Nil(t, q.Requests()[1].ThreadID)
}
