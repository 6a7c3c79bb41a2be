package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// RecordedRequest is one request the QueryServer received.
type RecordedRequest struct {
	Path   string
	Header http.Header
	Body   []byte
}

// ServerOption configures a QueryServer
type ServerOption func(*QueryServer)

// WithStatus makes the server reject every query with code and body.
func WithStatus(code int, body string) ServerOption {
	return func(s *QueryServer) {
		s.status = code
		s.errorBody = body
	}
}

// WithDrop makes the server cut the connection after the chunks instead of
// ending the response cleanly.
func WithDrop() ServerOption {
	return func(s *QueryServer) {
		s.drop = true
	}
}

// WithPause makes the server stop after the first n chunks until release is
// closed or the client goes away.
func WithPause(n int, release <-chan struct{}) ServerOption {
	return func(s *QueryServer) {
		s.pauseAfter = n
		s.release = release
	}
}

// QueryServer serves POST /query and GET /query/ws with canned chunks.
type QueryServer struct {
	*httptest.Server

	chunks     [][]byte
	status     int
	errorBody  string
	drop       bool
	pauseAfter int
	release    <-chan struct{}
	upgrader   websocket.Upgrader

	mu       sync.Mutex
	requests []RecordedRequest
}

// NewQueryServer starts a server that answers with chunks. It is closed
// when the test ends.
func NewQueryServer(t testing.TB, chunks [][]byte, options ...ServerOption) *QueryServer {
	t.Helper()

	s := &QueryServer{
		chunks:     chunks,
		pauseAfter: -1,
	}
	for _, opt := range options {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /query/ws", s.handleWebSocket)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Server.Close)

	return s
}

// Requests returns the requests received so far.
func (s *QueryServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

func (s *QueryServer) record(r *http.Request, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, RecordedRequest{
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
}

func (s *QueryServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.record(r, body)

	if s.status != 0 {
		http.Error(w, s.errorBody, s.status)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for i, chunk := range s.chunks {
		if i == s.pauseAfter && !s.wait(r) {
			return
		}
		if _, err := w.Write(chunk); err != nil {
			return
		}
		flusher.Flush()
	}

	if s.drop {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
			}
		}
	}
}

func (s *QueryServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_, body, err := conn.ReadMessage()
	if err != nil {
		return
	}
	s.record(r, body)

	for i, chunk := range s.chunks {
		if i == s.pauseAfter && !s.wait(r) {
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return
		}
	}

	if s.drop {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	// Wait for the client's close reply so the frame is not lost.
	_, _, _ = conn.ReadMessage()
}

func (s *QueryServer) wait(r *http.Request) bool {
	select {
	case <-s.release:
		return true
	case <-r.Context().Done():
		return false
	}
}
