package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AmitS1009/Constructure-AI/pkg/core"
)

// closeGracePeriod bounds how long Close waits to send the close frame.
const closeGracePeriod = time.Second

// WebSocketSource reads one chunk per WebSocket message. A normal closure
// from the server ends the stream; any other close code is a transport error.
type WebSocketSource struct {
	conn *websocket.Conn

	// err is the terminal result, returned again on later calls.
	err error

	closeOnce sync.Once
	closeErr  error
}

// NewWebSocketSource wraps an established connection.
func NewWebSocketSource(conn *websocket.Conn) *WebSocketSource {
	return &WebSocketSource{conn: conn}
}

// Next blocks until the next message arrives or ctx is done.
func (s *WebSocketSource) Next(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Unblock the read when the context ends; the connection is abandoned after that.
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		switch {
		case ctx.Err() != nil:
			s.err = ctx.Err()
		case websocket.IsCloseError(err, websocket.CloseNormalClosure):
			s.err = io.EOF
		default:
			s.err = &core.TransportError{Operation: "read websocket", Err: err}
		}
		return nil, s.err
	}
	return data, nil
}

// Close sends a close frame and closes the connection.
func (s *WebSocketSource) Close() error {
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
