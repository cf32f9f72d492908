package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voicelink/remote-audio/internal/observability"
	"github.com/voicelink/remote-audio/internal/protocol"
)

const writeTimeout = 5 * time.Second

// Session is one live client connection. The id is derived from the remote
// address; a session is created on accept and never reused across
// reconnects.
type Session struct {
	id        string
	conn      *websocket.Conn
	logger    zerolog.Logger
	startedAt time.Time

	// gorilla/websocket allows at most one concurrent writer; broadcasts
	// and pong replies arrive from different goroutines.
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// New wraps an accepted WebSocket connection.
func New(conn *websocket.Conn, logger zerolog.Logger) *Session {
	id := conn.RemoteAddr().String()
	return &Session{
		id:   id,
		conn: conn,
		logger: logger.With().
			Str("session_id", id).
			Str("correlation_id", observability.NewCorrelationID()).
			Logger(),
		startedAt: time.Now(),
	}
}

// ID returns the address-derived session id.
func (s *Session) ID() string {
	return s.id
}

// StartedAt returns the accept time.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Logger returns the session-scoped logger.
func (s *Session) Logger() zerolog.Logger {
	return s.logger
}

// Send encodes and writes one frame. A failure here means the peer is gone;
// callers treat it as an implicit disconnect.
func (s *Session) Send(f protocol.Frame) error {
	data, err := protocol.Encode(f)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s frame: %w", f.FrameType(), err)
	}
	return nil
}

// Read blocks for the next raw inbound message. Frames from one session are
// processed in arrival order because only the connection handler calls Read.
func (s *Session) Read() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

// Close tears down the transport. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
