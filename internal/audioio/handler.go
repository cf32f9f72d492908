package audioio

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/voicelink/remote-audio/internal/observability"
	"github.com/voicelink/remote-audio/internal/protocol"
	"github.com/voicelink/remote-audio/internal/queue"
	"github.com/voicelink/remote-audio/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Remote microphones connect from arbitrary devices on the local
		// network; the transport carries no authentication by design.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// handleWS is the entry point for one remote microphone connection. The
// session lives for the duration of this handler; any exit removes it from
// the registry.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}

	sess := session.New(conn, s.logger)
	logger := sess.Logger()
	logger.Info().Msg("Remote client connected")

	if !s.registry.Add(sess) {
		logger.Warn().
			Int("max_clients", s.cfg.MaxClients).
			Msg("Rejecting connection: server at maximum capacity")
		// Best effort: the peer may already be gone.
		_ = sess.Send(protocol.NewError("Server at maximum capacity"))
		_ = sess.Close()
		observability.RecordSessionRejected()
		return
	}
	observability.RecordSessionStart()

	defer func() {
		s.registry.Remove(sess.ID())
		_ = sess.Close()
		observability.RecordSessionEnd(sess.StartedAt())
		logger.Info().Msg("Client disconnected")
	}()

	// The config frame is sent exactly once, immediately after admission.
	if err := sess.Send(protocol.NewConfig(s.cfg.SampleRate, s.cfg.ChunkSize, AudioFormat)); err != nil {
		logger.Warn().Err(err).Msg("Failed to send config frame")
		return
	}

	s.readLoop(sess)
}

// readLoop processes inbound frames in arrival order until the transport
// fails or the server shuts the session down. Decode failures are
// per-message: logged and skipped, never fatal to the connection.
func (s *Server) readLoop(sess *session.Session) {
	logger := sess.Logger()

	for {
		data, err := sess.Read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			logger.Warn().Err(err).Msg("Dropping malformed message")
			observability.RecordDecodeError()
			continue
		}

		switch f := frame.(type) {
		case protocol.Audio:
			s.handleAudio(sess, f)

		case protocol.Ping:
			observability.RecordPing()
			if err := sess.Send(protocol.NewPong()); err != nil {
				logger.Warn().Err(err).Msg("Failed to answer ping, closing session")
				return
			}

		default:
			// Only audio and ping are valid inbound types.
			logger.Debug().
				Str("frame_type", frame.FrameType()).
				Msg("Ignoring unexpected inbound message type")
		}
	}
}

// handleAudio classifies one chunk and queues it for the recognizer. Empty
// chunks are skipped entirely: not classified, not queued.
func (s *Server) handleAudio(sess *session.Session, f protocol.Audio) {
	if len(f.Data) == 0 {
		return
	}

	speech, err := s.gate.Classify(f.Data)
	if err != nil {
		sess.Logger().Warn().Err(err).Msg("VAD classification failed, dropping chunk")
		return
	}

	s.samples.Push(queue.Entry{Chunk: f.Data, IsSpeech: speech})
	observability.RecordChunk(speech)
}
