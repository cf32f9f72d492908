package audioio

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/voicelink/remote-audio/internal/config"
	"github.com/voicelink/remote-audio/internal/observability"
	"github.com/voicelink/remote-audio/internal/playback"
	"github.com/voicelink/remote-audio/internal/queue"
	"github.com/voicelink/remote-audio/internal/session"
	"github.com/voicelink/remote-audio/internal/vad"
)

// AudioFormat is the wire sample format advertised to clients.
const AudioFormat = "float32"

// Config is the construction-time configuration of the server. All fields
// are fixed once the server is created.
type Config struct {
	Port            int
	MaxClients      int
	SampleRate      int
	ChunkSize       int
	VADThreshold    float64
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
}

// DefaultConfig returns the standard deployment settings: port 8765, 16kHz
// mono float32 in 1024-sample chunks, at most 10 clients, VAD threshold 0.8.
func DefaultConfig() Config {
	return Config{
		Port:            8765,
		MaxClients:      10,
		SampleRate:      16000,
		ChunkSize:       1024,
		VADThreshold:    0.8,
		ShutdownTimeout: 5 * time.Second,
		MetricsEnabled:  true,
	}
}

// FromEnv maps the environment-backed service configuration onto a server
// Config.
func FromEnv(c *config.Config) Config {
	return Config{
		Port:            c.Port,
		MaxClients:      c.MaxClients,
		SampleRate:      c.SampleRate,
		ChunkSize:       c.ChunkSize,
		VADThreshold:    c.VADThreshold,
		ShutdownTimeout: time.Duration(c.ShutdownTimeout) * time.Second,
		MetricsEnabled:  c.MetricsEnabled,
	}
}

// Server accepts WebSocket connections from remote microphones, gates their
// audio through VAD into a shared sample queue, and broadcasts synthesized
// speech back to every connected client. It is the implementation of the
// audio I/O contract consumed by the recognition/synthesis layer.
type Server struct {
	cfg        Config
	gate       *vad.Gate
	samples    *queue.SampleQueue
	registry   *session.Registry
	controller *playback.Controller
	logger     zerolog.Logger

	mu         sync.Mutex
	listening  bool
	listener   net.Listener
	httpServer *http.Server
}

// New constructs a server. The VAD model is a black box; an out-of-range
// threshold is a construction failure.
func New(cfg Config, model vad.Model) (*Server, error) {
	gate, err := vad.NewGate(model, cfg.VADThreshold)
	if err != nil {
		return nil, err
	}
	if cfg.MaxClients <= 0 {
		return nil, fmt.Errorf("max clients must be positive, got %d", cfg.MaxClients)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	logger := observability.GetLogger().With().Str("component", "audioio").Logger()
	registry := session.NewRegistry(cfg.MaxClients, logger)

	return &Server{
		cfg:        cfg,
		gate:       gate,
		samples:    queue.NewSampleQueue(),
		registry:   registry,
		controller: playback.NewController(registry, cfg.SampleRate, logger),
		logger:     logger,
	}, nil
}

// StartListening binds the listen port and starts accepting connections.
// Idempotent; calling it while already listening is a no-op. A bind failure
// is fatal and returned to the caller.
func (s *Server) StartListening() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listening {
		return nil
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("bind port %d: %w", s.cfg.Port, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"listener": func(ctx context.Context) (bool, error) {
			return s.Listening(), nil
		},
	}))
	if s.cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	s.listener = listener
	s.httpServer = &http.Server{Handler: mux}
	s.listening = true

	go func(server *http.Server, ln net.Listener) {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("WebSocket server failed")
		}
	}(s.httpServer, listener)

	s.logger.Info().
		Str("addr", listener.Addr().String()).
		Int("max_clients", s.cfg.MaxClients).
		Msg("Remote audio server started, waiting for microphone connections")

	return nil
}

// StopListening stops accepting connections and closes every live session.
// Close errors are swallowed; shutdown waits at most ShutdownTimeout.
// Idempotent.
func (s *Server) StopListening() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.listening {
		return
	}
	s.listening = false

	// Closing the transports unblocks every session read loop. The
	// hijacked WebSocket connections are not tracked by http.Server, so
	// they must be closed explicitly.
	s.registry.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Server shutdown did not complete cleanly")
	}

	s.httpServer = nil
	s.listener = nil

	s.logger.Info().Msg("Remote audio server stopped")
}

// Listening reports whether the accept loop is running.
func (s *Server) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// Addr returns the bound listen address, or "" when not listening. Useful
// when the configured port is 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// StartSpeaking broadcasts synthesized audio to every connected client and
// tracks its playback. sampleRate <= 0 selects the server's configured
// rate.
func (s *Server) StartSpeaking(samples []float32, sampleRate int, text string) error {
	return s.controller.Start(samples, sampleRate, text)
}

// StopSpeaking interrupts the current playback, if any.
func (s *Server) StopSpeaking() {
	s.controller.Stop()
}

// CheckIfSpeaking reports whether audio is currently being played to remote
// clients.
func (s *Server) CheckIfSpeaking() bool {
	return s.controller.Speaking()
}

// MeasurePercentageSpoken reports (interrupted, percentage) for the current
// playback.
func (s *Server) MeasurePercentageSpoken(totalSamples, sampleRate int) (bool, int) {
	return s.controller.Progress(totalSamples, sampleRate)
}

// SampleQueue returns the shared queue of (chunk, isSpeech) entries feeding
// the downstream recognizer.
func (s *Server) SampleQueue() *queue.SampleQueue {
	return s.samples
}

// ConnectedClients returns the number of currently connected remote
// clients.
func (s *Server) ConnectedClients() int {
	return s.registry.Count()
}

// Close shuts the server down for good: stops listening and closes the
// sample queue so a blocked consumer observes the shutdown.
func (s *Server) Close() {
	s.StopListening()
	s.samples.Close()
}
