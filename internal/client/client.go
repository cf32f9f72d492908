package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voicelink/remote-audio/internal/observability"
	"github.com/voicelink/remote-audio/internal/protocol"
	"github.com/voicelink/remote-audio/internal/resilience"
)

// ErrServerFull is returned by Connect when the server rejects the
// connection because it is at capacity.
var ErrServerFull = errors.New("server at maximum capacity")

const (
	defaultPingInterval = 15 * time.Second
	writeTimeout        = 5 * time.Second
	configTimeout       = 10 * time.Second
)

// ChunkSource yields successive chunks of microphone audio. It returns
// io.EOF when the source is exhausted.
type ChunkSource interface {
	NextChunk() ([]float32, error)
}

// PlaybackSink receives playback commands pushed by the server.
type PlaybackSink interface {
	Play(samples []float32, sampleRate int, text string) error
	Stop()
}

// Options configures a Client. ServerURL is required; everything else has a
// usable zero value.
type Options struct {
	ServerURL    string
	PingInterval time.Duration
	DialTimeout  time.Duration
	Reconnect    *resilience.ReconnectConfig
	Logger       *zerolog.Logger
}

// Client streams microphone audio to a remote audio server and dispatches
// the playback commands the server pushes back.
type Client struct {
	opts      Options
	logger    zerolog.Logger
	conn      *websocket.Conn
	serverCfg protocol.Config

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// New validates the options and returns an unconnected client.
func New(opts Options) (*Client, error) {
	if opts.ServerURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}

	logger := observability.GetLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "client").Str("server", opts.ServerURL).Logger()

	return &Client{opts: opts, logger: logger}, nil
}

// Connect dials the server, retrying with backoff, and waits for the
// config frame that opens every session. A capacity rejection is reported
// as ErrServerFull and is not retried.
func (c *Client) Connect(ctx context.Context) error {
	dial := func() error {
		dialer := websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
		conn, _, err := dialer.DialContext(ctx, c.opts.ServerURL, nil)
		if err != nil {
			return fmt.Errorf("dial %s: %w", c.opts.ServerURL, err)
		}

		cfg, err := c.awaitConfig(conn)
		if err != nil {
			conn.Close()
			if errors.Is(err, ErrServerFull) {
				// The server is up but has no room; backing off and
				// redialing will just get rejected again.
				return resilience.Permanent(err)
			}
			return err
		}

		c.conn = conn
		c.serverCfg = cfg
		return nil
	}

	if err := resilience.Reconnect(ctx, dial, c.opts.Reconnect, c.logger); err != nil {
		return err
	}

	c.logger.Info().
		Int("sample_rate", c.serverCfg.SampleRate).
		Int("chunk_size", c.serverCfg.ChunkSize).
		Str("format", c.serverCfg.Format).
		Msg("Connected, configuration received")

	return nil
}

// awaitConfig reads the first frame of the session. Anything other than a
// config frame means admission failed.
func (c *Client) awaitConfig(conn *websocket.Conn) (protocol.Config, error) {
	conn.SetReadDeadline(time.Now().Add(configTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return protocol.Config{}, fmt.Errorf("read config frame: %w", err)
	}

	frame, err := protocol.Decode(data)
	if err != nil {
		return protocol.Config{}, fmt.Errorf("decode config frame: %w", err)
	}

	switch f := frame.(type) {
	case protocol.Config:
		return f, nil
	case protocol.Error:
		return protocol.Config{}, fmt.Errorf("%w: %s", ErrServerFull, f.Message)
	default:
		return protocol.Config{}, fmt.Errorf("expected config as first frame, got %s", frame.FrameType())
	}
}

// ServerConfig returns the configuration the server announced on connect.
// Valid only after Connect succeeds.
func (c *Client) ServerConfig() protocol.Config {
	return c.serverCfg
}

// Run streams chunks from source until it is exhausted or the connection
// drops, answering server playback commands through sink. It blocks until
// the connection ends or ctx is cancelled; a normal remote close returns
// nil.
func (c *Client) Run(ctx context.Context, source ChunkSource, sink PlaybackSink) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.pingLoop(ctx)
	go c.sendLoop(ctx, source)

	// Cancellation has to unblock the read below.
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	return c.receiveLoop(sink)
}

// pingLoop probes connection health at a fixed interval.
func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.send(protocol.NewPing()); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to send ping")
				return
			}
		}
	}
}

// sendLoop forwards chunks from the source until it runs dry.
func (c *Client) sendLoop(ctx context.Context, source ChunkSource) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		chunk, err := source.NextChunk()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Error().Err(err).Msg("Audio source failed")
			}
			return
		}
		if len(chunk) == 0 {
			continue
		}

		if err := c.send(protocol.NewAudio(chunk)); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to send audio chunk")
			return
		}
	}
}

// receiveLoop dispatches server frames until the connection ends. Decode
// failures are logged and skipped.
func (c *Client) receiveLoop(sink PlaybackSink) error {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info().Msg("Server closed the connection")
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Dropping malformed server message")
			continue
		}

		switch f := frame.(type) {
		case protocol.Pong:
			c.logger.Debug().Msg("Pong received")

		case protocol.AudioPlayback:
			c.logger.Info().
				Int("samples", len(f.Data)).
				Str("text", f.Text).
				Msg("Playback requested")
			if err := sink.Play(f.Data, f.SampleRate, f.Text); err != nil {
				c.logger.Error().Err(err).Msg("Playback failed")
			}

		case protocol.StopPlayback:
			c.logger.Info().Msg("Playback interrupted by server")
			sink.Stop()

		case protocol.Error:
			c.logger.Error().Str("message", f.Message).Msg("Server reported an error")

		default:
			c.logger.Debug().Str("frame_type", frame.FrameType()).Msg("Ignoring unexpected frame")
		}
	}
}

func (c *Client) send(f protocol.Frame) error {
	data, err := protocol.Encode(f)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}
