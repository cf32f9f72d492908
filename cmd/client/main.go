package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicelink/remote-audio/internal/client"
	"github.com/voicelink/remote-audio/internal/observability"
)

func main() {
	var (
		serverURL    = flag.String("server", "ws://localhost:8765", "WebSocket URL of the remote audio server")
		wavPath      = flag.String("wav", "", "WAV file to stream as microphone input (required)")
		outDir       = flag.String("out-dir", ".", "Directory for received playback WAV files")
		chunkSize    = flag.Int("chunk-size", 1024, "Samples per audio message")
		pingInterval = flag.Duration("ping-interval", 15*time.Second, "Keepalive ping interval")
		logLevel     = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	observability.InitLogger(*logLevel, true)
	logger := observability.GetLogger()

	if *wavPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: client --wav recording.wav [--server ws://host:port]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	f, err := os.Open(*wavPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *wavPath).Msg("Failed to open WAV file")
	}
	defer f.Close()

	source, err := client.NewWAVSource(f, *chunkSize)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *wavPath).Msg("Failed to read WAV file")
	}
	logger.Info().
		Str("path", *wavPath).
		Int("samples", source.Len()).
		Int("sample_rate", source.SampleRate()).
		Msg("Streaming recording as microphone input")

	c, err := client.New(client.Options{
		ServerURL:    *serverURL,
		PingInterval: *pingInterval,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid client options")
	}
	defer c.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		if errors.Is(err, client.ErrServerFull) {
			logger.Fatal().Msg("Server is at maximum capacity, try again later")
		}
		logger.Fatal().Err(err).Msg("Failed to connect")
	}

	if serverRate := c.ServerConfig().SampleRate; serverRate != source.SampleRate() {
		logger.Info().
			Int("from", source.SampleRate()).
			Int("to", serverRate).
			Msg("Resampling recording to the server's rate")
		source.ResampleTo(serverRate)
	}

	sink := &wavDirSink{dir: *outDir, logger: logger}
	if err := c.Run(ctx, source, sink); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("Session ended with an error")
	}

	logger.Info().Msg("Session finished")
}

// wavDirSink writes each playback the server pushes to a numbered WAV file.
type wavDirSink struct {
	dir    string
	logger zerolog.Logger
	count  int
}

func (s *wavDirSink) Play(samples []float32, sampleRate int, text string) error {
	s.count++
	path := filepath.Join(s.dir, fmt.Sprintf("playback_%03d.wav", s.count))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := client.EncodeWAV(f, samples, sampleRate); err != nil {
		return err
	}

	s.logger.Info().
		Str("path", path).
		Str("text", text).
		Int("samples", len(samples)).
		Msg("Saved playback audio")
	return nil
}

func (s *wavDirSink) Stop() {
	// Files are written whole; there is nothing in flight to interrupt.
	s.logger.Info().Msg("Server interrupted playback")
}
