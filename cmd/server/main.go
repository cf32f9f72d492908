package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voicelink/remote-audio/internal/audio"
	"github.com/voicelink/remote-audio/internal/audioio"
	"github.com/voicelink/remote-audio/internal/config"
	"github.com/voicelink/remote-audio/internal/observability"
	"github.com/voicelink/remote-audio/internal/queue"
	"github.com/voicelink/remote-audio/internal/vad"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Int("port", cfg.Port).
		Int("max_clients", cfg.MaxClients).
		Int("sample_rate", cfg.SampleRate).
		Str("vad_model", cfg.VADModel).
		Float64("vad_threshold", cfg.VADThreshold).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Remote audio server starting")

	model, closeModel, err := buildVADModel(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize VAD model")
	}
	defer closeModel()

	server, err := audioio.New(audioio.FromEnv(cfg), model)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create server")
	}

	if err := server.StartListening(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start listening")
	}

	// Drain the sample queue. A speech pipeline would attach here; standalone
	// the server just accounts for what arrives.
	go consumeSamples(server.SampleQueue(), cfg.SampleRate)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	server.Close()
	logger.Info().Msg("Server exited gracefully")
}

// buildVADModel selects the configured speech detector. The returned cleanup
// releases model resources and is always safe to call.
func buildVADModel(cfg *config.Config) (vad.Model, func(), error) {
	switch cfg.VADModel {
	case "energy":
		return vad.NewEnergyModel(cfg.VADReference), func() {}, nil
	case "silero":
		model, err := vad.NewSileroModel(cfg.VADModelPath, cfg.SampleRate)
		if err != nil {
			return nil, func() {}, err
		}
		return model, func() { _ = model.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown VAD model %q", cfg.VADModel)
	}
}

// consumeSamples logs periodic throughput until the queue closes. A ring
// buffer keeps roughly the last second of speech for the level report.
func consumeSamples(samples *queue.SampleQueue, sampleRate int) {
	logger := observability.GetLogger().With().Str("component", "consumer").Logger()

	var total, speech int
	window := audio.NewRingBuffer(sampleRate + 1)
	lastReport := time.Now()

	for {
		entry, ok := samples.Pop(time.Second)
		if !ok {
			if samples.Closed() {
				logger.Info().Int("chunks", total).Int("speech_chunks", speech).Msg("Sample queue closed")
				return
			}
			continue
		}

		total++
		if entry.IsSpeech {
			speech++
			window.Write(entry.Chunk)
		}

		if time.Since(lastReport) >= 30*time.Second {
			logger.Info().
				Int("chunks", total).
				Int("speech_chunks", speech).
				Float64("speech_level", audio.RMS(window.Drain())).
				Msg("Audio intake")
			lastReport = time.Now()
		}
	}
}
