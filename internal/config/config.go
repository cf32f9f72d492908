package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the remote audio gateway service
type Config struct {
	// Server configuration
	Port       int `envconfig:"PORT" default:"8765"`
	MaxClients int `envconfig:"MAX_CLIENTS" default:"10"`

	// Audio configuration
	SampleRate int `envconfig:"SAMPLE_RATE" default:"16000"` // Hz, mono float32
	ChunkSize  int `envconfig:"CHUNK_SIZE" default:"1024"`   // Samples per message (advisory)

	// Voice activity detection configuration
	VADThreshold float64 `envconfig:"VAD_THRESHOLD" default:"0.8"`      // Speech score cutoff in [0,1]
	VADModel     string  `envconfig:"VAD_MODEL" default:"energy"`       // "energy" or "silero"
	VADModelPath string  `envconfig:"VAD_MODEL_PATH" default:""`        // ONNX model file, silero only
	VADReference float64 `envconfig:"VAD_REFERENCE_LEVEL" default:"0.1"` // RMS saturation level, energy only

	// Shutdown configuration
	ShutdownTimeout int `envconfig:"SHUTDOWN_TIMEOUT" default:"5"` // Seconds to wait for session teardown

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the server must not start with. The VAD
// threshold in particular is never clamped.
func (c *Config) Validate() error {
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return fmt.Errorf("VAD_THRESHOLD must be between 0 and 1, got %g", c.VADThreshold)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be a valid TCP port, got %d", c.Port)
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("MAX_CLIENTS must be positive, got %d", c.MaxClients)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.VADModel != "energy" && c.VADModel != "silero" {
		return fmt.Errorf("VAD_MODEL must be \"energy\" or \"silero\", got %q", c.VADModel)
	}
	if c.VADModel == "silero" && c.VADModelPath == "" {
		return fmt.Errorf("VAD_MODEL_PATH is required when VAD_MODEL is \"silero\"")
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
