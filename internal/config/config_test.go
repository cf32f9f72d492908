package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != 8765 {
		t.Errorf("Expected default Port 8765, got %d", cfg.Port)
	}
	if cfg.MaxClients != 10 {
		t.Errorf("Expected default MaxClients 10, got %d", cfg.MaxClients)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("Expected default SampleRate 16000, got %d", cfg.SampleRate)
	}
	if cfg.ChunkSize != 1024 {
		t.Errorf("Expected default ChunkSize 1024, got %d", cfg.ChunkSize)
	}
	if cfg.VADThreshold != 0.8 {
		t.Errorf("Expected default VADThreshold 0.8, got %f", cfg.VADThreshold)
	}
	if cfg.VADModel != "energy" {
		t.Errorf("Expected default VADModel 'energy', got '%s'", cfg.VADModel)
	}
}

func TestLoad_ObservabilityDefaults(t *testing.T) {
	clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}
	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv()
	os.Setenv("PORT", "9000")
	os.Setenv("VAD_THRESHOLD", "0.5")
	os.Setenv("MAX_CLIENTS", "3")
	defer clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Expected Port 9000, got %d", cfg.Port)
	}
	if cfg.VADThreshold != 0.5 {
		t.Errorf("Expected VADThreshold 0.5, got %f", cfg.VADThreshold)
	}
	if cfg.MaxClients != 3 {
		t.Errorf("Expected MaxClients 3, got %d", cfg.MaxClients)
	}
}

func TestLoad_InvalidThreshold(t *testing.T) {
	clearEnv()
	defer clearEnv()

	for _, threshold := range []string{"-0.1", "1.5", "2"} {
		os.Setenv("VAD_THRESHOLD", threshold)
		if _, err := Load(); err == nil {
			t.Errorf("Expected Load() to fail for VAD_THRESHOLD=%s", threshold)
		}
	}
}

func TestLoad_ThresholdBoundaries(t *testing.T) {
	clearEnv()
	defer clearEnv()

	for _, threshold := range []string{"0", "1", "0.8"} {
		os.Setenv("VAD_THRESHOLD", threshold)
		if _, err := Load(); err != nil {
			t.Errorf("Expected Load() to succeed for VAD_THRESHOLD=%s: %v", threshold, err)
		}
	}
}

func TestLoad_SileroRequiresModelPath(t *testing.T) {
	clearEnv()
	os.Setenv("VAD_MODEL", "silero")
	defer clearEnv()

	if _, err := Load(); err == nil {
		t.Error("Expected Load() to fail for silero model without VAD_MODEL_PATH")
	}

	os.Setenv("VAD_MODEL_PATH", "/models/silero_vad.onnx")
	if _, err := Load(); err != nil {
		t.Errorf("Expected Load() to succeed with VAD_MODEL_PATH set: %v", err)
	}
}

func TestLoad_UnknownVADModel(t *testing.T) {
	clearEnv()
	os.Setenv("VAD_MODEL", "quantum")
	defer clearEnv()

	if _, err := Load(); err == nil {
		t.Error("Expected Load() to fail for unknown VAD_MODEL")
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := &Config{Port: 0, MaxClients: 10, SampleRate: 16000, ChunkSize: 1024, VADThreshold: 0.8, VADModel: "energy"}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected Validate() to fail for port 0")
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	if value := GetEnv("TEST_KEY", "default"); value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	if value := GetEnv("NON_EXISTENT_KEY", "default"); value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func clearEnv() {
	for _, key := range []string{
		"PORT", "MAX_CLIENTS", "SAMPLE_RATE", "CHUNK_SIZE",
		"VAD_THRESHOLD", "VAD_MODEL", "VAD_MODEL_PATH", "VAD_REFERENCE_LEVEL",
		"SHUTDOWN_TIMEOUT", "LOG_LEVEL", "LOG_PRETTY", "METRICS_ENABLED",
	} {
		os.Unsetenv(key)
	}
}
