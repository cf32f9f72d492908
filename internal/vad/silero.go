package vad

import (
	"fmt"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"
)

// SileroModel wraps the Silero ONNX voice activity detector. Detection is
// binary: a chunk containing at least one detected speech segment scores
// 1.0, anything else 0.0.
type SileroModel struct {
	mu       sync.Mutex
	detector *speech.Detector
}

// NewSileroModel loads the Silero model from the given ONNX file.
func NewSileroModel(modelPath string, sampleRate int) (*SileroModel, error) {
	detector, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            modelPath,
		SampleRate:           sampleRate,
		Threshold:            0.5,
		MinSilenceDurationMs: 0,
		SpeechPadMs:          0,
	})
	if err != nil {
		return nil, fmt.Errorf("create silero detector: %w", err)
	}
	return &SileroModel{detector: detector}, nil
}

// Score runs the detector on one chunk. The detector is stateful, so calls
// are serialized.
func (m *SileroModel) Score(samples []float32) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	segments, err := m.detector.Detect(samples)
	if err != nil {
		return 0, fmt.Errorf("silero detect: %w", err)
	}
	if len(segments) > 0 {
		return 1.0, nil
	}
	return 0.0, nil
}

// Close releases the ONNX runtime resources.
func (m *SileroModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.detector == nil {
		return nil
	}
	err := m.detector.Destroy()
	m.detector = nil
	return err
}
