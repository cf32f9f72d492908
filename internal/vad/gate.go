package vad

import (
	"fmt"
)

// Gate converts raw audio chunks into speech/non-speech decisions by running
// them through a Model and comparing the score against a fixed threshold.
type Gate struct {
	model     Model
	threshold float64
}

// NewGate creates a gate with the given model and threshold. The threshold
// must lie in [0, 1]; anything else is a construction failure, never
// clamped.
func NewGate(model Model, threshold float64) (*Gate, error) {
	if model == nil {
		return nil, fmt.Errorf("vad gate requires a model")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("vad threshold must be between 0 and 1, got %g", threshold)
	}
	return &Gate{model: model, threshold: threshold}, nil
}

// Threshold returns the configured detection threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// Classify scores one chunk and reports whether it exceeds the threshold.
// Callers must not pass zero-length chunks; those are skipped upstream and
// never reach the model.
func (g *Gate) Classify(samples []float32) (bool, error) {
	score, err := g.model.Score(samples)
	if err != nil {
		return false, fmt.Errorf("score chunk: %w", err)
	}
	return score > g.threshold, nil
}
