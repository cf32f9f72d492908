package vad

import (
	"github.com/voicelink/remote-audio/internal/audio"
)

// Model scores an audio chunk for voice activity. Implementations return a
// confidence in [0, 1] that the chunk contains speech. The model is treated
// as a black box by the rest of the system.
type Model interface {
	Score(samples []float32) (float64, error)
}

// EnergyModel is a reference Model based on RMS energy. A chunk's RMS is
// scaled against a reference level and clipped to [0, 1]. It needs no
// external runtime and serves as the default model.
type EnergyModel struct {
	// ReferenceLevel is the RMS at which the score saturates to 1.0.
	// Typical speech at normal microphone gain sits around 0.05-0.3 RMS.
	ReferenceLevel float64
}

// DefaultReferenceLevel maps conversational speech levels onto the upper
// half of the score range.
const DefaultReferenceLevel = 0.1

// NewEnergyModel creates an energy model with the given reference level,
// falling back to DefaultReferenceLevel for non-positive values.
func NewEnergyModel(referenceLevel float64) *EnergyModel {
	if referenceLevel <= 0 {
		referenceLevel = DefaultReferenceLevel
	}
	return &EnergyModel{ReferenceLevel: referenceLevel}
}

// Score returns the chunk's RMS energy relative to the reference level.
func (m *EnergyModel) Score(samples []float32) (float64, error) {
	score := audio.RMS(samples) / m.ReferenceLevel
	if score > 1.0 {
		score = 1.0
	}
	return score, nil
}
