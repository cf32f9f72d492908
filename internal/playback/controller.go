package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicelink/remote-audio/internal/observability"
	"github.com/voicelink/remote-audio/internal/protocol"
)

// Broadcaster is the slice of the session registry the controller needs.
type Broadcaster interface {
	Broadcast(f protocol.Frame) int
	Count() int
}

// Controller tracks whether outbound audio is currently being played to
// remote clients. At most one playback is in flight; starting a new one
// implicitly stops the previous one. Completion is simulated with a timer
// for the audio's nominal duration, since clients send no acknowledgment.
type Controller struct {
	mu          sync.Mutex
	playing     bool
	generation  uint64
	defaultRate int
	registry    Broadcaster
	logger      zerolog.Logger
}

// NewController creates an idle controller. defaultRate is used when a
// playback does not carry its own sample rate.
func NewController(registry Broadcaster, defaultRate int, logger zerolog.Logger) *Controller {
	return &Controller{
		defaultRate: defaultRate,
		registry:    registry,
		logger:      logger,
	}
}

// Start broadcasts audio to every connected client and begins tracking its
// playback. Empty audio is a precondition failure, rejected before any state
// change or broadcast. With no clients connected the playback is skipped
// with a warning and the state stays idle.
func (c *Controller) Start(samples []float32, sampleRate int, text string) error {
	if len(samples) == 0 {
		return fmt.Errorf("invalid audio data: empty chunk")
	}
	if sampleRate <= 0 {
		sampleRate = c.defaultRate
	}

	// At most one playback in flight.
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registry.Count() == 0 {
		c.logger.Warn().Msg("No remote clients connected for audio playback")
		observability.RecordPlaybackSkipped()
		return nil
	}

	duration := time.Duration(float64(len(samples)) / float64(sampleRate) * float64(time.Second))

	c.playing = true
	c.generation++
	generation := c.generation

	c.logger.Debug().
		Int("clients", c.registry.Count()).
		Int("samples", len(samples)).
		Dur("duration", duration).
		Msg("Broadcasting audio to remote clients")

	c.registry.Broadcast(protocol.NewAudioPlayback(samples, sampleRate, text))
	observability.RecordPlaybackStart(duration)

	// Simulated completion. The generation check keeps a stale timer from
	// resetting a playback started after this one.
	time.AfterFunc(duration, func() {
		c.complete(generation)
	})

	return nil
}

func (c *Controller) complete(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing || c.generation != generation {
		return
	}
	c.playing = false
	observability.RecordPlaybackEnd("completed")
}

// Stop halts the current playback and tells every client to stop. No-op
// when idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		return
	}
	c.playing = false
	c.generation++ // Invalidate the pending completion timer

	c.registry.Broadcast(protocol.NewStopPlayback())
	observability.RecordPlaybackEnd("interrupted")
}

// Speaking reports whether a playback is in flight.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Progress reports (interrupted, percentage) for the current playback. The
// signal is a coarse simulation: 0% while playing, 100% once idle,
// regardless of elapsed time. The arguments describe the audio the caller
// is asking about and are accepted for interface compatibility.
func (c *Controller) Progress(totalSamples, sampleRate int) (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playing {
		return false, 0
	}
	return true, 100
}
