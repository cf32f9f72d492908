package session

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/voicelink/remote-audio/internal/observability"
	"github.com/voicelink/remote-audio/internal/protocol"
)

// Member is what the registry holds. *Session satisfies it; tests substitute
// fakes.
type Member interface {
	ID() string
	Send(f protocol.Frame) error
	Close() error
}

// Registry is the capacity-bounded set of live sessions. Add, Remove,
// Broadcast, CloseAll and Count are mutually exclusive, so no broadcast ever
// observes a half-updated member set.
type Registry struct {
	mu       sync.Mutex
	members  map[string]Member
	capacity int
	logger   zerolog.Logger
}

// NewRegistry creates a registry holding at most capacity members.
func NewRegistry(capacity int, logger zerolog.Logger) *Registry {
	return &Registry{
		members:  make(map[string]Member),
		capacity: capacity,
		logger:   logger,
	}
}

// Add registers a member. Returns false without registering when the
// registry is at capacity.
func (r *Registry) Add(m Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) >= r.capacity {
		return false
	}
	r.members[m.ID()] = m
	return true
}

// Remove unregisters a member. Idempotent; removing an absent member is a
// no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, id)
}

// Count returns the number of registered members.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Broadcast sends a frame to every member registered at call time. It never
// aborts early: every member is attempted, failures are collected, and the
// failing members are pruned after the fan-out completes. Returns the number
// of successful deliveries.
func (r *Registry) Broadcast(f protocol.Frame) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failed []string
	delivered := 0
	for id, m := range r.members {
		if err := m.Send(f); err != nil {
			r.logger.Warn().Err(err).
				Str("session_id", id).
				Str("frame_type", f.FrameType()).
				Msg("Broadcast delivery failed, pruning session")
			failed = append(failed, id)
			continue
		}
		delivered++
	}

	for _, id := range failed {
		if m, ok := r.members[id]; ok {
			_ = m.Close()
			delete(r.members, id)
		}
	}

	observability.RecordBroadcast(f.FrameType(), len(failed))
	return delivered
}

// CloseAll closes every member and empties the registry. Close errors are
// swallowed; this runs during shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, m := range r.members {
		_ = m.Close()
		delete(r.members, id)
	}
}
