package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "remote_audio_connected_clients",
		Help: "Number of currently connected remote clients",
	})

	sessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remote_audio_sessions_total",
		Help: "Total number of client sessions accepted",
	})

	sessionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remote_audio_sessions_rejected_total",
		Help: "Total number of connections rejected at capacity",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "remote_audio_session_duration_seconds",
		Help:    "Duration of client sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
	})

	// Audio ingest metrics
	chunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remote_audio_chunks_total",
		Help: "Total number of audio chunks queued for recognition",
	}, []string{"speech"}) // speech: "true" or "false"

	decodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remote_audio_decode_errors_total",
		Help: "Total number of malformed or unknown inbound messages dropped",
	})

	pingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remote_audio_pings_total",
		Help: "Total number of client health probes answered",
	})

	// Broadcast metrics
	broadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remote_audio_broadcasts_total",
		Help: "Total number of frames broadcast to connected clients",
	}, []string{"type"})

	broadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remote_audio_broadcast_failures_total",
		Help: "Total number of per-session broadcast delivery failures",
	})

	// Playback metrics
	playbackActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "remote_audio_playback_active",
		Help: "Whether outbound audio playback is in progress (0 or 1)",
	})

	playbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remote_audio_playbacks_total",
		Help: "Total number of playback starts by outcome",
	}, []string{"outcome"}) // outcome: "completed", "interrupted", "no_audience"

	playbackDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "remote_audio_playback_duration_seconds",
		Help:    "Nominal duration of broadcast playback audio in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
	})
)

// RecordSessionStart records a newly admitted session.
func RecordSessionStart() {
	connectedClients.Inc()
	sessionsTotal.Inc()
}

// RecordSessionEnd records a closed session and its lifetime.
func RecordSessionEnd(start time.Time) {
	connectedClients.Dec()
	sessionDuration.Observe(time.Since(start).Seconds())
}

// RecordSessionRejected records a connection turned away at capacity.
func RecordSessionRejected() {
	sessionsRejected.Inc()
}

// RecordChunk records one classified audio chunk.
func RecordChunk(speech bool) {
	label := "false"
	if speech {
		label = "true"
	}
	chunksTotal.WithLabelValues(label).Inc()
}

// RecordDecodeError records a dropped inbound message.
func RecordDecodeError() {
	decodeErrors.Inc()
}

// RecordPing records an answered health probe.
func RecordPing() {
	pingsTotal.Inc()
}

// RecordBroadcast records one broadcast and how many member sends failed.
func RecordBroadcast(frameType string, failures int) {
	broadcastsTotal.WithLabelValues(frameType).Inc()
	if failures > 0 {
		broadcastFailures.Add(float64(failures))
	}
}

// RecordPlaybackStart records the start of a playback with its nominal
// duration.
func RecordPlaybackStart(duration time.Duration) {
	playbackActive.Set(1)
	playbackDuration.Observe(duration.Seconds())
}

// RecordPlaybackEnd records the end of a playback with its outcome.
func RecordPlaybackEnd(outcome string) {
	playbackActive.Set(0)
	playbacksTotal.WithLabelValues(outcome).Inc()
}

// RecordPlaybackSkipped records a playback that never started for lack of an
// audience.
func RecordPlaybackSkipped() {
	playbacksTotal.WithLabelValues("no_audience").Inc()
}
