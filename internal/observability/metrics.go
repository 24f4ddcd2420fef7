package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Room metrics
	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livecap_active_rooms",
		Help: "Number of rooms currently registered",
	})

	activeViewers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livecap_active_viewers",
		Help: "Number of viewer connections across all rooms",
	})

	activeBroadcasters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livecap_active_broadcasters",
		Help: "Number of broadcaster connections across all rooms",
	})

	roomsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livecap_rooms_evicted_total",
		Help: "Total idle rooms removed by the sweeper",
	})

	// Caption pipeline metrics
	captionsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livecap_captions_total",
		Help: "Total caption messages broadcast to rooms",
	})

	viewersPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livecap_viewers_pruned_total",
		Help: "Total viewer connections removed after a failed delivery",
	})

	// STT metrics
	sttSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livecap_stt_sessions_total",
		Help: "Total STT session open attempts",
	}, []string{"status"})

	audioBytesForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livecap_audio_bytes_total",
		Help: "Total audio bytes forwarded to the STT session",
	})

	audioChunksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livecap_audio_chunks_dropped_total",
		Help: "Total audio chunks dropped below the minimum size threshold",
	})

	transcriptsFinal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livecap_transcripts_final_total",
		Help: "Total finalized transcripts received from the STT session",
	})

	// Translation metrics
	translationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livecap_translation_requests_total",
		Help: "Total translation requests",
	}, []string{"status"})

	translationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "livecap_translation_latency_seconds",
		Help:    "Translation call latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Heartbeat metrics
	heartbeatTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livecap_heartbeat_timeouts_total",
		Help: "Total viewer connections closed after a heartbeat timeout",
	})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "livecap_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})
)

// RoomOpened records a newly registered room
func RoomOpened() { activeRooms.Inc() }

// RoomClosed records a removed room
func RoomClosed() { activeRooms.Dec() }

// RoomEvicted records a room removed by the idle sweeper
func RoomEvicted() {
	roomsEvicted.Inc()
	activeRooms.Dec()
}

// ViewerJoined records a viewer added to a room
func ViewerJoined() { activeViewers.Inc() }

// ViewerLeft records a viewer removed from a room
func ViewerLeft() { activeViewers.Dec() }

// BroadcasterAttached records a broadcaster connection
func BroadcasterAttached() { activeBroadcasters.Inc() }

// BroadcasterDetached records a broadcaster disconnect
func BroadcasterDetached() { activeBroadcasters.Dec() }

// RecordCaption records one caption fan-out pass
func RecordCaption() { captionsBroadcast.Inc() }

// RecordPrunedViewers records viewers removed after failed deliveries
func RecordPrunedViewers(n int) { viewersPruned.Add(float64(n)) }

// RecordSTTSession records an STT session open attempt
func RecordSTTSession(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	sttSessions.WithLabelValues(status).Inc()
}

// RecordAudioBytes records audio bytes forwarded upstream
func RecordAudioBytes(n int) { audioBytesForwarded.Add(float64(n)) }

// RecordDroppedChunk records an audio chunk below the size threshold
func RecordDroppedChunk() { audioChunksDropped.Inc() }

// RecordFinalTranscript records a finalized transcript
func RecordFinalTranscript() { transcriptsFinal.Inc() }

// RecordTranslation records a translation call outcome and latency
func RecordTranslation(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	translationRequests.WithLabelValues(status).Inc()
	translationLatency.Observe(seconds)
}

// RecordHeartbeatTimeout records a viewer evicted by the heartbeat
func RecordHeartbeatTimeout() { heartbeatTimeouts.Inc() }

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}
