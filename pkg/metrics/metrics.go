package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	inboundEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_inbound_events_total",
		Help: "Inbound conversation events by kind",
	}, []string{"kind"})

	phaseTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_phase_transitions_total",
		Help: "Conversation phase transitions",
	}, []string{"from", "to"})

	rejectedTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_phase_transitions_rejected_total",
		Help: "Transitions refused because they are not in the transition table",
	}, []string{"from", "to"})

	candidateCount = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bot_search_candidates",
		Help:    "Number of candidates returned per search",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
	})

	datasetLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_dataset_loads_total",
		Help: "Dataset load attempts by result (ok, synthetic, error)",
	}, []string{"result"})

	datasetRows = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_dataset_rows",
		Help: "Rows in the active dataset snapshot",
	})

	deliveryFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_delivery_edit_fallbacks_total",
		Help: "Message edits that failed and were replaced by a new message",
	})

	activeSessions = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "bot_active_sessions",
		Help: "Conversation sessions currently held in memory",
	}, func() float64 {
		sessionsMu.RLock()
		defer sessionsMu.RUnlock()
		if sessionsFn == nil {
			return 0
		}
		return float64(sessionsFn())
	})

	sessionsMu sync.RWMutex
	sessionsFn func() int
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(
			inboundEvents,
			phaseTransitions,
			rejectedTransitions,
			candidateCount,
			datasetLoads,
			datasetRows,
			deliveryFallbacks,
			activeSessions,
		)
	})
}

// IncEvent counts an inbound event.
func IncEvent(kind string) {
	ensureRegistered()
	inboundEvents.WithLabelValues(kind).Inc()
}

// IncTransition records a phase change.
func IncTransition(from, to string) {
	ensureRegistered()
	phaseTransitions.WithLabelValues(from, to).Inc()
}

// IncRejectedTransition records a transition refused by the table.
func IncRejectedTransition(from, to string) {
	ensureRegistered()
	rejectedTransitions.WithLabelValues(from, to).Inc()
}

// ObserveCandidates records the size of a candidate list.
func ObserveCandidates(n int) {
	ensureRegistered()
	candidateCount.Observe(float64(n))
}

// ObserveDatasetLoad records a load attempt; rows is ignored on error.
func ObserveDatasetLoad(result string, rows int) {
	ensureRegistered()
	datasetLoads.WithLabelValues(result).Inc()
	if result != "error" {
		datasetRows.Set(float64(rows))
	}
}

// IncDeliveryFallback counts an edit that fell back to a new message.
func IncDeliveryFallback() {
	ensureRegistered()
	deliveryFallbacks.Inc()
}

// TrackSessions makes the active session gauge read from fn.
func TrackSessions(fn func() int) {
	ensureRegistered()
	sessionsMu.Lock()
	sessionsFn = fn
	sessionsMu.Unlock()
}
