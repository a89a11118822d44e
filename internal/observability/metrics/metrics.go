package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for booking and queue flows.
type SchedulingMetrics struct {
	bookingsTotal     *prometheus.CounterVec
	queueActionsTotal *prometheus.CounterVec
	tokensIssued      *prometheus.CounterVec
	lockWait          prometheus.Histogram
	conflictsTotal    prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		queueActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "queue_actions_total",
			Help:      "Queue actions by action and outcome",
		}, []string{"action", "outcome"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "tokens_issued_total",
			Help:      "Queue tokens issued by admission path",
		}, []string{"path"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "doctor_lock_wait_seconds",
			Help:      "Time spent waiting for a doctor aggregate lock",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "version_conflicts_total",
			Help:      "Doctor saves retried after a version conflict",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.queueActionsTotal, m.tokensIssued, m.lockWait, m.conflictsTotal)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveQueueAction(action, outcome string) {
	if m == nil {
		return
	}
	m.queueActionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveTokenIssued(path string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(path).Inc()
}

func (m *SchedulingMetrics) ObserveLockWait(seconds float64) {
	if m == nil {
		return
	}
	m.lockWait.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveMutationConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

// ConversationMetrics exposes counters/histograms for the chat endpoint.
type ConversationMetrics struct {
	intentsTotal *prometheus.CounterVec
	hintTotal    *prometheus.CounterVec
	hintLatency  prometheus.Histogram
	turnLatency  *prometheus.HistogramVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "conversation",
			Name:      "intents_total",
			Help:      "Resolved intents",
		}, []string{"intent"}),
		hintTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "conversation",
			Name:      "intent_hint_requests_total",
			Help:      "External intent hint requests by status",
		}, []string{"status"}),
		hintLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "conversation",
			Name:      "intent_hint_latency_seconds",
			Help:      "Latency of the external intent hint including retries",
			Buckets:   prometheus.DefBuckets,
		}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of a conversation turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"intent"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.intentsTotal, m.hintTotal, m.hintLatency, m.turnLatency)
	return m
}

func (m *ConversationMetrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(intent).Inc()
}

func (m *ConversationMetrics) ObserveHint(status string, seconds float64) {
	if m == nil {
		return
	}
	m.hintTotal.WithLabelValues(status).Inc()
	m.hintLatency.Observe(seconds)
}

func (m *ConversationMetrics) ObserveTurn(intent string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(intent).Observe(seconds)
}
