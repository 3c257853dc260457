package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AssistantMetrics exposes counters/histograms for chat and dispatch flows.
type AssistantMetrics struct {
	messagesTotal   *prometheus.CounterVec
	safetyBlocked   *prometheus.CounterVec
	dispatchTotal   *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
}

func NewAssistantMetrics(reg prometheus.Registerer) *AssistantMetrics {
	m := &AssistantMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Inbound chat messages by channel and outcome",
		}, []string{"channel", "outcome"}),
		safetyBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "chat",
			Name:      "safety_blocked_total",
			Help:      "Messages refused by the safety classifier",
		}, []string{"direction"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "dispatch",
			Name:      "tickets_total",
			Help:      "Ticket dispatch results by outcome and error class",
		}, []string{"outcome", "error_class"}),
		dispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dental",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "End-to-end latency of a ticket dispatch",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.safetyBlocked, m.dispatchTotal, m.dispatchLatency)
	return m
}

// ObserveMessage counts one handled message. outcome is e.g. "replied", "confirmed", "refused", "error".
func (m *AssistantMetrics) ObserveMessage(channel, outcome string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(channel, outcome).Inc()
}

// ObserveSafetyBlock counts a refusal; direction is "inbound" or "outbound".
func (m *AssistantMetrics) ObserveSafetyBlock(direction string) {
	if m == nil {
		return
	}
	m.safetyBlocked.WithLabelValues(direction).Inc()
}

// ObserveDispatch records one dispatch run.
func (m *AssistantMetrics) ObserveDispatch(outcome, errorClass string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if errorClass == "" {
		errorClass = "none"
	}
	m.dispatchTotal.WithLabelValues(outcome, errorClass).Inc()
	m.dispatchLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
