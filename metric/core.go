package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fnruntime"

// Invocation outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeRejected = "rejected"
)

// Metrics contains the runtime metrics
type Metrics struct {
	Invocations        *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec
	Timeouts           *prometheus.CounterVec
	TranslationErrors  *prometheus.CounterVec
	Inflight           *prometheus.GaugeVec

	// NATS event source
	NATSConnected   prometheus.Gauge
	NATSReconnects  prometheus.Counter
	TriggerMessages *prometheus.CounterVec
}

// NewMetrics creates the runtime metrics
func NewMetrics() *Metrics {
	return &Metrics{
		Invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of function invocations by outcome",
			},
			[]string{"target", "kind", "outcome"},
		),

		InvocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_seconds",
				Help:      "Function invocation duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"target", "kind"},
		),

		Timeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "timeouts_total",
				Help:      "Total number of invocations that exceeded the deadline",
			},
			[]string{"target"},
		),

		TranslationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translation_errors_total",
				Help:      "Total number of events that could not be translated",
			},
			[]string{"reason"},
		),

		Inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inflight",
				Help:      "Number of invocations in progress",
			},
			[]string{"target"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		TriggerMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "trigger",
				Name:      "messages_total",
				Help:      "Total number of NATS messages delivered to the function",
			},
			[]string{"subject", "status"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Invocations,
		m.InvocationDuration,
		m.Timeouts,
		m.TranslationErrors,
		m.Inflight,
		m.NATSConnected,
		m.NATSReconnects,
		m.TriggerMessages,
	}
}

// InvocationStarted marks an invocation of target as in progress
func (m *Metrics) InvocationStarted(target string) {
	if m == nil {
		return
	}
	m.Inflight.WithLabelValues(target).Inc()
}

// InvocationFinished records the outcome of an invocation started with InvocationStarted
func (m *Metrics) InvocationFinished(target, kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Inflight.WithLabelValues(target).Dec()
	m.Invocations.WithLabelValues(target, kind, outcome).Inc()
	m.InvocationDuration.WithLabelValues(target, kind).Observe(d.Seconds())
	if outcome == OutcomeTimeout {
		m.Timeouts.WithLabelValues(target).Inc()
	}
}

// InvocationRejected records a request refused before user code ran
func (m *Metrics) InvocationRejected(target, kind string) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(target, kind, OutcomeRejected).Inc()
}

// TranslationFailed records an event translation failure
func (m *Metrics) TranslationFailed(reason string) {
	if m == nil {
		return
	}
	m.TranslationErrors.WithLabelValues(reason).Inc()
}

// NATSStatus records the NATS connection state
func (m *Metrics) NATSStatus(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.NATSConnected.Set(1)
	} else {
		m.NATSConnected.Set(0)
	}
}

// NATSReconnected counts a NATS reconnection
func (m *Metrics) NATSReconnected() {
	if m == nil {
		return
	}
	m.NATSReconnects.Inc()
}

// TriggerMessage records a NATS message handled by the event source
func (m *Metrics) TriggerMessage(subject, status string) {
	if m == nil {
		return
	}
	m.TriggerMessages.WithLabelValues(subject, status).Inc()
}
