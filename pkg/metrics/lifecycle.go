package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LifecycleMetrics tracks request lifecycle transitions and gateway traffic.
type LifecycleMetrics struct {
	transitions     *prometheus.CounterVec
	gatewayCalls    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

// NewLifecycleMetrics registers the lifecycle metrics on the provided registerer.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	if reg == nil {
		return &LifecycleMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_transitions_total",
		Help: "Status transitions applied per entity type.",
	}, []string{"entity", "to_status"})
	gatewayCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_calls_total",
		Help: "Payment gateway calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_call_duration_seconds",
		Help:    "Duration of payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(transitions, gatewayCalls, gatewayDuration)
	return &LifecycleMetrics{
		transitions:     transitions,
		gatewayCalls:    gatewayCalls,
		gatewayDuration: gatewayDuration,
	}
}

// IncTransition counts a status transition for the given entity type.
func (l *LifecycleMetrics) IncTransition(entity, toStatus string) {
	if l == nil || l.transitions == nil {
		return
	}
	l.transitions.WithLabelValues(normalizeLabel(entity), normalizeLabel(toStatus)).Inc()
}

// ObserveGatewayCall records one gateway round trip.
func (l *LifecycleMetrics) ObserveGatewayCall(operation, outcome string, duration time.Duration) {
	if l == nil || l.gatewayCalls == nil {
		return
	}
	l.gatewayCalls.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
	l.gatewayDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}
