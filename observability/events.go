package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	applied *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking ingested silo events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			applied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hooliganhorde",
				Subsystem: "events",
				Name:      "applied_total",
				Help:      "Count of silo events segmented by type and outcome.",
			}, []string{"type", "outcome"}),
		}
		prometheus.MustRegister(eventRegistry.applied)
	})
	return eventRegistry
}

// RecordEvent increments the event counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string, err error) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	outcome := "applied"
	if err != nil {
		outcome = "rejected"
	}
	m.applied.WithLabelValues(normalized, outcome).Inc()
}
