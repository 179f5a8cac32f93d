package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"stellavault/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// EventCounters returns the metrics registry tracking structured engine
// events by type.
func EventCounters() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stellavault",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Engine events emitted, segmented by event type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// MeteredEmitter counts every event before forwarding it to the wrapped
// emitter. Wrapping a nil emitter meters into the void.
type MeteredEmitter struct {
	next events.Emitter
}

// NewMeteredEmitter wraps next with per-type event counters.
func NewMeteredEmitter(next events.Emitter) *MeteredEmitter {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &MeteredEmitter{next: next}
}

// Emit implements the events.Emitter interface.
func (m *MeteredEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	EventCounters().emitted.WithLabelValues(evt.EventType()).Inc()
	m.next.Emit(evt)
}
