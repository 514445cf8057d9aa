package metrics

import "github.com/prometheus/client_golang/prometheus"

// EventMetrics holds Prometheus metrics for domain event fan-out.
type EventMetrics struct {
	Delivered *prometheus.CounterVec
	Failed    *prometheus.CounterVec
	Dropped   prometheus.Counter
	QueueLen  prometheus.Gauge
}

// NewEventMetrics creates and registers event fan-out metrics on the given registry.
func NewEventMetrics(reg prometheus.Registerer) *EventMetrics {
	m := &EventMetrics{
		Delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "delivered_total",
			Help:      "Total number of events delivered, by sink and kind.",
		}, []string{"sink", "kind"}),
		Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "failed_total",
			Help:      "Total number of event deliveries that failed, by sink.",
		}, []string{"sink"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Total number of events dropped because the queue was full.",
		}),
		QueueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "queue_length",
			Help:      "Number of events waiting for delivery.",
		}),
	}

	reg.MustRegister(m.Delivered, m.Failed, m.Dropped, m.QueueLen)
	return m
}
