package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/rankpulse/internal/app"
	"github.com/pscheid92/rankpulse/internal/domain"
)

var _ app.PairObserver = (*PairMetrics)(nil)

// PairMetrics holds Prometheus metrics for pair selection.
type PairMetrics struct {
	PairsServed *prometheus.CounterVec
	PoolSize    prometheus.Gauge
}

// NewPairMetrics creates and registers pair selection metrics on the given registry.
func NewPairMetrics(reg prometheus.Registerer) *PairMetrics {
	m := &PairMetrics{
		PairsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairs",
			Name:      "served_total",
			Help:      "Total number of pair requests, by result.",
		}, []string{"result"}),
		PoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pairs",
			Name:      "pool_size",
			Help:      "Number of candidates in the most recent pair selection.",
		}),
	}

	reg.MustRegister(m.PairsServed, m.PoolSize)
	return m
}

func (m *PairMetrics) ObservePair(poolSize int, err error) {
	m.PoolSize.Set(float64(poolSize))

	switch {
	case err == nil:
		m.PairsServed.WithLabelValues("ok").Inc()
	case errors.Is(err, domain.ErrInsufficientData):
		m.PairsServed.WithLabelValues("insufficient").Inc()
	default:
		m.PairsServed.WithLabelValues("error").Inc()
	}
}
