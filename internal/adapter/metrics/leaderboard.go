package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/rankpulse/internal/app"
)

var _ app.LeaderboardObserver = (*LeaderboardMetrics)(nil)

// LeaderboardMetrics holds Prometheus metrics for leaderboard queries.
type LeaderboardMetrics struct {
	Queries     *prometheus.CounterVec
	SharedReads prometheus.Counter
}

// NewLeaderboardMetrics creates and registers leaderboard metrics on the given registry.
func NewLeaderboardMetrics(reg prometheus.Registerer) *LeaderboardMetrics {
	m := &LeaderboardMetrics{
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "queries_total",
			Help:      "Total number of leaderboard queries, by kind.",
		}, []string{"kind"}),
		SharedReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "shared_reads_total",
			Help:      "Total number of ranked queries answered by a store read already in flight.",
		}),
	}

	reg.MustRegister(m.Queries, m.SharedReads)
	return m
}

func (m *LeaderboardMetrics) ObserveQuery(kind string, shared bool) {
	m.Queries.WithLabelValues(kind).Inc()
	if shared {
		m.SharedReads.Inc()
	}
}
