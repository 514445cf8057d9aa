package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/rankpulse/internal/app"
)

var _ app.VoteObserver = (*VoteMetrics)(nil)

// VoteMetrics holds Prometheus metrics for the vote processing pipeline.
type VoteMetrics struct {
	VotesProcessed     *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	RatingRetries      prometheus.Counter
}

// NewVoteMetrics creates and registers vote pipeline metrics on the given registry.
func NewVoteMetrics(reg prometheus.Registerer) *VoteMetrics {
	m := &VoteMetrics{
		VotesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_processed_total",
			Help:      "Total number of votes processed, by result.",
		}, []string{"result"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "votes_processing_duration_seconds",
			Help:      "Duration of vote processing in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		RatingRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_update_retries_total",
			Help:      "Total number of rating updates retried after losing a concurrent update.",
		}),
	}

	reg.MustRegister(m.VotesProcessed, m.ProcessingDuration, m.RatingRetries)
	return m
}

func (m *VoteMetrics) ObserveVote(result string, duration time.Duration) {
	m.VotesProcessed.WithLabelValues(result).Inc()
	m.ProcessingDuration.Observe(duration.Seconds())
}

func (m *VoteMetrics) ObserveRatingRetry() {
	m.RatingRetries.Inc()
}
