package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/rankpulse/internal/app"
	"github.com/pscheid92/rankpulse/internal/domain"
)

func TestVoteMetrics(t *testing.T) {
	m := NewVoteMetrics(prometheus.NewRegistry())

	m.ObserveVote(app.VoteResultDecisive, 3*time.Millisecond)
	m.ObserveVote(app.VoteResultDecisive, time.Millisecond)
	m.ObserveVote(app.VoteResultDuplicate, time.Millisecond)
	m.ObserveRatingRetry()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.VotesProcessed.WithLabelValues(app.VoteResultDecisive)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VotesProcessed.WithLabelValues(app.VoteResultDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RatingRetries))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ProcessingDuration))
}

func TestPairMetrics(t *testing.T) {
	m := NewPairMetrics(prometheus.NewRegistry())

	m.ObservePair(12, nil)
	m.ObservePair(1, domain.ErrInsufficientData)
	m.ObservePair(0, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PairsServed.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PairsServed.WithLabelValues("insufficient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PairsServed.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PoolSize))
}

func TestLeaderboardMetrics(t *testing.T) {
	m := NewLeaderboardMetrics(prometheus.NewRegistry())

	m.ObserveQuery(app.QueryRanked, false)
	m.ObserveQuery(app.QueryRanked, true)
	m.ObserveQuery(app.QuerySearch, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Queries.WithLabelValues(app.QueryRanked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Queries.WithLabelValues(app.QuerySearch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SharedReads))
}

func TestHTTPMiddleware_RecordsRoutePattern(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/entities/:id/rank", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/health/live", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	for _, path := range []string{"/api/v1/entities/a/rank", "/api/v1/entities/b/rank", "/health/live"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/entities/:id/rank", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlightGauge))
}

func TestNewRegistry_IncludesRuntimeCollectors(t *testing.T) {
	reg := NewRegistry()
	NewEventMetrics(reg)
	NewWebSocketMetrics(reg)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
	assert.True(t, names["rankpulse_events_queue_length"])
	assert.True(t, names["rankpulse_websocket_active_connections"])
}

func TestAllMetricsShareOneRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.NotPanics(t, func() {
		NewVoteMetrics(reg)
		NewPairMetrics(reg)
		NewLeaderboardMetrics(reg)
		NewEventMetrics(reg)
		NewDBMetrics(reg)
		NewRedisMetrics(reg)
		NewHTTPMetrics(reg)
		NewWebSocketMetrics(reg)
	})
}
