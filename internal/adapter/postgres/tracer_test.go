package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/pscheid92/rankpulse/internal/adapter/metrics"
)

func TestStatementKind(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT 1", "SELECT"},
		{"\n\tupdate entities SET rating = $1", "UPDATE"},
		{"insert into matches", "INSERT"},
		{"VACUUM", "other"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statementKind(tt.sql), tt.sql)
	}
}

func TestQueryTracer_RecordsDurationAndErrors(t *testing.T) {
	m := metrics.NewDBMetrics(prometheus.NewRegistry())
	clock := clockwork.NewFakeClock()
	tracer := NewQueryTracer(m, clock)

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	clock.Advance(10 * time.Millisecond)
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	ctx = tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "UPDATE entities"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("deadlock")})

	assert.Equal(t, 2, testutil.CollectAndCount(m.QueryDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryErrors.WithLabelValues("UPDATE")))
}

func TestQueryTracer_IgnoresForeignContext(t *testing.T) {
	m := metrics.NewDBMetrics(prometheus.NewRegistry())
	tracer := NewQueryTracer(m, clockwork.NewFakeClock())

	tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
	assert.Equal(t, 0, testutil.CollectAndCount(m.QueryDuration))
}
