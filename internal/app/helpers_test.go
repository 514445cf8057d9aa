package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/rankpulse/internal/adapter/memory"
	"github.com/pscheid92/rankpulse/internal/domain"
	"github.com/pscheid92/rankpulse/internal/platform/retry"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

var fastRetry = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 100 * time.Microsecond,
	MaxBackoff:     time.Millisecond,
}

// --- recording publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) kinds() []domain.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventKind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

// --- recording observer ---

type recordingObserver struct {
	mu      sync.Mutex
	results []string
	retries int
	pools   []int
	queries []string
}

func (o *recordingObserver) ObserveVote(result string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

func (o *recordingObserver) ObserveRatingRetry() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries++
}

func (o *recordingObserver) ObservePair(poolSize int, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pools = append(o.pools, poolSize)
}

func (o *recordingObserver) ObserveQuery(kind string, _ bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queries = append(o.queries, kind)
}

// --- store with injectable faults ---

type faultyStore struct {
	*memory.Store
	applyRatingChangeFn func(ctx context.Context, matchID uuid.UUID, changes []domain.RatingChange) ([]domain.RatingHistoryEntry, error)
	createMatchFn       func(ctx context.Context, m domain.MatchRecord) (*domain.MatchRecord, error)
}

func (f *faultyStore) ApplyRatingChange(ctx context.Context, matchID uuid.UUID, changes []domain.RatingChange) ([]domain.RatingHistoryEntry, error) {
	if f.applyRatingChangeFn != nil {
		return f.applyRatingChangeFn(ctx, matchID, changes)
	}
	return f.Store.ApplyRatingChange(ctx, matchID, changes)
}

func (f *faultyStore) CreateMatch(ctx context.Context, m domain.MatchRecord) (*domain.MatchRecord, error) {
	if f.createMatchFn != nil {
		return f.createMatchFn(ctx, m)
	}
	return f.Store.CreateMatch(ctx, m)
}

// --- fixtures ---

func newTestClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(testNow)
}

func seedEntities(t *testing.T, store domain.Store, names ...string) []domain.Entity {
	t.Helper()
	out := make([]domain.Entity, 0, len(names))
	for _, name := range names {
		e, _, err := store.CreateEntity(context.Background(), domain.NewEntity{Name: name})
		require.NoError(t, err)
		out = append(out, *e)
	}
	return out
}

func ratingOf(t *testing.T, store domain.Store, id uuid.UUID) int {
	t.Helper()
	e, err := store.GetEntity(context.Background(), id)
	require.NoError(t, err)
	return e.Rating
}

func vote(a, b uuid.UUID, winner *uuid.UUID) domain.VoteRequest {
	return domain.VoteRequest{
		EntityA:      a,
		EntityB:      b,
		WinnerID:     winner,
		SessionToken: uuid.NewString(),
	}
}

func ptr[T any](v T) *T { return &v }
