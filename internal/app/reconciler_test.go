package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/rankpulse/internal/adapter/memory"
	"github.com/pscheid92/rankpulse/internal/domain"
)

// --- Mock Leadership ---

type mockLeadership struct {
	tryAcquireFn func(ctx context.Context) (bool, error)
	releaseFn    func(ctx context.Context) error
}

func (m *mockLeadership) TryAcquire(ctx context.Context) (bool, error) {
	return m.tryAcquireFn(ctx)
}

func (m *mockLeadership) Release(ctx context.Context) error {
	if m.releaseFn != nil {
		return m.releaseFn(ctx)
	}
	return nil
}

type reconcileFixture struct {
	store     *faultyStore
	publisher *recordingPublisher
	votes     *VoteProcessor
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	clock := newTestClock()
	store := &faultyStore{Store: memory.NewStore(clock)}
	publisher := &recordingPublisher{}
	return &reconcileFixture{
		store:     store,
		publisher: publisher,
		votes:     NewVoteProcessor(store, publisher, clock, WithRatingRetryPolicy(fastRetry)),
	}
}

// afterGrace is a clock at which matches created at testNow count as abandoned.
func afterGrace() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(testNow.Add(DefaultReconcileGrace + time.Second))
}

// partialVote records a decisive match whose rating change never lands.
func (f *reconcileFixture) partialVote(t *testing.T, winner, loser uuid.UUID) {
	t.Helper()
	f.store.applyRatingChangeFn = func(context.Context, uuid.UUID, []domain.RatingChange) ([]domain.RatingHistoryEntry, error) {
		return nil, domain.Persistence("apply rating change", errors.New("connection reset"))
	}
	_, err := f.votes.SubmitVote(context.Background(), vote(winner, loser, &winner))
	require.Error(t, err)
	f.store.applyRatingChangeFn = nil
}

func TestReconcilerRun_ReportsWithoutFixing(t *testing.T) {
	f := newReconcileFixture(t)
	es := seedEntities(t, f.store, "a", "b")
	f.partialVote(t, es[0].ID, es[1].ID)

	r := NewReconciler(f.store, f.votes, afterGrace(), nil)
	report, err := r.Run(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, report.Unscored, 1)
	assert.Equal(t, es[0].ID, *report.Unscored[0].WinnerID)
	assert.Zero(t, report.Replayed)
	assert.Empty(t, report.Drift)
	assert.Equal(t, domain.BaseRating, ratingOf(t, f.store, es[0].ID))
}

func TestReconcilerRun_FixReplaysAndPublishes(t *testing.T) {
	f := newReconcileFixture(t)
	es := seedEntities(t, f.store, "a", "b")
	f.partialVote(t, es[0].ID, es[1].ID)

	r := NewReconciler(f.store, f.votes, afterGrace(), nil)
	report, err := r.Run(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Replayed)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 2016, ratingOf(t, f.store, es[0].ID))
	assert.Equal(t, 1984, ratingOf(t, f.store, es[1].ID))
	assert.Equal(t, []domain.EventKind{domain.EventRatingChanged}, f.publisher.kinds())

	again, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, again.Unscored)
}

func TestReconcilerRun_CountsFailedReplays(t *testing.T) {
	f := newReconcileFixture(t)
	es := seedEntities(t, f.store, "a", "b")
	f.partialVote(t, es[0].ID, es[1].ID)

	f.store.applyRatingChangeFn = func(context.Context, uuid.UUID, []domain.RatingChange) ([]domain.RatingHistoryEntry, error) {
		return nil, errors.New("still down")
	}

	r := NewReconciler(f.store, f.votes, afterGrace(), nil)
	report, err := r.Run(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Replayed)
	assert.Empty(t, f.publisher.kinds())
}

func TestReconcilerRun_SkipsMatchScoredConcurrently(t *testing.T) {
	f := newReconcileFixture(t)
	es := seedEntities(t, f.store, "a", "b")
	f.partialVote(t, es[0].ID, es[1].ID)

	f.store.applyRatingChangeFn = func(context.Context, uuid.UUID, []domain.RatingChange) ([]domain.RatingHistoryEntry, error) {
		return nil, domain.ErrMatchAlreadyScored
	}

	r := NewReconciler(f.store, f.votes, afterGrace(), nil)
	report, err := r.Run(context.Background(), true)
	require.NoError(t, err)

	assert.Zero(t, report.Failed)
	assert.Zero(t, report.Replayed)
}

func TestReconcilerRun_LeavesInFlightVoteAlone(t *testing.T) {
	f := newReconcileFixture(t)
	es := seedEntities(t, f.store, "a", "b")
	r := NewReconciler(f.store, f.votes, newTestClock(), nil)

	// a periodic pass lands between CreateMatch and ApplyRatingChange
	var report *ReconcileReport
	f.store.applyRatingChangeFn = func(ctx context.Context, matchID uuid.UUID, changes []domain.RatingChange) ([]domain.RatingHistoryEntry, error) {
		if report == nil {
			var err error
			report, err = r.Run(ctx, true)
			require.NoError(t, err)
		}
		return f.store.Store.ApplyRatingChange(ctx, matchID, changes)
	}

	outcome, err := f.votes.SubmitVote(context.Background(), vote(es[0].ID, es[1].ID, &es[0].ID))
	require.NoError(t, err)
	assert.Equal(t, 8, outcome.A.Delta)
	assert.Equal(t, -8, outcome.B.Delta)

	require.NotNil(t, report)
	assert.Empty(t, report.Unscored)
	assert.Zero(t, report.Replayed)
	assert.Equal(t, 2008, ratingOf(t, f.store, es[0].ID))
	assert.Equal(t, 1992, ratingOf(t, f.store, es[1].ID))
	assert.Equal(t, []domain.EventKind{domain.EventVoteRecorded, domain.EventRatingChanged}, f.publisher.kinds())
}

func TestReconcilerRun_GracePeriodOption(t *testing.T) {
	f := newReconcileFixture(t)
	es := seedEntities(t, f.store, "a", "b")
	f.partialVote(t, es[0].ID, es[1].ID)
	clock := clockwork.NewFakeClockAt(testNow.Add(30 * time.Second))

	report, err := NewReconciler(f.store, f.votes, clock, nil).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, report.Unscored, "younger than the default grace")

	report, err = NewReconciler(f.store, f.votes, clock, nil, WithGracePeriod(10*time.Second)).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, report.Unscored, 1)
}

func TestReconcilerRun_DetectsDrift(t *testing.T) {
	f := newReconcileFixture(t)
	es := seedEntities(t, f.store, "a", "b")

	m, err := f.store.CreateMatch(context.Background(), domain.MatchRecord{
		EntityA:      es[0].ID,
		EntityB:      es[1].ID,
		WinnerID:     &es[0].ID,
		SessionToken: "drift",
	})
	require.NoError(t, err)
	_, err = f.store.ApplyRatingChange(context.Background(), m.ID, []domain.RatingChange{
		{EntityID: es[0].ID, OldRating: 2000, NewRating: 2050, Delta: 16},
		{EntityID: es[1].ID, OldRating: 2000, NewRating: 1984, Delta: -16},
	})
	require.NoError(t, err)

	r := NewReconciler(f.store, f.votes, afterGrace(), nil)
	report, err := r.Run(context.Background(), true)
	require.NoError(t, err)

	require.Len(t, report.Drift, 1)
	assert.Equal(t, es[0].ID, report.Drift[0].EntityID)
	assert.Equal(t, 2050, report.Drift[0].Rating)
	assert.Equal(t, 2016, report.Drift[0].ExpectedRating)
}

func TestReconciler_StartRunsOnlyAsLeader(t *testing.T) {
	f := newReconcileFixture(t)
	es := seedEntities(t, f.store, "a", "b")
	f.partialVote(t, es[0].ID, es[1].ID)

	var leader atomic.Bool
	acquired := make(chan struct{}, 4)
	released := make(chan struct{}, 4)
	lead := &mockLeadership{
		tryAcquireFn: func(context.Context) (bool, error) {
			defer func() { acquired <- struct{}{} }()
			return leader.Load(), nil
		},
		releaseFn: func(context.Context) error {
			released <- struct{}{}
			return nil
		},
	}

	clock := newTestClock()
	r := NewReconciler(f.store, f.votes, clock, lead)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Start(ctx, time.Minute)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)
	<-acquired
	assert.Equal(t, domain.BaseRating, ratingOf(t, f.store, es[0].ID))

	leader.Store(true)
	clock.Advance(time.Minute)
	<-acquired
	<-released
	assert.Equal(t, 2016, ratingOf(t, f.store, es[0].ID))

	r.Stop()
	r.Stop()
	<-done
}

func TestReconciler_StartSkipsTickWhenLeadershipFails(t *testing.T) {
	f := newReconcileFixture(t)
	es := seedEntities(t, f.store, "a", "b")
	f.partialVote(t, es[0].ID, es[1].ID)

	acquired := make(chan struct{}, 1)
	lead := &mockLeadership{
		tryAcquireFn: func(context.Context) (bool, error) {
			defer func() { acquired <- struct{}{} }()
			return false, errors.New("redis unavailable")
		},
		releaseFn: func(context.Context) error {
			t.Error("release must not be called without leadership")
			return nil
		},
	}

	clock := newTestClock()
	r := NewReconciler(f.store, f.votes, clock, lead)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx, time.Minute)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)
	<-acquired
	assert.Equal(t, domain.BaseRating, ratingOf(t, f.store, es[0].ID))

	cancel()
	<-done
}
