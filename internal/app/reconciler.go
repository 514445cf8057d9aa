package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/rankpulse/internal/domain"
)

// Leadership decides which instance runs the periodic reconciliation.
type Leadership interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// ReconcileReport describes one reconciliation pass.
type ReconcileReport struct {
	Unscored []domain.MatchRecord
	Replayed int
	Failed   int
	Drift    []domain.RatingDrift
}

// DefaultReconcileGrace is how old an unscored match must be before a pass
// treats it as abandoned. Younger matches may still be scored by the vote
// that created them.
const DefaultReconcileGrace = time.Minute

// Reconciler finds decisive matches whose rating change never landed and
// entities whose rating disagrees with their history. With fix enabled it
// replays the missing rating changes; drift is only reported.
//
// A replay scores the match against the participants' current ratings and
// stamps the history rows with the replay time. It does not reconstruct the
// ratings as they were when the vote was cast.
type Reconciler struct {
	store      domain.Store
	votes      *VoteProcessor
	clock      clockwork.Clock
	leadership Leadership
	grace      time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
}

type ReconcilerOption func(*Reconciler)

// WithGracePeriod overrides DefaultReconcileGrace.
func WithGracePeriod(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.grace = d
	}
}

// NewReconciler creates a reconciler. leadership may be nil for a single instance.
func NewReconciler(store domain.Store, votes *VoteProcessor, clock clockwork.Clock, leadership Leadership, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:      store,
		votes:      votes,
		clock:      clock,
		leadership: leadership,
		grace:      DefaultReconcileGrace,
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one pass over matches older than the grace period.
func (r *Reconciler) Run(ctx context.Context, fix bool) (*ReconcileReport, error) {
	unscored, err := r.store.ListUnscoredMatches(ctx, r.clock.Now().Add(-r.grace))
	if err != nil {
		return nil, fmt.Errorf("failed to list unscored matches: %w", err)
	}

	report := &ReconcileReport{Unscored: unscored}
	if fix {
		for _, m := range unscored {
			outcome, err := r.votes.ApplyMatch(ctx, m)
			switch {
			case errors.Is(err, domain.ErrMatchAlreadyScored):
				// scored concurrently since the listing
			case err != nil:
				report.Failed++
				slog.ErrorContext(ctx, "Failed to replay rating change", "match_id", m.ID, "error", err)
			default:
				report.Replayed++
				r.votes.PublishRatingChange(ctx, outcome)
				slog.InfoContext(ctx, "Replayed rating change", "match_id", m.ID,
					"winner_delta", max(outcome.A.Delta, outcome.B.Delta))
			}
		}
	}

	// drift is read after replays so repaired entities no longer show up
	drift, err := r.store.ListRatingDrift(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list rating drift: %w", err)
	}
	report.Drift = drift
	for _, d := range drift {
		slog.WarnContext(ctx, "Rating drift detected",
			"entity_id", d.EntityID,
			"name", d.Name,
			"rating", d.Rating,
			"expected_rating", d.ExpectedRating)
	}

	return report, nil
}

// Start runs a fixing pass every interval until Stop is called or ctx ends.
func (r *Reconciler) Start(ctx context.Context, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.tick(ctx)
		case <-r.stopCh:
			slog.Info("Reconciler stopped")
			return
		case <-ctx.Done():
			slog.Info("Reconciler context cancelled")
			return
		}
	}
}

func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Reconciler) tick(ctx context.Context) {
	if r.leadership != nil {
		leader, err := r.leadership.TryAcquire(ctx)
		if err != nil {
			slog.Warn("Reconciler leadership check failed", "error", err)
			return
		}
		if !leader {
			return
		}
		defer func() {
			if err := r.leadership.Release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("Failed to release reconciler leadership", "error", err)
			}
		}()
	}

	report, err := r.Run(ctx, true)
	if err != nil {
		slog.Error("Reconciliation failed", "error", err)
		return
	}
	if len(report.Unscored) > 0 || len(report.Drift) > 0 {
		slog.Info("Reconciliation pass finished",
			"unscored", len(report.Unscored),
			"replayed", report.Replayed,
			"failed", report.Failed,
			"drift", len(report.Drift))
	}
}
