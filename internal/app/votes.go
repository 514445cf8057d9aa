package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/rankpulse/internal/domain"
	"github.com/pscheid92/rankpulse/internal/platform/retry"
	"github.com/pscheid92/rankpulse/internal/rating"
)

// DefaultRatingRetryPolicy bounds the compare-and-swap loop for one vote.
var DefaultRatingRetryPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 2 * time.Millisecond,
	MaxBackoff:     25 * time.Millisecond,
}

// VoteProcessor records verdicts and applies their rating change.
type VoteProcessor struct {
	store     domain.Store
	publisher domain.EventPublisher
	clock     clockwork.Clock
	observer  VoteObserver
	policy    retry.Policy
}

type VoteProcessorOption func(*VoteProcessor)

func WithVoteObserver(o VoteObserver) VoteProcessorOption {
	return func(p *VoteProcessor) { p.observer = o }
}

func WithRatingRetryPolicy(policy retry.Policy) VoteProcessorOption {
	return func(p *VoteProcessor) { p.policy = policy }
}

func NewVoteProcessor(store domain.Store, publisher domain.EventPublisher, clock clockwork.Clock, opts ...VoteProcessorOption) *VoteProcessor {
	p := &VoteProcessor{
		store:     store,
		publisher: publisher,
		clock:     clock,
		observer:  noopObserver{},
		policy:    DefaultRatingRetryPolicy,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SubmitVote persists the match for req and, for a decisive vote, moves both
// ratings by the same amount in opposite directions. The match row is written
// first; when the rating change then fails the match stays without history
// and Reconciler picks it up.
func (p *VoteProcessor) SubmitVote(ctx context.Context, req domain.VoteRequest) (*domain.VoteOutcome, error) {
	start := p.clock.Now()
	outcome, err := p.submit(ctx, req)
	p.observer.ObserveVote(voteResult(outcome, err), p.clock.Since(start))
	return outcome, err
}

func (p *VoteProcessor) submit(ctx context.Context, req domain.VoteRequest) (*domain.VoteOutcome, error) {
	if err := validateVote(req); err != nil {
		return nil, err
	}

	match, err := p.store.CreateMatch(ctx, domain.MatchRecord{
		ID:           uuid.New(),
		EntityA:      req.EntityA,
		EntityB:      req.EntityB,
		WinnerID:     req.WinnerID,
		SessionToken: req.SessionToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record match: %w", err)
	}

	if match.IsTie() {
		outcome, err := p.tieOutcome(ctx, *match)
		if err != nil {
			return nil, err
		}
		p.publish(ctx, outcome)
		return outcome, nil
	}

	outcome, err := p.ApplyMatch(ctx, *match)
	if err != nil {
		slog.ErrorContext(ctx, "Match recorded without rating change",
			"match_id", match.ID,
			"winner_id", *match.WinnerID,
			"loser_id", match.Loser(),
			"error", err)
		return nil, err
	}

	p.publish(ctx, outcome)
	return outcome, nil
}

// ApplyMatch computes and stores the rating change of a persisted decisive
// match. Lost compare-and-swaps are retried from fresh ratings. It does not
// publish events.
func (p *VoteProcessor) ApplyMatch(ctx context.Context, match domain.MatchRecord) (*domain.VoteOutcome, error) {
	if match.IsTie() {
		return nil, fmt.Errorf("match %s is a tie: %w", match.ID, domain.ErrInvalidVote)
	}
	winnerID := *match.WinnerID
	loserID := match.Loser()

	policy := p.policy
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		p.observer.ObserveRatingRetry()
		slog.DebugContext(ctx, "Rating update lost a race, retrying",
			"match_id", match.ID, "attempt", attempt, "backoff", backoff)
	}

	changes, err := retry.Do(ctx, policy, classifyRatingError, func() ([]domain.RatingChange, error) {
		entities, err := p.store.GetEntities(ctx, winnerID, loserID)
		if err != nil {
			return nil, err
		}
		winner, loser, err := participants(entities, winnerID, loserID)
		if err != nil {
			return nil, err
		}

		res := rating.Apply(winner.Rating, loser.Rating)
		changes := []domain.RatingChange{
			{EntityID: winnerID, OldRating: res.WinnerOld, NewRating: res.WinnerNew, Delta: res.WinnerDelta},
			{EntityID: loserID, OldRating: res.LoserOld, NewRating: res.LoserNew, Delta: res.LoserDelta},
		}
		if _, err := p.store.ApplyRatingChange(ctx, match.ID, changes); err != nil {
			return nil, err
		}
		return changes, nil
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			return nil, domain.Persistence("apply rating change", err)
		}
		return nil, fmt.Errorf("failed to apply rating change for match %s: %w", match.ID, err)
	}

	byID := map[uuid.UUID]domain.RatingChange{changes[0].EntityID: changes[0], changes[1].EntityID: changes[1]}
	return &domain.VoteOutcome{
		MatchID:      match.ID,
		SessionToken: match.SessionToken,
		WinnerID:     match.WinnerID,
		A:            participantChange(byID[match.EntityA]),
		B:            participantChange(byID[match.EntityB]),
	}, nil
}

// PublishRatingChange announces a rating change applied outside SubmitVote.
func (p *VoteProcessor) PublishRatingChange(ctx context.Context, outcome *domain.VoteOutcome) {
	p.publisher.Publish(ctx, domain.Event{
		Kind:       domain.EventRatingChanged,
		OccurredAt: p.clock.Now(),
		Payload: domain.RatingChangedPayload{
			MatchID: outcome.MatchID,
			Changes: []domain.ParticipantChange{outcome.A, outcome.B},
		},
	})
}

func (p *VoteProcessor) tieOutcome(ctx context.Context, match domain.MatchRecord) (*domain.VoteOutcome, error) {
	entities, err := p.store.GetEntities(ctx, match.EntityA, match.EntityB)
	if err != nil {
		return nil, fmt.Errorf("failed to read tie participants: %w", err)
	}
	a, b, err := participants(entities, match.EntityA, match.EntityB)
	if err != nil {
		return nil, err
	}

	return &domain.VoteOutcome{
		MatchID:      match.ID,
		SessionToken: match.SessionToken,
		Tie:          true,
		A:            domain.ParticipantChange{EntityID: a.ID, OldRating: a.Rating, NewRating: a.Rating},
		B:            domain.ParticipantChange{EntityID: b.ID, OldRating: b.Rating, NewRating: b.Rating},
	}, nil
}

func (p *VoteProcessor) publish(ctx context.Context, outcome *domain.VoteOutcome) {
	ctx = context.WithoutCancel(ctx)

	p.publisher.Publish(ctx, domain.Event{
		Kind:       domain.EventVoteRecorded,
		OccurredAt: p.clock.Now(),
		Payload: domain.VoteRecordedPayload{
			MatchID:  outcome.MatchID,
			EntityA:  outcome.A.EntityID,
			EntityB:  outcome.B.EntityID,
			WinnerID: outcome.WinnerID,
			Tie:      outcome.Tie,
		},
	})

	if !outcome.Tie {
		p.PublishRatingChange(ctx, outcome)
	}
}

func validateVote(req domain.VoteRequest) error {
	switch {
	case req.EntityA == uuid.Nil || req.EntityB == uuid.Nil:
		return fmt.Errorf("both entities are required: %w", domain.ErrInvalidVote)
	case req.EntityA == req.EntityB:
		return fmt.Errorf("an entity cannot be compared with itself: %w", domain.ErrInvalidVote)
	case req.SessionToken == "":
		return fmt.Errorf("session token is required: %w", domain.ErrInvalidVote)
	case req.WinnerID != nil && *req.WinnerID != req.EntityA && *req.WinnerID != req.EntityB:
		return fmt.Errorf("winner must be one of the compared entities: %w", domain.ErrInvalidVote)
	}
	return nil
}

func classifyRatingError(err error) retry.Action {
	if errors.Is(err, domain.ErrConcurrentUpdate) {
		return retry.Retry
	}
	return retry.Stop
}

func participants(entities []domain.Entity, first, second uuid.UUID) (domain.Entity, domain.Entity, error) {
	var a, b *domain.Entity
	for i := range entities {
		switch entities[i].ID {
		case first:
			a = &entities[i]
		case second:
			b = &entities[i]
		}
	}
	if a == nil {
		return domain.Entity{}, domain.Entity{}, fmt.Errorf("entity %s: %w", first, domain.ErrEntityNotFound)
	}
	if b == nil {
		return domain.Entity{}, domain.Entity{}, fmt.Errorf("entity %s: %w", second, domain.ErrEntityNotFound)
	}
	return *a, *b, nil
}

func participantChange(c domain.RatingChange) domain.ParticipantChange {
	return domain.ParticipantChange{
		EntityID:  c.EntityID,
		OldRating: c.OldRating,
		NewRating: c.NewRating,
		Delta:     c.Delta,
	}
}

func voteResult(outcome *domain.VoteOutcome, err error) string {
	switch {
	case err == nil && outcome.Tie:
		return VoteResultTie
	case err == nil:
		return VoteResultDecisive
	case errors.Is(err, domain.ErrDuplicateSession):
		return VoteResultDuplicate
	case errors.Is(err, domain.ErrInvalidVote):
		return VoteResultInvalid
	case errors.Is(err, domain.ErrEntityNotFound):
		return VoteResultNotFound
	default:
		return VoteResultFailed
	}
}
