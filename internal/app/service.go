package app

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pscheid92/rankpulse/internal/domain"
	"github.com/pscheid92/rankpulse/internal/pairing"
)

const (
	DefaultRecentMatchesLimit = 20
	DefaultEntityListLimit    = 100
	maxNameLength             = 200
)

// ImportResult summarises a CreateEntities batch.
type ImportResult struct {
	Created  []domain.Entity
	Existing []domain.Entity
}

// Service is the facade used by the transport adapters. It owns no state of
// its own beyond its collaborators.
type Service struct {
	store    domain.Store
	selector *pairing.Selector
	votes    *VoteProcessor
	board    *Leaderboard
	pairs    PairObserver
}

func NewService(store domain.Store, selector *pairing.Selector, votes *VoteProcessor, board *Leaderboard, pairs PairObserver) *Service {
	if pairs == nil {
		pairs = noopObserver{}
	}
	return &Service{
		store:    store,
		selector: selector,
		votes:    votes,
		board:    board,
		pairs:    pairs,
	}
}

// SelectPair draws two distinct entities from the whole pool.
func (s *Service) SelectPair(ctx context.Context) (domain.Pair, error) {
	pool, err := s.store.ListEntities(ctx)
	if err != nil {
		s.pairs.ObservePair(0, err)
		return domain.Pair{}, fmt.Errorf("failed to load candidate pool: %w", err)
	}

	pair, err := s.selector.Select(ctx, pool)
	s.pairs.ObservePair(len(pool), err)
	if err != nil {
		return domain.Pair{}, fmt.Errorf("failed to select pair: %w", err)
	}
	return pair, nil
}

func (s *Service) SubmitVote(ctx context.Context, req domain.VoteRequest) (*domain.VoteOutcome, error) {
	return s.votes.SubmitVote(ctx, req)
}

func (s *Service) GetRanked(ctx context.Context, limit int) ([]domain.RankedEntry, error) {
	return s.board.GetRanked(ctx, limit)
}

func (s *Service) Search(ctx context.Context, query string, limit int) ([]domain.RankedEntry, error) {
	return s.board.Search(ctx, query, limit)
}

func (s *Service) GetEntityRank(ctx context.Context, id uuid.UUID) (domain.RankedEntry, error) {
	return s.board.GetEntityRank(ctx, id)
}

func (s *Service) GetRecentDeltas(ctx context.Context, windowStart time.Time) (map[uuid.UUID]int, error) {
	return s.board.GetRecentDeltas(ctx, windowStart)
}

func (s *Service) GetDailyDeltas(ctx context.Context) (map[uuid.UUID]int, error) {
	return s.board.GetDailyDeltas(ctx)
}

// CreateEntities inserts each entity at the base rating. See ImportEntities.
func (s *Service) CreateEntities(ctx context.Context, batch []domain.NewEntity) (*ImportResult, error) {
	return ImportEntities(ctx, s.store, batch)
}

// ImportEntities trims names and inserts each entity at the base rating.
// Names that already exist are left untouched and reported as existing. The
// whole batch is validated before anything is written.
func ImportEntities(ctx context.Context, entities domain.EntityRepository, batch []domain.NewEntity) (*ImportResult, error) {
	cleaned := make([]domain.NewEntity, 0, len(batch))
	for i, ne := range batch {
		name := strings.TrimSpace(ne.Name)
		if name == "" {
			return nil, fmt.Errorf("entry %d has no name: %w", i, domain.ErrInvalidEntity)
		}
		if len(name) > maxNameLength {
			return nil, fmt.Errorf("entry %d name exceeds %d bytes: %w", i, maxNameLength, domain.ErrInvalidEntity)
		}
		cleaned = append(cleaned, domain.NewEntity{Name: name, Attributes: maps.Clone(ne.Attributes)})
	}

	result := &ImportResult{}
	for _, ne := range cleaned {
		e, created, err := entities.CreateEntity(ctx, ne)
		if err != nil {
			return result, fmt.Errorf("failed to create entity %q: %w", ne.Name, err)
		}
		if created {
			result.Created = append(result.Created, *e)
		} else {
			result.Existing = append(result.Existing, *e)
		}
	}

	slog.InfoContext(ctx, "Entities imported", "created", len(result.Created), "existing", len(result.Existing))
	return result, nil
}

// Stats reports store totals, with the daily figures counted from local midnight.
func (s *Service) Stats(ctx context.Context) (*domain.Stats, error) {
	stats, err := s.store.Stats(ctx, s.board.StartOfToday())
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	return stats, nil
}

func (s *Service) RecentMatches(ctx context.Context, limit int) ([]domain.MatchSummary, error) {
	matches, err := s.store.ListRecentMatches(ctx, clampLimit(limit, DefaultRecentMatchesLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list recent matches: %w", err)
	}
	return matches, nil
}

// ListEntities returns the newest entities first.
func (s *Service) ListEntities(ctx context.Context, limit int) ([]domain.Entity, error) {
	entities, err := s.store.ListNewest(ctx, clampLimit(limit, DefaultEntityListLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return entities, nil
}
