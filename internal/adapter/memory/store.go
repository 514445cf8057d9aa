// Package memory is an in-process domain.Store for single-instance mode and tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/rankpulse/internal/domain"
)

// Store keeps every entity, match and history row in maps guarded by one
// RWMutex. Rating swaps happen under the write lock, so a CAS either sees the
// expected ratings for all changes or writes nothing.
type Store struct {
	clock clockwork.Clock

	mu            sync.RWMutex
	entities      map[uuid.UUID]*domain.Entity
	byName        map[string]uuid.UUID
	matches       []domain.MatchRecord
	matchIndex    map[uuid.UUID]int
	tokens        map[string]struct{}
	history       []domain.RatingHistoryEntry
	scored        map[uuid.UUID]struct{}
	nextHistoryID int64
}

var _ domain.Store = (*Store)(nil)

func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		clock:      clock,
		entities:   make(map[uuid.UUID]*domain.Entity),
		byName:     make(map[string]uuid.UUID),
		matchIndex: make(map[uuid.UUID]int),
		tokens:     make(map[string]struct{}),
		scored:     make(map[uuid.UUID]struct{}),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) CreateEntity(_ context.Context, ne domain.NewEntity) (*domain.Entity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byName[ne.Name]; ok {
		return cloneEntity(s.entities[id]), false, nil
	}

	now := s.clock.Now()
	e := &domain.Entity{
		ID:         uuid.New(),
		Name:       ne.Name,
		Rating:     domain.BaseRating,
		Attributes: maps.Clone(ne.Attributes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.entities[e.ID] = e
	s.byName[e.Name] = e.ID
	return cloneEntity(e), true, nil
}

func (s *Store) GetEntity(_ context.Context, id uuid.UUID) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, domain.ErrEntityNotFound
	}
	return cloneEntity(e), nil
}

func (s *Store) GetEntities(_ context.Context, ids ...uuid.UUID) ([]domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entities[id]; ok {
			out = append(out, *cloneEntity(e))
		}
	}
	return out, nil
}

func (s *Store) ListEntities(context.Context) ([]domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(), nil
}

func (s *Store) ListNewest(_ context.Context, limit int) ([]domain.Entity, error) {
	s.mu.RLock()
	all := s.snapshot()
	s.mu.RUnlock()

	slices.SortFunc(all, func(a, b domain.Entity) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return truncate(all, limit), nil
}

func (s *Store) ListRanked(_ context.Context, limit int) ([]domain.Entity, error) {
	s.mu.RLock()
	all := s.snapshot()
	s.mu.RUnlock()

	sortRanked(all)
	return truncate(all, limit), nil
}

func (s *Store) SearchByName(_ context.Context, query string, limit int) ([]domain.Entity, error) {
	needle := strings.ToLower(query)

	s.mu.RLock()
	var hits []domain.Entity
	for _, e := range s.entities {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			hits = append(hits, *cloneEntity(e))
		}
	}
	s.mu.RUnlock()

	sortRanked(hits)
	return truncate(hits, limit), nil
}

func (s *Store) CountAhead(_ context.Context, target domain.Entity) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entities {
		if domain.RankedBefore(*e, target) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateMatch(_ context.Context, m domain.MatchRecord) (*domain.MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.EntityA == m.EntityB {
		return nil, fmt.Errorf("match needs two distinct entities: %w", domain.ErrInvalidVote)
	}
	if m.WinnerID != nil && *m.WinnerID != m.EntityA && *m.WinnerID != m.EntityB {
		return nil, fmt.Errorf("winner is not a participant: %w", domain.ErrInvalidVote)
	}
	if _, used := s.tokens[m.SessionToken]; used {
		return nil, domain.ErrDuplicateSession
	}
	for _, id := range []uuid.UUID{m.EntityA, m.EntityB} {
		if _, ok := s.entities[id]; !ok {
			return nil, fmt.Errorf("participant %s: %w", id, domain.ErrEntityNotFound)
		}
	}

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.WinnerID != nil {
		winner := *m.WinnerID
		m.WinnerID = &winner
	}
	m.CreatedAt = s.clock.Now()

	s.tokens[m.SessionToken] = struct{}{}
	s.matchIndex[m.ID] = len(s.matches)
	s.matches = append(s.matches, m)

	out := m
	return &out, nil
}

func (s *Store) ApplyRatingChange(_ context.Context, matchID uuid.UUID, changes []domain.RatingChange) ([]domain.RatingHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matchIndex[matchID]; !ok {
		return nil, fmt.Errorf("match %s: %w", matchID, domain.ErrEntityNotFound)
	}
	if _, done := s.scored[matchID]; done {
		return nil, domain.ErrMatchAlreadyScored
	}

	for _, c := range changes {
		e, ok := s.entities[c.EntityID]
		if !ok {
			return nil, fmt.Errorf("entity %s: %w", c.EntityID, domain.ErrEntityNotFound)
		}
		if e.Rating != c.OldRating {
			return nil, domain.ErrConcurrentUpdate
		}
	}

	now := s.clock.Now()
	entries := make([]domain.RatingHistoryEntry, 0, len(changes))
	for _, c := range changes {
		e := s.entities[c.EntityID]
		e.Rating = c.NewRating
		e.UpdatedAt = now

		s.nextHistoryID++
		entry := domain.RatingHistoryEntry{
			ID:           s.nextHistoryID,
			EntityID:     c.EntityID,
			MatchID:      matchID,
			RatingBefore: c.OldRating,
			RatingAfter:  c.NewRating,
			Delta:        c.Delta,
			CreatedAt:    now,
		}
		s.history = append(s.history, entry)
		entries = append(entries, entry)
	}
	s.scored[matchID] = struct{}{}
	return entries, nil
}

func (s *Store) SumDeltasSince(_ context.Context, since time.Time) (map[uuid.UUID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[uuid.UUID]int)
	for _, h := range s.history {
		if !h.CreatedAt.Before(since) {
			sums[h.EntityID] += h.Delta
		}
	}
	return sums, nil
}

func (s *Store) ListRecentMatches(_ context.Context, limit int) ([]domain.MatchSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deltas := make(map[uuid.UUID]map[uuid.UUID]int)
	for _, h := range s.history {
		if deltas[h.MatchID] == nil {
			deltas[h.MatchID] = make(map[uuid.UUID]int, 2)
		}
		deltas[h.MatchID][h.EntityID] = h.Delta
	}

	var out []domain.MatchSummary
	for i := len(s.matches) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		m := s.matches[i]
		out = append(out, domain.MatchSummary{
			Match:  m,
			NameA:  s.entities[m.EntityA].Name,
			NameB:  s.entities[m.EntityB].Name,
			DeltaA: deltas[m.ID][m.EntityA],
			DeltaB: deltas[m.ID][m.EntityB],
		})
	}
	return out, nil
}

func (s *Store) ListUnscoredMatches(_ context.Context, before time.Time) ([]domain.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.MatchRecord
	for _, m := range s.matches {
		if m.IsTie() || !m.CreatedAt.Before(before) {
			continue
		}
		if _, done := s.scored[m.ID]; !done {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) ListRatingDrift(context.Context) ([]domain.RatingDrift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[uuid.UUID]int)
	for _, h := range s.history {
		sums[h.EntityID] += h.Delta
	}

	var out []domain.RatingDrift
	for _, e := range s.entities {
		expected := domain.BaseRating + sums[e.ID]
		if e.Rating != expected {
			out = append(out, domain.RatingDrift{
				EntityID:       e.ID,
				Name:           e.Name,
				Rating:         e.Rating,
				ExpectedRating: expected,
			})
		}
	}
	slices.SortFunc(out, func(a, b domain.RatingDrift) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) Stats(_ context.Context, since time.Time) (*domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.Stats{
		TotalEntities: len(s.entities),
		TotalMatches:  len(s.matches),
	}

	var ratingSum int
	var top *domain.Entity
	for _, e := range s.entities {
		ratingSum += e.Rating
		if top == nil || domain.RankedBefore(*e, *top) {
			top = e
		}
		if !e.CreatedAt.Before(since) {
			stats.NewEntitiesToday++
		}
	}
	if top != nil {
		stats.TopEntity = cloneEntity(top)
		stats.AverageRating = int(math.Round(float64(ratingSum) / float64(len(s.entities))))
	}

	for _, m := range s.matches {
		if !m.CreatedAt.Before(since) {
			stats.MatchesToday++
		}
	}

	var absSum, n int
	for _, h := range s.history {
		if !h.CreatedAt.Before(since) {
			absSum += max(h.Delta, -h.Delta)
			n++
		}
	}
	if n > 0 {
		stats.AverageDeltaToday = int(math.Round(float64(absSum) / float64(n)))
	}

	return stats, nil
}

// snapshot copies every entity. Callers hold at least the read lock.
func (s *Store) snapshot() []domain.Entity {
	out := make([]domain.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, *cloneEntity(e))
	}
	return out
}

func cloneEntity(e *domain.Entity) *domain.Entity {
	c := *e
	c.Attributes = maps.Clone(e.Attributes)
	return &c
}

func sortRanked(entities []domain.Entity) {
	slices.SortFunc(entities, func(a, b domain.Entity) int {
		switch {
		case domain.RankedBefore(a, b):
			return -1
		case domain.RankedBefore(b, a):
			return 1
		default:
			return 0
		}
	})
}

func truncate(entities []domain.Entity, limit int) []domain.Entity {
	if limit > 0 && len(entities) > limit {
		return entities[:limit]
	}
	return entities
}
