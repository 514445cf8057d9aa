// Package pairing chooses which two entities are compared next.
//
// Selection is uniform over candidates that were not shown recently. Recency
// avoidance is best effort: when it would leave fewer than two candidates the
// full pool is used, and a failing RecentSet never blocks selection.
package pairing

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/pscheid92/rankpulse/internal/domain"
)

type Selector struct {
	recent   RecentSet
	mu       sync.Mutex // guards rnd
	rnd      *rand.Rand
	newToken func() string
}

func NewSelector(recent RecentSet, opts ...Option) *Selector {
	s := &Selector{
		recent:   recent,
		rnd:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		newToken: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select picks two distinct entities from pool and records them as recent.
// Returns domain.ErrInsufficientData when pool has fewer than two distinct ids.
func (s *Selector) Select(ctx context.Context, pool []domain.Entity) (domain.Pair, error) {
	unique := dedupe(pool)
	if len(unique) < 2 {
		return domain.Pair{}, domain.ErrInsufficientData
	}

	recent, err := s.recent.Recent(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Recent pairs lookup failed, selecting from full pool", "error", err)
		recent = nil
	}

	candidates := withoutRecent(unique, recent)
	if len(candidates) < 2 {
		candidates = unique
	}

	a, b := s.pickTwo(candidates)

	if err := s.recent.Push(ctx, a.ID.String(), b.ID.String()); err != nil {
		slog.WarnContext(ctx, "Failed to record recent pair", "error", err)
	}

	return domain.Pair{A: a, B: b, SessionToken: s.newToken()}, nil
}

func (s *Selector) pickTwo(candidates []domain.Entity) (domain.Entity, domain.Entity) {
	shuffled := slices.Clone(candidates)

	s.mu.Lock()
	s.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	s.mu.Unlock()

	return shuffled[0], shuffled[1]
}

func dedupe(pool []domain.Entity) []domain.Entity {
	seen := make(map[uuid.UUID]struct{}, len(pool))
	out := make([]domain.Entity, 0, len(pool))
	for _, e := range pool {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

func withoutRecent(pool []domain.Entity, recent []string) []domain.Entity {
	if len(recent) == 0 {
		return pool
	}
	skip := make(map[string]struct{}, len(recent))
	for _, id := range recent {
		skip[id] = struct{}{}
	}
	out := make([]domain.Entity, 0, len(pool))
	for _, e := range pool {
		if _, ok := skip[e.ID.String()]; !ok {
			out = append(out, e)
		}
	}
	return out
}
