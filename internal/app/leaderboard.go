package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/rankpulse/internal/domain"
)

const (
	DefaultRankedLimit = 100
	DefaultSearchLimit = 50
	MaxLimit           = 1000
)

// Leaderboard query kinds reported to LeaderboardObserver.
const (
	QueryRanked = "ranked"
	QuerySearch = "search"
	QueryRank   = "rank"
	QueryDeltas = "deltas"
)

// Leaderboard answers ranking queries. Ranks are derived from the current
// ratings on every call; concurrent identical ranked queries share one store read.
type Leaderboard struct {
	entities domain.EntityRepository
	matches  domain.MatchRepository
	clock    clockwork.Clock
	location *time.Location
	observer LeaderboardObserver
	group    singleflight.Group
}

func NewLeaderboard(entities domain.EntityRepository, matches domain.MatchRepository, clock clockwork.Clock, location *time.Location, observer LeaderboardObserver) *Leaderboard {
	if location == nil {
		location = time.UTC
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Leaderboard{
		entities: entities,
		matches:  matches,
		clock:    clock,
		location: location,
		observer: observer,
	}
}

// GetRanked returns the top entities by rating with 1-based contiguous ranks.
// Equal ratings are ordered by id. A non-positive limit means the default.
func (l *Leaderboard) GetRanked(ctx context.Context, limit int) ([]domain.RankedEntry, error) {
	limit = clampLimit(limit, DefaultRankedLimit)

	// the query is shared, so one caller going away must not fail the others
	shared := context.WithoutCancel(ctx)
	v, err, joined := l.group.Do(fmt.Sprintf("ranked:%d", limit), func() (any, error) {
		return l.entities.ListRanked(shared, limit)
	})
	l.observer.ObserveQuery(QueryRanked, joined)
	if err != nil {
		return nil, fmt.Errorf("failed to list ranked entities: %w", err)
	}

	return rankEntries(v.([]domain.Entity)), nil
}

// Search returns entities whose name contains query, case-insensitively, in
// leaderboard order. Rank is the position within the result, not the global
// rank. An empty query matches every entity.
func (l *Leaderboard) Search(ctx context.Context, query string, limit int) ([]domain.RankedEntry, error) {
	limit = clampLimit(limit, DefaultSearchLimit)
	query = strings.TrimSpace(query)

	found, err := l.entities.SearchByName(ctx, query, limit)
	l.observer.ObserveQuery(QuerySearch, false)
	if err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}
	return rankEntries(found), nil
}

// GetEntityRank returns the global rank of one entity, consistent with GetRanked.
func (l *Leaderboard) GetEntityRank(ctx context.Context, id uuid.UUID) (domain.RankedEntry, error) {
	l.observer.ObserveQuery(QueryRank, false)

	e, err := l.entities.GetEntity(ctx, id)
	if err != nil {
		return domain.RankedEntry{}, fmt.Errorf("failed to get entity %s: %w", id, err)
	}
	ahead, err := l.entities.CountAhead(ctx, *e)
	if err != nil {
		return domain.RankedEntry{}, fmt.Errorf("failed to count entities ahead of %s: %w", id, err)
	}
	return domain.RankedEntry{Rank: ahead + 1, Entity: *e}, nil
}

// GetRecentDeltas sums the rating deltas per entity recorded at or after
// windowStart. Entities without history in the window are absent.
func (l *Leaderboard) GetRecentDeltas(ctx context.Context, windowStart time.Time) (map[uuid.UUID]int, error) {
	l.observer.ObserveQuery(QueryDeltas, false)

	sums, err := l.matches.SumDeltasSince(ctx, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to sum deltas: %w", err)
	}
	return sums, nil
}

// GetDailyDeltas is GetRecentDeltas over the window starting at the previous
// local midnight.
func (l *Leaderboard) GetDailyDeltas(ctx context.Context) (map[uuid.UUID]int, error) {
	return l.GetRecentDeltas(ctx, l.DailyWindowStart())
}

// DailyWindowStart is midnight at the start of yesterday in the configured location.
func (l *Leaderboard) DailyWindowStart() time.Time {
	return l.StartOfToday().AddDate(0, 0, -1)
}

// StartOfToday is the most recent local midnight.
func (l *Leaderboard) StartOfToday() time.Time {
	now := l.clock.Now().In(l.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, l.location)
}

func rankEntries(entities []domain.Entity) []domain.RankedEntry {
	sorted := slices.Clone(entities)
	slices.SortStableFunc(sorted, func(a, b domain.Entity) int {
		switch {
		case domain.RankedBefore(a, b):
			return -1
		case domain.RankedBefore(b, a):
			return 1
		default:
			return 0
		}
	})

	out := make([]domain.RankedEntry, len(sorted))
	for i, e := range sorted {
		out[i] = domain.RankedEntry{Rank: i + 1, Entity: e}
	}
	return out
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, MaxLimit)
}
