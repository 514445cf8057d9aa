package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MatchRecord is one pairwise comparison. A nil WinnerID is a declared tie.
type MatchRecord struct {
	ID           uuid.UUID
	EntityA      uuid.UUID
	EntityB      uuid.UUID
	WinnerID     *uuid.UUID
	SessionToken string
	CreatedAt    time.Time
}

func (m MatchRecord) IsTie() bool {
	return m.WinnerID == nil
}

// Loser returns the non-winning participant of a decisive match.
func (m MatchRecord) Loser() uuid.UUID {
	if m.WinnerID != nil && *m.WinnerID == m.EntityA {
		return m.EntityB
	}
	return m.EntityA
}

// RatingHistoryEntry is an append-only record of one rating mutation.
type RatingHistoryEntry struct {
	ID           int64
	EntityID     uuid.UUID
	MatchID      uuid.UUID
	RatingBefore int
	RatingAfter  int
	Delta        int
	CreatedAt    time.Time
}

// RatingChange is a compare-and-swap instruction: set NewRating only if the
// stored rating still equals OldRating.
type RatingChange struct {
	EntityID  uuid.UUID
	OldRating int
	NewRating int
	Delta     int
}

// MatchSummary is a match joined with participant names and applied deltas.
type MatchSummary struct {
	Match  MatchRecord
	NameA  string
	NameB  string
	DeltaA int
	DeltaB int
}

// RatingDrift is an entity whose rating disagrees with its history.
type RatingDrift struct {
	EntityID       uuid.UUID
	Name           string
	Rating         int
	ExpectedRating int
}

type MatchRepository interface {
	// CreateMatch persists a match. Returns ErrDuplicateSession when the session
	// token was used before and ErrEntityNotFound when a participant is missing.
	CreateMatch(ctx context.Context, m MatchRecord) (*MatchRecord, error)

	// ApplyRatingChange atomically swaps every rating in changes and appends one
	// history row per change referencing matchID. Returns ErrConcurrentUpdate if
	// any stored rating no longer equals its OldRating; nothing is written then.
	ApplyRatingChange(ctx context.Context, matchID uuid.UUID, changes []RatingChange) ([]RatingHistoryEntry, error)

	SumDeltasSince(ctx context.Context, since time.Time) (map[uuid.UUID]int, error)
	ListRecentMatches(ctx context.Context, limit int) ([]MatchSummary, error)

	// ListUnscoredMatches returns decisive matches created before the cutoff
	// that have no history rows, oldest first.
	ListUnscoredMatches(ctx context.Context, before time.Time) ([]MatchRecord, error)
	ListRatingDrift(ctx context.Context) ([]RatingDrift, error)

	Stats(ctx context.Context, since time.Time) (*Stats, error)
}

// Store is the persisted store backing the ranking core.
type Store interface {
	EntityRepository
	MatchRepository
	Ping(ctx context.Context) error
}
