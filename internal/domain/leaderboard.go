package domain

import "bytes"

// RankedEntry is an entity with its 1-based position. Ranks are computed per
// query and never stored.
type RankedEntry struct {
	Rank   int
	Entity Entity
}

// RankedBefore reports whether a sorts before b on the leaderboard: higher
// rating first, equal ratings by ascending id bytes.
func RankedBefore(a, b Entity) bool {
	if a.Rating != b.Rating {
		return a.Rating > b.Rating
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// Stats is the admin overview of the store.
type Stats struct {
	TotalEntities     int
	TotalMatches      int
	AverageRating     int
	TopEntity         *Entity
	MatchesToday      int
	NewEntitiesToday  int
	AverageDeltaToday int
}
