// Package rating computes Elo rating changes for pairwise comparisons.
//
// The model is the standard logistic expected score with a fixed K factor.
// Ratings are integers; the winner gains exactly what the loser gives up.
package rating

import (
	"math"

	"github.com/pscheid92/rankpulse/internal/domain"
)

const (
	// KFactor caps how far a single decisive vote can move a rating.
	KFactor = 15

	// BaseRating is the starting rating of every entity.
	BaseRating = domain.BaseRating

	scale = 400.0
)

// Expected returns the probability that an entity rated a beats one rated b.
func Expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/scale))
}

// ComputeDelta returns the points the winner gains for beating the loser.
// The loser's delta is the exact negation. Halves round away from zero, so two
// equally rated entities exchange 8 points.
func ComputeDelta(winner, loser int) int {
	return int(math.Round(KFactor * (1 - Expected(winner, loser))))
}

// Result is the outcome of one decisive comparison.
type Result struct {
	WinnerOld   int
	WinnerNew   int
	LoserOld    int
	LoserNew    int
	WinnerDelta int
	LoserDelta  int
}

// Apply computes both new ratings. No clamping is performed.
func Apply(winner, loser int) Result {
	delta := ComputeDelta(winner, loser)
	return Result{
		WinnerOld:   winner,
		WinnerNew:   winner + delta,
		LoserOld:    loser,
		LoserNew:    loser - delta,
		WinnerDelta: delta,
		LoserDelta:  -delta,
	}
}
