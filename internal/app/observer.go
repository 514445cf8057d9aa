package app

import "time"

// Vote results reported to VoteObserver.
const (
	VoteResultDecisive  = "decisive"
	VoteResultTie       = "tie"
	VoteResultDuplicate = "duplicate"
	VoteResultInvalid   = "invalid"
	VoteResultNotFound  = "not_found"
	VoteResultFailed    = "failed"
)

// VoteObserver receives measurements from the vote pipeline.
type VoteObserver interface {
	ObserveVote(result string, duration time.Duration)
	ObserveRatingRetry()
}

// PairObserver receives measurements from pair selection.
type PairObserver interface {
	ObservePair(poolSize int, err error)
}

// LeaderboardObserver receives measurements from leaderboard queries.
type LeaderboardObserver interface {
	ObserveQuery(kind string, shared bool)
}

type noopObserver struct{}

func (noopObserver) ObserveVote(string, time.Duration) {}
func (noopObserver) ObserveRatingRetry()               {}
func (noopObserver) ObservePair(int, error)            {}
func (noopObserver) ObserveQuery(string, bool)         {}
