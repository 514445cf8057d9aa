package domain

import "github.com/google/uuid"

// Pair is one presentation of two candidates. SessionToken ties the eventual
// vote back to this presentation.
type Pair struct {
	A            Entity
	B            Entity
	SessionToken string
}

// VoteRequest is a user's verdict on a pair. A nil WinnerID declares a tie.
type VoteRequest struct {
	EntityA      uuid.UUID
	EntityB      uuid.UUID
	SessionToken string
	WinnerID     *uuid.UUID
}

// ParticipantChange describes what a vote did to one participant.
type ParticipantChange struct {
	EntityID  uuid.UUID `json:"entityId"`
	OldRating int       `json:"oldRating"`
	NewRating int       `json:"newRating"`
	Delta     int       `json:"delta"`
}

// VoteOutcome reports both participants in request order.
type VoteOutcome struct {
	MatchID      uuid.UUID
	SessionToken string
	WinnerID     *uuid.UUID
	Tie          bool
	A            ParticipantChange
	B            ParticipantChange
}
