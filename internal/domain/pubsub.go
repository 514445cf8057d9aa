package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventRatingChanged EventKind = "rating_changed"
	EventVoteRecorded  EventKind = "vote_recorded"
)

// Event is a domain event published to live viewers.
type Event struct {
	Kind       EventKind `json:"kind"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurredAt"`
}

type VoteRecordedPayload struct {
	MatchID  uuid.UUID  `json:"matchId"`
	EntityA  uuid.UUID  `json:"entityA"`
	EntityB  uuid.UUID  `json:"entityB"`
	WinnerID *uuid.UUID `json:"winnerId,omitempty"`
	Tie      bool       `json:"tie"`
}

type RatingChangedPayload struct {
	MatchID uuid.UUID           `json:"matchId"`
	Changes []ParticipantChange `json:"changes"`
}

// EventPublisher publishes domain events. Publish must not block on delivery;
// callers never learn whether anyone received the event.
type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}
