package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BaseRating is the rating every entity starts with.
const BaseRating = 2000

// Entity is a comparable profile. Only the vote pipeline mutates Rating.
type Entity struct {
	ID         uuid.UUID
	Name       string
	Rating     int
	Attributes map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewEntity is a creation request produced by the import collaborator.
type NewEntity struct {
	Name       string
	Attributes map[string]string
}

type EntityRepository interface {
	// CreateEntity inserts the entity with BaseRating unless an entity with the
	// same name exists. The bool reports whether a row was created.
	CreateEntity(ctx context.Context, e NewEntity) (*Entity, bool, error)
	GetEntity(ctx context.Context, id uuid.UUID) (*Entity, error)
	GetEntities(ctx context.Context, ids ...uuid.UUID) ([]Entity, error)

	// ListEntities returns every entity; it is the candidate pool for pairing.
	ListEntities(ctx context.Context) ([]Entity, error)
	ListNewest(ctx context.Context, limit int) ([]Entity, error)

	// ListRanked returns entities ordered by rating descending, id ascending.
	ListRanked(ctx context.Context, limit int) ([]Entity, error)
	SearchByName(ctx context.Context, query string, limit int) ([]Entity, error)

	// CountAhead counts entities ordered before e in the ranked order.
	CountAhead(ctx context.Context, e Entity) (int, error)
}
