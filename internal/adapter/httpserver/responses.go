package httpserver

import (
	"time"

	"github.com/google/uuid"

	"github.com/pscheid92/rankpulse/internal/domain"
)

type entityResponse struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	Rating     int               `json:"rating"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func toEntityResponse(e domain.Entity) entityResponse {
	return entityResponse{
		ID:         e.ID,
		Name:       e.Name,
		Rating:     e.Rating,
		Attributes: e.Attributes,
		CreatedAt:  e.CreatedAt,
	}
}

func toEntityResponses(entities []domain.Entity) []entityResponse {
	out := make([]entityResponse, 0, len(entities))
	for _, e := range entities {
		out = append(out, toEntityResponse(e))
	}
	return out
}

type pairResponse struct {
	A            entityResponse `json:"a"`
	B            entityResponse `json:"b"`
	SessionToken string         `json:"sessionToken"`
}

type voteRequest struct {
	EntityA      string  `json:"entityA"`
	EntityB      string  `json:"entityB"`
	WinnerID     *string `json:"winnerId"`
	SessionToken string  `json:"sessionToken"`
}

type voteResponse struct {
	MatchID      uuid.UUID                `json:"matchId"`
	SessionToken string                   `json:"sessionToken"`
	WinnerID     *uuid.UUID               `json:"winnerId"`
	Tie          bool                     `json:"tie"`
	A            domain.ParticipantChange `json:"a"`
	B            domain.ParticipantChange `json:"b"`
}

func toVoteResponse(o *domain.VoteOutcome) voteResponse {
	return voteResponse{
		MatchID:      o.MatchID,
		SessionToken: o.SessionToken,
		WinnerID:     o.WinnerID,
		Tie:          o.Tie,
		A:            o.A,
		B:            o.B,
	}
}

// rankedResponse is one leaderboard row. Change is omitted when the caller did
// not ask for deltas.
type rankedResponse struct {
	Rank int `json:"rank"`
	entityResponse
	Change *int `json:"change,omitempty"`
}

func toRankedResponses(entries []domain.RankedEntry, deltas map[uuid.UUID]int) []rankedResponse {
	out := make([]rankedResponse, 0, len(entries))
	for _, entry := range entries {
		row := rankedResponse{Rank: entry.Rank, entityResponse: toEntityResponse(entry.Entity)}
		if deltas != nil {
			change := deltas[entry.Entity.ID]
			row.Change = &change
		}
		out = append(out, row)
	}
	return out
}

type importEntry struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
}

type importRequest struct {
	Entities []importEntry `json:"entities"`
}

type importResponse struct {
	Created  []entityResponse `json:"created"`
	Existing []entityResponse `json:"existing"`
}

type statsResponse struct {
	TotalEntities     int             `json:"totalEntities"`
	TotalMatches      int             `json:"totalMatches"`
	AverageRating     int             `json:"averageRating"`
	TopEntity         *entityResponse `json:"topEntity"`
	MatchesToday      int             `json:"matchesToday"`
	NewEntitiesToday  int             `json:"newEntitiesToday"`
	AverageDeltaToday int             `json:"averageDeltaToday"`
	Viewers           *int            `json:"viewers,omitempty"`
}

func toStatsResponse(s *domain.Stats) statsResponse {
	resp := statsResponse{
		TotalEntities:     s.TotalEntities,
		TotalMatches:      s.TotalMatches,
		AverageRating:     s.AverageRating,
		MatchesToday:      s.MatchesToday,
		NewEntitiesToday:  s.NewEntitiesToday,
		AverageDeltaToday: s.AverageDeltaToday,
	}
	if s.TopEntity != nil {
		top := toEntityResponse(*s.TopEntity)
		resp.TopEntity = &top
	}
	return resp
}

type matchResponse struct {
	ID        uuid.UUID  `json:"id"`
	EntityA   uuid.UUID  `json:"entityA"`
	EntityB   uuid.UUID  `json:"entityB"`
	NameA     string     `json:"nameA"`
	NameB     string     `json:"nameB"`
	WinnerID  *uuid.UUID `json:"winnerId"`
	DeltaA    int        `json:"deltaA"`
	DeltaB    int        `json:"deltaB"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toMatchResponses(matches []domain.MatchSummary) []matchResponse {
	out := make([]matchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchResponse{
			ID:        m.Match.ID,
			EntityA:   m.Match.EntityA,
			EntityB:   m.Match.EntityB,
			NameA:     m.NameA,
			NameB:     m.NameB,
			WinnerID:  m.Match.WinnerID,
			DeltaA:    m.DeltaA,
			DeltaB:    m.DeltaB,
			CreatedAt: m.Match.CreatedAt,
		})
	}
	return out
}
