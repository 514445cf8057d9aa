package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/rankpulse/internal/domain"
)

func TestGetPair(t *testing.T) {
	a, b := testEntity("Ada", 2010), testEntity("Grace", 1990)
	srv := newTestServer(t, &mockAppService{
		selectPairFn: func(context.Context) (domain.Pair, error) {
			return domain.Pair{A: a, B: b, SessionToken: "tok-1"}, nil
		},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/pair", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body pairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, a.ID, body.A.ID)
	assert.Equal(t, "Grace", body.B.Name)
	assert.Equal(t, "tok-1", body.SessionToken)
}

func TestGetPair_InsufficientData(t *testing.T) {
	srv := newTestServer(t, &mockAppService{
		selectPairFn: func(context.Context) (domain.Pair, error) {
			return domain.Pair{}, fmt.Errorf("failed to select pair: %w", domain.ErrInsufficientData)
		},
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/pair", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"retry":true`)
	assert.Contains(t, rec.Body.String(), `"type":"unavailable"`)
}

func TestSubmitVote_Decisive(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	matchID := uuid.New()

	var got domain.VoteRequest
	srv := newTestServer(t, &mockAppService{
		submitVoteFn: func(_ context.Context, req domain.VoteRequest) (*domain.VoteOutcome, error) {
			got = req
			return &domain.VoteOutcome{
				MatchID:      matchID,
				SessionToken: req.SessionToken,
				WinnerID:     req.WinnerID,
				A:            domain.ParticipantChange{EntityID: a, OldRating: 2000, NewRating: 2008, Delta: 8},
				B:            domain.ParticipantChange{EntityID: b, OldRating: 2000, NewRating: 1992, Delta: -8},
			}, nil
		},
	})

	body := fmt.Sprintf(`{"entityA":%q,"entityB":%q,"winnerId":%q,"sessionToken":" tok "}`, a, b, a)
	rec := doRequest(t, srv, http.MethodPost, "/api/votes", body)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, a, got.EntityA)
	assert.Equal(t, b, got.EntityB)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, a, *got.WinnerID)
	assert.Equal(t, "tok", got.SessionToken)

	var resp voteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, matchID, resp.MatchID)
	assert.False(t, resp.Tie)
	assert.Equal(t, 8, resp.A.Delta)
	assert.Equal(t, 1992, resp.B.NewRating)
}

func TestSubmitVote_TieWithoutWinner(t *testing.T) {
	tests := []struct {
		name   string
		winner string
	}{
		{"null winner", `null`},
		{"empty winner", `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got domain.VoteRequest
			srv := newTestServer(t, &mockAppService{
				submitVoteFn: func(_ context.Context, req domain.VoteRequest) (*domain.VoteOutcome, error) {
					got = req
					return &domain.VoteOutcome{Tie: true}, nil
				},
			})

			body := fmt.Sprintf(`{"entityA":%q,"entityB":%q,"winnerId":%s,"sessionToken":"t"}`, uuid.New(), uuid.New(), tt.winner)
			rec := doRequest(t, srv, http.MethodPost, "/api/votes", body)

			require.Equal(t, http.StatusCreated, rec.Code)
			assert.Nil(t, got.WinnerID)
			assert.Contains(t, rec.Body.String(), `"tie":true`)
		})
	}
}

func TestSubmitVote_RejectsMalformedInput(t *testing.T) {
	valid := uuid.New().String()
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"bad entity a", fmt.Sprintf(`{"entityA":"nope","entityB":%q,"sessionToken":"t"}`, valid)},
		{"bad entity b", fmt.Sprintf(`{"entityA":%q,"entityB":"","sessionToken":"t"}`, valid)},
		{"bad winner", fmt.Sprintf(`{"entityA":%q,"entityB":%q,"winnerId":"x","sessionToken":"t"}`, valid, valid)},
		{"missing token", fmt.Sprintf(`{"entityA":%q,"entityB":%q,"sessionToken":"  "}`, valid, valid)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &mockAppService{
				submitVoteFn: func(context.Context, domain.VoteRequest) (*domain.VoteOutcome, error) {
					t.Error("service must not be called")
					return nil, nil
				},
			})

			rec := doRequest(t, srv, http.MethodPost, "/api/votes", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"type":"validation"`)
		})
	}
}

func TestSubmitVote_DomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid vote", domain.ErrInvalidVote, http.StatusBadRequest},
		{"unknown entity", domain.ErrEntityNotFound, http.StatusNotFound},
		{"duplicate session", domain.ErrDuplicateSession, http.StatusConflict},
		{"storage failure", domain.Persistence("apply rating change", domain.ErrConcurrentUpdate), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &mockAppService{
				submitVoteFn: func(context.Context, domain.VoteRequest) (*domain.VoteOutcome, error) {
					return nil, fmt.Errorf("failed to record vote: %w", tt.err)
				},
			})

			body := fmt.Sprintf(`{"entityA":%q,"entityB":%q,"sessionToken":"t"}`, uuid.New(), uuid.New())
			rec := doRequest(t, srv, http.MethodPost, "/api/votes", body)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
