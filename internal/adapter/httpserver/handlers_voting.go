package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/rankpulse/internal/domain"
	apperrors "github.com/pscheid92/rankpulse/internal/platform/errors"
)

func (s *Server) registerVotingRoutes() {
	s.echo.GET("/api/pair", s.handleGetPair)
	s.echo.POST("/api/votes", s.handleSubmitVote, newRateLimiter(s.voteLimiter))
}

func (s *Server) handleGetPair(c echo.Context) error {
	pair, err := s.app.SelectPair(c.Request().Context())
	if err != nil {
		return err
	}

	response := pairResponse{
		A:            toEntityResponse(pair.A),
		B:            toEntityResponse(pair.B),
		SessionToken: pair.SessionToken,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSubmitVote(c echo.Context) error {
	var body voteRequest
	if err := c.Bind(&body); err != nil {
		return apperrors.ValidationError("malformed vote body")
	}

	req, err := parseVoteRequest(body)
	if err != nil {
		return err
	}

	outcome, err := s.app.SubmitVote(c.Request().Context(), req)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusCreated, toVoteResponse(outcome)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// parseVoteRequest checks the wire shape only. Participant and winner rules
// are enforced by the vote processor. A missing or empty winner is a tie.
func parseVoteRequest(body voteRequest) (domain.VoteRequest, error) {
	entityA, err := uuid.Parse(body.EntityA)
	if err != nil {
		return domain.VoteRequest{}, apperrors.ValidationError("invalid entity id").WithField("entityA", body.EntityA)
	}
	entityB, err := uuid.Parse(body.EntityB)
	if err != nil {
		return domain.VoteRequest{}, apperrors.ValidationError("invalid entity id").WithField("entityB", body.EntityB)
	}

	token := strings.TrimSpace(body.SessionToken)
	if token == "" {
		return domain.VoteRequest{}, apperrors.ValidationError("session token is required")
	}

	req := domain.VoteRequest{EntityA: entityA, EntityB: entityB, SessionToken: token}
	if body.WinnerID != nil && *body.WinnerID != "" {
		winner, err := uuid.Parse(*body.WinnerID)
		if err != nil {
			return domain.VoteRequest{}, apperrors.ValidationError("invalid winner id").WithField("winnerId", *body.WinnerID)
		}
		req.WinnerID = &winner
	}
	return req, nil
}
