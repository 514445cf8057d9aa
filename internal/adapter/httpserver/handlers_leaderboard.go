package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/pscheid92/rankpulse/internal/platform/errors"
)

func (s *Server) registerLeaderboardRoutes() {
	s.echo.GET("/api/leaderboard", s.handleLeaderboard)
	s.echo.GET("/api/leaderboard/search", s.handleSearch)
	s.echo.GET("/api/entities/:id/rank", s.handleEntityRank)
	s.echo.GET("/api/deltas", s.handleDeltas)
}

// handleLeaderboard returns the ranked list with each entity's rating change
// over the daily window in "change".
func (s *Server) handleLeaderboard(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := queryLimit(c)
	if err != nil {
		return err
	}

	ranked, err := s.app.GetRanked(ctx, limit)
	if err != nil {
		return err
	}
	deltas, err := s.app.GetDailyDeltas(ctx)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, toRankedResponses(ranked, deltas)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSearch(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}

	hits, err := s.app.Search(c.Request().Context(), c.QueryParam("q"), limit)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, toRankedResponses(hits, nil)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleEntityRank(c echo.Context) error {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		return apperrors.ValidationError("invalid entity id").WithField("id", idStr)
	}

	entry, err := s.app.GetEntityRank(c.Request().Context(), id)
	if err != nil {
		return err
	}

	response := rankedResponse{Rank: entry.Rank, entityResponse: toEntityResponse(entry.Entity)}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleDeltas sums rating changes per entity since the RFC 3339 "since"
// parameter. Without it the daily window applies.
func (s *Server) handleDeltas(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		deltas map[uuid.UUID]int
		err    error
	)
	if since := c.QueryParam("since"); since != "" {
		windowStart, perr := time.Parse(time.RFC3339, since)
		if perr != nil {
			return apperrors.ValidationError("since must be an RFC 3339 timestamp").WithField("since", since)
		}
		deltas, err = s.app.GetRecentDeltas(ctx, windowStart)
	} else {
		deltas, err = s.app.GetDailyDeltas(ctx)
	}
	if err != nil {
		return err
	}

	if deltas == nil {
		deltas = map[uuid.UUID]int{}
	}
	if err := c.JSON(http.StatusOK, deltas); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// queryLimit reads the optional "limit" parameter. Zero lets the service pick
// its default.
func queryLimit(c echo.Context) (int, error) {
	var limit int
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return 0, apperrors.ValidationError("limit must be an integer").WithField("limit", c.QueryParam("limit"))
	}
	return limit, nil
}
