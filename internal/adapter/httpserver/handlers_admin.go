package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/rankpulse/internal/domain"
	apperrors "github.com/pscheid92/rankpulse/internal/platform/errors"
)

const maxImportBatch = 5000

func (s *Server) registerAdminRoutes() {
	admin := s.echo.Group("/api/admin")
	admin.GET("/entities", s.handleListEntities)
	admin.POST("/entities", s.handleImportEntities)
	admin.GET("/stats", s.handleStats)
	admin.GET("/matches", s.handleRecentMatches)
}

func (s *Server) handleListEntities(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}

	entities, err := s.app.ListEntities(c.Request().Context(), limit)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, toEntityResponses(entities)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleImportEntities(c echo.Context) error {
	var body importRequest
	if err := c.Bind(&body); err != nil {
		return apperrors.ValidationError("malformed import body")
	}
	if len(body.Entities) == 0 {
		return apperrors.ValidationError("no entities to import")
	}
	if len(body.Entities) > maxImportBatch {
		return apperrors.ValidationError("import batch too large").WithField("max", maxImportBatch)
	}

	batch := make([]domain.NewEntity, 0, len(body.Entities))
	for _, e := range body.Entities {
		batch = append(batch, domain.NewEntity{Name: e.Name, Attributes: e.Attributes})
	}

	result, err := s.app.CreateEntities(c.Request().Context(), batch)
	if err != nil {
		return err
	}

	response := importResponse{
		Created:  toEntityResponses(result.Created),
		Existing: toEntityResponses(result.Existing),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.app.Stats(c.Request().Context())
	if err != nil {
		return err
	}

	response := toStatsResponse(stats)
	if s.viewers != nil {
		viewers := s.viewers.Viewers()
		response.Viewers = &viewers
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleRecentMatches(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}

	matches, err := s.app.RecentMatches(c.Request().Context(), limit)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, toMatchResponses(matches)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
