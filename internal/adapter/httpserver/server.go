package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/rankpulse/internal/adapter/metrics"
	"github.com/pscheid92/rankpulse/internal/app"
	"github.com/pscheid92/rankpulse/internal/domain"
	"github.com/pscheid92/rankpulse/internal/platform/config"
)

type appService interface {
	SelectPair(ctx context.Context) (domain.Pair, error)
	SubmitVote(ctx context.Context, req domain.VoteRequest) (*domain.VoteOutcome, error)
	GetRanked(ctx context.Context, limit int) ([]domain.RankedEntry, error)
	Search(ctx context.Context, query string, limit int) ([]domain.RankedEntry, error)
	GetEntityRank(ctx context.Context, id uuid.UUID) (domain.RankedEntry, error)
	GetRecentDeltas(ctx context.Context, windowStart time.Time) (map[uuid.UUID]int, error)
	GetDailyDeltas(ctx context.Context) (map[uuid.UUID]int, error)
	CreateEntities(ctx context.Context, batch []domain.NewEntity) (*app.ImportResult, error)
	Stats(ctx context.Context) (*domain.Stats, error)
	RecentMatches(ctx context.Context, limit int) ([]domain.MatchSummary, error)
	ListEntities(ctx context.Context, limit int) ([]domain.Entity, error)
}

// ViewerCounter reports how many clients currently watch the realtime leaderboard.
type ViewerCounter interface {
	Viewers() int
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	app     appService
	viewers ViewerCounter

	websocketHandler http.Handler
	metricsHandler   http.Handler
	httpMetrics      *metrics.HTTPMetrics
	errorsTotal      *prometheus.CounterVec

	voteLimiter middleware.RateLimiterStore

	healthChecks []HealthCheck
	startTime    time.Time
}

// Option customises a Server.
type Option func(*Server)

// WithWebsocket mounts the realtime handler at /connection/websocket.
func WithWebsocket(h http.Handler, viewers ViewerCounter) Option {
	return func(s *Server) {
		s.websocketHandler = h
		s.viewers = viewers
	}
}

// WithMetrics records request metrics and serves h at /metrics.
func WithMetrics(h http.Handler, httpMetrics *metrics.HTTPMetrics, errorsTotal *prometheus.CounterVec) Option {
	return func(s *Server) {
		s.metricsHandler = h
		s.httpMetrics = httpMetrics
		s.errorsTotal = errorsTotal
	}
}

// WithHealthChecks sets the checks run by the readiness probe, in order.
func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) {
		s.healthChecks = append(s.healthChecks, checks...)
	}
}

// WithVoteLimiterStore replaces the in-process vote rate limiter, e.g. with
// one shared by all instances.
func WithVoteLimiterStore(store middleware.RateLimiterStore) Option {
	return func(s *Server) {
		s.voteLimiter = store
	}
}

// WithClock replaces the wall clock used for uptime reporting.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

func NewServer(cfg *config.Config, app appService, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:   e,
		config: cfg,
		clock:  clockwork.NewRealClock(),
		app:    app,
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.startTime = srv.clock.Now()
	if srv.voteLimiter == nil {
		srv.voteLimiter = newMemoryRateLimiterStore(cfg.VoteRateLimit, cfg.VoteRateBurst)
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
