package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/rankpulse/internal/app"
	"github.com/pscheid92/rankpulse/internal/domain"
	"github.com/pscheid92/rankpulse/internal/platform/config"
)

// --- Mock implementations ---

type mockAppService struct {
	selectPairFn      func(ctx context.Context) (domain.Pair, error)
	submitVoteFn      func(ctx context.Context, req domain.VoteRequest) (*domain.VoteOutcome, error)
	getRankedFn       func(ctx context.Context, limit int) ([]domain.RankedEntry, error)
	searchFn          func(ctx context.Context, query string, limit int) ([]domain.RankedEntry, error)
	getEntityRankFn   func(ctx context.Context, id uuid.UUID) (domain.RankedEntry, error)
	getRecentDeltasFn func(ctx context.Context, windowStart time.Time) (map[uuid.UUID]int, error)
	getDailyDeltasFn  func(ctx context.Context) (map[uuid.UUID]int, error)
	createEntitiesFn  func(ctx context.Context, batch []domain.NewEntity) (*app.ImportResult, error)
	statsFn           func(ctx context.Context) (*domain.Stats, error)
	recentMatchesFn   func(ctx context.Context, limit int) ([]domain.MatchSummary, error)
	listEntitiesFn    func(ctx context.Context, limit int) ([]domain.Entity, error)
}

var errNotImplemented = errors.New("not implemented")

func (m *mockAppService) SelectPair(ctx context.Context) (domain.Pair, error) {
	if m.selectPairFn != nil {
		return m.selectPairFn(ctx)
	}
	return domain.Pair{}, errNotImplemented
}

func (m *mockAppService) SubmitVote(ctx context.Context, req domain.VoteRequest) (*domain.VoteOutcome, error) {
	if m.submitVoteFn != nil {
		return m.submitVoteFn(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) GetRanked(ctx context.Context, limit int) ([]domain.RankedEntry, error) {
	if m.getRankedFn != nil {
		return m.getRankedFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockAppService) Search(ctx context.Context, query string, limit int) ([]domain.RankedEntry, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

func (m *mockAppService) GetEntityRank(ctx context.Context, id uuid.UUID) (domain.RankedEntry, error) {
	if m.getEntityRankFn != nil {
		return m.getEntityRankFn(ctx, id)
	}
	return domain.RankedEntry{}, domain.ErrEntityNotFound
}

func (m *mockAppService) GetRecentDeltas(ctx context.Context, windowStart time.Time) (map[uuid.UUID]int, error) {
	if m.getRecentDeltasFn != nil {
		return m.getRecentDeltasFn(ctx, windowStart)
	}
	return nil, nil
}

func (m *mockAppService) GetDailyDeltas(ctx context.Context) (map[uuid.UUID]int, error) {
	if m.getDailyDeltasFn != nil {
		return m.getDailyDeltasFn(ctx)
	}
	return nil, nil
}

func (m *mockAppService) CreateEntities(ctx context.Context, batch []domain.NewEntity) (*app.ImportResult, error) {
	if m.createEntitiesFn != nil {
		return m.createEntitiesFn(ctx, batch)
	}
	return &app.ImportResult{}, nil
}

func (m *mockAppService) Stats(ctx context.Context) (*domain.Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &domain.Stats{}, nil
}

func (m *mockAppService) RecentMatches(ctx context.Context, limit int) ([]domain.MatchSummary, error) {
	if m.recentMatchesFn != nil {
		return m.recentMatchesFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockAppService) ListEntities(ctx context.Context, limit int) ([]domain.Entity, error) {
	if m.listEntitiesFn != nil {
		return m.listEntitiesFn(ctx, limit)
	}
	return nil, nil
}

type fixedViewers int

func (v fixedViewers) Viewers() int { return int(v) }

// --- Test helpers ---

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:        "test",
		Port:          "0",
		StoreBackend:  config.BackendMemory,
		VoteRateLimit: 100,
		VoteRateBurst: 100,
	}
}

func newTestServer(t *testing.T, svc appService, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithClock(clockwork.NewFakeClockAt(testNow))}, opts...)
	return NewServer(testConfig(), svc, opts...)
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func testEntity(name string, rating int) domain.Entity {
	return domain.Entity{ID: uuid.New(), Name: name, Rating: rating, CreatedAt: testNow}
}

var _ http.Handler = (*Server)(nil)
