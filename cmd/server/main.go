package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/centrifugal/centrifuge"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/rankpulse/internal/adapter/eventpublisher"
	"github.com/pscheid92/rankpulse/internal/adapter/httpserver"
	"github.com/pscheid92/rankpulse/internal/adapter/memory"
	"github.com/pscheid92/rankpulse/internal/adapter/metrics"
	"github.com/pscheid92/rankpulse/internal/adapter/postgres"
	"github.com/pscheid92/rankpulse/internal/adapter/redis"
	"github.com/pscheid92/rankpulse/internal/adapter/websocket"
	"github.com/pscheid92/rankpulse/internal/app"
	"github.com/pscheid92/rankpulse/internal/domain"
	"github.com/pscheid92/rankpulse/internal/pairing"
	"github.com/pscheid92/rankpulse/internal/platform/config"
	apperrors "github.com/pscheid92/rankpulse/internal/platform/errors"
	"github.com/pscheid92/rankpulse/internal/platform/logging"
	"github.com/pscheid92/rankpulse/internal/platform/version"
)

const shutdownTimeout = 10 * time.Second

type shutdownDeps struct {
	srv        *httpserver.Server
	node       *centrifuge.Node
	publisher  *eventpublisher.Publisher
	reconciler *app.Reconciler
}

func runGracefulShutdown(deps shutdownDeps) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := deps.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if deps.reconciler != nil {
			deps.reconciler.Stop()
		}

		// events from in-flight votes are delivered before the node goes away
		if err := deps.publisher.Stop(shutdownCtx); err != nil {
			slog.Error("Event publisher did not drain", "error", err)
		}
		if err := deps.node.Shutdown(shutdownCtx); err != nil {
			slog.Error("Realtime node shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupStore returns the configured store and a function releasing it.
func setupStore(cfg *config.Config, clock clockwork.Clock, dbMetrics *metrics.DBMetrics) (domain.Store, func()) {
	if cfg.StoreBackend == config.BackendMemory {
		slog.Warn("Using in-memory store, data is lost on restart")
		return memory.NewStore(clock), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.NewQueryTracer(dbMetrics, clock))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return postgres.NewStore(pool, clock), pool.Close
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	reg := metrics.NewRegistry()

	store, closeStore := setupStore(cfg, clock, metrics.NewDBMetrics(reg))
	defer closeStore()

	healthChecks := []httpserver.HealthCheck{{Name: "store", Check: store.Ping}}

	wsMetrics := metrics.NewWebSocketMetrics(reg)
	node, err := websocket.NewNode(wsMetrics, cfg.LogLevel)
	if err != nil {
		slog.Error("Failed to create realtime node", "error", err)
		os.Exit(1)
	}

	var recent pairing.RecentSet = pairing.NewRecentBuffer(cfg.RecentBufferSize)
	var leadership app.Leadership
	serverOpts := []httpserver.Option{
		httpserver.WithMetrics(metrics.Handler(reg), metrics.NewHTTPMetrics(reg), apperrors.NewErrorCounter(reg, "rankpulse")),
	}
	sinks := []eventpublisher.Sink{websocket.NewSink(node, wsMetrics)}

	if cfg.RedisURL != "" {
		rdb := setupRedis(context.Background(), cfg)
		defer func() { _ = rdb.Close() }()
		rdb.AddHook(redis.NewMetricsHook(metrics.NewRedisMetrics(reg), clock))

		recent = redis.NewRecentPairs(rdb, cfg.RecentBufferSize)
		sinks = append(sinks, redis.NewEventSink(rdb))
		leadership = redis.NewLeaderElector(rdb, instanceID(), 0)
		serverOpts = append(serverOpts, httpserver.WithVoteLimiterStore(
			redis.NewVoteLimiter(rdb, clock, cfg.VoteRateLimit, cfg.VoteRateBurst),
		))
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})

		if err := websocket.SetupRedis(node, cfg.RedisURL); err != nil {
			slog.Error("Failed to set up realtime Redis broker", "error", err)
			os.Exit(1)
		}
		slog.Info("Redis enabled, sharing recent pairs, vote limits and realtime events across instances")
	}

	if err := node.Run(); err != nil {
		slog.Error("Failed to run realtime node", "error", err)
		os.Exit(1)
	}

	publisher := eventpublisher.New(sinks,
		eventpublisher.WithBufferSize(cfg.EventBufferSize),
		eventpublisher.WithMetrics(metrics.NewEventMetrics(reg)),
	)

	selector := pairing.NewSelector(recent)
	votes := app.NewVoteProcessor(store, publisher, clock, app.WithVoteObserver(metrics.NewVoteMetrics(reg)))
	board := app.NewLeaderboard(store, store, clock, cfg.Location(), metrics.NewLeaderboardMetrics(reg))
	appSvc := app.NewService(store, selector, votes, board, metrics.NewPairMetrics(reg))

	var reconciler *app.Reconciler
	if cfg.ReconcileInterval > 0 {
		reconciler = app.NewReconciler(store, votes, clock, leadership)
		go reconciler.Start(context.Background(), cfg.ReconcileInterval)
		slog.Info("Reconciler started", "interval", cfg.ReconcileInterval)
	}

	wsHandler := centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		CheckOrigin: websocket.NewCheckOrigin(cfg.AppURL, cfg.AppEnv == "development"),
	})

	serverOpts = append(serverOpts,
		httpserver.WithWebsocket(wsHandler, websocket.NewViewerCounter(node)),
		httpserver.WithHealthChecks(healthChecks...),
	)
	srv := httpserver.NewServer(cfg, appSvc, serverOpts...)

	done := runGracefulShutdown(shutdownDeps{
		srv:        srv,
		node:       node,
		publisher:  publisher,
		reconciler: reconciler,
	})

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
