// Command reconcile reports decisive matches whose rating change never landed
// and entities whose rating disagrees with their history. With -fix it replays
// the missing rating changes.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/rankpulse/internal/adapter/eventpublisher"
	"github.com/pscheid92/rankpulse/internal/adapter/postgres"
	"github.com/pscheid92/rankpulse/internal/adapter/redis"
	"github.com/pscheid92/rankpulse/internal/app"
	"github.com/pscheid92/rankpulse/internal/platform/logging"
)

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "Postgres URL (or set DATABASE_URL env)")
		redisURL    = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL for publishing replayed rating changes (optional)")
		fix         = flag.Bool("fix", false, "Replay missing rating changes instead of only reporting them")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
		timeout     = flag.Duration("timeout", 5*time.Minute, "Give up after this long")
		grace       = flag.Duration("grace", app.DefaultReconcileGrace, "Ignore unscored matches younger than this")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Database URL required (--database or DATABASE_URL env)")
	}

	logLevel := "info"
	if *verbose {
		logLevel = "debug"
	}
	logging.InitLogger(logLevel, "text")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, *databaseURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	slog.Info("Connected to database", "url", sanitizeURL(*databaseURL))

	var sinks []eventpublisher.Sink
	if *redisURL != "" {
		rdb, err := redis.NewClient(ctx, *redisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer func() { _ = rdb.Close() }()
		sinks = append(sinks, redis.NewEventSink(rdb))
		slog.Info("Connected to Redis", "url", sanitizeURL(*redisURL))
	}
	publisher := eventpublisher.New(sinks)

	clock := clockwork.NewRealClock()
	store := postgres.NewStore(pool, clock)
	votes := app.NewVoteProcessor(store, publisher, clock)
	reconciler := app.NewReconciler(store, votes, clock, nil, app.WithGracePeriod(*grace))

	report, err := reconciler.Run(ctx, *fix)
	if stopErr := publisher.Stop(ctx); stopErr != nil {
		slog.Warn("Some replay events were not delivered", "error", stopErr)
	}
	if err != nil {
		log.Fatalf("Reconciliation failed: %v", err)
	}

	slog.Info("Reconciliation complete",
		"fix", *fix,
		"unscored", len(report.Unscored),
		"replayed", report.Replayed,
		"failed", report.Failed,
		"drift", len(report.Drift))

	if report.Failed > 0 || (!*fix && len(report.Unscored) > 0) || len(report.Drift) > 0 {
		os.Exit(2)
	}
}

// sanitizeURL hides the password of a connection URL for logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
