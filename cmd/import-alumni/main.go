// Command import-alumni loads alumni profiles from a CSV export into the
// ranking store. Existing names are skipped; new profiles start at the base
// rating.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/rankpulse/internal/adapter/postgres"
	"github.com/pscheid92/rankpulse/internal/app"
	"github.com/pscheid92/rankpulse/internal/platform/logging"
)

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "Postgres URL (or set DATABASE_URL env)")
		dryRun      = flag.Bool("dry-run", false, "Parse the file and report what would be imported")
		migrate     = flag.Bool("migrate", true, "Apply pending migrations before importing")
		timeout     = flag.Duration("timeout", 5*time.Minute, "Give up after this long")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("Usage: import-alumni [flags] <file.csv>")
	}

	logging.InitLogger("info", "text")

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to open CSV: %v", err)
	}
	defer func() { _ = f.Close() }()

	batch, err := parseAlumni(f)
	if err != nil {
		log.Fatalf("Failed to parse CSV: %v", err)
	}
	slog.Info("Parsed alumni", "file", flag.Arg(0), "profiles", len(batch))

	if *dryRun {
		for _, ne := range batch {
			slog.Info("Would import", "name", ne.Name, "attributes", len(ne.Attributes))
		}
		return
	}

	if *databaseURL == "" {
		log.Fatal("Database URL required (--database or DATABASE_URL env)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, *databaseURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if *migrate {
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	store := postgres.NewStore(pool, clockwork.NewRealClock())
	result, err := app.ImportEntities(ctx, store, batch)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	slog.Info("Import complete", "created", len(result.Created), "existing", len(result.Existing))
}
