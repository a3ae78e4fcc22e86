// Command backfill sets a city, country or named location on stored fixes
// that fall inside it and were left unresolved.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/paincake00/geotrack/internal/entity"
	"github.com/paincake00/geotrack/internal/env"
	"github.com/paincake00/geotrack/internal/infrastructure/postgres"
	"github.com/paincake00/geotrack/internal/logger"
	"github.com/paincake00/geotrack/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	var (
		dsn  = flag.String("db", env.GetString("DATABASE_URL", ""), "PostgreSQL DSN")
		kind = flag.String("kind", "city", "region kind: city, country or location")
		id   = flag.Int64("id", 0, "region id")
	)
	flag.Parse()

	log := logger.Setup(env.GetString("LOG_LEVEL", "info"), env.GetString("LOG_FORMAT", "text"))

	if *dsn == "" || *id <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	repo, err := postgres.New(*dsn)
	if err != nil {
		log.Error("postgres_connect_error", "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := usecase.NewBackfillService(repo, log).Region(ctx, entity.RegionKind(*kind), *id)
	if err != nil {
		log.Error("backfill_error", "kind", *kind, "id", *id, "updated", n, "err", err)
		os.Exit(1)
	}
}
