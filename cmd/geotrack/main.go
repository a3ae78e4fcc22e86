package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/paincake00/geotrack/internal/config"
	delivery "github.com/paincake00/geotrack/internal/delivery/http"
	"github.com/paincake00/geotrack/internal/infrastructure/postgres"
	"github.com/paincake00/geotrack/internal/infrastructure/redis"
	"github.com/paincake00/geotrack/internal/logger"
	"github.com/paincake00/geotrack/internal/prefixcache"
	"github.com/paincake00/geotrack/internal/usecase"
	"github.com/paincake00/geotrack/internal/worker"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "err", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Info("no .env file loaded, using process environment")
	}

	pgRepo, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres_connect_error", "err", err)
		os.Exit(1)
	}
	defer pgRepo.Close()

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = pgRepo.EnsureSchema(schemaCtx)
	schemaCancel()
	if err != nil {
		log.Error("postgres_schema_error", "err", err)
		os.Exit(1)
	}

	redisRepo, err := redis.New(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Error("redis_connect_error", "err", err)
		os.Exit(1)
	}
	defer redisRepo.Close()

	// resolution engine
	cities := prefixcache.New[prefixcache.Global]("city")
	countries := prefixcache.New[prefixcache.Global]("country")
	places := prefixcache.New[int64]("location")
	resolver := usecase.NewResolver(pgRepo, pgRepo, cities, countries, places, log)
	presence := usecase.NewPresenceTracker()

	notifiers := []usecase.TransitionNotifier{
		worker.NewBroadcastNotifier(redisRepo, cfg.PresenceChannel, log),
	}
	var webhook *worker.WebhookNotifier
	if cfg.WebhookURL != "" {
		webhook = worker.NewWebhookNotifier(cfg.WebhookURL, log)
		notifiers = append(notifiers, webhook)
	}
	enrichment := usecase.NewEnrichmentService(pgRepo, resolver, presence, log, notifiers...)

	queue := worker.NewQueue()
	trackingService := usecase.NewTrackingService(pgRepo, queue, redisRepo, cfg.BroadcastChannel, cfg.GeohashPrecision, log)
	backfillService := usecase.NewBackfillService(pgRepo, log)

	w := worker.New(queue, enrichment, resolver, cfg.WorkerInterval, log)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		w.Start(workerCtx)
		close(workerDone)
	}()

	handler := delivery.NewHandler(trackingService, backfillService, presence, pgRepo, redisRepo, cfg.APIKey)
	handler.Stream = redisRepo
	handler.StreamChannel = cfg.BroadcastChannel
	handler.IngestRate = cfg.IngestRate
	handler.IngestBurst = cfg.IngestBurst
	handler.Logger = log
	handler.Stats["city_cache"] = cities
	handler.Stats["country_cache"] = countries
	handler.Stats["location_cache"] = places
	handler.Stats["queue_depth"] = queue
	handler.Stats["tracked_users"] = presence
	router := handler.InitRoutes()

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	go func() {
		log.Info("server_start", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server_listen_error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("server_shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	workerCancel()
	<-workerDone

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server_forced_shutdown", "err", err)
	}
	if webhook != nil {
		// pending deliveries get until the shutdown deadline
		delivered := make(chan struct{})
		go func() {
			webhook.Wait()
			close(delivered)
		}()
		select {
		case <-delivered:
		case <-ctx.Done():
			webhook.Close()
			<-delivered
		}
	}

	log.Info("server_exit")
}
