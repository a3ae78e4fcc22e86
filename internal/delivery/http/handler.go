package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paincake00/geotrack/internal/delivery/http/middleware"
	"github.com/paincake00/geotrack/internal/entity"
	"github.com/paincake00/geotrack/internal/metrics"
	"github.com/paincake00/geotrack/internal/usecase"
)

// Pinger checks a dependency connection (database, Redis).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PresenceReader returns the current named location of a user.
type PresenceReader interface {
	Current(userID int64) (entity.Presence, bool)
}

// Subscriber delivers the raw messages of a broadcast channel until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan string, error)
}

// Sizer is anything reported by the stats endpoint: caches, the work queue,
// the presence table.
type Sizer interface {
	Len() int
}

// Handler groups the HTTP handlers and their dependencies.
type Handler struct {
	Tracking      *usecase.TrackingService
	Backfill      *usecase.BackfillService
	Presence      PresenceReader
	Stream        Subscriber
	StreamChannel string
	Stats         map[string]Sizer
	DBPinger      Pinger
	RedisPinger   Pinger
	APIKey        string
	IngestRate    float64
	IngestBurst   int
	Logger        *slog.Logger
}

func NewHandler(ts *usecase.TrackingService, bs *usecase.BackfillService, presence PresenceReader, db Pinger, rds Pinger, apiKey string) *Handler {
	return &Handler{
		Tracking:      ts,
		Backfill:      bs,
		Presence:      presence,
		StreamChannel: "tracking",
		Stats:         make(map[string]Sizer),
		DBPinger:      db,
		RedisPinger:   rds,
		APIKey:        apiKey,
		IngestRate:    20,
		IngestBurst:   40,
		Logger:        slog.Default(),
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(h.Logger))

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")
	{
		system := v1.Group("/system")
		{
			system.GET("/health", h.healthCheck)
			system.GET("/stats", h.stats)
		}

		tracking := v1.Group("/tracking")
		{
			tracking.POST("",
				middleware.AuthMiddleware(h.APIKey),
				middleware.RateLimit(h.IngestRate, h.IngestBurst),
				h.createTracking,
			)
			tracking.GET("/latest", h.latestTracking)
			tracking.GET("/stream", h.streamTracking)
			tracking.GET("/:id", h.getTracking)
		}

		v1.GET("/presence/:user_id", h.getPresence)

		backfill := v1.Group("/backfill")
		backfill.Use(middleware.AuthMiddleware(h.APIKey))
		{
			backfill.POST("/:kind/:id", h.runBackfill)
		}
	}

	return router
}

// healthCheck reports the state of the service and its dependencies.
func (h *Handler) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	if h.DBPinger != nil {
		if err := h.DBPinger.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "db": err.Error()})
			return
		}
	}
	if h.RedisPinger != nil {
		if err := h.RedisPinger.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "redis": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) stats(c *gin.Context) {
	res := make(gin.H, len(h.Stats))
	for name, s := range h.Stats {
		res[name] = s.Len()
	}
	c.JSON(http.StatusOK, res)
}
