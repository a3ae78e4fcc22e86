package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paincake00/geotrack/internal/entity"
	"github.com/paincake00/geotrack/internal/geohash"
	"github.com/paincake00/geotrack/internal/metrics"
)

// EnrichmentService resolves a pending fix, writes the result back to the
// store and then updates presence.
type EnrichmentService struct {
	Fixes     FixRepository
	Resolver  *Resolver
	Presence  *PresenceTracker
	Notifiers []TransitionNotifier
	Logger    *slog.Logger
	Now       func() time.Time
}

func NewEnrichmentService(fixes FixRepository, r *Resolver, p *PresenceTracker, logger *slog.Logger, notifiers ...TransitionNotifier) *EnrichmentService {
	return &EnrichmentService{
		Fixes:     fixes,
		Resolver:  r,
		Presence:  p,
		Notifiers: notifiers,
		Logger:    logger,
		Now:       time.Now,
	}
}

// Process enriches one work item. An error means the item failed as a
// whole; nothing from it was written and the caller drops it.
func (s *EnrichmentService) Process(ctx context.Context, item entity.PendingWork) error {
	start := time.Now()
	defer func() {
		metrics.ProcessDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}()

	if !geohash.Valid(item.Geohash) {
		metrics.ItemsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("tracking %d: %w: %q", item.FixID, entity.ErrMalformedGeohash, item.Geohash)
	}

	e, err := s.resolve(ctx, item)
	if err != nil {
		metrics.ItemsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("tracking %d: %w", item.FixID, err)
	}

	if !e.Any() {
		metrics.ItemsTotal.WithLabelValues("unresolved").Inc()
		s.Logger.Debug("tracking_unresolved", "id", item.FixID, "geohash", item.Geohash)
	} else {
		e.ProcessedAt = s.Now().UTC()
		if err := s.Fixes.UpdateEnrichment(ctx, item.FixID, e); err != nil {
			metrics.ItemsTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("tracking %d: update enrichment: %w", item.FixID, err)
		}
		metrics.ItemsTotal.WithLabelValues("updated").Inc()
		s.Logger.Info("tracking_resolved",
			"id", item.FixID,
			"city_id", optional(e.CityID),
			"country_id", optional(e.CountryID),
			"location_id", optional(e.LocationID),
		)
	}

	// presence only moves once the item can no longer fail
	if t, ok := s.Presence.Observe(item.UserID, e.LocationID, item.Timestamp); ok {
		t.FixID = item.FixID
		s.emit(ctx, t)
	}
	return nil
}

func (s *EnrichmentService) resolve(ctx context.Context, item entity.PendingWork) (entity.Enrichment, error) {
	var (
		e   entity.Enrichment
		err error
	)
	if e.CityID, err = s.Resolver.ResolveCity(ctx, item.Geohash); err != nil {
		return entity.Enrichment{}, err
	}
	if e.CountryID, err = s.Resolver.ResolveCountry(ctx, item.Geohash); err != nil {
		return entity.Enrichment{}, err
	}
	if e.LocationID, err = s.Resolver.ResolveLocation(ctx, item.UserID, item.Geohash); err != nil {
		return entity.Enrichment{}, err
	}
	return e, nil
}

func (s *EnrichmentService) emit(ctx context.Context, t entity.Transition) {
	metrics.TransitionsTotal.WithLabelValues(string(t.Kind)).Inc()
	s.Logger.Info(t.Event, "user_id", t.UserID, "location_id", t.LocationID, "fix_id", t.FixID)
	for _, n := range s.Notifiers {
		n.Notify(ctx, t)
	}
}

func optional(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
