package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/golang/geo/s2"
	"github.com/paincake00/geotrack/internal/entity"
	"github.com/paincake00/geotrack/internal/geohash"
	"github.com/paincake00/geotrack/internal/metrics"
)

// TrackingService accepts fixes from clients: it stores them, broadcasts
// them to subscribers and hands them to the enrichment worker.
type TrackingService struct {
	Fixes       FixRepository
	Queue       WorkQueue
	Broadcaster Broadcaster
	Channel     string
	Precision   int
	Logger      *slog.Logger
}

func NewTrackingService(fixes FixRepository, q WorkQueue, b Broadcaster, channel string, precision int, logger *slog.Logger) *TrackingService {
	if precision <= 0 {
		precision = geohash.DefaultPrecision
	}
	return &TrackingService{
		Fixes:       fixes,
		Queue:       q,
		Broadcaster: b,
		Channel:     channel,
		Precision:   precision,
		Logger:      logger,
	}
}

// Ingest persists fix and returns once it is stored. Broadcasting and
// enrichment never fail the call.
func (s *TrackingService) Ingest(ctx context.Context, fix *entity.Fix) error {
	if err := validateFix(fix); err != nil {
		return err
	}
	fix.Timestamp = fix.Timestamp.UTC()
	fix.Geohash = geohash.Encode(fix.Latitude, fix.Longitude, s.Precision)

	if err := s.Fixes.InsertFix(ctx, fix); err != nil {
		return fmt.Errorf("insert tracking: %w", err)
	}
	metrics.FixesIngestedTotal.Inc()

	if s.Broadcaster != nil {
		if err := s.Broadcaster.Publish(ctx, s.Channel, fix); err != nil {
			metrics.BroadcastFailTotal.Inc()
			s.Logger.Error("tracking_broadcast_error", "id", fix.ID, "err", err)
		}
	}

	s.Queue.Enqueue(entity.PendingWork{
		FixID:     fix.ID,
		Geohash:   fix.Geohash,
		UserID:    fix.UserID,
		Timestamp: fix.Timestamp,
	})
	s.Logger.Debug("tracking_saved", "id", fix.ID, "user_id", fix.UserID, "geohash", fix.Geohash)
	return nil
}

func (s *TrackingService) Get(ctx context.Context, id int64) (*entity.Fix, error) {
	return s.Fixes.GetFix(ctx, id)
}

// Latest returns the most recent fix of userID.
func (s *TrackingService) Latest(ctx context.Context, userID int64) (*entity.Fix, error) {
	return s.Fixes.LatestFix(ctx, userID)
}

func validateFix(fix *entity.Fix) error {
	if fix.UserID <= 0 {
		return fmt.Errorf("%w: user_id is required", entity.ErrInvalidFix)
	}
	if fix.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", entity.ErrInvalidFix)
	}
	if !s2.LatLngFromDegrees(fix.Latitude, fix.Longitude).IsValid() {
		return fmt.Errorf("%w: coordinates out of range", entity.ErrInvalidFix)
	}
	return nil
}
