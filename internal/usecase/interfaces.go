package usecase

import (
	"context"

	"github.com/paincake00/geotrack/internal/entity"
)

type FixRepository interface {
	InsertFix(ctx context.Context, fix *entity.Fix) error
	GetFix(ctx context.Context, id int64) (*entity.Fix, error)
	LatestFix(ctx context.Context, userID int64) (*entity.Fix, error)
	UpdateEnrichment(ctx context.Context, id int64, e entity.Enrichment) error
}

type ReferenceRepository interface {
	// FindReference returns the row of the city or country table whose
	// geohash is one of prefixes, preferring the longest. nil when none match.
	FindReference(ctx context.Context, kind entity.RegionKind, prefixes []string) (*entity.ReferenceMatch, error)
	// PrefixExists reports whether any row of the table starts with prefix.
	PrefixExists(ctx context.Context, kind entity.RegionKind, prefix string) (bool, error)
}

type LocationRepository interface {
	LocationGeohashes(ctx context.Context) ([]entity.LocationGeohash, error)
	LocationGeohashesByUser(ctx context.Context, userID int64) ([]entity.LocationGeohash, error)
}

type BackfillRepository interface {
	RegionPrefixes(ctx context.Context, kind entity.RegionKind, regionID int64) ([]entity.RegionGeohash, error)
	BackfillRegion(ctx context.Context, row entity.RegionGeohash) (int64, error)
}

// Broadcaster is the real-time channel fixes and transitions are published on.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// WorkQueue is the handle the ingest path uses to hand fixes to the worker.
type WorkQueue interface {
	Enqueue(item entity.PendingWork)
}

type TransitionNotifier interface {
	Notify(ctx context.Context, t entity.Transition)
}
