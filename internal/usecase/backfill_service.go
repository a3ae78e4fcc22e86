package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paincake00/geotrack/internal/entity"
)

// BackfillService sets a region on already stored fixes that fall inside it
// and were left unresolved, e.g. because the region was added later or the
// worker dropped the item.
type BackfillService struct {
	Repo   BackfillRepository
	Logger *slog.Logger
}

func NewBackfillService(r BackfillRepository, logger *slog.Logger) *BackfillService {
	return &BackfillService{Repo: r, Logger: logger}
}

// Region runs the sweep for one city, country or named location and returns
// the number of fixes updated.
func (s *BackfillService) Region(ctx context.Context, kind entity.RegionKind, regionID int64) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("unknown region kind %q", kind)
	}
	s.Logger.Info("backfill_start", "kind", kind, "id", regionID)

	rows, err := s.Repo.RegionPrefixes(ctx, kind, regionID)
	if err != nil {
		return 0, fmt.Errorf("load %s %d prefixes: %w", kind, regionID, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%s %d: %w", kind, regionID, entity.ErrNotFound)
	}

	var total int64
	for _, row := range rows {
		n, err := s.Repo.BackfillRegion(ctx, row)
		if err != nil {
			return total, fmt.Errorf("backfill %s %d prefix %s: %w", kind, regionID, row.Geohash, err)
		}
		s.Logger.Info("backfill_prefix_done", "kind", kind, "id", regionID, "geohash", row.Geohash, "updated", n)
		total += n
	}

	s.Logger.Info("backfill_done", "kind", kind, "id", regionID, "updated", total)
	return total, nil
}
