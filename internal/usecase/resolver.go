package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/paincake00/geotrack/internal/entity"
	"github.com/paincake00/geotrack/internal/geohash"
	"github.com/paincake00/geotrack/internal/metrics"
	"github.com/paincake00/geotrack/internal/prefixcache"
)

// Resolver maps a geohash to the city, country and named location it falls
// inside. Each lookup goes through its prefix cache first; on a miss the
// store is queried and the answer, positive or negative, is cached.
type Resolver struct {
	Refs      ReferenceRepository
	Locations LocationRepository
	Cities    *prefixcache.Cache[prefixcache.Global]
	Countries *prefixcache.Cache[prefixcache.Global]
	Places    *prefixcache.Cache[int64]
	Logger    *slog.Logger
}

// NewResolver creates a resolver over the given caches. The caches are
// owned by the caller so several resolvers may share or isolate them.
func NewResolver(
	refs ReferenceRepository,
	locs LocationRepository,
	cities, countries *prefixcache.Cache[prefixcache.Global],
	places *prefixcache.Cache[int64],
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		Refs:      refs,
		Locations: locs,
		Cities:    cities,
		Countries: countries,
		Places:    places,
		Logger:    logger,
	}
}

// WarmLocations loads every named-location prefix into the location cache.
func (r *Resolver) WarmLocations(ctx context.Context) (int, error) {
	rows, err := r.Locations.LocationGeohashes(ctx)
	if err != nil {
		return 0, fmt.Errorf("load location geohashes: %w", err)
	}
	for _, row := range rows {
		r.Places.RecordPositive(row.UserID, row.Geohash, row.LocationID)
	}
	r.Logger.Info("location_cache_loaded", "rows", len(rows), "entries", r.Places.Len())
	return len(rows), nil
}

func (r *Resolver) ResolveCity(ctx context.Context, g string) (*int64, error) {
	return r.observe(entity.RegionCity, g, func() (*int64, error) {
		return resolve(ctx, r.Cities, prefixcache.Global{}, g, func(context.Context) (referenceSource, error) {
			return tableSource{refs: r.Refs, kind: entity.RegionCity}, nil
		})
	})
}

func (r *Resolver) ResolveCountry(ctx context.Context, g string) (*int64, error) {
	return r.observe(entity.RegionCountry, g, func() (*int64, error) {
		return resolve(ctx, r.Countries, prefixcache.Global{}, g, func(context.Context) (referenceSource, error) {
			return tableSource{refs: r.Refs, kind: entity.RegionCountry}, nil
		})
	})
}

// ResolveLocation resolves g against the named locations of userID only.
func (r *Resolver) ResolveLocation(ctx context.Context, userID int64, g string) (*int64, error) {
	return r.observe(entity.RegionLocation, g, func() (*int64, error) {
		return resolve(ctx, r.Places, userID, g, func(ctx context.Context) (referenceSource, error) {
			rows, err := r.Locations.LocationGeohashesByUser(ctx, userID)
			if err != nil {
				return nil, err
			}
			return rowsSource(rows), nil
		})
	})
}

func (r *Resolver) observe(kind entity.RegionKind, g string, fn func() (*int64, error)) (*int64, error) {
	id, err := fn()
	switch {
	case err != nil:
		metrics.ResolutionsTotal.WithLabelValues(string(kind), "error").Inc()
		return nil, fmt.Errorf("resolve %s for %s: %w", kind, g, err)
	case id == nil:
		metrics.ResolutionsTotal.WithLabelValues(string(kind), "unresolved").Inc()
		r.Logger.Debug("region_unresolved", "kind", kind, "geohash", g)
	default:
		metrics.ResolutionsTotal.WithLabelValues(string(kind), "resolved").Inc()
		r.Logger.Debug("region_resolved", "kind", kind, "geohash", g, "id", *id)
	}
	return id, nil
}

// referenceSource is one reference table as seen by the resolution algorithm.
type referenceSource interface {
	find(ctx context.Context, candidates []string) (*entity.ReferenceMatch, error)
	exists(ctx context.Context, prefix string) (bool, error)
}

type tableSource struct {
	refs ReferenceRepository
	kind entity.RegionKind
}

func (s tableSource) find(ctx context.Context, candidates []string) (*entity.ReferenceMatch, error) {
	return s.refs.FindReference(ctx, s.kind, candidates)
}

func (s tableSource) exists(ctx context.Context, prefix string) (bool, error) {
	return s.refs.PrefixExists(ctx, s.kind, prefix)
}

// rowsSource answers from the location rows of a single user.
type rowsSource []entity.LocationGeohash

func (rows rowsSource) find(_ context.Context, candidates []string) (*entity.ReferenceMatch, error) {
	for _, c := range candidates {
		for _, row := range rows {
			if row.Geohash == c {
				return &entity.ReferenceMatch{RegionID: row.LocationID, Geohash: row.Geohash}, nil
			}
		}
	}
	return nil, nil
}

func (rows rowsSource) exists(_ context.Context, prefix string) (bool, error) {
	for _, row := range rows {
		if strings.HasPrefix(row.Geohash, prefix) {
			return true, nil
		}
	}
	return false, nil
}

// resolve is the algorithm shared by all three lookups. open is only called
// on a cache miss.
func resolve[S comparable](
	ctx context.Context,
	cache *prefixcache.Cache[S],
	scope S,
	g string,
	open func(context.Context) (referenceSource, error),
) (*int64, error) {
	if v, ok := cache.Lookup(scope, g); ok {
		return v.ID(), nil
	}

	src, err := open(ctx)
	if err != nil {
		return nil, err
	}

	match, err := src.find(ctx, geohash.Candidates(g))
	if err != nil {
		return nil, err
	}
	if match == nil {
		empty, err := largestEmptyAncestor(ctx, src, g)
		if err != nil {
			return nil, err
		}
		cache.RecordNegative(scope, empty)
		return nil, nil
	}

	cache.RecordPositive(scope, match.Geohash, match.RegionID)
	id := match.RegionID
	return &id, nil
}

// largestEmptyAncestor returns the shortest prefix of g, from two characters
// up, that no reference row starts with. If every shorter prefix has rows
// under it, g itself is returned.
func largestEmptyAncestor(ctx context.Context, src referenceSource, g string) (string, error) {
	for n := geohash.MinPrefixLen; n < len(g); n++ {
		ok, err := src.exists(ctx, g[:n])
		if err != nil {
			return "", err
		}
		if !ok {
			return g[:n], nil
		}
	}
	return g, nil
}
