package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paincake00/geotrack/internal/entity"
)

// PostgresRepo is the PostgreSQL store for fixes and reference geohashes.
type PostgresRepo struct {
	Pool *pgxpool.Pool
}

// New opens a connection pool and checks it with a ping.
func New(dsn string) (*PostgresRepo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	return &PostgresRepo{Pool: pool}, nil
}

func (r *PostgresRepo) Close() {
	r.Pool.Close()
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.Pool.Ping(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS tracking (
	id           BIGSERIAL PRIMARY KEY,
	user_id      BIGINT NOT NULL,
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	accuracy     DOUBLE PRECISION,
	altitude     DOUBLE PRECISION,
	speed        DOUBLE PRECISION,
	timestamp    TIMESTAMPTZ NOT NULL,
	geohash      TEXT NOT NULL,
	city_id      BIGINT,
	country_id   BIGINT,
	location_id  BIGINT,
	processed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS tracking_user_ts_idx ON tracking (user_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS tracking_geohash_idx ON tracking (geohash text_pattern_ops);

CREATE TABLE IF NOT EXISTS city_geohashes (
	city_id BIGINT NOT NULL,
	geohash TEXT NOT NULL PRIMARY KEY
);
CREATE INDEX IF NOT EXISTS city_geohashes_prefix_idx ON city_geohashes (geohash text_pattern_ops);

CREATE TABLE IF NOT EXISTS country_geohashes (
	country_id BIGINT NOT NULL,
	geohash    TEXT NOT NULL PRIMARY KEY
);
CREATE INDEX IF NOT EXISTS country_geohashes_prefix_idx ON country_geohashes (geohash text_pattern_ops);

CREATE TABLE IF NOT EXISTS locations (
	id      BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL,
	name    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS location_geohashes (
	location_id BIGINT NOT NULL REFERENCES locations (id) ON DELETE CASCADE,
	geohash     TEXT NOT NULL,
	PRIMARY KEY (location_id, geohash)
);
`

// EnsureSchema creates the tables if they are missing.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Fix repository

const fixColumns = `id, user_id, latitude, longitude, accuracy, altitude, speed, timestamp, geohash,
	city_id, country_id, location_id, processed_at`

func (r *PostgresRepo) InsertFix(ctx context.Context, f *entity.Fix) error {
	sql := `INSERT INTO tracking (user_id, latitude, longitude, accuracy, altitude, speed, timestamp, geohash)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	return r.Pool.QueryRow(ctx, sql,
		f.UserID, f.Latitude, f.Longitude, f.Accuracy, f.Altitude, f.Speed, f.Timestamp, f.Geohash,
	).Scan(&f.ID)
}

func (r *PostgresRepo) GetFix(ctx context.Context, id int64) (*entity.Fix, error) {
	sql := `SELECT ` + fixColumns + ` FROM tracking WHERE id = $1`
	return scanFix(r.Pool.QueryRow(ctx, sql, id))
}

// LatestFix returns the fix of userID with the greatest timestamp.
func (r *PostgresRepo) LatestFix(ctx context.Context, userID int64) (*entity.Fix, error) {
	sql := `SELECT ` + fixColumns + ` FROM tracking WHERE user_id = $1 ORDER BY timestamp DESC LIMIT 1`
	return scanFix(r.Pool.QueryRow(ctx, sql, userID))
}

// UpdateEnrichment writes the resolved fields of a fix. Nil fields keep the
// stored value.
func (r *PostgresRepo) UpdateEnrichment(ctx context.Context, id int64, e entity.Enrichment) error {
	sql := `UPDATE tracking SET
				city_id = COALESCE($1, city_id),
				country_id = COALESCE($2, country_id),
				location_id = COALESCE($3, location_id),
				processed_at = $4
			WHERE id = $5`
	ct, err := r.Pool.Exec(ctx, sql, e.CityID, e.CountryID, e.LocationID, e.ProcessedAt, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func scanFix(row pgx.Row) (*entity.Fix, error) {
	var f entity.Fix
	err := row.Scan(&f.ID, &f.UserID, &f.Latitude, &f.Longitude, &f.Accuracy, &f.Altitude, &f.Speed,
		&f.Timestamp, &f.Geohash, &f.CityID, &f.CountryID, &f.LocationID, &f.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Reference repository

type referenceTable struct {
	name     string
	idColumn string
}

func tableFor(kind entity.RegionKind) (referenceTable, error) {
	switch kind {
	case entity.RegionCity:
		return referenceTable{name: "city_geohashes", idColumn: "city_id"}, nil
	case entity.RegionCountry:
		return referenceTable{name: "country_geohashes", idColumn: "country_id"}, nil
	}
	return referenceTable{}, fmt.Errorf("no reference table for %q", kind)
}

// FindReference returns the row whose geohash equals one of prefixes,
// preferring the longest. Nil means no row matched.
func (r *PostgresRepo) FindReference(ctx context.Context, kind entity.RegionKind, prefixes []string) (*entity.ReferenceMatch, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`SELECT %s, geohash FROM %s WHERE geohash = ANY($1) ORDER BY length(geohash) DESC LIMIT 1`, t.idColumn, t.name)

	var m entity.ReferenceMatch
	err = r.Pool.QueryRow(ctx, sql, prefixes).Scan(&m.RegionID, &m.Geohash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// PrefixExists reports whether any reference row of kind starts with prefix.
func (r *PostgresRepo) PrefixExists(ctx context.Context, kind entity.RegionKind, prefix string) (bool, error) {
	t, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	sql := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE geohash LIKE $1 || '%%')`, t.name)

	var ok bool
	if err := r.Pool.QueryRow(ctx, sql, prefix).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Location repository

const locationRows = `SELECT l.user_id, lg.location_id, lg.geohash
	FROM location_geohashes lg JOIN locations l ON lg.location_id = l.id`

func (r *PostgresRepo) LocationGeohashes(ctx context.Context) ([]entity.LocationGeohash, error) {
	return r.queryLocations(ctx, locationRows)
}

func (r *PostgresRepo) LocationGeohashesByUser(ctx context.Context, userID int64) ([]entity.LocationGeohash, error) {
	return r.queryLocations(ctx, locationRows+` WHERE l.user_id = $1`, userID)
}

func (r *PostgresRepo) queryLocations(ctx context.Context, sql string, args ...any) ([]entity.LocationGeohash, error) {
	rows, err := r.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []entity.LocationGeohash
	for rows.Next() {
		var lg entity.LocationGeohash
		if err := rows.Scan(&lg.UserID, &lg.LocationID, &lg.Geohash); err != nil {
			return nil, err
		}
		res = append(res, lg)
	}
	return res, rows.Err()
}

// Backfill repository

// RegionPrefixes returns every reference prefix of one region.
func (r *PostgresRepo) RegionPrefixes(ctx context.Context, kind entity.RegionKind, regionID int64) ([]entity.RegionGeohash, error) {
	var sql string
	if kind == entity.RegionLocation {
		sql = locationRows + ` WHERE lg.location_id = $1`
	} else {
		t, err := tableFor(kind)
		if err != nil {
			return nil, err
		}
		sql = fmt.Sprintf(`SELECT 0, %s, geohash FROM %s WHERE %s = $1`, t.idColumn, t.name, t.idColumn)
	}

	rows, err := r.Pool.Query(ctx, sql, regionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []entity.RegionGeohash
	for rows.Next() {
		g := entity.RegionGeohash{Kind: kind}
		if err := rows.Scan(&g.UserID, &g.RegionID, &g.Geohash); err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

// BackfillRegion sets the region of row on every fix under its prefix that
// has no value for it yet. Locations only touch the owner's unprocessed fixes.
func (r *PostgresRepo) BackfillRegion(ctx context.Context, row entity.RegionGeohash) (int64, error) {
	var (
		sql  string
		args []any
	)
	switch row.Kind {
	case entity.RegionCity:
		sql = `UPDATE tracking SET city_id = $1, processed_at = NOW()
				WHERE geohash LIKE $2 || '%' AND city_id IS NULL`
		args = []any{row.RegionID, row.Geohash}
	case entity.RegionCountry:
		sql = `UPDATE tracking SET country_id = $1, processed_at = NOW()
				WHERE geohash LIKE $2 || '%' AND country_id IS NULL`
		args = []any{row.RegionID, row.Geohash}
	case entity.RegionLocation:
		sql = `UPDATE tracking SET location_id = $1, processed_at = NOW()
				WHERE geohash LIKE $2 || '%' AND user_id = $3 AND processed_at IS NULL`
		args = []any{row.RegionID, row.Geohash, row.UserID}
	default:
		return 0, fmt.Errorf("unknown region kind %q", row.Kind)
	}

	ct, err := r.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
