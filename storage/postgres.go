package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"domus/geo"
	"domus/models"
)

// PostgresStore holds the listing stores and the spatial feature store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool and ensures the schema exists.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS listing_summaries (
		id BIGSERIAL PRIMARY KEY,
		url TEXT NOT NULL,
		title TEXT,
		properties JSONB,
		rank_order INTEGER NOT NULL,
		search_url TEXT,
		search_args JSONB,
		search_time TIMESTAMPTZ,
		create_time TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS listing_details (
		id BIGSERIAL PRIMARY KEY,
		url TEXT NOT NULL,
		lat DOUBLE PRECISION,
		lng DOUBLE PRECISION,
		content_details JSONB,
		nearby_places JSONB,
		search_details JSONB,
		rank_order INTEGER NOT NULL,
		search_url TEXT,
		search_args JSONB,
		search_time TIMESTAMPTZ,
		create_time TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS spatial_features (
		id UUID PRIMARY KEY,
		category TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		payload JSONB,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS trading_records (
		id BIGSERIAL PRIMARY KEY,
		source_file TEXT,
		data JSONB NOT NULL,
		imported_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_summaries_search ON listing_summaries(search_url, search_time);
	CREATE INDEX IF NOT EXISTS idx_details_search ON listing_details(search_url, search_time, rank_order);
	CREATE INDEX IF NOT EXISTS idx_spatial_category ON spatial_features(category);
	`)
	return err
}

// =============================================================================
// Listing stores
// =============================================================================

// InsertSummary stores one search result row.
func (s *PostgresStore) InsertSummary(ctx context.Context, summary *models.ListingSummary, meta *models.SearchMeta) error {
	props, err := json.Marshal(summary.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	args, err := json.Marshal(meta.SearchArgs)
	if err != nil {
		return fmt.Errorf("marshal search args: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO listing_summaries (url, title, properties, rank_order, search_url, search_args, search_time, create_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		summary.URL, summary.Title, props, meta.RankOrder, meta.SearchURL, args, meta.SearchTime, meta.CreateTime)
	return err
}

// InsertDetail stores one parsed detail page with its search metadata.
func (s *PostgresStore) InsertDetail(ctx context.Context, rec *models.DetailRecord) error {
	content, err := json.Marshal(rec.ContentDetails)
	if err != nil {
		return fmt.Errorf("marshal content details: %w", err)
	}
	nearby, err := json.Marshal(rec.NearbyPlaces)
	if err != nil {
		return fmt.Errorf("marshal nearby places: %w", err)
	}
	search, err := json.Marshal(rec.Search)
	if err != nil {
		return fmt.Errorf("marshal search details: %w", err)
	}
	args, err := json.Marshal(rec.Meta.SearchArgs)
	if err != nil {
		return fmt.Errorf("marshal search args: %w", err)
	}

	var lat, lng *float64
	if rec.GPS != nil {
		lat, lng = &rec.GPS.Latitude, &rec.GPS.Longitude
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO listing_details (
			url, lat, lng, content_details, nearby_places, search_details,
			rank_order, search_url, search_args, search_time, create_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.Search.URL, lat, lng, content, nearby, search,
		rec.Meta.RankOrder, rec.Meta.SearchURL, args, rec.Meta.SearchTime, rec.Meta.CreateTime)
	return err
}

// EachDetail streams stored detail records matching filter in crawl order.
func (s *PostgresStore) EachDetail(ctx context.Context, filter models.ListingFilter, fn func(*models.DetailRecord) error) error {
	var where []string
	var args []any
	if filter.SearchURL != "" {
		args = append(args, filter.SearchURL)
		where = append(where, fmt.Sprintf("search_url = $%d", len(args)))
	}
	if filter.SearchTime != nil {
		args = append(args, *filter.SearchTime)
		where = append(where, fmt.Sprintf("search_time = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		where = append(where, fmt.Sprintf("create_time >= $%d", len(args)))
	}

	query := `
		SELECT url, lat, lng, content_details, nearby_places, search_details,
			rank_order, search_url, search_args, search_time, create_time
		FROM listing_details`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY search_time, rank_order"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query details: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec                                 models.DetailRecord
			url                                 string
			lat, lng                            *float64
			content, nearby, search, searchArgs []byte
		)
		if err := rows.Scan(&url, &lat, &lng, &content, &nearby, &search,
			&rec.Meta.RankOrder, &rec.Meta.SearchURL, &searchArgs, &rec.Meta.SearchTime, &rec.Meta.CreateTime); err != nil {
			return fmt.Errorf("scan detail: %w", err)
		}
		if lat != nil && lng != nil {
			p := geo.NewPoint(*lat, *lng)
			rec.GPS = &p
		}
		if err := unmarshalIfPresent(content, &rec.ContentDetails); err != nil {
			return fmt.Errorf("content details of %s: %w", url, err)
		}
		if err := unmarshalIfPresent(nearby, &rec.NearbyPlaces); err != nil {
			return fmt.Errorf("nearby places of %s: %w", url, err)
		}
		if err := unmarshalIfPresent(search, &rec.Search); err != nil {
			return fmt.Errorf("search details of %s: %w", url, err)
		}
		if err := unmarshalIfPresent(searchArgs, &rec.Meta.SearchArgs); err != nil {
			return fmt.Errorf("search args of %s: %w", url, err)
		}
		if rec.Search.URL == "" {
			rec.Search.URL = url
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

func unmarshalIfPresent(data []byte, out any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// =============================================================================
// Spatial features
// =============================================================================

// Nearest returns features of one category ordered by great-circle distance
// from p. maxKm <= 0 means unbounded; limit <= 0 means no limit.
func (s *PostgresStore) Nearest(ctx context.Context, category models.Category, p geo.Point, maxKm float64, limit int) ([]models.SpatialFeature, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, category, lat, lng, payload, created_at FROM (
			SELECT id, category, lat, lng, payload, created_at,
				$5::float8 * acos(LEAST(1.0, GREATEST(-1.0,
					sin(radians($2::float8)) * sin(radians(lat)) +
					cos(radians($2::float8)) * cos(radians(lat)) * cos(radians(lng - $3::float8))
				))) AS dist
			FROM spatial_features
			WHERE category = $1
		) f
		WHERE $4::float8 <= 0 OR dist <= $4::float8
		ORDER BY dist ASC
		LIMIT $6::bigint`,
		string(category), p.Latitude, p.Longitude, maxKm, geo.EarthRadiusKm, lim)
	if err != nil {
		return nil, fmt.Errorf("query %s features: %w", category, err)
	}
	defer rows.Close()

	var features []models.SpatialFeature
	for rows.Next() {
		var (
			f        models.SpatialFeature
			cat      string
			lat, lng float64
			payload  []byte
		)
		if err := rows.Scan(&f.ID, &cat, &lat, &lng, &payload, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		f.Category = models.Category(cat)
		f.Location = geo.NewPoint(lat, lng)
		if f.Payload, err = models.DecodePayload(f.Category, payload); err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

// ReplaceCategory drops every feature of a category and inserts the new set
// in one transaction. Bulk importers use it to refresh a dataset.
func (s *PostgresStore) ReplaceCategory(ctx context.Context, category models.Category, features []models.SpatialFeature) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM spatial_features WHERE category = $1`, string(category)); err != nil {
		return 0, fmt.Errorf("delete %s: %w", category, err)
	}

	batch := &pgx.Batch{}
	now := time.Now()
	for i := range features {
		f := &features[i]
		if f.Category != category {
			return 0, fmt.Errorf("feature %d has category %s, want %s", i, f.Category, category)
		}
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		payload, err := json.Marshal(f.Payload)
		if err != nil {
			return 0, fmt.Errorf("marshal payload: %w", err)
		}
		batch.Queue(`
			INSERT INTO spatial_features (id, category, lat, lng, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			f.ID, string(f.Category), f.Location.Latitude, f.Location.Longitude, payload, f.CreatedAt)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return 0, fmt.Errorf("insert %s: %w", category, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(features), nil
}

func (s *PostgresStore) CountCategory(ctx context.Context, category models.Category) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM spatial_features WHERE category = $1`, string(category)).Scan(&n)
	return n, err
}

// =============================================================================
// Trading records
// =============================================================================

// ReplaceTradingRecords clears trading_records and copies the new set in, in
// one transaction.
func (s *PostgresStore) ReplaceTradingRecords(ctx context.Context, records []models.TradingRecord) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM trading_records`); err != nil {
		return 0, fmt.Errorf("delete trading records: %w", err)
	}

	now := time.Now()
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"trading_records"},
		[]string{"source_file", "data", "imported_at"},
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			return []any{records[i].SourceFile, records[i].Fields, now}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy trading records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountTradingRecords(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trading_records`).Scan(&n)
	return n, err
}
