package cli

import (
	"context"
	"errors"
	"fmt"
	"log"

	"domus/config"
	"domus/features"
	"domus/httputil"
	"domus/scraper"
	"domus/spatial"
	"domus/storage"
)

// app holds the stores a command opened; close releases them in reverse.
type app struct {
	cfg     *config.Config
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) postgres(ctx context.Context) (*storage.PostgresStore, error) {
	if a.cfg.Postgres.DBURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	pg, err := storage.NewPostgresStore(ctx, a.cfg.Postgres.DBURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.closers = append(a.closers, pg.Close)
	log.Printf("Connected to Postgres: %s", maskConnectionString(a.cfg.Postgres.DBURL))
	return pg, nil
}

// orchestrator opens everything a crawl run needs.
func (a *app) orchestrator(ctx context.Context, pg *storage.PostgresStore) (*scraper.Orchestrator, *storage.SQLiteStore, error) {
	client, err := httputil.NewRateLimitedClient(&a.cfg.Crawler)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Origin %s, one request per %s", a.cfg.Crawler.BaseURL, client.MinInterval())

	cache, closeCache, err := storage.OpenPageCache(ctx, &a.cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("open page cache: %w", err)
	}
	a.closers = append(a.closers, func() { closeCache() })
	log.Printf("Page cache: %s", a.cfg.Cache.Backend)

	runs, err := storage.NewSQLiteStore(a.cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	a.closers = append(a.closers, func() { runs.Close() })
	log.Printf("SQLite database: %s", a.cfg.DBPath)

	return scraper.NewOrchestrator(client, cache, a.cfg.Crawler.PageSize, runs, pg, pg), runs, nil
}

func (a *app) builder(pg *storage.PostgresStore) *features.Builder {
	engine := spatial.NewEngine(pg, spatial.LandmarksFromConfig(a.cfg.Landmarks))
	return features.NewBuilder(pg, engine)
}

func (a *app) uploader(ctx context.Context) (*storage.S3Uploader, error) {
	if !a.cfg.S3.Enabled() {
		return nil, errors.New("S3_BUCKET is not set")
	}
	return storage.NewS3Uploader(ctx, a.cfg.S3)
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
