package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"domus/models"
	"domus/storage"
)

// RunStore records crawl runs and their log lines.
type RunStore interface {
	CreateRun(run *models.CrawlRun) error
	UpdateRun(run *models.CrawlRun) error
	Log(runID *uuid.UUID, level models.LogLevel, message, searchURL string) error
}

// SummarySink receives search result rows in summary mode.
type SummarySink interface {
	InsertSummary(ctx context.Context, summary *models.ListingSummary, meta *models.SearchMeta) error
}

// DetailSink receives parsed detail pages in detail mode.
type DetailSink interface {
	InsertDetail(ctx context.Context, rec *models.DetailRecord) error
}

// ErrRunInProgress is returned by Run while another run is active.
var ErrRunInProgress = errors.New("crawl run already in progress")

type RunOptions struct {
	SearchURL string
	Detailed  bool
	UseCache  bool
}

// Orchestrator runs one search crawl end to end: paginate, optionally fetch
// each detail page, and write rows to the listing stores.
type Orchestrator struct {
	fetcher   Fetcher
	cache     storage.PageCache
	pageSize  int
	runs      RunStore
	summaries SummarySink
	details   DetailSink
	now       func() time.Time

	mu      sync.Mutex
	running bool
}

func NewOrchestrator(fetcher Fetcher, cache storage.PageCache, pageSize int, runs RunStore, summaries SummarySink, details DetailSink) *Orchestrator {
	return &Orchestrator{
		fetcher:   fetcher,
		cache:     cache,
		pageSize:  pageSize,
		runs:      runs,
		summaries: summaries,
		details:   details,
		now:       time.Now,
	}
}

func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*models.CrawlRun, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	search, err := url.Parse(opts.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	searchPath := search.Path
	query := search.Query()

	mode := models.RunModeSummary
	if opts.Detailed {
		mode = models.RunModeDetail
	}

	run := &models.CrawlRun{
		ID:        uuid.New(),
		SearchURL: searchPath,
		Mode:      mode,
		StartedAt: o.now().Truncate(time.Microsecond),
		Status:    models.RunStatusRunning,
	}
	if err := o.runs.CreateRun(run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	// search_time is matched exactly when building features; Postgres keeps
	// microseconds.
	searchTime := run.StartedAt
	crawler := NewSearchCrawler(o.fetcher, o.pageSize)
	crawler.OnPage = func(pageID, totalPages, listings int) {
		run.PagesFetched++
		o.log(run, models.LogLevelInfo, fmt.Sprintf("Page %d/%d: %d listings", pageID, totalPages, listings))
	}
	extractor := NewDetailExtractor(o.fetcher, o.cache, opts.UseCache)

	o.log(run, models.LogLevelInfo, fmt.Sprintf("Starting %s crawl (cache reads: %v)", mode, opts.UseCache))

	err = crawler.Crawl(ctx, searchPath, query, func(summary models.ListingSummary) error {
		run.ListingsFound++
		meta := &models.SearchMeta{
			SearchURL:  searchPath,
			SearchArgs: query,
			RankOrder:  summary.RankOrder,
			SearchTime: searchTime,
			CreateTime: o.now(),
		}

		if !opts.Detailed {
			return o.summaries.InsertSummary(ctx, &summary, meta)
		}

		detail, err := extractor.Extract(ctx, summary.URL)
		if err != nil {
			return fmt.Errorf("detail %s: %w", summary.URL, err)
		}
		rec := &models.DetailRecord{
			ListingDetail: *detail,
			Search:        summary,
			Meta:          *meta,
		}
		return o.details.InsertDetail(ctx, rec)
	})

	run.DetailsFetched = extractor.Fetched()
	run.CacheHits = extractor.CacheHits()
	finished := o.now()
	run.FinishedAt = &finished

	if err != nil {
		run.ErrorsCount++
		run.Status = models.RunStatusFailed
		o.log(run, models.LogLevelError, fmt.Sprintf("Crawl failed after %d listings: %v", run.ListingsFound, err))
	} else {
		run.Status = models.RunStatusCompleted
		o.log(run, models.LogLevelInfo, fmt.Sprintf("Completed: %d pages, %d listings, %d details fetched, %d cache hits",
			run.PagesFetched, run.ListingsFound, run.DetailsFetched, run.CacheHits))
	}

	if uerr := o.runs.UpdateRun(run); uerr != nil {
		log.Printf("Warning: failed to update run %s: %v", run.ID, uerr)
	}
	return run, err
}

func (o *Orchestrator) log(run *models.CrawlRun, level models.LogLevel, message string) {
	log.Printf("[%s] %s: %s", level, run.SearchURL, message)
	if err := o.runs.Log(&run.ID, level, message, run.SearchURL); err != nil {
		log.Printf("Warning: failed to store log line: %v", err)
	}
}
