package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"domus/config"
	"domus/models"
	"domus/scraper"
)

// Runner executes one crawl run.
type Runner interface {
	Run(ctx context.Context, opts scraper.RunOptions) (*models.CrawlRun, error)
}

// RunHistory reports when a search last ran.
type RunHistory interface {
	LastRunTime(searchURL string) (time.Time, error)
}

// Scheduler runs the configured searches on a cron schedule. Ticks that
// fire while a previous round is still going are skipped.
type Scheduler struct {
	spec     string
	searches []config.SearchConfig
	runner   Runner
	history  RunHistory
	cron     *cron.Cron

	// OnComplete, when set, is called after each successful run.
	OnComplete func(ctx context.Context, search config.SearchConfig, run *models.CrawlRun)

	mu      sync.Mutex
	running bool
}

func New(cfg *config.Config, runner Runner, history RunHistory) *Scheduler {
	return &Scheduler{
		spec:     cfg.Scheduler.Cron,
		searches: cfg.Searches,
		runner:   runner,
		history:  history,
		cron:     cron.New(),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.spec == "" {
		return errors.New("no schedule configured (SCRAPE_CRON)")
	}
	if len(s.searches) == 0 {
		return errors.New("no searches configured")
	}

	log.Printf("Starting scheduler with cron: %s (%d searches)", s.spec, len(s.searches))
	_, err := s.cron.AddFunc(s.spec, func() {
		if err := s.RunAll(ctx); err != nil {
			log.Printf("Scheduled run error: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a round in progress to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunAll runs every configured search in order. A failing search is logged
// and the round continues; the joined errors are returned.
func (s *Scheduler) RunAll(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Println("Previous round still running, skipping tick")
		return nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	var errs []error
	for _, search := range s.searches {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runSearch(ctx, search); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", search.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) runSearch(ctx context.Context, search config.SearchConfig) error {
	if u, err := url.Parse(search.URL); err == nil && s.history != nil {
		last, err := s.history.LastRunTime(u.Path)
		switch {
		case err != nil:
			log.Printf("Error getting last run time for %s: %v", search.Name, err)
		case last.IsZero():
			log.Printf("Search %s: first run", search.Name)
		default:
			log.Printf("Search %s: last run %s ago", search.Name, time.Since(last).Round(time.Second))
		}
	}

	run, err := s.runner.Run(ctx, scraper.RunOptions{
		SearchURL: search.URL,
		Detailed:  search.Detailed,
		UseCache:  search.UseCache,
	})
	if err != nil {
		return err
	}
	log.Printf("Search %s: %d listings in %s", search.Name, run.ListingsFound, run.Duration().Round(time.Second))
	if s.OnComplete != nil {
		s.OnComplete(ctx, search, run)
	}
	return nil
}
