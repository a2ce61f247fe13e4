package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"domus/config"
	"domus/models"
	"domus/scraper"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   []scraper.RunOptions
	fail    map[string]error
	release chan struct{}
}

func (r *fakeRunner) Run(_ context.Context, opts scraper.RunOptions) (*models.CrawlRun, error) {
	r.mu.Lock()
	r.calls = append(r.calls, opts)
	r.mu.Unlock()
	if r.release != nil {
		<-r.release
	}
	if err := r.fail[opts.SearchURL]; err != nil {
		return nil, err
	}
	start := time.Now()
	return &models.CrawlRun{SearchURL: opts.SearchURL, StartedAt: start, FinishedAt: &start, ListingsFound: 3}, nil
}

type fakeHistory struct {
	mu    sync.Mutex
	asked []string
}

func (h *fakeHistory) LastRunTime(searchURL string) (time.Time, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.asked = append(h.asked, searchURL)
	return time.Time{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Scheduler: config.SchedulerConfig{Cron: "0 6 * * *"},
		Searches: []config.SearchConfig{
			{Name: "fukuoka-chuo", URL: "https://suumo.jp/jj/bukken/ichiran/JJ010FJ001/?sc=40133", Detailed: true, UseCache: true},
			{Name: "fukuoka-hakata", URL: "https://suumo.jp/jj/bukken/ichiran/JJ010FJ001/?sc=40132"},
		},
	}
}

func TestRunAll(t *testing.T) {
	runner := &fakeRunner{}
	history := &fakeHistory{}
	s := New(testConfig(), runner, history)

	var completed []string
	s.OnComplete = func(_ context.Context, search config.SearchConfig, _ *models.CrawlRun) {
		completed = append(completed, search.Name)
	}

	if err := s.RunAll(t.Context()); err != nil {
		t.Fatalf("run all failed: %v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runner.calls))
	}
	if !runner.calls[0].Detailed || !runner.calls[0].UseCache || runner.calls[1].Detailed {
		t.Fatalf("run options not taken from config: %+v", runner.calls)
	}
	if len(history.asked) != 2 || history.asked[0] != "/jj/bukken/ichiran/JJ010FJ001/" {
		t.Fatalf("expected history lookups by search path, got %v", history.asked)
	}
	if strings.Join(completed, ",") != "fukuoka-chuo,fukuoka-hakata" {
		t.Fatalf("unexpected completions %v", completed)
	}
}

func TestRunAllContinuesAfterFailure(t *testing.T) {
	cfg := testConfig()
	runner := &fakeRunner{fail: map[string]error{cfg.Searches[0].URL: errors.New("503")}}
	s := New(cfg, runner, nil)

	err := s.RunAll(t.Context())
	if err == nil || !strings.Contains(err.Error(), "fukuoka-chuo") {
		t.Fatalf("expected error naming the failed search, got %v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("second search should still run, got %d calls", len(runner.calls))
	}
}

func TestRunAllSkipsOverlappingTick(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	s := New(testConfig(), runner, nil)

	done := make(chan error, 1)
	go func() { done <- s.RunAll(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		runner.mu.Lock()
		started := len(runner.calls) > 0
		runner.mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first round never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.RunAll(t.Context()); err != nil {
		t.Fatalf("overlapping tick should be skipped quietly, got %v", err)
	}

	close(runner.release)
	if err := <-done; err != nil {
		t.Fatalf("first round failed: %v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected only the first round's 2 runs, got %d", len(runner.calls))
	}
}

func TestStartRequiresSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.Cron = ""
	if err := New(cfg, &fakeRunner{}, nil).Start(t.Context()); err == nil {
		t.Fatal("expected error without cron")
	}

	cfg = testConfig()
	cfg.Scheduler.Cron = "not a cron"
	if err := New(cfg, &fakeRunner{}, nil).Start(t.Context()); err == nil {
		t.Fatal("expected invalid cron error")
	}
}
