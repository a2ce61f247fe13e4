package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type RunMode string

const (
	RunModeSummary RunMode = "summary"
	RunModeDetail  RunMode = "detail"
)

type CrawlRun struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	SearchURL      string     `json:"search_url" db:"search_url"`
	Mode           RunMode    `json:"mode" db:"mode"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at" db:"finished_at"`
	Status         RunStatus  `json:"status" db:"status"`
	PagesFetched   int        `json:"pages_fetched" db:"pages_fetched"`
	ListingsFound  int        `json:"listings_found" db:"listings_found"`
	DetailsFetched int        `json:"details_fetched" db:"details_fetched"`
	CacheHits      int        `json:"cache_hits" db:"cache_hits"`
	ErrorsCount    int        `json:"errors_count" db:"errors_count"`
}

// Duration is zero while the run is still in progress.
func (r *CrawlRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
