package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"domus/config"
	"domus/features"
	"domus/models"
	"domus/scheduler"
	"domus/scraper"
	"domus/storage"
)

// NewDaemonCmd creates the daemon command.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the configured searches on the SCRAPE_CRON schedule",
		Long: `Daemon runs every search in config/searches.yaml on the SCRAPE_CRON
schedule. After a detailed search completes, its listings are built into a
feature table and uploaded when S3 is configured.`,
		Args: cobra.NoArgs,
		RunE: runDaemonCmd,
	}
	cmd.Flags().Bool("now", false, "Run every search once at startup")
	return cmd
}

func newScheduler(cfg *config.Config, orchestrator *scraper.Orchestrator, runs *storage.SQLiteStore) *scheduler.Scheduler {
	return scheduler.New(cfg, orchestrator, runs)
}

func runDaemonCmd(cmd *cobra.Command, _ []string) error {
	cfg, closeLog, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	log.Println("Starting domus daemon...")
	log.Printf("Loaded %d searches", len(cfg.Searches))
	for _, s := range cfg.Searches {
		log.Printf("  - %s (detailed=%v)", s.Name, s.Detailed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := &app{cfg: cfg}
	defer a.close()

	pg, err := a.postgres(ctx)
	if err != nil {
		return err
	}
	orchestrator, runs, err := a.orchestrator(ctx, pg)
	if err != nil {
		return err
	}

	sched := newScheduler(cfg, orchestrator, runs)
	if cfg.S3.Enabled() {
		u, err := a.uploader(ctx)
		if err != nil {
			return err
		}
		builder := a.builder(pg)
		sched.OnComplete = func(ctx context.Context, search config.SearchConfig, run *models.CrawlRun) {
			if !search.Detailed {
				return
			}
			started := run.StartedAt
			table, err := builder.Build(ctx, models.ListingFilter{SearchURL: run.SearchURL, SearchTime: &started})
			if err != nil {
				log.Printf("Feature table for %s failed: %v", search.Name, err)
				return
			}
			if _, err := features.Publish(ctx, table, u, search.Name, time.Now()); err != nil {
				log.Printf("Upload for %s failed: %v", search.Name, err)
			}
		}
		log.Printf("Feature tables upload to s3://%s/%s", cfg.S3.Bucket, cfg.S3.Prefix)
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}

	if now, _ := cmd.Flags().GetBool("now"); now {
		go func() {
			if err := sched.RunAll(ctx); err != nil {
				log.Printf("Startup run error: %v", err)
			}
		}()
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
	return nil
}
