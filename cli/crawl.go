package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"domus/scraper"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [search-url]",
		Short: "Crawl one search, or every configured search with --all",
		Long: `Crawl walks every page of a search result listing.

In summary mode each result block is stored in listing_summaries. With
--detailed every listing page is fetched (through the page cache), parsed and
stored in listing_details.

Examples:
  # Store summaries for a search
  domus crawl "https://suumo.jp/jj/bukken/ichiran/JJ010FJ001/?ar=090&ta=40&sc=40133"

  # Fetch detail pages, reusing cached copies
  domus crawl -d -c "https://suumo.jp/jj/bukken/ichiran/JJ010FJ001/?ar=090&ta=40&sc=40133"

  # Run every search in config/searches.yaml once
  domus crawl --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCmd,
	}

	cmd.Flags().BoolP("detailed", "d", false, "Fetch and store detail pages")
	cmd.Flags().BoolP("use-cache", "c", false, "Serve detail pages from the page cache when present")
	cmd.Flags().BoolP("all", "a", false, "Run every configured search with its own settings")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if all == (len(args) == 1) {
		return errors.New("give either a search url or --all")
	}

	cfg, closeLog, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	if all {
		return newScheduler(cfg, orchestrator, runs).RunAll(ctx)
	}

	detailed, _ := cmd.Flags().GetBool("detailed")
	useCache, _ := cmd.Flags().GetBool("use-cache")
	run, err := orchestrator.Run(ctx, scraper.RunOptions{
		SearchURL: args[0],
		Detailed:  detailed,
		UseCache:  useCache,
	})
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}
	log.Printf("Crawl complete: run %s, %d pages, %d listings, %d details, %d cache hits",
		run.ID, run.PagesFetched, run.ListingsFound, run.DetailsFetched, run.CacheHits)
	return nil
}
