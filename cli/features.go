package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"domus/features"
	"domus/models"
)

// NewFeaturesCmd creates the features command.
func NewFeaturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Build the feature table from stored detail pages",
		Long: `Features reads stored listing details, parses their attributes, joins them
against the spatial store and writes one CSV row per listing.

A listing whose attributes cannot be parsed aborts the build.

Examples:
  # All stored listings to stdout
  domus features

  # Listings of one search crawled in the last week, to a file and S3
  domus features -s /jj/bukken/ichiran/JJ010FJ001/ --since 168h -o out/fukuoka.csv --upload`,
		Args: cobra.NoArgs,
		RunE: runFeaturesCmd,
	}

	cmd.Flags().StringP("search-url", "s", "", "Only listings found by this search path")
	cmd.Flags().String("search-time", "", "Only listings of the crawl started at this RFC 3339 time")
	cmd.Flags().Duration("since", 0, "Only listings stored within this duration")
	cmd.Flags().IntP("limit", "n", 0, "Maximum number of listings (0 = all)")
	cmd.Flags().StringP("output", "o", "", "Write CSV to this file instead of stdout")
	cmd.Flags().BoolP("upload", "u", false, "Upload the CSV to the configured S3 bucket")
	cmd.Flags().String("name", "features", "Export name used in the S3 key")

	return cmd
}

func buildFilter(cmd *cobra.Command, now time.Time) (models.ListingFilter, error) {
	var filter models.ListingFilter
	filter.SearchURL, _ = cmd.Flags().GetString("search-url")
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	if raw, _ := cmd.Flags().GetString("search-time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("invalid --search-time: %w", err)
		}
		filter.SearchTime = &t
	}
	if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
		t := now.Add(-since)
		filter.Since = &t
	}
	return filter, nil
}

func runFeaturesCmd(cmd *cobra.Command, _ []string) error {
	filter, err := buildFilter(cmd, time.Now())
	if err != nil {
		return err
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

	table, err := a.builder(pg).Build(ctx, filter)
	if err != nil {
		return err
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := features.WriteFile(table, output); err != nil {
			return err
		}
		log.Printf("Wrote %d rows to %s", table.Len(), output)
	} else if err := table.WriteCSV(cmd.OutOrStdout()); err != nil {
		return err
	}

	if upload, _ := cmd.Flags().GetBool("upload"); upload {
		u, err := a.uploader(ctx)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		if _, err := features.Publish(ctx, table, u, name, time.Now()); err != nil {
			return err
		}
	}
	return nil
}
