// Package cli wires the domus commands.
package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"domus/config"
	"domus/logging"
	"domus/models"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domus",
		Short: "Crawl real-estate listings and build geospatial feature tables",
		Long: `domus crawls paginated SUUMO search results, stores listing summaries or
parsed detail pages in Postgres, and turns stored listings into a flat feature
table enriched with distances, ridership and population around each listing.

Configuration is read from the environment (and .env), plus
config/searches.yaml and config/landmarks.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewFeaturesCmd())
	cmd.AddCommand(NewDaemonCmd())
	cmd.AddCommand(NewLoadFeaturesCmd())
	cmd.AddCommand(NewImportTradingCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and routes the standard logger to the rotating
// log file. The returned func closes the log file.
func setup(cmd *cobra.Command) (*config.Config, func(), error) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level := models.LogLevel(cfg.LogLevel)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = models.LogLevelDebug
	}

	logFile, err := logging.Setup(cfg.LogPath, level)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
		return cfg, func() {}, nil
	}
	return cfg, func() { logFile.Close() }, nil
}
