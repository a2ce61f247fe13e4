package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"domus/models"
	"domus/trading"
)

// NewImportTradingCmd creates the import-trading command.
func NewImportTradingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-trading",
		Short: "Replace the trading records with MLIT transaction price CSV exports",
		Long: `Import-trading reads one CP932 CSV export, or every *.csv in a directory,
and replaces the trading_records table with their rows.`,
		Args: cobra.NoArgs,
		RunE: runImportTradingCmd,
	}
	cmd.Flags().StringP("file", "f", "", "File or dir for trading CSV files")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readTradingRecords(path string) ([]models.TradingRecord, error) {
	paths, err := trading.Paths(path)
	if err != nil {
		return nil, err
	}
	var all []models.TradingRecord
	for _, p := range paths {
		log.Printf("Importing CSV file: %s", p)
		records, err := trading.ReadFile(p)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}

func runImportTradingCmd(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	path, _ := cmd.Flags().GetString("file")
	records, err := readTradingRecords(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a := &app{cfg: cfg}
	defer a.close()

	pg, err := a.postgres(ctx)
	if err != nil {
		return err
	}
	n, err := pg.ReplaceTradingRecords(ctx, records)
	if err != nil {
		return fmt.Errorf("import trading records: %w", err)
	}
	log.Printf("Imported %d trading records", n)
	return nil
}
