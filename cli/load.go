package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"domus/models"
)

// NewLoadFeaturesCmd creates the load-features command.
func NewLoadFeaturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load-features <category> <file.json>",
		Short: "Replace one spatial category with features from a JSON file",
		Long: `Load-features deletes every spatial feature of the category and inserts the
features in the file, in one transaction. The file holds a JSON array of
{"location": {"latitude": .., "longitude": ..}, "payload": {..}} objects.

Categories: mafia, cemetery, station_passengers, population, bus_stop, generic_poi`,
		Args: cobra.ExactArgs(2),
		RunE: runLoadFeaturesCmd,
	}
	return cmd
}

// readFeatures decodes a feature file, stamping category, ids and creation time.
func readFeatures(path string, category models.Category) ([]models.SpatialFeature, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	out := make([]models.SpatialFeature, 0, len(raw))
	for i, item := range raw {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		fields["category"], _ = json.Marshal(category)
		fixed, _ := json.Marshal(fields)

		var f models.SpatialFeature
		if err := json.Unmarshal(fixed, &f); err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		out = append(out, f)
	}
	return out, nil
}

func runLoadFeaturesCmd(cmd *cobra.Command, args []string) error {
	category := models.Category(args[0])
	feats, err := readFeatures(args[1], category)
	if err != nil {
		return err
	}

	cfg, closeLog, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := context.Background()
	a := &app{cfg: cfg}
	defer a.close()

	pg, err := a.postgres(ctx)
	if err != nil {
		return err
	}
	n, err := pg.ReplaceCategory(ctx, category, feats)
	if err != nil {
		return fmt.Errorf("replace %s: %w", category, err)
	}
	log.Printf("Replaced %s: %d features", category, n)
	return nil
}
