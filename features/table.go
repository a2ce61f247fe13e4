package features

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"domus/models"
)

// Table is the feature table: one row per listing, in build order.
type Table struct {
	Rows []*models.FeatureRecord
}

func (t *Table) Len() int {
	return len(t.Rows)
}

// Columns is the union of the row columns in first-seen order.
func (t *Table) Columns() []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range t.Rows {
		for _, c := range row.Columns() {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}

// WriteCSV writes a header and one line per row. Columns a row does not have
// are empty; no-data statistics are written as NA.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cols := t.Columns()
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	line := make([]string, len(cols))
	for _, row := range t.Rows {
		for i, c := range cols {
			line[i] = row.Cell(c)
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write row %s: %w", row.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (t *Table) CSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
