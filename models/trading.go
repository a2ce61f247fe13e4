package models

// TradingRecord is one row of a real-estate transaction price export. Fields
// are keyed by column name; empty cells are left out.
type TradingRecord struct {
	SourceFile string            `json:"source_file" db:"source_file"`
	Fields     map[string]string `json:"data" db:"data"`
}
