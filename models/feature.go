package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// NoDataValue marks a statistic computed over an empty candidate set. It is
// distinct from an omitted column and from zero.
type NoDataValue struct{}

var NoData = NoDataValue{}

func (NoDataValue) String() string { return "NA" }

func (NoDataValue) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// FeatureRecord is one row of the feature table. Columns keep insertion order;
// a column that was never set is absent, not zero.
type FeatureRecord struct {
	ID      string
	columns []string
	values  map[string]any
}

func NewFeatureRecord(id string) *FeatureRecord {
	r := &FeatureRecord{ID: id, values: make(map[string]any)}
	r.Set("id", id)
	return r
}

func (r *FeatureRecord) Set(column string, value any) {
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

func (r *FeatureRecord) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

func (r *FeatureRecord) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

func (r *FeatureRecord) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Float returns a numeric column as float64.
func (r *FeatureRecord) Float(column string) (float64, bool) {
	switch v := r.values[column].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// Cell renders a column for tabular output; absent columns render empty.
func (r *FeatureRecord) Cell(column string) string {
	v, ok := r.values[column]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func (r *FeatureRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.values)
}
