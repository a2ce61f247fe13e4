// Package trading reads the real-estate transaction price CSV exports
// published by MLIT. The files are CP932 encoded.
package trading

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"domus/models"
)

// columnNames maps export headers to the stored column names. Headers not
// listed here are kept as they are.
var columnNames = map[string]string{
	"種類":         "type",
	"価格情報区分":     "price_info_type",
	"地域":         "region",
	"市区町村コード":    "city_code",
	"都道府県名":      "prefecture_name",
	"市区町村名":      "city_name",
	"地区名":        "district_name",
	"最寄駅：名称":     "nearest_station_name",
	"最寄駅：距離（分）":  "nearest_station_distance",
	"取引価格（総額）":   "total_transaction_price",
	"坪単価":        "price_per_tsubo",
	"間取り":        "layout",
	"面積（㎡）":      "area_in_sqm",
	"取引価格（㎡単価）":  "price_per_sqm",
	"土地の形状":      "land_shape",
	"間口":         "frontage",
	"延床面積（㎡）":    "floor_area_in_sqm",
	"建築年":        "year_built",
	"建物の構造":      "building_structure",
	"用途":         "usage",
	"今後の利用目的":    "future_usage",
	"前面道路：方位":    "road_orientation",
	"前面道路：種類":    "road_type",
	"前面道路：幅員（ｍ）": "road_width_in_meters",
	"都市計画":       "urban_planning",
	"建ぺい率（％）":    "coverage_ratio",
	"容積率（％）":     "floor_area_ratio",
	"取引時期":       "transaction_period",
	"改装":         "renovation",
	"取引の事情等":     "transaction_conditions",
}

// ColumnName returns the stored name for an export header.
func ColumnName(header string) string {
	header = strings.TrimSpace(header)
	if name, ok := columnNames[header]; ok {
		return name
	}
	return header
}

// Paths expands path to the CSV files to import: the file itself, or every
// *.csv directly inside a directory.
func Paths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("can't handle file/path %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	paths, err := filepath.Glob(filepath.Join(path, "*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadFile reads one CP932 export.
func ReadFile(path string) ([]models.TradingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, filepath.Base(path))
}

// Read decodes a CP932 export. Malformed lines and lines with more cells than
// the header are skipped with a warning.
func Read(r io.Reader, source string) ([]models.TradingRecord, error) {
	cr := csv.NewReader(transform.NewReader(r, japanese.ShiftJIS.NewDecoder()))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file", source)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", source, err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = ColumnName(h)
	}

	var records []models.TradingRecord
	for {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			log.Printf("[warn] %s: skipping line %d: %v", source, parseErr.Line, parseErr.Err)
			continue
		}
		if err != nil {
			return records, fmt.Errorf("%s: %w", source, err)
		}
		if len(cells) > len(columns) {
			line, _ := cr.FieldPos(0)
			log.Printf("[warn] %s: skipping line %d: %d cells, header has %d", source, line, len(cells), len(columns))
			continue
		}

		fields := make(map[string]string, len(cells))
		for i, v := range cells {
			if v = strings.TrimSpace(v); v != "" {
				fields[columns[i]] = v
			}
		}
		if len(fields) == 0 {
			continue
		}
		records = append(records, models.TradingRecord{SourceFile: source, Fields: fields})
	}
	return records, nil
}
