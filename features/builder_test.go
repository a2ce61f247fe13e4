package features

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"domus/attrs"
	"domus/geo"
	"domus/models"
	"domus/spatial"
)

type sliceSource struct {
	records []*models.DetailRecord
	filters []models.ListingFilter
}

func (s *sliceSource) EachDetail(_ context.Context, filter models.ListingFilter, fn func(*models.DetailRecord) error) error {
	s.filters = append(s.filters, filter)
	for _, rec := range s.records {
		if filter.SearchURL != "" && rec.Meta.SearchURL != filter.SearchURL {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func listing(url string, gps *geo.Point, kvs ...string) *models.DetailRecord {
	rec := &models.DetailRecord{
		Search: models.ListingSummary{URL: url, Title: "物件"},
		Meta:   models.SearchMeta{SearchURL: "/jj/bukken/ichiran/JJ010FJ001/"},
	}
	rec.GPS = gps
	for i := 0; i+1 < len(kvs); i += 2 {
		rec.ContentDetails = append(rec.ContentDetails, models.KV{Type: kvs[i], Content: kvs[i+1]})
	}
	return rec
}

func point(lat, lng float64) *geo.Point {
	p := geo.NewPoint(lat, lng)
	return &p
}

func testEngine() *spatial.Engine {
	store := spatial.NewMemoryStore(
		models.SpatialFeature{ID: uuid.New(), Category: models.CategoryMafia, Location: geo.NewPoint(33.60, 130.40), Payload: &models.MafiaPayload{}},
	)
	landmarks := []spatial.Landmark{{Name: "tenjin", Point: geo.NewPoint(33.59118086094799, 130.398581611983)}}
	return spatial.NewEngine(store, landmarks)
}

func TestBuild(t *testing.T) {
	source := &sliceSource{records: []*models.DetailRecord{
		listing("/ms/chuko/nc_1/", point(33.5902, 130.3990),
			"物件名", "天神の物件",
			"価格", "3500万円",
			"専有面積", "71.23㎡",
			"管理費", "1万5000円／月",
		),
		listing("/ms/chuko/nc_2/", nil,
			"物件名", "座標なし",
			"価格", "2980万円",
		),
	}}

	table, err := NewBuilder(source, testEngine()).Build(t.Context(), models.ListingFilter{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.Len())
	}

	first := table.Rows[0]
	if first.ID != "/ms/chuko/nc_1/" || first.Cell("price") != "3500" {
		t.Fatalf("unexpected first row id=%s price=%s", first.ID, first.Cell("price"))
	}
	if first.Cell("listing_code") != "1" {
		t.Fatalf("expected listing code 1, got %q", first.Cell("listing_code"))
	}
	if !first.Has("min_distance_to_mafia") || !first.Has("distance_to_tenjin") {
		t.Fatal("listing with gps should have spatial columns")
	}
	if first.Cell("population_estimation_mean") != "NA" {
		t.Fatalf("expected NA population, got %q", first.Cell("population_estimation_mean"))
	}

	second := table.Rows[1]
	for _, col := range []string{"lat", "min_distance_to_mafia", "distance_to_tenjin", "population_estimation_mean"} {
		if second.Has(col) {
			t.Errorf("listing without gps should not have %s", col)
		}
	}
}

func TestBuildPassesFilter(t *testing.T) {
	source := &sliceSource{}
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	filter := models.ListingFilter{SearchURL: "/jj/x/", Since: &since, Limit: 10}

	table, err := NewBuilder(source, testEngine()).Build(t.Context(), filter)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("expected empty table, got %d rows", table.Len())
	}
	if len(source.filters) != 1 || source.filters[0].SearchURL != "/jj/x/" || source.filters[0].Limit != 10 {
		t.Fatalf("filter not passed through: %+v", source.filters)
	}
}

func TestBuildAbortsOnFatalField(t *testing.T) {
	source := &sliceSource{records: []*models.DetailRecord{
		listing("/ms/chuko/nc_1/", nil, "価格", "3500万円"),
		listing("/ms/chuko/nc_2/", nil, "価格", "3500万円", "専有面積", "未定"),
		listing("/ms/chuko/nc_3/", nil, "価格", "1000万円"),
	}}

	_, err := NewBuilder(source, testEngine()).Build(t.Context(), models.ListingFilter{})
	var pe *attrs.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *attrs.ParseError, got %v", err)
	}
	if pe.ListingID != "/ms/chuko/nc_2/" {
		t.Fatalf("expected failing listing nc_2, got %s", pe.ListingID)
	}
}

func TestWriteCSV(t *testing.T) {
	a := models.NewFeatureRecord("/ms/chuko/nc_1/")
	a.Set("price", 3500.0)
	a.Set("population_estimation_mean", models.NoData)
	b := models.NewFeatureRecord("/ms/chuko/nc_2/")
	b.Set("pet", true)
	b.Set("price", 2980.5)

	var buf bytes.Buffer
	if err := (&Table{Rows: []*models.FeatureRecord{a, b}}).WriteCSV(&buf); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	lines, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	want := [][]string{
		{"id", "price", "population_estimation_mean", "pet"},
		{"/ms/chuko/nc_1/", "3500", "NA", ""},
		{"/ms/chuko/nc_2/", "2980.5", "", "true"},
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i := range want {
		if strings.Join(lines[i], ",") != strings.Join(want[i], ",") {
			t.Errorf("line %d: got %v, want %v", i, lines[i], want[i])
		}
	}
}

type memoryUploader struct {
	objects map[string][]byte
}

func (u *memoryUploader) TableKey(name string, at time.Time) string {
	return "exports/" + name + "/" + at.Format("20060102") + ".csv"
}

func (u *memoryUploader) Upload(_ context.Context, key string, data []byte, _ string) error {
	u.objects[key] = data
	return nil
}

func (u *memoryUploader) URL(key string) string {
	return "s3://bucket/" + key
}

func TestPublish(t *testing.T) {
	row := models.NewFeatureRecord("/ms/chuko/nc_1/")
	u := &memoryUploader{objects: make(map[string][]byte)}

	url, err := Publish(t.Context(), &Table{Rows: []*models.FeatureRecord{row}}, u, "fukuoka", time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if url != "s3://bucket/exports/fukuoka/20261018.csv" {
		t.Fatalf("unexpected url %s", url)
	}
	if got := string(u.objects["exports/fukuoka/20261018.csv"]); got != "id\n/ms/chuko/nc_1/\n" {
		t.Fatalf("unexpected object %q", got)
	}
}
