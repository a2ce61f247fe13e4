package models

import (
	"encoding/json"
	"regexp"
	"testing"
)

func TestFeatureRecordColumns(t *testing.T) {
	r := NewFeatureRecord("/ms/chuko/nc_1/")
	r.Set("price", 3500.0)
	r.Set("floor", 5)
	r.Set("price", 3600.0)
	r.Set("population_estimation_mean", NoData)

	cols := r.Columns()
	want := []string{"id", "price", "floor", "population_estimation_mean"}
	if len(cols) != len(want) {
		t.Fatalf("expected %v, got %v", want, cols)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, cols)
		}
	}

	if r.Cell("price") != "3600" || r.Cell("floor") != "5" {
		t.Fatalf("unexpected cells %q %q", r.Cell("price"), r.Cell("floor"))
	}
	if r.Cell("population_estimation_mean") != "NA" {
		t.Fatalf("no-data should render NA, got %q", r.Cell("population_estimation_mean"))
	}
	if r.Cell("missing") != "" || r.Has("missing") {
		t.Fatal("absent column should be empty")
	}
	if f, ok := r.Float("floor"); !ok || f != 5 {
		t.Fatalf("int column should read as float, got %v %v", f, ok)
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	json.Unmarshal(data, &decoded)
	if decoded["population_estimation_mean"] != nil {
		t.Fatalf("no-data should marshal as null, got %v", decoded["population_estimation_mean"])
	}
}

func TestListingDetailLookup(t *testing.T) {
	d := &ListingDetail{ContentDetails: []KV{
		{Type: "価格", Content: "3500万円"},
		{Type: "所在階/構造・階建", Content: "5階/RC14階建"},
		{Type: "価格", Content: "9999万円"},
	}}
	if v, ok := d.Get("価格"); !ok || v != "3500万円" {
		t.Fatalf("first occurrence should win, got %q", v)
	}
	if v, ok := d.FirstMatch(regexp.MustCompile(`階建`)); !ok || v != "5階/RC14階建" {
		t.Fatalf("unexpected match %q", v)
	}
	if _, ok := d.Get("向き"); ok {
		t.Fatal("expected missing label")
	}
}

func TestSpatialFeatureJSON(t *testing.T) {
	data := []byte(`{
		"id": "5f0c8a0e-6f3a-4a51-9b0e-2d4c1f0b7e11",
		"category": "bus_stop",
		"location": {"latitude": 33.59, "longitude": 130.40},
		"payload": {"name": "天神", "routes": [[{"name": "西鉄", "type": "1"}, {"name": "西鉄", "type": "2"}], [{"name": "市営", "type": "3"}]]}
	}`)
	var f SpatialFeature
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	stop, ok := f.Payload.(*BusStopPayload)
	if !ok {
		t.Fatalf("unexpected payload %T", f.Payload)
	}
	if stop.RouteCount() != 3 {
		t.Fatalf("expected 3 routes, got %d", stop.RouteCount())
	}

	if _, err := DecodePayload(Category("shrine"), nil); err == nil {
		t.Fatal("expected unknown category error")
	}
}

func TestStationPassengersLatest(t *testing.T) {
	p := &StationPassengersPayload{Passengers: map[int]int{2019: 100, 2021: 80, 2020: 60}}
	year, count, ok := p.Latest()
	if !ok || year != 2021 || count != 80 {
		t.Fatalf("unexpected latest %d %d %v", year, count, ok)
	}
	if _, _, ok := (&StationPassengersPayload{}).Latest(); ok {
		t.Fatal("empty payload has no latest year")
	}
}
