package spatial

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"domus/config"
	"domus/geo"
	"domus/models"
)

const (
	StationRadiusKm    = 2.0
	PopulationRadiusKm = 1.0
	BusStopRadiusKm    = 1.0
	POIRadiusKm        = 1.0

	// RidershipReferenceYear is the pre-pandemic year the covid ratio compares against.
	RidershipReferenceYear = 2019
)

// ErrNoCandidates means a category query found nothing to aggregate.
var ErrNoCandidates = errors.New("no spatial candidates")

type Landmark struct {
	Name  string
	Point geo.Point
}

func LandmarksFromConfig(in []config.Landmark) []Landmark {
	out := make([]Landmark, 0, len(in))
	for _, l := range in {
		out = append(out, Landmark{Name: l.Name, Point: geo.NewPoint(l.Latitude, l.Longitude)})
	}
	return out
}

// Engine derives the spatial columns of one listing from a FeatureStore.
type Engine struct {
	store     FeatureStore
	landmarks []Landmark
}

// NewEngine joins against store and measures distances to landmarks.
func NewEngine(store FeatureStore, landmarks []Landmark) *Engine {
	return &Engine{store: store, landmarks: landmarks}
}

// Join adds the spatial columns for a listing at p to row. A category with no
// candidates leaves its columns out, except population which is set to
// models.NoData. Store errors abort the join.
func (e *Engine) Join(ctx context.Context, p geo.Point, row *models.FeatureRecord) error {
	for _, l := range e.landmarks {
		row.Set("distance_to_"+l.Name, p.Sub(l.Point))
	}

	steps := []struct {
		category models.Category
		join     func(context.Context, geo.Point, *models.FeatureRecord) error
	}{
		{models.CategoryMafia, e.minDistance(models.CategoryMafia, "min_distance_to_mafia")},
		{models.CategoryCemetery, e.minDistance(models.CategoryCemetery, "min_distance_to_cemetery")},
		{models.CategoryStationPassengers, e.nearestStation},
		{models.CategoryPopulation, e.population},
		{models.CategoryBusStop, e.busStops},
		{models.CategoryPOI, e.poiCounts},
	}
	for _, step := range steps {
		err := step.join(ctx, p, row)
		switch {
		case errors.Is(err, ErrNoCandidates):
			log.Printf("[debug] SpatialJoinEmpty %s: %s near %s", row.ID, step.category, p)
		case err != nil:
			return fmt.Errorf("spatial join %s: %w", step.category, err)
		}
	}
	return nil
}

func (e *Engine) nearest(ctx context.Context, category models.Category, p geo.Point, maxKm float64, limit int) ([]models.SpatialFeature, error) {
	features, err := e.store.Nearest(ctx, category, p, maxKm, limit)
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, ErrNoCandidates
	}
	return features, nil
}

func (e *Engine) minDistance(category models.Category, column string) func(context.Context, geo.Point, *models.FeatureRecord) error {
	return func(ctx context.Context, p geo.Point, row *models.FeatureRecord) error {
		features, err := e.nearest(ctx, category, p, 0, 1)
		if err != nil {
			return err
		}
		row.Set(column, p.Sub(features[0].Location))
		return nil
	}
}

func (e *Engine) nearestStation(ctx context.Context, p geo.Point, row *models.FeatureRecord) error {
	features, err := e.nearest(ctx, models.CategoryStationPassengers, p, StationRadiusKm, 1)
	if err != nil {
		return err
	}
	station := features[0]

	// A station without ridership figures contributes no columns at all.
	payload, ok := station.Payload.(*models.StationPassengersPayload)
	if !ok {
		return ErrNoCandidates
	}
	_, recent, ok := payload.Latest()
	if !ok {
		return ErrNoCandidates
	}
	row.Set("nearest_station_distance", p.Sub(station.Location))
	row.Set("nearest_station_passengers", recent)
	if ref, ok := payload.In(RidershipReferenceYear); ok && ref > 0 {
		row.Set("nearest_station_covid_ratio", float64(recent)/float64(ref))
	}
	return nil
}

func (e *Engine) population(ctx context.Context, p geo.Point, row *models.FeatureRecord) error {
	features, err := e.nearest(ctx, models.CategoryPopulation, p, PopulationRadiusKm, 0)
	if errors.Is(err, ErrNoCandidates) {
		row.Set("population_estimation_mean", models.NoData)
		row.Set("population_estimation_median", models.NoData)
		return err
	}
	if err != nil {
		return err
	}

	counts := make([]float64, 0, len(features))
	for _, f := range features {
		if payload, ok := f.Payload.(*models.PopulationPayload); ok {
			counts = append(counts, float64(payload.TotalPopulation))
		}
	}
	if len(counts) == 0 {
		row.Set("population_estimation_mean", models.NoData)
		row.Set("population_estimation_median", models.NoData)
		return ErrNoCandidates
	}
	row.Set("population_estimation_mean", Mean(counts))
	row.Set("population_estimation_median", Median(counts))
	return nil
}

func (e *Engine) busStops(ctx context.Context, p geo.Point, row *models.FeatureRecord) error {
	features, err := e.nearest(ctx, models.CategoryBusStop, p, BusStopRadiusKm, 0)
	if err != nil {
		return err
	}

	nearest := math.Inf(1)
	routes := 0
	for _, f := range features {
		if d := p.Sub(f.Location); d < nearest {
			nearest = d
		}
		if payload, ok := f.Payload.(*models.BusStopPayload); ok {
			routes += payload.RouteCount()
		}
	}
	row.Set("nearest_bus_stop_distance", nearest)
	row.Set("bus_stop_count", len(features))
	row.Set("bus_route_count", routes)
	return nil
}

// poiCounts writes <keyword>_count for every POI keyword found within
// POIRadiusKm. Keywords with no match get no column.
func (e *Engine) poiCounts(ctx context.Context, p geo.Point, row *models.FeatureRecord) error {
	features, err := e.nearest(ctx, models.CategoryPOI, p, POIRadiusKm, 0)
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, f := range features {
		if payload, ok := f.Payload.(*models.POIPayload); ok && payload.Keyword != "" {
			counts[payload.Keyword]++
		}
	}
	if len(counts) == 0 {
		return ErrNoCandidates
	}

	keywords := make([]string, 0, len(counts))
	for k := range counts {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)
	for _, k := range keywords {
		row.Set(k+"_count", counts[k])
	}
	return nil
}

func Mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Median averages the two middle values for an even count.
func Median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
