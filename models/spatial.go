package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"domus/geo"
)

type Category string

const (
	CategoryMafia             Category = "mafia"
	CategoryCemetery          Category = "cemetery"
	CategoryStationPassengers Category = "station_passengers"
	CategoryPopulation        Category = "population"
	CategoryBusStop           Category = "bus_stop"
	CategoryPOI               Category = "generic_poi"
)

// Categories lists every category the spatial store may hold.
var Categories = []Category{
	CategoryMafia,
	CategoryCemetery,
	CategoryStationPassengers,
	CategoryPopulation,
	CategoryBusStop,
	CategoryPOI,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// SpatialFeature is one categorized point written by the bulk importers.
// The core only reads these.
type SpatialFeature struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Category  Category  `json:"category" db:"category"`
	Location  geo.Point `json:"location" db:"location"`
	Payload   Payload   `json:"payload" db:"payload"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Payload is the category-specific body of a SpatialFeature. The set of
// implementations is closed; see DecodePayload.
type Payload interface {
	Category() Category
	isPayload()
}

// Place is the common shape of points resolved through a geocoding lookup.
type Place struct {
	Name    string   `json:"name"`
	Address string   `json:"address,omitempty"`
	PlaceID string   `json:"place_id,omitempty"`
	Types   []string `json:"types,omitempty"`
}

type MafiaPayload struct {
	Place
	Organization string `json:"organization,omitempty"`
}

type CemeteryPayload struct {
	Place
}

type POIPayload struct {
	Place
	Keyword string `json:"keyword,omitempty"`
}

type StationPassengersPayload struct {
	StationName         string      `json:"station_name"`
	StationCode         string      `json:"station_code"`
	OperationCompany    string      `json:"operation_company"`
	RouteName           string      `json:"route_name"`
	RailwayClassCode    string      `json:"railway_class_code"`
	InstitutionTypeCode string      `json:"institution_type_code"`
	Passengers          map[int]int `json:"passengers"`
}

// Latest returns the ridership count of the most recent year on record.
func (p *StationPassengersPayload) Latest() (year, count int, ok bool) {
	if len(p.Passengers) == 0 {
		return 0, 0, false
	}
	years := make([]int, 0, len(p.Passengers))
	for y := range p.Passengers {
		years = append(years, y)
	}
	sort.Ints(years)
	year = years[len(years)-1]
	return year, p.Passengers[year], true
}

func (p *StationPassengersPayload) In(year int) (int, bool) {
	count, ok := p.Passengers[year]
	return count, ok
}

type PopulationPayload struct {
	MeshCode        string         `json:"mesh_code"`
	TotalPopulation int            `json:"total_population"`
	Buckets         map[string]int `json:"buckets,omitempty"`
}

type BusRoute struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type BusStopPayload struct {
	Name   string       `json:"name"`
	Routes [][]BusRoute `json:"routes"`
}

// RouteCount is the number of route entries across all route groups.
func (p *BusStopPayload) RouteCount() int {
	n := 0
	for _, group := range p.Routes {
		n += len(group)
	}
	return n
}

func (*MafiaPayload) Category() Category             { return CategoryMafia }
func (*CemeteryPayload) Category() Category          { return CategoryCemetery }
func (*POIPayload) Category() Category               { return CategoryPOI }
func (*StationPassengersPayload) Category() Category { return CategoryStationPassengers }
func (*PopulationPayload) Category() Category        { return CategoryPopulation }
func (*BusStopPayload) Category() Category           { return CategoryBusStop }

func (*MafiaPayload) isPayload()             {}
func (*CemeteryPayload) isPayload()          {}
func (*POIPayload) isPayload()               {}
func (*StationPassengersPayload) isPayload() {}
func (*PopulationPayload) isPayload()        {}
func (*BusStopPayload) isPayload()           {}

// DecodePayload unmarshals a stored payload into the struct for its category.
func DecodePayload(category Category, data []byte) (Payload, error) {
	var p Payload
	switch category {
	case CategoryMafia:
		p = &MafiaPayload{}
	case CategoryCemetery:
		p = &CemeteryPayload{}
	case CategoryPOI:
		p = &POIPayload{}
	case CategoryStationPassengers:
		p = &StationPassengersPayload{}
	case CategoryPopulation:
		p = &PopulationPayload{}
	case CategoryBusStop:
		p = &BusStopPayload{}
	default:
		return nil, fmt.Errorf("unknown spatial category %q", category)
	}
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", category, err)
	}
	return p, nil
}

func (f *SpatialFeature) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        uuid.UUID       `json:"id"`
		Category  Category        `json:"category"`
		Location  geo.Point       `json:"location"`
		Payload   json.RawMessage `json:"payload"`
		CreatedAt time.Time       `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := DecodePayload(raw.Category, raw.Payload)
	if err != nil {
		return err
	}
	*f = SpatialFeature{
		ID:        raw.ID,
		Category:  raw.Category,
		Location:  raw.Location,
		Payload:   payload,
		CreatedAt: raw.CreatedAt,
	}
	return nil
}
