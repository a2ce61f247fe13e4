package features

import (
	"context"
	"fmt"
	"log"

	"domus/attrs"
	"domus/geo"
	"domus/identity"
	"domus/models"
)

// ListingSource streams stored detail records.
type ListingSource interface {
	EachDetail(ctx context.Context, filter models.ListingFilter, fn func(*models.DetailRecord) error) error
}

// Joiner adds spatial columns for a listing location.
type Joiner interface {
	Join(ctx context.Context, p geo.Point, row *models.FeatureRecord) error
}

// Builder turns stored listings into feature table rows.
type Builder struct {
	source ListingSource
	joiner Joiner
}

func NewBuilder(source ListingSource, joiner Joiner) *Builder {
	return &Builder{source: source, joiner: joiner}
}

// Build reads every listing matching filter and returns the table. The first
// unparseable listing aborts the build with its *attrs.ParseError.
func (b *Builder) Build(ctx context.Context, filter models.ListingFilter) (*Table, error) {
	table := &Table{}
	err := b.source.EachDetail(ctx, filter, func(rec *models.DetailRecord) error {
		row, err := b.Row(ctx, rec)
		if err != nil {
			return err
		}
		table.Rows = append(table.Rows, row)
		if table.Len()%100 == 0 {
			log.Printf("[info] Features: %d listings processed", table.Len())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build feature table: %w", err)
	}
	log.Printf("[info] Features: built %d rows", table.Len())
	return table, nil
}

// Row builds the feature row of a single listing.
func (b *Builder) Row(ctx context.Context, rec *models.DetailRecord) (*models.FeatureRecord, error) {
	a, err := attrs.Parse(rec)
	if err != nil {
		return nil, err
	}

	row := models.NewFeatureRecord(rec.ID())
	if code, ok := identity.ListingCode(rec.ID()); ok {
		row.Set("listing_code", code)
	}
	if rec.GPS != nil {
		row.Set("lat", rec.GPS.Latitude)
		row.Set("lon", rec.GPS.Longitude)
	}
	a.Apply(row)

	if rec.GPS == nil {
		log.Printf("[warn] %s: no gps, spatial columns omitted", rec.ID())
		return row, nil
	}
	if err := b.joiner.Join(ctx, *rec.GPS, row); err != nil {
		return nil, fmt.Errorf("listing %s: %w", rec.ID(), err)
	}
	return row, nil
}
