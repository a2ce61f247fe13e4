package spatial

import (
	"context"
	"sort"
	"sync"

	"domus/geo"
	"domus/models"
)

// FeatureStore answers "features of this category, nearest first" queries.
// maxKm <= 0 means unbounded and limit <= 0 means all matches.
type FeatureStore interface {
	Nearest(ctx context.Context, category models.Category, p geo.Point, maxKm float64, limit int) ([]models.SpatialFeature, error)
}

// MemoryStore is a FeatureStore over a slice, ordered with geo.Distance.
// Used for tests and for small POI sets loaded from files.
type MemoryStore struct {
	mu       sync.RWMutex
	features map[models.Category][]models.SpatialFeature
}

// NewMemoryStore returns a store holding features.
func NewMemoryStore(features ...models.SpatialFeature) *MemoryStore {
	s := &MemoryStore{features: make(map[models.Category][]models.SpatialFeature)}
	for _, f := range features {
		s.features[f.Category] = append(s.features[f.Category], f)
	}
	return s
}

// ReplaceCategory drops every feature of category and stores features in
// their place.
func (s *MemoryStore) ReplaceCategory(_ context.Context, category models.Category, features []models.SpatialFeature) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]models.SpatialFeature, 0, len(features))
	for _, f := range features {
		f.Category = category
		kept = append(kept, f)
	}
	s.features[category] = kept
	return len(kept), nil
}

func (s *MemoryStore) Nearest(ctx context.Context, category models.Category, p geo.Point, maxKm float64, limit int) ([]models.SpatialFeature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type candidate struct {
		feature  models.SpatialFeature
		distance float64
	}
	var candidates []candidate
	for _, f := range s.features[category] {
		d := geo.Distance(p, f.Location)
		if maxKm > 0 && d > maxKm {
			continue
		}
		candidates = append(candidates, candidate{f, d})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]models.SpatialFeature, len(candidates))
	for i, c := range candidates {
		out[i] = c.feature
	}
	return out, nil
}
