package handlers

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"restaurant-reviews/src/types"
)

// fakeStore is an in-memory types.DataStore with the same observable
// semantics as the mongo-backed one: creation-time ordering, non-atomic
// list/count, last-write-wins summary updates, no cascade on delete.
type fakeStore struct {
	mu            sync.Mutex
	restaurants   map[string]*types.Restaurant
	reviews       map[string]*types.Review
	neighborhoods map[string]*types.Neighborhood
	seq           int

	// afterListReviews, when set, runs after every review-set read. Tests
	// use it to interleave the steps of concurrent recompute sequences.
	afterListReviews func()
	failSummaryWrite bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		restaurants:   map[string]*types.Restaurant{},
		reviews:       map[string]*types.Review{},
		neighborhoods: map[string]*types.Neighborhood{},
	}
}

func (s *fakeStore) nextTime() time.Time {
	s.seq++
	return time.Unix(1700000000, 0).Add(time.Duration(s.seq) * time.Millisecond)
}

func (s *fakeStore) CreateRestaurant(_ context.Context, r *types.Restaurant) (*types.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = primitive.NewObjectID()
	now := s.nextTime()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.RatingSummary = types.RatingSummary{}
	cp := *r
	s.restaurants[r.ID.Hex()] = &cp
	return r, nil
}

func (s *fakeStore) GetRestaurant(_ context.Context, id string) (*types.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restaurants[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) UpdateRestaurant(_ context.Context, id string, upd types.RestaurantUpdate) (*types.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restaurants[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Borough != nil {
		r.Borough = *upd.Borough
	}
	if upd.Cuisine != nil {
		r.Cuisine = *upd.Cuisine
	}
	if upd.Address != nil {
		r.Address = *upd.Address
	}
	r.UpdatedAt = s.nextTime()
	cp := *r
	return &cp, nil
}

func (s *fakeStore) DeleteRestaurant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.restaurants[id]; !ok {
		return types.ErrNotFound
	}
	delete(s.restaurants, id)
	return nil
}

func (s *fakeStore) allRestaurants() []types.Restaurant {
	out := make([]types.Restaurant, 0, len(s.restaurants))
	for _, r := range s.restaurants {
		out = append(out, *r)
	}
	return out
}

func (s *fakeStore) ListRestaurants(_ context.Context, page, limit int) ([]types.Restaurant, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.allRestaurants()
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return pageSlice(items, page, limit), int64(len(items)), nil
}

func (s *fakeStore) SearchRestaurants(_ context.Context, q types.SearchQuery) ([]types.Restaurant, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []types.Restaurant{}
	for _, r := range s.allRestaurants() {
		if q.Name != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(q.Name)) {
			continue
		}
		if q.Borough != "" && r.Borough != q.Borough {
			continue
		}
		if q.Cuisine != "" && r.Cuisine != q.Cuisine {
			continue
		}
		if q.Zipcode != "" && r.Address.Zipcode != q.Zipcode {
			continue
		}
		if q.MinRating != nil && r.RatingSummary.Avg < *q.MinRating {
			continue
		}
		if q.MaxRating != nil && r.RatingSummary.Avg > *q.MaxRating {
			continue
		}
		items = append(items, r)
	}

	less := func(i, j types.Restaurant) bool { return i.CreatedAt.Before(j.CreatedAt) }
	switch q.Sort {
	case "name":
		less = func(i, j types.Restaurant) bool { return i.Name < j.Name }
	case "cuisine":
		less = func(i, j types.Restaurant) bool { return i.Cuisine < j.Cuisine }
	case "rating":
		less = func(i, j types.Restaurant) bool { return i.RatingSummary.Avg < j.RatingSummary.Avg }
	}
	sort.Slice(items, func(i, j int) bool {
		if q.Order == "desc" {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
	return pageSlice(items, q.Page, q.Limit), int64(len(items)), nil
}

func pageSlice(items []types.Restaurant, page, limit int) []types.Restaurant {
	start := (page - 1) * limit
	if start >= len(items) {
		return []types.Restaurant{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (s *fakeStore) RestaurantsWithinPolygon(_ context.Context, coordinates [][][]float64) ([]types.Restaurant, error) {
	if len(coordinates) == 0 {
		return nil, errors.New("empty polygon")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ring := coordinates[0]
	items := []types.Restaurant{}
	for _, r := range s.allRestaurants() {
		if len(r.Address.Coord) == 2 && pointInRing(r.Address.Coord[0], r.Address.Coord[1], ring) {
			items = append(items, r)
		}
	}
	if len(items) > 200 {
		items = items[:200]
	}
	return items, nil
}

// pointInRing is a ray-casting containment check, good enough to stand in
// for the engine's $geoWithin in tests.
func pointInRing(x, y float64, ring [][]float64) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func (s *fakeStore) RestaurantsNear(_ context.Context, lng, lat, maxDistanceMeters float64, limit int) ([]types.NearRestaurant, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []types.NearRestaurant{}
	for _, r := range s.allRestaurants() {
		if len(r.Address.Coord) != 2 {
			continue
		}
		d := haversineMeters(lat, lng, r.Address.Coord[1], r.Address.Coord[0])
		if maxDistanceMeters > 0 && d > maxDistanceMeters {
			continue
		}
		items = append(items, types.NearRestaurant{Restaurant: r, DistanceMeters: d})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].DistanceMeters < items[j].DistanceMeters })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371000.0
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func (s *fakeStore) CreateReview(_ context.Context, rv *types.Review) (*types.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv.ID = primitive.NewObjectID()
	rv.CreatedAt = s.nextTime()
	cp := *rv
	s.reviews[rv.ID.Hex()] = &cp
	return rv, nil
}

func (s *fakeStore) ListReviewsByRestaurant(_ context.Context, restaurantID string) ([]types.Review, error) {
	s.mu.Lock()
	items := []types.Review{}
	for _, rv := range s.reviews {
		if rv.RestaurantID.Hex() == restaurantID {
			items = append(items, *rv)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	hook := s.afterListReviews
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return items, nil
}

func (s *fakeStore) UpdateReview(_ context.Context, id string, upd types.ReviewUpdate) (*types.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv, ok := s.reviews[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	if upd.Rating != nil {
		rv.Rating = *upd.Rating
	}
	if upd.Comment != nil {
		rv.Comment = *upd.Comment
	}
	cp := *rv
	return &cp, nil
}

func (s *fakeStore) DeleteReview(_ context.Context, id string) (*types.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv, ok := s.reviews[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	delete(s.reviews, id)
	cp := *rv
	return &cp, nil
}

func (s *fakeStore) UpdateRatingSummary(_ context.Context, restaurantID string, sum types.RatingSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSummaryWrite {
		return errors.New("summary write refused")
	}
	if r, ok := s.restaurants[restaurantID]; ok {
		r.RatingSummary = sum
	}
	return nil
}

func (s *fakeStore) NeighborhoodByName(_ context.Context, name string) (*types.Neighborhood, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.neighborhoods[name]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *n
	return &cp, nil
}
