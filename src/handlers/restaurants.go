package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"restaurant-reviews/src/cache"
	"restaurant-reviews/src/types"
)

type listEnvelope struct {
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Total int64              `json:"total"`
	Items []types.Restaurant `json:"items"`
}

type withinEnvelope struct {
	Neighborhood string             `json:"neighborhood,omitempty"`
	Count        int                `json:"count"`
	Items        []types.Restaurant `json:"items"`
}

type origin struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

type nearEnvelope struct {
	Origin origin                 `json:"origin"`
	Count  int                    `json:"count"`
	Items  []types.NearRestaurant `json:"items"`
}

type restaurantPayload struct {
	Name    string         `json:"name"`
	Borough string         `json:"borough"`
	Cuisine string         `json:"cuisine"`
	Address *types.Address `json:"address"`
}

// validAddress rejects a coord that is present but not a [lng, lat] pair.
func validAddress(a *types.Address) bool {
	return a == nil || len(a.Coord) == 0 || len(a.Coord) == 2
}

func HandleCreateRestaurant(w http.ResponseWriter, r *http.Request, client types.DataStore) {
	var p restaurantPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Borough = strings.TrimSpace(p.Borough)
	p.Cuisine = strings.TrimSpace(p.Cuisine)
	if p.Name == "" || p.Borough == "" || p.Cuisine == "" {
		respondError(w, http.StatusBadRequest, "name, borough, cuisine are required")
		return
	}
	if !validAddress(p.Address) {
		respondError(w, http.StatusBadRequest, "address.coord must be [lng, lat]")
		return
	}

	rest := &types.Restaurant{
		Name:    p.Name,
		Borough: p.Borough,
		Cuisine: p.Cuisine,
	}
	if p.Address != nil {
		rest.Address = *p.Address
	}

	created, err := client.CreateRestaurant(r.Context(), rest)
	if err != nil {
		respondStoreError(w, err, "Not found")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func HandleListRestaurants(w http.ResponseWriter, r *http.Request, client types.DataStore) {
	page, limit := parsePagination(r)
	items, total, err := client.ListRestaurants(r.Context(), page, limit)
	if err != nil {
		respondStoreError(w, err, "Not found")
		return
	}
	respondJSON(w, http.StatusOK, listEnvelope{Page: page, Limit: limit, Total: total, Items: items})
}

func HandleSearchRestaurants(w http.ResponseWriter, r *http.Request, client types.DataStore) {
	qp := r.URL.Query()
	page, limit := parsePagination(r)
	q := types.SearchQuery{
		Name:    qp.Get("name"),
		Borough: qp.Get("borough"),
		Cuisine: qp.Get("cuisine"),
		Zipcode: qp.Get("zipcode"),
		Sort:    qp.Get("sort"),
		Order:   qp.Get("order"),
		Page:    page,
		Limit:   limit,
	}
	if v := qp.Get("minRating"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "minRating must be a number")
			return
		}
		q.MinRating = &f
	}
	if v := qp.Get("maxRating"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "maxRating must be a number")
			return
		}
		q.MaxRating = &f
	}

	items, total, err := client.SearchRestaurants(r.Context(), q)
	if err != nil {
		respondStoreError(w, err, "Not found")
		return
	}
	respondJSON(w, http.StatusOK, listEnvelope{Page: page, Limit: limit, Total: total, Items: items})
}

func HandleWithinNeighborhood(w http.ResponseWriter, r *http.Request, client types.DataStore, nc *cache.Neighborhoods) {
	name := r.URL.Query().Get("neighborhood")
	if name == "" {
		respondError(w, http.StatusBadRequest, "neighborhood is required")
		return
	}

	n, err := nc.Get(r.Context(), name, client.NeighborhoodByName)
	if err != nil {
		respondStoreError(w, err, "Neighborhood not found")
		return
	}

	items, err := client.RestaurantsWithinPolygon(r.Context(), n.Geometry.Coordinates)
	if err != nil {
		respondStoreError(w, err, "Not found")
		return
	}
	respondJSON(w, http.StatusOK, withinEnvelope{Neighborhood: n.Name, Count: len(items), Items: items})
}

// normalizePolygon accepts either full polygon coordinates (an array of
// rings) or a single bare ring, and returns polygon coordinates. The GeoJSON
// type tag is supplied downstream by the store.
func normalizePolygon(raw json.RawMessage) ([][][]float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("coordinates are required")
	}
	var rings [][][]float64
	if err := json.Unmarshal(raw, &rings); err == nil && len(rings) > 0 && len(rings[0]) > 0 {
		return rings, nil
	}
	var ring [][]float64
	if err := json.Unmarshal(raw, &ring); err == nil && len(ring) > 0 {
		return [][][]float64{ring}, nil
	}
	return nil, errors.New("coordinates must be a polygon ring")
}

func HandleWithinPolygon(w http.ResponseWriter, r *http.Request, client types.DataStore) {
	var body struct {
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	coords, err := normalizePolygon(body.Coordinates)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := client.RestaurantsWithinPolygon(r.Context(), coords)
	if err != nil {
		respondStoreError(w, err, "Not found")
		return
	}
	respondJSON(w, http.StatusOK, withinEnvelope{Count: len(items), Items: items})
}

func HandleNearRestaurants(w http.ResponseWriter, r *http.Request, client types.DataStore) {
	qp := r.URL.Query()
	lng, errLng := strconv.ParseFloat(qp.Get("lng"), 64)
	lat, errLat := strconv.ParseFloat(qp.Get("lat"), 64)
	if errLng != nil || errLat != nil ||
		math.IsNaN(lng) || math.IsInf(lng, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		respondError(w, http.StatusBadRequest, "lng and lat must be numbers")
		return
	}

	var maxDistance float64
	if v := qp.Get("maxDistanceMeters"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
			respondError(w, http.StatusBadRequest, "maxDistanceMeters must be a positive number")
			return
		}
		maxDistance = f
	}
	limit := 0
	if v := qp.Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	items, err := client.RestaurantsNear(r.Context(), lng, lat, maxDistance, limit)
	if err != nil {
		respondStoreError(w, err, "Not found")
		return
	}
	respondJSON(w, http.StatusOK, nearEnvelope{Origin: origin{Lng: lng, Lat: lat}, Count: len(items), Items: items})
}

func HandleGetRestaurant(w http.ResponseWriter, r *http.Request, client types.DataStore) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	rest, err := client.GetRestaurant(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "Not found")
		return
	}
	respondJSON(w, http.StatusOK, rest)
}

func HandleUpdateRestaurant(w http.ResponseWriter, r *http.Request, client types.DataStore) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	var upd types.RestaurantUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	// Validation re-runs against the merged result: a supplied field must be
	// valid on its own, an omitted field keeps its already-valid value.
	for _, f := range []*string{upd.Name, upd.Borough, upd.Cuisine} {
		if f != nil {
			*f = strings.TrimSpace(*f)
			if *f == "" {
				respondError(w, http.StatusBadRequest, "name, borough, cuisine must be non-empty")
				return
			}
		}
	}
	if !validAddress(upd.Address) {
		respondError(w, http.StatusBadRequest, "address.coord must be [lng, lat]")
		return
	}

	rest, err := client.UpdateRestaurant(r.Context(), id, upd)
	if err != nil {
		respondStoreError(w, err, "Not found")
		return
	}
	respondJSON(w, http.StatusOK, rest)
}

func HandleDeleteRestaurant(w http.ResponseWriter, r *http.Request, client types.DataStore) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	// Reviews are not cascaded; orphans keep referencing the deleted id.
	if err := client.DeleteRestaurant(r.Context(), id); err != nil {
		respondStoreError(w, err, "Not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
