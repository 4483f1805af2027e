package types

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned by the store when a well-formed id matches nothing.
var ErrNotFound = errors.New("not found")

// ErrInvalidID is returned by the store when an id is not a 24-hex ObjectID.
// Handlers map it to 400, not 404.
var ErrInvalidID = errors.New("invalid id")

// Address is an optional sub-document of Restaurant. Coord, when present,
// must be a [longitude, latitude] pair.
type Address struct {
	Building string    `json:"building,omitempty" bson:"building,omitempty"`
	Street   string    `json:"street,omitempty" bson:"street,omitempty"`
	Zipcode  string    `json:"zipcode,omitempty" bson:"zipcode,omitempty"`
	Coord    []float64 `json:"coord,omitempty" bson:"coord,omitempty"`
}

// RatingSummary is the cached aggregate over a restaurant's reviews.
// It is recomputed after every review mutation, not transactionally.
type RatingSummary struct {
	Avg   float64 `json:"avg" bson:"avg"`
	Count int64   `json:"count" bson:"count"`
}

type Restaurant struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name"`
	Borough       string             `json:"borough" bson:"borough"`
	Cuisine       string             `json:"cuisine" bson:"cuisine"`
	Address       Address            `json:"address" bson:"address"`
	RatingSummary RatingSummary      `json:"ratingSummary" bson:"ratingSummary"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// NearRestaurant is a Restaurant annotated with the spherical distance from
// the query origin, as computed by the store's $geoNear stage.
type NearRestaurant struct {
	Restaurant     `bson:",inline"`
	DistanceMeters float64 `json:"distanceMeters" bson:"distanceMeters"`
}

type Review struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RestaurantID primitive.ObjectID `json:"restaurantId" bson:"restaurantId"`
	Rating       int                `json:"rating" bson:"rating"`
	Comment      string             `json:"comment" bson:"comment"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
}

// Neighborhood is read-only reference data. Geometry.Coordinates holds the
// bare polygon coordinates with no GeoJSON type tag; the store supplies the
// "Polygon" tag at query time.
type Neighborhood struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name     string             `json:"name" bson:"name"`
	Geometry struct {
		Coordinates [][][]float64 `json:"coordinates" bson:"coordinates"`
	} `json:"geometry" bson:"geometry"`
}

// RestaurantUpdate carries a partial update; nil fields are left untouched.
type RestaurantUpdate struct {
	Name    *string  `json:"name"`
	Borough *string  `json:"borough"`
	Cuisine *string  `json:"cuisine"`
	Address *Address `json:"address"`
}

// ReviewUpdate carries a partial update; nil fields are left untouched.
type ReviewUpdate struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

// SearchQuery collects the filter, sort and pagination parameters of a
// restaurant search. Nil rating bounds mean unbounded.
type SearchQuery struct {
	Name      string
	Borough   string
	Cuisine   string
	Zipcode   string
	MinRating *float64
	MaxRating *float64
	Sort      string
	Order     string
	Page      int
	Limit     int
}

// DataStore is the storage contract the handlers are written against.
type DataStore interface {
	CreateRestaurant(ctx context.Context, r *Restaurant) (*Restaurant, error)
	GetRestaurant(ctx context.Context, id string) (*Restaurant, error)
	UpdateRestaurant(ctx context.Context, id string, upd RestaurantUpdate) (*Restaurant, error)
	DeleteRestaurant(ctx context.Context, id string) error
	ListRestaurants(ctx context.Context, page, limit int) ([]Restaurant, int64, error)
	SearchRestaurants(ctx context.Context, q SearchQuery) ([]Restaurant, int64, error)
	RestaurantsWithinPolygon(ctx context.Context, coordinates [][][]float64) ([]Restaurant, error)
	RestaurantsNear(ctx context.Context, lng, lat, maxDistanceMeters float64, limit int) ([]NearRestaurant, error)

	CreateReview(ctx context.Context, rv *Review) (*Review, error)
	ListReviewsByRestaurant(ctx context.Context, restaurantID string) ([]Review, error)
	UpdateReview(ctx context.Context, id string, upd ReviewUpdate) (*Review, error)
	DeleteReview(ctx context.Context, id string) (*Review, error)

	UpdateRatingSummary(ctx context.Context, restaurantID string, sum RatingSummary) error
	NeighborhoodByName(ctx context.Context, name string) (*Neighborhood, error)
}
