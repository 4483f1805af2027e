package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"restaurant-reviews/src/types"
)

const (
	restaurantsColl   = "restaurants"
	reviewsColl       = "reviews"
	neighborhoodsColl = "neighborhoods"

	// Hard caps on geospatial result sets.
	polygonResultCap = 200
	nearResultCap    = 200
	nearDefaultLimit = 20
)

// MongoStore implements types.DataStore on top of a MongoDB database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.SugaredLogger
}

func NewMongoStore(ctx context.Context, uri, dbName string, log *zap.SugaredLogger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(dbName), log: log}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the queries rely on: a 2dsphere index on
// address.coord for the geo endpoints, plus lookup indexes on
// reviews.restaurantId and neighborhoods.name.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(restaurantsColl).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "address.coord", Value: "2dsphere"}},
	})
	if err != nil {
		return fmt.Errorf("restaurants 2dsphere index: %w", err)
	}
	_, err = s.db.Collection(reviewsColl).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "restaurantId", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("reviews restaurantId index: %w", err)
	}
	_, err = s.db.Collection(neighborhoodsColl).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("neighborhoods name index: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateRestaurant(ctx context.Context, r *types.Restaurant) (*types.Restaurant, error) {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.RatingSummary = types.RatingSummary{}

	res, err := s.db.Collection(restaurantsColl).InsertOne(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("insert restaurant: %w", err)
	}
	r.ID = res.InsertedID.(primitive.ObjectID)
	return r, nil
}

func (s *MongoStore) GetRestaurant(ctx context.Context, id string) (*types.Restaurant, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, types.ErrInvalidID
	}
	var r types.Restaurant
	err = s.db.Collection(restaurantsColl).FindOne(ctx, bson.M{"_id": oid}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find restaurant: %w", err)
	}
	return &r, nil
}

func (s *MongoStore) UpdateRestaurant(ctx context.Context, id string, upd types.RestaurantUpdate) (*types.Restaurant, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, types.ErrInvalidID
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Borough != nil {
		set["borough"] = *upd.Borough
	}
	if upd.Cuisine != nil {
		set["cuisine"] = *upd.Cuisine
	}
	if upd.Address != nil {
		set["address"] = *upd.Address
	}

	var r types.Restaurant
	err = s.db.Collection(restaurantsColl).FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update restaurant: %w", err)
	}
	return &r, nil
}

func (s *MongoStore) DeleteRestaurant(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.ErrInvalidID
	}
	res, err := s.db.Collection(restaurantsColl).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete restaurant: %w", err)
	}
	if res.DeletedCount == 0 {
		return types.ErrNotFound
	}
	// Reviews referencing this restaurant are left in place; delete does not
	// cascade.
	return nil
}

func (s *MongoStore) ListRestaurants(ctx context.Context, page, limit int) ([]types.Restaurant, int64, error) {
	return s.findRestaurantPage(ctx, bson.M{}, bson.D{{Key: "createdAt", Value: -1}}, page, limit)
}

func (s *MongoStore) SearchRestaurants(ctx context.Context, q types.SearchQuery) ([]types.Restaurant, int64, error) {
	return s.findRestaurantPage(ctx, searchFilter(q), searchSort(q), q.Page, q.Limit)
}

// findRestaurantPage runs the paged find and the total count as two
// independent reads; they are not atomic with each other.
func (s *MongoStore) findRestaurantPage(ctx context.Context, filter bson.M, sort bson.D, page, limit int) ([]types.Restaurant, int64, error) {
	coll := s.db.Collection(restaurantsColl)

	opts := options.Find().
		SetSort(sort).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find restaurants: %w", err)
	}
	items := []types.Restaurant{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("decode restaurants: %w", err)
	}

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count restaurants: %w", err)
	}
	return items, total, nil
}

func (s *MongoStore) RestaurantsWithinPolygon(ctx context.Context, coordinates [][][]float64) ([]types.Restaurant, error) {
	cur, err := s.db.Collection(restaurantsColl).Find(ctx,
		polygonFilter(coordinates),
		options.Find().SetLimit(polygonResultCap),
	)
	if err != nil {
		return nil, fmt.Errorf("geo within: %w", err)
	}
	items := []types.Restaurant{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode geo within: %w", err)
	}
	return items, nil
}

func (s *MongoStore) RestaurantsNear(ctx context.Context, lng, lat, maxDistanceMeters float64, limit int) ([]types.NearRestaurant, error) {
	cur, err := s.db.Collection(restaurantsColl).Aggregate(ctx, nearPipeline(lng, lat, maxDistanceMeters, limit))
	if err != nil {
		return nil, fmt.Errorf("geo near: %w", err)
	}
	items := []types.NearRestaurant{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode geo near: %w", err)
	}
	return items, nil
}

func (s *MongoStore) CreateReview(ctx context.Context, rv *types.Review) (*types.Review, error) {
	rv.CreatedAt = time.Now().UTC()
	res, err := s.db.Collection(reviewsColl).InsertOne(ctx, rv)
	if err != nil {
		return nil, fmt.Errorf("insert review: %w", err)
	}
	rv.ID = res.InsertedID.(primitive.ObjectID)
	return rv, nil
}

func (s *MongoStore) ListReviewsByRestaurant(ctx context.Context, restaurantID string) ([]types.Review, error) {
	oid, err := primitive.ObjectIDFromHex(restaurantID)
	if err != nil {
		return nil, types.ErrInvalidID
	}
	cur, err := s.db.Collection(reviewsColl).Find(ctx,
		bson.M{"restaurantId": oid},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find reviews: %w", err)
	}
	items := []types.Review{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	return items, nil
}

func (s *MongoStore) UpdateReview(ctx context.Context, id string, upd types.ReviewUpdate) (*types.Review, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, types.ErrInvalidID
	}

	set := bson.M{}
	if upd.Rating != nil {
		set["rating"] = *upd.Rating
	}
	if upd.Comment != nil {
		set["comment"] = *upd.Comment
	}

	var rv types.Review
	if len(set) == 0 {
		// Nothing to change; still report whether the review exists.
		err = s.db.Collection(reviewsColl).FindOne(ctx, bson.M{"_id": oid}).Decode(&rv)
	} else {
		err = s.db.Collection(reviewsColl).FindOneAndUpdate(ctx,
			bson.M{"_id": oid},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&rv)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	return &rv, nil
}

func (s *MongoStore) DeleteReview(ctx context.Context, id string) (*types.Review, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, types.ErrInvalidID
	}
	var rv types.Review
	err = s.db.Collection(reviewsColl).FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&rv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete review: %w", err)
	}
	return &rv, nil
}

// UpdateRatingSummary writes the aggregate with a targeted $set of the two
// summary fields, never a document replace. A restaurant deleted between the
// review mutation and this write makes it a no-op.
func (s *MongoStore) UpdateRatingSummary(ctx context.Context, restaurantID string, sum types.RatingSummary) error {
	oid, err := primitive.ObjectIDFromHex(restaurantID)
	if err != nil {
		return types.ErrInvalidID
	}
	res, err := s.db.Collection(restaurantsColl).UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"ratingSummary.avg":   sum.Avg,
			"ratingSummary.count": sum.Count,
		}},
	)
	if err != nil {
		return fmt.Errorf("update rating summary: %w", err)
	}
	if res.MatchedCount == 0 {
		s.log.Debugw("rating summary target gone", "restaurantId", restaurantID)
	}
	return nil
}

func (s *MongoStore) NeighborhoodByName(ctx context.Context, name string) (*types.Neighborhood, error) {
	var n types.Neighborhood
	err := s.db.Collection(neighborhoodsColl).FindOne(ctx, bson.M{"name": name}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find neighborhood: %w", err)
	}
	return &n, nil
}

// searchFilter builds the mongo filter for a restaurant search. Name is a
// case-insensitive substring match with regex metacharacters escaped; the
// rating bounds are inclusive and apply to the cached average.
func searchFilter(q types.SearchQuery) bson.M {
	filter := bson.M{}
	if q.Name != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(q.Name), "$options": "i"}
	}
	if q.Borough != "" {
		filter["borough"] = q.Borough
	}
	if q.Cuisine != "" {
		filter["cuisine"] = q.Cuisine
	}
	if q.Zipcode != "" {
		filter["address.zipcode"] = q.Zipcode
	}
	if q.MinRating != nil || q.MaxRating != nil {
		bounds := bson.M{}
		if q.MinRating != nil {
			bounds["$gte"] = *q.MinRating
		}
		if q.MaxRating != nil {
			bounds["$lte"] = *q.MaxRating
		}
		filter["ratingSummary.avg"] = bounds
	}
	return filter
}

// searchSort maps the public sort keys onto document fields. Unknown keys
// fall back to createdAt; "rating" sorts on the cached average.
func searchSort(q types.SearchQuery) bson.D {
	key := "createdAt"
	switch q.Sort {
	case "name", "cuisine", "createdAt":
		key = q.Sort
	case "rating":
		key = "ratingSummary.avg"
	}
	dir := 1
	if q.Order == "desc" {
		dir = -1
	}
	return bson.D{{Key: key, Value: dir}}
}

// polygonFilter wraps the bare coordinate rings with the GeoJSON Polygon tag
// the containment query expects; the stored data does not carry the tag.
func polygonFilter(coordinates [][][]float64) bson.M {
	return bson.M{"address.coord": bson.M{
		"$geoWithin": bson.M{
			"$geometry": bson.M{
				"type":        "Polygon",
				"coordinates": coordinates,
			},
		},
	}}
}

// nearPipeline builds the $geoNear aggregation: spherical distance from the
// origin, annotated on each document as distanceMeters, closest first.
func nearPipeline(lng, lat, maxDistanceMeters float64, limit int) mongo.Pipeline {
	if limit <= 0 {
		limit = nearDefaultLimit
	}
	if limit > nearResultCap {
		limit = nearResultCap
	}
	near := bson.D{
		{Key: "near", Value: bson.D{
			{Key: "type", Value: "Point"},
			{Key: "coordinates", Value: bson.A{lng, lat}},
		}},
		{Key: "distanceField", Value: "distanceMeters"},
		{Key: "key", Value: "address.coord"},
		{Key: "spherical", Value: true},
	}
	if maxDistanceMeters > 0 {
		near = append(near, bson.E{Key: "maxDistance", Value: maxDistanceMeters})
	}
	return mongo.Pipeline{
		bson.D{{Key: "$geoNear", Value: near}},
		bson.D{{Key: "$limit", Value: limit}},
	}
}
