package handlers

import (
	"context"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"restaurant-reviews/src/metrics"
	"restaurant-reviews/src/rating"
	"restaurant-reviews/src/types"
)

const maxCommentLen = 1000

// Ratings arrive as JSON numbers; a float payload like 4.5 must be rejected,
// so the raw value is kept until the integer check runs.
type reviewPayload struct {
	Rating  *float64 `json:"rating"`
	Comment *string  `json:"comment"`
}

func validRating(v float64) bool {
	return v == math.Trunc(v) && v >= 1 && v <= 5
}

func validComment(c string) bool {
	return strings.TrimSpace(c) != "" && len(c) <= maxCommentLen
}

// refreshRatingSummary runs the recompute protocol for one restaurant: read
// the current review set, aggregate it, write the summary with a targeted
// field update. The three steps are not serialized against concurrent review
// mutations for the same restaurant; the last write wins.
func refreshRatingSummary(ctx context.Context, client types.DataStore, restaurantID string) error {
	metrics.SummaryRecomputeTotal.Inc()
	reviews, err := client.ListReviewsByRestaurant(ctx, restaurantID)
	if err != nil {
		metrics.SummaryRecomputeFailTotal.Inc()
		return err
	}
	if err := client.UpdateRatingSummary(ctx, restaurantID, rating.Summarize(reviews)); err != nil {
		metrics.SummaryRecomputeFailTotal.Inc()
		return err
	}
	return nil
}

// respondRecomputeError reports a summary write that failed after the review
// mutation was already committed. The mutation is not rolled back; the
// summary stays stale until the next successful recompute.
func respondRecomputeError(w http.ResponseWriter, err error, restaurantID string) {
	zap.S().Errorw("rating summary recompute failed",
		"restaurantId", restaurantID, "err", err)
	respondError(w, http.StatusInternalServerError, "Internal Server Error")
}

func HandleCreateReview(w http.ResponseWriter, r *http.Request, client types.DataStore) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		respondError(w, http.StatusBadRequest, "Invalid restaurant id")
		return
	}
	rest, err := client.GetRestaurant(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "Restaurant not found")
		return
	}

	var p reviewPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if p.Rating == nil || !validRating(*p.Rating) || p.Comment == nil || !validComment(*p.Comment) {
		respondError(w, http.StatusBadRequest, "rating(1-5) and comment are required")
		return
	}

	review, err := client.CreateReview(r.Context(), &types.Review{
		RestaurantID: rest.ID,
		Rating:       int(*p.Rating),
		Comment:      strings.TrimSpace(*p.Comment),
	})
	if err != nil {
		respondStoreError(w, err, "Not found")
		return
	}

	if err := refreshRatingSummary(r.Context(), client, id); err != nil {
		respondRecomputeError(w, err, id)
		return
	}
	respondJSON(w, http.StatusCreated, review)
}

func HandleListReviews(w http.ResponseWriter, r *http.Request, client types.DataStore) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		respondError(w, http.StatusBadRequest, "Invalid restaurant id")
		return
	}
	items, err := client.ListReviewsByRestaurant(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "Not found")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func HandleUpdateReview(w http.ResponseWriter, r *http.Request, client types.DataStore) {
	id := chi.URLParam(r, "reviewId")
	if !validID(id) {
		respondError(w, http.StatusBadRequest, "Invalid review id")
		return
	}

	var p reviewPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	// Partial update, but the merged document must stay valid: an
	// out-of-bounds rating is rejected even when sent alone.
	upd := types.ReviewUpdate{}
	if p.Rating != nil {
		if !validRating(*p.Rating) {
			respondError(w, http.StatusBadRequest, "rating must be an integer in [1,5]")
			return
		}
		v := int(*p.Rating)
		upd.Rating = &v
	}
	if p.Comment != nil {
		if !validComment(*p.Comment) {
			respondError(w, http.StatusBadRequest, "comment must be a non-empty string of at most 1000 characters")
			return
		}
		c := strings.TrimSpace(*p.Comment)
		upd.Comment = &c
	}

	review, err := client.UpdateReview(r.Context(), id, upd)
	if err != nil {
		respondStoreError(w, err, "Review not found")
		return
	}

	rid := review.RestaurantID.Hex()
	if err := refreshRatingSummary(r.Context(), client, rid); err != nil {
		respondRecomputeError(w, err, rid)
		return
	}
	respondJSON(w, http.StatusOK, review)
}

func HandleDeleteReview(w http.ResponseWriter, r *http.Request, client types.DataStore) {
	id := chi.URLParam(r, "reviewId")
	if !validID(id) {
		respondError(w, http.StatusBadRequest, "Invalid review id")
		return
	}

	deleted, err := client.DeleteReview(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "Review not found")
		return
	}

	// The deleted record carries the restaurant id the recompute is keyed by.
	rid := deleted.RestaurantID.Hex()
	if err := refreshRatingSummary(r.Context(), client, rid); err != nil {
		respondRecomputeError(w, err, rid)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
