package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"restaurant-reviews/src/types"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorw("response encoding failed", "err", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondStoreError maps store failures onto the error taxonomy: malformed
// ids are 400, absent records are 404, anything else is an upstream failure
// reported as a generic 500 with the detail kept server-side.
func respondStoreError(w http.ResponseWriter, err error, notFoundMsg string) {
	if errors.Is(err, types.ErrInvalidID) {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	if errors.Is(err, types.ErrNotFound) {
		respondError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	zap.S().Errorw("store failure", "err", err)
	respondError(w, http.StatusInternalServerError, "Internal Server Error")
}

// validID reports whether id is a well-formed 24-hex object id. Malformed
// ids are rejected before any store round-trip.
func validID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

// parsePagination applies the list defaults: page >= 1, limit in [1,100].
// Unparseable values fall back to the defaults.
func parsePagination(r *http.Request) (page, limit int) {
	page = defaultPage
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page = v
	}
	if page < 1 {
		page = 1
	}

	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = v
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
