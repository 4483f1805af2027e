// Package rating computes the cached review aggregate for a restaurant.
package rating

import "restaurant-reviews/src/types"

// Summarize returns the arithmetic mean and exact count of the given review
// set. The mean is unrounded; an empty set yields {0, 0}.
func Summarize(reviews []types.Review) types.RatingSummary {
	if len(reviews) == 0 {
		return types.RatingSummary{}
	}
	var sum int
	for _, rv := range reviews {
		sum += rv.Rating
	}
	return types.RatingSummary{
		Avg:   float64(sum) / float64(len(reviews)),
		Count: int64(len(reviews)),
	}
}
