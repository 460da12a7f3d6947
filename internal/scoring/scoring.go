// Package scoring holds the pure arithmetic behind ratings, points and the
// competitive bonus. Nothing in here touches the database or the clock, so
// every rule is directly testable.
package scoring

import (
	"math"
	"strings"
)

const (
	// MinRating and MaxRating bound the 1-10 rating scale.
	MinRating = 1
	MaxRating = 10

	// DefaultCalories is assumed when a session has no calorie estimate.
	DefaultCalories = 300

	// bonusNumerator/bonusDenominator implement the 1.5x competitive bonus
	// with integer flooring.
	bonusNumerator   = 3
	bonusDenominator = 2
)

// RatingFromCompletion converts a completion percentage into a 1-10 rating.
// Input outside [0,100] is clamped first. The mapping is ceil(pct/10),
// clamped so 0% still earns the minimum rating.
func RatingFromCompletion(completionPct int) int {
	pct := clamp(completionPct, 0, 100)
	rating := int(math.Ceil(float64(pct) / 10))
	return clamp(rating, MinRating, MaxRating)
}

// BasePoints computes points earned for a completed challenge. Ratings of 4
// and above earn floor(rating*calories/10); weaker efforts cost
// floor(calories/10). The penalty is later capped by the profile floor of 0.
func BasePoints(rating, calories int) int {
	if rating > 3 {
		return (rating * calories) / 10
	}
	return -(calories / 10)
}

// ApplyCompetitiveBonus applies the 1.5x match bonus when this side either
// finished first, or finished second with a strictly higher rating. The bonus
// never applies to non-positive point totals.
func ApplyCompetitiveBonus(points int, firstToFinish bool, myRating, opponentRating int) (int, bool) {
	if points <= 0 {
		return points, false
	}

	if firstToFinish || myRating > opponentRating {
		return points * bonusNumerator / bonusDenominator, true
	}

	return points, false
}

// CategoryFromItem derives a preference category from a free-text item by
// lower-casing its last whitespace-delimited token. This is a deliberately
// simple heuristic inherited from the product: "Chocolate Crepe" becomes
// "crepe". Multi-word categories and punctuation are not handled; callers
// must not rely on this being a real parser.
func CategoryFromItem(item string) string {
	fields := strings.Fields(item)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[len(fields)-1])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
