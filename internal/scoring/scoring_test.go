package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRatingFromCompletionBoundsAndMonotonicity(t *testing.T) {
	prev := 0
	for pct := 0; pct <= 100; pct++ {
		rating := RatingFromCompletion(pct)
		require.GreaterOrEqual(t, rating, MinRating, "pct=%d", pct)
		require.LessOrEqual(t, rating, MaxRating, "pct=%d", pct)
		require.GreaterOrEqual(t, rating, prev, "rating must not decrease at pct=%d", pct)
		prev = rating
	}
}

func TestRatingFromCompletionKnownValues(t *testing.T) {
	require.Equal(t, 1, RatingFromCompletion(0))
	require.Equal(t, 1, RatingFromCompletion(10))
	require.Equal(t, 2, RatingFromCompletion(11))
	require.Equal(t, 8, RatingFromCompletion(75))
	require.Equal(t, 8, RatingFromCompletion(80))
	require.Equal(t, 10, RatingFromCompletion(100))

	// Out-of-range input is clamped, not rejected.
	require.Equal(t, 1, RatingFromCompletion(-5))
	require.Equal(t, 10, RatingFromCompletion(250))
}

func TestBasePoints(t *testing.T) {
	require.Equal(t, 300, BasePoints(10, 300))
	require.Equal(t, -30, BasePoints(2, 300))
	require.Equal(t, 120, BasePoints(4, 300))
	require.Equal(t, -30, BasePoints(3, 300))
	require.Equal(t, 0, BasePoints(10, 0))
}

func TestApplyCompetitiveBonus(t *testing.T) {
	// First to finish with positive points gets 1.5x, floored.
	points, applied := ApplyCompetitiveBonus(245, true, 8, 0)
	require.True(t, applied)
	require.Equal(t, 367, points)

	// Second to finish wins the bonus only with a strictly higher rating.
	points, applied = ApplyCompetitiveBonus(100, false, 8, 5)
	require.True(t, applied)
	require.Equal(t, 150, points)

	_, applied = ApplyCompetitiveBonus(100, false, 5, 8)
	require.False(t, applied)

	// Ties favour neither side.
	_, applied = ApplyCompetitiveBonus(100, false, 7, 7)
	require.False(t, applied)

	// Negative or zero points never receive a bonus.
	points, applied = ApplyCompetitiveBonus(-30, true, 2, 0)
	require.False(t, applied)
	require.Equal(t, -30, points)

	_, applied = ApplyCompetitiveBonus(0, true, 1, 0)
	require.False(t, applied)
}

func TestCategoryFromItem(t *testing.T) {
	require.Equal(t, "crepe", CategoryFromItem("Chocolate Crepe"))
	require.Equal(t, "pizza", CategoryFromItem("pizza"))
	require.Equal(t, "slice", CategoryFromItem("pepperoni pizza slice"))
	require.Equal(t, "unknown", CategoryFromItem(""))
	require.Equal(t, "unknown", CategoryFromItem("   "))
	// Known quirk: trailing punctuation sticks to the token.
	require.Equal(t, "fries!", CategoryFromItem("loaded fries!"))
}
