// Package generator produces craving options, calorie estimates and workout
// challenges from a chat-completion model. Calorie and challenge generation
// degrade to deterministic fallbacks when the provider is unavailable or
// returns garbage; craving options have no safe substitute and surface the
// error instead.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cravequest/backend/internal/places"
)

// ChallengeSuggestion is one workout proposal calibrated to a calorie target.
type ChallengeSuggestion struct {
	Description string `json:"description"`
	TimeLimit   int    `json:"time_limit"`
}

// CravingOption is one concrete menu item tied to a nearby store.
type CravingOption struct {
	Option      string `json:"option"`
	Store       string `json:"store"`
	Description string `json:"description"`
}

// PreferenceHint summarises a user's order history for prompt building.
type PreferenceHint struct {
	Item       string
	OrderCount int
}

// Generator is the model-backed capability surface the session flow needs.
type Generator interface {
	GenerateCravingOptions(ctx context.Context, craveItem string, nearby []places.Place, prefs []PreferenceHint) ([]CravingOption, error)
	EstimateCalories(ctx context.Context, item string) int
	GenerateChallenges(ctx context.Context, calories int, age *int, weightKG *float64) []ChallengeSuggestion
}

// DefaultCalories is the estimate used when the model gives no usable number.
const DefaultCalories = 300

// FallbackChallenges returns the fixed easy/medium/hard trio for a calorie
// target.
func FallbackChallenges(calories int) []ChallengeSuggestion {
	return []ChallengeSuggestion{
		{Description: fmt.Sprintf("Take a brisk walk to burn ~%d kcal", calories), TimeLimit: 30},
		{Description: fmt.Sprintf("Do a light jog to burn ~%d kcal", calories), TimeLimit: 20},
		{Description: fmt.Sprintf("Bodyweight exercises (squats, push-ups, lunges) to burn ~%d kcal", calories), TimeLimit: 15},
	}
}

// stripFences removes markdown code fences that models wrap JSON payloads in.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
