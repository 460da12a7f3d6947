package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cravequest/backend/internal/places"
	"github.com/cravequest/backend/pkg/logger"
	"github.com/cravequest/backend/pkg/metrics"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 30 * time.Second
	temperature    = 0.7
	maxOptions     = 6
	maxChallenges  = 3
)

var errGeneratorDisabled = errors.New("generator: no api key configured")

// Config holds chat-completion provider options. An empty APIKey disables the
// client, which then serves fallbacks only.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAIGenerator implements Generator against any OpenAI-compatible
// chat-completions endpoint.
type OpenAIGenerator struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// NewOpenAI builds a generator from config.
func NewOpenAI(cfg Config) *OpenAIGenerator {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &OpenAIGenerator{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     logger.WithModule("generator"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chat performs one chat-completion round trip and returns the raw content.
func (g *OpenAIGenerator) chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if g.apiKey == "" {
		return "", errGeneratorDisabled
	}

	payload, err := json.Marshal(chatRequest{
		Model:       g.model,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generator: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("generator: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generator: call provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generator: provider returned status %d", resp.StatusCode)
	}

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("generator: decode response: %w", err)
	}
	if len(body.Choices) == 0 {
		return "", errors.New("generator: empty choices")
	}
	return body.Choices[0].Message.Content, nil
}

// GenerateCravingOptions asks the model for 4-6 specific menu items matching
// the craving, grounded in the nearby stores and the user's order history.
// There is no deterministic substitute for these, so failures are returned to
// the caller.
func (g *OpenAIGenerator) GenerateCravingOptions(ctx context.Context, craveItem string, nearby []places.Place, prefs []PreferenceHint) ([]CravingOption, error) {
	systemPrompt := "You are a food craving assistant. The user has a generic craving. " +
		"Based on the nearby stores provided, generate 4-6 specific options " +
		"the user can choose from. Each option should be a specific menu item " +
		"that satisfies the craving, tied to a real store from the list.\n\n" +
		"Return ONLY a JSON array where each element has:\n" +
		"  \"option\": specific item name,\n" +
		"  \"store\": store name from the list,\n" +
		"  \"description\": one-sentence description.\n\n" +
		"No markdown, no explanation, just the JSON array."

	var sb bytes.Buffer
	fmt.Fprintf(&sb, "Craving: %s\n\nNearby stores:\n", craveItem)
	if len(nearby) == 0 {
		sb.WriteString("No nearby stores found. Generate generic options instead.")
	} else {
		for _, p := range nearby {
			fmt.Fprintf(&sb, "- %s (%s, rating: %g)\n", p.Name, p.Address, p.Rating)
		}
	}
	if len(prefs) > 0 {
		sb.WriteString("\n\nThis user has ordered similar items before. " +
			"Prioritise options aligned with their history:\n")
		for _, p := range prefs {
			fmt.Fprintf(&sb, "- %s (ordered %d times)\n", p.Item, p.OrderCount)
		}
	}

	raw, err := g.chat(ctx, systemPrompt, sb.String())
	if err != nil {
		return nil, err
	}

	var options []CravingOption
	if err := json.Unmarshal([]byte(stripFences(raw)), &options); err != nil {
		return nil, fmt.Errorf("generator: parse options: %w", err)
	}
	if len(options) == 0 {
		return nil, errors.New("generator: no options produced")
	}
	if len(options) > maxOptions {
		options = options[:maxOptions]
	}
	return options, nil
}

// EstimateCalories asks the model for a calorie count for one food item.
func (g *OpenAIGenerator) EstimateCalories(ctx context.Context, item string) int {
	systemPrompt := "You are a nutrition assistant. Estimate the calorie count for the " +
		"given food item. Return ONLY a JSON object with a single key " +
		"\"calories\" whose value is an integer.\n" +
		"Example: {\"calories\": 350}\n" +
		"No markdown, no explanation, just the JSON object."

	raw, err := g.chat(ctx, systemPrompt, "Food item: "+item)
	if err != nil {
		g.fallback("calories", err)
		return DefaultCalories
	}

	var body struct {
		Calories int `json:"calories"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &body); err != nil || body.Calories <= 0 {
		g.fallback("calories", err)
		return DefaultCalories
	}
	return body.Calories
}

// GenerateChallenges asks the model for up to three workouts calibrated to the
// calorie target and, when known, the user's age and weight.
func (g *OpenAIGenerator) GenerateChallenges(ctx context.Context, calories int, age *int, weightKG *float64) []ChallengeSuggestion {
	systemPrompt := "You are a fitness challenge creator. The user wants to earn a food " +
		"treat by completing a physical challenge. Generate exactly 3 challenges " +
		"of varying difficulty (easy, medium, hard) that roughly burn the " +
		"given calorie amount.\n\n" +
		"For each challenge include:\n" +
		"  \"description\": clear instructions on what to do,\n" +
		"  \"time_limit\": duration in minutes.\n\n" +
		"Return ONLY a JSON array of 3 objects. No markdown, no explanation."

	userPrompt := fmt.Sprintf("Target calorie burn: %d kcal", calories)
	if age != nil && *age > 0 {
		userPrompt += fmt.Sprintf("\nUser age: %d", *age)
	}
	if weightKG != nil && *weightKG > 0 {
		userPrompt += fmt.Sprintf("\nUser weight: %g kg", *weightKG)
	}

	raw, err := g.chat(ctx, systemPrompt, userPrompt)
	if err != nil {
		g.fallback("challenges", err)
		return FallbackChallenges(calories)
	}

	var challenges []ChallengeSuggestion
	if err := json.Unmarshal([]byte(stripFences(raw)), &challenges); err != nil || len(challenges) == 0 {
		g.fallback("challenges", err)
		return FallbackChallenges(calories)
	}
	if len(challenges) > maxChallenges {
		challenges = challenges[:maxChallenges]
	}
	return challenges
}

func (g *OpenAIGenerator) fallback(kind string, err error) {
	metrics.GeneratorFallbacks.WithLabelValues(kind).Inc()
	if err != nil && !errors.Is(err, errGeneratorDisabled) {
		g.log.Warn("falling back to deterministic output",
			zap.String("kind", kind),
			zap.Error(err))
	}
}
