package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cravequest/backend/internal/places"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)

		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}))
	}))
}

func newTestGenerator(server *httptest.Server) *OpenAIGenerator {
	return NewOpenAI(Config{APIKey: "test-key", BaseURL: server.URL})
}

func TestGenerateChallengesParsesModelOutput(t *testing.T) {
	server := chatServer(t, `[
		{"description": "Run 3 km", "time_limit": 20},
		{"description": "Cycle 8 km", "time_limit": 30},
		{"description": "Swim 40 laps", "time_limit": 45},
		{"description": "extra entry beyond the cap", "time_limit": 60}
	]`)
	defer server.Close()

	challenges := newTestGenerator(server).GenerateChallenges(context.Background(), 350, nil, nil)
	require.Len(t, challenges, 3)
	require.Equal(t, "Run 3 km", challenges[0].Description)
	require.Equal(t, 20, challenges[0].TimeLimit)
}

func TestGenerateChallengesStripsMarkdownFences(t *testing.T) {
	server := chatServer(t, "```json\n[{\"description\": \"Run 3 km\", \"time_limit\": 20}]\n```")
	defer server.Close()

	challenges := newTestGenerator(server).GenerateChallenges(context.Background(), 350, nil, nil)
	require.Len(t, challenges, 1)
	require.Equal(t, "Run 3 km", challenges[0].Description)
}

func TestGenerateChallengesFallsBackOnGarbage(t *testing.T) {
	server := chatServer(t, "sorry, I cannot help with that")
	defer server.Close()

	challenges := newTestGenerator(server).GenerateChallenges(context.Background(), 420, nil, nil)
	require.Equal(t, FallbackChallenges(420), challenges)
	require.Equal(t, 30, challenges[0].TimeLimit)
	require.Contains(t, challenges[0].Description, "~420 kcal")
}

func TestGenerateChallengesFallsBackWithoutAPIKey(t *testing.T) {
	g := NewOpenAI(Config{})
	challenges := g.GenerateChallenges(context.Background(), 300, nil, nil)
	require.Equal(t, FallbackChallenges(300), challenges)
}

func TestEstimateCalories(t *testing.T) {
	server := chatServer(t, `{"calories": 540}`)
	defer server.Close()

	require.Equal(t, 540, newTestGenerator(server).EstimateCalories(context.Background(), "double cheeseburger"))
}

func TestEstimateCaloriesFallsBackOnNonPositive(t *testing.T) {
	server := chatServer(t, `{"calories": -10}`)
	defer server.Close()

	require.Equal(t, DefaultCalories, newTestGenerator(server).EstimateCalories(context.Background(), "water"))
}

func TestGenerateCravingOptions(t *testing.T) {
	server := chatServer(t, `[
		{"option": "Nutella Crepe", "store": "Crepe Corner", "description": "Warm crepe with hazelnut spread."}
	]`)
	defer server.Close()

	options, err := newTestGenerator(server).GenerateCravingOptions(
		context.Background(),
		"chocolate crepe",
		[]places.Place{{Name: "Crepe Corner", Address: "12 Main St", Rating: 4.5}},
		[]PreferenceHint{{Item: "Chocolate Crepe", OrderCount: 3}},
	)
	require.NoError(t, err)
	require.Len(t, options, 1)
	require.Equal(t, "Crepe Corner", options[0].Store)
}

func TestGenerateCravingOptionsSurfacesFailures(t *testing.T) {
	server := chatServer(t, "[]")
	defer server.Close()

	_, err := newTestGenerator(server).GenerateCravingOptions(context.Background(), "pizza", nil, nil)
	require.Error(t, err)

	server2 := chatServer(t, "sorry, I cannot help with that")
	defer server2.Close()

	_, err = newTestGenerator(server2).GenerateCravingOptions(context.Background(), "pizza", nil, nil)
	require.Error(t, err)

	_, err = NewOpenAI(Config{}).GenerateCravingOptions(context.Background(), "pizza", nil, nil)
	require.Error(t, err)
}

func TestStripFences(t *testing.T) {
	require.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
	require.Equal(t, "", stripFences("   "))
}
