package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cravequest/backend/internal/app"
	iauth "github.com/cravequest/backend/internal/auth"
	"github.com/cravequest/backend/internal/database"
	"github.com/cravequest/backend/internal/generator"
	"github.com/cravequest/backend/internal/places"
)

// canned generator so router tests never reach the network
type routerStubGenerator struct{}

func (routerStubGenerator) GenerateCravingOptions(_ context.Context, craveItem string, _ []places.Place, _ []generator.PreferenceHint) ([]generator.CravingOption, error) {
	return []generator.CravingOption{{
		Option:      craveItem,
		Store:       "Test Store",
		Description: "A " + craveItem,
	}}, nil
}

func (routerStubGenerator) EstimateCalories(context.Context, string) int {
	return generator.DefaultCalories
}

func (routerStubGenerator) GenerateChallenges(_ context.Context, calories int, _ *int, _ *float64) []generator.ChallengeSuggestion {
	return generator.FallbackChallenges(calories)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateAndSeed(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-secret", Issuer: "test", AccessTokenTTL: 15 * time.Minute})
	require.NoError(t, err)

	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)

	// An empty Places key means every search returns no venues without
	// touching the network.
	gen := routerStubGenerator{}
	searcher := places.NewGoogleSearcher(places.Config{})

	router, err := NewRouter(db, jwtSvc, cfg, gen, searcher, nil)
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "expected success envelope, got %s", rec.Body.String())
	return envelope.Data
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Protected endpoints reject anonymous callers.
	for _, path := range []string{"/api/auth/me", "/api/user/profile", "/api/user/history"} {
		rec = doJSON(t, router, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/session/crave", "", gin.H{"crave_item": "ramen"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// The invite landing page is public; an unknown token is a clean 404.
	rec = doJSON(t, router, http.MethodGet, "/invite/no-such-token", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown routes get the JSON not-found envelope.
	rec = doJSON(t, router, http.MethodGet, "/api/unknown", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "Route not found")
}

func TestRouterSignupAndCraveFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email":    "flow@example.com",
		"password": "superSecret1",
		"name":     "Flow",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	data := decodeData(t, rec)
	token, _ := data["access_token"].(string)
	require.NotEmpty(t, token)

	rec = doJSON(t, router, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeData(t, rec)
	require.Equal(t, "flow@example.com", me["email"])

	lat, lng := 1.3, 103.8
	rec = doJSON(t, router, http.MethodPost, "/api/session/crave", token, gin.H{
		"crave_item": "Chocolate Crepe",
		"latitude":   lat,
		"longitude":  lng,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	crave := decodeData(t, rec)
	sessionID, _ := crave["session_id"].(string)
	require.NotEmpty(t, sessionID)
	require.NotEmpty(t, crave["options"])

	rec = doJSON(t, router, http.MethodPost, "/api/session/select", token, gin.H{
		"session_id":      sessionID,
		"selected_option": "Chocolate Crepe",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	selection := decodeData(t, rec)
	require.EqualValues(t, generator.DefaultCalories, selection["estimated_calories"])

	rec = doJSON(t, router, http.MethodPost, "/api/session/choose-type", token, gin.H{
		"session_id":   sessionID,
		"session_type": "solo_challenge",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	chosen := decodeData(t, rec)
	require.NotEmpty(t, chosen["challenges"])

	rec = doJSON(t, router, http.MethodGet, "/api/user/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeData(t, rec)
	require.Equal(t, "Beginner", profile["rank"])
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "cravequest_api_latency_seconds"))
}
