package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cravequest/backend/internal/generator"
	"github.com/cravequest/backend/internal/models"
	"github.com/cravequest/backend/internal/places"
	apperrors "github.com/cravequest/backend/pkg/errors"
)

func newSessionService(t *testing.T, db *gorm.DB, gen generator.Generator, searcher places.Searcher) *SessionService {
	t.Helper()

	prefs, err := NewPreferenceService(db)
	require.NoError(t, err)

	svc, err := NewSessionService(db, gen, searcher, prefs)
	require.NoError(t, err)
	return svc
}

func TestSubmitCraveCreatesSession(t *testing.T) {
	db := openServiceTestDB(t)
	user := createTestUser(t, db, "Amara", "amara@example.com")

	gen := &stubGenerator{options: []generator.CravingOption{
		{Option: "Nutella Crepe", Store: "Crepe Corner", Description: "Warm and sweet."},
	}}
	searcher := &stubSearcher{results: []places.Place{{Name: "Crepe Corner", Address: "12 Main St"}}}
	svc := newSessionService(t, db, gen, searcher)

	result, err := svc.SubmitCrave(context.Background(), user.ID, "crepe", 6.9271, 79.8612)
	require.NoError(t, err)
	require.NotEmpty(t, result.SessionID)
	require.False(t, result.Personalized)
	require.Len(t, result.Options, 1)

	var session models.Session
	require.NoError(t, db.First(&session, "id = ?", result.SessionID).Error)
	require.Equal(t, "crepe", session.CraveItem)
	require.Nil(t, session.Calories)

	var stored map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(session.LocationOptions, &stored))
	require.Contains(t, stored, "places")
	require.Contains(t, stored, "options")
}

func TestSubmitCravePersonalizesAtThreshold(t *testing.T) {
	db := openServiceTestDB(t)
	user := createTestUser(t, db, "Amara", "amara@example.com")

	svc := newSessionService(t, db, &stubGenerator{}, &stubSearcher{})

	// Personalisation keys on the full lowercased craving, not the trailing
	// token. Seed history under that key.
	for i := 0; i < MaturityThreshold; i++ {
		pref := models.Preference{
			UserID:     user.ID,
			Category:   "chocolate crepe",
			Item:       fmt.Sprintf("Chocolate Crepe %d", i),
			OrderCount: i + 1,
		}
		require.NoError(t, db.Create(&pref).Error)
	}

	result, err := svc.SubmitCrave(context.Background(), user.ID, "Chocolate Crepe", 0, 0)
	require.NoError(t, err)
	require.True(t, result.Personalized)

	below, err := svc.SubmitCrave(context.Background(), user.ID, "pizza", 0, 0)
	require.NoError(t, err)
	require.False(t, below.Personalized)
}

func TestSubmitCraveRequiresItem(t *testing.T) {
	db := openServiceTestDB(t)
	user := createTestUser(t, db, "Amara", "amara@example.com")
	svc := newSessionService(t, db, &stubGenerator{}, &stubSearcher{})

	_, err := svc.SubmitCrave(context.Background(), user.ID, "  ", 0, 0)
	require.ErrorContains(t, err, "crave_item")
}

func TestSubmitCraveSurfacesGeneratorFailure(t *testing.T) {
	db := openServiceTestDB(t)
	user := createTestUser(t, db, "Amara", "amara@example.com")

	gen := &stubGenerator{optionsErr: errors.New("provider down")}
	svc := newSessionService(t, db, gen, &stubSearcher{})

	_, err := svc.SubmitCrave(context.Background(), user.ID, "crepe", 0, 0)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "DEPENDENCY_ERROR", appErr.Code)

	// No session row is left behind when option generation fails.
	var count int64
	require.NoError(t, db.Model(&models.Session{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSelectOptionEstimatesCalories(t *testing.T) {
	db := openServiceTestDB(t)
	user := createTestUser(t, db, "Amara", "amara@example.com")
	session := createTestSession(t, db, user.ID, "crepe", nil, "")

	svc := newSessionService(t, db, &stubGenerator{calories: 540}, &stubSearcher{})

	result, err := svc.SelectOption(context.Background(), user.ID, session.ID, "Nutella Crepe from Crepe Corner")
	require.NoError(t, err)
	require.Equal(t, 540, result.EstimatedCalories)
	require.Equal(t, models.SessionTypes(), result.SessionTypes)

	var stored models.Session
	require.NoError(t, db.First(&stored, "id = ?", session.ID).Error)
	require.Equal(t, "Nutella Crepe from Crepe Corner", stored.CraveItem)
	require.NotNil(t, stored.Calories)
	require.Equal(t, 540, *stored.Calories)
}

func TestSelectOptionHidesForeignSessions(t *testing.T) {
	db := openServiceTestDB(t)
	owner := createTestUser(t, db, "Amara", "amara@example.com")
	other := createTestUser(t, db, "Ben", "ben@example.com")
	session := createTestSession(t, db, owner.ID, "crepe", nil, "")

	svc := newSessionService(t, db, &stubGenerator{}, &stubSearcher{})

	_, err := svc.SelectOption(context.Background(), other.ID, session.ID, "anything")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrNotFound.Code, appErr.Code)
}

func TestChooseTypeSoloReturnsChallenges(t *testing.T) {
	db := openServiceTestDB(t)
	user := createTestUser(t, db, "Amara", "amara@example.com")
	session := createTestSession(t, db, user.ID, "crepe", intPtr(420), "")

	gen := &stubGenerator{challenges: []generator.ChallengeSuggestion{
		{Description: "Run 3 km", TimeLimit: 20},
	}}
	svc := newSessionService(t, db, gen, &stubSearcher{})

	result, err := svc.ChooseType(context.Background(), user.ID, session.ID, models.SessionTypeSolo)
	require.NoError(t, err)
	require.Equal(t, models.SessionTypeSolo, result.SessionType)
	require.Len(t, result.Challenges, 1)
	require.Empty(t, result.Message)

	var stored models.Session
	require.NoError(t, db.First(&stored, "id = ?", session.ID).Error)
	require.Equal(t, models.SessionTypeSolo, stored.SessionType)
}

func TestChooseTypeSkipAndRandom(t *testing.T) {
	db := openServiceTestDB(t)
	user := createTestUser(t, db, "Amara", "amara@example.com")
	svc := newSessionService(t, db, &stubGenerator{}, &stubSearcher{})

	skip := createTestSession(t, db, user.ID, "crepe", intPtr(300), "")
	result, err := svc.ChooseType(context.Background(), user.ID, skip.ID, models.SessionTypeSkip)
	require.NoError(t, err)
	require.Empty(t, result.Challenges)
	require.Contains(t, result.Message, "skipped")

	random := createTestSession(t, db, user.ID, "crepe", intPtr(300), "")
	result, err = svc.ChooseType(context.Background(), user.ID, random.ID, models.SessionTypeRandomMatch)
	require.NoError(t, err)
	require.Empty(t, result.Challenges)
	require.Contains(t, result.Message, "matchmaking queue")
}

func TestChooseTypeRejectsUnknownType(t *testing.T) {
	db := openServiceTestDB(t)
	user := createTestUser(t, db, "Amara", "amara@example.com")
	session := createTestSession(t, db, user.ID, "crepe", nil, "")

	svc := newSessionService(t, db, &stubGenerator{}, &stubSearcher{})

	_, err := svc.ChooseType(context.Background(), user.ID, session.ID, models.SessionType("marathon"))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)
}
