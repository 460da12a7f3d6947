package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cravequest/backend/internal/generator"
	"github.com/cravequest/backend/internal/models"
	"github.com/cravequest/backend/internal/places"
	"github.com/cravequest/backend/internal/scoring"
	apperrors "github.com/cravequest/backend/pkg/errors"
)

// MaturityThreshold is the preference count at which craving options become
// personalised to the user's order history.
const MaturityThreshold = 5

// SessionService drives a craving session from submission through type
// selection. Option and challenge generation degrade gracefully, so the only
// hard failures here are ownership and persistence ones.
type SessionService struct {
	db          *gorm.DB
	generator   generator.Generator
	places      places.Searcher
	preferences *PreferenceService
}

// NewSessionService constructs a SessionService with the provided dependencies.
func NewSessionService(db *gorm.DB, gen generator.Generator, searcher places.Searcher, prefs *PreferenceService) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}
	if gen == nil {
		return nil, errors.New("session service: generator is required")
	}
	if prefs == nil {
		return nil, errors.New("session service: preference service is required")
	}

	return &SessionService{
		db:          db,
		generator:   gen,
		places:      searcher,
		preferences: prefs,
	}, nil
}

// CraveResult is the outcome of submitting a craving.
type CraveResult struct {
	SessionID    string                    `json:"session_id"`
	Options      []generator.CravingOption `json:"options"`
	Personalized bool                      `json:"personalized"`
}

// SubmitCrave opens a new session for a craving: it finds nearby venues,
// generates concrete options and records everything on the session row.
// Personalisation kicks in once the user has enough history in the craving's
// category.
func (s *SessionService) SubmitCrave(ctx context.Context, userID, craveItem string, lat, lng float64) (*CraveResult, error) {
	craveItem = strings.TrimSpace(craveItem)
	if craveItem == "" {
		return nil, apperrors.NewBadRequest("crave_item is required")
	}

	// History is keyed on the full lowercased craving here, while completion
	// records the trailing token. Both keys accumulate over time.
	prefs, err := s.preferences.ListByCategory(ctx, userID, strings.ToLower(craveItem))
	if err != nil {
		return nil, err
	}
	personalized := len(prefs) >= MaturityThreshold

	nearby := []places.Place{}
	if s.places != nil {
		nearby = s.places.Search(ctx, craveItem, lat, lng)
	}

	var hints []generator.PreferenceHint
	if personalized {
		for _, p := range prefs {
			hints = append(hints, generator.PreferenceHint{Item: p.Item, OrderCount: p.OrderCount})
		}
	}

	options, err := s.generator.GenerateCravingOptions(ctx, craveItem, nearby, hints)
	if err != nil {
		return nil, apperrors.NewDependency(err, "Could not generate craving options")
	}

	payload, err := json.Marshal(map[string]any{
		"places":  nearby,
		"options": options,
	})
	if err != nil {
		return nil, fmt.Errorf("session service: marshal options: %w", err)
	}

	session := models.Session{
		UserID:          userID,
		CraveItem:       craveItem,
		LocationOptions: datatypes.JSON(payload),
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("session service: create session: %w", err)
	}

	return &CraveResult{
		SessionID:    session.ID,
		Options:      options,
		Personalized: personalized,
	}, nil
}

// SelectionResult is the outcome of picking one concrete option.
type SelectionResult struct {
	SessionID         string               `json:"session_id"`
	SelectedItem      string               `json:"selected_item"`
	EstimatedCalories int                  `json:"estimated_calories"`
	SessionTypes      []models.SessionType `json:"session_types"`
}

// SelectOption pins the session to one concrete item and estimates its
// calories. The selected item replaces the generic craving on the session.
func (s *SessionService) SelectOption(ctx context.Context, userID, sessionID, selectedOption string) (*SelectionResult, error) {
	selectedOption = strings.TrimSpace(selectedOption)
	if selectedOption == "" {
		return nil, apperrors.NewBadRequest("selected_option is required")
	}

	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	calories := s.generator.EstimateCalories(ctx, selectedOption)

	updates := map[string]any{
		"crave_item": selectedOption,
		"calories":   calories,
	}
	if err := s.db.WithContext(ctx).Model(session).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("session service: update selection: %w", err)
	}

	return &SelectionResult{
		SessionID:         session.ID,
		SelectedItem:      selectedOption,
		EstimatedCalories: calories,
		SessionTypes:      models.SessionTypes(),
	}, nil
}

// TypeResult is the outcome of choosing how to resolve a session.
type TypeResult struct {
	SessionID   string                          `json:"session_id"`
	SessionType models.SessionType              `json:"session_type"`
	Challenges  []generator.ChallengeSuggestion `json:"challenges,omitempty"`
	Message     string                          `json:"message,omitempty"`
}

// ChooseType sets the resolution path for a session. Solo and invite flows
// return generated challenges for the user to pick from; skip and random
// matchmaking return guidance only.
func (s *SessionService) ChooseType(ctx context.Context, userID, sessionID string, sessionType models.SessionType) (*TypeResult, error) {
	if !models.ValidSessionType(sessionType) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("Invalid session_type. Must be one of: %v", models.SessionTypes()))
	}

	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Model(session).
		Update("session_type", sessionType).Error; err != nil {
		return nil, fmt.Errorf("session service: update type: %w", err)
	}

	result := &TypeResult{SessionID: session.ID, SessionType: sessionType}

	switch sessionType {
	case models.SessionTypeSolo, models.SessionTypeInviteFriend:
		result.Challenges = s.challengesForSession(ctx, userID, session)
		if sessionType == models.SessionTypeInviteFriend {
			result.Message = "Select a challenge, then create an invite via POST /invite/create."
		}
	case models.SessionTypeSkip:
		result.Message = "Session skipped. No points earned."
	case models.SessionTypeRandomMatch:
		result.Message = "Session type set. Join the matchmaking queue via POST /match/queue."
	}

	return result, nil
}

// challengesForSession generates workout proposals calibrated to the
// session's calorie target and the user's profile.
func (s *SessionService) challengesForSession(ctx context.Context, userID string, session *models.Session) []generator.ChallengeSuggestion {
	calories := scoring.DefaultCalories
	if session.Calories != nil && *session.Calories > 0 {
		calories = *session.Calories
	}

	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "id = ?", userID).Error; err != nil {
		return s.generator.GenerateChallenges(ctx, calories, nil, nil)
	}
	return s.generator.GenerateChallenges(ctx, calories, profile.Age, profile.WeightKG)
}

// ownedSession loads a session and enforces ownership. Non-owned sessions are
// reported as not found.
func (s *SessionService) ownedSession(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, apperrors.NewBadRequest("session_id is required")
	}

	var session models.Session
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Session not found")
		}
		return nil, fmt.Errorf("session service: find session: %w", err)
	}
	return &session, nil
}
