package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cravequest/backend/internal/models"
	"github.com/cravequest/backend/pkg/crypto"
	apperrors "github.com/cravequest/backend/pkg/errors"
)

const historyLimit = 50

// ProfileService manages accounts: registration, credential checks, profile
// reads and updates, and session history.
type ProfileService struct {
	db    *gorm.DB
	ranks *RankService
}

// NewProfileService constructs a ProfileService.
func NewProfileService(db *gorm.DB, ranks *RankService) (*ProfileService, error) {
	if db == nil {
		return nil, errors.New("profile service: db is required")
	}
	if ranks == nil {
		return nil, errors.New("profile service: rank service is required")
	}
	return &ProfileService{db: db, ranks: ranks}, nil
}

// Register creates an account with a bcrypt-hashed password. Duplicate emails
// surface as conflicts.
func (s *ProfileService) Register(ctx context.Context, name, email, password string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewBadRequest("Email and password are required")
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("profile service: hash password: %w", err)
	}

	profile := models.Profile{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrConflict.WithMessage("An account with this email already exists")
		}
		return nil, fmt.Errorf("profile service: create profile: %w", err)
	}
	return &profile, nil
}

// Authenticate verifies email and password. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *ProfileService) Authenticate(ctx context.Context, email, password string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewBadRequest("Email and password are required")
	}

	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthorized.WithMessage("Invalid email or password")
		}
		return nil, fmt.Errorf("profile service: find profile: %w", err)
	}

	if !crypto.VerifyPassword(profile.PasswordHash, password) {
		return nil, apperrors.ErrUnauthorized.WithMessage("Invalid email or password")
	}
	return &profile, nil
}

// ProfileView is a profile enriched with its current rank.
type ProfileView struct {
	UserID      string   `json:"user_id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Age         *int     `json:"age"`
	Height      *float64 `json:"height"`
	Weight      *float64 `json:"weight"`
	TotalPoints int      `json:"total_points"`
	Rank        string   `json:"rank"`
}

// Get returns a user's profile with its rank resolved from the rank table.
func (s *ProfileService) Get(ctx context.Context, userID string) (*ProfileView, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Profile not found")
		}
		return nil, fmt.Errorf("profile service: find profile: %w", err)
	}

	rank, err := s.ranks.RankFor(ctx, profile.TotalPoints)
	if err != nil {
		return nil, err
	}

	return &ProfileView{
		UserID:      profile.ID,
		Name:        profile.Name,
		Email:       profile.Email,
		Age:         profile.Age,
		Height:      profile.HeightCM,
		Weight:      profile.WeightKG,
		TotalPoints: profile.TotalPoints,
		Rank:        rank,
	}, nil
}

// ProfileUpdate carries the optional profile fields a user may change. Nil
// fields are left untouched.
type ProfileUpdate struct {
	Name   *string
	Age    *int
	Height *float64
	Weight *float64
}

// Update applies the provided fields and returns the column names it changed.
func (s *ProfileService) Update(ctx context.Context, userID string, update ProfileUpdate) ([]string, error) {
	updates := map[string]any{}
	if update.Name != nil {
		updates["name"] = strings.TrimSpace(*update.Name)
	}
	if update.Age != nil {
		updates["age"] = *update.Age
	}
	if update.Height != nil {
		updates["height_cm"] = *update.Height
	}
	if update.Weight != nil {
		updates["weight_kg"] = *update.Weight
	}
	if len(updates) == 0 {
		return nil, apperrors.NewBadRequest("No valid fields to update. Allowed: name, age, height, weight")
	}

	res := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", userID).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("profile service: update profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ErrNotFound.WithMessage("Profile not found")
	}

	fields := make([]string, 0, len(updates))
	for column := range updates {
		switch column {
		case "height_cm":
			fields = append(fields, "height")
		case "weight_kg":
			fields = append(fields, "weight")
		default:
			fields = append(fields, column)
		}
	}
	return fields, nil
}

// SessionHistory is one past session with its challenges.
type SessionHistory struct {
	SessionID   string             `json:"session_id"`
	CraveItem   string             `json:"crave_item"`
	Calories    *int               `json:"calories"`
	SessionType models.SessionType `json:"session_type,omitempty"`
	Rating      *int               `json:"rating"`
	CreatedAt   time.Time          `json:"created_at"`
	Challenges  []models.Challenge `json:"challenges"`
}

// History returns the user's most recent sessions, newest first, each with
// its challenges attached.
func (s *ProfileService) History(ctx context.Context, userID string) ([]SessionHistory, error) {
	var sessions []models.Session
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(historyLimit).
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("profile service: list sessions: %w", err)
	}

	history := make([]SessionHistory, 0, len(sessions))
	for _, session := range sessions {
		var challenges []models.Challenge
		if err := s.db.WithContext(ctx).
			Where("session_id = ?", session.ID).
			Order("created_at ASC").
			Find(&challenges).Error; err != nil {
			return nil, fmt.Errorf("profile service: list challenges: %w", err)
		}
		if challenges == nil {
			challenges = []models.Challenge{}
		}

		history = append(history, SessionHistory{
			SessionID:   session.ID,
			CraveItem:   session.CraveItem,
			Calories:    session.Calories,
			SessionType: session.SessionType,
			Rating:      session.Rating,
			CreatedAt:   session.CreatedAt,
			Challenges:  challenges,
		})
	}
	return history, nil
}
