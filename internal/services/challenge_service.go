package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cravequest/backend/internal/models"
	"github.com/cravequest/backend/internal/scoring"
	apperrors "github.com/cravequest/backend/pkg/errors"
	"github.com/cravequest/backend/pkg/metrics"
)

// ChallengeExpiry bounds how long a selected challenge stays startable.
const ChallengeExpiry = 24 * time.Hour

// ChallengeOption customises ChallengeService behaviour.
type ChallengeOption func(*ChallengeService)

// WithChallengeClock injects a custom clock primarily for testing.
func WithChallengeClock(clock func() time.Time) ChallengeOption {
	return func(s *ChallengeService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ChallengeService owns the challenge lifecycle: selection, start, and the
// completion settlement that awards points, resolves matches and updates
// preferences and rank.
type ChallengeService struct {
	db          *gorm.DB
	preferences *PreferenceService
	ranks       *RankService
	now         func() time.Time
}

// NewChallengeService constructs a ChallengeService with the provided dependencies.
func NewChallengeService(db *gorm.DB, prefs *PreferenceService, ranks *RankService, opts ...ChallengeOption) (*ChallengeService, error) {
	if db == nil {
		return nil, errors.New("challenge service: db is required")
	}
	if prefs == nil {
		return nil, errors.New("challenge service: preference service is required")
	}
	if ranks == nil {
		return nil, errors.New("challenge service: rank service is required")
	}

	service := &ChallengeService{
		db:          db,
		preferences: prefs,
		ranks:       ranks,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Select creates a pending challenge against the user's session.
func (s *ChallengeService) Select(ctx context.Context, userID, sessionID, description string, timeLimit int) (*models.Challenge, error) {
	if description == "" || timeLimit <= 0 {
		return nil, apperrors.NewBadRequest("challenge_description and a positive time_limit are required")
	}

	var session models.Session
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Session not found")
		}
		return nil, fmt.Errorf("challenge service: find session: %w", err)
	}

	challenge := models.Challenge{
		SessionID:   session.ID,
		Description: description,
		TimeLimit:   timeLimit,
		ExpiryTime:  s.now().Add(ChallengeExpiry),
		Status:      models.ChallengePending,
	}
	if err := s.db.WithContext(ctx).Create(&challenge).Error; err != nil {
		return nil, fmt.Errorf("challenge service: create challenge: %w", err)
	}

	metrics.ChallengeTransitions.WithLabelValues(string(models.ChallengePending)).Inc()
	return &challenge, nil
}

// Start moves a pending challenge to active. Expired challenges are marked as
// such on the way out. The row is locked for the duration so a concurrent
// transition cannot slip between the status check and the update.
func (s *ChallengeService) Start(ctx context.Context, userID, challengeID string) (*models.Challenge, error) {
	var challenge *models.Challenge
	expired := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.ownedChallenge(ctx, tx.Clauses(clause.Locking{Strength: "UPDATE"}), userID, challengeID)
		if err != nil {
			return err
		}
		challenge = loaded

		if challenge.Status != models.ChallengePending {
			return apperrors.ErrInvalidState.WithMessage(fmt.Sprintf("Challenge is already %s", challenge.Status))
		}

		now := s.now()
		if now.After(challenge.ExpiryTime) {
			expired = true
			return s.transition(ctx, tx, challenge, models.ChallengeExpired, nil)
		}

		if err := s.transition(ctx, tx, challenge, models.ChallengeActive, map[string]any{"started_at": now}); err != nil {
			return err
		}
		challenge.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, apperrors.ErrExpired.WithMessage("Challenge has expired")
	}
	return challenge, nil
}

// CompletionResult is the settlement returned after completing a challenge.
type CompletionResult struct {
	Rating               int     `json:"rating"`
	CompletionPercentage int     `json:"completion_percentage"`
	PointsEarned         int     `json:"points_earned"`
	TotalPoints          int     `json:"total_points"`
	Rank                 string  `json:"rank"`
	MatchID              *string `json:"match_id,omitempty"`
	WinnerBonus          *bool   `json:"winner_bonus,omitempty"`
}

// Complete settles an active challenge: it derives the rating, awards points
// (with the competitive bonus when the session belongs to a match), floors
// the user's total at zero, records the consumed item as a preference and
// returns the resulting rank. All persistent writes happen in one
// transaction.
func (s *ChallengeService) Complete(ctx context.Context, userID, challengeID string, completionPct int) (*CompletionResult, error) {
	result := &CompletionResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		challenge, err := s.ownedChallenge(ctx, tx.Clauses(clause.Locking{Strength: "UPDATE"}), userID, challengeID)
		if err != nil {
			return err
		}
		if challenge.Status != models.ChallengeActive {
			return apperrors.ErrInvalidState.WithMessage(fmt.Sprintf("Challenge is %s, not active", challenge.Status))
		}

		var session models.Session
		if err := tx.First(&session, "id = ?", challenge.SessionID).Error; err != nil {
			return fmt.Errorf("challenge service: load session: %w", err)
		}

		rating := scoring.RatingFromCompletion(completionPct)
		calories := scoring.DefaultCalories
		if session.Calories != nil && *session.Calories > 0 {
			calories = *session.Calories
		}
		points := scoring.BasePoints(rating, calories)

		if err := s.transition(ctx, tx, challenge, models.ChallengeCompleted, nil); err != nil {
			return err
		}
		if err := tx.Model(&session).Update("rating", rating).Error; err != nil {
			return fmt.Errorf("challenge service: store rating: %w", err)
		}

		if session.SessionType == models.SessionTypeRandomMatch {
			points, err = s.settleMatch(ctx, tx, userID, &session, rating, points, result)
			if err != nil {
				return err
			}
		}

		var profile models.Profile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&profile, "id = ?", userID).Error; err != nil {
			return fmt.Errorf("challenge service: load profile: %w", err)
		}

		newTotal := profile.TotalPoints + points
		if newTotal < 0 {
			newTotal = 0
		}
		if err := tx.Model(&profile).Update("total_points", newTotal).Error; err != nil {
			return fmt.Errorf("challenge service: update points: %w", err)
		}

		category := scoring.CategoryFromItem(session.CraveItem)
		if err := s.recordPreference(tx, userID, category, session.CraveItem); err != nil {
			return err
		}

		rank, err := s.ranks.RankFor(ctx, newTotal)
		if err != nil {
			return err
		}

		result.Rating = rating
		result.CompletionPercentage = clampPercentage(completionPct)
		result.PointsEarned = points
		result.TotalPoints = newTotal
		result.Rank = rank
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// settleMatch applies the competitive bonus and, when both sides are done,
// closes the match. The completing side wins rating ties.
func (s *ChallengeService) settleMatch(ctx context.Context, tx *gorm.DB, userID string, session *models.Session, rating, points int, result *CompletionResult) (int, error) {
	var match models.Match
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("(session1_id = ? OR session2_id = ?) AND status = ?", session.ID, session.ID, models.MatchActive).
		First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return points, nil
	}
	if err != nil {
		return 0, fmt.Errorf("challenge service: find match: %w", err)
	}

	opponentSessionID := match.Session1ID
	opponentUserID := match.User1ID
	if match.Session1ID == session.ID {
		opponentSessionID = match.Session2ID
		opponentUserID = match.User2ID
	}

	var opponentChallenge models.Challenge
	opponentCompleted := false
	err = tx.Where("session_id = ?", opponentSessionID).First(&opponentChallenge).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("challenge service: find opponent challenge: %w", err)
	}
	if err == nil {
		opponentCompleted = opponentChallenge.Status == models.ChallengeCompleted
	}

	opponentRating := 0
	if opponentCompleted {
		var opponentSession models.Session
		if err := tx.First(&opponentSession, "id = ?", opponentSessionID).Error; err != nil {
			return 0, fmt.Errorf("challenge service: find opponent session: %w", err)
		}
		if opponentSession.Rating != nil {
			opponentRating = *opponentSession.Rating
		}
	}

	points, bonus := scoring.ApplyCompetitiveBonus(points, !opponentCompleted, rating, opponentRating)

	if opponentCompleted {
		winnerID := userID
		if rating < opponentRating {
			winnerID = opponentUserID
		}
		updates := map[string]any{
			"status":         models.MatchCompleted,
			"winner_user_id": winnerID,
		}
		if err := tx.Model(&match).Updates(updates).Error; err != nil {
			return 0, fmt.Errorf("challenge service: complete match: %w", err)
		}
	}

	result.MatchID = &match.ID
	result.WinnerBonus = &bonus
	return points, nil
}

// recordPreference upserts inside the surrounding transaction.
func (s *ChallengeService) recordPreference(tx *gorm.DB, userID, category, item string) error {
	now := s.now()

	var pref models.Preference
	err := tx.Where("user_id = ? AND category = ? AND item = ?", userID, category, item).
		First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		pref = models.Preference{
			UserID:      userID,
			Category:    category,
			Item:        item,
			OrderCount:  1,
			LastOrdered: &now,
		}
		if createErr := tx.Create(&pref).Error; createErr != nil {
			return fmt.Errorf("challenge service: create preference: %w", createErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("challenge service: find preference: %w", err)
	}

	updates := map[string]any{
		"order_count":  gorm.Expr("order_count + 1"),
		"last_ordered": now,
	}
	if err := tx.Model(&pref).Updates(updates).Error; err != nil {
		return fmt.Errorf("challenge service: update preference: %w", err)
	}
	return nil
}

// transition moves a challenge from its loaded status to the target one,
// plus any extra columns, and records the transition metric. The update is
// conditional on the status the caller observed: losing it means another
// transition landed first, which surfaces as InvalidState instead of an
// overwrite.
func (s *ChallengeService) transition(ctx context.Context, tx *gorm.DB, challenge *models.Challenge, status models.ChallengeStatus, extra map[string]any) error {
	updates := map[string]any{"status": status}
	for column, value := range extra {
		updates[column] = value
	}

	res := tx.WithContext(ctx).Model(&models.Challenge{}).
		Where("id = ? AND status = ?", challenge.ID, challenge.Status).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("challenge service: transition to %s: %w", status, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrInvalidState.WithMessage(fmt.Sprintf("Challenge is no longer %s", challenge.Status))
	}
	challenge.Status = status
	metrics.ChallengeTransitions.WithLabelValues(string(status)).Inc()
	return nil
}

// ownedChallenge loads a challenge and enforces ownership through its session.
func (s *ChallengeService) ownedChallenge(ctx context.Context, tx *gorm.DB, userID, challengeID string) (*models.Challenge, error) {
	if challengeID == "" {
		return nil, apperrors.NewBadRequest("challenge_id is required")
	}

	var challenge models.Challenge
	if err := tx.WithContext(ctx).
		Joins("JOIN sessions ON sessions.id = challenges.session_id").
		Where("challenges.id = ? AND sessions.user_id = ?", challengeID, userID).
		First(&challenge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Challenge not found")
		}
		return nil, fmt.Errorf("challenge service: find challenge: %w", err)
	}
	return &challenge, nil
}

func clampPercentage(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
