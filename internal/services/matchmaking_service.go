package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cravequest/backend/internal/generator"
	"github.com/cravequest/backend/internal/models"
	apperrors "github.com/cravequest/backend/pkg/errors"
	"github.com/cravequest/backend/pkg/metrics"
)

const (
	// QueueExpiry bounds how long a queue entry waits before going stale.
	QueueExpiry = 10 * time.Minute

	// CalorieMatchRange is the +/- band within which two calorie targets pair.
	CalorieMatchRange = 50
)

// MatchmakingOption customises MatchmakingService behaviour.
type MatchmakingOption func(*MatchmakingService)

// WithMatchmakingClock injects a custom clock primarily for testing.
func WithMatchmakingClock(clock func() time.Time) MatchmakingOption {
	return func(s *MatchmakingService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// MatchmakingService pairs users with similar calorie targets into
// competitive matches. Pairing is first-come-first-served within the calorie
// band and happens atomically: a waiting entry is claimed with a conditional
// update so two joiners can never grab the same opponent, and a lost claim
// moves on to the next oldest candidate.
type MatchmakingService struct {
	db        *gorm.DB
	generator generator.Generator
	now       func() time.Time
}

// NewMatchmakingService constructs a MatchmakingService.
func NewMatchmakingService(db *gorm.DB, gen generator.Generator, opts ...MatchmakingOption) (*MatchmakingService, error) {
	if db == nil {
		return nil, errors.New("matchmaking service: db is required")
	}
	if gen == nil {
		return nil, errors.New("matchmaking service: generator is required")
	}

	service := &MatchmakingService{db: db, generator: gen, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// QueueResult reports the outcome of joining the queue: either an immediate
// match or a waiting entry to poll.
type QueueResult struct {
	Matched      bool   `json:"matched"`
	QueueID      string `json:"queue_id,omitempty"`
	MatchID      string `json:"match_id,omitempty"`
	OpponentName string `json:"opponent_name,omitempty"`
	Challenge    string `json:"challenge,omitempty"`
	TimeLimit    int    `json:"time_limit,omitempty"`
	ChallengeID  string `json:"challenge_id,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Join enters the matchmaking queue for a session. When a compatible waiting
// entry exists, both sides get identical pending challenges and an active
// match immediately; otherwise the caller waits in the queue.
func (s *MatchmakingService) Join(ctx context.Context, userID, sessionID string) (*QueueResult, error) {
	if sessionID == "" {
		return nil, apperrors.NewBadRequest("session_id is required")
	}

	var result *QueueResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.Session
		if err := tx.Where("id = ? AND user_id = ?", sessionID, userID).
			First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound.WithMessage("Session not found")
			}
			return fmt.Errorf("matchmaking service: find session: %w", err)
		}
		if session.Calories == nil || *session.Calories <= 0 {
			return apperrors.ErrInvalidState.WithMessage("Session must have calories set")
		}
		calories := *session.Calories

		var waiting int64
		if err := tx.Model(&models.QueueEntry{}).
			Where("user_id = ? AND status = ?", userID, models.QueueWaiting).
			Count(&waiting).Error; err != nil {
			return fmt.Errorf("matchmaking service: check queue: %w", err)
		}
		if waiting > 0 {
			return apperrors.ErrConflict.WithMessage("You are already in the matchmaking queue")
		}

		opponent, err := s.claimOpponent(tx, userID, calories)
		if err != nil {
			return err
		}

		if opponent == nil {
			entry := models.QueueEntry{
				UserID:    userID,
				SessionID: session.ID,
				Calories:  calories,
				Status:    models.QueueWaiting,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("matchmaking service: enqueue: %w", err)
			}
			metrics.QueueWaiting.Inc()
			result = &QueueResult{
				Matched: false,
				QueueID: entry.ID,
				Message: "Waiting for opponent...",
			}
			return nil
		}

		result, err = s.createMatch(ctx, tx, userID, &session, calories, opponent)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// claimOpponent scans compatible waiting entries oldest first and flips the
// first one it can claim to matched. Losing the conditional update means
// another joiner took that entry, so the scan moves on to the next candidate.
// A nil return means nobody compatible could be claimed.
func (s *MatchmakingService) claimOpponent(tx *gorm.DB, userID string, calories int) (*models.QueueEntry, error) {
	var candidates []models.QueueEntry
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ? AND user_id <> ? AND calories BETWEEN ? AND ?",
			models.QueueWaiting, userID, calories-CalorieMatchRange, calories+CalorieMatchRange).
		Order("created_at ASC, id ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("matchmaking service: probe queue: %w", err)
	}

	for i := range candidates {
		res := tx.Model(&models.QueueEntry{}).
			Where("id = ? AND status = ?", candidates[i].ID, models.QueueWaiting).
			Update("status", models.QueueMatched)
		if res.Error != nil {
			return nil, fmt.Errorf("matchmaking service: claim opponent: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		metrics.QueueWaiting.Dec()
		return &candidates[i], nil
	}
	return nil, nil
}

// createMatch builds the shared challenge, both challenge rows, the match row
// and the joiner's matched queue entry.
func (s *MatchmakingService) createMatch(ctx context.Context, tx *gorm.DB, userID string, session *models.Session, calories int, opponent *models.QueueEntry) (*QueueResult, error) {
	avgCalories := (calories + opponent.Calories) / 2

	var profile models.Profile
	var age *int
	var weight *float64
	if err := tx.First(&profile, "id = ?", userID).Error; err == nil {
		age = profile.Age
		weight = profile.WeightKG
	}

	description, timeLimit := s.sharedChallenge(ctx, avgCalories, age, weight)
	expiry := s.now().Add(ChallengeExpiry)

	myChallenge := models.Challenge{
		SessionID:   session.ID,
		Description: description,
		TimeLimit:   timeLimit,
		ExpiryTime:  expiry,
		Status:      models.ChallengePending,
	}
	opponentChallenge := models.Challenge{
		SessionID:   opponent.SessionID,
		Description: description,
		TimeLimit:   timeLimit,
		ExpiryTime:  expiry,
		Status:      models.ChallengePending,
	}
	if err := tx.Create(&myChallenge).Error; err != nil {
		return nil, fmt.Errorf("matchmaking service: create challenge: %w", err)
	}
	if err := tx.Create(&opponentChallenge).Error; err != nil {
		return nil, fmt.Errorf("matchmaking service: create opponent challenge: %w", err)
	}

	match := models.Match{
		User1ID:     opponent.UserID,
		User2ID:     userID,
		Session1ID:  opponent.SessionID,
		Session2ID:  session.ID,
		Description: description,
		TimeLimit:   timeLimit,
		Status:      models.MatchActive,
	}
	if err := tx.Create(&match).Error; err != nil {
		return nil, fmt.Errorf("matchmaking service: create match: %w", err)
	}

	entry := models.QueueEntry{
		UserID:    userID,
		SessionID: session.ID,
		Calories:  calories,
		Status:    models.QueueMatched,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("matchmaking service: record matched entry: %w", err)
	}

	opponentName := "Unknown"
	var opponentProfile models.Profile
	if err := tx.First(&opponentProfile, "id = ?", opponent.UserID).Error; err == nil {
		opponentName = opponentProfile.Name
	}

	metrics.MatchesCreated.Inc()
	metrics.ChallengeTransitions.WithLabelValues(string(models.ChallengePending)).Add(2)

	return &QueueResult{
		Matched:      true,
		MatchID:      match.ID,
		OpponentName: opponentName,
		Challenge:    description,
		TimeLimit:    timeLimit,
		ChallengeID:  myChallenge.ID,
	}, nil
}

// sharedChallenge generates the workout both sides will perform, with a fixed
// fallback when generation yields nothing.
func (s *MatchmakingService) sharedChallenge(ctx context.Context, avgCalories int, age *int, weight *float64) (string, int) {
	suggestions := s.generator.GenerateChallenges(ctx, avgCalories, age, weight)
	if len(suggestions) == 0 || suggestions[0].Description == "" || suggestions[0].TimeLimit <= 0 {
		return fmt.Sprintf("Complete a workout to burn ~%d kcal", avgCalories), 30
	}
	return suggestions[0].Description, suggestions[0].TimeLimit
}

// QueueStatusResult reports the current state of a queue entry, including
// match details once paired.
type QueueStatusResult struct {
	Status       models.QueueStatus `json:"status"`
	MatchID      string             `json:"match_id,omitempty"`
	OpponentName string             `json:"opponent_name,omitempty"`
	Challenge    string             `json:"challenge,omitempty"`
	TimeLimit    int                `json:"time_limit,omitempty"`
	ChallengeID  string             `json:"challenge_id,omitempty"`
}

// Status polls a queue entry, lazily expiring entries that waited too long.
func (s *MatchmakingService) Status(ctx context.Context, userID, queueID string) (*QueueStatusResult, error) {
	entry, err := s.ownedEntry(ctx, userID, queueID)
	if err != nil {
		return nil, err
	}

	if entry.Status == models.QueueWaiting && entry.Age(s.now()) > QueueExpiry {
		res := s.db.WithContext(ctx).Model(&models.QueueEntry{}).
			Where("id = ? AND status = ?", entry.ID, models.QueueWaiting).
			Update("status", models.QueueExpired)
		if res.Error == nil && res.RowsAffected > 0 {
			metrics.QueueWaiting.Dec()
			return &QueueStatusResult{Status: models.QueueExpired}, nil
		}
		// A concurrent pairing may have matched the entry; re-read.
		entry, err = s.ownedEntry(ctx, userID, queueID)
		if err != nil {
			return nil, err
		}
	}

	if entry.Status != models.QueueMatched {
		return &QueueStatusResult{Status: entry.Status}, nil
	}

	var match models.Match
	if err := s.db.WithContext(ctx).
		Where("session1_id = ? OR session2_id = ?", entry.SessionID, entry.SessionID).
		First(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &QueueStatusResult{Status: entry.Status}, nil
		}
		return nil, fmt.Errorf("matchmaking service: find match: %w", err)
	}

	opponentID := match.User1ID
	if match.User1ID == userID {
		opponentID = match.User2ID
	}
	opponentName := "Unknown"
	var opponentProfile models.Profile
	if err := s.db.WithContext(ctx).First(&opponentProfile, "id = ?", opponentID).Error; err == nil {
		opponentName = opponentProfile.Name
	}

	var challenge models.Challenge
	challengeID := ""
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", entry.SessionID).
		First(&challenge).Error; err == nil {
		challengeID = challenge.ID
	}

	return &QueueStatusResult{
		Status:       models.QueueMatched,
		MatchID:      match.ID,
		OpponentName: opponentName,
		Challenge:    match.Description,
		TimeLimit:    match.TimeLimit,
		ChallengeID:  challengeID,
	}, nil
}

// Cancel withdraws a waiting queue entry. Entries in any other state cannot
// be cancelled.
func (s *MatchmakingService) Cancel(ctx context.Context, userID, queueID string) error {
	entry, err := s.ownedEntry(ctx, userID, queueID)
	if err != nil {
		return err
	}
	if entry.Status != models.QueueWaiting {
		return apperrors.ErrInvalidState.WithMessage(fmt.Sprintf("Cannot cancel queue entry with status: %s", entry.Status))
	}

	res := s.db.WithContext(ctx).Model(&models.QueueEntry{}).
		Where("id = ? AND status = ?", entry.ID, models.QueueWaiting).
		Update("status", models.QueueCancelled)
	if res.Error != nil {
		return fmt.Errorf("matchmaking service: cancel: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrInvalidState.WithMessage("Queue entry is no longer waiting")
	}
	metrics.QueueWaiting.Dec()
	return nil
}

func (s *MatchmakingService) ownedEntry(ctx context.Context, userID, queueID string) (*models.QueueEntry, error) {
	if queueID == "" {
		return nil, apperrors.NewBadRequest("queue_id is required")
	}

	var entry models.QueueEntry
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", queueID, userID).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Queue entry not found")
		}
		return nil, fmt.Errorf("matchmaking service: find entry: %w", err)
	}
	return &entry, nil
}
