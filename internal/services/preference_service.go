package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cravequest/backend/internal/models"
)

// PreferenceOption customises PreferenceService behaviour.
type PreferenceOption func(*PreferenceService)

// WithPreferenceClock injects a custom clock primarily for testing.
func WithPreferenceClock(clock func() time.Time) PreferenceOption {
	return func(s *PreferenceService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// PreferenceService records what users actually consume so later cravings can
// be personalised. Counts only ever go up.
type PreferenceService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPreferenceService constructs a PreferenceService.
func NewPreferenceService(db *gorm.DB, opts ...PreferenceOption) (*PreferenceService, error) {
	if db == nil {
		return nil, errors.New("preference service: db is required")
	}

	service := &PreferenceService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Record bumps the order count for (user, category, item), creating the row
// on first sight.
func (s *PreferenceService) Record(ctx context.Context, userID, category, item string) error {
	category = strings.TrimSpace(category)
	item = strings.TrimSpace(item)
	if userID == "" || category == "" || item == "" {
		return errors.New("preference service: user id, category and item are required")
	}

	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pref models.Preference
		err := tx.
			Where("user_id = ? AND category = ? AND item = ?", userID, category, item).
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
				return fmt.Errorf("preference service: create: %w", createErr)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("preference service: find: %w", err)
		}

		updates := map[string]any{
			"order_count":  gorm.Expr("order_count + 1"),
			"last_ordered": now,
		}
		if err := tx.Model(&pref).Updates(updates).Error; err != nil {
			return fmt.Errorf("preference service: update: %w", err)
		}
		return nil
	})
}

// ListByCategory returns a user's preferences within one category, most
// ordered first.
func (s *PreferenceService) ListByCategory(ctx context.Context, userID, category string) ([]models.Preference, error) {
	if userID == "" {
		return nil, errors.New("preference service: user id is required")
	}

	var prefs []models.Preference
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND category = ?", userID, strings.TrimSpace(category)).
		Order("order_count DESC").
		Find(&prefs).Error; err != nil {
		return nil, fmt.Errorf("preference service: list: %w", err)
	}
	return prefs, nil
}
