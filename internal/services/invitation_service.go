package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cravequest/backend/internal/models"
	"github.com/cravequest/backend/pkg/crypto"
	apperrors "github.com/cravequest/backend/pkg/errors"
	"github.com/cravequest/backend/pkg/metrics"
)

const (
	// InviteExpiry bounds how long an invitation can be accepted.
	InviteExpiry = 5 * time.Minute

	defaultInviteTokenBytes = 16
)

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInviteClock injects a custom clock primarily for testing.
func WithInviteClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInviteTokenSize adjusts the random token length in bytes.
func WithInviteTokenSize(size int) InvitationOption {
	return func(s *InvitationService) {
		if size > 0 {
			s.tokenLength = size
		}
	}
}

// InvitationService manages tokenized peer-challenge invitations. An
// invitation leaves the pending state exactly once: accepted, declined or
// expired, whichever happens first.
type InvitationService struct {
	db          *gorm.DB
	tokenLength int
	now         func() time.Time
}

// NewInvitationService constructs an InvitationService.
func NewInvitationService(db *gorm.DB, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}

	service := &InvitationService{
		db:          db,
		tokenLength: defaultInviteTokenBytes,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// InviteCreation is returned when an invitation is created.
type InviteCreation struct {
	InvitationID string    `json:"invitation_id"`
	Token        string    `json:"invite_token"`
	Link         string    `json:"invite_link"`
	ExpiryTime   time.Time `json:"expiry_time"`
	ChallengeID  string    `json:"challenge_id"`
}

// Create issues an invitation against an invite_friend session and creates
// the inviter's own pending challenge at the same time.
func (s *InvitationService) Create(ctx context.Context, userID, sessionID, description string, timeLimit int) (*InviteCreation, error) {
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
		return nil, fmt.Errorf("invitation service: find session: %w", err)
	}
	if session.SessionType != models.SessionTypeInviteFriend {
		return nil, apperrors.ErrInvalidState.WithMessage("Session type must be invite_friend")
	}

	token, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return nil, fmt.Errorf("invitation service: generate token: %w", err)
	}

	now := s.now()
	invitation := models.Invitation{
		SessionID:     session.ID,
		InviterUserID: userID,
		Token:         token,
		Status:        models.InvitationPending,
		Description:   description,
		TimeLimit:     timeLimit,
		ExpiryTime:    now.Add(InviteExpiry),
	}
	challenge := models.Challenge{
		SessionID:   session.ID,
		Description: description,
		TimeLimit:   timeLimit,
		ExpiryTime:  now.Add(ChallengeExpiry),
		Status:      models.ChallengePending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&invitation).Error; err != nil {
			return fmt.Errorf("invitation service: create invitation: %w", err)
		}
		if err := tx.Create(&challenge).Error; err != nil {
			return fmt.Errorf("invitation service: create challenge: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ChallengeTransitions.WithLabelValues(string(models.ChallengePending)).Inc()
	return &InviteCreation{
		InvitationID: invitation.ID,
		Token:        token,
		Link:         "/invite/" + token,
		ExpiryTime:   invitation.ExpiryTime,
		ChallengeID:  challenge.ID,
	}, nil
}

// InviteView is the public, tokenized view of an invitation.
type InviteView struct {
	InviterName      string                  `json:"inviter_name"`
	CraveItem        string                  `json:"crave_item"`
	Calories         *int                    `json:"calories"`
	Challenge        string                  `json:"challenge"`
	TimeLimit        int                     `json:"time_limit"`
	ExpiresInSeconds int                     `json:"expires_in_seconds"`
	Status           models.InvitationStatus `json:"status"`
}

// View resolves an invitation by token without authentication. Expired
// invitations are lazily marked and then reported as not found.
func (s *InvitationService) View(ctx context.Context, token string) (*InviteView, error) {
	invitation, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if now.After(invitation.ExpiryTime) {
		s.lazyExpire(ctx, invitation)
		return nil, apperrors.ErrExpired.WithMessage("Invitation has expired")
	}

	var session models.Session
	if err := s.db.WithContext(ctx).First(&session, "id = ?", invitation.SessionID).Error; err != nil {
		return nil, fmt.Errorf("invitation service: load session: %w", err)
	}

	inviterName := "Unknown"
	var inviter models.Profile
	if err := s.db.WithContext(ctx).First(&inviter, "id = ?", invitation.InviterUserID).Error; err == nil {
		inviterName = inviter.Name
	}

	return &InviteView{
		InviterName:      inviterName,
		CraveItem:        session.CraveItem,
		Calories:         session.Calories,
		Challenge:        invitation.Description,
		TimeLimit:        invitation.TimeLimit,
		ExpiresInSeconds: int(invitation.ExpiryTime.Sub(now).Seconds()),
		Status:           invitation.Status,
	}, nil
}

// InviteAcceptance is returned to an invitee who accepts.
type InviteAcceptance struct {
	InvitationID string    `json:"invitation_id"`
	SessionID    string    `json:"session_id"`
	ChallengeID  string    `json:"challenge_id"`
	Challenge    string    `json:"challenge"`
	TimeLimit    int       `json:"time_limit"`
	ExpiryTime   time.Time `json:"expiry_time"`
}

// Accept consumes a pending invitation: it clones the inviter's session for
// the invitee, creates the invitee's challenge and pins the invitation to
// accepted. Losing a concurrent race to another responder surfaces as an
// invalid state.
func (s *InvitationService) Accept(ctx context.Context, userID, token string) (*InviteAcceptance, error) {
	invitation, err := s.respondable(ctx, userID, token)
	if err != nil {
		return nil, err
	}

	var sourceSession models.Session
	if err := s.db.WithContext(ctx).First(&sourceSession, "id = ?", invitation.SessionID).Error; err != nil {
		return nil, fmt.Errorf("invitation service: load inviter session: %w", err)
	}

	now := s.now()
	inviteeSession := models.Session{
		UserID:      userID,
		CraveItem:   sourceSession.CraveItem,
		Calories:    sourceSession.Calories,
		SessionType: models.SessionTypeInviteFriend,
	}
	challenge := models.Challenge{
		Description: invitation.Description,
		TimeLimit:   invitation.TimeLimit,
		ExpiryTime:  now.Add(ChallengeExpiry),
		Status:      models.ChallengePending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&inviteeSession).Error; err != nil {
			return fmt.Errorf("invitation service: create invitee session: %w", err)
		}

		challenge.SessionID = inviteeSession.ID
		if err := tx.Create(&challenge).Error; err != nil {
			return fmt.Errorf("invitation service: create invitee challenge: %w", err)
		}

		// Conditional update so only one responder ever wins the pending state.
		res := tx.Model(&models.Invitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
			Updates(map[string]any{
				"invitee_user_id":    userID,
				"invitee_session_id": inviteeSession.ID,
				"status":             models.InvitationAccepted,
			})
		if res.Error != nil {
			return fmt.Errorf("invitation service: accept invitation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrInvalidState.WithMessage("Invitation is no longer pending")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ChallengeTransitions.WithLabelValues(string(models.ChallengePending)).Inc()
	return &InviteAcceptance{
		InvitationID: invitation.ID,
		SessionID:    inviteeSession.ID,
		ChallengeID:  challenge.ID,
		Challenge:    invitation.Description,
		TimeLimit:    invitation.TimeLimit,
		ExpiryTime:   challenge.ExpiryTime,
	}, nil
}

// Decline marks a pending invitation as declined.
func (s *InvitationService) Decline(ctx context.Context, userID, token string) (string, error) {
	invitation, err := s.respondable(ctx, userID, token)
	if err != nil {
		return "", err
	}

	res := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
		Update("status", models.InvitationDeclined)
	if res.Error != nil {
		return "", fmt.Errorf("invitation service: decline invitation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", apperrors.ErrInvalidState.WithMessage("Invitation is no longer pending")
	}
	return invitation.ID, nil
}

// InviteStatus is the inviter-facing polling view of an invitation.
type InviteStatus struct {
	InvitationID string                  `json:"invitation_id"`
	Status       models.InvitationStatus `json:"status"`
	InviteeName  string                  `json:"invitee_name,omitempty"`
}

// Status reports an invitation's state to its inviter or invitee, lazily
// expiring a pending invitation past its deadline.
func (s *InvitationService) Status(ctx context.Context, userID, invitationID string) (*InviteStatus, error) {
	var invitation models.Invitation
	if err := s.db.WithContext(ctx).First(&invitation, "id = ?", invitationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Invitation not found")
		}
		return nil, fmt.Errorf("invitation service: find invitation: %w", err)
	}

	participant := invitation.InviterUserID == userID ||
		(invitation.InviteeUserID != nil && *invitation.InviteeUserID == userID)
	if !participant {
		return nil, apperrors.ErrNotFound.WithMessage("Invitation not found")
	}

	if invitation.Status == models.InvitationPending && s.now().After(invitation.ExpiryTime) {
		s.lazyExpire(ctx, &invitation)
	}

	status := &InviteStatus{InvitationID: invitation.ID, Status: invitation.Status}
	if invitation.Status == models.InvitationAccepted && invitation.InviteeUserID != nil {
		var invitee models.Profile
		if err := s.db.WithContext(ctx).First(&invitee, "id = ?", *invitation.InviteeUserID).Error; err == nil {
			status.InviteeName = invitee.Name
		} else {
			status.InviteeName = "Unknown"
		}
	}
	return status, nil
}

// respondable loads a pending, unexpired invitation by token and rejects the
// inviter responding to their own invitation.
func (s *InvitationService) respondable(ctx context.Context, userID, token string) (*models.Invitation, error) {
	invitation, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.now().After(invitation.ExpiryTime) {
		s.lazyExpire(ctx, invitation)
		return nil, apperrors.ErrExpired.WithMessage("Invitation has expired")
	}
	if invitation.Status != models.InvitationPending {
		return nil, apperrors.ErrInvalidState.WithMessage(fmt.Sprintf("Invitation is already %s", invitation.Status))
	}
	if invitation.InviterUserID == userID {
		return nil, apperrors.ErrSelfInvite
	}
	return invitation, nil
}

func (s *InvitationService) byToken(ctx context.Context, token string) (*models.Invitation, error) {
	if token == "" {
		return nil, apperrors.NewBadRequest("invite_token is required")
	}

	var invitation models.Invitation
	if err := s.db.WithContext(ctx).
		Where("token = ?", token).
		First(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Invitation not found")
		}
		return nil, fmt.Errorf("invitation service: find invitation: %w", err)
	}
	return &invitation, nil
}

// lazyExpire moves a pending invitation to expired. Races are harmless: the
// conditional update keeps accepted or declined rows untouched.
func (s *InvitationService) lazyExpire(ctx context.Context, invitation *models.Invitation) {
	if invitation.Status != models.InvitationPending {
		return
	}
	res := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
		Update("status", models.InvitationExpired)
	if res.Error == nil && res.RowsAffected > 0 {
		invitation.Status = models.InvitationExpired
	}
}
