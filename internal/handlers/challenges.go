package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cravequest/backend/internal/middleware"
	"github.com/cravequest/backend/internal/services"
	"github.com/cravequest/backend/pkg/errors"
	"github.com/cravequest/backend/pkg/response"
)

// ChallengeHandler exposes challenge selection, start and completion.
type ChallengeHandler struct {
	challenges *services.ChallengeService
}

func NewChallengeHandler(challenges *services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges}
}

type selectChallengeRequest struct {
	SessionID            string `json:"session_id" validate:"required"`
	ChallengeDescription string `json:"challenge_description" validate:"required"`
	TimeLimit            int    `json:"time_limit" validate:"required,min=1"`
}

// POST /api/challenge/select
func (h *ChallengeHandler) Select(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req selectChallengeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	challenge, err := h.challenges.Select(c.Request.Context(), userID, req.SessionID, req.ChallengeDescription, req.TimeLimit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"challenge_id": challenge.ID,
		"challenge":    challenge.Description,
		"time_limit":   challenge.TimeLimit,
		"expiry_time":  challenge.ExpiryTime,
		"status":       challenge.Status,
	})
}

type startChallengeRequest struct {
	ChallengeID string `json:"challenge_id" validate:"required"`
}

// POST /api/challenge/start
func (h *ChallengeHandler) Start(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req startChallengeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	challenge, err := h.challenges.Start(c.Request.Context(), userID, req.ChallengeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"challenge_id": challenge.ID,
		"status":       challenge.Status,
		"started_at":   challenge.StartedAt,
	})
}

type completeChallengeRequest struct {
	ChallengeID          string `json:"challenge_id" validate:"required"`
	CompletionPercentage *int   `json:"completion_percentage" validate:"required"`
}

// POST /api/challenge/complete
func (h *ChallengeHandler) Complete(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req completeChallengeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.challenges.Complete(c.Request.Context(), userID, req.ChallengeID, *req.CompletionPercentage)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
