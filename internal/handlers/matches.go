package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cravequest/backend/internal/middleware"
	"github.com/cravequest/backend/internal/services"
	"github.com/cravequest/backend/pkg/errors"
	"github.com/cravequest/backend/pkg/response"
)

// MatchHandler exposes the matchmaking queue endpoints.
type MatchHandler struct {
	matchmaking *services.MatchmakingService
}

func NewMatchHandler(matchmaking *services.MatchmakingService) *MatchHandler {
	return &MatchHandler{matchmaking: matchmaking}
}

type joinQueueRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// POST /api/match/queue
func (h *MatchHandler) JoinQueue(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req joinQueueRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.matchmaking.Join(c.Request.Context(), userID, req.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GET /api/match/status/:queueID
func (h *MatchHandler) Status(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	status, err := h.matchmaking.Status(c.Request.Context(), userID, c.Param("queueID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

type cancelQueueRequest struct {
	QueueID string `json:"queue_id" validate:"required"`
}

// POST /api/match/cancel
func (h *MatchHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req cancelQueueRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.matchmaking.Cancel(c.Request.Context(), userID, req.QueueID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"queue_id": req.QueueID, "status": "cancelled"})
}
