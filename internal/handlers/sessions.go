package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cravequest/backend/internal/middleware"
	"github.com/cravequest/backend/internal/models"
	"github.com/cravequest/backend/internal/services"
	"github.com/cravequest/backend/pkg/errors"
	"github.com/cravequest/backend/pkg/response"
)

// SessionHandler exposes the craving flow: submit, select, choose type.
type SessionHandler struct {
	sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type craveRequest struct {
	CraveItem string   `json:"crave_item" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
}

// POST /api/session/crave
func (h *SessionHandler) Crave(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req craveRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.sessions.SubmitCrave(c.Request.Context(), userID, req.CraveItem, *req.Latitude, *req.Longitude)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

type selectOptionRequest struct {
	SessionID      string `json:"session_id" validate:"required"`
	SelectedOption string `json:"selected_option" validate:"required"`
}

// POST /api/session/select
func (h *SessionHandler) Select(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req selectOptionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.sessions.SelectOption(c.Request.Context(), userID, req.SessionID, req.SelectedOption)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

type chooseTypeRequest struct {
	SessionID   string `json:"session_id" validate:"required"`
	SessionType string `json:"session_type" validate:"required"`
}

// POST /api/session/choose-type
func (h *SessionHandler) ChooseType(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req chooseTypeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.sessions.ChooseType(c.Request.Context(), userID, req.SessionID, models.SessionType(req.SessionType))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
