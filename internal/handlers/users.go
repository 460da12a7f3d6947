package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cravequest/backend/internal/middleware"
	"github.com/cravequest/backend/internal/services"
	"github.com/cravequest/backend/pkg/errors"
	"github.com/cravequest/backend/pkg/response"
)

// UserHandler exposes profile reads, updates and session history.
type UserHandler struct {
	profiles *services.ProfileService
}

func NewUserHandler(profiles *services.ProfileService) *UserHandler {
	return &UserHandler{profiles: profiles}
}

// GET /api/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	view, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

type updateProfileRequest struct {
	Name   *string  `json:"name" validate:"omitempty,max=120"`
	Age    *int     `json:"age" validate:"omitempty,min=1,max=120"`
	Height *float64 `json:"height" validate:"omitempty,gt=0"`
	Weight *float64 `json:"weight" validate:"omitempty,gt=0"`
}

// PUT /api/user/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	fields, err := h.profiles.Update(c.Request.Context(), userID, services.ProfileUpdate{
		Name:   req.Name,
		Age:    req.Age,
		Height: req.Height,
		Weight: req.Weight,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message":        "Profile updated.",
		"updated_fields": fields,
	})
}

// GET /api/user/history
func (h *UserHandler) History(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	history, err := h.profiles.History(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": history})
}
