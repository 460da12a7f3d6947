package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/cravequest/backend/internal/auth"
	"github.com/cravequest/backend/internal/middleware"
	"github.com/cravequest/backend/internal/services"
	"github.com/cravequest/backend/pkg/errors"
	"github.com/cravequest/backend/pkg/response"
)

// AuthHandler manages signup, login and the current-user endpoint.
type AuthHandler struct {
	profiles *services.ProfileService
	jwt      *iauth.JWTService
}

func NewAuthHandler(profiles *services.ProfileService, jwt *iauth.JWTService) *AuthHandler {
	return &AuthHandler{profiles: profiles, jwt: jwt}
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"max=120"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	profile, err := h.profiles.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(profile.ID)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"user":         authUser{ID: profile.ID, Email: profile.Email, Name: profile.Name},
		"access_token": token,
	})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	profile, err := h.profiles.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(profile.ID)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":         authUser{ID: profile.ID, Email: profile.Email, Name: profile.Name},
		"access_token": token,
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
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

	response.Success(c, http.StatusOK, authUser{ID: view.UserID, Email: view.Email, Name: view.Name})
}
