package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/cravequest/backend/internal/middleware"
	"github.com/cravequest/backend/internal/services"
	"github.com/cravequest/backend/pkg/errors"
	"github.com/cravequest/backend/pkg/response"
)

const qrCodeSize = 256

// InviteHandler exposes invitation creation, the public token view (plus its
// QR code), responses and status polling.
type InviteHandler struct {
	invitations *services.InvitationService
	baseURL     string
}

func NewInviteHandler(invitations *services.InvitationService, baseURL string) *InviteHandler {
	return &InviteHandler{invitations: invitations, baseURL: baseURL}
}

type createInviteRequest struct {
	SessionID            string `json:"session_id" validate:"required"`
	ChallengeDescription string `json:"challenge_description" validate:"required"`
	TimeLimit            int    `json:"time_limit" validate:"required,min=1"`
}

// POST /api/invite/create
func (h *InviteHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req createInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	creation, err := h.invitations.Create(c.Request.Context(), userID, req.SessionID, req.ChallengeDescription, req.TimeLimit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, creation)
}

// GET /api/invite/:token (public)
func (h *InviteHandler) View(c *gin.Context) {
	view, err := h.invitations.View(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// GET /api/invite/:token/qr (public) renders the invite link as a PNG QR code
// so the inviter can show it on screen.
func (h *InviteHandler) QRCode(c *gin.Context) {
	token := c.Param("token")
	if _, err := h.invitations.View(c.Request.Context(), token); err != nil {
		response.Error(c, err)
		return
	}

	link := h.baseURL + "/invite/" + token
	png, err := qrcode.Encode(link, qrcode.Medium, qrCodeSize)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

type respondInviteRequest struct {
	InviteToken string `json:"invite_token" validate:"required"`
	Action      string `json:"action" validate:"required,oneof=accept decline"`
}

// POST /api/invite/respond
func (h *InviteHandler) Respond(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req respondInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if req.Action == "decline" {
		invitationID, err := h.invitations.Decline(c.Request.Context(), userID, req.InviteToken)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"invitation_id": invitationID, "status": "declined"})
		return
	}

	acceptance, err := h.invitations.Accept(c.Request.Context(), userID, req.InviteToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, acceptance)
}

// GET /api/invite/status/:id
func (h *InviteHandler) Status(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	status, err := h.invitations.Status(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}
