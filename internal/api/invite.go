package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/bookshare/internal/middleware"
	"github.com/lalith-99/bookshare/internal/social"
	"go.uber.org/zap"
)

// InviteHandler serves invites and the contact list they build.
type InviteHandler struct {
	social *social.Service
	logger *zap.Logger
}

func NewInviteHandler(social *social.Service, logger *zap.Logger) *InviteHandler {
	return &InviteHandler{social: social, logger: logger}
}

type createInvitesRequest struct {
	Emails []string `json:"emails"`
}

// Create handles POST /v1/invites
func (h *InviteHandler) Create(c *gin.Context) {
	var req createInvitesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "emails required")
		return
	}
	created, err := h.social.CreateInvites(c.Request.Context(), middleware.GetUserID(c), req.Emails)
	if err != nil {
		respondError(c, h.logger, err, "failed to create invites")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": created, "count": len(created)})
}

// List handles GET /v1/invites
func (h *InviteHandler) List(c *gin.Context) {
	list, err := h.social.ListInvites(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to list invites")
		return
	}
	c.JSON(http.StatusOK, gin.H{"invites": list})
}

// Preview handles GET /v1/invites/accept?token=
func (h *InviteHandler) Preview(c *gin.Context) {
	preview, err := h.social.Lookup(c.Request.Context(), c.Query("token"))
	if err != nil {
		respondError(c, h.logger, err, "failed to load invite")
		return
	}
	c.JSON(http.StatusOK, gin.H{"invite": preview})
}

type acceptInviteRequest struct {
	Token string `json:"token"`
}

// Accept handles POST /v1/invites/accept
func (h *InviteHandler) Accept(c *gin.Context) {
	var req acceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "token required")
		return
	}
	res, err := h.social.Accept(c.Request.Context(), middleware.GetUserID(c), req.Token)
	if err != nil {
		respondError(c, h.logger, err, "failed to accept invite")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"inviter":   res.Inviter,
		"connected": res.Connected,
		"message":   "You are now connected!",
	})
}

// Contacts handles GET /v1/contacts
func (h *InviteHandler) Contacts(c *gin.Context) {
	list, err := h.social.ListContacts(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to list contacts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": list})
}
