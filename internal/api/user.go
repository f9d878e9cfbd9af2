package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/bookshare/internal/apperr"
	"github.com/lalith-99/bookshare/internal/middleware"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository"
	"github.com/lalith-99/bookshare/internal/reviews"
	"github.com/lalith-99/bookshare/internal/social"
	"go.uber.org/zap"
)

type UserHandler struct {
	store   repository.Store
	social  *social.Service
	reviews *reviews.Service
	logger  *zap.Logger
}

func NewUserHandler(store repository.Store, social *social.Service, reviews *reviews.Service, logger *zap.Logger) *UserHandler {
	return &UserHandler{store: store, social: social, reviews: reviews, logger: logger}
}

// GetMe handles GET /v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.store.Repos().Users.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to get user")
		return
	}
	if user == nil {
		respondError(c, h.logger, apperr.NotFound("user not found"), "failed to get user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Get handles GET /v1/users/:id. The profile never includes the email.
// is_contact is only true for a signed-in caller linked to the user.
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user, err := h.store.Repos().Users.GetByID(ctx, id)
	if err != nil {
		respondError(c, h.logger, err, "failed to get user")
		return
	}
	if user == nil {
		respondError(c, h.logger, apperr.NotFound("user not found"), "failed to get user")
		return
	}
	isContact, err := h.social.IsContact(ctx, middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to get user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Public(), "is_contact": isContact})
}

type updateUserRequest struct {
	Name         *string  `json:"name"`
	Bio          *string  `json:"bio"`
	AvatarURL    *string  `json:"avatar_url"`
	City         *string  `json:"city"`
	Neighborhood *string  `json:"neighborhood"`
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
}

// Update handles PATCH /v1/users/:id. Users may only edit themselves.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if id != middleware.GetUserID(c) {
		respondError(c, h.logger, apperr.Forbidden("you can only edit your own profile"), "failed to update user")
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	patch := models.UserPatch{
		Name:         req.Name,
		Bio:          req.Bio,
		AvatarURL:    req.AvatarURL,
		City:         req.City,
		Neighborhood: req.Neighborhood,
		Lat:          req.Lat,
		Lng:          req.Lng,
	}
	if patch.Empty() {
		badRequest(c, "no valid fields")
		return
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			badRequest(c, "name cannot be blank")
			return
		}
		patch.Name = &name
	}

	user, err := h.store.Repos().Users.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, h.logger, err, "failed to update user")
		return
	}
	if user == nil {
		respondError(c, h.logger, apperr.NotFound("user not found"), "failed to update user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Reviews handles GET /v1/users/:id/reviews
func (h *UserHandler) Reviews(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	list, err := h.reviews.ListForUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to list reviews")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": list})
}
