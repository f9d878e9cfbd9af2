package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/bookshare/internal/apperr"
	"github.com/lalith-99/bookshare/internal/auth"
	"github.com/lalith-99/bookshare/internal/models"
	"github.com/lalith-99/bookshare/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

// AuthHandler handles register, login and logout. Register and login are
// public: they are what produces the token.
type AuthHandler struct {
	store   repository.Store
	session Session
	logger  *zap.Logger
}

func NewAuthHandler(store repository.Store, session Session, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{store: store, session: session, logger: logger}
}

type registerRequest struct {
	Name         string  `json:"name" binding:"required"`
	Email        string  `json:"email" binding:"required,email"`
	Password     string  `json:"password" binding:"required"`
	City         string  `json:"city"`
	Neighborhood string  `json:"neighborhood"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles POST /v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name, email and password are required")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		badRequest(c, "name is required")
		return
	}
	if len(req.Password) < MinPasswordLength {
		badRequest(c, "password must be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, h.logger, err, "registration failed")
		return
	}

	user := &models.User{
		Name:         name,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		City:         strings.TrimSpace(req.City),
		Neighborhood: strings.TrimSpace(req.Neighborhood),
		Lat:          req.Lat,
		Lng:          req.Lng,
	}
	if err := h.store.Repos().Users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			err = apperr.Conflict("email already registered")
		}
		respondError(c, h.logger, err, "registration failed")
		return
	}

	h.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	h.issue(c, http.StatusCreated, user)
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	user, err := h.store.Repos().Users.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		respondError(c, h.logger, err, "login failed")
		return
	}
	// Same answer for unknown email and wrong password.
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		respondError(c, h.logger, apperr.Unauthorized("invalid email or password"), "login failed")
		return
	}

	h.issue(c, http.StatusOK, user)
}

// Logout handles POST /v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.session.Cookie, "", -1, "/", "", h.session.Secure, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AuthHandler) issue(c *gin.Context, status int, user *models.User) {
	token, err := auth.GenerateToken(user.ID, user.Email, user.Name, h.session.Secret, h.session.TTL)
	if err != nil {
		respondError(c, h.logger, err, "could not create session")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.session.Cookie, token, int(h.session.TTL.Seconds()), "/", "", h.session.Secure, true)
	c.JSON(status, authResponse{Token: token, User: user})
}
