package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/auth"
)

// Context keys for the caller's claims in gin.Context.
const (
	ContextKeyUserID = "user_id"
	ContextKeyEmail  = "email"
	ContextKeyName   = "name"
)

// AuthMiddleware resolves the caller from the Authorization bearer header,
// falling back to the session cookie, and aborts with 401 when neither
// carries a valid token. Handlers behind it can rely on GetUserID.
func AuthMiddleware(secret, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c, cookieName)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
				"code":  "unauthorized",
			})
			return
		}

		claims, err := auth.ParseToken(token, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
				"code":  "unauthorized",
			})
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present and lets
// anonymous requests through untouched. An invalid token is treated as no
// token.
func OptionalAuth(secret, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := tokenFromRequest(c, cookieName); token != "" {
			if claims, err := auth.ParseToken(token, secret); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// tokenFromRequest prefers "Authorization: Bearer <token>". A malformed
// header does not hide a valid cookie.
func tokenFromRequest(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	if cookieName == "" {
		return ""
	}
	token, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return token
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeyEmail, claims.Email)
	c.Set(ContextKeyName, claims.Name)
}

// GetUserID returns uuid.Nil for anonymous requests.
func GetUserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetEmail(c *gin.Context) string {
	return c.GetString(ContextKeyEmail)
}

func GetName(c *gin.Context) string {
	return c.GetString(ContextKeyName)
}
