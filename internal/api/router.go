package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/bookshare/internal/catalog"
	"github.com/lalith-99/bookshare/internal/lending"
	"github.com/lalith-99/bookshare/internal/messaging"
	"github.com/lalith-99/bookshare/internal/middleware"
	"github.com/lalith-99/bookshare/internal/repository"
	"github.com/lalith-99/bookshare/internal/reviews"
	"github.com/lalith-99/bookshare/internal/social"
	"github.com/lalith-99/bookshare/internal/storage"
	"go.uber.org/zap"
)

// Session controls how tokens are issued and carried.
type Session struct {
	Secret string
	TTL    time.Duration
	Cookie string
	// Secure marks the cookie Secure; on in production.
	Secure bool
}

type Deps struct {
	Store     repository.Store
	Catalog   *catalog.Service
	Lending   *lending.Engine
	Social    *social.Service
	Messaging *messaging.Service
	Reviews   *reviews.Service
	// Objects is nil when uploads are not configured.
	Objects        storage.ObjectStore
	MaxUploadBytes int64
	// AuthLimiter throttles register and login. Nil disables it.
	AuthLimiter middleware.Limiter
	// Health reports datastore reachability. Nil always reports ok.
	Health      func(ctx context.Context) error
	Session     Session
	CORSOrigins []string
	Logger      *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Logger))
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	authRequired := middleware.AuthMiddleware(d.Session.Secret, d.Session.Cookie)
	authOptional := middleware.OptionalAuth(d.Session.Secret, d.Session.Cookie)

	authH := NewAuthHandler(d.Store, d.Session, d.Logger)
	userH := NewUserHandler(d.Store, d.Social, d.Reviews, d.Logger)
	bookH := NewBookHandler(d.Catalog, d.Lending, d.Logger)
	requestH := NewRequestHandler(d.Lending, d.Reviews, d.Logger)
	messageH := NewMessageHandler(d.Messaging, d.Logger)
	inviteH := NewInviteHandler(d.Social, d.Logger)
	uploadH := NewUploadHandler(d.Objects, d.MaxUploadBytes, d.Logger)

	v1 := r.Group("/v1")
	v1.GET("/health", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(c.Request.Context()); err != nil {
				d.Logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := v1.Group("/auth")
	if d.AuthLimiter != nil {
		authGroup.POST("/register", middleware.RateLimit(d.AuthLimiter, "register"), authH.Register)
		authGroup.POST("/login", middleware.RateLimit(d.AuthLimiter, "login"), authH.Login)
	} else {
		authGroup.POST("/register", authH.Register)
		authGroup.POST("/login", authH.Login)
	}
	authGroup.POST("/logout", authH.Logout)

	users := v1.Group("/users")
	users.GET("/me", authRequired, userH.GetMe)
	users.GET("/:id", authOptional, userH.Get)
	users.PATCH("/:id", authRequired, userH.Update)
	users.GET("/:id/reviews", userH.Reviews)

	books := v1.Group("/books")
	books.GET("", bookH.List)
	books.POST("", authRequired, bookH.Create)
	books.GET("/lookup", bookH.Lookup)
	books.GET("/:id", bookH.Get)
	books.PATCH("/:id", authRequired, bookH.Update)
	books.DELETE("/:id", authRequired, bookH.Delete)
	books.GET("/:id/requests", authRequired, bookH.Requests)

	requests := v1.Group("/requests", authRequired)
	requests.GET("", requestH.List)
	requests.POST("", requestH.Create)
	requests.GET("/:id", requestH.Get)
	requests.PATCH("/:id", requestH.Transition)
	requests.POST("/:id/reviews", requestH.Review)

	v1.GET("/messages/unread", authOptional, messageH.Unread)
	messages := v1.Group("/messages", authRequired)
	messages.GET("", messageH.List)
	messages.POST("", messageH.Send)

	v1.GET("/invites/accept", inviteH.Preview)
	invites := v1.Group("/invites", authRequired)
	invites.GET("", inviteH.List)
	invites.POST("", inviteH.Create)
	v1.POST("/invites/accept", authOptional, inviteH.Accept)

	v1.GET("/contacts", authRequired, inviteH.Contacts)
	v1.POST("/uploads", authRequired, uploadH.Upload)

	return r
}
