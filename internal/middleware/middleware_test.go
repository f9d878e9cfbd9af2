package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/auth"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const testSecret = "middleware-test-secret-0123456789"

func init() {
	gin.SetMode(gin.TestMode)
}

func whoAmI(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c).String(), "name": GetName(c), "email": GetEmail(c)})
}

func newAuthRouter() *gin.Engine {
	r := gin.New()
	r.GET("/private", AuthMiddleware(testSecret, "token"), whoAmI)
	r.GET("/public", OptionalAuth(testSecret, "token"), whoAmI)
	return r
}

func TestAuthMiddleware_Bearer(t *testing.T) {
	id := uuid.New()
	token, _ := auth.GenerateToken(id, "a@example.com", "Ada", testSecret, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	newAuthRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, id.String()) || !strings.Contains(body, "Ada") {
		t.Fatalf("claims not propagated: %s", body)
	}
}

func TestAuthMiddleware_CookieFallback(t *testing.T) {
	token, _ := auth.GenerateToken(uuid.New(), "a@example.com", "Ada", testSecret, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Basic nope")
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	w := httptest.NewRecorder()
	newAuthRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 via cookie", w.Code)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	expired, _ := auth.GenerateToken(uuid.New(), "a@example.com", "Ada", testSecret, -time.Minute)
	cases := map[string]string{
		"missing": "",
		"garbage": "Bearer not-a-token",
		"expired": "Bearer " + expired,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			newAuthRouter().ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestOptionalAuth_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer junk")
	w := httptest.NewRecorder()
	newAuthRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), uuid.Nil.String()) {
		t.Fatalf("expected anonymous caller, got %s", w.Body.String())
	}
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("request id = %q, want incoming id", got)
	}
}

func TestFixedWindowLimiterRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter, err := NewFixedWindowLimiter(client, "test:ratelimit", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	ctx := context.Background()
	if !limiter.Allow(ctx, "ip-1") || !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("first two requests should pass")
	}
	if limiter.Allow(ctx, "ip-1") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow(ctx, "ip-2") {
		t.Fatalf("other keys keep their own quota")
	}
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter, _ := NewFixedWindowLimiter(client, "", 5, time.Minute)
	mr.Close()
	if limiter.Allow(context.Background(), "ip-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterValidation(t *testing.T) {
	if _, err := NewFixedWindowLimiter(nil, "", 1, time.Second); err == nil {
		t.Fatalf("expected error without client")
	}
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	if _, err := NewFixedWindowLimiter(client, "", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}

func TestIPRateLimiterBurst(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2, time.Minute)
	ctx := context.Background()
	if !limiter.Allow(ctx, "1.2.3.4") || !limiter.Allow(ctx, "1.2.3.4") {
		t.Fatalf("burst of two should pass")
	}
	if limiter.Allow(ctx, "1.2.3.4") {
		t.Fatalf("third immediate request should be blocked")
	}
	if !limiter.Allow(ctx, "5.6.7.8") {
		t.Fatalf("other ips are independent")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.POST("/login", RateLimit(NewIPRateLimiter(1, 1, time.Minute), "login"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", w.Code)
	}
}
