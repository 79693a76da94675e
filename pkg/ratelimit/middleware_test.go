package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"ktrace/internal/config"
)

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RateLimitConfig{RPS: 5, CleanupInterval: 30})
	assert.Equal(t, 5.0, cfg.RPS)
	assert.Equal(t, 20, cfg.Burst)
	assert.Equal(t, 30*time.Second, cfg.CleanupInterval)
	assert.Equal(t, 10*time.Minute, cfg.MaxAge)
}

func TestLimiter_Allow(t *testing.T) {
	l := NewLimiter(RateLimitConfig{RPS: 0.001, Burst: 2, CleanupInterval: time.Hour, MaxAge: time.Hour})
	defer l.Close()

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
	ok, remaining := l.Allow("a")
	assert.False(t, ok)
	assert.Zero(t, remaining)

	ok, _ = l.Allow("b")
	assert.True(t, ok)
}

func TestLimiter_Evict(t *testing.T) {
	l := NewLimiter(RateLimitConfig{RPS: 1, Burst: 1, CleanupInterval: time.Hour, MaxAge: time.Minute})
	defer l.Close()

	l.Allow("a")
	l.evict(time.Now().Add(2 * time.Minute))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.clients)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewLimiter(RateLimitConfig{RPS: 0.001, Burst: 1, CleanupInterval: time.Hour, MaxAge: time.Hour})
	defer l.Close()

	r := gin.New()
	r.Use(l.Middleware())
	r.POST("/collect", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/collect", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/collect", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
