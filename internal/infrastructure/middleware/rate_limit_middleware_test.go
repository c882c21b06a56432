package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"roomcast/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newLimitedRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(NewHTTPRateLimitMiddleware(cfg))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func doGet(router *gin.Engine, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitDisabledPassesEverything(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Debug.RateLimit.Enabled = false
	router := newLimitedRouter(cfg)

	for i := 0; i < 20; i++ {
		w := doGet(router, "192.0.2.1:1234", "")
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitRejectsBeyondBurst(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Debug.RateLimit.Enabled = true
	cfg.Debug.RateLimit.RequestsPerSecond = 0.001
	cfg.Debug.RateLimit.Burst = 1
	router := newLimitedRouter(cfg)

	assert.Equal(t, http.StatusOK, doGet(router, "192.0.2.1:1234", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, doGet(router, "192.0.2.1:1234", "").Code)
}

func TestRateLimitIsPerClientIP(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Debug.RateLimit.Enabled = true
	cfg.Debug.RateLimit.RequestsPerSecond = 0.001
	cfg.Debug.RateLimit.Burst = 1
	router := newLimitedRouter(cfg)

	assert.Equal(t, http.StatusOK, doGet(router, "192.0.2.1:1234", "").Code)
	assert.Equal(t, http.StatusOK, doGet(router, "192.0.2.2:1234", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, doGet(router, "192.0.2.1:9999", "").Code)
}

func TestRateLimitHonorsForwardedForHeader(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Debug.RateLimit.Enabled = true
	cfg.Debug.RateLimit.RequestsPerSecond = 0.001
	cfg.Debug.RateLimit.Burst = 1
	router := newLimitedRouter(cfg)

	assert.Equal(t, http.StatusOK, doGet(router, "10.0.0.1:1234", "203.0.113.7").Code)
	assert.Equal(t, http.StatusTooManyRequests, doGet(router, "10.0.0.2:1234", "203.0.113.7").Code)
}
