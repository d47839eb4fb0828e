package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newsdesk/internal/auth"
	"newsdesk/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestRateLimit(t *testing.T) {
	l := NewLimiter(rate.Every(time.Hour), 2, time.Minute)
	defer l.Stop()
	r := newEngine(l.Middleware(ClientKey))

	get := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = get("10.0.0.1:1234")
		codes = append(codes, last.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, "3600", last.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"detail":"Request was throttled."}`, last.Body.String())

	assert.Equal(t, http.StatusOK, get("10.0.0.2:1234").Code, "other clients have their own bucket")
}

func TestRateLimit_AuthenticatedUserSharesBucketAcrossIPs(t *testing.T) {
	l := NewLimiter(rate.Every(time.Hour), 1, time.Minute)
	defer l.Stop()
	asUser := func(id uint) gin.HandlerFunc {
		return func(c *gin.Context) {
			if c.GetHeader("X-User") != "" {
				auth.SetCurrentUser(c, &models.User{ID: id})
			}
			c.Next()
		}
	}
	r := newEngine(asUser(7), l.Middleware(ClientKey))

	get := func(remote string, authenticated bool) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = remote
		if authenticated {
			req.Header.Set("X-User", "1")
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get("10.0.0.1:1", true))
	assert.Equal(t, http.StatusTooManyRequests, get("10.0.0.2:1", true), "same user from another IP")
	assert.Equal(t, http.StatusOK, get("10.0.0.1:1", false), "anonymous traffic from the same IP is counted separately")
}

func TestClientKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "192.0.2.10:5555"
	c.Request.Header.Set("Authorization", "Token not-resolved")
	assert.Equal(t, "ip:192.0.2.10", ClientKey(c), "unresolved tokens fall back to the IP")

	auth.SetCurrentUser(c, &models.User{ID: 42})
	assert.Equal(t, "user:42", ClientKey(c))
}

func TestLimiter_StopEndsSweeper(t *testing.T) {
	l := NewLimiter(rate.Limit(1), 1, time.Minute)
	l.Stop()
	select {
	case <-l.done:
	case <-time.After(time.Second):
		t.Fatal("sweeper still running after Stop")
	}
	l.Stop()
}

func TestLimiter_Evict(t *testing.T) {
	l := NewLimiter(rate.Limit(1), 1, time.Minute)
	defer l.Stop()
	now := time.Now()
	l.limiterFor("old", now.Add(-2*time.Minute))
	l.limiterFor("fresh", now)
	l.evict(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.buckets, "old")
	assert.Contains(t, l.buckets, "fresh")
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		allowed []string
		origin  string
		host    string
		want    string
	}{
		{"dev allows any", "dev", nil, "http://localhost:3000", "api.local", "http://localhost:3000"},
		{"prod allow list", "prod", []string{"https://admin.example.com"}, "https://admin.example.com", "api.example.com", "https://admin.example.com"},
		{"prod same origin", "prod", nil, "https://api.example.com", "api.example.com", "https://api.example.com"},
		{"prod rejects others", "prod", nil, "https://evil.example", "api.example.com", ""},
		{"prod rejects substring host", "prod", nil, "https://api.example.com.evil.example", "api.example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(CORS(tt.env, tt.allowed))
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Host = tt.host
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := newEngine(CORS("dev", nil))
	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
