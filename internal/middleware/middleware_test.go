package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-adaptive/internal/config"
	"github.com/stemsi/exstem-adaptive/internal/response"
	"github.com/stemsi/exstem-adaptive/internal/service"
)

func TestRateLimiter_Allow(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute, done)
	rl.now = func() time.Time { return now }

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.allow("b") {
		t.Fatal("other clients have their own bucket")
	}

	now = now.Add(time.Minute)
	if !rl.allow("a") {
		t.Fatal("bucket should refill after the interval")
	}
}

func TestRequireStudentJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(&config.Config{JWTSecret: "secret", JWTExpiry: time.Hour})
	expired := service.NewAuthService(&config.Config{JWTSecret: "secret", JWTExpiry: -time.Hour})

	valid, _ := auth.GenerateStudentToken(9, nil)
	stale, _ := expired.GenerateStudentToken(9, nil)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"expired token", "Bearer " + stale, http.StatusUnauthorized},
		{"valid token", "Bearer " + valid, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(response.RequestIDMiddleware(), RequireStudentJWT(auth))
			r.GET("/me", func(c *gin.Context) {
				c.String(http.StatusOK, "%d", GetClaims(c).UserID)
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.status {
				t.Errorf("status = %d, want %d", w.Code, tc.status)
			}
			if tc.status == http.StatusOK && w.Body.String() != "9" {
				t.Errorf("body = %q", w.Body.String())
			}
		})
	}
}
