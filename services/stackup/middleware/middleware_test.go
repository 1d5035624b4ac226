// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/tolstack/pkg/extensions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func limiterAt(perSecond float64, burst int) (*RateLimiter, *clock) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(perSecond, burst)
	l.now = clk.now
	return l, clk
}

func TestRateLimiter_Allow(t *testing.T) {
	l, clk := limiterAt(1, 2)

	ok, _ := l.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok)

	ok, wait := l.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.InDelta(t, time.Second.Seconds(), wait.Seconds(), 0.01)

	ok, _ = l.Allow("10.0.0.2")
	assert.True(t, ok, "clients are limited separately")

	clk.advance(time.Second)
	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok)
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	l, clk := limiterAt(1, 1)
	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Clients())

	clk.advance(idleAfter + time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Clients())
}

func TestNewRateLimiter_MinimumBurst(t *testing.T) {
	l := NewRateLimiter(5, 0)
	ok, _ := l.Allow("x")
	assert.True(t, ok)
}

func TestRateLimit(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(NewRateLimiter(1, 1)))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestRateLimit_Nil(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(nil))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 3 {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	t.Run("echoes incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "abc-123", w.Body.String())
	})

	t.Run("assigns a uuid", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, w.Body.String())
	})
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	router := gin.New()
	router.Use(RequestID(), AccessLog(slog.New(slog.NewJSONHandler(&buf, nil))))
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	router.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"status":500`)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.NotContains(t, out, "trace_id", "no span without tracing middleware")
}

func authRouter(provider extensions.AuthProvider) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Auth(provider))
	r.GET("/who", func(c *gin.Context) {
		c.String(http.StatusOK, GetAuthInfo(c).UserID)
	})
	return r
}

func TestAuth_Default(t *testing.T) {
	w := httptest.NewRecorder()
	authRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, extensions.LocalUser, w.Body.String())
}

func TestAuth_Token(t *testing.T) {
	p, err := extensions.NewTokenAuthProvider("s3cret")
	require.NoError(t, err)
	router := authRouter(p)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer", "Bearer s3cret", "", http.StatusOK},
		{"lowercase scheme", "bearer s3cret", "", http.StatusOK},
		{"query", "", "?access_token=s3cret", http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", "", http.StatusUnauthorized},
		{"basic scheme", "Basic s3cret", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
				assert.Contains(t, w.Body.String(), `"request_id"`)
			} else {
				assert.Equal(t, "token-user", w.Body.String())
			}
		})
	}
}
