// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/ctxutil"
	"github.com/avelarcompany/gateway/internal/platform/middleware"
	"github.com/avelarcompany/gateway/internal/platform/sec"
)

var okHandler = http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
	writer.WriteHeader(http.StatusOK)
})

type staticResolver struct {
	principal *sec.Principal
	err       error
}

func (resolver staticResolver) Resolve(*http.Request) (*sec.Principal, error) {
	return resolver.principal, resolver.err
}

type originPolicy struct{ dev bool }

func (policy originPolicy) IsDevelopment() bool { return policy.dev }
func (policy originPolicy) AllowsOrigin(origin string) bool {
	return origin == "https://shop.avelarcompany.com.br"
}

/*
TestRequestID_GeneratesAndEchoes verifies the header and context value match.
*/
func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	var seen string
	handler := middleware.RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
		seen = ctxutil.GetRequestID(request.Context())
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, recorder.Header().Get("X-Request-ID"))
}

/*
TestCORS_SuffixPolicy allows sibling subdomains only.
*/
func TestCORS_SuffixPolicy(t *testing.T) {
	handler := middleware.CORS(originPolicy{})(okHandler)

	tests := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{"sibling", "https://shop.avelarcompany.com.br", true},
		{"foreign", "https://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodOptions, "/api/v1/session", nil)
			request.Header.Set("Origin", tt.origin)
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, request)

			assert.Equal(t, http.StatusNoContent, recorder.Code)
			if tt.allowed {
				assert.Equal(t, tt.origin, recorder.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", recorder.Header().Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

/*
TestRateLimit_BurstExhaustion returns 429 once the bucket is empty.
*/
func TestRateLimit_BurstExhaustion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := middleware.RateLimit(ctx, 0.001, 2)(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		request := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		request.RemoteAddr = "203.0.113.9:5000"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		codes = append(codes, recorder.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

/*
TestAuthorization_Chain covers anonymous, resolver failure and role checks.
*/
func TestAuthorization_Chain(t *testing.T) {
	admin := &sec.Principal{UserID: "u1", Role: sec.RoleAdmin}
	viewer := &sec.Principal{UserID: "u2", Role: sec.RoleViewer}

	tests := []struct {
		name     string
		resolver staticResolver
		want     int
	}{
		{"anonymous", staticResolver{}, http.StatusUnauthorized},
		{"expired", staticResolver{err: apperr.SessionExpired()}, http.StatusUnauthorized},
		{"internal", staticResolver{err: errors.New("redis down")}, http.StatusInternalServerError},
		{"viewer", staticResolver{principal: viewer}, http.StatusForbidden},
		{"admin", staticResolver{principal: admin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.Authenticate(tt.resolver)(middleware.RequireRole(sec.RoleAdmin)(okHandler))

			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.want, recorder.Code)
		})
	}
}

/*
TestRealIP prefers proxy headers over the socket address.
*/
func TestRealIP(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", middleware.RealIP(request))

	request.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	assert.Equal(t, "198.51.100.4", middleware.RealIP(request))

	request.Header.Set("X-Real-IP", "198.51.100.5")
	assert.Equal(t, "198.51.100.5", middleware.RealIP(request))
}

/*
TestPanicRecovery_RendersInternalError verifies a panic becomes a 500 envelope.
*/
func TestPanicRecovery_RendersInternalError(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	recorder := httptest.NewRecorder()
	middleware.PanicRecovery(logger)(panicking).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	var body struct {
		Code string `json:"code"`
	}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, apperr.CodeInternal, body.Code)
	assert.Contains(t, logs.String(), "panic_recovered")
}

/*
TestStructuredLogger_HidesHandoffQuery verifies the access log flags a handoff
without writing the parameter value.
*/
func TestStructuredLogger_HidesHandoffQuery(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	request := httptest.NewRequest(http.MethodGet, "/estoque?auth=c2VjcmV0LXRva2Vu", nil)
	middleware.StructuredLogger(logger)(okHandler).ServeHTTP(httptest.NewRecorder(), request)

	assert.Contains(t, logs.String(), `"handoff":true`)
	assert.Contains(t, logs.String(), `"path":"/estoque"`)
	assert.NotContains(t, logs.String(), "c2VjcmV0LXRva2Vu")
}
