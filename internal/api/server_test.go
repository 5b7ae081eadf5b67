// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/marketplace-auth/internal/api"
	"github.com/taibuivan/marketplace-auth/internal/platform/config"
	"github.com/taibuivan/marketplace-auth/internal/platform/sec"
	"github.com/taibuivan/marketplace-auth/internal/users/auth"
)

type rejectAll struct{}

func (rejectAll) ValidateAccessToken(string) (*sec.AuthClaims, error) {
	return nil, errors.New("no tokens in this test")
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

/*
TestHealth reports each dependency and degrades to 503 when one fails.
*/
func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     []api.Check
		wantStatus int
		wantState  string
	}{
		{"no_dependencies", nil, http.StatusOK, "ready"},
		{"all_healthy", []api.Check{
			{Name: "postgres", Probe: func(context.Context) error { return nil }},
			{Name: "redis", Probe: func(context.Context) error { return nil }},
		}, http.StatusOK, "ready"},
		{"broker_down", []api.Check{
			{Name: "postgres", Probe: func(context.Context) error { return nil }},
			{Name: "rabbitmq", Probe: func(context.Context) error { return errors.New("connection closed") }},
		}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, readiness := api.NewHealthHandlers(discard(), tt.checks...)

			recorder := httptest.NewRecorder()
			readiness(recorder, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, recorder.Code)
			var envelope struct {
				Data struct {
					Status string `json:"status"`
					Checks []struct {
						Name string `json:"name"`
						OK   bool   `json:"ok"`
					} `json:"checks"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
			assert.Equal(t, tt.wantState, envelope.Data.Status)
			assert.Len(t, envelope.Data.Checks, len(tt.checks))
		})
	}
}

/*
TestServer_Routes mounts the probes and guards the admin surface.
*/
func TestServer_Routes(t *testing.T) {
	liveness, readiness := api.NewHealthHandlers(discard())
	cfg := &config.Config{ServerPort: "0", Environment: "development", RateLimitPerMinute: 600}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := api.NewServer(ctx, cfg, discard(), rejectAll{}, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(nil, 6),
		Admin:     auth.NewAdminHandler(nil),
	})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/api/v1/auth/me", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/admin/users", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			server.Handler().ServeHTTP(recorder, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, recorder.Code)
		})
	}
}
