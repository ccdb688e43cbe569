// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelarcompany/gateway/internal/platform/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

/*
TestLoad_Defaults verifies defaults for the cookie domain, storage and handoff mode.
*/
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("IDENTITY_API_URL", "https://api.avelarcompany.com.br")
	t.Setenv("SESSION_SECRET", testSecret)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ".avelarcompany.com.br", cfg.CookieDomain)
	assert.Equal(t, config.StorageCookie, cfg.ScopedStorage)
	assert.Equal(t, config.HandoffLegacy, cfg.HandoffMode)
	assert.Equal(t, 60*time.Second, cfg.HandoffTicketTTL)
	assert.Equal(t, 31536000, cfg.CookieMaxAgeSeconds())
	assert.True(t, cfg.IsDevelopment())
}

/*
TestLoad_MissingRequired ensures required settings cannot be set to an empty value.
*/
func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		secret   string
		variable string
	}{
		{"empty_identity_url", "", testSecret, "IDENTITY_API_URL"},
		{"empty_session_secret", "https://api.avelarcompany.com.br", "", "SESSION_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("IDENTITY_API_URL", tt.url)
			t.Setenv("SESSION_SECRET", tt.secret)

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.variable)
		})
	}
}

/*
TestValidate_CrossField covers the constraints struct tags cannot express.
*/
func TestValidate_CrossField(t *testing.T) {
	base := func() config.Config {
		return config.Config{
			ScopedStorage: config.StorageCookie,
			HandoffMode:   config.HandoffLegacy,
			SessionSecret: testSecret,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"redis_without_url", func(c *config.Config) { c.ScopedStorage = config.StorageRedis }, "REDIS_URL"},
		{"unknown_storage", func(c *config.Config) { c.ScopedStorage = "local" }, "SCOPED_STORAGE"},
		{"unknown_mode", func(c *config.Config) { c.HandoffMode = "jwe" }, "HANDOFF_MODE"},
		{"short_secret", func(c *config.Config) { c.SessionSecret = "short" }, "SESSION_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr))
		})
	}
}

/*
TestAllowsOrigin checks the CORS suffix rule.
*/
func TestAllowsOrigin(t *testing.T) {
	cfg := &config.Config{AllowedOriginSuffix: ".avelarcompany.com.br"}

	assert.True(t, cfg.AllowsOrigin("https://stocktech.avelarcompany.com.br"))
	assert.False(t, cfg.AllowsOrigin("http://stocktech.avelarcompany.com.br"))
	assert.False(t, cfg.AllowsOrigin("https://avelarcompany.com.br.evil.io"))
}
