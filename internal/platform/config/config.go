// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config reads the gateway settings from the environment.

A local .env file is merged first when present (joho/godotenv), then
caarlos0/env maps variables onto [Config]. Cross-field rules the tags cannot
express live in [Config.Validate]: a Redis backend needs REDIS_URL, signed
handoff needs a secret long enough to derive keys from, and so on.

The resulting value is passed to constructors and never mutated.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/avelarcompany/gateway/internal/platform/constants"
)

// Scoped storage backends.
const (
	StorageCookie = "cookie"
	StorageRedis  = "redis"
)

// Handoff codec modes.
const (
	HandoffLegacy = "legacy"
	HandoffSigned = "signed"
)

// Config is the runtime configuration of the gateway process.
type Config struct {
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Identity endpoint
	IdentityAPIURL  string        `env:"IDENTITY_API_URL,required,notEmpty"`
	IdentityTimeout time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"10s"`

	// Session store
	CookieDomain  string        `env:"COOKIE_DOMAIN"   envDefault:".avelarcompany.com.br"`
	CookieMaxAge  time.Duration `env:"COOKIE_MAX_AGE"  envDefault:"8760h"`
	SessionSecret string        `env:"SESSION_SECRET,required,notEmpty"`
	ScopedStorage string        `env:"SCOPED_STORAGE"  envDefault:"cookie"`

	// Redis also backs pending gates and ticket replay when set.
	RedisURL string `env:"REDIS_URL"`

	// Empty keeps the audit trail in memory.
	DatabaseURL string `env:"DATABASE_URL"`

	// Empty uses the embedded migrations.
	MigrationPath string `env:"MIGRATION_PATH"`

	// Module catalog and routing
	ModuleCatalogPath string `env:"MODULE_CATALOG_PATH"`
	AppModule         string `env:"APP_MODULE"       envDefault:"Portal"`
	PortalURL         string `env:"PORTAL_URL"       envDefault:"https://app.avelarcompany.com.br"`
	SupportContact    string `env:"SUPPORT_CONTACT"  envDefault:"suporte@avelarcompany.com.br"`

	// Cross-origin handoff
	HandoffMode         string        `env:"HANDOFF_MODE"          envDefault:"legacy"`
	HandoffTicketTTL    time.Duration `env:"HANDOFF_TICKET_TTL"    envDefault:"60s"`
	HandoffAcceptLegacy bool          `env:"HANDOFF_ACCEPT_LEGACY" envDefault:"true"`

	// Document checks
	StrictDocumentCheck bool `env:"STRICT_DOCUMENT_CHECK" envDefault:"false"`

	// CORS
	AllowedOriginSuffix string `env:"ALLOWED_ORIGIN_SUFFIX" envDefault:".avelarcompany.com.br"`
}

// Load parses and validates the environment. A missing .env file is the
// normal production case.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config_read_dotenv: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config_parse_env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.ScopedStorage {
	case StorageCookie:
	case StorageRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL is required when SCOPED_STORAGE=redis")
		}
	default:
		return fmt.Errorf("config: unknown SCOPED_STORAGE %q", c.ScopedStorage)
	}

	if c.HandoffMode != HandoffLegacy && c.HandoffMode != HandoffSigned {
		return fmt.Errorf("config: unknown HANDOFF_MODE %q", c.HandoffMode)
	}

	if len(c.SessionSecret) < 32 {
		return errors.New("config: SESSION_SECRET must be at least 32 bytes")
	}

	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// AllowsOrigin reports whether a browser origin belongs to the shared parent domain.
func (c *Config) AllowsOrigin(origin string) bool {
	if c.AllowedOriginSuffix == "" {
		return false
	}
	return strings.HasPrefix(origin, "https://") && strings.HasSuffix(origin, c.AllowedOriginSuffix)
}

// CookieMaxAgeSeconds returns the domain cookie lifetime in seconds.
func (c *Config) CookieMaxAgeSeconds() int {
	if c.CookieMaxAge <= 0 {
		return int(constants.DefaultCookieMaxAge.Seconds())
	}
	return int(c.CookieMaxAge.Seconds())
}
