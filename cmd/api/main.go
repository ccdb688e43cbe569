// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Avelar portal gateway.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to Redis (optional).
//  4. Connect to PostgreSQL and run the audit migrations (optional).
//  5. Wire the session protocol: catalog, identity, session store, handoff, router.
//  6. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/avelarcompany/gateway/internal/access"
	"github.com/avelarcompany/gateway/internal/api"
	"github.com/avelarcompany/gateway/internal/audit"
	"github.com/avelarcompany/gateway/internal/handoff"
	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/config"
	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
	"github.com/avelarcompany/gateway/internal/platform/migration"
	pgstore "github.com/avelarcompany/gateway/internal/platform/postgres"
	redisstore "github.com/avelarcompany/gateway/internal/platform/redis"
	"github.com/avelarcompany/gateway/internal/portal"
	"github.com/avelarcompany/gateway/internal/session"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("app_module", cfg.AppModule),
		slog.String("scoped_storage", cfg.ScopedStorage),
		slog.String("handoff_mode", cfg.HandoffMode),
	)

	// Root context lives until shutdown. Startup gets its own deadline so a
	// misconfigured dependency fails fast.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	startupCtx, startupCancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer startupCancel()

	registry := metrics.NewRegistry()
	m := metrics.New(registry)
	secure := !cfg.IsDevelopment()

	health := api.HealthDependencies{}

	// ── 3. Redis ──────────────────────────────────────────────────────────
	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb, err = redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing_redis_client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_failed", slog.Any("error", cerr))
			}
		}()
		health.CheckCache = func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		}
	}

	// ── 4. PostgreSQL (audit trail) ───────────────────────────────────────
	var auditRepository audit.Repository = audit.NewMemoryRepository(0)
	if cfg.DatabaseURL != "" {
		pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing_postgres_pool")
			pool.Close()
		}()

		must(log, migration.RunUp(cfg.DatabaseURL, migration.Source{
			Path:     cfg.MigrationPath,
			Embedded: audit.Migrations,
			Dir:      audit.MigrationsDir,
		}, log), "run migrations")

		auditRepository = audit.NewPostgresRepository(pool)
		health.CheckDatabase = func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		}
	}
	trail := audit.NewTrail(auditRepository)

	// ── 5. Session Protocol ───────────────────────────────────────────────
	catalog, err := access.LoadCatalog(cfg.ModuleCatalogPath)
	must(log, err, "load module catalog")

	client := identity.NewClient(cfg.IdentityAPIURL, cfg.IdentityTimeout, m)
	health.CheckIdentity = client.Ping

	var pendingRepository identity.PendingRepository = identity.NewMemoryPendingRepository()
	var replay handoff.ReplayGuard
	if rdb != nil {
		pendingRepository = identity.NewRedisPendingRepository(rdb)
		replay = handoff.NewRedisReplayGuard(rdb)
	}

	identityService := identity.NewService(client, pendingRepository, m, identity.Options{
		StrictDocument: cfg.StrictDocumentCheck,
	})

	var scoped session.Scoped
	switch cfg.ScopedStorage {
	case config.StorageRedis:
		scoped = session.NewRedisScoped(rdb, cfg.CookieMaxAge, secure)
	default:
		scoped, err = session.NewCookieScoped([]byte(cfg.SessionSecret), cfg.CookieMaxAgeSeconds(), secure)
		must(log, err, "initialize scoped storage")
	}

	store := session.NewStore(scoped, identityService, session.Options{
		CookieDomain: cfg.CookieDomain,
		MaxAge:       cfg.CookieMaxAgeSeconds(),
		Secure:       secure,
	})

	codec, err := handoff.NewCodec(handoff.Options{
		Mode:         cfg.HandoffMode,
		Secret:       []byte(cfg.SessionSecret),
		Issuer:       constants.AppName,
		TicketTTL:    cfg.HandoffTicketTTL,
		AcceptLegacy: cfg.HandoffAcceptLegacy,
		Replay:       replay,
	}, m)
	must(log, err, "initialize handoff codec")

	router := access.NewRouter(catalog, codec, m, access.RouterOptions{
		AppModule:      cfg.AppModule,
		SupportContact: cfg.SupportContact,
	})
	guard := access.NewGuard(store, catalog, cfg.PortalURL, m)
	consumer := handoff.NewConsumer(codec, store, identityService, trail, m, cfg.AppModule)

	portalHandler := portal.NewHandler(portal.Dependencies{
		Identity:  identityService,
		Store:     store,
		Router:    router,
		Guard:     guard,
		Trail:     trail,
		PortalURL: cfg.PortalURL,
	})

	log.Info("session_protocol_ready",
		slog.Int("modules", catalog.Len()),
		slog.Bool("audit_persistent", trail.Persistent()),
	)

	// ── 6. HTTP Server ────────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(health, log)

	server := api.NewServer(rootCtx, cfg, log, m, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   metrics.Handler(registry),
		Portal:    portalHandler,
		Store:     store,
		Consumer:  consumer,
	})

	// ── 7. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("server_shutting_down", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown_failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned and
// handled explicitly.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
