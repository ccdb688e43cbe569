// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api assembles the gateway's HTTP surface: probes, metrics and the
portal API under /api/v1.

Every request runs with a per-request session overlay and the inbound
handoff consumer, so a browser arriving with ?auth=... is signed in before
any handler sees the request.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/avelarcompany/gateway/internal/handoff"
	"github.com/avelarcompany/gateway/internal/platform/config"
	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
	"github.com/avelarcompany/gateway/internal/platform/middleware"
	"github.com/avelarcompany/gateway/internal/portal"
	"github.com/avelarcompany/gateway/internal/session"
)

// Server owns the listener and the root router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// Handlers are the pieces built in main and mounted here. Consumer and
// Metrics are optional.
type Handlers struct {
	Liveness  http.HandlerFunc
	Readiness http.HandlerFunc
	Metrics   http.Handler
	Portal    *portal.Handler
	Store     *session.Store
	Consumer  *handoff.Consumer
}

// NewServer builds the router. The context stops background work of the
// middleware chain, such as rate limiter eviction.
func NewServer(context context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics, h Handlers) *Server {
	root := chi.NewRouter()
	root.Use(
		middleware.RequestID(),
		middleware.StructuredLogger(log),
		middleware.Metrics(m),
		chimw.Timeout(constants.GlobalRequestTimeout),
		middleware.RateLimit(context, constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst),
		middleware.PanicRecovery(log),
		middleware.CORS(cfg),
		chimw.CleanPath,
	)

	// The overlay goes first so a consumed handoff is visible to the redirect
	// that answers it. Both are global: a browser may land on any module
	// path carrying ?auth=.
	root.Use(h.Store.Attach)
	if h.Consumer != nil {
		root.Use(h.Consumer.Middleware)
	}

	root.Get("/health", h.Liveness)
	root.Get("/ready", h.Readiness)
	if h.Metrics != nil {
		root.Handle("/metrics", h.Metrics)
	}
	root.Mount("/api/v1", h.Portal.Routes())

	return &Server{
		router:     root,
		log:        log,
		httpServer: newHTTPServer(":"+cfg.ServerPort, root),
	}
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		ReadTimeout:       constants.DefaultReadTimeout,
		WriteTimeout:      constants.DefaultWriteTimeout,
		IdleTimeout:       constants.DefaultIdleTimeout,
	}
}

// Handler exposes the router to tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_listening", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests for at most timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
