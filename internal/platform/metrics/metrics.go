// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package metrics holds the Prometheus instruments of the gateway.
//
// Every instrument is registered against an explicit registry so tests can
// build an isolated set with [prometheus.NewRegistry].
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values shared by several counters.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeGate      = "verification_required"
	OutcomeMalformed = "malformed"
	OutcomeRejected  = "rejected"
)

// Handoff directions.
const (
	DirectionIssued   = "issued"
	DirectionConsumed = "consumed"
)

// Metrics holds all Prometheus metrics of the gateway.
type Metrics struct {
	LoginAttempts    *prometheus.CounterVec
	Verifications    *prometheus.CounterVec
	Handoffs         *prometheus.CounterVec
	ContextSwitches  *prometheus.CounterVec
	RouteDecisions   *prometheus.CounterVec
	GuardDecisions   *prometheus.CounterVec
	GrantSize        prometheus.Histogram
	IdentityLatency  *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	HTTPRequestDelay *prometheus.HistogramVec
}

// New creates a Metrics instance with every instrument registered.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_login_attempts_total",
				Help: "Credential exchanges by outcome",
			},
			[]string{"outcome"},
		),
		Verifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_verifications_total",
				Help: "Verification gate operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		Handoffs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_handoffs_total",
				Help: "Cross-origin handoff parameters issued and consumed",
			},
			[]string{"direction", "outcome"},
		),
		ContextSwitches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_context_switches_total",
				Help: "Company context switches by outcome",
			},
			[]string{"outcome"},
		),
		RouteDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_route_decisions_total",
				Help: "Module router decisions by kind",
			},
			[]string{"kind"},
		),
		GuardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_guard_decisions_total",
				Help: "Module guard outcomes by module and code",
			},
			[]string{"module", "code"},
		),
		GrantSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gateway_grant_size",
				Help:    "Number of modules in computed access grants",
				Buckets: []float64{0, 1, 2, 3, 4, 6, 9},
			},
		),
		IdentityLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_identity_latency_seconds",
				Help:    "Identity endpoint call latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "HTTP requests served by route pattern and status class",
			},
			[]string{"route", "status"},
		),
		HTTPRequestDelay: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// Handler exposes a registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// ObserveIdentity records the latency of one identity endpoint call.
// Safe to call on a nil receiver.
func (m *Metrics) ObserveIdentity(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.IdentityLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// # Nil-safe recorders
//
// Components receive a *Metrics that may be nil (CLI, unit tests).

// Login counts one credential exchange.
func (m *Metrics) Login(outcome string) {
	if m != nil {
		m.LoginAttempts.WithLabelValues(outcome).Inc()
	}
}

// Verification counts one verification gate operation ("submit" or "resend").
func (m *Metrics) Verification(operation, outcome string) {
	if m != nil {
		m.Verifications.WithLabelValues(operation, outcome).Inc()
	}
}

// Handoff counts one handoff parameter issued or consumed.
func (m *Metrics) Handoff(direction, outcome string) {
	if m != nil {
		m.Handoffs.WithLabelValues(direction, outcome).Inc()
	}
}

// ContextSwitch counts one company context switch.
func (m *Metrics) ContextSwitch(outcome string) {
	if m != nil {
		m.ContextSwitches.WithLabelValues(outcome).Inc()
	}
}

// Route counts one module router decision and records the grant size behind it.
func (m *Metrics) Route(kind string, grantSize int) {
	if m != nil {
		m.RouteDecisions.WithLabelValues(kind).Inc()
		m.GrantSize.Observe(float64(grantSize))
	}
}

// Guard counts one module guard outcome. An empty code means access was allowed.
func (m *Metrics) Guard(module, code string) {
	if m != nil {
		if code == "" {
			code = "allowed"
		}
		m.GuardDecisions.WithLabelValues(module, code).Inc()
	}
}
