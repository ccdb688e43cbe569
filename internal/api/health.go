// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/respond"
)

const probeTimeout = 2 * time.Second

// Check pings one dependency.
type Check func(context context.Context) error

// HealthDependencies lists what /ready probes. Nil checks are skipped, so a
// gateway without Redis or Postgres reports only what it uses.
type HealthDependencies struct {
	CheckIdentity Check
	CheckDatabase Check
	CheckCache    Check
}

type probe struct {
	name  string
	check Check
}

type probeResult struct {
	Name  string `json:"name"`
	IsOK  bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type readinessReport struct {
	Status  string        `json:"status"`
	App     string        `json:"app"`
	Version string        `json:"version"`
	Checks  []probeResult `json:"checks"`
}

// NewHealthHandlers returns the /health and /ready handlers.
func NewHealthHandlers(deps HealthDependencies, logger *slog.Logger) (liveness, readiness http.HandlerFunc) {
	probes := make([]probe, 0, 3)
	for _, candidate := range []probe{
		{"identity", deps.CheckIdentity},
		{"postgres", deps.CheckDatabase},
		{"redis", deps.CheckCache},
	} {
		if candidate.check != nil {
			probes = append(probes, candidate)
		}
	}

	liveness = func(writer http.ResponseWriter, _ *http.Request) {
		respond.OK(writer, map[string]string{"status": "ok"})
	}

	readiness = func(writer http.ResponseWriter, request *http.Request) {
		report := readinessReport{
			Status:  "ready",
			App:     constants.AppName,
			Version: constants.AppVersion,
			Checks:  make([]probeResult, 0, len(probes)),
		}

		for _, dependency := range probes {
			result := probeResult{Name: dependency.name, IsOK: true}
			if err := runProbe(request.Context(), dependency.check); err != nil {
				result.IsOK, result.Error = false, err.Error()
				report.Status = "degraded"
				logger.Error("readiness_check_failed", slog.String("dependency", dependency.name), slog.Any("error", err))
			}
			report.Checks = append(report.Checks, result)
		}

		status := http.StatusOK
		if report.Status != "ready" {
			status = http.StatusServiceUnavailable
		}
		respond.Status(writer, status, report)
	}

	return liveness, readiness
}

func runProbe(parent context.Context, check Check) error {
	context, cancel := context.WithTimeout(parent, probeTimeout)
	defer cancel()
	return check(context)
}
