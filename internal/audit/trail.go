// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package audit

import (
	"context"
	"embed"
	"log/slog"
	"time"

	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/ctxutil"
	"github.com/avelarcompany/gateway/pkg/pagination"
	"github.com/avelarcompany/gateway/pkg/uuid"
)

// Migrations holds the SQL migrations of the audit schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of [Migrations].
const MigrationsDir = "migrations"

// # Contracts

// Repository persists audit entries.
type Repository interface {
	Insert(context context.Context, entry *Entry) error
	List(context context.Context, filter Filter, params pagination.Params) ([]Entry, int, error)
}

// Recorder accepts audit entries. Implementations never fail the caller.
type Recorder interface {
	Record(context context.Context, entry Entry)
}

// # Trail

// Trail logs every entry and persists it when a repository is configured.
type Trail struct {
	repository Repository
	now        func() time.Time
}

// NewTrail creates a [Trail]. A nil repository keeps the trail in logs only.
func NewTrail(repository Repository) *Trail {
	return &Trail{repository: repository, now: time.Now}
}

/*
Record stamps and stores one entry.

Description: The ID, timestamp, request id and client IP are filled in from
the request context. The write runs detached from the request cancellation and
bounded by its own timeout; a failed write is logged and swallowed.
*/
func (trail *Trail) Record(context context.Context, entry Entry) {
	if trail == nil {
		return
	}

	entry.ID = uuid.New()
	entry.CreatedAt = trail.now().UTC()
	entry.RequestID = ctxutil.GetRequestID(context)
	entry.IPAddress = ctxutil.GetClientIP(context)

	logger := ctxutil.GetLogger(context)
	logger.InfoContext(context, "audit_event",
		slog.String("event", string(entry.Event)),
		slog.String("outcome", entry.Outcome),
		slog.String("user_id", entry.UserID),
		slog.String("document", entry.Document),
		slog.String("token_fp", entry.TokenFP),
		slog.String("module", entry.Module),
		slog.String("detail", entry.Detail),
	)

	if trail.repository == nil {
		return
	}

	writeContext, cancel := detached(context)
	defer cancel()

	if err := trail.repository.Insert(writeContext, &entry); err != nil {
		logger.WarnContext(context, "audit_write_failed",
			slog.String("event", string(entry.Event)),
			slog.Any("error", err),
		)
	}
}

// Persistent reports whether entries outlive the process logs.
func (trail *Trail) Persistent() bool {
	return trail != nil && trail.repository != nil
}

// List returns one page of entries, newest first.
func (trail *Trail) List(context context.Context, filter Filter, params pagination.Params) ([]Entry, int, error) {
	if !trail.Persistent() {
		return []Entry{}, 0, nil
	}
	return trail.repository.List(context, filter, params)
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), constants.AuditWriteTimeout)
}
