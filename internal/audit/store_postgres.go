// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelarcompany/gateway/internal/platform/database/schema"
	"github.com/avelarcompany/gateway/internal/platform/dberr"
	"github.com/avelarcompany/gateway/pkg/pagination"
)

// PostgresRepository stores audit entries in system.auditevent.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a [PostgresRepository].
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var auditColumns = []string{
	schema.SystemAuditEvent.ID,
	schema.SystemAuditEvent.Event,
	schema.SystemAuditEvent.Outcome,
	schema.SystemAuditEvent.UserID,
	schema.SystemAuditEvent.Document,
	schema.SystemAuditEvent.TokenFP,
	schema.SystemAuditEvent.Module,
	schema.SystemAuditEvent.RequestID,
	schema.SystemAuditEvent.IPAddress,
	schema.SystemAuditEvent.Detail,
	schema.SystemAuditEvent.CreatedAt,
}

// Insert appends one entry.
func (repository *PostgresRepository) Insert(context context.Context, entry *Entry) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		schema.SystemAuditEvent.Table, strings.Join(auditColumns, ", "))

	_, err := repository.db.Exec(context, query,
		entry.ID, string(entry.Event), entry.Outcome, entry.UserID, entry.Document,
		entry.TokenFP, entry.Module, entry.RequestID, entry.IPAddress, entry.Detail, entry.CreatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, "insert_audit_event")
	}
	return nil
}

// List returns one page of entries matching filter, newest first, and the total match count.
func (repository *PostgresRepository) List(context context.Context, filter Filter, params pagination.Params) ([]Entry, int, error) {
	var (
		conditions []string
		arguments  []any
	)
	if filter.Event != "" {
		arguments = append(arguments, string(filter.Event))
		conditions = append(conditions, fmt.Sprintf("%s = $%d", schema.SystemAuditEvent.Event, len(arguments)))
	}
	if filter.UserID != "" {
		arguments = append(arguments, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", schema.SystemAuditEvent.UserID, len(arguments)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, schema.SystemAuditEvent.Table, where)

	var total int
	if err := repository.db.QueryRow(context, countQuery, arguments...).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "count_audit_events")
	}

	listQuery := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY %s DESC LIMIT $%d OFFSET $%d`,
		strings.Join(auditColumns, ", "), schema.SystemAuditEvent.Table, where,
		schema.SystemAuditEvent.CreatedAt, len(arguments)+1, len(arguments)+2)

	rows, err := repository.db.Query(context, listQuery, append(arguments, params.Limit, params.Offset())...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_audit_events")
	}
	defer rows.Close()

	entries := make([]Entry, 0, params.Limit)
	for rows.Next() {
		var (
			entry Entry
			event string
		)
		if err := rows.Scan(
			&entry.ID, &event, &entry.Outcome, &entry.UserID, &entry.Document,
			&entry.TokenFP, &entry.Module, &entry.RequestID, &entry.IPAddress, &entry.Detail, &entry.CreatedAt,
		); err != nil {
			return nil, 0, dberr.Wrap(err, "scan_audit_event")
		}
		entry.Event = Event(event)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "iterate_audit_events")
	}

	return entries, total, nil
}
