// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
)

// SQLSTATE codes the gateway distinguishes.
const (
	codeUniqueViolation = "23505"
	codeUndefinedTable  = "42P01"
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("Record")
	}

	var pgError *pgconn.PgError
	if errors.As(err, &pgError) {
		switch pgError.Code {
		case codeUniqueViolation:
			return apperr.Conflict("Record already exists").WithCause(fmt.Errorf("%s: %w", action, err))
		case codeUndefinedTable:
			return apperr.Internal(fmt.Errorf("%s: schema not migrated: %w", action, err))
		}
	}

	return apperr.Internal(fmt.Errorf("%s: %w", action, err))
}
