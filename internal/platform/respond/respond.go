// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package respond writes the JSON envelopes of the gateway API.
//
// Success bodies are {"data": ...}, lists add {"meta": ...}, and failures are
// {"error", "code", "action", "details"}. The portal and every module
// front-end branch on "code" and "action", so those never change shape.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/ctxutil"
	"github.com/avelarcompany/gateway/pkg/pagination"
)

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type PaginatedEnvelope struct {
	Data any             `json:"data"`
	Meta pagination.Meta `json:"meta"`
}

type ErrorEnvelope struct {
	Error   string              `json:"error"`
	Code    string              `json:"code"`
	Action  string              `json:"action,omitempty"`
	Details []apperr.FieldError `json:"details,omitempty"`
}

// JSON encodes payload with the given status. Encoding errors are dropped
// since the status line is already on the wire.
func JSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}

func OK(writer http.ResponseWriter, data any) {
	Status(writer, http.StatusOK, data)
}

// Status wraps data in the success envelope with an explicit status, e.g. 202
// for a login that stopped at the verification gate.
func Status(writer http.ResponseWriter, status int, data any) {
	JSON(writer, status, SuccessEnvelope{Data: data})
}

func Paginated(writer http.ResponseWriter, data any, meta pagination.Meta) {
	JSON(writer, http.StatusOK, PaginatedEnvelope{Data: data, Meta: meta})
}

func NoContent(writer http.ResponseWriter) {
	writer.WriteHeader(http.StatusNoContent)
}

// Error renders err as an error envelope. Errors outside the apperr vocabulary
// become INTERNAL_ERROR, and every 5xx is logged with its cause.
func Error(writer http.ResponseWriter, request *http.Request, err error) {
	appError := apperr.As(err)
	if appError == nil {
		appError = apperr.Internal(err)
	}

	if appError.HTTPStatus >= http.StatusInternalServerError {
		ctxutil.GetLogger(request.Context()).ErrorContext(request.Context(), "request_failed",
			slog.String("code", appError.Code),
			slog.Any("cause", appError.Cause),
		)
	}

	JSON(writer, appError.HTTPStatus, ErrorEnvelope{
		Error:   appError.Message,
		Code:    appError.Code,
		Action:  appError.Action,
		Details: appError.Details,
	})
}
