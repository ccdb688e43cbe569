// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package handoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/avelarcompany/gateway/internal/audit"
	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/ctxutil"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
)

// # Contracts

// Saver writes an inbound session to the local session store.
type Saver interface {
	Save(writer http.ResponseWriter, request *http.Request, session *identity.Session) error
}

// Hydrator resolves the user behind a bare token.
type Hydrator interface {
	Hydrate(context context.Context, token string) (*identity.Session, error)
}

// # Consumer

// Consumer decodes inbound handoff parameters on application bootstrap.
type Consumer struct {
	codec    Codec
	store    Saver
	hydrator Hydrator
	trail    audit.Recorder
	metrics  *metrics.Metrics
	audience string
}

// NewConsumer creates a [Consumer] for the module identified by audience.
// A nil hydrator rejects bare tokens that arrive without a user.
func NewConsumer(codec Codec, store Saver, hydrator Hydrator, trail audit.Recorder, m *metrics.Metrics, audience string) *Consumer {
	return &Consumer{
		codec:    codec,
		store:    store,
		hydrator: hydrator,
		trail:    trail,
		metrics:  m,
		audience: audience,
	}
}

/*
Middleware consumes the handoff parameter of GET requests.

Description: When a parameter is present the session it carries is saved and
the browser is redirected (302) to the same URL without it. When decoding or
saving fails the failure is logged, audited and counted, and the browser is
still redirected to the stripped URL; whatever session it already had stays in
effect. Mount it after the session store's Attach.
*/
func (consumer *Consumer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodGet || !Present(request.URL.Query()) {
			next.ServeHTTP(writer, request)
			return
		}

		consumer.Consume(writer, request)
		http.Redirect(writer, request, Strip(request.URL), http.StatusFound)
	})
}

// Consume decodes and saves the inbound session. It reports whether a session was saved.
func (consumer *Consumer) Consume(writer http.ResponseWriter, request *http.Request) bool {
	context := request.Context()
	logger := ctxutil.GetLogger(context)

	session, err := consumer.decode(context, request)
	if err == nil && session != nil {
		err = consumer.store.Save(writer, request, session)
	}

	if err != nil {
		outcome := metrics.OutcomeFailure
		if apperr.HasCode(err, apperr.CodeDecodeFailure) {
			outcome = metrics.OutcomeMalformed
		}
		if errors.Is(err, ErrReplayed) || errors.Is(err, ErrLegacyRefused) {
			outcome = metrics.OutcomeRejected
		}

		consumer.metrics.Handoff(metrics.DirectionConsumed, outcome)
		consumer.record(context, audit.New(audit.EventHandoffRejected, audit.OutcomeFailure).
			In(consumer.audience).Because(failureDetail(err)))
		logger.WarnContext(context, "handoff_decode_failed",
			slog.String("outcome", outcome),
			slog.Any("error", err),
		)
		return false
	}

	if session == nil {
		return false
	}

	consumer.metrics.Handoff(metrics.DirectionConsumed, metrics.OutcomeSuccess)
	consumer.record(context, audit.New(audit.EventHandoffConsumed, audit.OutcomeSuccess).
		Of(session).In(consumer.audience))
	logger.InfoContext(context, "handoff_consumed", slog.String("user_id", session.User.ID))

	return true
}

func (consumer *Consumer) decode(context context.Context, request *http.Request) (*identity.Session, error) {
	session, err := consumer.codec.Decode(context, request.URL.Query(), consumer.audience)
	if err != nil || session == nil || session.User.ID != "" {
		return session, err
	}

	// Bare token: the user snapshot comes from the identity endpoint.
	if consumer.hydrator == nil {
		return nil, apperr.DecodeFailure(fmt.Errorf("%w: user", ErrMissingField))
	}
	return consumer.hydrator.Hydrate(context, session.Token)
}

func (consumer *Consumer) record(context context.Context, entry audit.Entry) {
	if consumer.trail != nil {
		consumer.trail.Record(context, entry)
	}
}

func failureDetail(err error) string {
	if appError := apperr.As(err); appError != nil {
		if appError.Cause != nil {
			return appError.Code + ": " + appError.Cause.Error()
		}
		return appError.Code
	}
	return err.Error()
}
