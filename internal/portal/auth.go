// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package portal

import (
	"net/http"

	"github.com/avelarcompany/gateway/internal/access"
	"github.com/avelarcompany/gateway/internal/audit"
	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/constants"
	requestutil "github.com/avelarcompany/gateway/internal/platform/request"
	"github.com/avelarcompany/gateway/internal/platform/respond"
	"github.com/avelarcompany/gateway/internal/platform/validate"
	"github.com/avelarcompany/gateway/pkg/document"
)

// Response statuses of the authentication endpoints.
const (
	statusAuthenticated        = "authenticated"
	statusVerificationRequired = "verification_required"
	statusVerified             = "verified"
)

type loginRequest struct {
	Document string `json:"document"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Document string `json:"document"`
	Code     string `json:"code"`
}

type resendRequest struct {
	Document string `json:"document"`
}

// authResponse is the body of every endpoint that can establish a session.
type authResponse struct {
	Status       string               `json:"status"`
	User         *identity.User       `json:"user,omitempty"`
	Decision     *access.Decision     `json:"decision,omitempty"`
	Verification *verificationPayload `json:"verification,omitempty"`
	Relogin      bool                 `json:"relogin,omitempty"`
	Reload       bool                 `json:"reload,omitempty"`
	Message      string               `json:"message,omitempty"`
}

type verificationPayload struct {
	Document string `json:"document"`
	WhatsApp string `json:"whatsapp,omitempty"`
	Message  string `json:"message"`
	Action   string `json:"action"`
}

// login handles POST /api/v1/auth/login.
//
// # Returns
//   - 200 with the session user and the routing decision.
//   - 202 with the verification payload when the gate must be passed first.
//   - 400 / 401 / 502 / 503 per the error taxonomy.
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required("document", input.Document).Required("password", input.Password)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	context := request.Context()

	result, err := handler.identity.Login(context, identity.LoginInput{
		Document: input.Document,
		Password: input.Password,
	})
	if err != nil {
		handler.trail.Record(context, audit.New(audit.EventLogin, audit.OutcomeFailure).
			For(input.Document).Because(errorCode(err)))
		respond.Error(writer, request, err)
		return
	}

	if result.RequiresVerification() {
		pending := result.Pending
		handler.trail.Record(context, audit.New(audit.EventVerificationRequired, audit.OutcomeSuccess).
			For(pending.Document))

		respond.Status(writer, http.StatusAccepted, authResponse{
			Status: statusVerificationRequired,
			Verification: &verificationPayload{
				Document: pending.Document,
				WhatsApp: maskPhone(pending.WhatsApp),
				Message:  pending.Message,
				Action:   apperr.ActionVerifyWhatsApp,
			},
		})
		return
	}

	handler.establish(writer, request, result.Session, audit.EventLogin, false)
}

// verify handles POST /api/v1/auth/verify.
//
// An accepted code without an issued token answers verified with relogin set.
func (handler *Handler) verify(writer http.ResponseWriter, request *http.Request) {
	var input verifyRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required("document", input.Document).
		Digits("code", input.Code, constants.VerificationCodeLength)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	context := request.Context()

	result, err := handler.identity.SubmitCode(context, input.Document, input.Code)
	if err != nil {
		handler.trail.Record(context, audit.New(audit.EventVerification, audit.OutcomeFailure).
			For(input.Document).Because(errorCode(err)))
		respond.Error(writer, request, err)
		return
	}

	if result.Session == nil {
		handler.trail.Record(context, audit.New(audit.EventVerification, audit.OutcomeSuccess).
			For(input.Document).Because("relogin"))
		respond.OK(writer, authResponse{Status: statusVerified, Relogin: true, Message: result.Message})
		return
	}

	handler.establish(writer, request, result.Session, audit.EventVerification, false)
}

// resend handles POST /api/v1/auth/resend.
func (handler *Handler) resend(writer http.ResponseWriter, request *http.Request) {
	var input resendRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if input.Document == "" {
		respond.Error(writer, request, validate.RequiredError("document", "This field is required"))
		return
	}

	context := request.Context()

	if err := handler.identity.ResendCode(context, input.Document); err != nil {
		handler.trail.Record(context, audit.New(audit.EventCodeResent, audit.OutcomeFailure).
			For(input.Document).Because(errorCode(err)))
		respond.Error(writer, request, err)
		return
	}

	handler.trail.Record(context, audit.New(audit.EventCodeResent, audit.OutcomeSuccess).For(input.Document))
	respond.NoContent(writer)
}

// switchCompany handles POST /api/v1/auth/switch-company.
//
// On success the whole session is overwritten and the client must reload.
// On any failure the session is untouched and Location points to a fresh
// login in the company context.
func (handler *Handler) switchCompany(writer http.ResponseWriter, request *http.Request) {
	current, ok := handler.required(writer, request)
	if !ok {
		return
	}

	context := request.Context()

	switched, err := handler.identity.SwitchCompany(context, current)
	if err != nil {
		handler.trail.Record(context, audit.New(audit.EventContextSwitch, audit.OutcomeFailure).
			Of(current).Because(errorCode(err)))

		writer.Header().Set("Location", access.CompanyLoginURL(handler.portalURL, redirectCode(err)))
		respond.Error(writer, request, err)
		return
	}

	handler.establish(writer, request, switched, audit.EventContextSwitch, true)
}

// logout handles POST /api/v1/auth/logout.
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	context := request.Context()

	current, _ := handler.store.Load(request)
	if err := handler.store.Clear(writer, request); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.trail.Record(context, audit.New(audit.EventLogout, audit.OutcomeSuccess).Of(current))
	respond.NoContent(writer)
}

// notice handles GET /api/v1/auth/notice?error=<code>.
func (handler *Handler) notice(writer http.ResponseWriter, request *http.Request) {
	code := request.URL.Query().Get(constants.ErrorParam)

	sentence, ok := access.Notice(code)
	if !ok {
		respond.Error(writer, request, apperr.NotFound("Notice"))
		return
	}

	respond.OK(writer, map[string]string{
		"code":    code,
		"message": sentence,
	})
}

// # Continuation

// establish saves a session, then asks the module router where to go.
// The save completes before the decision so a handoff URL carries this token.
func (handler *Handler) establish(writer http.ResponseWriter, request *http.Request, established *identity.Session, event audit.Event, reload bool) {
	context := request.Context()

	if err := handler.store.Save(writer, request, established); err != nil {
		handler.trail.Record(context, audit.New(event, audit.OutcomeFailure).Of(established).Because(errorCode(err)))
		respond.Error(writer, request, err)
		return
	}

	decision, err := handler.router.Decide(context, established)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.trail.Record(context, audit.New(event, audit.OutcomeSuccess).Of(established))
	handler.recordHandoff(request, established, decision.Target)

	respond.OK(writer, authResponse{
		Status:   statusAuthenticated,
		User:     &established.User,
		Decision: decision,
		Reload:   reload,
	})
}

func (handler *Handler) recordHandoff(request *http.Request, established *identity.Session, target *access.Target) {
	if target == nil || target.SameOrigin {
		return
	}
	handler.trail.Record(request.Context(), audit.New(audit.EventHandoffIssued, audit.OutcomeSuccess).
		Of(established).In(target.Module))
}

// # Helpers

func errorCode(err error) string {
	if appError := apperr.As(err); appError != nil {
		return appError.Code
	}
	return apperr.CodeInternal
}

// redirectCode maps a failed context switch to the notice shown on the login
// page. Failures without a notice return "".
func redirectCode(err error) string {
	switch {
	case apperr.HasCode(err, apperr.CodeSessionExpired):
		return constants.CodeSessionExpired
	case apperr.HasCode(err, apperr.CodeAccessDenied):
		return constants.CodeAccessDenied
	default:
		return ""
	}
}

// maskPhone keeps the last four digits of a messaging address.
func maskPhone(phone string) string {
	digits := document.Normalize(phone)
	if len(digits) <= 4 {
		return digits
	}
	masked := make([]byte, len(digits))
	for i := range digits {
		if i < len(digits)-4 {
			masked[i] = '*'
		} else {
			masked[i] = digits[i]
		}
	}
	return string(masked)
}
