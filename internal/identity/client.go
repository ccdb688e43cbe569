// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
)

// Identity endpoint operations. Used as metric labels and error tags.
const (
	OpLogin            = "login"
	OpVerify           = "verify_whatsapp"
	OpSendVerification = "send_verification"
	OpSwitchCompany    = "switch_company"
	OpMe               = "me"
	OpUpdateProfile    = "update_profile"
	OpPing             = "ping"
)

// maxResponseBytes bounds identity response bodies.
const maxResponseBytes = 1 << 20

// # Wire Types

// tokenResponse is the success body of login, verification and switch.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        *User  `json:"user"`
}

// session converts a token response into a validated [Session].
func (response *tokenResponse) session() (*Session, error) {
	if response.User == nil {
		return nil, apperr.MalformedServerResponse("user")
	}

	session := &Session{Token: response.AccessToken, User: *response.User}
	if err := session.Validate(); err != nil {
		return nil, err
	}

	return session, nil
}

// verifyResponse is the success body of verify-whatsapp. Older deployments
// answer with only {message, success} and no token.
type verifyResponse struct {
	tokenResponse
	Message string `json:"message"`
	Success *bool  `json:"success"`
}

// ProfileUpdate carries the displayed fields a user may edit. Nil fields are left untouched.
type ProfileUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	WhatsApp *string `json:"whatsapp,omitempty"`
}

// # Client

// Client talks to the identity endpoint over JSON/HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewClient creates a client for the identity endpoint at baseURL.
func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
	}
}

/*
Login exchanges a document and password for a session.

Parameters:
  - context: context.Context
  - document: string (digits only)
  - password: string

Returns:
  - *Session: Validated session
  - error: *RemoteError for non-2xx, MALFORMED_SERVER_RESPONSE, IDENTITY_UNAVAILABLE
*/
func (client *Client) Login(context context.Context, document, password string) (*Session, error) {
	body := map[string]string{"document": document, "password": password}

	var response tokenResponse
	if err := client.do(context, OpLogin, http.MethodPost, "/api/auth/login", "", body, &response); err != nil {
		return nil, err
	}

	return response.session()
}

/*
VerifyWhatsApp submits a one-time code for a document.

The document is sent under both field names accepted by deployed endpoints.
A nil session with a nil error means the code was accepted but the endpoint
issued no token.
*/
func (client *Client) VerifyWhatsApp(context context.Context, document, code string) (*Session, string, error) {
	body := map[string]string{"cpf": document, "document": document, "code": code}

	var response verifyResponse
	if err := client.do(context, OpVerify, http.MethodPost, "/api/auth/verify-whatsapp", "", body, &response); err != nil {
		return nil, "", err
	}

	if response.Success != nil && !*response.Success {
		return nil, "", &RemoteError{
			Operation: OpVerify,
			Status:    http.StatusBadRequest,
			Payload:   ErrorPayload{Kind: PayloadString, Text: response.Message},
		}
	}

	if response.AccessToken == "" {
		return nil, response.Message, nil
	}

	// A token without a user is completed by the caller from the provisional snapshot.
	if response.User == nil {
		return &Session{Token: response.AccessToken}, response.Message, nil
	}

	session, err := response.session()
	if err != nil {
		return nil, "", err
	}

	return session, response.Message, nil
}

// SendVerification asks the endpoint to deliver a fresh code.
func (client *Client) SendVerification(context context.Context, document string) error {
	body := map[string]string{"cpf": document, "document": document}
	return client.do(context, OpSendVerification, http.MethodPost, "/api/auth/send-verification", "", body, nil)
}

// SwitchCompany reissues the session of token scoped to its company account.
func (client *Client) SwitchCompany(context context.Context, token string) (*Session, error) {
	var response tokenResponse
	if err := client.do(context, OpSwitchCompany, http.MethodPost, "/api/auth/switch-company", token, nil, &response); err != nil {
		return nil, err
	}

	return response.session()
}

// Me fetches the user snapshot behind a token.
func (client *Client) Me(context context.Context, token string) (*User, error) {
	var user User
	if err := client.do(context, OpMe, http.MethodGet, "/api/auth/me", token, nil, &user); err != nil {
		return nil, err
	}

	if user.ID == "" {
		return nil, apperr.MalformedServerResponse("id")
	}

	return &user, nil
}

// UpdateProfile writes the editable profile fields of userID.
func (client *Client) UpdateProfile(context context.Context, token, userID string, update ProfileUpdate) error {
	path := "/api/users/" + userID
	return client.do(context, OpUpdateProfile, http.MethodPut, path, token, update, nil)
}

// Ping reports whether the identity endpoint answers. Any reply below 500,
// including the 401 of an anonymous call, counts as reachable.
func (client *Client) Ping(context context.Context) error {
	err := client.do(context, OpPing, http.MethodGet, "/api/auth/me", "", nil, nil)
	if remote, ok := AsRemote(err); ok && remote.Status < 500 {
		return nil
	}
	return err
}

// # Transport

// do performs one JSON round trip. Non-2xx answers become [*RemoteError];
// transport failures become IDENTITY_UNAVAILABLE.
func (client *Client) do(context context.Context, operation, method, path, token string, in, out any) error {
	started := time.Now()
	defer client.metrics.ObserveIdentity(operation, started)

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("identity_%s_encode_failed: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(context, method, client.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("identity_%s_request_failed: %w", operation, err)
	}

	request.Header.Set("Accept", "application/json")
	if in != nil {
		request.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}
	if token != "" {
		request.Header.Set(constants.HeaderAuthorization, constants.AuthorizationPrefix+token)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return apperr.IdentityUnavailable(fmt.Errorf("identity_%s_transport_failed: %w", operation, err))
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return apperr.IdentityUnavailable(fmt.Errorf("identity_%s_read_failed: %w", operation, err))
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return &RemoteError{
			Operation: operation,
			Status:    response.StatusCode,
			Payload:   ParseErrorPayload(body),
		}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		if out != nil {
			return apperr.MalformedServerResponse("body")
		}
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return apperr.MalformedServerResponse("body").WithCause(fmt.Errorf("identity_%s_decode_failed: %w", operation, err))
	}

	return nil
}

// AsRemote extracts a [*RemoteError] from err's chain.
func AsRemote(err error) (*RemoteError, bool) {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote, true
	}
	return nil, false
}
