// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
	"github.com/avelarcompany/gateway/internal/platform/sec"
	"github.com/avelarcompany/gateway/pkg/pointer"
)

// # Fake Identity Endpoint

type fakeIdentity struct {
	routes map[string]http.HandlerFunc
	sends  atomic.Int32
	last   map[string]map[string]any
}

func newFakeIdentity(t *testing.T) (*fakeIdentity, *httptest.Server) {
	fake := &fakeIdentity{routes: map[string]http.HandlerFunc{}, last: map[string]map[string]any{}}
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		key := request.Method + " " + request.URL.Path
		if request.Body != nil && request.ContentLength != 0 {
			body := map[string]any{}
			_ = json.NewDecoder(request.Body).Decode(&body)
			fake.last[key] = body
		}
		handler, ok := fake.routes[key]
		if !ok {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		handler(writer, request)
	}))
	t.Cleanup(server.Close)

	fake.routes["POST /api/auth/send-verification"] = func(writer http.ResponseWriter, _ *http.Request) {
		fake.sends.Add(1)
		writeJSON(writer, http.StatusOK, map[string]any{"message": "Código enviado", "success": true})
	}

	return fake, server
}

func writeJSON(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(body)
}

func userBody(overrides map[string]any) map[string]any {
	user := map[string]any{
		"id":                "u-1",
		"full_name":         "Maria Souza",
		"cpf":               "52998224725",
		"whatsapp":          "11987654321",
		"role":              "user",
		"is_active":         true,
		"whatsapp_verified": true,
		"enabled_modules":   []string{"StockTech", "AvAdmin"},
	}
	for key, value := range overrides {
		user[key] = value
	}
	return user
}

func newService(server *httptest.Server, strict bool) *identity.Service {
	client := identity.NewClient(server.URL, 2*time.Second, metrics.New(metrics.NewRegistry()))
	return identity.NewService(client, identity.NewMemoryPendingRepository(), nil, identity.Options{StrictDocument: strict})
}

// # Error Payloads

/*
TestParseErrorPayload covers the three detail shapes and their fallbacks.
*/
func TestParseErrorPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind identity.PayloadKind
		want string
	}{
		{"string_detail", `{"detail":"CPF/CNPJ ou senha incorretos"}`, identity.PayloadString, "CPF/CNPJ ou senha incorretos"},
		{"list_detail", `{"detail":[{"msg":"field required"},{"msg":"too short"}]}`, identity.PayloadList, "field required | too short"},
		{"empty_list", `{"detail":[]}`, identity.PayloadList, "Validation error"},
		{"object_message", `{"detail":{"message":"Verifique seu WhatsApp","action":"verify_whatsapp"}}`, identity.PayloadObject, "Verifique seu WhatsApp"},
		{"object_error", `{"detail":{"error":"Conta inativa"}}`, identity.PayloadObject, "Conta inativa"},
		{"top_level_message", `{"message":"Erro"}`, identity.PayloadString, "Erro"},
		{"plain_text", `Bad Gateway`, identity.PayloadRaw, "Bad Gateway"},
		{"empty", ``, identity.PayloadEmpty, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := identity.ParseErrorPayload([]byte(tt.body))
			assert.Equal(t, tt.kind, payload.Kind)
			assert.Equal(t, tt.want, payload.String())
		})
	}
}

/*
TestRemoteError_RequiresVerification checks the three gate signals.
*/
func TestRemoteError_RequiresVerification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"status_422", http.StatusUnprocessableEntity, `{"detail":"x"}`, true},
		{"action_marker", http.StatusForbidden, `{"detail":{"message":"m","action":"verify_whatsapp"}}`, true},
		{"message_mentions_channel", http.StatusForbidden, `{"detail":"WhatsApp não verificado"}`, true},
		{"plain_401", http.StatusUnauthorized, `{"detail":"CPF/CNPJ ou senha incorretos"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &identity.RemoteError{Status: tt.status, Payload: identity.ParseErrorPayload([]byte(tt.body))}
			assert.Equal(t, tt.want, remote.RequiresVerification())
		})
	}
}

// # Credential Exchange

/*
TestLogin_Success verifies the normalized document reaches the endpoint.
*/
func TestLogin_Success(t *testing.T) {
	fake, server := newFakeIdentity(t)
	fake.routes["POST /api/auth/login"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]any{"access_token": "tok-1", "token_type": "bearer", "user": userBody(nil)})
	}

	result, err := newService(server, false).Login(context.Background(), identity.LoginInput{
		Document: "529.982.247-25",
		Password: "secret",
	})

	require.NoError(t, err)
	require.NotNil(t, result.Session)
	assert.False(t, result.RequiresVerification())
	assert.Equal(t, "tok-1", result.Session.Token)
	assert.Equal(t, "52998224725", result.Session.User.Document)
	assert.Equal(t, "52998224725", fake.last["POST /api/auth/login"]["document"])
}

/*
TestLogin_UnverifiedEntersGate is the scenario of an unverified regular user:
the exchange ends in the gate, not in an error.
*/
func TestLogin_UnverifiedEntersGate(t *testing.T) {
	fake, server := newFakeIdentity(t)
	fake.routes["POST /api/auth/login"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusUnprocessableEntity, map[string]any{"detail": map[string]any{
			"message":   "WhatsApp não verificado. Enviamos um código.",
			"whatsapp":  "(11) 98765-4321",
			"action":    "verify_whatsapp",
			"user_name": "João",
		}})
	}

	service := newService(server, false)
	result, err := service.Login(context.Background(), identity.LoginInput{Document: "12345678901", Password: "valid"})

	require.NoError(t, err)
	require.True(t, result.RequiresVerification())
	assert.Nil(t, result.Session)
	assert.Equal(t, identity.ProvisionalUserID, result.Pending.User.ID)
	assert.Equal(t, "João", result.Pending.User.FullName)
	assert.Equal(t, "(11) 98765-4321", result.Pending.WhatsApp)
	assert.False(t, result.Pending.User.WhatsAppVerified)

	pending, err := service.Pending(context.Background(), "123.456.789-01")
	require.NoError(t, err)
	assert.Equal(t, "12345678901", pending.Document)
}

/*
TestLogin_SuccessfulButUnverified opens the gate and triggers delivery.
*/
func TestLogin_SuccessfulButUnverified(t *testing.T) {
	fake, server := newFakeIdentity(t)
	fake.routes["POST /api/auth/login"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]any{"access_token": "tok-1", "user": userBody(map[string]any{"whatsapp_verified": false})})
	}

	result, err := newService(server, false).Login(context.Background(), identity.LoginInput{Document: "52998224725", Password: "x"})

	require.NoError(t, err)
	require.True(t, result.RequiresVerification())
	assert.Equal(t, "u-1", result.Pending.User.ID)
	assert.Equal(t, int32(1), fake.sends.Load())
}

/*
TestLogin_Failures maps non-gate failures onto the taxonomy.
*/
func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    map[string]any
		code    string
		message string
	}{
		{"invalid_credentials", http.StatusUnauthorized, map[string]any{"detail": "CPF/CNPJ ou senha incorretos"}, apperr.CodeInvalidCredentials, "CPF/CNPJ ou senha incorretos"},
		{"validation_list", http.StatusBadRequest, map[string]any{"detail": []map[string]string{{"msg": "password required"}}}, apperr.CodeInvalidCredentials, "password required"},
		{"missing_token", http.StatusOK, map[string]any{"user": userBody(nil)}, apperr.CodeMalformedServerResponse, ""},
		{"missing_user_id", http.StatusOK, map[string]any{"access_token": "t", "user": userBody(map[string]any{"id": ""})}, apperr.CodeMalformedServerResponse, ""},
		{"server_error_keeps_message", http.StatusInternalServerError, map[string]any{"detail": "Senha incorreta"}, apperr.CodeInvalidCredentials, "Senha incorreta"},
		{"bad_gateway_without_body", http.StatusBadGateway, map[string]any{}, apperr.CodeInvalidCredentials, "Invalid document or password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, server := newFakeIdentity(t)
			fake.routes["POST /api/auth/login"] = func(writer http.ResponseWriter, _ *http.Request) {
				writeJSON(writer, tt.status, tt.body)
			}

			result, err := newService(server, false).Login(context.Background(), identity.LoginInput{Document: "52998224725", Password: "x"})

			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, apperr.HasCode(err, tt.code), "got %v", err)
			if tt.message != "" {
				assert.Equal(t, tt.message, apperr.As(err).Message)
			}
		})
	}
}

/*
TestLogin_TransportFailure verifies only an unreachable endpoint yields IDENTITY_UNAVAILABLE.
*/
func TestLogin_TransportFailure(t *testing.T) {
	_, server := newFakeIdentity(t)
	service := newService(server, false)
	server.Close()

	result, err := service.Login(context.Background(), identity.LoginInput{Document: "52998224725", Password: "x"})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperr.HasCode(err, apperr.CodeIdentityUnavailable), "got %v", err)
}

/*
TestLogin_DocumentShape checks the sentinel and the strict checksum mode.
*/
func TestLogin_DocumentShape(t *testing.T) {
	fake, server := newFakeIdentity(t)
	fake.routes["POST /api/auth/login"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]any{"access_token": "t", "user": userBody(map[string]any{"cpf": "00000000000", "role": "super_admin"})})
	}

	strict := newService(server, true)

	_, err := strict.Login(context.Background(), identity.LoginInput{Document: "00000000000", Password: "x"})
	assert.NoError(t, err)

	_, err = strict.Login(context.Background(), identity.LoginInput{Document: "12345678901", Password: "x"})
	assert.True(t, apperr.HasCode(err, "VALIDATION_ERROR"))

	_, err = strict.Login(context.Background(), identity.LoginInput{Document: "1234", Password: "x"})
	assert.True(t, apperr.HasCode(err, "VALIDATION_ERROR"))
}

// # Verification Gate

func openGate(t *testing.T, fake *fakeIdentity, service *identity.Service) {
	t.Helper()
	fake.routes["POST /api/auth/login"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusUnprocessableEntity, map[string]any{"detail": map[string]any{"message": "verifique", "action": "verify_whatsapp"}})
	}
	result, err := service.Login(context.Background(), identity.LoginInput{Document: "52998224725", Password: "x"})
	require.NoError(t, err)
	require.True(t, result.RequiresVerification())
}

/*
TestSubmitCode_IssuesVerifiedSession verifies the gate closes with a usable session.
*/
func TestSubmitCode_IssuesVerifiedSession(t *testing.T) {
	fake, server := newFakeIdentity(t)
	service := newService(server, false)
	openGate(t, fake, service)

	fake.routes["POST /api/auth/verify-whatsapp"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]any{"access_token": "fresh", "user": userBody(map[string]any{"whatsapp_verified": false})})
	}

	result, err := service.SubmitCode(context.Background(), "52998224725", "123456")

	require.NoError(t, err)
	require.NotNil(t, result.Session)
	assert.Equal(t, "fresh", result.Session.Token)
	assert.True(t, result.Session.User.WhatsAppVerified)
	assert.Equal(t, "123456", fake.last["POST /api/auth/verify-whatsapp"]["code"])
	assert.Equal(t, "52998224725", fake.last["POST /api/auth/verify-whatsapp"]["cpf"])

	_, err = service.Pending(context.Background(), "52998224725")
	assert.True(t, apperr.HasCode(err, "NOT_FOUND"))
}

/*
TestSubmitCode_WithoutToken closes the gate but issues no session.
*/
func TestSubmitCode_WithoutToken(t *testing.T) {
	fake, server := newFakeIdentity(t)
	service := newService(server, false)
	openGate(t, fake, service)

	fake.routes["POST /api/auth/verify-whatsapp"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]any{"message": "WhatsApp verificado com sucesso", "success": true})
	}

	result, err := service.SubmitCode(context.Background(), "52998224725", "123456")

	require.NoError(t, err)
	assert.Nil(t, result.Session)
	assert.Equal(t, "WhatsApp verificado com sucesso", result.Message)
}

/*
TestSubmitCode_Rejected keeps the gate open and surfaces the server message.
*/
func TestSubmitCode_Rejected(t *testing.T) {
	fake, server := newFakeIdentity(t)
	service := newService(server, false)
	openGate(t, fake, service)

	fake.routes["POST /api/auth/verify-whatsapp"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusBadRequest, map[string]any{"detail": "Código inválido ou expirado"})
	}

	_, err := service.SubmitCode(context.Background(), "52998224725", "000000")
	require.Error(t, err)
	assert.Equal(t, "Código inválido ou expirado", apperr.As(err).Message)

	_, err = service.Pending(context.Background(), "52998224725")
	assert.NoError(t, err)

	_, err = service.SubmitCode(context.Background(), "52998224725", "12ab56")
	assert.True(t, apperr.HasCode(err, "VALIDATION_ERROR"))
}

/*
TestResendCode requires an open gate and reaches the endpoint.
*/
func TestResendCode(t *testing.T) {
	fake, server := newFakeIdentity(t)
	service := newService(server, false)

	err := service.ResendCode(context.Background(), "52998224725")
	assert.True(t, apperr.HasCode(err, "NOT_FOUND"))

	openGate(t, fake, service)
	require.NoError(t, service.ResendCode(context.Background(), "52998224725"))
	assert.Equal(t, int32(1), fake.sends.Load())
}

// # Context Switch & Profile

/*
TestCanSwitchCompany checks each eligibility condition.
*/
func TestCanSwitchCompany(t *testing.T) {
	eligible := identity.User{Document: "52998224725", Role: sec.RoleAdmin, AccountID: "acc-1", ClientType: identity.ClientRetailer}
	assert.True(t, identity.CanSwitchCompany(&eligible))

	tests := []struct {
		name   string
		mutate func(*identity.User)
	}{
		{"company_document", func(u *identity.User) { u.Document = "11222333000181" }},
		{"not_admin", func(u *identity.User) { u.Role = sec.RoleManager }},
		{"no_account", func(u *identity.User) { u.AccountID = "" }},
		{"customer", func(u *identity.User) { u.ClientType = identity.ClientCustomer }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := eligible
			tt.mutate(&user)
			assert.False(t, identity.CanSwitchCompany(&user))
		})
	}
}

/*
TestSwitchCompany sends the bearer token and returns the company session.
*/
func TestSwitchCompany(t *testing.T) {
	fake, server := newFakeIdentity(t)
	fake.routes["POST /api/auth/switch-company"] = func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Authorization") != "Bearer old" {
			writeJSON(writer, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
			return
		}
		writeJSON(writer, http.StatusOK, map[string]any{"access_token": "company", "user": userBody(map[string]any{
			"cpf": "11222333000181", "role": "admin", "account_id": "acc-1",
		})})
	}

	service := newService(server, false)
	current := &identity.Session{Token: "old", User: identity.User{
		ID: "u-1", Document: "52998224725", Role: sec.RoleAdmin, AccountID: "acc-1", ClientType: identity.ClientRetailer,
	}}

	session, err := service.SwitchCompany(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, "company", session.Token)
	assert.Equal(t, "11222333000181", session.User.Document)
	assert.Equal(t, "old", current.Token)

	current.Token = "stale"
	_, err = service.SwitchCompany(context.Background(), current)
	assert.True(t, apperr.HasCode(err, apperr.CodeSessionExpired))
}

/*
TestUpdateProfile rewrites only the edited fields and keeps the token.
*/
func TestUpdateProfile(t *testing.T) {
	fake, server := newFakeIdentity(t)
	fake.routes["PUT /api/users/u-1"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]any{"message": "User updated successfully"})
	}

	current := &identity.Session{Token: "tok", User: identity.User{ID: "u-1", FullName: "Old", WhatsApp: "1199", Document: "52998224725"}}
	edited, err := newService(server, false).UpdateProfile(context.Background(), current, identity.ProfileUpdate{FullName: pointer.To("  New Name ")})

	require.NoError(t, err)
	assert.Equal(t, "tok", edited.Token)
	assert.Equal(t, "New Name", edited.User.FullName)
	assert.Equal(t, "1199", edited.User.WhatsApp)
	assert.Equal(t, "Old", current.User.FullName)
	assert.NotContains(t, fake.last["PUT /api/users/u-1"], "whatsapp")
}

/*
TestUser_AcceptsDocumentAlias ensures both field names decode.
*/
func TestUser_AcceptsDocumentAlias(t *testing.T) {
	var user identity.User
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","document":"11.222.333/0001-81"}`), &user))
	assert.Equal(t, "11222333000181", user.Document)

	encoded, err := json.Marshal(user)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"cpf":"11222333000181"`)
}

/*
TestClient_Ping treats any answer below 500 as reachable.
*/
func TestClient_Ping(t *testing.T) {
	fake, server := newFakeIdentity(t)
	client := identity.NewClient(server.URL, time.Second, nil)

	fake.routes["GET /api/auth/me"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
	}
	assert.NoError(t, client.Ping(context.Background()))

	fake.routes["GET /api/auth/me"] = func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
	}
	assert.Error(t, client.Ping(context.Background()))
}
