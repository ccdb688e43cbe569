// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package portal_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelarcompany/gateway/internal/access"
	"github.com/avelarcompany/gateway/internal/audit"
	"github.com/avelarcompany/gateway/internal/handoff"
	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/portal"
	"github.com/avelarcompany/gateway/internal/session"
	"github.com/avelarcompany/gateway/pkg/pagination"
)

const portalURL = "https://portal.avelarcompany.com.br"

// # Harness

type harness struct {
	routes  map[string]http.HandlerFunc
	app     http.Handler
	trail   *audit.Trail
	cookies map[string]*http.Cookie
}

func newHarness(t *testing.T) *harness {
	h := &harness{routes: map[string]http.HandlerFunc{}, cookies: map[string]*http.Cookie{}}

	upstream := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		handler, ok := h.routes[request.Method+" "+request.URL.Path]
		if !ok {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		handler(writer, request)
	}))
	t.Cleanup(upstream.Close)

	h.routes["POST /api/auth/send-verification"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]any{"message": "Código enviado", "success": true})
	}

	service := identity.NewService(
		identity.NewClient(upstream.URL, 2*time.Second, nil),
		identity.NewMemoryPendingRepository(), nil, identity.Options{},
	)
	store := session.NewStore(session.NewMemoryScoped(0), service, session.Options{})
	catalog := access.DefaultCatalog()
	h.trail = audit.NewTrail(audit.NewMemoryRepository(0))

	handler := portal.NewHandler(portal.Dependencies{
		Identity: service,
		Store:    store,
		Router: access.NewRouter(catalog, handoff.NewURLCodec(nil), nil, access.RouterOptions{
			SupportContact: "suporte@avelarcompany.com.br",
		}),
		Guard:     access.NewGuard(store, catalog, portalURL, nil),
		Trail:     h.trail,
		PortalURL: portalURL,
	})
	h.app = store.Attach(handler.Routes())

	return h
}

// do sends one browser request and keeps the cookies it receives.
func (h *harness) do(method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, target, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		request.Header.Set(headers[i], headers[i+1])
	}
	for _, cookie := range h.cookies {
		request.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}

	recorder := httptest.NewRecorder()
	h.app.ServeHTTP(recorder, request)

	for _, cookie := range recorder.Result().Cookies() {
		if cookie.MaxAge < 0 {
			delete(h.cookies, cookie.Name)
			continue
		}
		h.cookies[cookie.Name] = cookie
	}
	return recorder
}

// login answers the credential exchange with user and signs in.
func (h *harness) login(t *testing.T, user map[string]any) map[string]any {
	t.Helper()
	h.routes["POST /api/auth/login"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]any{"access_token": "tok-1", "token_type": "bearer", "user": user})
	}

	recorder := h.do(http.MethodPost, "/auth/login", map[string]string{"document": "529.982.247-25", "password": "secret"})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	return data(t, recorder)
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
		"whatsapp":          "5511987654321",
		"role":              "user",
		"is_active":         true,
		"whatsapp_verified": true,
		"enabled_modules":   []string{"StockTech"},
	}
	for key, value := range overrides {
		user[key] = value
	}
	return user
}

func data(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	return envelope.Data
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	return envelope.Code
}

func events(t *testing.T, trail *audit.Trail) []audit.Event {
	t.Helper()
	entries, _, err := trail.List(context.Background(), audit.Filter{}, pagination.Params{Page: 1, Limit: 100})
	require.NoError(t, err)

	out := make([]audit.Event, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Event)
	}
	return out
}

// # Credential Exchange

/*
TestLogin_SingleModuleRedirects verifies the save happens before the handoff URL is built.
*/
func TestLogin_SingleModuleRedirects(t *testing.T) {
	h := newHarness(t)

	body := h.login(t, userBody(nil))

	assert.Equal(t, "authenticated", body["status"])
	decision := body["decision"].(map[string]any)
	assert.Equal(t, "redirect", decision["kind"])

	target := decision["target"].(map[string]any)
	assert.Equal(t, "StockTech", target["module"])
	assert.True(t, strings.HasPrefix(target["url"].(string), "https://stocktech.avelarcompany.com.br?auth="))

	current := h.do(http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, current.Code)
	assert.Equal(t, []any{"StockTech"}, data(t, current)["grant"])

	assert.ElementsMatch(t, []audit.Event{audit.EventLogin, audit.EventHandoffIssued}, events(t, h.trail))
}

/*
TestLogin_Rejections covers input validation and upstream refusals.
*/
func TestLogin_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]string
		status   int
		upstream int
		code     string
	}{
		{"missing_password", map[string]string{"document": "52998224725"}, http.StatusBadRequest, 0, "VALIDATION_ERROR"},
		{"short_document", map[string]string{"document": "123", "password": "x"}, http.StatusBadRequest, 0, "VALIDATION_ERROR"},
		{"wrong_password", map[string]string{"document": "52998224725", "password": "x"}, http.StatusUnauthorized, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"upstream_error", map[string]string{"document": "52998224725", "password": "x"}, http.StatusUnauthorized, http.StatusInternalServerError, "INVALID_CREDENTIALS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.routes["POST /api/auth/login"] = func(writer http.ResponseWriter, _ *http.Request) {
				writeJSON(writer, tt.upstream, map[string]any{"detail": "CPF/CNPJ ou senha incorretos"})
			}

			recorder := h.do(http.MethodPost, "/auth/login", tt.body)

			assert.Equal(t, tt.status, recorder.Code)
			assert.Equal(t, tt.code, errorCode(t, recorder))
			assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/session", nil).Code)
		})
	}
}

// # Verification Gate

/*
TestLogin_VerificationGate walks the gate from 202 to an established session.
*/
func TestLogin_VerificationGate(t *testing.T) {
	h := newHarness(t)
	h.routes["POST /api/auth/login"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusUnprocessableEntity, map[string]any{
			"detail": map[string]any{"message": "Verifique seu WhatsApp", "action": "verify_whatsapp", "whatsapp": "5511987654321"},
		})
	}

	gate := h.do(http.MethodPost, "/auth/login", map[string]string{"document": "52998224725", "password": "x"})
	require.Equal(t, http.StatusAccepted, gate.Code, gate.Body.String())

	body := data(t, gate)
	assert.Equal(t, "verification_required", body["status"])
	verification := body["verification"].(map[string]any)
	assert.Equal(t, "verify_whatsapp", verification["action"])
	assert.Equal(t, "52998224725", verification["document"])
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/session", nil).Code)

	invalid := h.do(http.MethodPost, "/auth/verify", map[string]string{"document": "52998224725", "code": "12a"})
	assert.Equal(t, http.StatusBadRequest, invalid.Code)

	h.routes["POST /api/auth/verify-whatsapp"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]any{"access_token": "fresh", "user": userBody(map[string]any{"whatsapp_verified": false})})
	}

	verified := h.do(http.MethodPost, "/auth/verify", map[string]string{"document": "52998224725", "code": "123456"})
	require.Equal(t, http.StatusOK, verified.Code, verified.Body.String())
	assert.Equal(t, "authenticated", data(t, verified)["status"])

	current := h.do(http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, current.Code)
	assert.Equal(t, true, data(t, current)["user"].(map[string]any)["whatsapp_verified"])

	assert.Contains(t, events(t, h.trail), audit.EventVerificationRequired)
	assert.Contains(t, events(t, h.trail), audit.EventVerification)
}

/*
TestVerify_WithoutTokenAsksForRelogin covers endpoints that accept the code but issue nothing.
*/
func TestVerify_WithoutTokenAsksForRelogin(t *testing.T) {
	h := newHarness(t)
	h.routes["POST /api/auth/login"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusUnprocessableEntity, map[string]any{"detail": "WhatsApp não verificado"})
	}
	require.Equal(t, http.StatusAccepted, h.do(http.MethodPost, "/auth/login", map[string]string{"document": "52998224725", "password": "x"}).Code)

	h.routes["POST /api/auth/verify-whatsapp"] = func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]any{"message": "WhatsApp verificado", "success": true})
	}

	recorder := h.do(http.MethodPost, "/auth/verify", map[string]string{"document": "52998224725", "code": "123456"})

	require.Equal(t, http.StatusOK, recorder.Code)
	body := data(t, recorder)
	assert.Equal(t, "verified", body["status"])
	assert.Equal(t, true, body["relogin"])
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/session", nil).Code)
}

/*
TestResend_WithoutGate verifies a resend needs an open gate.
*/
func TestResend_WithoutGate(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/auth/resend", map[string]string{}).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/auth/resend", map[string]string{"document": "52998224725"}).Code)
}

// # Modules

/*
TestModules_ChooserAndOpen covers the chooser list and opening one entry.
*/
func TestModules_ChooserAndOpen(t *testing.T) {
	h := newHarness(t)
	body := h.login(t, userBody(map[string]any{"enabled_modules": []string{"AvAdmin", "StockTech"}}))
	assert.Equal(t, "chooser", body["decision"].(map[string]any)["kind"])

	list := h.do(http.MethodGet, "/modules", nil)
	require.Equal(t, http.StatusOK, list.Code)
	modules := data(t, list)["modules"].([]any)
	require.Len(t, modules, 2)
	assert.Equal(t, "StockTech", modules[0].(map[string]any)["id"])
	assert.Equal(t, "AvAdmin", modules[1].(map[string]any)["id"])

	browser := h.do(http.MethodGet, "/modules/AvAdmin/open", nil)
	require.Equal(t, http.StatusSeeOther, browser.Code)
	assert.True(t, strings.HasPrefix(browser.Header().Get("Location"), "https://avadmin.avelarcompany.com.br?auth="))

	api := h.do(http.MethodGet, "/modules/StockTech/open", nil, "Accept", "application/json")
	require.Equal(t, http.StatusOK, api.Code)
	assert.Equal(t, "StockTech", data(t, api)["module"])

	denied := h.do(http.MethodGet, "/modules/Shop/open", nil)
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Equal(t, "MODULE_NOT_ENABLED", errorCode(t, denied))

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/modules/Nope/open", nil).Code)
}

/*
TestModules_NoAccess verifies an empty grant shows the support contact.
*/
func TestModules_NoAccess(t *testing.T) {
	h := newHarness(t)
	body := h.login(t, userBody(map[string]any{"enabled_modules": []string{}}))

	decision := body["decision"].(map[string]any)
	assert.Equal(t, "no_access", decision["kind"])
	assert.Equal(t, "suporte@avelarcompany.com.br", decision["support"])

	list := h.do(http.MethodGet, "/modules", nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Empty(t, data(t, list)["modules"])
	assert.Equal(t, "suporte@avelarcompany.com.br", data(t, list)["support"])
}

// # Context Switch

/*
TestSwitchCompany verifies a successful switch overwrites the whole session.
*/
func TestSwitchCompany(t *testing.T) {
	h := newHarness(t)
	h.login(t, userBody(map[string]any{"role": "admin", "account_id": "acc-1", "client_type": "lojista"}))

	h.routes["POST /api/auth/switch-company"] = func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Authorization") != "Bearer tok-1" {
			writer.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(writer, http.StatusOK, map[string]any{"access_token": "company", "user": userBody(map[string]any{
			"id":              "c-1",
			"cpf":             "11222333000181",
			"role":            "admin",
			"account_id":      "acc-1",
			"client_type":     "lojista",
			"enabled_modules": []string{"StockTech", "Team"},
		})})
	}

	recorder := h.do(http.MethodPost, "/auth/switch-company", nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	body := data(t, recorder)
	assert.Equal(t, true, body["reload"])
	assert.Equal(t, "chooser", body["decision"].(map[string]any)["kind"])

	current := data(t, h.do(http.MethodGet, "/session", nil))
	assert.Equal(t, "c-1", current["user"].(map[string]any)["id"])
	assert.Equal(t, []any{"StockTech", "Team"}, current["grant"])
	assert.Equal(t, false, current["can_switch_company"])
}

/*
TestSwitchCompany_Failures verifies failures leave the session untouched and point to login.
*/
func TestSwitchCompany_Failures(t *testing.T) {
	t.Run("not_eligible", func(t *testing.T) {
		h := newHarness(t)
		h.login(t, userBody(nil))

		recorder := h.do(http.MethodPost, "/auth/switch-company", nil)

		assert.Equal(t, http.StatusForbidden, recorder.Code)
		assert.Equal(t, portalURL+"/login?error=access_denied&mode=cnpj", recorder.Header().Get("Location"))
		assert.Equal(t, "u-1", data(t, h.do(http.MethodGet, "/session", nil))["user"].(map[string]any)["id"])
	})

	t.Run("token_rejected", func(t *testing.T) {
		h := newHarness(t)
		h.login(t, userBody(map[string]any{"role": "admin", "account_id": "acc-1", "client_type": "lojista"}))
		h.routes["POST /api/auth/switch-company"] = func(writer http.ResponseWriter, _ *http.Request) {
			writeJSON(writer, http.StatusUnauthorized, map[string]any{"detail": "Token expirado"})
		}

		recorder := h.do(http.MethodPost, "/auth/switch-company", nil)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Equal(t, portalURL+"/login?error=session_expired&mode=cnpj", recorder.Header().Get("Location"))
	})

	t.Run("upstream_errors", func(t *testing.T) {
		for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError} {
			h := newHarness(t)
			h.login(t, userBody(map[string]any{"role": "admin", "account_id": "acc-1", "client_type": "lojista"}))
			h.routes["POST /api/auth/switch-company"] = func(writer http.ResponseWriter, _ *http.Request) {
				writeJSON(writer, status, map[string]any{"detail": "falha"})
			}

			recorder := h.do(http.MethodPost, "/auth/switch-company", nil)

			assert.GreaterOrEqual(t, recorder.Code, http.StatusBadRequest, "upstream %d", status)
			assert.Equal(t, portalURL+"/login?mode=cnpj", recorder.Header().Get("Location"), "upstream %d", status)
			assert.Equal(t, "u-1", data(t, h.do(http.MethodGet, "/session", nil))["user"].(map[string]any)["id"])
		}
	})

	t.Run("malformed_reply", func(t *testing.T) {
		h := newHarness(t)
		h.login(t, userBody(map[string]any{"role": "admin", "account_id": "acc-1", "client_type": "lojista"}))
		h.routes["POST /api/auth/switch-company"] = func(writer http.ResponseWriter, _ *http.Request) {
			writeJSON(writer, http.StatusOK, map[string]any{"user": userBody(nil)})
		}

		recorder := h.do(http.MethodPost, "/auth/switch-company", nil)

		assert.Equal(t, "MALFORMED_SERVER_RESPONSE", errorCode(t, recorder))
		assert.Equal(t, portalURL+"/login?mode=cnpj", recorder.Header().Get("Location"))
	})

	t.Run("anonymous", func(t *testing.T) {
		h := newHarness(t)
		assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/auth/switch-company", nil).Code)
	})
}

// # Session

/*
TestLogout clears the session on every key.
*/
func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login(t, userBody(nil))

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/auth/logout", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/session", nil).Code)
	assert.Contains(t, events(t, h.trail), audit.EventLogout)
}

/*
TestUpdateProfile verifies the edited snapshot is written back to the session.
*/
func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)
	h.login(t, userBody(nil))

	var sent map[string]any
	h.routes["PUT /api/users/u-1"] = func(writer http.ResponseWriter, request *http.Request) {
		_ = json.NewDecoder(request.Body).Decode(&sent)
		writeJSON(writer, http.StatusOK, map[string]any{})
	}

	blank := h.do(http.MethodPatch, "/session/profile", map[string]string{"full_name": "  "})
	assert.Equal(t, http.StatusBadRequest, blank.Code)

	recorder := h.do(http.MethodPatch, "/session/profile", map[string]string{"full_name": " Maria S. Souza "})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, "Maria S. Souza", sent["full_name"])

	current := data(t, h.do(http.MethodGet, "/session", nil))
	assert.Equal(t, "Maria S. Souza", current["user"].(map[string]any)["full_name"])
}

/*
TestNotice returns the fixed sentence of every redirect code.
*/
func TestNotice(t *testing.T) {
	h := newHarness(t)

	recorder := h.do(http.MethodGet, "/auth/notice?error=session_expired", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "Sua sessão expirou. Faça login novamente.", data(t, recorder)["message"])

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/auth/notice?error=bogus", nil).Code)
}

// # Forward Auth

/*
TestGuardEndpoint covers the reverse-proxy check.
*/
func TestGuardEndpoint(t *testing.T) {
	h := newHarness(t)

	anonymous := h.do(http.MethodGet, "/guard/StockTech", nil)
	assert.Equal(t, http.StatusFound, anonymous.Code)
	assert.True(t, strings.HasPrefix(anonymous.Header().Get("Location"), portalURL+"/login?redirect="))

	h.login(t, userBody(map[string]any{"client_type": "lojista"}))

	allowed := h.do(http.MethodGet, "/guard/StockTech", nil)
	require.Equal(t, http.StatusNoContent, allowed.Code)
	assert.Equal(t, "u-1", allowed.Header().Get(portal.HeaderUserID))
	assert.Equal(t, "user", allowed.Header().Get(portal.HeaderRole))
	assert.Equal(t, "lojista", allowed.Header().Get(portal.HeaderClient))

	denied := h.do(http.MethodGet, "/guard/AvAdmin", nil, "Accept", "application/json")
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Equal(t, "MODULE_NOT_ENABLED", errorCode(t, denied))
	assert.Contains(t, denied.Header().Get("Location"), "error=module_not_enabled")

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/guard/Nope", nil).Code)
}

// # Audit

/*
TestAudit_SuperAdminOnly verifies the trail listing is restricted.
*/
func TestAudit_SuperAdminOnly(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/audit", nil).Code)

	h.login(t, userBody(nil))
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/audit", nil).Code)

	h.login(t, userBody(map[string]any{"role": "super_admin"}))
	recorder := h.do(http.MethodGet, "/audit?event=login", nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var envelope struct {
		Data []audit.Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	for _, entry := range envelope.Data {
		assert.Equal(t, audit.EventLogin, entry.Event)
		assert.NotContains(t, entry.Document, "52998224725")
	}
}
