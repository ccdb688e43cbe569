// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"net/url"
	"strings"

	"github.com/avelarcompany/gateway/internal/platform/constants"
)

// # Login Notices

var notices = map[string]string{
	constants.CodeModuleNotEnabled:       "Você não tem acesso a este módulo. Entre em contato com o administrador.",
	constants.CodeAccessDenied:           "Acesso negado. Seu tipo de conta não permite acessar este recurso.",
	constants.CodeSessionExpired:         "Sua sessão expirou. Faça login novamente.",
	constants.CodeInsufficientPermission: "Seu perfil não tem permissão para acessar este módulo.",
}

// Notice returns the fixed sentence shown on the login page for a redirect code.
func Notice(code string) (string, bool) {
	sentence, ok := notices[code]
	return sentence, ok
}

// PortalURL returns the portal entry URL carrying a redirect code.
func PortalURL(portal, code string) string {
	base := strings.TrimRight(portal, "/")
	if code == "" {
		return base
	}
	return base + "?" + url.Values{constants.ErrorParam: {code}}.Encode()
}

// LoginURL returns the portal login URL that comes back to redirect after sign-in.
func LoginURL(portal, redirect, code string) string {
	query := url.Values{}
	if redirect != "" {
		query.Set("redirect", redirect)
	}
	if code != "" {
		query.Set(constants.ErrorParam, code)
	}

	login := strings.TrimRight(portal, "/") + "/login"
	if len(query) == 0 {
		return login
	}
	return login + "?" + query.Encode()
}

// CompanyLoginURL returns the login URL used after a failed company switch.
// The company context hint is always present; code is added when known.
func CompanyLoginURL(portal, code string) string {
	query := url.Values{constants.ModeParam: {constants.ModeCompany}}
	if code != "" {
		query.Set(constants.ErrorParam, code)
	}
	return strings.TrimRight(portal, "/") + "/login?" + query.Encode()
}
