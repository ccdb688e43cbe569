// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session implements the session store shared by every module application.

A session is written to two places:

  - Scoped storage: the {token, user} pair under both the legacy (avadmin_*) and
    the current (avelar_*) keys, for applications deployed at different times.
  - Domain cookie: the bare token on the parent domain, so every subdomain
    receives it on requests without a second round trip.

The store is an explicit object passed to its consumers. Reads prefer the
domain cookie token because it is what the identity endpoint actually sees.
Concurrent writers (two tabs) are last-write-wins.
*/
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/ctxutil"
	requestutil "github.com/avelarcompany/gateway/internal/platform/request"
	"github.com/avelarcompany/gateway/internal/platform/sec"
	"github.com/avelarcompany/gateway/pkg/document"
)

// # Contracts & Types

// Hydrator resolves the user snapshot behind a bare token.
type Hydrator interface {
	Hydrate(context context.Context, token string) (*identity.Session, error)
}

// Options configures the domain cookie.
type Options struct {
	// CookieDomain is the parent domain, e.g. ".avelarcompany.com.br".
	CookieDomain string

	// MaxAge is the domain cookie lifetime in seconds.
	MaxAge int

	// Secure marks the cookie Secure and SameSite=None. Disabled for plain-http development.
	Secure bool
}

// Store is the session store of one application.
type Store struct {
	scoped   Scoped
	hydrator Hydrator
	options  Options
}

// NewStore creates a [Store]. A nil hydrator disables cookie-only hydration.
func NewStore(scoped Scoped, hydrator Hydrator, options Options) *Store {
	if options.MaxAge <= 0 {
		options.MaxAge = int(constants.DefaultCookieMaxAge / time.Second)
	}

	return &Store{
		scoped:   scoped,
		hydrator: hydrator,
		options:  options,
	}
}

// # Write Path

/*
Save writes the session under both key generations and sets the domain cookie.

Description: The write is visible to Load in the same request as soon as Save
returns, so a handoff URL built right after carries exactly this token.

Parameters:
  - writer: http.ResponseWriter
  - request: *http.Request
  - session: *identity.Session

Returns:
  - error: WHATSAPP_NOT_VERIFIED for a user that cannot hold a session, or storage failures
*/
func (store *Store) Save(writer http.ResponseWriter, request *http.Request, session *identity.Session) error {
	if session == nil || session.Token == "" {
		return apperr.Internal(fmt.Errorf("session_save_empty"))
	}
	if !session.User.CanHoldSession() {
		return apperr.WhatsAppNotVerified("")
	}

	userJSON, err := json.Marshal(session.User)
	if err != nil {
		return fmt.Errorf("session_encode_user_failed: %w", err)
	}

	values := Values{
		constants.KeyCurrentToken: session.Token,
		constants.KeyCurrentUser:  string(userJSON),
		constants.KeyLegacyToken:  session.Token,
		constants.KeyLegacyUser:   string(userJSON),
	}

	if err := store.scoped.Write(writer, request, values); err != nil {
		return fmt.Errorf("session_save_failed: %w", err)
	}

	http.SetCookie(writer, store.domainCookie(session.Token, store.options.MaxAge))
	overlayFrom(request.Context()).set(session)

	return nil
}

// Clear deletes every key and expires the domain cookie.
func (store *Store) Clear(writer http.ResponseWriter, request *http.Request) error {
	if err := store.scoped.Clear(writer, request); err != nil {
		return fmt.Errorf("session_clear_failed: %w", err)
	}

	http.SetCookie(writer, store.domainCookie("", -1))
	overlayFrom(request.Context()).set(nil)

	return nil
}

func (store *Store) domainCookie(token string, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:   constants.DomainTokenCookie,
		Value:  token,
		Path:   "/",
		Domain: store.options.CookieDomain,
		MaxAge: maxAge,

		// Module frontends read the token from document.cookie.
		HttpOnly: false,
		Secure:   store.options.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	if store.options.Secure {
		cookie.SameSite = http.SameSiteNoneMode
	}
	if maxAge < 0 {
		cookie.Expires = time.Unix(0, 0)
	}

	return cookie
}

// # Read Path

/*
Load returns the session of the request, or nil when there is none.

Description: Sources in order: the request overlay, the domain cookie token, the
scoped storage (current keys, then legacy), the Authorization header. A token
without a matching user snapshot is hydrated from the identity endpoint and,
when it came from the domain cookie, written back to the scoped storage.

Returns:
  - *identity.Session: The session, or nil
  - error: SESSION_EXPIRED when hydration is rejected, or storage failures
*/
func (store *Store) Load(request *http.Request) (*identity.Session, error) {
	ov := overlayFrom(request.Context())
	if session, known := ov.get(); known {
		return session, nil
	}

	session, err := store.read(request)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeSessionExpired) {
			ov.expire()
		}
		return nil, err
	}

	ov.set(session)
	return session, nil
}

func (store *Store) read(request *http.Request) (*identity.Session, error) {
	values, err := store.scoped.Read(request)
	if err != nil {
		return nil, err
	}

	scopedToken, user := pick(values)
	cookieToken := ""
	if cookie, err := request.Cookie(constants.DomainTokenCookie); err == nil {
		cookieToken = cookie.Value
	}

	switch {
	case cookieToken != "" && cookieToken == scopedToken && user != nil:
		return &identity.Session{Token: cookieToken, User: *user}, nil

	case cookieToken != "":
		return store.hydrate(request, cookieToken, true)

	case scopedToken != "" && user != nil:
		return &identity.Session{Token: scopedToken, User: *user}, nil

	case scopedToken != "":
		return store.hydrate(request, scopedToken, true)
	}

	if bearer := requestutil.BearerToken(request); bearer != "" {
		return store.hydrate(request, bearer, false)
	}

	return nil, nil
}

func (store *Store) hydrate(request *http.Request, token string, writeBack bool) (*identity.Session, error) {
	if store.hydrator == nil {
		return nil, nil
	}

	context := request.Context()
	logger := ctxutil.GetLogger(context)

	session, err := store.hydrator.Hydrate(context, token)
	if err != nil {
		return nil, err
	}

	if !session.User.CanHoldSession() {
		logger.WarnContext(context, "session_hydrated_unverified",
			slog.String("document", document.Mask(session.User.Document)),
			slog.String("token_fp", sec.Fingerprint(token)),
		)
		return nil, nil
	}

	if writer := overlayFrom(context).responseWriter(); writeBack && writer != nil {
		if err := store.Save(writer, request, session); err != nil {
			logger.WarnContext(context, "session_hydration_write_back_failed", slog.Any("error", err))
		}
	}

	logger.DebugContext(context, "session_hydrated", slog.String("token_fp", sec.Fingerprint(token)))
	return session, nil
}

// pick reads the current keys first and falls back to the legacy ones.
func pick(values Values) (string, *identity.User) {
	token := values[constants.KeyCurrentToken]
	if token == "" {
		token = values[constants.KeyLegacyToken]
	}

	for _, key := range []string{constants.KeyCurrentUser, constants.KeyLegacyUser} {
		raw := values[key]
		if raw == "" {
			continue
		}
		var user identity.User
		if err := json.Unmarshal([]byte(raw), &user); err == nil && user.ID != "" {
			return token, &user
		}
	}

	return token, nil
}

// # Request Authentication

// Resolve implements the middleware principal resolver.
//
// A rejected token resolves as anonymous so public routes (login) stay
// reachable; [Store.Required] still reports SESSION_EXPIRED.
func (store *Store) Resolve(request *http.Request) (*sec.Principal, error) {
	session, err := store.Load(request)
	if apperr.HasCode(err, apperr.CodeSessionExpired) {
		return nil, nil
	}
	if err != nil || session == nil {
		return nil, err
	}
	return session.Principal(), nil
}

// Required returns the session of the request, SESSION_EXPIRED for a rejected
// token, or UNAUTHORIZED when no session exists.
func (store *Store) Required(request *http.Request) (*identity.Session, error) {
	session, err := store.Load(request)
	if err != nil {
		return nil, err
	}
	if session == nil {
		if overlayFrom(request.Context()).wasExpired() {
			return nil, apperr.SessionExpired()
		}
		return nil, apperr.Unauthorized("Authentication required")
	}
	return session, nil
}
