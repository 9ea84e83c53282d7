package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Manager ties the session store to the session cookie.
type Manager struct {
	store  SessionStore
	secret []byte
	ttl    time.Duration
	secure bool
}

// NewManager constructs a Manager. The secret signs session cookies.
func NewManager(store SessionStore, secret string, ttl time.Duration) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Manager{store: store, secret: []byte(secret), ttl: ttl}, nil
}

// SetSecureCookies marks session cookies as HTTPS-only.
func (m *Manager) SetSecureCookies(secure bool) {
	m.secure = secure
}

// Start opens a session for identity and sets the session cookie.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, identity Identity) error {
	sid, err := m.store.Create(ctx, identity)
	if err != nil {
		return err
	}
	token, err := issueToken(sid, m.secret, m.ttl)
	if err != nil {
		_ = m.store.Delete(ctx, sid)
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// End removes the current session, if any, and expires the cookie.
func (m *Manager) End(w http.ResponseWriter, r *http.Request) error {
	var err error
	if sid, ok := m.sessionID(r); ok {
		err = m.store.Delete(r.Context(), sid)
	}
	m.clearCookie(w)
	return err
}

// LoadSession resolves the session cookie and stores the identity in the
// request context. Requests without a valid session pass through anonymous.
func (m *Manager) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, ok := m.sessionID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		identity, found, err := m.store.Get(r.Context(), sid)
		if err != nil {
			log.Error().Err(err).Msg("Failed to get session")
			next.ServeHTTP(w, r)
			return
		}
		if !found {
			m.clearCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireUser redirects anonymous requests to redirectTo.
func RequireUser(redirectTo string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := CurrentUser(r.Context()); !ok {
				http.Redirect(w, r, redirectTo, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentUser returns the identity of the signed-in user.
func CurrentUser(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func (m *Manager) sessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	sid, err := parseTokenSessionID(cookie.Value, m.secret)
	if err != nil {
		log.Debug().Err(err).Msg("Rejected session cookie")
		return "", false
	}
	return sid, true
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
	})
}
