// Package session holds the authentication state for one portal session.
// The raw cookie blob captured after login is the source of truth and is
// forwarded verbatim on every request; the named tokens derived from it are
// a convenience/diagnostic view, never an authority.
package session

import (
	"fmt"
	"strings"
	"sync"

	"portalbridge/internal/components/telemetry"
)

const (
	report_set_cookies = "session.set-cookies"
)

// cookie name fragments that identify each derived token. The portal's
// auth layer has renamed its cookies across releases, so these match by
// substring rather than exact name.
var (
	sessionTokenNames = []string{"session-token", "session_token", "sessionid"}
	csrfTokenNames    = []string{"csrf-token", "csrf_token", "xsrf-token"}
	callbackUrlNames  = []string{"callback-url", "callback_url"}
)

type cookie struct {
	Name  string
	Value string
}

// Store is the only long-lived mutable state in the process. Reads vastly
// outnumber writes; writes happen only on explicit (re-)authentication.
type Store struct {
	mu sync.RWMutex

	raw      string
	session  cookie
	csrf     cookie
	callback cookie

	tel telemetry.API
}

func NewStore(tel telemetry.API) *Store {
	return &Store{tel: telemetry.NewScopedAPI("session", tel)}
}

func matchesAny(name string, fragments []string) bool {
	lower := strings.ToLower(name)
	for _, f := range fragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// SetCookies replaces the session wholesale with the given Cookie-header
// formatted blob and re-derives the named tokens. An empty or whitespace
// blob leaves prior state unchanged; that happens when a login flow is
// aborted halfway and must not wipe a working session.
func (s *Store) SetCookies(blob string) {
	if strings.TrimSpace(blob) == "" {
		s.tel.ReportWarning(
			report_set_cookies,
			fmt.Errorf("ignoring empty cookie blob"),
		)
		return
	}

	var sess, csrf, callback cookie
	for _, pair := range strings.Split(blob, ";") {
		pair = strings.TrimSpace(pair)
		name, value, found := strings.Cut(pair, "=")
		if !found || name == "" {
			continue
		}
		switch {
		case matchesAny(name, sessionTokenNames):
			sess = cookie{Name: name, Value: value}
		case matchesAny(name, csrfTokenNames):
			csrf = cookie{Name: name, Value: value}
		case matchesAny(name, callbackUrlNames):
			callback = cookie{Name: name, Value: value}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = strings.TrimSpace(blob)
	s.session = sess
	s.csrf = csrf
	s.callback = callback

	s.tel.ReportDebug(
		"cookies replaced",
		fmt.Sprintf("blob_len=%d", len(blob)),
		fmt.Sprintf("has_session_token=%t", sess.Value != ""),
		fmt.Sprintf("has_csrf_token=%t", csrf.Value != ""),
	)
}

// Clear drops all session state, used on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = ""
	s.session = cookie{}
	s.csrf = cookie{}
	s.callback = cookie{}
}

// IsAuthenticated reports whether a session-token-like cookie was found in
// the current blob.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Value != ""
}

// Raw returns the full cookie blob, the authoritative credential artifact.
func (s *Store) Raw() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw
}

// CookieHeader rebuilds a reduced Cookie header from the derived tokens
// only. Prefer Raw everywhere; this exists for callers that need a minimal
// cookie set (e.g. diagnostics against auth endpoints).
func (s *Store) CookieHeader() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var parts []string
	for _, c := range []cookie{s.session, s.csrf, s.callback} {
		if c.Value == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", c.Name, c.Value))
	}
	return strings.Join(parts, "; ")
}

// SessionToken returns the derived session token value, or "".
func (s *Store) SessionToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Value
}

// CsrfToken returns the derived anti-forgery token value, or "".
func (s *Store) CsrfToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.csrf.Value
}

// CallbackUrl returns the derived callback url value, or "".
func (s *Store) CallbackUrl() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callback.Value
}
