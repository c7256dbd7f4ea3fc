package manager

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/sessions"
)

// CookieDirectives are the cookies a response must set or expire.
type CookieDirectives []*http.Cookie

// Apply writes the directives to w.
func (cd CookieDirectives) Apply(w http.ResponseWriter) {
	for _, c := range cd {
		http.SetCookie(w, c)
	}
}

// payload is the encrypted cookie body. It never carries tokens.
type payload struct {
	SID      string                   `json:"sid"`
	UID      string                   `json:"uid"`
	Email    string                   `json:"email,omitempty"`
	TID      string                   `json:"tid,omitempty"`
	State    sessions.OnboardingState `json:"state"`
	Exp      int64                    `json:"exp"` // unix millis
	CachedAt int64                    `json:"cat"` // unix millis
}

func (p payload) session() *sessions.Session {
	return &sessions.Session{
		ID:              p.SID,
		UserID:          p.UID,
		Email:           p.Email,
		TenantID:        p.TID,
		OnboardingState: p.State,
		ExpiresAt:       time.UnixMilli(p.Exp),
	}
}

// sessionCookie builds the session cookie for s, living as long as s does.
func (m *Manager) sessionCookie(s *sessions.Session) (*http.Cookie, error) {
	now := m.opts.Now()
	remaining := s.RemainingLifetime(now)
	if remaining <= 0 {
		return nil, errors.Wrapf(errors.ErrUnauthenticated, "session expired")
	}

	value := s.ID
	if m.opts.Mode == ModeEncrypted {
		data, err := json.Marshal(payload{
			SID:      s.ID,
			UID:      s.UserID,
			Email:    s.Email,
			TID:      s.TenantID,
			State:    s.OnboardingState,
			Exp:      s.ExpiresAt.UnixMilli(),
			CachedAt: now.UnixMilli(),
		})
		if err != nil {
			return nil, err
		}
		if value, err = m.opts.Codec.Encrypt(data); err != nil {
			return nil, err
		}
	}

	return &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   m.opts.CookieDomain,
		MaxAge:   int(remaining / time.Second),
		Expires:  s.ExpiresAt.UTC(),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: m.opts.SameSite,
	}, nil
}

// ClearCookies expires every session cookie name ever used, and the CSRF
// cookie, both on the configured domain and host-only.
func (m *Manager) ClearCookies() CookieDirectives {
	names := append([]string{m.opts.CookieName}, m.opts.HistoricalCookieNames...)
	names = append(names, m.opts.CSRFCookieName)

	seen := make(map[string]bool, len(names))
	var out CookieDirectives
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, m.expired(name, ""))
		if m.opts.CookieDomain != "" {
			out = append(out, m.expired(name, m.opts.CookieDomain))
		}
	}
	return out
}

func (m *Manager) expired(name, domain string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: name != m.opts.CSRFCookieName,
		Secure:   m.opts.Secure,
		SameSite: m.opts.SameSite,
	}
}

// legacyCookies expires historical names still present on r, so a migrated
// client does not carry two session cookies.
func (m *Manager) legacyCookies(r *http.Request) CookieDirectives {
	var out CookieDirectives
	for _, name := range m.opts.HistoricalCookieNames {
		if name == m.opts.CookieName {
			continue
		}
		if _, err := r.Cookie(name); err == nil {
			out = append(out, m.expired(name, ""))
			if m.opts.CookieDomain != "" {
				out = append(out, m.expired(name, m.opts.CookieDomain))
			}
		}
	}
	return out
}
