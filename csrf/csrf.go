// Package csrf issues and validates stateless, signed, time-bound
// anti-forgery tokens of the form value.issuedAtMillis.signature.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
)

const (
	// DefaultMaxAge is the token lifetime used when callers pass zero.
	DefaultMaxAge = time.Hour

	// HeaderName carries the echoed token on state-changing requests.
	HeaderName = "X-CSRF-Token"
	// CookieName holds the token where client script can read it.
	CookieName = "csrf_token"

	valueBytes = 32
	clockSkew  = time.Minute
)

var encoding = base64.RawURLEncoding

type Service struct {
	secret []byte
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(secret string, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, errors.Wrapf(errors.ErrSecretMisconfigured, "csrf secret is empty")
	}
	s := &Service{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue returns a new signed token.
func (s *Service) Issue() (string, error) {
	b := make([]byte, valueBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate csrf value: %w", err)
	}
	payload := encoding.EncodeToString(b) + "." + strconv.FormatInt(s.now().UnixMilli(), 10)
	return payload + "." + s.sign(payload), nil
}

// Validate reports whether token is well formed, correctly signed and no
// older than maxAge. A token exactly maxAge old is accepted.
func (s *Service) Validate(token string, maxAge time.Duration) bool {
	return s.Check(token, maxAge) == nil
}

// Check is Validate with the rejection reason, always wrapping ErrCSRFInvalid.
func (s *Service) Check(token string, maxAge time.Duration) error {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return errors.Wrapf(errors.ErrCSRFInvalid, "malformed token")
	}

	expected := s.sign(parts[0] + "." + parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return errors.Wrapf(errors.ErrCSRFInvalid, "signature mismatch")
	}

	issuedAt, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return errors.Wrapf(errors.ErrCSRFInvalid, "malformed timestamp")
	}
	age := s.now().UnixMilli() - issuedAt
	if age > maxAge.Milliseconds() {
		return errors.Wrapf(errors.ErrCSRFInvalid, "token expired")
	}
	if age < -clockSkew.Milliseconds() {
		return errors.Wrapf(errors.ErrCSRFInvalid, "token issued in the future")
	}
	return nil
}

func (s *Service) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return encoding.EncodeToString(mac.Sum(nil))
}
