// Package monitor lists a user's active sessions in a form safe to show them.
package monitor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strconv"
	"time"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/sessions"
)

const (
	DefaultThreshold = 5
	maxUserAgent     = 64
	maskedIP         = "masked"
)

// Anomaly flags
const (
	FlagUnfamiliarNetwork = "unfamiliar_network"
	FlagExcessiveSessions = "excessive_sessions"
)

type Lister interface {
	ListActiveForUser(ctx context.Context, userID string) ([]sessions.Summary, error)
}

// MaskedSession never carries the raw session ID or tokens.
type MaskedSession struct {
	Handle         string    `json:"handle"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	MaskedIP       string    `json:"maskedIp"`
	UserAgent      string    `json:"userAgent,omitempty"`
	IsCurrent      bool      `json:"isCurrent"`
	Flags          []string  `json:"flags,omitempty"`
}

type Report struct {
	Sessions  []MaskedSession `json:"sessions"`
	Anomalies []string        `json:"anomalies,omitempty"`
}

type Monitor struct {
	store     Lister
	threshold int
}

func New(store Lister, threshold int) *Monitor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Monitor{store: store, threshold: threshold}
}

// ListMasked returns every active session of userID, marking the caller's own.
func (m *Monitor) ListMasked(ctx context.Context, userID, currentSessionID string) (*Report, error) {
	if userID == "" {
		return nil, errors.ErrUnauthenticated
	}
	summaries, err := m.store.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	currentNet := ""
	for _, s := range summaries {
		if s.ID == currentSessionID {
			currentNet = network(s.ClientMeta.IP)
		}
	}

	report := &Report{Sessions: make([]MaskedSession, 0, len(summaries))}
	for _, s := range summaries {
		masked := MaskedSession{
			Handle:         Handle(s.ID),
			CreatedAt:      s.CreatedAt,
			LastActivityAt: s.LastActivityAt,
			MaskedIP:       MaskIP(s.ClientMeta.IP),
			UserAgent:      TruncateUserAgent(s.ClientMeta.UserAgent),
			IsCurrent:      s.ID == currentSessionID,
		}
		if !masked.IsCurrent && currentNet != "" && network(s.ClientMeta.IP) != currentNet {
			masked.Flags = append(masked.Flags, FlagUnfamiliarNetwork)
		}
		report.Sessions = append(report.Sessions, masked)
	}
	if len(summaries) > m.threshold {
		report.Anomalies = append(report.Anomalies, FlagExcessiveSessions)
	}
	return report, nil
}

// Handle is a stable, non-reversible reference to a session for display and logs.
func Handle(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])[:16]
}

// MaskIP keeps the first two octets of an IPv4 (or IPv4-mapped) address.
// Anything else, IPv6 included, is fully masked.
func MaskIP(ip string) string {
	v4 := parseV4(ip)
	if v4 == nil {
		return maskedIP
	}
	return strconv.Itoa(int(v4[0])) + "." + strconv.Itoa(int(v4[1])) + ".xxx.xxx"
}

// TruncateUserAgent cuts ua to at most 64 characters.
func TruncateUserAgent(ua string) string {
	runes := []rune(ua)
	if len(runes) <= maxUserAgent {
		return ua
	}
	return string(runes[:maxUserAgent])
}

// network returns the /16 of an IPv4 address, or "" when unknown.
func network(ip string) string {
	v4 := parseV4(ip)
	if v4 == nil {
		return ""
	}
	return strconv.Itoa(int(v4[0])) + "." + strconv.Itoa(int(v4[1]))
}

func parseV4(ip string) net.IP {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil
	}
	return parsed.To4()
}
