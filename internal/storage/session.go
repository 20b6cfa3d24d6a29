package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dotcommander/architect/internal/core"
)

// SessionNamingStrategy defines how to name session output directories
type SessionNamingStrategy int

const (
	// SessionUUID uses the full UUID (default)
	SessionUUID SessionNamingStrategy = iota
	// SessionTimestamp uses timestamp + short ID
	SessionTimestamp
	// SessionDescriptive uses timestamp + a slug of the first requirement
	SessionDescriptive
)

// ParseNamingStrategy maps a config or flag value to a strategy.
func ParseNamingStrategy(s string) (SessionNamingStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "uuid":
		return SessionUUID, nil
	case "timestamp":
		return SessionTimestamp, nil
	case "descriptive":
		return SessionDescriptive, nil
	default:
		return SessionUUID, fmt.Errorf("unknown session naming %q (want uuid, timestamp or descriptive)", s)
	}
}

// SessionPath returns the slash-separated directory for a session, relative
// to the store root.
func SessionPath(sessionID string, requirements []string, strategy SessionNamingStrategy, now time.Time) string {
	shortID := sessionID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	switch strategy {
	case SessionTimestamp:
		// Format: 2025-07-16_1530_82f06b15
		return path.Join(core.SessionsDir, fmt.Sprintf("%s_%s", now.Format("2006-01-02_1504"), shortID))

	case SessionDescriptive:
		// Format: 2025-07-16_1530_user-login-with-oauth_82f06b15
		first := ""
		if len(requirements) > 0 {
			first = requirements[0]
		}
		slug := sanitizeForFilename(first, 30)
		return path.Join(core.SessionsDir, fmt.Sprintf("%s_%s_%s", now.Format("2006-01-02_1504"), slug, shortID))

	default:
		return path.Join(core.SessionsDir, sessionID)
	}
}

// Namer adapts a strategy to the orchestrator's session namer.
func Namer(strategy SessionNamingStrategy) core.SessionNamer {
	return func(sessionID string, requirements []string) string {
		return SessionPath(sessionID, requirements, strategy, time.Now())
	}
}

// sanitizeForFilename converts a string to a safe filename component
func sanitizeForFilename(s string, maxLen int) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	out := strings.Trim(b.String(), "-")
	if len(out) > maxLen {
		out = strings.TrimRight(out[:maxLen], "-")
	}

	if out == "" {
		out = "session"
	}
	return out
}
