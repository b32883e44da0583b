package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// KeyParams identifies one data-source fetch.
type KeyParams struct {
	Source string
	Scope  string
	From   time.Time
	To     time.Time
}

// GenerateKey returns the hex SHA-256 of the normalized parameters. Source
// and scope are trimmed and lower-cased; dates are reduced to the UTC day.
func GenerateKey(p KeyParams) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(p.Source)),
		strings.ToLower(strings.TrimSpace(p.Scope)),
		keyDate(p.From),
		keyDate(p.To),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func keyDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
