package cache

import (
	"encoding/json"
	"errors"
	"time"
)

// Entry is a single cached value with expiry metadata.
type Entry struct {
	// Key is the cache key (see GenerateKey).
	Key string `json:"key"`

	// Data is the cached value.
	Data json.RawMessage `json:"data"`

	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is zero for entries that never expire.
	ExpiresAt time.Time `json:"expires_at"`
}

// NewEntry creates an entry expiring ttl from now. ttl <= 0 never expires.
func NewEntry(key string, data json.RawMessage, ttl time.Duration) *Entry {
	now := time.Now()
	e := &Entry{Key: key, Data: data, CreatedAt: now}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	return e
}

// IsExpired reports whether the entry is past its expiry.
func (e *Entry) IsExpired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Age returns the duration since the entry was created.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CreatedAt)
}

// TimeUntilExpiration returns 0 for expired entries and for entries that
// never expire.
func (e *Entry) TimeUntilExpiration() time.Duration {
	if e.ExpiresAt.IsZero() {
		return 0
	}
	remaining := time.Until(e.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Decode unmarshals the cached data into v.
func (e *Entry) Decode(v any) error {
	if e == nil {
		return errors.New("decode of nil cache entry")
	}
	return json.Unmarshal(e.Data, v)
}
