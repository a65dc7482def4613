// Package pastebin holds a single shared text snippet that expires after a
// chosen number of minutes.
package pastebin

import (
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	DefaultTTLMinutes = 60
	MaxTTLMinutes     = 7 * 24 * 60
	MaxContentBytes   = 1 << 20

	key = "content"
)

// ErrTooLarge is returned when content exceeds MaxContentBytes.
var ErrTooLarge = errors.New("pastebin content too large")

// Paste is the current snippet. ExpiresAt is nil when nothing is stored.
type Paste struct {
	Content    string     `json:"content"`
	ExpiresAt  *time.Time `json:"expires_at"`
	TTLMinutes int        `json:"ttl_minutes"`
}

// Store is an in-memory pastebin.
type Store struct {
	c *cache.Cache

	mu  sync.Mutex
	ttl int
}

// New returns an empty Store.
func New() *Store {
	return &Store{c: cache.New(cache.NoExpiration, time.Minute), ttl: DefaultTTLMinutes}
}

// Get returns the snippet, or empty content once it has expired.
func (s *Store) Get() Paste {
	s.mu.Lock()
	ttl := s.ttl
	s.mu.Unlock()

	v, exp, ok := s.c.GetWithExpiration(key)
	if !ok {
		return Paste{TTLMinutes: ttl}
	}
	p := Paste{Content: v.(string), TTLMinutes: ttl}
	if !exp.IsZero() {
		p.ExpiresAt = &exp
	}
	return p
}

// Set replaces the snippet. A ttlMinutes of zero or less uses the default.
func (s *Store) Set(content string, ttlMinutes int) (Paste, error) {
	if len(content) > MaxContentBytes {
		return Paste{}, ErrTooLarge
	}
	if ttlMinutes <= 0 {
		ttlMinutes = DefaultTTLMinutes
	}
	if ttlMinutes > MaxTTLMinutes {
		ttlMinutes = MaxTTLMinutes
	}
	s.mu.Lock()
	s.ttl = ttlMinutes
	s.mu.Unlock()

	s.c.Set(key, content, time.Duration(ttlMinutes)*time.Minute)
	return s.Get(), nil
}

// Clear removes the snippet.
func (s *Store) Clear() {
	s.c.Delete(key)
}
