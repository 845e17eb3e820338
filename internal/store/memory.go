package store

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/shopclip/shopclip-cli/internal/validation"
)

// EphemeralStore is the process-lifetime scope with TTL expiry, used for the
// OAuth handshake triplet. Entries disappear on restart and after the TTL,
// which is exactly the lifetime a pending handshake should have.
type EphemeralStore struct {
	cache *gocache.Cache
}

// NewEphemeralStore creates a TTL-bound store. cleanupInterval controls how
// often expired entries are swept; expiry itself is enforced on read.
func NewEphemeralStore(ttl, cleanupInterval time.Duration) *EphemeralStore {
	return &EphemeralStore{
		cache: gocache.New(ttl, cleanupInterval),
	}
}

// Get returns the value for key, or ErrNotFound once the TTL has passed.
// Key rules match the durable scope so callers can move values between
// scopes without re-checking.
func (s *EphemeralStore) Get(key string) (string, error) {
	if validation.ValidateKey(key) != nil {
		return "", ErrInvalidKey
	}
	v, ok := s.cache.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	value, ok := v.(string)
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set writes the value for key with the store's default TTL.
func (s *EphemeralStore) Set(key, value string) error {
	if validation.ValidateKey(key) != nil {
		return ErrInvalidKey
	}
	s.cache.Set(key, value, gocache.DefaultExpiration)
	return nil
}

// Delete removes key. Absent keys are not an error.
func (s *EphemeralStore) Delete(key string) error {
	if validation.ValidateKey(key) != nil {
		return ErrInvalidKey
	}
	s.cache.Delete(key)
	return nil
}
