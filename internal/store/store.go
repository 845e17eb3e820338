// Package store provides the narrow key-value persistence used for session
// material. Two implementations exist: a durable file-per-key store for
// tokens and the cached profile, and a TTL-bound in-memory store for the
// OAuth handshake. Callers choose the scope at construction time.
package store

import "errors"

var (
	// ErrNotFound is returned by Get when a key has no value. TTL expiry in
	// the ephemeral store surfaces the same way as a key that was never set.
	ErrNotFound = errors.New("store: key not found")

	// ErrInvalidKey is returned when a key cannot be used by the backing
	// implementation (empty, or unsafe as a file name).
	ErrInvalidKey = errors.New("store: invalid key")
)

// Store is the persistence interface consumed by the auth packages. Values
// are opaque strings; callers marshal structured data themselves.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) (string, error)
	// Set writes the value for key, replacing any previous value.
	Set(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// IsNotFound reports whether err means the key was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
