// Package validation provides input validation utilities for shopclip.
package validation

import (
	"fmt"
	"strings"
)

// ValidateKey validates a store key before it is mapped to a file on disk.
// Keys become file names under the key directory, so anything that could
// escape that directory is rejected.
//
// Returns an error if the key:
//   - Is empty
//   - Contains null bytes
//   - Contains path separators (/ or \)
//   - Is the ".." component
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	if strings.ContainsRune(key, 0) {
		return fmt.Errorf("key contains null byte")
	}

	// Reject path separators (both Unix and Windows style)
	if strings.ContainsRune(key, '/') || strings.ContainsRune(key, '\\') {
		return fmt.Errorf("key cannot contain path separators: %s", key)
	}

	// Separators are already rejected, so only the literal ".." component can
	// still traverse. Dotted keys like "auth.access_token" stay legal.
	if key == ".." {
		return fmt.Errorf("key cannot be '..'")
	}

	return nil
}
