package store

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shopclip/shopclip-cli/internal/logging"
	"github.com/shopclip/shopclip-cli/internal/validation"
)

// FileStore is the durable scope: one file per key under a private directory.
// Tokens are sensitive, so files are created 0600 inside a 0700 directory and
// writes go through a temp file plus rename.
type FileStore struct {
	dir    string
	logger *logging.Logger
}

// NewFileStore creates a durable store rooted at dir, creating it if needed.
func NewFileStore(dir string, logger *logging.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: directory is required")
	}
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Get reads the value for key. Warns when the file is readable by group or
// others, since every value in this store is session material.
func (s *FileStore) Get(key string) (string, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to stat key file: %w", err)
	}

	if runtime.GOOS != "windows" {
		if mode := info.Mode().Perm(); mode&0077 != 0 {
			s.logger.Warn().
				Str("key", key).
				Str("mode", fmt.Sprintf("%04o", mode)).
				Msg("key file has insecure permissions, consider chmod 600")
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read key file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Set writes the value atomically: temp file in the same directory, chmod to
// 0600, then rename over the target.
func (s *FileStore) Set(key, value string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(value+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save key file: %w", err)
	}
	return nil
}

// Delete removes the key's file. Absent keys are not an error.
func (s *FileStore) Delete(key string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	return nil
}

// keyPath maps a key to its backing file, rejecting anything that could
// escape the store directory.
func (s *FileStore) keyPath(key string) (string, error) {
	if err := validation.ValidateKey(key); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key), nil
}
