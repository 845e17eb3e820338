package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestFileStore_RoundTrip verifies Set then Get returns the original value.
func TestFileStore_RoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}

	if err := s.Set("auth.access_token", "tok-123"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := s.Get("auth.access_token")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "tok-123" {
		t.Errorf("expected tok-123, got %q", got)
	}
}

// TestFileStore_GetMissing verifies a missing key returns ErrNotFound.
func TestFileStore_GetMissing(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}

	_, err = s.Get("auth.refresh_token")
	if !IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

// TestFileStore_DeleteIdempotent verifies deleting an absent key succeeds.
func TestFileStore_DeleteIdempotent(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}

	if err := s.Set("auth.user", `{"id":"u1"}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Delete("auth.user"); err != nil {
		t.Fatalf("first Delete failed: %v", err)
	}
	if err := s.Delete("auth.user"); err != nil {
		t.Errorf("second Delete should be a no-op, got: %v", err)
	}
	if _, err := s.Get("auth.user"); !IsNotFound(err) {
		t.Errorf("expected ErrNotFound after delete, got: %v", err)
	}
}

// TestFileStore_Permissions verifies key files are written 0600.
func TestFileStore_Permissions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}

	if err := s.Set("auth.access_token", "secret"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "auth.access_token"))
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		t.Errorf("expected mode 0600, got %04o", mode)
	}
}

// TestFileStore_RejectsUnsafeKeys verifies keys with path separators fail.
func TestFileStore_RejectsUnsafeKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}

	for _, key := range []string{"", "../escape", "a/b", `a\b`} {
		if err := s.Set(key, "x"); err == nil {
			t.Errorf("expected error for key %q", key)
		}
	}
}

// TestFileStore_Overwrite verifies Set replaces the previous value.
func TestFileStore_Overwrite(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}

	if err := s.Set("auth.refresh_token", "old"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("auth.refresh_token", "new"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := s.Get("auth.refresh_token")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "new" {
		t.Errorf("expected new, got %q", got)
	}
}

// TestEphemeralStore_RoundTrip verifies basic set/get/delete behavior.
func TestEphemeralStore_RoundTrip(t *testing.T) {
	s := NewEphemeralStore(time.Minute, time.Minute)

	if err := s.Set("oauth.state", "st-abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := s.Get("oauth.state")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "st-abc" {
		t.Errorf("expected st-abc, got %q", got)
	}

	if err := s.Delete("oauth.state"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get("oauth.state"); !IsNotFound(err) {
		t.Errorf("expected ErrNotFound after delete, got: %v", err)
	}
}

// TestEphemeralStore_TTLExpiry verifies an expired entry reads as missing.
func TestEphemeralStore_TTLExpiry(t *testing.T) {
	s := NewEphemeralStore(20*time.Millisecond, time.Minute)

	if err := s.Set("oauth.nonce", "n-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if _, err := s.Get("oauth.nonce"); !IsNotFound(err) {
		t.Errorf("expected ErrNotFound after TTL, got: %v", err)
	}
}
