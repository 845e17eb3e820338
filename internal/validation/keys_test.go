package validation

import "testing"

// TestValidateKey_Valid verifies legitimate store keys pass.
func TestValidateKey_Valid(t *testing.T) {
	valid := []string{
		"auth.access_token",
		"auth.refresh_token",
		"oauth_state",
		"oauth_provider",
		"a..b", // dots inside a key are not traversal
		"UPPER_case-mixed.123",
	}

	for _, key := range valid {
		if err := ValidateKey(key); err != nil {
			t.Errorf("ValidateKey(%q) error = %v, want nil", key, err)
		}
	}
}

// TestValidateKey_Invalid verifies keys that could escape the key directory
// are rejected.
func TestValidateKey_Invalid(t *testing.T) {
	invalid := []struct {
		key    string
		reason string
	}{
		{"", "empty"},
		{"../escape", "unix separator"},
		{`..\escape`, "windows separator"},
		{"a/b", "embedded separator"},
		{`a\b`, "embedded backslash"},
		{"..", "parent component"},
		{"key\x00name", "null byte"},
	}

	for _, tc := range invalid {
		if err := ValidateKey(tc.key); err == nil {
			t.Errorf("ValidateKey(%q) error = nil, want error (%s)", tc.key, tc.reason)
		}
	}
}
