package cli

import (
	"errors"
	"strings"
	"testing"
)

// TestParseRedirect verifies code and state extraction from what users
// actually paste: full URLs, bare query strings, and denial responses.
func TestParseRedirect(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCode  string
		wantState string
	}{
		{
			name:      "full redirect URL",
			input:     "shopclip://oauth/callback?code=abc123&state=st-9",
			wantCode:  "abc123",
			wantState: "st-9",
		},
		{
			name:      "https redirect URL",
			input:     "https://app.shopclip.io/oauth/callback?state=st-9&code=abc123",
			wantCode:  "abc123",
			wantState: "st-9",
		},
		{
			name:      "bare query string",
			input:     "code=abc123&state=st-9",
			wantCode:  "abc123",
			wantState: "st-9",
		},
		{
			name:      "fragment after query is ignored",
			input:     "shopclip://oauth/callback?code=abc123&state=st-9#_",
			wantCode:  "abc123",
			wantState: "st-9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, state, err := parseRedirect(tt.input)
			if err != nil {
				t.Fatalf("parseRedirect(%q) error = %v, want nil", tt.input, err)
			}
			if code != tt.wantCode || state != tt.wantState {
				t.Errorf("parseRedirect(%q) = (%q, %q), want (%q, %q)", tt.input, code, state, tt.wantCode, tt.wantState)
			}
		})
	}
}

// TestParseRedirectRejectsGarbage verifies incomplete input is rejected with
// the retryable error.
func TestParseRedirectRejectsGarbage(t *testing.T) {
	for _, input := range []string{
		"",
		"shopclip://oauth/callback",
		"shopclip://oauth/callback?code=abc123",
		"shopclip://oauth/callback?state=st-9",
		"just some words",
	} {
		if _, _, err := parseRedirect(input); !errors.Is(err, errBadRedirect) {
			t.Errorf("parseRedirect(%q) error = %v, want errBadRedirect", input, err)
		}
	}
}

// TestParseRedirectProviderDenial verifies an error response from the
// provider is reported with its description, not as a paste mistake.
func TestParseRedirectProviderDenial(t *testing.T) {
	_, _, err := parseRedirect("shopclip://oauth/callback?error=access_denied&error_description=user+declined")
	if err == nil {
		t.Fatal("parseRedirect() error = nil, want denial error")
	}
	if errors.Is(err, errBadRedirect) {
		t.Error("denial must not be classified as a paste mistake")
	}
	if !strings.Contains(err.Error(), "user declined") {
		t.Errorf("denial error %q does not carry the provider description", err)
	}
}

// TestFormatPrice verifies cents render as a decimal amount.
func TestFormatPrice(t *testing.T) {
	tests := []struct {
		cents    int64
		currency string
		want     string
	}{
		{2499, "USD", "24.99 USD"},
		{500, "EUR", "5.00 EUR"},
		{99, "", "0.99 USD"},
	}

	for _, tt := range tests {
		if got := formatPrice(tt.cents, tt.currency); got != tt.want {
			t.Errorf("formatPrice(%d, %q) = %q, want %q", tt.cents, tt.currency, got, tt.want)
		}
	}
}
