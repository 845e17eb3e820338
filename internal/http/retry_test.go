package http

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// TestExecuteWithRetry_Success verifies basic success case returns nil on first attempt.
func TestExecuteWithRetry_Success(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxRetries:   3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
	}

	calls := 0
	err := ExecuteWithRetry(ctx, cfg, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

// TestExecuteWithRetry_FatalError verifies no retry on fatal errors.
func TestExecuteWithRetry_FatalError(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxRetries:   5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
	}

	calls := 0
	err := ExecuteWithRetry(ctx, cfg, func() error {
		calls++
		return fmt.Errorf("upload failed: status 404")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry on fatal), got %d", calls)
	}
}

// TestExecuteWithRetry_RetryableExhaustsAttempts verifies retryable errors use
// the whole attempt budget before giving up.
func TestExecuteWithRetry_RetryableExhaustsAttempts(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxRetries:   3,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}

	calls := 0
	err := ExecuteWithRetry(ctx, cfg, func() error {
		calls++
		return fmt.Errorf("upload failed: status 503")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

// TestExecuteWithRetry_CredentialRefresh verifies a rejected presigned URL
// triggers the refresh hook and the retry then succeeds.
func TestExecuteWithRetry_CredentialRefresh(t *testing.T) {
	ctx := context.Background()

	refreshed := 0
	cfg := Config{
		MaxRetries:   3,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		CredentialRefresh: func(ctx context.Context) error {
			refreshed++
			return nil
		},
	}

	calls := 0
	err := ExecuteWithRetry(ctx, cfg, func() error {
		calls++
		if calls == 1 {
			return fmt.Errorf("upload failed: status 403")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}
	if refreshed != 1 {
		t.Errorf("expected 1 refresh, got %d", refreshed)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

// TestExecuteWithRetry_ContextCancelledDuringSleep verifies retry returns quickly when context cancelled.
func TestExecuteWithRetry_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxRetries:   5,
		InitialDelay: 5 * time.Second, // Long backoff to ensure we'd be sleeping
		MaxDelay:     30 * time.Second,
	}

	calls := 0
	start := time.Now()

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := ExecuteWithRetry(ctx, cfg, func() error {
		calls++
		return fmt.Errorf("connection reset")
	})

	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error, got nil")
	}

	// Should return quickly, not wait for the full backoff
	if elapsed > 1*time.Second {
		t.Errorf("expected quick return after context cancel, but took %v", elapsed)
	}

	if calls < 1 {
		t.Errorf("expected at least 1 call, got %d", calls)
	}
}

// TestClassifyError covers the mapping from error text to retry class.
func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{nil, ErrorTypeSuccess},
		{fmt.Errorf("upload failed: status 403"), ErrorTypeCredential},
		{fmt.Errorf("request signature mismatch"), ErrorTypeCredential},
		{fmt.Errorf("dial tcp: connection refused"), ErrorTypeNetwork},
		{fmt.Errorf("read: i/o timeout"), ErrorTypeNetwork},
		{fmt.Errorf("upload failed: status 503"), ErrorTypeRetryable},
		{fmt.Errorf("upload failed: status 429"), ErrorTypeRetryable},
		{fmt.Errorf("upload failed: status 400"), ErrorTypeFatal},
		{fmt.Errorf("something unexpected"), ErrorTypeFatal},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v): expected %s, got %s",
				tt.err, ErrorTypeName(tt.want), ErrorTypeName(got))
		}
	}
}

// TestCalculateBackoff verifies the jittered value stays within the cap.
func TestCalculateBackoff(t *testing.T) {
	if d := CalculateBackoff(0, time.Second, time.Minute); d != 0 {
		t.Errorf("expected 0 for attempt 0, got %v", d)
	}

	for attempt := 1; attempt < 8; attempt++ {
		d := CalculateBackoff(attempt, 100*time.Millisecond, time.Second)
		if d < 0 || d > time.Second {
			t.Errorf("attempt %d: backoff %v outside [0, 1s]", attempt, d)
		}
	}
}
