package http

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// ErrorType represents different classes of errors for retry strategy
type ErrorType int

const (
	// ErrorTypeSuccess indicates the operation succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential indicates the presigned URL was rejected (403,
	// expired signature); a fresh URL is needed before retrying
	ErrorTypeCredential
	// ErrorTypeNetwork indicates connection-level failures (timeouts,
	// connection refused, resets)
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates server-side failures worth retrying
	// (5xx, throttling, 429)
	ErrorTypeRetryable
	// ErrorTypeFatal indicates failures that will not improve on retry
	ErrorTypeFatal
)

// Config holds retry parameters for ExecuteWithRetry
type Config struct {
	// MaxRetries is the total number of attempts (default: 5)
	MaxRetries int
	// InitialDelay is the base delay for exponential backoff (default: 500ms)
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries (default: 15s)
	MaxDelay time.Duration
	// CredentialRefresh is an optional hook invoked when the target rejects
	// the credential; for uploads it requests a fresh presigned URL
	CredentialRefresh func(context.Context) error
	// OnRetry is an optional callback invoked before each retry attempt
	OnRetry func(attempt int, err error, errorType ErrorType)
}

// DefaultConfig returns a Config with sensible defaults for uploads
func DefaultConfig() Config {
	return Config{
		MaxRetries:   5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     15 * time.Second,
	}
}

// ClassifyError determines the error type for retry strategy. Upload failures
// arrive as transport errors or wrapped "status NNN" errors, so matching is
// on the error text.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}

	errStr := strings.ToLower(err.Error())

	// Rejected or expired presigned URLs
	if strings.Contains(errStr, "status 403") ||
		strings.Contains(errStr, "expired") ||
		strings.Contains(errStr, "access denied") ||
		strings.Contains(errStr, "signature") {
		return ErrorTypeCredential
	}

	// Connection-level failures
	if strings.Contains(errStr, "tls handshake timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") {
		return ErrorTypeNetwork
	}

	// Server-side failures and throttling
	if strings.Contains(errStr, "status 500") ||
		strings.Contains(errStr, "status 502") ||
		strings.Contains(errStr, "status 503") ||
		strings.Contains(errStr, "status 504") ||
		strings.Contains(errStr, "status 429") ||
		strings.Contains(errStr, "status 408") ||
		strings.Contains(errStr, "throttl") ||
		strings.Contains(errStr, "slowdown") ||
		strings.Contains(errStr, "server busy") ||
		strings.Contains(errStr, "service unavailable") {
		return ErrorTypeRetryable
	}

	// Remaining 4xx and anything unrecognized: retrying will not help
	return ErrorTypeFatal
}

// CalculateBackoff returns exponential backoff duration with full jitter.
// Full jitter spreads simultaneous retries so a blip does not turn into a
// synchronized stampede against the storage host.
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay {
		base = maxDelay
	}

	return time.Duration(rand.Int63n(int64(base)))
}

// ExecuteWithRetry runs an operation with classification-driven retry.
//
// Retry strategy:
//   - Credential errors: invoke CredentialRefresh, then retry
//   - Network/Retryable errors: exponential backoff with full jitter
//   - Fatal errors: return immediately without retry
//   - Context cancellation: return immediately, including mid-backoff
func ExecuteWithRetry(ctx context.Context, config Config, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err
		errType := ClassifyError(err)

		switch errType {
		case ErrorTypeFatal:
			return err

		case ErrorTypeCredential:
			if attempt < config.MaxRetries-1 {
				if config.CredentialRefresh == nil {
					return fmt.Errorf("credential rejected and no refresh available: %w", err)
				}
				if config.OnRetry != nil {
					config.OnRetry(attempt+1, err, errType)
				}
				if refreshErr := config.CredentialRefresh(ctx); refreshErr != nil {
					return fmt.Errorf("credential refresh failed: %w", refreshErr)
				}
				continue
			}
			return fmt.Errorf("credential error after %d attempts: %w", config.MaxRetries, err)

		case ErrorTypeNetwork, ErrorTypeRetryable:
			if attempt < config.MaxRetries-1 {
				backoff := CalculateBackoff(attempt, config.InitialDelay, config.MaxDelay)
				if config.OnRetry != nil {
					config.OnRetry(attempt+1, err, errType)
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}
				continue
			}
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries, lastErr)
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
