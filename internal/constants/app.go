package constants

import (
	"time"
)

// Session and token lifecycle
const (
	// TokenExpiryBuffer - tokens within this window of their expiry are treated
	// as already expired and refreshed before use (60 seconds)
	// Avoids races where a token passes the local check but is rejected by the
	// backend moments later.
	TokenExpiryBuffer = 60 * time.Second

	// HandshakeTTL - lifetime of the OAuth handshake state (state, nonce,
	// code verifier) in the ephemeral store (10 minutes)
	// A redirect arriving after this window is treated as expired.
	HandshakeTTL = 10 * time.Minute

	// HandshakeCleanupInterval - janitor sweep interval for expired handshake
	// entries (1 minute)
	HandshakeCleanupInterval = 1 * time.Minute
)

// API client retry configuration
const (
	// APIMaxRetries - retries after the initial attempt for retryable failures
	// (2 retries = 3 total attempts)
	APIMaxRetries = 2

	// APIRetryBaseDelay - base delay for exponential backoff (1 second)
	// Delays grow as base * 2^attempt: 1s before the second attempt, 2s before
	// the third. Deterministic, no jitter.
	APIRetryBaseDelay = 1 * time.Second

	// APIRetryMaxDelay - ceiling on a single backoff sleep (30 seconds)
	APIRetryMaxDelay = 30 * time.Second

	// APIRequestTimeout - default timeout covering one API call including its
	// retries (30 seconds). A timeout is terminal and never retried.
	APIRequestTimeout = 30 * time.Second
)

// API client rate limiting
const (
	// APIRatePerSec - client-side request rate toward the backend (8 req/sec)
	// Stays well under the backend's per-user throttle so polling and
	// interactive commands never trip a hard 429 lockout.
	APIRatePerSec = 8.0

	// APIBurstCapacity - token bucket burst size (30 tokens)
	// Covers a cold start (restore, profile, balance, presign, create) without
	// waiting, then settles to APIRatePerSec.
	APIBurstCapacity = 30.0
)

// Job polling
const (
	// JobPollInterval - fixed interval between status polls (3 seconds)
	// The first poll fires immediately when processing starts.
	JobPollInterval = 3 * time.Second

	// MaxPollAttempts - ceiling on status polls for a single run (200)
	// At the default interval this bounds a run to roughly ten minutes of
	// processing before it is declared timed out.
	MaxPollAttempts = 200

	// ConsecutiveFailureLimit - poll errors in a row before the run is
	// declared lost (5). Any successful poll resets the counter.
	ConsecutiveFailureLimit = 5
)

// Upload limits and retry
const (
	// MinUploadSize - smallest acceptable video file (1 KiB)
	// Anything smaller is almost certainly a truncated or empty recording.
	MinUploadSize = 1024

	// MaxUploadSize - largest acceptable video file (500 MiB)
	MaxUploadSize = 500 * 1024 * 1024

	// UploadMaxRetries - attempts for the presigned PUT (5)
	UploadMaxRetries = 5

	// UploadRetryInitialDelay - base delay for upload retry backoff (500ms)
	UploadRetryInitialDelay = 500 * time.Millisecond

	// UploadRetryMaxDelay - maximum delay between upload retries (15s)
	UploadRetryMaxDelay = 15 * time.Second

	// UploadRequestTimeout - timeout for a single PUT attempt (10 minutes)
	// Sized for MaxUploadSize on slow residential uplinks.
	UploadRequestTimeout = 10 * time.Minute
)

// HTTP transport
const (
	// HTTPDialTimeout - timeout for establishing a connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for the dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for the TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for a 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second
)

// Event system
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// UI updates
const (
	// ProgressRefreshRate - refresh interval for terminal progress bars (300ms)
	ProgressRefreshRate = 300 * time.Millisecond
)
