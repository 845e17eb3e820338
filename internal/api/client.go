package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopclip/shopclip-cli/internal/config"
	"github.com/shopclip/shopclip-cli/internal/constants"
	"github.com/shopclip/shopclip-cli/internal/http"
	"github.com/shopclip/shopclip-cli/internal/logging"
	"github.com/shopclip/shopclip-cli/internal/ratelimit"
	"github.com/shopclip/shopclip-cli/internal/version"
)

// TokenSource supplies the bearer token attached to authenticated requests.
// A nil source (or an empty token) leaves the request unauthenticated.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// RefreshableTokenSource is a TokenSource that can force a refresh after the
// backend rejects its current token. When the source implements this, the
// client retries a 401 exactly once with the refreshed token.
type RefreshableTokenSource interface {
	TokenSource
	ForceRefresh(ctx context.Context) (string, error)
}

// retryLogger adapts the structured logger to retryablehttp's LeveledLogger.
// Per-attempt info and debug chatter is dropped.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Msgf("retry: %s %v", msg, keysAndValues)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Msgf("retry: %s %v", msg, keysAndValues)
}

// Client represents the ShopClip backend client. All methods apply the
// per-request timeout, rate limiting, retry policy, and error taxonomy, and
// are safe for concurrent use.
type Client struct {
	httpClient     *nethttp.Client
	config         *config.Config
	baseURL        string
	tokens         TokenSource
	limiter        *ratelimit.RateLimiter
	logger         *logging.Logger
	requestTimeout time.Duration
}

// NewClient creates a backend client. tokens may be nil for the
// unauthenticated client used by the auth endpoints themselves.
func NewClient(cfg *config.Config, tokens TokenSource, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, errors.New("API base URL is empty")
	}
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}

	// Configure HTTP client with proxy support
	httpClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	// Wrap with retry logic
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryBaseDelay
	retryClient.RetryWaitMax = constants.APIRetryMaxDelay
	retryClient.CheckRetry = retryPolicy
	retryClient.Backoff = retryBackoff
	// Terminal responses come back intact so the error body can be parsed.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &retryLogger{logger: logger}

	return &Client{
		httpClient:     retryClient.StandardClient(),
		config:         cfg,
		baseURL:        strings.TrimSuffix(cfg.APIBaseURL, "/"),
		tokens:         tokens,
		limiter:        ratelimit.NewAPIRateLimiter(),
		logger:         logger,
		requestTimeout: cfg.RequestTimeout,
	}, nil
}

// GetConfig returns the configuration used by this client. The upload module
// uses it to configure its own HTTP client with the same proxy settings.
func (c *Client) GetConfig() *config.Config {
	return c.config
}

var (
	redirectsErrorRe = regexp.MustCompile(`stopped after \d+ redirects\z`)
	schemeErrorRe    = regexp.MustCompile(`unsupported protocol scheme`)
)

// retryPolicy decides which failures earn another attempt. A fired deadline
// or cancellation is terminal. 408, 429, and all 5xx responses retry; every
// other 4xx is terminal. Transport failures retry unless permanent (redirect
// loop, bad scheme, certificate rejection).
func retryPolicy(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil {
		if v, ok := err.(*url.Error); ok {
			if redirectsErrorRe.MatchString(v.Error()) {
				return false, v
			}
			if schemeErrorRe.MatchString(v.Error()) {
				return false, v
			}
			var certErr *tls.CertificateVerificationError
			if errors.As(v.Err, &certErr) {
				return false, v
			}
		}
		return true, nil
	}

	switch {
	case resp.StatusCode == nethttp.StatusRequestTimeout,
		resp.StatusCode == nethttp.StatusTooManyRequests:
		return true, nil
	case resp.StatusCode >= 500:
		return true, nil
	default:
		return false, nil
	}
}

// retryBackoff waits base * 2^attempt, capped at max. No jitter: with the
// defaults the second attempt waits 1s and the third 2s.
func retryBackoff(base, max time.Duration, attemptNum int, _ *nethttp.Response) time.Duration {
	wait := base << uint(attemptNum)
	if wait <= 0 || wait > max {
		return max
	}
	return wait
}

// doRequest performs a single HTTP call (including transport retries) with
// authentication and rate limiting. Transport failures come back classified;
// HTTP responses come back as-is for the caller to interpret.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*nethttp.Response, error) {
	// Wait for rate limiter to allow request
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "shopclip-cli/"+version.Version)
	req.Header.Set("X-Request-ID", requestID)

	if c.tokens != nil {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Str("request_id", requestID).
			Err(err).
			Msg("api call failed")
		return nil, c.classifyTransportError(err)
	}
	return resp, nil
}

// classifyTransportError maps a failed round trip onto the error taxonomy.
// Caller-initiated cancellation passes through untyped.
func (c *Client) classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("request timed out after %s", c.requestTimeout),
			cause:   err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &Error{
		Kind:    KindNetwork,
		Message: "could not reach the server",
		cause:   err,
	}
}

// do runs a JSON request under the per-request timeout and decodes the
// response into out (out may be nil for endpoints with no response body).
// A 401 on an authenticated call triggers one forced token refresh and a
// single repeat of the request.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	if resp.StatusCode == nethttp.StatusUnauthorized && c.tokens != nil {
		if refresher, ok := c.tokens.(RefreshableTokenSource); ok {
			resp.Body.Close()
			c.logger.Debug().Str("path", path).Msg("got 401, forcing token refresh")
			if _, rerr := refresher.ForceRefresh(ctx); rerr != nil {
				return rerr
			}
			resp, err = c.doRequest(ctx, method, path, body)
			if err != nil {
				return err
			}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := responseError(resp)
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", apiErr.Status).
			Str("kind", string(apiErr.Kind)).
			Msg("api request rejected")
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty 2xx body decodes into nothing.
			return nil
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
