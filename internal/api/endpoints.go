package api

import (
	"context"
	"fmt"

	"github.com/shopclip/shopclip-cli/internal/models"
)

// OAuthInit asks the backend to start an OAuth handshake with the given
// provider. The response carries the authorization URL to open plus the
// handshake parameters to hold on to until the callback.
func (c *Client) OAuthInit(ctx context.Context, provider, redirectURI string) (*models.OAuthInitResponse, error) {
	req := models.OAuthInitRequest{Provider: provider, RedirectURI: redirectURI}
	var out models.OAuthInitResponse
	if err := c.do(ctx, "POST", "/auth/oauth/init", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OAuthCallback exchanges an authorization code for a token pair and the
// signed-in user.
func (c *Client) OAuthCallback(ctx context.Context, req *models.OAuthCallbackRequest) (*models.AuthResult, error) {
	var out models.AuthResult
	if err := c.do(ctx, "POST", "/auth/oauth/callback", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshToken trades a refresh token for a new token pair. The backend
// rotates refresh tokens, so the returned pair replaces both stored values.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	req := models.RefreshRequest{RefreshToken: refreshToken}
	var out models.TokenPair
	if err := c.do(ctx, "POST", "/auth/refresh", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes a refresh token server-side.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	req := models.LogoutRequest{RefreshToken: refreshToken}
	return c.do(ctx, "POST", "/auth/logout", req, nil)
}

// CurrentUser gets the signed-in user's profile.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, "GET", "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreditBalance gets the remaining generation credits.
func (c *Client) CreditBalance(ctx context.Context) (*models.CreditBalance, error) {
	var out models.CreditBalance
	if err := c.do(ctx, "GET", "/credits/balance", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PresignUpload requests a presigned URL for a direct video upload.
func (c *Client) PresignUpload(ctx context.Context, req *models.PresignRequest) (*models.PresignResponse, error) {
	var out models.PresignResponse
	if err := c.do(ctx, "POST", "/uploads/presign", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateJob submits a listing-generation job for an uploaded video.
func (c *Client) CreateJob(ctx context.Context, req *models.CreateJobRequest) (*models.Job, error) {
	var out models.Job
	if err := c.do(ctx, "POST", "/jobs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JobStatus gets the lightweight status snapshot used by the poll loop.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*models.JobStatusSnapshot, error) {
	var out models.JobStatusSnapshot
	if err := c.do(ctx, "GET", fmt.Sprintf("/jobs/%s/status", jobID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Job gets the full job detail, including the generated listing draft once
// the job has completed.
func (c *Client) Job(ctx context.Context, jobID string) (*models.Job, error) {
	var out models.Job
	if err := c.do(ctx, "GET", fmt.Sprintf("/jobs/%s", jobID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelJob asks the backend to cancel a running job.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	return c.do(ctx, "POST", fmt.Sprintf("/jobs/%s/cancel", jobID), nil, nil)
}

// DownloadURLs gets time-limited URLs for the job's generated artifacts.
func (c *Client) DownloadURLs(ctx context.Context, jobID string) (*models.DownloadURLs, error) {
	var out models.DownloadURLs
	if err := c.do(ctx, "GET", fmt.Sprintf("/jobs/%s/download-urls", jobID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
