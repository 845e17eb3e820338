// Package upload implements the presigned video upload used by listing runs.
//
// The flow is deliberately simple: the backend hands out a short-lived
// presigned URL, and the file body goes straight to storage with a raw PUT.
// The URL itself is the credential, so no Authorization header is ever
// attached. When storage rejects an expired URL mid-retry, a fresh one is
// requested through the Presigner hook and the attempt replays from the
// start of the file.
package upload

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopclip/shopclip-cli/internal/config"
	"github.com/shopclip/shopclip-cli/internal/constants"
	"github.com/shopclip/shopclip-cli/internal/http"
	"github.com/shopclip/shopclip-cli/internal/logging"
	"github.com/shopclip/shopclip-cli/internal/models"
	"github.com/shopclip/shopclip-cli/internal/progress"
)

// Presigner requests a fresh presigned upload URL for the same object.
// Invoked when storage rejects the current URL (expired signature, 403).
type Presigner func(ctx context.Context) (*models.PresignResponse, error)

// Describe validates a local video file and builds the presign request for it.
func Describe(localPath string) (*models.PresignRequest, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file does not exist: %s", localPath)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("not a file: %s", localPath)
	}

	if info.Size() < constants.MinUploadSize {
		return nil, fmt.Errorf("file too small (%d bytes): a real recording is at least %d bytes", info.Size(), constants.MinUploadSize)
	}
	if info.Size() > constants.MaxUploadSize {
		return nil, fmt.Errorf("file too large (%d bytes): the limit is %d bytes", info.Size(), constants.MaxUploadSize)
	}

	contentType, err := contentTypeForFile(localPath)
	if err != nil {
		return nil, err
	}

	return &models.PresignRequest{
		FileName:    filepath.Base(localPath),
		ContentType: contentType,
		SizeBytes:   info.Size(),
	}, nil
}

// contentTypeForFile maps a video file extension to its MIME type.
func contentTypeForFile(localPath string) (string, error) {
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".mp4":
		return "video/mp4", nil
	case ".mov":
		return "video/quicktime", nil
	case ".webm":
		return "video/webm", nil
	default:
		return "", fmt.Errorf("unsupported video format %q (supported: .mp4, .mov, .webm)", filepath.Ext(localPath))
	}
}

// Uploader sends video files to presigned storage URLs.
type Uploader struct {
	client *nethttp.Client
	logger *logging.Logger
}

// NewUploader creates an uploader with a transport tuned for large bodies.
func NewUploader(cfg *config.Config, logger *logging.Logger) (*Uploader, error) {
	client, err := http.CreateUploadClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload client: %w", err)
	}
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return &Uploader{client: client, logger: logger}, nil
}

// Upload PUTs the file at localPath to the presigned URL, streaming progress
// through the reporter. Transient storage failures retry with backoff; a
// rejected URL is renewed through the presigner and the body replays from
// offset zero.
func (u *Uploader) Upload(ctx context.Context, localPath string, presign *models.PresignResponse, renew Presigner, reporter progress.Reporter) error {
	if presign == nil || presign.UploadURL == "" {
		return fmt.Errorf("no upload URL")
	}
	if reporter == nil {
		reporter = progress.NewNoOpProgress()
	}

	contentType, err := contentTypeForFile(localPath)
	if err != nil {
		return err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	size := info.Size()

	reporter.Start(size, fmt.Sprintf("uploading %s", filepath.Base(localPath)))

	// Retries replay against whatever URL is current; the renew hook swaps
	// it when storage rejects the old signature.
	currentURL := presign.UploadURL

	retryConfig := http.Config{
		MaxRetries:   constants.UploadMaxRetries,
		InitialDelay: constants.UploadRetryInitialDelay,
		MaxDelay:     constants.UploadRetryMaxDelay,
		OnRetry: func(attempt int, err error, errType http.ErrorType) {
			u.logger.Warn().Msgf("upload retry %d after %s error: %v", attempt, http.ErrorTypeName(errType), err)
		},
	}
	if renew != nil {
		retryConfig.CredentialRefresh = func(ctx context.Context) error {
			fresh, renewErr := renew(ctx)
			if renewErr != nil {
				return fmt.Errorf("failed to renew upload URL: %w", renewErr)
			}
			if fresh == nil || fresh.UploadURL == "" {
				return fmt.Errorf("renewed presign response carries no upload URL")
			}
			currentURL = fresh.UploadURL
			u.logger.Debug().Msg("upload URL renewed")
			return nil
		}
	}

	err = http.ExecuteWithRetry(ctx, retryConfig, func() error {
		return u.putOnce(ctx, file, size, currentURL, contentType, reporter)
	})
	if err != nil {
		reporter.Error(err)
		return err
	}

	reporter.Finish()
	u.logger.Debug().Msgf("upload complete: %s (%d bytes)", filepath.Base(localPath), size)
	return nil
}

// putOnce performs a single PUT attempt. Every attempt rewinds to the start
// of the file so a partial transfer never leaves a truncated object behind.
func (u *Uploader) putOnce(ctx context.Context, file *os.File, size int64, uploadURL, contentType string, reporter progress.Reporter) error {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind file: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, constants.UploadRequestTimeout)
	defer cancel()

	body := progress.NewProgressReader(file, size, reporter)
	req, err := nethttp.NewRequestWithContext(attemptCtx, nethttp.MethodPut, uploadURL, body)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}

	// ContentLength is set explicitly so the transport does not fall back to
	// chunked encoding, which presigned URLs reject.
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("upload failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
