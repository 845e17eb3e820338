package models

import "time"

// Remote job status values reported by GET /jobs/{id}/status.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

// PresignRequest is the body for POST /uploads/presign.
type PresignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// PresignResponse carries the single-use upload target. The URL itself is the
// credential; the PUT must not attach any Authorization header.
type PresignResponse struct {
	UploadURL string    `json:"uploadUrl"`
	ObjectKey string    `json:"objectKey"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// ListingOptions tunes how the backend writes the generated listing.
type ListingOptions struct {
	TitleHint string `json:"titleHint,omitempty"`
	Tone      string `json:"tone,omitempty"`     // "casual", "professional", "playful"
	Language  string `json:"language,omitempty"` // BCP 47 tag, backend default when empty
	Category  string `json:"category,omitempty"`
}

// CreateJobRequest is the body for POST /jobs, referencing the uploaded video
// by its storage object key.
type CreateJobRequest struct {
	ObjectKey string         `json:"objectKey"`
	Options   ListingOptions `json:"options,omitempty"`
}

// Job represents a listing-generation job as returned by POST /jobs and
// GET /jobs/{id}.
type Job struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"`
	Progress  float64       `json:"progress,omitempty"` // 0.0 to 1.0
	Error     string        `json:"error,omitempty"`
	Listing   *ListingDraft `json:"listing,omitempty"` // present once completed
	CreatedAt time.Time     `json:"createdAt,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt,omitempty"`
}

// JobStatusSnapshot is the lightweight polling payload from
// GET /jobs/{id}/status.
type JobStatusSnapshot struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress,omitempty"`
	Message  string  `json:"message,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// ListingDraft is the generated e-commerce listing copy.
type ListingDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Bullets     []string `json:"bullets,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	PriceCents  int64    `json:"priceCents,omitempty"`
	Currency    string   `json:"currency,omitempty"`
}

// DownloadURLs carries time-limited links to the generated artifacts from
// GET /jobs/{id}/download-urls.
type DownloadURLs struct {
	Images    []string  `json:"images,omitempty"`
	Clips     []string  `json:"clips,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// IsTerminalJobStatus reports whether a remote status will never change again.
func IsTerminalJobStatus(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}
