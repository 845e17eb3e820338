// Package cli provides the create command, the main entry point of the tool.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shopclip/shopclip-cli/internal/jobs"
	"github.com/shopclip/shopclip-cli/internal/models"
	"github.com/shopclip/shopclip-cli/internal/progress"
	"github.com/shopclip/shopclip-cli/internal/upload"
	"github.com/shopclip/shopclip-cli/internal/util/sanitize"
)

// newCreateCmd creates the 'create' command.
func newCreateCmd() *cobra.Command {
	var (
		titleHint string
		tone      string
		language  string
		category  string
		noWait    bool
	)

	cmd := &cobra.Command{
		Use:   "create <video>",
		Short: "Upload a product video and generate a listing",
		Args:  cobra.ExactArgs(1),
		Long: `Upload a recorded product video and generate an e-commerce listing.

The video is uploaded, a generation job is created, and the command
follows the job until the listing is ready. Supported formats are
.mp4, .mov, and .webm.

Example:
  # Generate a listing and wait for the result
  shopclip create demo.mp4

  # Nudge the generated copy
  shopclip create demo.mp4 --title-hint "ceramic pour-over mug" --tone casual

  # Start the job and return immediately
  shopclip create demo.mp4 --no-wait`,
		RunE: func(cmd *cobra.Command, args []string) error {
			videoPath := args[0]

			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := GetContext()

			if _, err := a.requireSession(); err != nil {
				return err
			}

			uploader, err := upload.NewUploader(a.cfg, GetLogger())
			if err != nil {
				return err
			}

			// Hints are free text and frequently pasted, so scrub them.
			opts := models.ListingOptions{
				TitleHint: sanitize.Field(titleHint),
				Tone:      tone,
				Language:  language,
				Category:  sanitize.Field(category),
			}

			if noWait {
				return createDetached(ctx, a, uploader, videoPath, opts)
			}

			orch := jobs.NewOrchestrator(a.api, uploader, a.bus, GetLogger(), a.cfg)

			display := progress.NewRunDisplay(a.bus)
			display.Start()

			if err := orch.Start(ctx, videoPath, opts); err != nil {
				display.Stop()
				return err
			}

			// Ctrl+C ends the run and requests a best-effort remote cancel.
			// The cancel gets its own context; the signal already killed ctx.
			watchDone := make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					orch.Cancel(cancelCtx)
				case <-watchDone:
				}
			}()

			orch.Wait()
			close(watchDone)
			display.Stop()

			snap := orch.Snapshot()
			switch snap.State {
			case jobs.StateCompleted:
				return printRunResult(&snap)
			case jobs.StateCancelled:
				return fmt.Errorf("run cancelled")
			default:
				if snap.Message != "" {
					return fmt.Errorf("run failed: %s", snap.Message)
				}
				return fmt.Errorf("run failed")
			}
		},
	}

	cmd.Flags().StringVar(&titleHint, "title-hint", "", "Product name hint for the generated title")
	cmd.Flags().StringVar(&tone, "tone", "", "Listing tone: casual, professional, or playful")
	cmd.Flags().StringVar(&language, "language", "", "Listing language as a BCP 47 tag (e.g. de-DE)")
	cmd.Flags().StringVar(&category, "category", "", "Product category hint")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Create the job and return without waiting")

	return cmd
}

// createDetached uploads the video and creates the job without following it.
func createDetached(ctx context.Context, a *app, uploader *upload.Uploader, videoPath string, opts models.ListingOptions) error {
	presignReq, err := upload.Describe(videoPath)
	if err != nil {
		return err
	}

	presign, err := a.api.PresignUpload(ctx, presignReq)
	if err != nil {
		return fmt.Errorf("could not start upload: %w", err)
	}

	renew := func(ctx context.Context) (*models.PresignResponse, error) {
		return a.api.PresignUpload(ctx, presignReq)
	}
	if err := uploader.Upload(ctx, videoPath, presign, renew, progress.NewCLIProgress()); err != nil {
		return err
	}

	job, err := a.api.CreateJob(ctx, &models.CreateJobRequest{ObjectKey: presign.ObjectKey, Options: opts})
	if err != nil {
		return fmt.Errorf("could not create processing job: %w", err)
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(map[string]string{"jobId": job.ID, "status": job.Status})
	}

	fmt.Printf("✓ Upload complete, job %s is processing\n", job.ID)
	fmt.Printf("  Check on it with: shopclip jobs status %s\n", job.ID)
	return nil
}

// printRunResult renders the finished run: the generated listing plus the
// artifact download links.
func printRunResult(snap *jobs.Snapshot) error {
	if jsonOutput {
		out := map[string]interface{}{
			"jobId":  snap.JobID,
			"status": string(snap.State),
		}
		if snap.Job != nil {
			out["listing"] = snap.Job.Listing
		}
		if snap.DownloadURLs != nil {
			out["downloads"] = snap.DownloadURLs
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	fmt.Println()
	if snap.Job != nil && snap.Job.Listing != nil {
		printListing(snap.Job.Listing)
	} else {
		fmt.Printf("Job %s completed.\n", snap.JobID)
	}
	if snap.DownloadURLs != nil {
		fmt.Println()
		printDownloads(snap.DownloadURLs)
	}
	fmt.Println()
	fmt.Printf("Fetch these again later with: shopclip jobs results %s\n", snap.JobID)
	return nil
}

// printListing renders the generated listing copy.
func printListing(listing *models.ListingDraft) {
	fmt.Printf("Title: %s\n", listing.Title)
	if listing.PriceCents > 0 {
		fmt.Printf("Suggested price: %s\n", formatPrice(listing.PriceCents, listing.Currency))
	}
	if listing.Description != "" {
		fmt.Printf("\n%s\n", listing.Description)
	}
	if len(listing.Bullets) > 0 {
		fmt.Println()
		for _, b := range listing.Bullets {
			fmt.Printf("  • %s\n", b)
		}
	}
	if tags := sanitize.Tags(listing.Tags); len(tags) > 0 {
		fmt.Printf("\nTags: %s\n", strings.Join(tags, ", "))
	}
}

// printDownloads renders the artifact links with their expiry.
func printDownloads(urls *models.DownloadURLs) {
	fmt.Println("Generated assets:")
	if urls.Thumbnail != "" {
		fmt.Printf("  Thumbnail: %s\n", urls.Thumbnail)
	}
	for i, u := range urls.Images {
		fmt.Printf("  Image %d:   %s\n", i+1, u)
	}
	for i, u := range urls.Clips {
		fmt.Printf("  Clip %d:    %s\n", i+1, u)
	}
	if !urls.ExpiresAt.IsZero() {
		fmt.Printf("  (links expire %s)\n", urls.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
}

// formatPrice renders integer cents as a decimal amount.
func formatPrice(cents int64, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}
