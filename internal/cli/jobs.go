// Package cli provides job inspection commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shopclip/shopclip-cli/internal/models"
)

// newJobsCmd creates the 'jobs' command group.
func newJobsCmd() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage listing-generation jobs",
		Long:  `Commands for checking on jobs started with 'shopclip create'.`,
	}

	jobsCmd.AddCommand(newJobsStatusCmd())
	jobsCmd.AddCommand(newJobsResultsCmd())
	jobsCmd.AddCommand(newJobsCancelCmd())

	return jobsCmd
}

// newJobsStatusCmd creates the 'jobs status' command.
func newJobsStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the current status of a job",
		Args:  cobra.ExactArgs(1),
		Long: `Show the current processing status of a job.

Example:
  shopclip jobs status 9f2c1a
  shopclip jobs status 9f2c1a --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]

			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := GetContext()

			if _, err := a.requireSession(); err != nil {
				return err
			}

			status, err := a.api.JobStatus(ctx, jobID)
			if err != nil {
				return fmt.Errorf("failed to get job status: %w", err)
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(status)
			}

			fmt.Printf("Job %s\n", jobID)
			fmt.Printf("  Status:   %s\n", status.Status)
			if status.Progress > 0 {
				fmt.Printf("  Progress: %.0f%%\n", status.Progress*100)
			}
			if status.Message != "" {
				fmt.Printf("  Step:     %s\n", status.Message)
			}
			if status.Error != "" {
				fmt.Printf("  Error:    %s\n", status.Error)
			}
			if status.Status == models.JobStatusCompleted {
				fmt.Printf("\nFetch the listing with: shopclip jobs results %s\n", jobID)
			}

			return nil
		},
	}

	return cmd
}

// newJobsResultsCmd creates the 'jobs results' command.
func newJobsResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results <job-id>",
		Short: "Show the generated listing and download links",
		Args:  cobra.ExactArgs(1),
		Long: `Show the generated listing of a completed job along with
time-limited download links for the produced images and clips.

Example:
  shopclip jobs results 9f2c1a`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]

			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := GetContext()

			if _, err := a.requireSession(); err != nil {
				return err
			}

			job, err := a.api.Job(ctx, jobID)
			if err != nil {
				return fmt.Errorf("failed to get job: %w", err)
			}
			if job.Status != models.JobStatusCompleted {
				if job.Error != "" {
					return fmt.Errorf("job %s is %s: %s", jobID, job.Status, job.Error)
				}
				return fmt.Errorf("job %s is not completed yet (status %s)", jobID, job.Status)
			}

			urls, err := a.api.DownloadURLs(ctx, jobID)
			if err != nil {
				return fmt.Errorf("failed to get download links: %w", err)
			}

			if jsonOutput {
				out := map[string]interface{}{
					"jobId":     job.ID,
					"status":    job.Status,
					"listing":   job.Listing,
					"downloads": urls,
				}
				return json.NewEncoder(os.Stdout).Encode(out)
			}

			if job.Listing != nil {
				printListing(job.Listing)
			}
			fmt.Println()
			printDownloads(urls)

			return nil
		},
	}

	return cmd
}

// newJobsCancelCmd creates the 'jobs cancel' command.
func newJobsCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		Long: `Ask the backend to cancel a job that is still processing.

Example:
  shopclip jobs cancel 9f2c1a`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]

			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := GetContext()

			if _, err := a.requireSession(); err != nil {
				return err
			}

			if err := a.api.CancelJob(ctx, jobID); err != nil {
				return fmt.Errorf("failed to cancel job: %w", err)
			}

			fmt.Printf("✓ Cancel requested for job %s\n", jobID)
			return nil
		},
	}

	return cmd
}
