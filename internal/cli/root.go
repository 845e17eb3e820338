// Package cli provides the command-line interface for shopclip.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shopclip/shopclip-cli/internal/logging"
	"github.com/shopclip/shopclip-cli/internal/version"
)

var (
	// Global flags
	cfgFile    string
	apiBaseURL string
	verbose    bool
	jsonOutput bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shopclip",
		Short: "Turn a product video into a ready-to-publish listing",
		Long: `ShopClip ` + version.Version + ` - record your product, get a listing.

Upload a short product video and ShopClip generates a complete e-commerce
listing: title, description, bullet points, tags, product images, and
short clips ready for your storefront.

Typical session:
  shopclip auth login
  shopclip create demo.mp4 --tone casual
  shopclip jobs results <job-id>`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if verbose {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "base-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()

	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// First signal cancels the context so commands can clean up; a second
	// one exits immediately.
	go func() {
		first := true
		for sig := range sigChan {
			if sig == nil {
				continue
			}
			if first {
				first = false
				fmt.Fprintf(os.Stderr, "\nReceived %v, finishing up... (press again to force quit)\n", sig)
				cancelFunc()
				continue
			}
			fmt.Fprintln(os.Stderr, "Forced exit.")
			os.Exit(1)
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newCreateCmd())
	rootCmd.AddCommand(newJobsCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context is cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		// Fallback to background context if called before Execute()
		return context.Background()
	}
	return rootContext
}
