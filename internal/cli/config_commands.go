// Package cli provides configuration management commands.
package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shopclip/shopclip-cli/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage shopclip configuration",
		Long: `Configuration management commands for shopclip.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for shopclip.

The configuration is saved to ~/.config/shopclip/config.ini. Credentials
are not part of it; those are stored separately by 'shopclip auth login'.

Use --force to overwrite an existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := GetLogger()

			configPath := cfgFile
			if configPath == "" {
				var err error
				configPath, err = config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("failed to resolve config path: %w", err)
				}
			}

			if !force {
				if _, err := os.Stat(configPath); err == nil {
					fmt.Printf("Configuration already exists at: %s\n", configPath)
					fmt.Println("Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Println("ShopClip Configuration Setup")
			fmt.Println("============================")
			fmt.Println()

			reader := bufio.NewReader(os.Stdin)
			cfg := config.New()

			fmt.Printf("API Base URL [%s]: ", cfg.APIBaseURL)
			input, _ := reader.ReadString('\n')
			if v := strings.TrimSpace(input); v != "" {
				cfg.APIBaseURL = v
			}

			fmt.Printf("OAuth provider (google, apple) [%s]: ", cfg.Provider)
			input, _ = reader.ReadString('\n')
			if v := strings.TrimSpace(input); v != "" {
				cfg.Provider = v
			}

			fmt.Println()
			fmt.Println("Job Polling (press Enter for defaults)")
			fmt.Println("--------------------------------------")

			fmt.Printf("Poll interval in seconds [%d]: ", int(cfg.PollInterval/time.Second))
			input, _ = reader.ReadString('\n')
			if v := strings.TrimSpace(input); v != "" {
				if n, err := strconv.Atoi(v); err == nil && n > 0 {
					cfg.PollInterval = time.Duration(n) * time.Second
				}
			}

			fmt.Printf("Max poll attempts [%d]: ", cfg.MaxPollAttempts)
			input, _ = reader.ReadString('\n')
			if v := strings.TrimSpace(input); v != "" {
				if n, err := strconv.Atoi(v); err == nil && n > 0 {
					cfg.MaxPollAttempts = n
				}
			}

			fmt.Println()
			fmt.Print("Configure proxy? [y/N]: ")
			input, _ = reader.ReadString('\n')
			proxyAnswer := strings.TrimSpace(strings.ToLower(input))

			if proxyAnswer == "y" || proxyAnswer == "yes" {
				fmt.Println()
				fmt.Println("Proxy Configuration")
				fmt.Println("-------------------")
				fmt.Println("Proxy modes: no-proxy, system, basic, ntlm")
				fmt.Print("Proxy mode [system]: ")
				input, _ = reader.ReadString('\n')
				cfg.ProxyMode = strings.TrimSpace(input)
				if cfg.ProxyMode == "" {
					cfg.ProxyMode = "system"
				}

				if cfg.ProxyMode != "no-proxy" && cfg.ProxyMode != "system" {
					fmt.Print("Proxy host: ")
					input, _ = reader.ReadString('\n')
					cfg.ProxyHost = strings.TrimSpace(input)

					fmt.Print("Proxy port [8080]: ")
					input, _ = reader.ReadString('\n')
					cfg.ProxyPort = 8080
					if v := strings.TrimSpace(input); v != "" {
						if n, err := strconv.Atoi(v); err == nil && n > 0 {
							cfg.ProxyPort = n
						}
					}

					fmt.Print("Proxy user (leave empty for none): ")
					input, _ = reader.ReadString('\n')
					cfg.ProxyUser = strings.TrimSpace(input)
				}
			} else {
				cfg.ProxyMode = "no-proxy"
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if err := config.Save(cfg, configPath); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			log.Info().Str("path", configPath).Msg("configuration saved")

			fmt.Println()
			fmt.Printf("✓ Configuration saved to: %s\n", configPath)
			fmt.Println()
			fmt.Println("Next step: sign in with 'shopclip auth login'")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/shopclip/config.ini)
  2. Environment variables (SHOPCLIP_BASE_URL, ...)
  3. Command-line flags (--base-url)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			configPath := cfgFile
			if configPath == "" {
				configPath, _ = config.DefaultConfigPath()
			}

			if jsonOutput {
				out := map[string]interface{}{
					"baseUrl":         cfg.APIBaseURL,
					"redirectUri":     cfg.RedirectURI,
					"provider":        cfg.Provider,
					"timeoutSeconds":  int(cfg.RequestTimeout / time.Second),
					"maxRetries":      cfg.MaxRetries,
					"pollSeconds":     int(cfg.PollInterval / time.Second),
					"maxPollAttempts": cfg.MaxPollAttempts,
					"proxyMode":       cfg.ProxyMode,
					"configFile":      configPath,
				}
				return json.NewEncoder(os.Stdout).Encode(out)
			}

			fmt.Println("Current Configuration")
			fmt.Println("=====================")
			fmt.Println()

			fmt.Println("Backend:")
			fmt.Printf("  API Base URL: %s\n", cfg.APIBaseURL)
			fmt.Printf("  Redirect URI: %s\n", cfg.RedirectURI)
			fmt.Printf("  Provider:     %s\n", cfg.Provider)
			fmt.Println()

			fmt.Println("HTTP:")
			fmt.Printf("  Request Timeout: %s\n", cfg.RequestTimeout)
			fmt.Printf("  Max Retries:     %d\n", cfg.MaxRetries)
			fmt.Println()

			fmt.Println("Job Polling:")
			fmt.Printf("  Poll Interval:     %s\n", cfg.PollInterval)
			fmt.Printf("  Max Poll Attempts: %d\n", cfg.MaxPollAttempts)
			fmt.Println()

			fmt.Println("Proxy:")
			fmt.Printf("  Mode: %s\n", cfg.ProxyMode)
			if cfg.ProxyHost != "" {
				fmt.Printf("  Host: %s\n", cfg.ProxyHost)
				fmt.Printf("  Port: %d\n", cfg.ProxyPort)
			}
			fmt.Println()

			fmt.Printf("Configuration file: %s\n", configPath)
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				fmt.Println("  (file does not exist - using defaults)")
			}

			return nil
		},
	}

	return cmd
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := cfgFile
			if configPath == "" {
				var err error
				configPath, err = config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("failed to resolve config path: %w", err)
				}
				fmt.Println("Default configuration path:")
			} else {
				fmt.Println("Configuration path (from --config flag):")
			}

			fmt.Printf("  %s\n", configPath)
			fmt.Println()

			if fileInfo, err := os.Stat(configPath); err == nil {
				fmt.Println("Status: ✓ File exists")
				fmt.Printf("Size:   %d bytes\n", fileInfo.Size())
				fmt.Printf("Modified: %s\n", fileInfo.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Println("Status: File does not exist")
				fmt.Println()
				fmt.Println("Create a configuration file with: shopclip config init")
			}

			return nil
		},
	}

	return cmd
}
