// Package config provides configuration management for the shopclip CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/shopclip/shopclip-cli/internal/constants"
)

// Config is the resolved client configuration. It is loaded from the INI
// config file, overridden by SHOPCLIP_* environment variables, and finally by
// command-line flags.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\shopclip\config.ini
//   - Unix: ~/.config/shopclip/config.ini
//
// INI format:
//
//	[shopclip]
//	base_url = https://api.shopclip.io
//	redirect_uri = shopclip://oauth/callback
//	provider = google
//	timeout_seconds = 30
//	max_retries = 2
//	poll_interval_seconds = 3
//	max_poll_attempts = 200
//
//	[shopclip.proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	no_proxy =
//	warmup = false
type Config struct {
	// Backend connection settings
	APIBaseURL  string
	RedirectURI string
	Provider    string

	// HTTP behavior
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration

	// Run polling
	PollInterval            time.Duration
	MaxPollAttempts         int
	ConsecutiveFailureLimit int

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // Comma-separated hosts/CIDRs that bypass the proxy
	ProxyWarmup   bool
}

// Validation errors
var (
	ErrMissingBaseURL      = errors.New("base_url is required")
	ErrMissingRedirectURI  = errors.New("redirect_uri is required")
	ErrInvalidTimeout      = errors.New("timeout_seconds must be between 1 and 600")
	ErrInvalidMaxRetries   = errors.New("max_retries must be between 0 and 10")
	ErrInvalidPollInterval = errors.New("poll_interval_seconds must be between 1 and 300")
	ErrInvalidPollAttempts = errors.New("max_poll_attempts must be between 1 and 10000")
	ErrInvalidProxyMode    = errors.New(`proxy mode must be one of "no-proxy", "system", "basic", "ntlm"`)
)

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		APIBaseURL:              "https://api.shopclip.io",
		RedirectURI:             "shopclip://oauth/callback",
		Provider:                "google",
		RequestTimeout:          constants.APIRequestTimeout,
		MaxRetries:              constants.APIMaxRetries,
		RetryBaseDelay:          constants.APIRetryBaseDelay,
		PollInterval:            constants.JobPollInterval,
		MaxPollAttempts:         constants.MaxPollAttempts,
		ConsecutiveFailureLimit: constants.ConsecutiveFailureLimit,
		ProxyMode:               "no-proxy",
	}
}

// Load reads configuration from an INI file. A missing file yields defaults
// with no error; a malformed file is an error. Environment overrides are
// applied after the file.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			cfg.applyEnv()
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyEnv()
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	section := iniFile.Section("shopclip")
	cfg.APIBaseURL = section.Key("base_url").MustString(cfg.APIBaseURL)
	cfg.RedirectURI = section.Key("redirect_uri").MustString(cfg.RedirectURI)
	cfg.Provider = section.Key("provider").MustString(cfg.Provider)
	cfg.RequestTimeout = time.Duration(section.Key("timeout_seconds").MustInt(int(cfg.RequestTimeout/time.Second))) * time.Second
	cfg.MaxRetries = section.Key("max_retries").MustInt(cfg.MaxRetries)
	cfg.PollInterval = time.Duration(section.Key("poll_interval_seconds").MustInt(int(cfg.PollInterval/time.Second))) * time.Second
	cfg.MaxPollAttempts = section.Key("max_poll_attempts").MustInt(cfg.MaxPollAttempts)

	proxySection := iniFile.Section("shopclip.proxy")
	cfg.ProxyMode = proxySection.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxySection.Key("host").String()
	cfg.ProxyPort = proxySection.Key("port").MustInt(0)
	cfg.ProxyUser = proxySection.Key("user").String()
	cfg.NoProxy = proxySection.Key("no_proxy").String()
	cfg.ProxyWarmup = proxySection.Key("warmup").MustBool(false)
	// Proxy passwords are never stored in the file; they come from the
	// environment or an interactive prompt.

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays SHOPCLIP_* environment variables onto the config.
func (cfg *Config) applyEnv() {
	if v := os.Getenv("SHOPCLIP_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("SHOPCLIP_REDIRECT_URI"); v != "" {
		cfg.RedirectURI = v
	}
	if v := os.Getenv("SHOPCLIP_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("SHOPCLIP_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequestTimeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("SHOPCLIP_PROXY_PASSWORD"); v != "" {
		cfg.ProxyPassword = v
	}
}

// Save writes the configuration to an INI file using a temp file plus rename.
// The proxy password is intentionally omitted.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	section, err := iniFile.NewSection("shopclip")
	if err != nil {
		return fmt.Errorf("failed to create shopclip section: %w", err)
	}
	section.Key("base_url").SetValue(cfg.APIBaseURL)
	section.Key("redirect_uri").SetValue(cfg.RedirectURI)
	section.Key("provider").SetValue(cfg.Provider)
	section.Key("timeout_seconds").SetValue(strconv.Itoa(int(cfg.RequestTimeout / time.Second)))
	section.Key("max_retries").SetValue(strconv.Itoa(cfg.MaxRetries))
	section.Key("poll_interval_seconds").SetValue(strconv.Itoa(int(cfg.PollInterval / time.Second)))
	section.Key("max_poll_attempts").SetValue(strconv.Itoa(cfg.MaxPollAttempts))

	proxySection, err := iniFile.NewSection("shopclip.proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxySection.Key("mode").SetValue(cfg.ProxyMode)
	proxySection.Key("host").SetValue(cfg.ProxyHost)
	proxySection.Key("port").SetValue(strconv.Itoa(cfg.ProxyPort))
	proxySection.Key("user").SetValue(cfg.ProxyUser)
	proxySection.Key("no_proxy").SetValue(cfg.NoProxy)
	proxySection.Key("warmup").SetValue(strconv.FormatBool(cfg.ProxyWarmup))

	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set config permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks the configuration. Returns nil if valid, or an error
// describing what is wrong.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return ErrMissingBaseURL
	}
	if strings.TrimSpace(cfg.RedirectURI) == "" {
		return ErrMissingRedirectURI
	}
	if cfg.RequestTimeout < time.Second || cfg.RequestTimeout > 600*time.Second {
		return ErrInvalidTimeout
	}
	if cfg.MaxRetries < 0 || cfg.MaxRetries > 10 {
		return ErrInvalidMaxRetries
	}
	if cfg.PollInterval < time.Second || cfg.PollInterval > 300*time.Second {
		return ErrInvalidPollInterval
	}
	if cfg.MaxPollAttempts < 1 || cfg.MaxPollAttempts > 10000 {
		return ErrInvalidPollAttempts
	}
	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "", "system", "basic", "ntlm":
	default:
		return ErrInvalidProxyMode
	}
	return nil
}
