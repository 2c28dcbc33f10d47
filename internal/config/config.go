package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "autokuro"

	// DefaultMode is the mode used when --mode is not given.
	DefaultMode = "ranger"

	// DefaultOutputDir is where run directories are created.
	DefaultOutputDir = "results"

	// DefaultBatchSize is the number of targets scanned concurrently.
	// Scanners are heavy and noisy, so targets run one at a time unless
	// the user asks otherwise.
	DefaultBatchSize = 1

	// DefaultStageTimeout applies to stages of a mode that sets no timeout.
	DefaultStageTimeout = 30 * time.Minute

	// DefaultRetries applies to stages of a mode that sets no retry budget.
	DefaultRetries = 2
)

// Config holds the runtime options of one autokuro invocation.
// It is populated from CLI flags; per-mode tool settings come from the
// YAML configuration file and are kept in File.
type Config struct {
	// Targets are the root domains to scan.
	Targets []string

	// OutputDir is the root under which <target>/<date> run directories live.
	OutputDir string

	// Mode selects a mode block from the configuration file.
	Mode string

	// Cookie is an optional session cookie sent by the web-facing tools.
	Cookie string

	// Proxy is an optional HTTP or SOCKS5 proxy URL for the web-facing tools.
	Proxy string

	// Notify enables Telegram notifications when the config file enables them.
	Notify bool

	// ConfigFilePath is an explicit configuration file path.
	// When empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// BatchSize is the number of targets scanned concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches the log output to JSON.
	LogJSON bool

	// JSONReport prints the run summary as JSON instead of text.
	JSONReport bool

	// SkipVerify skips the tool dependency check before scanning.
	SkipVerify bool

	// Timeout overrides the per-stage timeout of the selected mode when positive.
	Timeout time.Duration

	// Retries overrides the retry budget of the selected mode when non-negative.
	Retries int

	// DBDir is the directory of the run history database.
	DBDir string

	// SaveToDB records runs in the history database.
	SaveToDB bool

	// File holds the loaded configuration file.
	File *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputDir: DefaultOutputDir,
		Mode:      DefaultMode,
		BatchSize: DefaultBatchSize,
		Retries:   -1,
		DBDir:     XDGDataDir(),
		SaveToDB:  true,
	}
}

// XDGDataDir returns the XDG data directory for autokuro.
// On Linux: ~/.local/share/autokuro
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for autokuro.
// On Linux: ~/.config/autokuro
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the runtime options. It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, t := range c.Targets {
		if err := ValidateTarget(t); err != nil {
			return err
		}
	}
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.Proxy != "" {
		if err := validateProxy(c.Proxy); err != nil {
			return err
		}
	}
	return nil
}

func validateProxy(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProxy, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidProxy)
	}
	return nil
}
