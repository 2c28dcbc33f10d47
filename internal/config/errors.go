package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors.
var (
	// ErrNoTarget is returned when no target domain is specified.
	ErrNoTarget = errors.New("no target specified: use -d/--domain")

	// ErrInvalidTarget is returned when a target is not a plain domain name.
	ErrInvalidTarget = errors.New("invalid target: must be a domain name such as example.com")

	// ErrNoOutputDir is returned when the output directory is empty.
	ErrNoOutputDir = errors.New("output directory must not be empty")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidTimeout is returned when the stage timeout override is negative.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrInvalidProxy is returned when the proxy is not an http(s) or socks5 URL.
	ErrInvalidProxy = errors.New("invalid proxy URL")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrUnknownMode is returned when the selected mode is not in the configuration file.
	ErrUnknownMode = errors.New("unknown mode")

	// ErrNoModes is returned when the configuration file defines no modes.
	ErrNoModes = errors.New("configuration file defines no modes")

	// ErrMissingTools is returned when required scanner binaries are not on PATH.
	ErrMissingTools = errors.New("missing dependencies")
)

// ConfigurationError reports that autokuro cannot start because its
// configuration, target or environment is unusable. The CLI maps it to a
// distinct exit status.
type ConfigurationError struct {
	// Op names what was being configured, e.g. "load config".
	Op string
	// Err is the underlying cause.
	Err error
}

// NewConfigurationError wraps err. A nil err yields nil.
func NewConfigurationError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return err
	}
	return &ConfigurationError{Op: op, Err: err}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
