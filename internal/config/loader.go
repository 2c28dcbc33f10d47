package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name searched in the
// current directory and the XDG config directory.
const DefaultConfigFile = "autokuro.yaml"

// legacyConfigFile is the relative path older installations used.
var legacyConfigFile = filepath.Join("config", "config.yaml")

// LoadConfigFile loads the YAML configuration file at path.
// If the file does not exist, it returns ErrConfigNotFound.
// Unknown keys are rejected so that typos in tool keys surface early.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(cf.Modes) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoModes)
	}
	for name, m := range cf.Modes {
		for key := range m.Tools {
			if _, ok := defaultBinaries[key]; !ok {
				return nil, fmt.Errorf("%s: mode %q: unknown tool key %q", path, name, key)
			}
		}
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. autokuro.yaml in the current directory
// 3. config/config.yaml in the current directory
// 4. autokuro.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := []string{DefaultConfigFile, legacyConfigFile}
	if cwd, err := os.Getwd(); err == nil {
		for i, c := range candidates {
			candidates[i] = filepath.Join(cwd, c)
		}
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), DefaultConfigFile))

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c
		}
	}
	return ""
}

// Load finds and loads the configuration file. Every failure is returned
// as a *ConfigurationError.
func Load(configPath string) (*File, string, error) {
	path := FindConfigFile(configPath)
	if path == "" {
		where := configPath
		if where == "" {
			where = fmt.Sprintf("%s, %s or %s", DefaultConfigFile, legacyConfigFile,
				filepath.Join(XDGConfigDir(), DefaultConfigFile))
		}
		return nil, "", NewConfigurationError("load config",
			fmt.Errorf("%w: %s (run 'autokuro init' to create one)", ErrConfigNotFound, where))
	}
	f, err := LoadConfigFile(path)
	if err != nil {
		return nil, "", NewConfigurationError("load config", err)
	}
	return f, path, nil
}
