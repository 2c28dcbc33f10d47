// Package config provides configuration structures and utilities for autokuro.
// It holds the runtime options parsed from CLI flags, the YAML configuration
// file with its per-mode tool settings, target validation, and Decorate, which
// derives a mode with proxy and cookie arguments attached.
package config
