package config

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Tool keys. A key names one configured invocation of a scanner; the same
// binary may appear under several keys (nuclei runs four times).
const (
	ToolSubfinder      = "subfinder"
	ToolNaabu          = "naabu"
	ToolHTTPX          = "httpx"
	ToolNucleiTakeover = "nuclei_takeover"
	ToolNucleiCloud    = "nuclei_cloud"
	ToolFeroxbuster    = "feroxbuster"
	ToolGau            = "gau"
	ToolKatana         = "katana"
	ToolParamspider    = "paramspider"
	ToolNucleiTokens   = "nuclei_tokens"
	ToolNuclei         = "nuclei"
	ToolDalfox         = "dalfox"
	ToolTrufflehog     = "trufflehog"
)

// defaultBinaries maps tool keys to the executable run for them.
var defaultBinaries = map[string]string{
	ToolSubfinder:      "subfinder",
	ToolNaabu:          "naabu",
	ToolHTTPX:          "httpx-toolkit",
	ToolNucleiTakeover: "nuclei",
	ToolNucleiCloud:    "nuclei",
	ToolFeroxbuster:    "feroxbuster",
	ToolGau:            "gau",
	ToolKatana:         "katana",
	ToolParamspider:    "paramspider",
	ToolNucleiTokens:   "nuclei",
	ToolNuclei:         "nuclei",
	ToolDalfox:         "dalfox",
	ToolTrufflehog:     "trufflehog",
}

// ToolKeys returns every tool key in pipeline order.
func ToolKeys() []string {
	return []string{
		ToolSubfinder, ToolNaabu, ToolHTTPX, ToolNucleiTakeover, ToolNucleiCloud,
		ToolFeroxbuster, ToolGau, ToolKatana, ToolParamspider, ToolNucleiTokens,
		ToolNuclei, ToolDalfox, ToolTrufflehog,
	}
}

// RequiredBinaries returns the distinct executables the pipeline needs, in
// pipeline order, honoring binary overrides of mode.
func RequiredBinaries(mode ModeConfig) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, key := range ToolKeys() {
		bin := mode.Binary(key)
		if _, ok := seen[bin]; ok {
			continue
		}
		seen[bin] = struct{}{}
		out = append(out, bin)
	}
	return out
}

// File is the structure of the YAML configuration file.
type File struct {
	// Modes maps a mode name (ghost, ranger, blitz...) to its tool settings.
	Modes map[string]ModeConfig `yaml:"modes"`

	// Telegram configures notifications.
	Telegram TelegramConfig `yaml:"telegram"`

	// WordlistPath is the preferred directory-busting wordlist.
	WordlistPath string `yaml:"wordlist_path"`

	// WordlistFallback is used when WordlistPath does not exist.
	WordlistFallback string `yaml:"wordlist_fallback"`

	// Signatures are extra block signatures appended to the built-in list.
	Signatures []string `yaml:"signatures,omitempty"`
}

// TelegramConfig holds the Telegram bot settings.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// ModeConfig is the tool settings of one mode. It is treated as an
// immutable value: Decorate and WithOverrides return copies.
type ModeConfig struct {
	// Timeout is the per-attempt stage timeout. Zero selects DefaultStageTimeout.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Retries is the retry budget per stage. Nil selects DefaultRetries.
	Retries *int `yaml:"retries,omitempty"`

	// Tools maps a tool key to its flag text.
	Tools map[string]string `yaml:"tools"`

	// Binaries overrides the executable of a tool key.
	Binaries map[string]string `yaml:"binaries,omitempty"`

	// extra holds structured arguments added by Decorate. They are appended
	// after the flag text and never pass through tokenization.
	extra map[string][]string
}

// Mode returns the named mode.
func (f *File) Mode(name string) (ModeConfig, error) {
	if f == nil || len(f.Modes) == 0 {
		return ModeConfig{}, ErrNoModes
	}
	m, ok := f.Modes[name]
	if !ok {
		return ModeConfig{}, fmt.Errorf("%w %q: available modes are %v", ErrUnknownMode, name, f.ModeNames())
	}
	return m, nil
}

// ModeNames returns the configured mode names, sorted.
func (f *File) ModeNames() []string {
	if f == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(f.Modes))
}

// Flags returns the flag text of a tool key.
func (m ModeConfig) Flags(key string) string {
	return m.Tools[key]
}

// Extra returns the structured arguments Decorate added to a tool key.
func (m ModeConfig) Extra(key string) []string {
	return slices.Clone(m.extra[key])
}

// Binary returns the executable for a tool key.
func (m ModeConfig) Binary(key string) string {
	if bin, ok := m.Binaries[key]; ok && bin != "" {
		return bin
	}
	if bin, ok := defaultBinaries[key]; ok {
		return bin
	}
	return key
}

// StageTimeout returns the effective per-attempt timeout.
func (m ModeConfig) StageTimeout() time.Duration {
	if m.Timeout <= 0 {
		return DefaultStageTimeout
	}
	return m.Timeout
}

// RetryBudget returns the effective retry budget.
func (m ModeConfig) RetryBudget() int {
	if m.Retries == nil || *m.Retries < 0 {
		return DefaultRetries
	}
	return *m.Retries
}

// WithOverrides returns a copy with the CLI timeout and retry overrides
// applied. A non-positive timeout or negative retries leaves the value alone.
func (m ModeConfig) WithOverrides(timeout time.Duration, retries int) ModeConfig {
	out := m.clone()
	if timeout > 0 {
		out.Timeout = timeout
	}
	if retries >= 0 {
		out.Retries = &retries
	}
	return out
}

func (m ModeConfig) clone() ModeConfig {
	out := ModeConfig{
		Timeout:  m.Timeout,
		Tools:    maps.Clone(m.Tools),
		Binaries: maps.Clone(m.Binaries),
	}
	if m.Retries != nil {
		r := *m.Retries
		out.Retries = &r
	}
	if m.extra != nil {
		out.extra = make(map[string][]string, len(m.extra))
		for k, v := range m.extra {
			out.extra[k] = slices.Clone(v)
		}
	}
	return out
}
