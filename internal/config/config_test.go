package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default mode is ranger", func(t *testing.T) {
		t.Parallel()
		if cfg.Mode != "ranger" {
			t.Errorf("expected Mode to be 'ranger', got '%s'", cfg.Mode)
		}
	})

	t.Run("default output dir is results", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputDir != "results" {
			t.Errorf("expected OutputDir to be 'results', got '%s'", cfg.OutputDir)
		}
	})

	t.Run("default BatchSize is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 1 {
			t.Errorf("expected BatchSize to be 1, got %d", cfg.BatchSize)
		}
	})

	t.Run("retries override is unset", func(t *testing.T) {
		t.Parallel()
		if cfg.Retries != -1 {
			t.Errorf("expected Retries to be -1, got %d", cfg.Retries)
		}
	})

	t.Run("history is saved by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveToDB || cfg.DBDir == "" {
			t.Errorf("expected SaveToDB with a DBDir, got %v %q", cfg.SaveToDB, cfg.DBDir)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		c := NewConfig()
		c.Targets = []string{"example.com"}
		return c
	}

	testCases := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"valid config", func(*Config) {}, nil},
		{"no targets", func(c *Config) { c.Targets = nil }, ErrNoTarget},
		{"option-like target", func(c *Config) { c.Targets = []string{"-oX"} }, ErrInvalidTarget},
		{"path-like target", func(c *Config) { c.Targets = []string{"../etc"} }, ErrInvalidTarget},
		{"one bad target among good", func(c *Config) { c.Targets = []string{"a.com", "b c.com"} }, ErrInvalidTarget},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }, ErrNoOutputDir},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, ErrInvalidTimeout},
		{"http proxy", func(c *Config) { c.Proxy = "http://127.0.0.1:8080" }, nil},
		{"socks5 proxy", func(c *Config) { c.Proxy = "socks5://user:pw@127.0.0.1:1080" }, nil},
		{"ftp proxy", func(c *Config) { c.Proxy = "ftp://127.0.0.1" }, ErrInvalidProxy},
		{"proxy without host", func(c *Config) { c.Proxy = "http://" }, ErrInvalidProxy},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateTarget(t *testing.T) {
	t.Parallel()

	valid := []string{"example.com", "sub.example.co.uk", "EXAMPLE.com", "example.com.", "a-b.example.com", "localhost"}
	for _, target := range valid {
		if err := ValidateTarget(target); err != nil {
			t.Errorf("ValidateTarget(%q) = %v, want nil", target, err)
		}
	}

	invalid := []string{"", " ", "-d", ".example.com", "exa mple.com", "a/b", "..", "example..com", "-a.com", "a-.com", "http://example.com"}
	for _, target := range invalid {
		if err := ValidateTarget(target); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("ValidateTarget(%q) = %v, want ErrInvalidTarget", target, err)
		}
	}
}

func TestNormalizeTarget(t *testing.T) {
	t.Parallel()

	if got := NormalizeTarget("  Example.COM. "); got != "example.com" {
		t.Errorf("NormalizeTarget = %q, want %q", got, "example.com")
	}
}

const testConfigYAML = `modes:
  ranger:
    timeout: 10m
    retries: 3
    tools:
      subfinder: "-silent -all"
      naabu: "-top-ports 1000 -rate 500"
      httpx: "-silent -threads 50"
      nuclei: "-severity medium,high,critical -c 25 -rl 150"
    binaries:
      httpx: httpx
  ghost:
    tools:
      subfinder: "-silent"
telegram:
  enabled: true
  bot_token: "123:abc"
  chat_id: "42"
wordlist_path: /usr/share/seclists/Discovery/Web-Content/raft-medium-directories.txt
wordlist_fallback: /usr/share/wordlists/dirb/common.txt
signatures:
  - "Custom WAF Page"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/autokuro.yaml")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile(writeConfig(t, testConfigYAML))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if diff := cmp.Diff([]string{"ghost", "ranger"}, cfg.ModeNames()); diff != "" {
			t.Errorf("mode names mismatch (-want +got):\n%s", diff)
		}
		ranger, err := cfg.Mode("ranger")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ranger.StageTimeout() != 10*time.Minute {
			t.Errorf("expected timeout 10m, got %v", ranger.StageTimeout())
		}
		if ranger.RetryBudget() != 3 {
			t.Errorf("expected retries 3, got %d", ranger.RetryBudget())
		}
		if got := ranger.Flags(ToolNuclei); got != "-severity medium,high,critical -c 25 -rl 150" {
			t.Errorf("unexpected nuclei flags %q", got)
		}
		if got := ranger.Binary(ToolHTTPX); got != "httpx" {
			t.Errorf("expected httpx binary override, got %q", got)
		}
		if !cfg.Telegram.Enabled || cfg.Telegram.ChatID != "42" {
			t.Errorf("unexpected telegram config %+v", cfg.Telegram)
		}
		if diff := cmp.Diff([]string{"Custom WAF Page"}, cfg.Signatures); diff != "" {
			t.Errorf("signatures mismatch (-want +got):\n%s", diff)
		}

		ghost, err := cfg.Mode("ghost")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ghost.StageTimeout() != DefaultStageTimeout || ghost.RetryBudget() != DefaultRetries {
			t.Errorf("expected defaults for ghost, got %v/%d", ghost.StageTimeout(), ghost.RetryBudget())
		}
		if got := ghost.Binary(ToolHTTPX); got != "httpx-toolkit" {
			t.Errorf("expected default httpx binary, got %q", got)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadConfigFile(writeConfig(t, `invalid: yaml: content: [}`)); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("rejects unknown tool keys", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(writeConfig(t, "modes:\n  x:\n    tools:\n      nucleii: \"-silent\"\n"))
		if err == nil {
			t.Error("expected error for unknown tool key")
		}
	})

	t.Run("rejects unknown top-level keys", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(writeConfig(t, "modes:\n  x:\n    tools: {}\nwordlist: /tmp/x\n"))
		if err == nil {
			t.Error("expected error for unknown key")
		}
	})

	t.Run("requires at least one mode", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(writeConfig(t, "telegram:\n  enabled: false\n"))
		if !errors.Is(err, ErrNoModes) {
			t.Errorf("expected ErrNoModes, got %v", err)
		}
	})
}

func TestFileMode(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFile(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cfg.Mode("blitz"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}

	var nilFile *File
	if _, err := nilFile.Mode("ranger"); !errors.Is(err, ErrNoModes) {
		t.Errorf("expected ErrNoModes, got %v", err)
	}
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Run("returns explicit path if exists", func(t *testing.T) {
		configPath := writeConfig(t, testConfigYAML)

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})

	t.Run("finds config/config.yaml in the working directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.MkdirAll(filepath.Join(dir, "config"), 0o750); err != nil {
			t.Fatal(err)
		}
		want := filepath.Join(dir, "config", "config.yaml")
		if err := os.WriteFile(want, []byte(testConfigYAML), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Chdir(dir)

		if result := FindConfigFile(""); result != want {
			t.Errorf("expected %q, got %q", want, result)
		}
	})

	t.Run("prefers autokuro.yaml over config/config.yaml", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.MkdirAll(filepath.Join(dir, "config"), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "config", "config.yaml"), []byte(testConfigYAML), 0o600); err != nil {
			t.Fatal(err)
		}
		want := filepath.Join(dir, DefaultConfigFile)
		if err := os.WriteFile(want, []byte(testConfigYAML), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Chdir(dir)

		if result := FindConfigFile(""); result != want {
			t.Errorf("expected %q, got %q", want, result)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("missing explicit file is a configuration error", func(t *testing.T) {
		t.Parallel()

		_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		var ce *ConfigurationError
		if !errors.As(err, &ce) {
			t.Fatalf("expected *ConfigurationError, got %T: %v", err, err)
		}
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound in chain, got %v", err)
		}
	})

	t.Run("bad YAML is a configuration error", func(t *testing.T) {
		t.Parallel()

		_, _, err := Load(writeConfig(t, "modes: [}"))
		var ce *ConfigurationError
		if !errors.As(err, &ce) {
			t.Fatalf("expected *ConfigurationError, got %T: %v", err, err)
		}
	})

	t.Run("returns the resolved path", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, testConfigYAML)
		f, got, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != path || f == nil {
			t.Errorf("Load returned %q, %v", got, f)
		}
	})
}

func TestNewConfigurationError(t *testing.T) {
	t.Parallel()

	if NewConfigurationError("x", nil) != nil {
		t.Error("nil error should stay nil")
	}
	inner := NewConfigurationError("inner", ErrNoTarget)
	outer := NewConfigurationError("outer", inner)
	if outer != inner {
		t.Error("wrapping a ConfigurationError should return it unchanged")
	}
	if got := inner.Error(); got != "configuration error: inner: "+ErrNoTarget.Error() {
		t.Errorf("Error() = %q", got)
	}
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if XDGDataDir() == "" {
		t.Error("expected non-empty XDG data dir")
	}
	if XDGConfigDir() == "" {
		t.Error("expected non-empty XDG config dir")
	}
}
