package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/autokuro/internal/config"
	"github.com/nao1215/autokuro/internal/runner/runnertest"
	"gopkg.in/yaml.v3"
)

// writeFakeConfig writes a configuration file whose "ranger" mode runs the
// test binary for every tool. flags maps tool keys to fake scanner
// directives; see package runnertest.
func writeFakeConfig(t *testing.T, flags map[string]string) string {
	t.Helper()
	return writeFakeConfigWith(t, flags, nil)
}

// writeFakeConfigWith is writeFakeConfig with some executables replaced.
func writeFakeConfigWith(t *testing.T, flags, binaryOverrides map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	wordlist := filepath.Join(dir, "words.txt")
	if err := os.WriteFile(wordlist, []byte("admin\nlogin\n"), 0600); err != nil {
		t.Fatal(err)
	}

	retries := 0
	tools := make(map[string]string)
	binaries := make(map[string]string)
	for _, key := range config.ToolKeys() {
		tools[key] = flags[key]
		binaries[key] = runnertest.Binary()
		if bin, ok := binaryOverrides[key]; ok {
			binaries[key] = bin
		}
	}
	f := config.File{
		Modes: map[string]config.ModeConfig{
			"ranger": {
				Timeout:  30 * time.Second,
				Retries:  &retries,
				Tools:    tools,
				Binaries: binaries,
			},
		},
		WordlistPath: wordlist,
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, config.DefaultConfigFile)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
