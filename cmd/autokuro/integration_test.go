package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/autokuro/internal/config"
	"github.com/nao1215/autokuro/internal/database"
	"github.com/nao1215/autokuro/internal/model"
	"github.com/nao1215/autokuro/internal/pipeline"
	"github.com/nao1215/autokuro/internal/report"
	"github.com/nao1215/autokuro/internal/runner"
)

// reconFlags makes every fake scanner produce a plausible artifact.
func reconFlags() map[string]string {
	return map[string]string{
		config.ToolSubfinder:    "@lines=a.example.com,b.example.com",
		config.ToolNaabu:        "@lines=a.example.com:443,b.example.com:80",
		config.ToolHTTPX:        "@lines=https://a.example.com,http://b.example.com",
		config.ToolFeroxbuster:  "@lines=https://a.example.com/admin",
		config.ToolGau:          "@lines=https://a.example.com/static/app.js,https://a.example.com/search?q=1",
		config.ToolKatana:       "@lines=https://a.example.com/login,https://a.example.com/static/app.js",
		config.ToolParamspider:  "@lines=https://a.example.com/search?q=FUZZ",
		config.ToolNucleiTokens: "@lines=[aws-access-key] https://a.example.com/static/app.js",
		config.ToolDalfox:       "@lines=[POC][V] https://a.example.com/search?q=x",
	}
}

// openHistory opens the history database written by a start invocation.
func openHistory(t *testing.T, dir string) *database.RunDB {
	t.Helper()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStart_FullRunAndResume(t *testing.T) {
	t.Parallel()

	cfgPath := writeFakeConfig(t, reconFlags())
	outDir := t.TempDir()
	dbDir := t.TempDir()
	args := []string{"start", "-d", "example.com", "--config", cfgPath, "-o", outDir, "--db-dir", dbDir}

	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	for _, want := range []string{"AutoKuro", "example.com", "[15/15]", "MISSION COMPLETE", "XSS Findings", "JS Secrets"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}

	db := openHistory(t, dbDir)
	ctx := context.Background()
	runs, err := db.ListRuns(ctx, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	first := runs[0]
	if first.Status != model.RunCompleted {
		t.Errorf("expected completed run, got %s (%s)", first.Status, first.Error)
	}

	var labels []string
	for _, f := range first.Findings {
		labels = append(labels, f.Label)
	}
	if diff := cmp.Diff([]string{model.LabelJSSecrets, model.LabelXSS}, labels); diff != "" {
		t.Errorf("findings mismatch (-want +got):\n%s", diff)
	}

	for _, name := range []string{"subdomains.txt", "port_targets.txt", "live_hosts.txt", "all_urls_clean.txt", "js_files.txt", report.SummaryFile} {
		if _, err := os.Stat(filepath.Join(first.Dir, name)); err != nil {
			t.Errorf("expected %s in the run directory: %v", name, err)
		}
	}

	stages, err := db.GetStages(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stages) != 15 {
		t.Fatalf("expected 15 recorded stages, got %d", len(stages))
	}
	if stages[0].Stage != "subdomains" || stages[0].Status != model.StageSuccess || stages[0].Fingerprint == "" {
		t.Errorf("unexpected first stage: %+v", stages[0])
	}

	// The same command on the same day resumes from the run directory.
	out, err = execute(t, args...)
	if err != nil {
		t.Fatalf("unexpected error on resume: %v\n%s", err, out)
	}
	runs, err = db.ListRuns(ctx, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Dir != first.Dir {
		t.Errorf("expected the resumed run to reuse %s, got %s", first.Dir, runs[0].Dir)
	}
	resumed, err := db.GetStages(ctx, runs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range resumed {
		if s.Stage == "subdomains" && s.Status != model.StageSkipped {
			t.Errorf("expected subdomains to be skipped on resume, got %s", s.Status)
		}
	}

	t.Run("history lists the target", func(t *testing.T) {
		out, err := execute(t, "history", "--db-dir", dbDir)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "example.com") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("history compares the latest two runs", func(t *testing.T) {
		out, err := execute(t, "history", "example.com", "--compare", "--json", "--db-dir", dbDir)
		if err != nil {
			t.Fatal(err)
		}
		var result ComparisonResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if result.CurrentRun.ID != runs[0].ID || result.PreviousRun.ID != runs[1].ID {
			t.Errorf("compared the wrong runs: %s vs %s", result.PreviousRun.ID, result.CurrentRun.ID)
		}
		if result.UnchangedCount != 2 || len(result.NewFindings) != 0 || len(result.ResolvedFindings) != 0 {
			t.Errorf("expected 2 unchanged findings, got %+v", result)
		}
		if result.RiskChange.Direction != riskDirectionUnchanged {
			t.Errorf("expected unchanged risk, got %s", result.RiskChange.Direction)
		}
	})

	t.Run("history shows one run", func(t *testing.T) {
		out, err := execute(t, "history", "--run", first.ID, "--db-dir", dbDir)
		if err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{first.ID, "live-hosts", "success", "XSS Findings"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})
}

func TestStart_NoLiveHosts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		httpx string
	}{
		{name: "httpx finds nothing", httpx: ""},
		{name: "httpx exits non-zero", httpx: "'@stderr=connection refused' @exit=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flags := reconFlags()
			delete(flags, config.ToolHTTPX)
			if tt.httpx != "" {
				flags[config.ToolHTTPX] = tt.httpx
			}
			cfgPath := writeFakeConfig(t, flags)
			outDir := t.TempDir()

			out, err := execute(t, "start", "-d", "example.com", "--config", cfgPath, "-o", outDir, "--no-history")
			var nv *pipeline.NoViableTargetError
			if !errors.As(err, &nv) {
				t.Fatalf("expected NoViableTargetError, got %v\n%s", err, out)
			}
			if exitCode(err) != exitNoViable {
				t.Errorf("expected exit status %d, got %d", exitNoViable, exitCode(err))
			}
			if strings.Contains(out, "takeover") {
				t.Errorf("expected the run to stop before takeover:\n%s", out)
			}
		})
	}
}

func TestStart_BlockedHaltsEveryTarget(t *testing.T) {
	t.Parallel()

	flags := reconFlags()
	flags[config.ToolHTTPX] = "'@stdout=<h1>Access Denied</h1>'"
	cfgPath := writeFakeConfig(t, flags)
	outDir := t.TempDir()

	out, err := execute(t, "start", "-d", "example.com", "--config", cfgPath, "-o", outDir, "--no-history", "--json")
	var blocked *runner.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError, got %v\n%s", err, out)
	}
	if blocked.Stage != "live-hosts" || blocked.Signature != "Access Denied" {
		t.Errorf("unexpected block: %+v", blocked)
	}
	if exitCode(err) != exitBlocked {
		t.Errorf("expected exit status %d, got %d", exitBlocked, exitCode(err))
	}

	// --json prints the batch as one document before the block message.
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start < 0 || end < start {
		t.Fatalf("expected a JSON array in output:\n%s", out)
	}
	var reports []report.JSONReport
	if err := json.Unmarshal([]byte(out[start:end+1]), &reports); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(reports) != 1 || reports[0].Report.Status != model.RunBlocked {
		t.Fatalf("expected one blocked report, got %+v", reports)
	}
	if _, ok := reports[0].Report.Stage("takeover"); ok {
		t.Error("expected no stage after live-hosts to run")
	}
}

func TestStart_MissingTools(t *testing.T) {
	t.Parallel()

	cfgPath := writeFakeConfigWith(t, nil, map[string]string{config.ToolNaabu: "/nonexistent/naabu"})

	_, err := execute(t, "start", "-d", "example.com", "--config", cfgPath, "-o", t.TempDir(), "--no-history")
	if !errors.Is(err, config.ErrMissingTools) {
		t.Fatalf("expected ErrMissingTools, got %v", err)
	}
	if exitCode(err) != exitConfiguration {
		t.Errorf("expected exit status %d, got %d", exitConfiguration, exitCode(err))
	}
}
