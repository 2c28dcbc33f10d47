package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/autokuro/internal/artifact"
	"github.com/nao1215/autokuro/internal/config"
	"github.com/nao1215/autokuro/internal/model"
	"github.com/nao1215/autokuro/internal/runner"
	"github.com/nao1215/autokuro/internal/runner/runnertest"
	"github.com/nao1215/autokuro/internal/signature"
)

func TestMain(m *testing.M) {
	runnertest.Init()
	os.Exit(m.Run())
}

// recordingAlerter collects alerts.
type recordingAlerter struct {
	mu     sync.Mutex
	alerts []model.Finding
}

func (a *recordingAlerter) Alert(_ context.Context, f model.Finding) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, f)
	return nil
}

func (a *recordingAlerter) labels() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, f := range a.alerts {
		out = append(out, f.Label)
	}
	return out
}

// fakeMode routes every tool key to the fake scanner with the given flags.
// Tools without flags exit 0 and write nothing.
func fakeMode(flags map[string]string, timeout time.Duration, retries int) config.ModeConfig {
	binaries := make(map[string]string)
	for _, key := range config.ToolKeys() {
		binaries[key] = runnertest.Binary()
	}
	return config.ModeConfig{
		Timeout:  timeout,
		Retries:  &retries,
		Tools:    flags,
		Binaries: binaries,
	}
}

type harness struct {
	env     *Env
	kill    *runner.KillSwitch
	ctx     context.Context
	alerter *recordingAlerter
	dir     string
}

func newHarness(t *testing.T, mode config.ModeConfig) *harness {
	t.Helper()

	root := t.TempDir()
	rc, err := artifact.NewRunContext(root, "example.com", time.Now())
	if err != nil {
		t.Fatalf("failed to create run context: %v", err)
	}
	wordlist := filepath.Join(root, "words.txt")
	if err := os.WriteFile(wordlist, []byte("admin\nlogin\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, kill := runner.NewKillSwitch(context.Background())
	t.Cleanup(kill.Release)

	r := runner.New(signature.Default(),
		runner.WithKillSwitch(kill),
		runner.WithWaitDelay(time.Second),
	)
	alerter := &recordingAlerter{}
	env := NewEnv("example.com", rc, mode, r,
		WithAlerter(alerter),
		WithWordlist(ResolveWordlist(filepath.Join(root, "missing.txt"), wordlist)),
	)
	return &harness{env: env, kill: kill, ctx: ctx, alerter: alerter, dir: rc.Dir}
}

func (h *harness) run(t *testing.T) (*model.RunReport, error) {
	t.Helper()
	report := model.NewRunReport("run-1", h.env.Target, "test", h.dir)
	err := DefaultPipeline(h.env).Execute(h.ctx, report)
	return report, err
}

func readArtifact(t *testing.T, h *harness, name string) string {
	t.Helper()
	b, err := os.ReadFile(h.env.Path(name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(b)
}

func stageNames(r *model.RunReport) []string {
	var out []string
	for _, s := range r.Stages {
		out = append(out, s.Stage)
	}
	return out
}

func TestDefaultPipelineSteps(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeMode(nil, time.Minute, 0))
	want := []string{
		"subdomains", "ports", "live-hosts", "takeover", "cloud", "dirbust",
		"archive", "crawl", "merge", "parameters", "js-filter", "js-secrets",
		"nuclei", "xss", "secrets",
	}
	if diff := cmp.Diff(want, DefaultPipeline(h.env).StepNames()); diff != "" {
		t.Errorf("step order mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultPipelineFullRun(t *testing.T) {
	t.Parallel()

	record := filepath.Join(t.TempDir(), "argv.log")
	h := newHarness(t, fakeMode(map[string]string{
		config.ToolSubfinder:      "-silent @lines=a.example.com,https://B.example.com:8443,a.example.com",
		config.ToolNaabu:          "-rate 500 @lines=a.example.com:443",
		config.ToolHTTPX:          "-silent @lines=https://a.example.com",
		config.ToolNucleiTakeover: "@lines=[takeover]_a.example.com",
		config.ToolFeroxbuster:    "@record=" + record + " @lines=https://a.example.com/admin",
		config.ToolGau:            "@lines=https://a.example.com/app.js,https://a.example.com/logo.png,https://a.example.com/admin",
		config.ToolKatana:         "@lines=https://a.example.com/login,https://a.example.com/static/site.css",
		config.ToolParamspider:    "@lines=https://a.example.com/?q=FUZZ",
		config.ToolNucleiTokens:   "@record=" + record + " @lines=[token]_app.js",
		config.ToolDalfox:         "@record=" + record + " @lines=[POC]_https://a.example.com/?q=x",
		config.ToolTrufflehog:     "@stdout=Found_verified_result",
	}, time.Minute, 1))

	report, err := h.run(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != model.RunCompleted {
		t.Errorf("status = %s, want completed", report.Status)
	}
	if len(report.Stages) != 15 {
		t.Fatalf("expected 15 stage records, got %d: %v", len(report.Stages), stageNames(report))
	}

	t.Run("port targets are bare deduplicated hostnames", func(t *testing.T) {
		if got := readArtifact(t, h, artifact.PortTargets); got != "a.example.com\nb.example.com\n" {
			t.Errorf("port_targets = %q", got)
		}
	})

	t.Run("merge unions crawl sources without noise", func(t *testing.T) {
		lines, err := artifact.ReadLines(h.env.Path(artifact.AllURLsClean))
		if err != nil {
			t.Fatal(err)
		}
		want := []string{
			"https://a.example.com/app.js",
			"https://a.example.com/admin",
			"https://a.example.com/login",
		}
		if diff := cmp.Diff(want, lines); diff != "" {
			t.Errorf("all_urls_clean mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("js filter keeps only js urls", func(t *testing.T) {
		if got := readArtifact(t, h, artifact.JSFiles); got != "https://a.example.com/app.js\n" {
			t.Errorf("js_files = %q", got)
		}
	})

	t.Run("tools received their inputs", func(t *testing.T) {
		b, err := os.ReadFile(record)
		if err != nil {
			t.Fatal(err)
		}
		log := string(b)
		for _, want := range []string{
			"--stdin -w ",
			"-l " + h.env.Path(artifact.JSFiles),
			"file " + h.env.Path(artifact.Parameters),
		} {
			if !strings.Contains(log, want) {
				t.Errorf("argv log missing %q:\n%s", want, log)
			}
		}
	})

	t.Run("trufflehog stdout becomes the artifact", func(t *testing.T) {
		if got := readArtifact(t, h, artifact.SecretsLeak); got != "Found_verified_result\n" {
			t.Errorf("secrets_leak = %q", got)
		}
	})

	t.Run("alerts fire for non-empty findings only", func(t *testing.T) {
		want := []string{model.LabelTakeover, model.LabelJSSecrets, model.LabelXSS, model.LabelTrufflehog}
		if diff := cmp.Diff(want, h.alerter.labels()); diff != "" {
			t.Errorf("alert labels mismatch (-want +got):\n%s", diff)
		}
		if len(report.Findings) != 4 {
			t.Errorf("expected 4 findings in report, got %d", len(report.Findings))
		}
	})

	t.Run("stages without output are still successes", func(t *testing.T) {
		rec, ok := report.Stage("cloud")
		if !ok || rec.Status != model.StageSuccess || rec.Lines != 0 {
			t.Errorf("cloud record = %+v", rec)
		}
	})
}

func TestDefaultPipelineNoViableTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		httpx   string
		timeout time.Duration
		stage   error
	}{
		{name: "httpx finds nothing", httpx: "-silent", timeout: time.Minute},
		{name: "httpx exits non-zero", httpx: "'@stderr=httpx failed' @exit=1", timeout: time.Minute, stage: &runner.StageExecutionError{}},
		{name: "httpx times out", httpx: "@sleep=1m", timeout: 2 * time.Second, stage: &runner.StageTimeoutError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record := filepath.Join(t.TempDir(), "argv.log")
			h := newHarness(t, fakeMode(map[string]string{
				config.ToolSubfinder:      "@lines=a.example.com",
				config.ToolHTTPX:          tt.httpx,
				config.ToolNucleiTakeover: "@record=" + record,
				config.ToolGau:            "@record=" + record,
				config.ToolDalfox:         "@record=" + record,
			}, tt.timeout, 0))

			report, err := h.run(t)
			var nv *NoViableTargetError
			if !errors.As(err, &nv) {
				t.Fatalf("expected NoViableTargetError, got %v", err)
			}
			switch tt.stage.(type) {
			case *runner.StageExecutionError:
				var execErr *runner.StageExecutionError
				if !errors.As(err, &execErr) || !strings.Contains(err.Error(), "httpx failed") {
					t.Errorf("stage failure should be wrapped with its diagnostic, got %v", err)
				}
			case *runner.StageTimeoutError:
				var timeoutErr *runner.StageTimeoutError
				if !errors.As(err, &timeoutErr) {
					t.Errorf("stage timeout should be wrapped, got %v", err)
				}
			default:
				if nv.Err != nil {
					t.Errorf("unexpected stage failure %v", nv.Err)
				}
			}
			if diff := cmp.Diff([]string{"subdomains", "ports", "live-hosts"}, stageNames(report)); diff != "" {
				t.Errorf("stages mismatch (-want +got):\n%s", diff)
			}
			if report.Status != model.RunNoViableTarget {
				t.Errorf("status = %s", report.Status)
			}
			if _, err := os.Stat(record); !os.IsNotExist(err) {
				t.Error("no stage after live-hosts may run")
			}
		})
	}
}

func TestDefaultPipelineBlocked(t *testing.T) {
	t.Parallel()

	record := filepath.Join(t.TempDir(), "argv.log")
	h := newHarness(t, fakeMode(map[string]string{
		config.ToolSubfinder: "@lines=a.example.com",
		config.ToolNaabu:     `-rate 1000 "@stdout=Access Denied"`,
		config.ToolHTTPX:     "@record=" + record,
	}, time.Minute, 3))

	report, err := h.run(t)
	var blocked *runner.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError, got %v", err)
	}
	if blocked.Signature != "Access Denied" || blocked.Stage != "ports" {
		t.Errorf("blocked = %+v", blocked)
	}
	if h.kill.Tripped() == nil {
		t.Error("kill switch should be tripped")
	}
	rec, ok := report.Stage("ports")
	if !ok || rec.Status != model.StageBlocked || rec.Attempts != 1 {
		t.Errorf("ports record = %+v", rec)
	}
	if len(report.Stages) != 2 {
		t.Errorf("expected 2 stage records, got %v", stageNames(report))
	}
	if report.Status != model.RunBlocked {
		t.Errorf("status = %s", report.Status)
	}
	if _, err := os.Stat(record); !os.IsNotExist(err) {
		t.Error("no stage after the block may run")
	}
}

func TestDefaultPipelineTimeoutThenSuccess(t *testing.T) {
	t.Parallel()

	marker := filepath.Join(t.TempDir(), "slept")
	h := newHarness(t, fakeMode(map[string]string{
		config.ToolSubfinder: "@lines=a.example.com",
		config.ToolHTTPX:     "-threads 50 @sleep-once=" + marker + " @lines=https://a.example.com",
	}, 2*time.Second, 2))

	report, err := h.run(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok := report.Stage("live-hosts")
	if !ok {
		t.Fatal("missing live-hosts record")
	}
	if rec.Status != model.StageSuccess || rec.Attempts != 2 || rec.Throttles != 1 {
		t.Errorf("live-hosts record = %+v, want success after 2 attempts with 1 throttle", rec)
	}
	if got := readArtifact(t, h, artifact.LiveHosts); got != "https://a.example.com\n" {
		t.Errorf("live_hosts = %q", got)
	}
}

func TestDefaultPipelineResume(t *testing.T) {
	t.Parallel()

	record := filepath.Join(t.TempDir(), "argv.log")
	h := newHarness(t, fakeMode(map[string]string{
		config.ToolSubfinder:      "@record=" + record + " @lines=new.example.com",
		config.ToolHTTPX:          "@lines=https://a.example.com",
		config.ToolNucleiTakeover: "@record=" + record,
	}, time.Minute, 0))

	if err := os.WriteFile(h.env.Path(artifact.Subdomains), []byte("a.example.com\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(h.env.Path(artifact.Takeover), []byte("[takeover] a.example.com\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	report, err := h.run(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"subdomains", "takeover"} {
		rec, _ := report.Stage(name)
		if rec.Status != model.StageSkipped || rec.Attempts != 0 {
			t.Errorf("%s record = %+v, want skipped without attempts", name, rec)
		}
	}
	if _, err := os.Stat(record); !os.IsNotExist(err) {
		t.Error("cached stages must not run their tools")
	}
	if got := readArtifact(t, h, artifact.Subdomains); got != "a.example.com\n" {
		t.Errorf("cached artifact modified: %q", got)
	}
	if len(h.alerter.labels()) != 0 {
		t.Errorf("cached findings must not alert again, got %v", h.alerter.labels())
	}
	if len(report.Findings) != 1 || report.Findings[0].Label != model.LabelTakeover {
		t.Errorf("cached findings should still be reported, got %+v", report.Findings)
	}
}

func TestDefaultPipelineDecoratedCookie(t *testing.T) {
	t.Parallel()

	record := filepath.Join(t.TempDir(), "argv.log")
	mode := config.Decorate(fakeMode(map[string]string{
		config.ToolHTTPX:  "@lines=https://a.example.com",
		config.ToolNuclei: "@record=" + record,
	}, time.Minute, 0), config.Decoration{Cookie: "session=a b; theme=dark"})
	h := newHarness(t, mode)

	if _, err := h.run(t); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := os.ReadFile(record)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "-H Cookie: session=a b; theme=dark") {
		t.Errorf("cookie header not passed through intact:\n%s", b)
	}
}

func TestDefaultPipelineMissingInputs(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeMode(map[string]string{
		config.ToolHTTPX: "@lines=https://a.example.com",
	}, time.Minute, 0))
	h.env.wordlist = ""

	report, err := h.run(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"dirbust", "js-filter", "js-secrets", "xss"} {
		rec, ok := report.Stage(name)
		if !ok || rec.Status != model.StageSkipped {
			t.Errorf("%s record = %+v, want skipped", name, rec)
		}
	}
	if got := readArtifact(t, h, artifact.PortTargets); got != "example.com\n" {
		t.Errorf("port_targets without subdomains = %q, want the target", got)
	}
	if got := readArtifact(t, h, artifact.TargetSeed); got != "example.com\n" {
		t.Errorf("target_seed = %q", got)
	}
}

func TestResolveWordlist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	preferred := filepath.Join(dir, "preferred.txt")
	fallback := filepath.Join(dir, "fallback.txt")
	empty := filepath.Join(dir, "empty.txt")
	for path, content := range map[string]string{preferred: "a\n", fallback: "b\n", empty: ""} {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	testCases := []struct {
		name      string
		preferred string
		fallback  string
		want      string
	}{
		{"preferred exists", preferred, fallback, preferred},
		{"preferred missing", filepath.Join(dir, "none"), fallback, fallback},
		{"preferred empty", empty, fallback, fallback},
		{"neither", "", filepath.Join(dir, "none"), ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ResolveWordlist(tc.preferred, tc.fallback); got != tc.want {
				t.Errorf("ResolveWordlist = %q, want %q", got, tc.want)
			}
		})
	}
}
