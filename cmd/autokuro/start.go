package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/nao1215/autokuro/internal/artifact"
	"github.com/nao1215/autokuro/internal/config"
	"github.com/nao1215/autokuro/internal/database"
	securelog "github.com/nao1215/autokuro/internal/log"
	"github.com/nao1215/autokuro/internal/model"
	"github.com/nao1215/autokuro/internal/notify"
	"github.com/nao1215/autokuro/internal/pipeline"
	"github.com/nao1215/autokuro/internal/report"
	"github.com/nao1215/autokuro/internal/runner"
	"github.com/nao1215/autokuro/internal/signature"
	"github.com/spf13/cobra"
)

// NewStartCmd creates the start command.
func NewStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [domain...]",
		Short: "Run the reconnaissance pipeline against one or more domains",
		Long: `Start runs every stage of the pipeline against each target:

  subdomains, ports, live-hosts, takeover, cloud, dirbust, archive, crawl,
  merge, parameters, js-filter, js-secrets, nuclei, xss, secrets

Results are written to <output>/<target>/<YYYY-MM-DD>/. Running the same
command again on the same day resumes from the last incomplete stage.

Examples:
  # Scan one domain with the default (ranger) mode
  autokuro start -d example.com

  # Quiet mode through a proxy with an authenticated session
  autokuro start -d example.com -m ghost -p http://127.0.0.1:8080 -c "session=abc"

  # Scan two domains concurrently and send Telegram alerts
  autokuro start -d example.com -d example.org --batch 2 --notify

  # Print the run summary as JSON
  autokuro start -d example.com --json`,
		Args: cobra.ArbitraryArgs,
		RunE: runStartCmd,
	}

	// Target flags
	cmd.Flags().StringSliceP("domain", "d", nil,
		"Target domain (repeat the flag or separate with commas)")
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Root directory for run directories")

	// Mode flags
	cmd.Flags().StringP("mode", "m", config.DefaultMode,
		"Mode from the configuration file (ghost, ranger, blitz)")
	cmd.Flags().String("config", "",
		"Configuration file path (default: autokuro.yaml, config/config.yaml or the XDG config directory)")
	cmd.Flags().DurationP("timeout", "t", 0,
		"Per-attempt stage timeout, overriding the mode")
	cmd.Flags().IntP("retries", "r", -1,
		"Retries per stage, overriding the mode")

	// Request decoration flags
	cmd.Flags().StringP("cookie", "c", "",
		"Session cookie sent by the web-facing tools")
	cmd.Flags().StringP("proxy", "p", "",
		"HTTP or SOCKS5 proxy URL for the web-facing tools and notifications")

	// Behavior flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of targets scanned concurrently")
	cmd.Flags().BoolP("notify", "n", false,
		"Send Telegram notifications (requires telegram.enabled in the config)")
	cmd.Flags().Bool("no-verify", false,
		"Skip the tool dependency check")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run history database")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Print the run summary as JSON")

	return cmd
}

// runStartCmd executes the start command.
func runStartCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runStart(ctx, cfg, cmd.OutOrStdout(), logger)
}

// getBoolFlag retrieves a bool flag from the command or the root's
// persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// buildConfig creates a Config from cobra command flags and loads the
// configuration file. Every failure is a *config.ConfigurationError.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	domains, err := cmd.Flags().GetStringSlice("domain")
	if err != nil {
		return nil, err
	}
	for _, d := range append(domains, args...) {
		cfg.Targets = append(cfg.Targets, config.NormalizeTarget(d))
	}

	if cfg.OutputDir, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if cfg.Mode, err = cmd.Flags().GetString("mode"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Retries, err = cmd.Flags().GetInt("retries"); err != nil {
		return nil, err
	}
	if cfg.Cookie, err = cmd.Flags().GetString("cookie"); err != nil {
		return nil, err
	}
	if cfg.Proxy, err = cmd.Flags().GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Notify, err = cmd.Flags().GetBool("notify"); err != nil {
		return nil, err
	}
	if cfg.SkipVerify, err = cmd.Flags().GetBool("no-verify"); err != nil {
		return nil, err
	}
	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory
	if cfg.DBDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")

	if err := cfg.Validate(); err != nil {
		return nil, config.NewConfigurationError("validate options", err)
	}

	file, path, err := config.Load(cfg.ConfigFilePath)
	if err != nil {
		return nil, err
	}
	if _, err := file.Mode(cfg.Mode); err != nil {
		return nil, config.NewConfigurationError("select mode", err)
	}
	cfg.File = file
	cfg.ConfigFilePath = path

	return cfg, nil
}

// setupLogger creates a structured logger that redacts secrets.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogJSON {
		return securelog.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return securelog.NewSecureLogger(w, cfg.Verbose)
}

// selectedMode returns the mode named by cfg with the CLI overrides,
// proxy and cookie applied.
func selectedMode(cfg *config.Config) (config.ModeConfig, error) {
	mode, err := cfg.File.Mode(cfg.Mode)
	if err != nil {
		return config.ModeConfig{}, config.NewConfigurationError("select mode", err)
	}
	mode = mode.WithOverrides(cfg.Timeout, cfg.Retries)
	return config.Decorate(mode, config.Decoration{Proxy: cfg.Proxy, Cookie: cfg.Cookie}), nil
}

// runStart executes the pipeline for every target in cfg.
func runStart(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	mode, err := selectedMode(cfg)
	if err != nil {
		return err
	}

	if !cfg.SkipVerify {
		if missing := missingTools(mode); len(missing) > 0 {
			printMissingTools(out, missing)
			return missingToolsError(missing)
		}
	}

	telegram := cfg.File.Telegram
	telegram.Enabled = telegram.Enabled && cfg.Notify
	notifier, err := notify.New(telegram, notify.WithProxy(cfg.Proxy), notify.WithLogger(logger))
	if err != nil {
		return config.NewConfigurationError("set up notifications", err)
	}
	if cfg.Notify && !notifier.Enabled() {
		logger.Warn("notifications requested but telegram is disabled or has no real bot token",
			"config", cfg.ConfigFilePath)
	}

	var db *database.RunDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			// History is auxiliary; the scan still runs without it.
			logger.Warn("run history disabled", "dir", cfg.DBDir, "error", err)
		} else {
			defer db.Close()
			logger.Info("database opened", "path", db.Path())
		}
	}

	logger.Info("starting scan",
		"targets", cfg.Targets,
		"mode", cfg.Mode,
		"config", cfg.ConfigFilePath,
		"batchSize", cfg.BatchSize,
		"saveToDB", db != nil,
	)

	ctx, ks := runner.NewKillSwitch(ctx)
	defer ks.Release()

	run := runner.New(
		signature.Default(cfg.File.Signatures...),
		runner.WithLogger(logger),
		runner.WithKillSwitch(ks),
	)
	wordlist := pipeline.ResolveWordlist(cfg.File.WordlistPath, cfg.File.WordlistFallback)
	if wordlist == "" {
		logger.Warn("no wordlist found, directory busting will be skipped",
			"wordlist_path", cfg.File.WordlistPath,
			"wordlist_fallback", cfg.File.WordlistFallback)
	}

	s := &session{
		cfg:      cfg,
		mode:     mode,
		exec:     run,
		notifier: notifier,
		db:       db,
		wordlist: wordlist,
		date:     time.Now(),
		out:      out,
		logger:   logger,
	}

	for _, target := range cfg.Targets {
		printBanner(out, cfg, target, notifier.Enabled())
	}

	bp := pipeline.NewBatchProcessor(s.newPipeline,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
		pipeline.WithCompletion(s.complete),
	)

	startTime := time.Now()
	reports, err := bp.ProcessBatch(ctx, cfg.Targets)

	if cfg.JSONReport {
		w := report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
		if _, werr := w.WriteBatch(reports); werr != nil {
			logger.Error("failed to write JSON report", "error", werr)
		}
	} else if len(cfg.Targets) > 1 {
		s.printf("\nBatch completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	}

	var blocked *runner.BlockedError
	if errors.As(err, &blocked) {
		s.printf("%s\n", failStyle.Render(fmt.Sprintf("⛔ Blocked at stage %s: %q. All targets halted.", blocked.Stage, blocked.Signature)))
	}
	return err
}

// session carries everything the per-target factory and the completion
// callback share. Batch workers call both concurrently.
type session struct {
	cfg      *config.Config
	mode     config.ModeConfig
	exec     *runner.Runner
	notifier *notify.Notifier
	db       *database.RunDB
	wordlist string
	date     time.Time
	out      io.Writer
	logger   *slog.Logger

	mu sync.Mutex
}

// printf writes to the session output under its lock.
func (s *session) printf(format string, a ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, a...)
}

// newPipeline is the pipeline.Factory of a start invocation.
func (s *session) newPipeline(ctx context.Context, target string) (*pipeline.Pipeline, *model.RunReport, error) {
	rc, err := artifact.NewRunContext(s.cfg.OutputDir, target, s.date)
	if err != nil {
		return nil, nil, err
	}

	env := pipeline.NewEnv(target, rc, s.mode, s.exec,
		pipeline.WithAlerter(s.notifier),
		pipeline.WithWordlist(s.wordlist),
		pipeline.WithEnvLogger(s.logger),
	)
	rep := model.NewRunReport(uuid.NewString(), target, s.cfg.Mode, rc.Dir)

	if s.db != nil {
		if err := s.db.StartRun(ctx, rep); err != nil {
			s.logger.Warn("failed to record run start", "target", target, "error", err)
		}
	}
	if err := s.notifier.Started(ctx, target, s.cfg.Mode); err != nil {
		s.logger.Warn("failed to send start notification", "target", target, "error", err)
	}

	p := pipeline.DefaultPipeline(env,
		pipeline.WithLogger(s.logger),
		pipeline.WithObserver(s.progress(ctx, rep.ID, rc)),
	)
	s.printf("📂 %s: %s\n", target, rc.Dir)
	return p, rep, nil
}

// progress returns an observer that prints one line per stage event and
// records finished stages in the history database.
func (s *session) progress(ctx context.Context, runID string, rc *artifact.RunContext) pipeline.Observer {
	return func(ev pipeline.Event) {
		if ev.Kind == pipeline.EventStarting {
			if !s.cfg.JSONReport {
				s.printf("[%d/%d] %s: %s ...\n", ev.Index, ev.Total, ev.Target, ev.Step)
			}
			return
		}
		if ev.Record == nil {
			return
		}
		if s.db != nil {
			// The run context may already be cancelled by a block; the
			// record must still land.
			if err := s.db.RecordStage(context.WithoutCancel(ctx), runID, *ev.Record); err != nil {
				s.logger.Warn("failed to record stage", "stage", ev.Step, "error", err)
			}
		}
		if !s.cfg.JSONReport {
			s.printf("%s\n", progressLine(ev, rc.Size()))
		}
	}
}

// progressLine formats a finished or skipped stage.
func progressLine(ev pipeline.Event, dirSize int64) string {
	rec := ev.Record
	line := fmt.Sprintf("[%d/%d] %s: %s %s", ev.Index, ev.Total, ev.Target, ev.Step, stageBadge(rec.Status))
	switch {
	case rec.Status == model.StageSkipped && rec.Diagnostic != "":
		line += " (" + rec.Diagnostic + ")"
	case rec.Attempts > 1:
		line += fmt.Sprintf(" (%d attempts, %d throttled)", rec.Attempts, rec.Throttles)
	}
	if rec.Artifact != "" {
		line += fmt.Sprintf(" · %s lines", humanize.Comma(int64(rec.Lines)))
	}
	return line + fmt.Sprintf(" · %s on disk", humanize.Bytes(uint64(max(dirSize, 0))))
}

// stageBadge renders a stage status for the progress line.
func stageBadge(status model.StageStatus) string {
	switch status {
	case model.StageSuccess:
		return okStyle.Render("✓ done")
	case model.StageSkipped:
		return dimStyle.Render("⏩ skipped")
	case model.StageTimedOut:
		return warnStyle.Render("⏱ timed out")
	case model.StageBlocked:
		return failStyle.Render("⛔ blocked")
	default:
		return failStyle.Render("✗ failed")
	}
}

// complete is the batch completion callback: it stores the final run
// state, writes the run summaries, prints the summary and sends the final
// notification.
func (s *session) complete(rep *model.RunReport, runErr error) {
	if rep == nil {
		s.logger.Error("target could not start", "error", runErr)
		return
	}
	ctx := context.Background()

	if s.db != nil {
		if err := s.db.FinishRun(ctx, rep); err != nil {
			s.logger.Warn("failed to record run result", "target", rep.Target, "error", err)
		}
	}

	summary, err := report.WriteSummaryFile(rep, getVersion())
	if err != nil {
		s.logger.Warn("failed to write summary", "target", rep.Target, "error", err)
	}

	if !s.cfg.JSONReport {
		s.mu.Lock()
		w := report.NewSimpleWriter(s.out, report.WithVerbose(s.cfg.Verbose))
		if _, err := w.Write(rep); err != nil {
			s.logger.Error("report failed", "target", rep.Target, "error", err)
		}
		if rep.Status == model.RunCompleted {
			fmt.Fprintln(s.out, okStyle.Render("✅ MISSION COMPLETE!"))
		}
		if summary != "" {
			fmt.Fprintf(s.out, "📄 Summary: %s\n", summary)
		}
		fmt.Fprintf(s.out, "📂 Report Directory: %s\n\n", rep.Dir)
		s.mu.Unlock()
	}

	s.notifier.Report(ctx, rep)
}
