package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nao1215/autokuro/internal/config"
	"github.com/nao1215/autokuro/internal/pipeline"
	"github.com/nao1215/autokuro/internal/runner"
	"github.com/spf13/cobra"
)

// Exit statuses. A block outranks the other failures because it stops
// every target of the batch.
const (
	exitOK            = 0
	exitFailure       = 1
	exitConfiguration = 2
	exitNoViable      = 3
	exitBlocked       = 4
)

// NewRootCmd creates the root command for autokuro.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autokuro",
		Short: "Resilient reconnaissance pipeline runner",
		Long: `autokuro chains external reconnaissance tools (subfinder, naabu, httpx,
nuclei, feroxbuster, gau, katana, paramspider, dalfox, trufflehog) into one
pipeline over a root domain.

Stages exchange results through files in <output>/<target>/<date>. A stage
whose output already exists is skipped, so re-running the same command
resumes an interrupted scan. Timed-out and failing tools are retried with
reduced rate and concurrency flags; a WAF or rate-limit response halts the
whole run.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewStartCmd())
	cmd.AddCommand(NewVerifyCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with a status that tells a
// caller why the run stopped.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps an error returned by a command to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var (
		blocked  *runner.BlockedError
		cfgErr   *config.ConfigurationError
		noViable *pipeline.NoViableTargetError
	)
	switch {
	case errors.As(err, &blocked):
		return exitBlocked
	case errors.As(err, &cfgErr):
		return exitConfiguration
	case errors.As(err, &noViable):
		return exitNoViable
	default:
		return exitFailure
	}
}
