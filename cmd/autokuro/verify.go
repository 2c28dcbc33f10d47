package main

import (
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/nao1215/autokuro/internal/config"
	"github.com/spf13/cobra"
)

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that every scanner the pipeline runs is installed",
		Long: `Verify looks up every executable the selected mode runs in PATH.

Without a configuration file the default executables are checked
(subfinder, naabu, httpx-toolkit, nuclei, feroxbuster, gau, katana,
paramspider, dalfox, trufflehog). 'autokuro start' runs the same check
unless --no-verify is given.

Examples:
  autokuro verify
  autokuro verify -m ghost --config ./autokuro.yaml`,
		Args: cobra.NoArgs,
		RunE: runVerifyCmd,
	}

	cmd.Flags().StringP("mode", "m", config.DefaultMode,
		"Mode whose binary overrides are checked")
	cmd.Flags().String("config", "",
		"Configuration file path")

	return cmd
}

// runVerifyCmd executes the verify command.
func runVerifyCmd(cmd *cobra.Command, _ []string) error {
	modeName, err := cmd.Flags().GetString("mode")
	if err != nil {
		return err
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	mode, err := verifyMode(configPath, modeName)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if missing := missingTools(mode); len(missing) > 0 {
		printMissingTools(out, missing)
		return missingToolsError(missing)
	}
	fmt.Fprintln(out, okStyle.Render("✅ System Check: All dependencies ready."))
	return nil
}

// verifyMode returns the mode to check. Without an explicit path and
// without a discoverable configuration file, the defaults are used.
func verifyMode(configPath, name string) (config.ModeConfig, error) {
	if configPath == "" && config.FindConfigFile("") == "" {
		return config.ModeConfig{}, nil
	}
	file, _, err := config.Load(configPath)
	if err != nil {
		return config.ModeConfig{}, err
	}
	mode, err := file.Mode(name)
	if err != nil {
		return config.ModeConfig{}, config.NewConfigurationError("select mode", err)
	}
	return mode, nil
}

// missingTools returns the executables of mode that are not in PATH.
func missingTools(mode config.ModeConfig) []string {
	var missing []string
	for _, bin := range config.RequiredBinaries(mode) {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	return missing
}

// printMissingTools lists missing executables.
func printMissingTools(w io.Writer, missing []string) {
	fmt.Fprintln(w, failStyle.Render("❌ Error: Missing dependencies:"))
	for _, m := range missing {
		fmt.Fprintf(w, "   - %s\n", warnStyle.Render(m))
	}
	fmt.Fprintln(w, dimStyle.Render("\nPlease install them or check your PATH."))
}

// missingToolsError wraps config.ErrMissingTools for the given executables.
func missingToolsError(missing []string) error {
	return config.NewConfigurationError("verify tools",
		fmt.Errorf("%w: %s", config.ErrMissingTools, strings.Join(missing, ", ")))
}
