package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/autokuro/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/autokuro.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an autokuro configuration file",
		Long: `Init writes a configuration file with the ghost, ranger and blitz modes.

The generated file includes:
- Flag text for every tool in every mode
- A disabled Telegram notification block
- Wordlist paths for directory busting

Examples:
  # Create autokuro.yaml in the current directory
  autokuro init

  # Create the file in the XDG config directory
  autokuro init --global

  # Create config file at a specific path
  autokuro init -o config/config.yaml

  # Force overwrite existing file
  autokuro init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("global", "g", false,
		"Write to the XDG config directory instead of --output")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	global, err := cmd.Flags().GetBool("global")
	if err != nil {
		return err
	}
	if global {
		outputPath = filepath.Join(config.XDGConfigDir(), config.DefaultConfigFile)
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/autokuro.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// The file may hold a bot token, so it is private to the user.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Tool flags per mode (ghost, ranger, blitz)")
	fmt.Fprintln(out, "  - Telegram bot token and chat ID")
	fmt.Fprintln(out, "  - Wordlist paths")
	fmt.Fprintln(out, "\nThen run 'autokuro verify' to check that every tool is installed.")

	return nil
}
