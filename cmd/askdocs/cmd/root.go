// Package cmd provides the CLI commands for askdocs.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/askdocs/internal/config"
	"github.com/Aman-CERP/askdocs/internal/logging"
	"github.com/Aman-CERP/askdocs/pkg/version"
)

var (
	configDir      string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the askdocs CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "askdocs",
		Short: "Question answering over your Confluence documentation",
		Long: `askdocs syncs a Confluence space into a local search corpus and answers
questions against it with tiered vector search and a lexical fallback.

Run 'askdocs sync' once, then 'askdocs query "your question"'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("askdocs version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory containing askdocs.yaml (default: current directory)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.askdocs/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(cmd *cobra.Command, args []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}

	_, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

// loadConfig loads and validates the configuration for a command run.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
