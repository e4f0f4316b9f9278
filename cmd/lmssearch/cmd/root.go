// Package cmd provides the CLI commands for lmssearch.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ordokr/lmssearch/internal/config"
	serrors "github.com/ordokr/lmssearch/internal/errors"
	"github.com/ordokr/lmssearch/internal/logging"
	"github.com/ordokr/lmssearch/internal/ui"
	"github.com/ordokr/lmssearch/pkg/version"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	configDir string
	debug     bool
	noColor   bool

	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

// NewRootCmd creates the root command for the lmssearch CLI.
func NewRootCmd() *cobra.Command {
	a := &app{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	cmd := &cobra.Command{
		Use:   "lmssearch",
		Short: "Keep a full-text search index in step with an LMS forum database",
		Long: `lmssearch mirrors forum topics and categories from the LMS datastore
into an embedded search index, then serves cached, typo-tolerant queries
from the command line or to AI assistants over MCP.

Typical flow:
  lmssearch migrate          # create the schema (development databases)
  lmssearch sync             # push changed rows into the index
  lmssearch search topics "ownership"
  lmssearch serve            # MCP server with adaptive background sync`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			a.teardown()
		},
	}
	cmd.SetVersionTemplate("lmssearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&a.configDir, "config-dir", ".", "Directory containing "+config.ProjectConfigName)
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging to stderr and ~/.lmssearch/logs/")
	cmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newMigrateCmd(a))
	cmd.AddCommand(newSyncCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newHealthCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newLogsCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads configuration and starts logging. serve keeps stderr quiet
// unless --debug is set.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return serrors.ConfigError("failed to load configuration", err).
			WithSuggestion("Check " + config.ProjectConfigName + " and LMSSEARCH_* environment variables")
	}
	a.cfg = cfg

	level := cfg.Server.LogLevel
	if a.debug {
		level = "debug"
	}
	logCfg := logging.ServeConfig(level)
	logCfg.WriteToStderr = a.debug
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	a.logger = logger
	a.cleanup = cleanup
	slog.SetDefault(logger)

	logger.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("version", version.Version))
	return nil
}

func (a *app) teardown() {
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
}

func (a *app) colorsDisabled() bool {
	return a.noColor || ui.DetectNoColor()
}

// Execute runs the root command and prints failures with their hints.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, serrors.FormatForCLI(err))
	}
	return err
}
