package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	serrors "github.com/ordokr/lmssearch/internal/errors"
	"github.com/ordokr/lmssearch/internal/logging"
	"github.com/ordokr/lmssearch/internal/ui"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	logFile string
}

// newLogsCmd creates the logs command.
func newLogsCmd(a *app) *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show server logs",
		Long: `Show recent records from the lmssearch log (~/.lmssearch/logs/server.log).

Examples:
  lmssearch logs                     # last 50 records
  lmssearch logs -f                  # follow new records
  lmssearch logs --level warn        # warnings and errors only
  lmssearch logs --filter sync_      # records matching a pattern`,
		Args: cobra.NoArgs,
		// Logs stay readable even when the configuration is broken.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, a, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level to show (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only show records matching this regular expression")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to the log file")

	return cmd
}

func runLogs(cmd *cobra.Command, a *app, opts logsOptions) error {
	var pattern *regexp.Regexp
	if opts.filter != "" {
		p, err := regexp.Compile(opts.filter)
		if err != nil {
			return serrors.ValidationError(serrors.ErrCodeInvalidInput, "invalid filter pattern", err)
		}
		pattern = p
	}

	path := opts.logFile
	if path == "" {
		path = logging.DefaultLogPath()
	}
	if _, err := os.Stat(path); err != nil {
		return serrors.ValidationError(serrors.ErrCodeInvalidInput, "log file not found: "+path, err).
			WithSuggestion("Run 'lmssearch serve' or any command with --debug to create it")
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: a.noColor || ui.DetectNoColor(),
	}, cmd.OutOrStdout())

	if !opts.follow {
		entries, err := viewer.Tail(path, opts.lines)
		if err != nil {
			return err
		}
		viewer.Print(entries)
		return nil
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return followLogs(ctx, cmd, viewer, path)
}

func followLogs(ctx context.Context, cmd *cobra.Command, viewer *logging.Viewer, path string) error {
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Following %s (Ctrl+C to stop)\n", path)

	entries := make(chan logging.Entry, 100)
	errCh := make(chan error, 1)
	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	for {
		select {
		case entry := <-entries:
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), viewer.Format(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}
