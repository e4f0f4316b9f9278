package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ordokr/lmssearch/internal/search"
	"github.com/ordokr/lmssearch/internal/ui"
)

func newSyncCmd(a *app) *cobra.Command {
	var (
		force bool
		plain bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push changed topics and categories into the search index",
		Long: `Run one sync cycle: read rows changed since each collection's last
successful sync and submit them to the search index in batches.

The cycle is skipped when the previous one finished less than
sync.min_interval ago. Use --force to run anyway.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
				ui.WithForcePlain(plain),
				ui.WithNoColor(a.colorsDisabled()),
			))

			e, err := a.openEngine(ctx, search.WithObserver(renderer))
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			if err := renderer.Start(ctx); err != nil {
				return err
			}
			stats, syncErr := e.svc.Sync(ctx, force)
			renderer.Complete(stats, syncErr)
			if err := renderer.Stop(); err != nil {
				a.logger.Warn("renderer_stop_failed", "error", err.Error())
			}
			return syncErr
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Run even if the last cycle finished within sync.min_interval")
	cmd.Flags().BoolVar(&plain, "plain", false, "Disable the interactive progress display")

	return cmd
}
