package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ordokr/lmssearch/internal/backend"
	"github.com/ordokr/lmssearch/internal/ui"
)

func newStatusCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index locations, document counts and backend state",
		Long: `Show where the datastore and indexes live, how many documents each
index holds and whether the backend answers.

Sync bookkeeping lives in the process that ran the cycles. Use the
sync_status MCP tool to read it from a running server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := a.openEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			info := ui.StatusInfo{
				Datastore: a.cfg.Datastore.DSN,
				DataDir:   a.cfg.Backend.DataDir,
				Backend:   "unavailable",
				Sync:      e.svc.Stats(),
			}
			healthCtx, cancel := context.WithTimeout(ctx, a.cfg.Backend.HealthTimeout)
			defer cancel()
			if health, err := e.backend.Health(healthCtx); err == nil {
				info.Backend = health.Status
				info.Documents = health.Documents
			}
			if info.Backend != backend.StatusAvailable {
				info.Backend = "unavailable"
			}

			renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), a.colorsDisabled())
			if jsonOutput {
				return renderer.RenderJSON(info)
			}
			return renderer.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}
