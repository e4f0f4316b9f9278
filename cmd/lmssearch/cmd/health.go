package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	serrors "github.com/ordokr/lmssearch/internal/errors"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the search backend is available",
		Long:  `Probe the search backend within backend.health_timeout. Exits non-zero when it does not answer.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			if !e.svc.HealthCheck(cmd.Context()) {
				return serrors.New(serrors.ErrCodeBackendUnavailable, "search backend is unavailable", nil).
					WithSuggestion("Run with --debug and check ~/.lmssearch/logs/server.log")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "backend: available")
			return err
		},
	}
}
