package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ordokr/lmssearch/internal/store"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the forum schema in the datastore",
		Long: `Create the categories and topics tables in the configured SQLite
datastore. Existing tables are left untouched, so it is safe to rerun.

Production LMS databases already have this schema; migrate is meant for
development and test databases.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := store.OpenSQLite(a.cfg.Datastore.Driver, a.cfg.Datastore.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = ds.Close() }()

			if err := ds.Migrate(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("schema_migrated", slog.String("datastore", a.cfg.Datastore.DSN))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Schema ready: %s\n", a.cfg.Datastore.DSN)
			return err
		},
	}
}
