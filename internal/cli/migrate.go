package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koustreak/greeny/internal/database/migrations"
)

func newMigrateCommand() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, configFrom(ctx))
			if err != nil {
				return err
			}
			defer a.Close()

			if down {
				if err := migrations.Down(ctx, a.db.SQLDB(), a.db.Dialect()); err != nil {
					return err
				}
				a.describer.Invalidate()
			} else if err := a.migrate(ctx); err != nil {
				return err
			}

			v, err := migrations.Version(ctx, a.db.SQLDB(), a.db.Dialect())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	return cmd
}
