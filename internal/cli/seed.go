package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koustreak/greeny/internal/records"
	"github.com/koustreak/greeny/internal/seed"
)

func newSeedCommand() *cobra.Command {
	var (
		companies int
		seedValue uint64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert generated sample companies and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, configFrom(ctx))
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := seed.New(records.New(a.db), seedValue).Ingest(ctx, companies)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d companies, %d emissions records, %d metric records\n",
				summary.Message, summary.CompaniesCreated, summary.EmissionsRecordsCreated, summary.MetricRecordsCreated)
			return nil
		},
	}
	cmd.Flags().IntVar(&companies, "companies", seed.DefaultCompanies, "number of companies to create")
	cmd.Flags().Uint64Var(&seedValue, "seed", 0, "random seed for reproducible data (0 picks one)")
	return cmd
}
