package cli

import (
	"github.com/spf13/cobra"

	"github.com/koustreak/greeny/internal/pipeline"
	"github.com/koustreak/greeny/internal/records"
	"github.com/koustreak/greeny/internal/seed"
	"github.com/koustreak/greeny/internal/server"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the records endpoints, the question answering endpoints and the
Prometheus metrics until interrupted.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "listen address (default :8000)")
	cmd.Flags().Bool("migrate", false, "apply pending migrations before serving")
	cmd.Flags().String("provider", "", "model provider (anthropic|gemini|openai|groq|ollama)")
	cmd.Flags().String("model", "", "model name")
	cmd.Flags().Int("top-k", 0, "row limit the generated SQL is asked to respect")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := configFrom(ctx)

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.Migrate {
		if err := a.migrate(ctx); err != nil {
			return err
		}
	}

	arc, err := a.archive(ctx)
	if err != nil {
		return err
	}
	var rec pipeline.Recorder
	deps := server.Deps{Logger: a.log}
	if arc != nil {
		rec = arc
		deps.Transcripts = arc
	}

	p, err := a.pipeline(ctx, rec)
	if err != nil {
		return err
	}

	store := records.New(a.db)
	deps.Answerer = p
	deps.Schema = a.describer
	deps.Records = store
	deps.Seeder = seed.New(store, 0)
	deps.DB = a.db

	srv := server.New(deps, server.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
	})
	return srv.Run(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
}
