package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the command line",
		Example: `  greeny ask "How many companies are there?"
  greeny ask --provider groq "Show total emissions by company for 2023"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, configFrom(ctx))
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.pipeline(ctx, nil)
			if err != nil {
				return err
			}
			trace, err := p.Run(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if verbose {
				_, _ = fmt.Fprintf(out, "SQL: %s\n", trace.SQL)
				_, _ = fmt.Fprintf(out, "Result:\n%s\n", trace.Result)
				_, _ = fmt.Fprintf(out, "Outcome: %s in %s\n\n", trace.Outcome, trace.Timings.Total())
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(trace.Answer)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the generated SQL and its result")
	cmd.Flags().String("provider", "", "model provider (anthropic|gemini|openai|groq|ollama)")
	cmd.Flags().String("model", "", "model name")
	cmd.Flags().Int("top-k", 0, "row limit the generated SQL is asked to respect")
	return cmd
}
