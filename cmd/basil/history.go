package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past cook-alongs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rt, err := newBaseRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			records, err := rt.history.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "Nothing cooked yet.")
				return nil
			}
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ENDED\tRECIPE\tOUTCOME\tSTEPS\tTOOK")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
					rec.EndedAt.Local().Format("2006-01-02 15:04"),
					rec.RecipeTitle,
					rec.Outcome,
					rec.StepsVisited, rec.StepCount,
					rec.Elapsed().Round(time.Second),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show at most this many entries (0 for all)")
	return cmd
}
