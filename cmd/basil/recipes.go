package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hammamikhairi/basil/internal/domain"
)

func newRecipesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recipes [query]",
		Short: "List or search available recipes",
		Args:  cobra.ArbitraryArgs,
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

			var list []domain.RecipeSummary
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				list, err = rt.recipes.List(cmd.Context())
			} else {
				list, err = rt.recipes.Search(cmd.Context(), query)
			}
			if err != nil {
				return fmt.Errorf("listing recipes: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No recipes found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTEPS\tTIME\tTAGS")
			for _, r := range list {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.Title, r.StepCount, formatMinutes(r.TotalSecs), strings.Join(r.Tags, ", "))
			}
			return w.Flush()
		},
	}
}

// formatMinutes renders a duration in seconds as "12m" or "1h05m".
func formatMinutes(seconds int) string {
	m := (seconds + 59) / 60
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", m/60, m%60)
}
