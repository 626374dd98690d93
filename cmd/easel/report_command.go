package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"easel/internal/config"
	"easel/internal/ledger"
	"easel/internal/report"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show generation progress and spend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				summary, err := report.Build(cmd.Context(), store)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				printer := message.NewPrinter(language.English)

				printer.Fprintf(out, "Posts:       %d total, %d with images, %d still needing images\n",
					summary.TotalPosts, summary.PostsWithImages, summary.PostsNeedingImages)
				printer.Fprintf(out, "Completion:  %.1f%%\n", summary.CompletionPercentage)
				printer.Fprintf(out, "Spend:       $%.4f total, $%.4f in the last 30 days\n",
					summary.TotalCost, summary.RecentCost)

				if len(summary.PublishCounts) > 0 {
					fmt.Fprintln(out)
					for _, status := range ledger.AllStatuses() {
						if count := summary.PublishCounts[status]; count > 0 {
							printer.Fprintf(out, "  %-10s %d\n", status, count)
						}
					}
				}

				if len(summary.VariationCounts) > 0 {
					variations := make([]string, 0, len(summary.VariationCounts))
					for variation := range summary.VariationCounts {
						variations = append(variations, variation)
					}
					sort.Strings(variations)

					rows := make([][]string, 0, len(variations))
					for _, variation := range variations {
						rows = append(rows, []string{variation, printer.Sprintf("%d", summary.VariationCounts[variation])})
					}
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable(
						[]string{"Variation", "Images"},
						rows,
						[]columnAlignment{alignLeft, alignRight},
					))
				}
				return nil
			})
		},
	}
}
