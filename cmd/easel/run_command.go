package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"easel/internal/blobstore"
	"easel/internal/config"
	"easel/internal/describe"
	"easel/internal/ledger"
	"easel/internal/pipeline"
	"easel/internal/providers/replicate"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var retryPass bool
	var variations []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate content for pending posts",
		Long:  "Selects posts without generation records, describes their source images, and commits generated content to the ledger. With --retry it selects posts whose attempts all failed instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(func(cfg *config.Config, store *ledger.Store, blobs *blobstore.Store) error {
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}

				lock := flock.New(filepath.Join(cfg.Paths.DataDir, "easel.lock"))
				locked, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire run lock: %w", err)
				}
				if !locked {
					return fmt.Errorf("another easel run is already in progress (lock %s)", lock.Path())
				}
				defer lock.Unlock()

				manager, err := buildManager(cfg, store, blobs, logger)
				if err != nil {
					return err
				}

				runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				summary, runErr := manager.RunBatch(runCtx, pipeline.BatchOptions{
					Limit:      limit,
					Variations: variations,
					Retry:      retryPass,
				})
				if summary != nil {
					printBatchSummary(cmd, summary)
				}
				return runErr
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of posts to process (default: configured batch size)")
	cmd.Flags().BoolVar(&retryPass, "retry", false, "Select posts whose previous attempts all failed")
	cmd.Flags().StringSliceVar(&variations, "variation", nil, "Override the provider fallback order (repeatable)")
	return cmd
}

func buildManager(cfg *config.Config, store *ledger.Store, blobs *blobstore.Store, logger *slog.Logger) (*pipeline.Manager, error) {
	registry, client, err := replicate.NewRegistry(cfg.Replicate, cfg.Generation.Variations)
	if err != nil {
		return nil, err
	}
	analyzer := describe.NewAnalyzer(client, logger)
	return pipeline.NewManager(cfg, store, blobs, registry, analyzer, logger)
}

func printBatchSummary(cmd *cobra.Command, summary *pipeline.BatchSummary) {
	out := cmd.OutOrStdout()
	printer := message.NewPrinter(language.English)

	rows := make([][]string, 0, len(summary.Outcomes))
	for _, outcome := range summary.Outcomes {
		status := string(outcome.Stage)
		detail := ""
		switch {
		case outcome.Succeeded():
			detail = outcome.Record.Variation
		case outcome.Err != nil:
			detail = outcome.Err.Error()
		}
		rows = append(rows, []string{
			outcome.Shortcode,
			status,
			detail,
			printer.Sprintf("$%.4f", outcome.Cost),
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"Shortcode", "Status", "Detail", "Cost"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		))
	}
	printer.Fprintf(out, "Processed %d posts: %d succeeded, %d failed, total cost $%.4f\n",
		summary.Selected, summary.Succeeded, summary.Failed, summary.TotalCost)
}
