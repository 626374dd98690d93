package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"easel/internal/blobstore"
	"easel/internal/config"
	"easel/internal/ingest"
	"easel/internal/ledger"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Register dropped posts from the ingest directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(func(cfg *config.Config, store *ledger.Store, blobs *blobstore.Store) error {
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}
				ingestor, err := ingest.New(store, blobs, cfg.Paths.IngestDir, logger)
				if err != nil {
					return err
				}
				summary, err := ingestor.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %d posts (%d skipped, %d failed) from %s\n",
					summary.Registered, summary.Skipped, summary.Failed, cfg.Paths.IngestDir)
				return nil
			})
		},
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var caption string
	var imagePath string

	cmd := &cobra.Command{
		Use:   "add <shortcode>",
		Short: "Register a single post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shortcode := strings.TrimSpace(args[0])
			return ctx.withStores(func(cfg *config.Config, store *ledger.Store, blobs *blobstore.Store) error {
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}
				ingestor, err := ingest.New(store, blobs, cfg.Paths.IngestDir, logger)
				if err != nil {
					return err
				}
				post, err := ingestor.Register(cmd.Context(), shortcode, caption, strings.TrimSpace(imagePath))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Registered %s (status %s)\n", post.Shortcode, post.PublishStatus)
				if post.OriginalBlob != "" {
					fmt.Fprintf(out, "Source image stored as %s\n", post.OriginalBlob)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&caption, "caption", "", "Post caption used for prompt fallback")
	cmd.Flags().StringVar(&imagePath, "image", "", "Path to the source image file")
	return cmd
}
