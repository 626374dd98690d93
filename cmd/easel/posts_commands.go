package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"easel/internal/blobstore"
	"easel/internal/config"
	"easel/internal/ledger"
)

func newPostsCommand(ctx *commandContext) *cobra.Command {
	postsCmd := &cobra.Command{
		Use:   "posts",
		Short: "Inspect and transition source posts",
	}

	postsCmd.AddCommand(newPostsListCommand(ctx))
	postsCmd.AddCommand(newPostsShowCommand(ctx))
	postsCmd.AddCommand(newPostsPublishCommand(ctx))
	postsCmd.AddCommand(newPostsFailCommand(ctx))
	postsCmd.AddCommand(newPostsRetryCommand(ctx))

	return postsCmd
}

func newPostsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				var statuses []ledger.PublishStatus
				if trimmed := strings.TrimSpace(statusFlag); trimmed != "" {
					status, ok := ledger.ParseStatus(trimmed)
					if !ok {
						return fmt.Errorf("unknown status %q (expected one of %v)", trimmed, ledger.AllStatuses())
					}
					statuses = append(statuses, status)
				}
				posts, err := store.ListPosts(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(posts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No posts registered.")
					return nil
				}
				rows := make([][]string, 0, len(posts))
				for _, post := range posts {
					hasImage := "no"
					if post.OriginalBlob != "" {
						hasImage = "yes"
					}
					rows = append(rows, []string{
						post.Shortcode,
						string(post.PublishStatus),
						hasImage,
						post.DiscoveredAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Shortcode", "Status", "Source Image", "Discovered"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by publish status (pending, published, failed)")
	return cmd
}

func newPostsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <shortcode>",
		Short: "Show a post and its generation history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shortcode := strings.TrimSpace(args[0])
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				post, err := store.GetPost(cmd.Context(), shortcode)
				if err != nil {
					return err
				}
				records, err := store.GenerationsFor(cmd.Context(), shortcode)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				printer := message.NewPrinter(language.English)
				fmt.Fprintf(out, "Shortcode:      %s\n", post.Shortcode)
				fmt.Fprintf(out, "Publish status: %s\n", post.PublishStatus)
				if post.ExternalPostID != "" {
					fmt.Fprintf(out, "External post:  %s\n", post.ExternalPostID)
				}
				if post.Caption != "" {
					fmt.Fprintf(out, "Caption:        %s\n", post.Caption)
				}
				if post.OriginalBlob != "" {
					fmt.Fprintf(out, "Source blob:    %s\n", post.OriginalBlob)
				}
				fmt.Fprintf(out, "Discovered:     %s\n", post.DiscoveredAt.Local().Format(time.DateTime))

				if len(records) == 0 {
					fmt.Fprintln(out, "\nNo generation attempts recorded.")
					return nil
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					outcome := "ok"
					detail := record.BlobRef
					if !record.Succeeded() {
						outcome = record.ErrorKind
						detail = record.ErrorMessage
					}
					rows = append(rows, []string{
						record.MessageID,
						record.Variation,
						outcome,
						printer.Sprintf("$%.4f", record.Options.Cost),
						detail,
					})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(
					[]string{"Message ID", "Variation", "Outcome", "Cost", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))

				summary := ledger.Summarize(records)
				printer.Fprintf(out, "%d attempts, %d succeeded, total cost $%.4f\n",
					summary.Attempts, summary.Successes, summary.TotalCost)
				return nil
			})
		},
	}
}

func newPostsPublishCommand(ctx *commandContext) *cobra.Command {
	var externalID string

	cmd := &cobra.Command{
		Use:   "publish <shortcode>",
		Short: "Mark a post as published",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shortcode := strings.TrimSpace(args[0])
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				post, err := store.MarkPublishStatus(cmd.Context(), shortcode, ledger.StatusPublished, strings.TrimSpace(externalID))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s as %s\n", post.Shortcode, post.PublishStatus)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&externalID, "post-id", "", "External post identifier recorded with the transition")
	return cmd
}

func newPostsRetryCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var variations []string

	cmd := &cobra.Command{
		Use:   "retry <shortcode>",
		Short: "Run a fresh generation attempt for one post",
		Long:  "Appends a new attempt with a fresh message id; earlier failure records are preserved. Posts that already have a successful generation are skipped unless --force is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shortcode := strings.TrimSpace(args[0])
			return ctx.withStores(func(cfg *config.Config, store *ledger.Store, blobs *blobstore.Store) error {
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}
				post, err := store.GetPost(cmd.Context(), shortcode)
				if err != nil {
					return err
				}
				if !force {
					records, err := store.GenerationsFor(cmd.Context(), shortcode)
					if err != nil {
						return err
					}
					for _, record := range records {
						if record.Succeeded() {
							return fmt.Errorf("%s already has a successful generation (%s); use --force to generate another", shortcode, record.MessageID)
						}
					}
				}

				manager, err := buildManager(cfg, store, blobs, logger)
				if err != nil {
					return err
				}
				outcome, runErr := manager.ProcessPost(cmd.Context(), post, variations...)
				out := cmd.OutOrStdout()
				printer := message.NewPrinter(language.English)
				if outcome.Succeeded() {
					printer.Fprintf(out, "Generated %s via %s (cost $%.4f)\n",
						outcome.Record.BlobRef, outcome.Record.Variation, outcome.Cost)
					return nil
				}
				if runErr != nil {
					return runErr
				}
				return fmt.Errorf("generation failed for %s: %w", shortcode, outcome.Err)
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Generate even if a successful attempt already exists")
	cmd.Flags().StringSliceVar(&variations, "variation", nil, "Override the provider fallback order (repeatable)")
	return cmd
}

func newPostsFailCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fail <shortcode>",
		Short: "Mark a post's publication as failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shortcode := strings.TrimSpace(args[0])
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				post, err := store.MarkPublishStatus(cmd.Context(), shortcode, ledger.StatusFailed, "")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s as %s\n", post.Shortcode, post.PublishStatus)
				return nil
			})
		},
	}
}
