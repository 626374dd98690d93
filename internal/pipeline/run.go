package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"easel/internal/ledger"
	"easel/internal/logging"
)

// BatchOptions shape one pipeline run.
type BatchOptions struct {
	// Limit caps how many posts the run selects. Zero means the configured
	// batch size.
	Limit int
	// Variations overrides the configured provider preference order.
	Variations []string
	// Retry selects posts whose previous attempts all failed instead of
	// posts that have never been attempted.
	Retry bool
}

// BatchSummary aggregates one run.
type BatchSummary struct {
	Selected  int
	Succeeded int
	Failed    int
	TotalCost float64
	Outcomes  []*Outcome
}

// RunBatch selects pending posts and processes them with bounded
// concurrency. Individual post failures are committed and counted, not
// propagated; the batch stops early only on interruption.
func (m *Manager) RunBatch(ctx context.Context, opts BatchOptions) (*BatchSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = m.cfg.Generation.BatchSize
	}

	var (
		posts []*ledger.SourcePost
		err   error
	)
	if opts.Retry {
		posts, err = m.store.FindPostsNeedingRetry(ctx, limit)
	} else {
		posts, err = m.store.FindPostsNeedingGeneration(ctx, limit)
	}
	if err != nil {
		return nil, err
	}

	summary := &BatchSummary{Selected: len(posts)}
	if len(posts) == 0 {
		m.logger.Info("no posts pending generation")
		return summary, nil
	}
	m.logger.Info("starting generation batch",
		"selected", len(posts),
		"retry", opts.Retry,
		"max_concurrent", m.maxConcurrent())

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(m.maxConcurrent())
	for _, post := range posts {
		post := post
		group.Go(func() error {
			outcome, err := m.ProcessPost(groupCtx, post, opts.Variations...)
			mu.Lock()
			summary.Outcomes = append(summary.Outcomes, outcome)
			summary.TotalCost += outcome.Cost
			if outcome.Succeeded() {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
			mu.Unlock()
			return err
		})
	}
	if err := group.Wait(); err != nil {
		m.logger.Warn("generation batch interrupted", logging.Error(err))
		return summary, err
	}
	m.logger.Info("generation batch finished",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"total_cost", summary.TotalCost)
	return summary, nil
}

func (m *Manager) maxConcurrent() int {
	if m.cfg.Generation.MaxConcurrent > 0 {
		return m.cfg.Generation.MaxConcurrent
	}
	return 3
}
