// Package report assembles read-only summaries of the ledger for the CLI.
package report

import (
	"context"
	"time"

	"easel/internal/ledger"
)

// Summary is a point-in-time view of generation progress and spend.
type Summary struct {
	TotalPosts           int
	PostsWithRecords     int
	PostsWithImages      int
	PostsNeedingImages   int
	CompletionPercentage float64
	TotalCost            float64
	RecentCost           float64
	VariationCounts      map[string]int
	PublishCounts        map[ledger.PublishStatus]int
	GeneratedAt          time.Time
}

// recentWindow bounds the RecentCost aggregate.
const recentWindow = 30 * 24 * time.Hour

// Build gathers every summary aggregate in one pass over the store.
func Build(ctx context.Context, store *ledger.Store) (*Summary, error) {
	completion, err := store.Completion(ctx)
	if err != nil {
		return nil, err
	}
	totalCost, err := store.AggregateCost(ctx, ledger.CostFilter{})
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	recentCost, err := store.AggregateCost(ctx, ledger.CostFilter{Since: now.Add(-recentWindow)})
	if err != nil {
		return nil, err
	}
	variations, err := store.VariationCounts(ctx)
	if err != nil {
		return nil, err
	}
	publishCounts, err := store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Summary{
		TotalPosts:           completion.TotalPosts,
		PostsWithRecords:     completion.PostsWithRecords,
		PostsWithImages:      completion.PostsWithImages,
		PostsNeedingImages:   completion.PostsNeedingImages,
		CompletionPercentage: completion.CompletionPercentage(),
		TotalCost:            totalCost,
		RecentCost:           recentCost,
		VariationCounts:      variations,
		PublishCounts:        publishCounts,
		GeneratedAt:          now,
	}, nil
}
