package ledger

import (
	"context"
	"fmt"
	"time"
)

// FindPostsNeedingGeneration returns posts whose aggregate is empty or absent,
// oldest discovery first with shortcode lexical order breaking ties.
func (s *Store) FindPostsNeedingGeneration(ctx context.Context, limit int) ([]*SourcePost, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+prefixedPostColumns+` FROM posts p
         LEFT JOIN generations g ON g.shortcode = p.shortcode
         WHERE g.id IS NULL
         ORDER BY p.discovered_at, p.shortcode
         LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts needing generation: %w", err)
	}
	defer rows.Close()

	var posts []*SourcePost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// FindPostsNeedingRetry returns posts that have attempts but no successful
// one, oldest first. Retried posts receive a fresh attempt number; prior
// failure records are preserved.
func (s *Store) FindPostsNeedingRetry(ctx context.Context, limit int) ([]*SourcePost, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+prefixedPostColumns+` FROM posts p
         WHERE EXISTS (SELECT 1 FROM generations g WHERE g.shortcode = p.shortcode)
           AND NOT EXISTS (SELECT 1 FROM generations g WHERE g.shortcode = p.shortcode AND g.blob_ref IS NOT NULL)
         ORDER BY p.discovered_at, p.shortcode
         LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts needing retry: %w", err)
	}
	defer rows.Close()

	var posts []*SourcePost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// AggregateCost sums generation cost over records matching the filter. The sum
// reads committed records at a single point; idempotently deduplicated replays
// contribute exactly once.
func (s *Store) AggregateCost(ctx context.Context, filter CostFilter) (float64, error) {
	query := `SELECT COALESCE(SUM(cost), 0) FROM generations WHERE 1=1`
	args := make([]any, 0, 3)
	if filter.Shortcode != "" {
		query += ` AND shortcode = ?`
		args = append(args, filter.Shortcode)
	}
	if filter.Variation != "" {
		query += ` AND variation = ?`
		args = append(args, filter.Variation)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
	}

	var total float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("aggregate cost: %w", err)
	}
	return total, nil
}

// Completion recomputes ledger-wide completeness from the record sequences.
// Nothing is cached; a post counts as having an image only when at least one
// record succeeded.
func (s *Store) Completion(ctx context.Context) (CompletionStats, error) {
	var stats CompletionStats
	err := s.db.QueryRowContext(
		ctx,
		`SELECT
            COUNT(1),
            COUNT(CASE WHEN EXISTS (SELECT 1 FROM generations g WHERE g.shortcode = p.shortcode) THEN 1 END),
            COUNT(CASE WHEN EXISTS (SELECT 1 FROM generations g WHERE g.shortcode = p.shortcode AND g.blob_ref IS NOT NULL) THEN 1 END)
         FROM posts p`,
	).Scan(&stats.TotalPosts, &stats.PostsWithRecords, &stats.PostsWithImages)
	if err != nil {
		return CompletionStats{}, fmt.Errorf("completion stats: %w", err)
	}
	stats.PostsNeedingImages = stats.TotalPosts - stats.PostsWithRecords
	return stats, nil
}

// VariationCounts returns successful generation counts grouped by variation.
func (s *Store) VariationCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT variation, COUNT(1) FROM generations WHERE blob_ref IS NOT NULL GROUP BY variation`,
	)
	if err != nil {
		return nil, fmt.Errorf("variation counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var variation string
		var count int
		if err := rows.Scan(&variation, &count); err != nil {
			return nil, err
		}
		counts[variation] = count
	}
	return counts, rows.Err()
}

// Stats returns a count of posts grouped by publish status.
func (s *Store) Stats(ctx context.Context) (map[PublishStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT publish_status, COUNT(1) FROM posts GROUP BY publish_status`)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[PublishStatus]int)
	for rows.Next() {
		var status PublishStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const prefixedPostColumns = "p.shortcode, p.caption, p.publish_status, p.external_post_id, p.original_blob, p.discovered_at, p.updated_at"
