package ledger

import (
	"context"
	"fmt"
	"time"

	"easel/internal/services"
)

// MarkPublishStatus transitions a post's publish status. Transitions out of a
// terminal state are rejected with the invalid-transition error and leave the
// stored status unchanged. externalPostID, when non-empty, records the
// platform's identifier for the published post.
func (s *Store) MarkPublishStatus(ctx context.Context, shortcode string, status PublishStatus, externalPostID string) (*SourcePost, error) {
	if _, ok := ParseStatus(string(status)); !ok {
		return nil, services.Wrap(services.ErrInvalidRequest, "ledger", "mark publish status", fmt.Sprintf("unknown status %q", status), nil)
	}

	post, err := s.GetPost(ctx, shortcode)
	if err != nil {
		return nil, err
	}

	if !CanTransition(post.PublishStatus, status) {
		return nil, services.Wrap(
			services.ErrInvalidTransition,
			"ledger",
			"mark publish status",
			fmt.Sprintf("%s: %s -> %s", shortcode, post.PublishStatus, status),
			nil,
		)
	}

	now := time.Now().UTC()
	query := `UPDATE posts SET publish_status = ?, updated_at = ?`
	args := []any{status, now.Format(time.RFC3339Nano)}
	if externalPostID != "" {
		query += `, external_post_id = ?`
		args = append(args, externalPostID)
	}
	// The status guard repeats in SQL so a concurrent transition cannot
	// slip through between read and write.
	query += ` WHERE shortcode = ? AND publish_status = ?`
	args = append(args, shortcode, post.PublishStatus)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update publish status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, services.Wrap(
			services.ErrInvalidTransition,
			"ledger",
			"mark publish status",
			fmt.Sprintf("%s: concurrent transition detected", shortcode),
			nil,
		)
	}

	return s.GetPost(ctx, shortcode)
}
