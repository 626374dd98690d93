package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"easel/internal/config"
	"easel/internal/services"
)

// Store manages ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "ledger.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// RegisterPost records a newly discovered post. Registration is idempotent on
// shortcode; a repeated call returns the existing post untouched.
func (s *Store) RegisterPost(ctx context.Context, shortcode, caption string) (*SourcePost, error) {
	shortcode = strings.TrimSpace(shortcode)
	if shortcode == "" {
		return nil, errors.New("shortcode is required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO posts (shortcode, caption, publish_status, discovered_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (shortcode) DO NOTHING`,
		shortcode,
		nullableString(caption),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}

	return s.GetPost(ctx, shortcode)
}

// GetPost fetches a post by shortcode. Missing posts surface ErrNotFound.
func (s *Store) GetPost(ctx context.Context, shortcode string) (*SourcePost, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE shortcode = ?`, shortcode)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "ledger", "get post", shortcode, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// SetOriginalBlob attaches the scraped source image reference to a post.
func (s *Store) SetOriginalBlob(ctx context.Context, shortcode, blobRef string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE posts SET original_blob = ?, updated_at = ? WHERE shortcode = ?`,
		nullableString(blobRef),
		time.Now().UTC().Format(time.RFC3339Nano),
		shortcode,
	)
	if err != nil {
		return fmt.Errorf("set original blob: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "ledger", "set original blob", shortcode, nil)
	}
	return nil
}

// ListPosts returns posts filtered by publish status (or all posts when no
// status is provided), ordered by discovery time then shortcode.
func (s *Store) ListPosts(ctx context.Context, statuses ...PublishStatus) ([]*SourcePost, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + postColumns + ` FROM posts`
	orderClause := ` ORDER BY discovered_at, shortcode`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE publish_status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
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

const postColumns = "shortcode, caption, publish_status, external_post_id, original_blob, discovered_at, updated_at"

func scanPost(scanner interface{ Scan(dest ...any) error }) (*SourcePost, error) {
	var (
		shortcode     string
		caption       sql.NullString
		statusStr     string
		externalID    sql.NullString
		originalBlob  sql.NullString
		discoveredRaw sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&shortcode,
		&caption,
		&statusStr,
		&externalID,
		&originalBlob,
		&discoveredRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	post := &SourcePost{
		Shortcode:      shortcode,
		Caption:        caption.String,
		PublishStatus:  PublishStatus(statusStr),
		ExternalPostID: externalID.String,
		OriginalBlob:   originalBlob.String,
	}
	if discovered, err := parseTimeString(discoveredRaw.String); err == nil {
		post.DiscoveredAt = discovered
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		post.UpdatedAt = updated
	}
	return post, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
