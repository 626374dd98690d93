package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UpsertGenerationRecord commits a generation attempt to the ledger. At most
// one record is stored per (shortcode, message_id) pair: a replay with the
// same pair is a no-op that returns the already-stored record, so a crashed
// and retried pipeline run never double-stores or double-counts cost.
func (s *Store) UpsertGenerationRecord(ctx context.Context, shortcode string, record *GenerationRecord) (*GenerationRecord, bool, error) {
	if record == nil {
		return nil, false, errors.New("record is nil")
	}
	shortcode = strings.TrimSpace(shortcode)
	if shortcode == "" {
		return nil, false, errors.New("shortcode is required")
	}
	if strings.TrimSpace(record.MessageID) == "" {
		return nil, false, errors.New("message id is required")
	}
	if strings.TrimSpace(record.Variation) == "" {
		return nil, false, errors.New("variation is required")
	}
	if record.Options.Cost < 0 {
		return nil, false, fmt.Errorf("cost must be non-negative, got %f", record.Options.Cost)
	}
	if record.Succeeded() == (record.ErrorKind != "") {
		return nil, false, errors.New("record must carry exactly one of blob_ref or error")
	}

	optionsJSON, err := json.Marshal(record.Options)
	if err != nil {
		return nil, false, fmt.Errorf("marshal options: %w", err)
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO generations (
            shortcode, message_id, variation, prompt, created_at,
            blob_ref, source_url, error_kind, error_message, options_json, cost
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (shortcode, message_id) DO NOTHING`,
		shortcode,
		record.MessageID,
		record.Variation,
		record.Prompt,
		createdAt.UTC().Format(time.RFC3339Nano),
		nullableString(record.BlobRef),
		nullableString(record.SourceURL),
		nullableString(record.ErrorKind),
		nullableString(record.ErrorMessage),
		string(optionsJSON),
		record.Options.Cost,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert generation record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	stored, err := s.getGenerationRecord(ctx, shortcode, record.MessageID)
	if err != nil {
		return nil, false, err
	}
	return stored, affected > 0, nil
}

// GenerationsFor returns the generation record sequence for a post, ordered by
// creation time (append order).
func (s *Store) GenerationsFor(ctx context.Context, shortcode string) ([]*GenerationRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+generationColumns+` FROM generations WHERE shortcode = ? ORDER BY created_at, id`,
		shortcode,
	)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	var records []*GenerationRecord
	for rows.Next() {
		record, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// AttemptCount returns the number of recorded attempts for a post+variation
// pair. The next attempt number is AttemptCount+1.
func (s *Store) AttemptCount(ctx context.Context, shortcode, variation string) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM generations WHERE shortcode = ? AND variation = ?`,
		shortcode,
		variation,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

// BlobInUse reports whether any generation record or post still references the
// blob. The blob store's delete contract requires this check before removal.
func (s *Store) BlobInUse(ctx context.Context, blobRef string) (bool, error) {
	if strings.TrimSpace(blobRef) == "" {
		return false, nil
	}
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT
            (SELECT COUNT(1) FROM generations WHERE blob_ref = ?) +
            (SELECT COUNT(1) FROM posts WHERE original_blob = ?)`,
		blobRef,
		blobRef,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check blob references: %w", err)
	}
	return count > 0, nil
}

func (s *Store) getGenerationRecord(ctx context.Context, shortcode, messageID string) (*GenerationRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+generationColumns+` FROM generations WHERE shortcode = ? AND message_id = ?`,
		shortcode,
		messageID,
	)
	record, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("generation record %s/%s vanished after upsert", shortcode, messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("get generation record: %w", err)
	}
	return record, nil
}

const generationColumns = "id, shortcode, message_id, variation, prompt, created_at, blob_ref, source_url, error_kind, error_message, options_json, cost"

func scanGeneration(scanner interface{ Scan(dest ...any) error }) (*GenerationRecord, error) {
	var (
		id           int64
		shortcode    string
		messageID    string
		variation    string
		prompt       string
		createdRaw   sql.NullString
		blobRef      sql.NullString
		sourceURL    sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		optionsJSON  string
		cost         float64
	)

	if err := scanner.Scan(
		&id,
		&shortcode,
		&messageID,
		&variation,
		&prompt,
		&createdRaw,
		&blobRef,
		&sourceURL,
		&errorKind,
		&errorMessage,
		&optionsJSON,
		&cost,
	); err != nil {
		return nil, err
	}

	record := &GenerationRecord{
		ID:           id,
		Shortcode:    shortcode,
		MessageID:    messageID,
		Variation:    variation,
		Prompt:       prompt,
		BlobRef:      blobRef.String,
		SourceURL:    sourceURL.String,
		ErrorKind:    errorKind.String,
		ErrorMessage: errorMessage.String,
	}
	if err := json.Unmarshal([]byte(optionsJSON), &record.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	record.Options.Cost = cost
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	return record, nil
}
