package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"easel/internal/ledger"
	"easel/internal/services"
	"easel/internal/testsupport"
)

func successRecord(messageID, variation string, cost float64) *ledger.GenerationRecord {
	return &ledger.GenerationRecord{
		MessageID: messageID,
		Variation: variation,
		Prompt:    "a branded artwork",
		BlobRef:   "blob-" + messageID,
		SourceURL: "https://delivery.example/" + messageID,
		Options: ledger.RecordOptions{
			Automated: true,
			Provider:  "replicate",
			Model:     variation,
			Pipeline:  "describe_generate_v1",
			Cost:      cost,
		},
	}
}

func failureRecord(messageID, variation, kind string, cost float64) *ledger.GenerationRecord {
	return &ledger.GenerationRecord{
		MessageID:    messageID,
		Variation:    variation,
		Prompt:       "a branded artwork",
		ErrorKind:    kind,
		ErrorMessage: "provider rejected the attempt",
		Options: ledger.RecordOptions{
			Automated: true,
			Provider:  "replicate",
			Model:     variation,
			Pipeline:  "describe_generate_v1",
			Cost:      cost,
		},
	}
}

func TestRegisterPostIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, err := store.RegisterPost(ctx, "ABC123", "sunset over the bay")
	if err != nil {
		t.Fatalf("RegisterPost failed: %v", err)
	}
	if first.PublishStatus != ledger.StatusPending {
		t.Fatalf("expected pending status, got %s", first.PublishStatus)
	}

	second, err := store.RegisterPost(ctx, "ABC123", "different caption")
	if err != nil {
		t.Fatalf("repeat RegisterPost failed: %v", err)
	}
	if second.Caption != "sunset over the bay" {
		t.Fatalf("repeat registration must not overwrite, got caption %q", second.Caption)
	}
}

func TestGetPostMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.GetPost(context.Background(), "NOPE")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpsertGenerationRecordIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.RegisterPost(ctx, "ABC123", "caption"); err != nil {
		t.Fatalf("RegisterPost failed: %v", err)
	}

	record := successRecord("auto_ABC123_replicate_flux_schnell_1", "replicate_flux_schnell", 0.003)
	stored, inserted, err := store.UpsertGenerationRecord(ctx, "ABC123", record)
	if err != nil {
		t.Fatalf("UpsertGenerationRecord failed: %v", err)
	}
	if !inserted {
		t.Fatal("first upsert should insert")
	}
	if stored.ID == 0 {
		t.Fatal("expected record ID assigned")
	}

	replay, inserted, err := store.UpsertGenerationRecord(ctx, "ABC123", record)
	if err != nil {
		t.Fatalf("replay upsert failed: %v", err)
	}
	if inserted {
		t.Fatal("replay must be a no-op")
	}
	if replay.ID != stored.ID {
		t.Fatalf("replay must return the stored record, got id %d want %d", replay.ID, stored.ID)
	}

	records, err := store.GenerationsFor(ctx, "ABC123")
	if err != nil {
		t.Fatalf("GenerationsFor failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records))
	}

	total, err := store.AggregateCost(ctx, ledger.CostFilter{})
	if err != nil {
		t.Fatalf("AggregateCost failed: %v", err)
	}
	if math.Abs(total-0.003) > 1e-9 {
		t.Fatalf("replay double-counted cost: %f", total)
	}
}

func TestUpsertValidatesRecordShape(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.RegisterPost(ctx, "ABC123", ""); err != nil {
		t.Fatalf("RegisterPost failed: %v", err)
	}

	// Neither blob ref nor error.
	bad := &ledger.GenerationRecord{MessageID: "m1", Variation: "v", Prompt: "p"}
	if _, _, err := store.UpsertGenerationRecord(ctx, "ABC123", bad); err == nil {
		t.Fatal("expected error for record without blob or error")
	}

	// Both blob ref and error.
	bad = failureRecord("m2", "v", "timeout", 0)
	bad.BlobRef = "blob"
	if _, _, err := store.UpsertGenerationRecord(ctx, "ABC123", bad); err == nil {
		t.Fatal("expected error for record with blob and error")
	}

	// Negative cost.
	bad = successRecord("m3", "v", -0.1)
	if _, _, err := store.UpsertGenerationRecord(ctx, "ABC123", bad); err == nil {
		t.Fatal("expected error for negative cost")
	}

	// Missing variation.
	bad = successRecord("m4", "", 0)
	if _, _, err := store.UpsertGenerationRecord(ctx, "ABC123", bad); err == nil {
		t.Fatal("expected error for missing variation")
	}
}

func TestFailureRecordsPersist(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.RegisterPost(ctx, "FAIL01", ""); err != nil {
		t.Fatalf("RegisterPost failed: %v", err)
	}
	record := failureRecord("auto_FAIL01_replicate_flux_schnell_1", "replicate_flux_schnell", "rate_limited", 0)
	stored, _, err := store.UpsertGenerationRecord(ctx, "FAIL01", record)
	if err != nil {
		t.Fatalf("UpsertGenerationRecord failed: %v", err)
	}
	if stored.Succeeded() {
		t.Fatal("failure record must not report success")
	}
	if stored.ErrorKind != "rate_limited" || stored.ErrorMessage == "" {
		t.Fatalf("expected populated error fields, got %#v", stored)
	}
}

func TestFindPostsNeedingGenerationOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// Same-instant registrations should tie-break on shortcode.
	for _, sc := range []string{"BBB", "AAA", "CCC"} {
		if _, err := store.RegisterPost(ctx, sc, ""); err != nil {
			t.Fatalf("RegisterPost failed: %v", err)
		}
	}

	// CCC gains a record and drops out of the needing set.
	if _, _, err := store.UpsertGenerationRecord(ctx, "CCC", successRecord("m1", "replicate_flux_schnell", 0.003)); err != nil {
		t.Fatalf("UpsertGenerationRecord failed: %v", err)
	}

	posts, err := store.FindPostsNeedingGeneration(ctx, 10)
	if err != nil {
		t.Fatalf("FindPostsNeedingGeneration failed: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	if posts[0].Shortcode > posts[1].Shortcode {
		t.Fatalf("expected lexical tiebreak, got %s before %s", posts[0].Shortcode, posts[1].Shortcode)
	}

	limited, err := store.FindPostsNeedingGeneration(ctx, 1)
	if err != nil {
		t.Fatalf("limited query failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit respected, got %d", len(limited))
	}
}

func TestFindPostsNeedingRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, sc := range []string{"EMPTY", "FAILED", "DONE"} {
		if _, err := store.RegisterPost(ctx, sc, ""); err != nil {
			t.Fatalf("RegisterPost failed: %v", err)
		}
	}
	if _, _, err := store.UpsertGenerationRecord(ctx, "FAILED", failureRecord("m1", "v", "timeout", 0)); err != nil {
		t.Fatalf("upsert failure record: %v", err)
	}
	if _, _, err := store.UpsertGenerationRecord(ctx, "DONE", successRecord("m2", "v", 0.004)); err != nil {
		t.Fatalf("upsert success record: %v", err)
	}

	posts, err := store.FindPostsNeedingRetry(ctx, 10)
	if err != nil {
		t.Fatalf("FindPostsNeedingRetry failed: %v", err)
	}
	if len(posts) != 1 || posts[0].Shortcode != "FAILED" {
		t.Fatalf("expected only FAILED, got %#v", posts)
	}
}

func TestMarkPublishStatusTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.RegisterPost(ctx, "ABC123", ""); err != nil {
		t.Fatalf("RegisterPost failed: %v", err)
	}

	post, err := store.MarkPublishStatus(ctx, "ABC123", ledger.StatusPublished, "ig_17893")
	if err != nil {
		t.Fatalf("MarkPublishStatus failed: %v", err)
	}
	if post.PublishStatus != ledger.StatusPublished || post.ExternalPostID != "ig_17893" {
		t.Fatalf("unexpected post after publish: %#v", post)
	}

	// Terminal back to pending is rejected and the status is untouched.
	_, err = store.MarkPublishStatus(ctx, "ABC123", ledger.StatusPending, "")
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	current, err := store.GetPost(ctx, "ABC123")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if current.PublishStatus != ledger.StatusPublished {
		t.Fatalf("status changed by rejected transition: %s", current.PublishStatus)
	}

	// Same-status transition is a no-op success.
	if _, err := store.MarkPublishStatus(ctx, "ABC123", ledger.StatusPublished, ""); err != nil {
		t.Fatalf("same-status transition should succeed: %v", err)
	}
}

func TestMarkPublishStatusUnknownPost(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.MarkPublishStatus(context.Background(), "NOPE", ledger.StatusPublished, "")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAggregateCostFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	costs := map[string]float64{"P1": 0.003, "P2": 0.0, "P3": 0.004}
	for sc, cost := range costs {
		if _, err := store.RegisterPost(ctx, sc, ""); err != nil {
			t.Fatalf("RegisterPost failed: %v", err)
		}
		var rec *ledger.GenerationRecord
		if cost == 0 {
			rec = failureRecord("m_"+sc, "replicate_flux_schnell", "invalid_request", 0)
		} else {
			rec = successRecord("m_"+sc, "replicate_flux_schnell", cost)
		}
		if _, _, err := store.UpsertGenerationRecord(ctx, sc, rec); err != nil {
			t.Fatalf("upsert for %s failed: %v", sc, err)
		}
	}

	total, err := store.AggregateCost(ctx, ledger.CostFilter{})
	if err != nil {
		t.Fatalf("AggregateCost failed: %v", err)
	}
	if math.Abs(total-0.007) > 1e-9 {
		t.Fatalf("expected 0.007 total, got %f", total)
	}

	single, err := store.AggregateCost(ctx, ledger.CostFilter{Shortcode: "P1"})
	if err != nil {
		t.Fatalf("filtered AggregateCost failed: %v", err)
	}
	if math.Abs(single-0.003) > 1e-9 {
		t.Fatalf("expected 0.003 for P1, got %f", single)
	}

	future, err := store.AggregateCost(ctx, ledger.CostFilter{Since: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("since AggregateCost failed: %v", err)
	}
	if future != 0 {
		t.Fatalf("expected no cost in the future, got %f", future)
	}
}

func TestCompletionMatchesDirectEnumeration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		sc := fmt.Sprintf("POST%d", i)
		if _, err := store.RegisterPost(ctx, sc, ""); err != nil {
			t.Fatalf("RegisterPost failed: %v", err)
		}
	}
	if _, _, err := store.UpsertGenerationRecord(ctx, "POST0", successRecord("m0", "v", 0.003)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, _, err := store.UpsertGenerationRecord(ctx, "POST1", failureRecord("m1", "v", "timeout", 0)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	stats, err := store.Completion(ctx)
	if err != nil {
		t.Fatalf("Completion failed: %v", err)
	}
	if stats.TotalPosts != 5 || stats.PostsWithRecords != 2 || stats.PostsWithImages != 1 || stats.PostsNeedingImages != 3 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	// Direct enumeration must agree with the completeness query.
	posts, err := store.ListPosts(ctx)
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	withRecords := 0
	for _, post := range posts {
		records, err := store.GenerationsFor(ctx, post.Shortcode)
		if err != nil {
			t.Fatalf("GenerationsFor failed: %v", err)
		}
		if len(records) > 0 {
			withRecords++
		}
	}
	enumerated := float64(withRecords) / float64(len(posts)) * 100
	if math.Abs(enumerated-stats.CompletionPercentage()) > 1e-9 {
		t.Fatalf("completion drift: enumeration %f vs query %f", enumerated, stats.CompletionPercentage())
	}
}

func TestAttemptCount(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.RegisterPost(ctx, "ABC123", ""); err != nil {
		t.Fatalf("RegisterPost failed: %v", err)
	}
	if _, _, err := store.UpsertGenerationRecord(ctx, "ABC123", failureRecord("m1", "replicate_flux_schnell", "timeout", 0)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, _, err := store.UpsertGenerationRecord(ctx, "ABC123", successRecord("m2", "replicate_flux_schnell", 0.003)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	count, err := store.AttemptCount(ctx, "ABC123", "replicate_flux_schnell")
	if err != nil {
		t.Fatalf("AttemptCount failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 attempts, got %d", count)
	}
	other, err := store.AttemptCount(ctx, "ABC123", "replicate_sdxl")
	if err != nil {
		t.Fatalf("AttemptCount failed: %v", err)
	}
	if other != 0 {
		t.Fatalf("expected 0 attempts for other variation, got %d", other)
	}
}

func TestBlobInUse(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.RegisterPost(ctx, "ABC123", ""); err != nil {
		t.Fatalf("RegisterPost failed: %v", err)
	}
	rec := successRecord("m1", "v", 0.003)
	if _, _, err := store.UpsertGenerationRecord(ctx, "ABC123", rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	inUse, err := store.BlobInUse(ctx, rec.BlobRef)
	if err != nil {
		t.Fatalf("BlobInUse failed: %v", err)
	}
	if !inUse {
		t.Fatal("expected blob to be referenced")
	}

	free, err := store.BlobInUse(ctx, "unreferenced")
	if err != nil {
		t.Fatalf("BlobInUse failed: %v", err)
	}
	if free {
		t.Fatal("expected unreferenced blob to be free")
	}
}

func TestVariationCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.RegisterPost(ctx, "ABC123", ""); err != nil {
		t.Fatalf("RegisterPost failed: %v", err)
	}
	if _, _, err := store.UpsertGenerationRecord(ctx, "ABC123", successRecord("m1", "replicate_flux_schnell", 0.003)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, _, err := store.UpsertGenerationRecord(ctx, "ABC123", failureRecord("m2", "replicate_sdxl", "timeout", 0)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	counts, err := store.VariationCounts(ctx)
	if err != nil {
		t.Fatalf("VariationCounts failed: %v", err)
	}
	if counts["replicate_flux_schnell"] != 1 {
		t.Fatalf("expected one flux success, got %#v", counts)
	}
	if _, ok := counts["replicate_sdxl"]; ok {
		t.Fatalf("failed attempts must not count, got %#v", counts)
	}
}
