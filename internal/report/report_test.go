package report

import (
	"context"
	"testing"
	"time"

	"easel/internal/ledger"
	"easel/internal/testsupport"
)

func seedRecord(t *testing.T, store *ledger.Store, shortcode, variation string, attempt int, blobRef string, cost float64) {
	t.Helper()
	record := &ledger.GenerationRecord{
		Shortcode: shortcode,
		MessageID: "auto_" + shortcode + "_" + variation + "_1",
		Variation: variation,
		Prompt:    "prompt",
		CreatedAt: time.Now().UTC(),
		BlobRef:   blobRef,
		Options: ledger.RecordOptions{
			Automated: true,
			Provider:  "replicate",
			Model:     variation,
			Pipeline:  "easel_automation",
			Cost:      cost,
		},
	}
	if blobRef == "" {
		record.BlobRef = ""
		record.ErrorKind = "transient"
		record.ErrorMessage = "upstream glitch"
	}
	if _, _, err := store.UpsertGenerationRecord(context.Background(), shortcode, record); err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func TestBuildAggregatesLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, shortcode := range []string{"aaa", "bbb", "ccc", "ddd"} {
		if _, err := store.RegisterPost(ctx, shortcode, "caption"); err != nil {
			t.Fatalf("RegisterPost: %v", err)
		}
	}
	seedRecord(t, store, "aaa", "replicate_flux_schnell", 1, "blob-a", 0.003)
	seedRecord(t, store, "bbb", "replicate_sdxl", 1, "blob-b", 0.0055)
	seedRecord(t, store, "ccc", "replicate_flux_schnell", 1, "", 0)

	summary, err := Build(ctx, store)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if summary.TotalPosts != 4 {
		t.Errorf("total posts = %d", summary.TotalPosts)
	}
	if summary.PostsWithRecords != 3 || summary.PostsWithImages != 2 {
		t.Errorf("records = %d, images = %d", summary.PostsWithRecords, summary.PostsWithImages)
	}
	if summary.PostsNeedingImages != 1 {
		t.Errorf("needing images = %d", summary.PostsNeedingImages)
	}
	if summary.CompletionPercentage != 75 {
		t.Errorf("completion = %v, want 75", summary.CompletionPercentage)
	}
	wantCost := 0.003 + 0.0055
	if diff := summary.TotalCost - wantCost; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("total cost = %v, want %v", summary.TotalCost, wantCost)
	}
	if summary.RecentCost != summary.TotalCost {
		t.Errorf("recent cost = %v, want %v", summary.RecentCost, summary.TotalCost)
	}
	if summary.VariationCounts["replicate_flux_schnell"] != 1 || summary.VariationCounts["replicate_sdxl"] != 1 {
		t.Errorf("variation counts = %+v", summary.VariationCounts)
	}
	if summary.PublishCounts[ledger.StatusPending] != 4 {
		t.Errorf("publish counts = %+v", summary.PublishCounts)
	}
}

func TestBuildOnEmptyLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	summary, err := Build(context.Background(), store)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if summary.TotalPosts != 0 || summary.CompletionPercentage != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.TotalCost != 0 {
		t.Errorf("total cost = %v", summary.TotalCost)
	}
}
