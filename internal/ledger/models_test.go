package ledger_test

import (
	"math"
	"testing"

	"easel/internal/ledger"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		input string
		want  ledger.PublishStatus
		ok    bool
	}{
		{"pending", ledger.StatusPending, true},
		{" Published ", ledger.StatusPublished, true},
		{"FAILED", ledger.StatusFailed, true},
		{"", "", false},
		{"archived", "", false},
	}
	for _, tc := range cases {
		got, ok := ledger.ParseStatus(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseStatus(%q) = %q,%v want %q,%v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to ledger.PublishStatus }{
		{ledger.StatusPending, ledger.StatusPublished},
		{ledger.StatusPending, ledger.StatusFailed},
		{ledger.StatusPublished, ledger.StatusPublished},
	}
	for _, tc := range allowed {
		if !ledger.CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s allowed", tc.from, tc.to)
		}
	}
	denied := []struct{ from, to ledger.PublishStatus }{
		{ledger.StatusPublished, ledger.StatusPending},
		{ledger.StatusFailed, ledger.StatusPending},
		{ledger.StatusFailed, ledger.StatusPublished},
	}
	for _, tc := range denied {
		if ledger.CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s denied", tc.from, tc.to)
		}
	}
}

func TestSummarizeDerivesFromRecords(t *testing.T) {
	records := []*ledger.GenerationRecord{
		{
			MessageID: "m1",
			Variation: "replicate_flux_schnell",
			ErrorKind: "timeout",
			Options:   ledger.RecordOptions{Provider: "replicate", Pipeline: "v1", Cost: 0.001},
		},
		{
			MessageID: "m2",
			Variation: "replicate_sdxl",
			BlobRef:   "blob-2",
			Options:   ledger.RecordOptions{Provider: "replicate", Pipeline: "describe_generate_v1", Cost: 0.004},
		},
	}

	summary := ledger.Summarize(records)
	if summary.Attempts != 2 || summary.Successes != 1 {
		t.Fatalf("unexpected counts: %#v", summary)
	}
	if math.Abs(summary.TotalCost-0.005) > 1e-9 {
		t.Fatalf("unexpected total cost: %f", summary.TotalCost)
	}
	if summary.GeneratedBy != "replicate" || summary.PipelineType != "describe_generate_v1" {
		t.Fatalf("unexpected provenance: %#v", summary)
	}
}

func TestCompletionPercentageEmptyLedger(t *testing.T) {
	var stats ledger.CompletionStats
	if stats.CompletionPercentage() != 0 {
		t.Fatal("empty ledger should report zero completion")
	}
}
