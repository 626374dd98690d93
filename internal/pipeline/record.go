package pipeline

import (
	"fmt"
	"strings"
	"time"

	"easel/internal/ledger"
	"easel/internal/services"
)

// pipelineName tags every automated record so handmade entries remain
// distinguishable in the ledger.
const pipelineName = "easel_automation"

// MessageID builds the deterministic attempt key. Retrying the same
// attempt reproduces the same key, which is what makes ledger commits
// idempotent; a fresh retry pass gets a new attempt number and therefore a
// new key.
func MessageID(shortcode, variation string, attempt int) string {
	return fmt.Sprintf("auto_%s_%s_%d", shortcode, variation, attempt)
}

// providerOf derives the provider name from a variation key, e.g.
// "replicate_flux_schnell" belongs to the "replicate" provider.
func providerOf(variation string) string {
	if idx := strings.Index(variation, "_"); idx > 0 {
		return variation[:idx]
	}
	return variation
}

func newSuccessRecord(shortcode, variation, promptText string, attempt int, blobRef, sourceURL string, cost float64, descriptionMethod string) *ledger.GenerationRecord {
	return &ledger.GenerationRecord{
		Shortcode: shortcode,
		MessageID: MessageID(shortcode, variation, attempt),
		Variation: variation,
		Prompt:    promptText,
		CreatedAt: time.Now().UTC(),
		BlobRef:   blobRef,
		SourceURL: sourceURL,
		Options: ledger.RecordOptions{
			Automated:         true,
			Provider:          providerOf(variation),
			Model:             variation,
			Pipeline:          pipelineName,
			Cost:              cost,
			DescriptionMethod: descriptionMethod,
		},
	}
}

func newFailureRecord(shortcode, variation, promptText string, attempt int, cause error, descriptionMethod string, cost float64) *ledger.GenerationRecord {
	return &ledger.GenerationRecord{
		Shortcode:    shortcode,
		MessageID:    MessageID(shortcode, variation, attempt),
		Variation:    variation,
		Prompt:       promptText,
		CreatedAt:    time.Now().UTC(),
		ErrorKind:    string(services.Classify(cause)),
		ErrorMessage: cause.Error(),
		Options: ledger.RecordOptions{
			Automated:         true,
			Provider:          providerOf(variation),
			Model:             variation,
			Pipeline:          pipelineName,
			Cost:              cost,
			DescriptionMethod: descriptionMethod,
		},
	}
}
