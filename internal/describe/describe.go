package describe

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"easel/internal/logging"
	"easel/internal/providers"
	"easel/internal/services"
)

// Method records how a description was obtained. The caption value is
// stored in generation records so automated fallback output can be audited
// later.
const (
	MethodVision          = "vlm_analysis"
	MethodCaptionFallback = "caption_analysis_fallback"
)

const maxDescriptionLength = 500

// Analyzer produces a free-text description of a source image, preferring
// the vision model and degrading to the post caption when the model is
// unavailable or fails.
type Analyzer struct {
	describer providers.Describer
	logger    *slog.Logger
}

func NewAnalyzer(describer providers.Describer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analyzer{describer: describer, logger: logger}
}

// Describe returns a description and the method that produced it. Both
// paths converge on the same shape: trimmed free text suitable for prompt
// building.
func (a *Analyzer) Describe(ctx context.Context, image []byte, caption string) (string, string, error) {
	if a.describer != nil && len(image) > 0 {
		description, err := a.describer.Describe(ctx, image)
		if err == nil {
			return normalize(description), MethodVision, nil
		}
		if errors.Is(err, services.ErrInterrupted) || errors.Is(err, context.Canceled) {
			return "", "", err
		}
		a.logger.Warn("vision analysis failed, falling back to caption",
			logging.Error(err))
	}
	fallback := CleanCaption(caption)
	if fallback == "" {
		return "", "", services.Wrap(services.ErrInvalidRequest, "analyzing", "describe", "no image description available and caption is empty", nil)
	}
	return fallback, MethodCaptionFallback, nil
}

// CleanCaption strips social-media noise from a post caption so it reads as
// a plain description: hashtags, mentions, URLs, and emoji are removed and
// whitespace collapsed.
func CleanCaption(caption string) string {
	fields := strings.Fields(caption)
	kept := make([]string, 0, len(fields))
	for _, field := range fields {
		switch {
		case strings.HasPrefix(field, "#"), strings.HasPrefix(field, "@"):
			continue
		case strings.HasPrefix(field, "http://"), strings.HasPrefix(field, "https://"):
			continue
		}
		if cleaned := stripSymbols(field); cleaned != "" {
			kept = append(kept, cleaned)
		}
	}
	return normalize(strings.Join(kept, " "))
}

func normalize(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > maxDescriptionLength {
		cut := text[:maxDescriptionLength]
		if idx := strings.LastIndex(cut, " "); idx > 0 {
			cut = cut[:idx]
		}
		text = cut
	}
	return text
}

func stripSymbols(field string) string {
	return strings.TrimFunc(field, func(r rune) bool {
		return unicode.IsSymbol(r) || unicode.In(r, unicode.So)
	})
}
