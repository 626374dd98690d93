package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"easel/internal/blobstore"
	"easel/internal/describe"
	"easel/internal/ledger"
	"easel/internal/logging"
	"easel/internal/providers"
	"easel/internal/providers/replicate"
	"easel/internal/services"
)

// Outcome is the result of driving one post through the pipeline.
type Outcome struct {
	Shortcode string
	Stage     Stage
	Record    *ledger.GenerationRecord
	Cost      float64
	Err       error
}

func (o *Outcome) Succeeded() bool {
	return o.Stage == StageCommitted
}

// ProcessPost runs one post through analyze, prompt, generate, and store,
// committing the outcome to the ledger. Provider failures fall through to
// the next configured variation; when the whole chain is exhausted a single
// failure record is committed for the last variation tried. The returned
// error is non-nil only for interruption, so a failed post never aborts the
// batch around it.
func (m *Manager) ProcessPost(ctx context.Context, post *ledger.SourcePost, preferred ...string) (*Outcome, error) {
	ctx = services.WithShortcode(ctx, post.Shortcode)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := m.logger.With(logging.FieldShortcode, post.Shortcode)

	outcome := &Outcome{Shortcode: post.Shortcode, Stage: StageSelected}
	track := newProgress()

	fail := func(err error) (*Outcome, error) {
		_ = track.advance(StageFailed)
		outcome.Stage = StageFailed
		outcome.Err = err
		if errors.Is(err, services.ErrInterrupted) || errors.Is(err, context.Canceled) {
			return outcome, err
		}
		return outcome, nil
	}

	// Analyzing: describe the source image, or fall back to the caption.
	if err := track.advance(StageAnalyzing); err != nil {
		return fail(err)
	}
	outcome.Stage = StageAnalyzing
	description, method, err := m.describePost(services.WithStage(ctx, string(StageAnalyzing)), post)
	if err != nil {
		m.commitFailure(ctx, post.Shortcode, m.firstVariation(preferred), "", err, "", 0, logger)
		return fail(err)
	}

	// Prompting is a pure transform over the description.
	if err := track.advance(StagePrompting); err != nil {
		return fail(err)
	}
	outcome.Stage = StagePrompting
	promptText := m.template.Build(description)

	if err := track.advance(StageGenerating); err != nil {
		return fail(err)
	}
	outcome.Stage = StageGenerating

	var (
		lastErr       error
		lastVariation string
	)
	for _, variation := range m.variations(preferred) {
		generator, ok := m.registry.Resolve(variation)
		if !ok {
			logger.Warn("variation has no registered provider, skipping",
				logging.FieldVariation, variation)
			continue
		}
		genCtx := services.WithVariation(services.WithStage(ctx, string(StageGenerating)), variation)
		result, err := m.generate(genCtx, generator, variation, promptText)
		if err != nil {
			lastErr = err
			lastVariation = variation
			if errors.Is(err, services.ErrInterrupted) || errors.Is(err, context.Canceled) {
				outcome.Cost += m.commitFailure(ctx, post.Shortcode, variation, promptText, err, method, 0, logger)
				return fail(err)
			}
			logger.Warn("generation failed, trying next variation",
				logging.FieldVariation, variation,
				logging.Error(err))
			continue
		}

		if err := track.advance(StageStoring); err != nil {
			return fail(err)
		}
		outcome.Stage = StageStoring
		record, err := m.storeResult(services.WithStage(ctx, string(StageStoring)), post.Shortcode, variation, promptText, method, result)
		if err != nil {
			// The provider already charged for the output; the failure
			// record keeps that partial cost visible.
			outcome.Cost += m.commitFailure(ctx, post.Shortcode, variation, promptText, err, method, result.Cost, logger)
			return fail(err)
		}

		if err := track.advance(StageCommitted); err != nil {
			return fail(err)
		}
		outcome.Stage = StageCommitted
		outcome.Record = record
		outcome.Cost += record.Options.Cost
		logger.Info("generation committed",
			logging.FieldVariation, variation,
			"message_id", record.MessageID,
			"blob_ref", record.BlobRef,
			"cost", record.Options.Cost)
		return outcome, nil
	}

	if lastErr == nil {
		lastErr = services.Wrap(services.ErrConfiguration, string(StageGenerating), "process post", "no configured variation has a registered provider", nil)
		lastVariation = m.firstVariation(preferred)
	}
	// One failure record covers the whole exhausted fallback chain, keyed to
	// the last variation tried.
	outcome.Cost += m.commitFailure(ctx, post.Shortcode, lastVariation, promptText, lastErr, method, 0, logger)
	return fail(lastErr)
}

func (m *Manager) describePost(ctx context.Context, post *ledger.SourcePost) (string, string, error) {
	var image []byte
	if post.OriginalBlob != "" {
		data, err := m.blobs.Get(blobstore.Ref(post.OriginalBlob))
		switch {
		case err == nil:
			image = data
		case errors.Is(err, services.ErrNotFound):
			m.logger.Warn("original blob missing, analyzing caption only",
				logging.FieldShortcode, post.Shortcode,
				"blob_ref", post.OriginalBlob)
		default:
			return "", "", err
		}
	}
	if m.analyzer == nil {
		fallback := describe.CleanCaption(post.Caption)
		if fallback == "" {
			return "", "", services.Wrap(services.ErrInvalidRequest, string(StageAnalyzing), "describe", "no analyzer configured and caption is empty", nil)
		}
		return fallback, describe.MethodCaptionFallback, nil
	}
	return m.analyzer.Describe(ctx, image, post.Caption)
}

func (m *Manager) generate(ctx context.Context, generator providers.Generator, variation, promptText string) (*providers.Result, error) {
	request := providers.Request{
		Model:  variation,
		Prompt: promptText,
	}
	if negative := m.template.Negative(); negative != "" && replicate.SupportsNegativePrompt(variation) {
		request.Parameters = map[string]any{"negative_prompt": negative}
	}
	var result *providers.Result
	err := m.policy.Do(ctx, func(ctx context.Context) error {
		var genErr error
		result, genErr = generator.Generate(ctx, request)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	if result == nil || len(result.Output) == 0 {
		return nil, services.Wrap(services.ErrTransient, string(StageGenerating), "generate", "provider returned no output", nil)
	}
	return result, nil
}

func (m *Manager) storeResult(ctx context.Context, shortcode, variation, promptText, method string, result *providers.Result) (*ledger.GenerationRecord, error) {
	ref, err := m.blobs.Put(result.Output, result.ContentType)
	if err != nil {
		return nil, err
	}
	attempt, err := m.nextAttempt(ctx, shortcode, variation)
	if err != nil {
		return nil, err
	}
	record := newSuccessRecord(shortcode, variation, promptText, attempt, string(ref), result.SourceURL, result.Cost, method)
	stored, _, err := m.store.UpsertGenerationRecord(ctx, shortcode, record)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// commitFailure persists a failed attempt so the history survives
// interruption. Commit errors are logged, never propagated: the original
// failure is the one the caller needs to see.
func (m *Manager) commitFailure(ctx context.Context, shortcode, variation, promptText string, cause error, method string, cost float64, logger *slog.Logger) float64 {
	if variation == "" {
		variation = "unassigned"
	}
	attempt, err := m.nextAttempt(ctx, shortcode, variation)
	if err != nil {
		logger.Error("failed to number failure record", logging.Error(err))
		return 0
	}
	record := newFailureRecord(shortcode, variation, promptText, attempt, cause, method, cost)
	stored, _, err := m.store.UpsertGenerationRecord(ctx, shortcode, record)
	if err != nil {
		logger.Error("failed to commit failure record", logging.Error(err))
		return 0
	}
	return stored.Options.Cost
}

func (m *Manager) nextAttempt(ctx context.Context, shortcode, variation string) (int, error) {
	count, err := m.store.AttemptCount(ctx, shortcode, variation)
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

func (m *Manager) firstVariation(preferred []string) string {
	order := m.variations(preferred)
	if len(order) == 0 {
		return ""
	}
	return order[0]
}
