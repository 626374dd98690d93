package services

import "context"

type contextKey string

const (
	shortcodeKey contextKey = "shortcode"
	stageKey     contextKey = "stage"
	variationKey contextKey = "variation"
	requestIDKey contextKey = "request_id"
)

// WithShortcode annotates context with the source post identifier.
func WithShortcode(ctx context.Context, shortcode string) context.Context {
	if shortcode == "" {
		return ctx
	}
	return context.WithValue(ctx, shortcodeKey, shortcode)
}

// ShortcodeFromContext extracts the source post identifier if present.
func ShortcodeFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(shortcodeKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithVariation annotates context with the active variation key.
func WithVariation(ctx context.Context, variation string) context.Context {
	if variation == "" {
		return ctx
	}
	return context.WithValue(ctx, variationKey, variation)
}

// VariationFromContext returns the variation key if present.
func VariationFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(variationKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
