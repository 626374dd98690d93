package providers

import "context"

// Request describes one generation invocation. Image, when set, is supplied to
// image-conditioned models; Parameters carries provider-specific knobs opaque
// to the orchestrator.
type Request struct {
	Model      string
	Prompt     string
	Image      []byte
	Parameters map[string]any
}

// Result is a completed generation. SourceURL is the provider's transient
// delivery URL, retained for audit only — the durable copy is the returned
// bytes once the blob store has them.
type Result struct {
	Output      []byte
	ContentType string
	SourceURL   string
	Cost        float64
}

// Generator produces media from a prompt. Implementations map their wire
// errors onto the services sentinel markers so the retry policy can classify
// failures without knowing the backend.
type Generator interface {
	// Generate blocks until the provider delivers output or fails. The
	// context deadline bounds the full submit-poll-download cycle.
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Describer turns image bytes into a free-text description.
type Describer interface {
	Describe(ctx context.Context, image []byte) (string, error)
}

// Registry resolves variation keys to their generator backends.
type Registry map[string]Generator

// Resolve returns the generator for a variation key.
func (r Registry) Resolve(variation string) (Generator, bool) {
	g, ok := r[variation]
	return g, ok
}
