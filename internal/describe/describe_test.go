package describe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"easel/internal/services"
)

type stubDescriber struct {
	description string
	err         error
	calls       int
}

func (s *stubDescriber) Describe(ctx context.Context, image []byte) (string, error) {
	s.calls++
	return s.description, s.err
}

func TestDescribePrefersVisionModel(t *testing.T) {
	stub := &stubDescriber{description: "  a glowing android portrait  "}
	analyzer := NewAnalyzer(stub, nil)

	description, method, err := analyzer.Describe(context.Background(), []byte("img"), "original caption")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if description != "a glowing android portrait" {
		t.Errorf("description = %q", description)
	}
	if method != MethodVision {
		t.Errorf("method = %q, want %q", method, MethodVision)
	}
	if stub.calls != 1 {
		t.Errorf("describer called %d times", stub.calls)
	}
}

func TestDescribeFallsBackToCaption(t *testing.T) {
	stub := &stubDescriber{err: services.Wrap(services.ErrTransient, "analyzing", "describe", "model offline", nil)}
	analyzer := NewAnalyzer(stub, nil)

	description, method, err := analyzer.Describe(context.Background(), []byte("img"), "Sunset over the bay #nofilter @photographer https://example.com/p/1")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if method != MethodCaptionFallback {
		t.Errorf("method = %q, want %q", method, MethodCaptionFallback)
	}
	if description != "Sunset over the bay" {
		t.Errorf("description = %q", description)
	}
}

func TestDescribeUsesCaptionWhenNoImage(t *testing.T) {
	stub := &stubDescriber{description: "unused"}
	analyzer := NewAnalyzer(stub, nil)

	_, method, err := analyzer.Describe(context.Background(), nil, "a painted mural")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if method != MethodCaptionFallback {
		t.Errorf("method = %q, want %q", method, MethodCaptionFallback)
	}
	if stub.calls != 0 {
		t.Errorf("describer called %d times, want 0", stub.calls)
	}
}

func TestDescribeFailsWhenNothingUsable(t *testing.T) {
	stub := &stubDescriber{err: errors.New("boom")}
	analyzer := NewAnalyzer(stub, nil)

	_, _, err := analyzer.Describe(context.Background(), []byte("img"), "#tags @only https://x.test")
	if !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestDescribePropagatesInterruption(t *testing.T) {
	stub := &stubDescriber{err: services.Wrap(services.ErrInterrupted, "analyzing", "describe", "shutdown", nil)}
	analyzer := NewAnalyzer(stub, nil)

	_, _, err := analyzer.Describe(context.Background(), []byte("img"), "usable caption")
	if !errors.Is(err, services.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
}

func TestCleanCaptionTruncatesLongText(t *testing.T) {
	caption := strings.Repeat("word ", 200)
	got := CleanCaption(caption)
	if len(got) > maxDescriptionLength {
		t.Errorf("cleaned caption length %d exceeds %d", len(got), maxDescriptionLength)
	}
	if strings.HasSuffix(got, " ") {
		t.Errorf("cleaned caption has trailing space: %q", got)
	}
}
