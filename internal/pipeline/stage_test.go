package pipeline

import (
	"errors"
	"testing"

	"easel/internal/services"
)

func TestProgressAdvancesInOrder(t *testing.T) {
	track := newProgress()
	for _, stage := range []Stage{StageAnalyzing, StagePrompting, StageGenerating, StageStoring, StageCommitted} {
		if err := track.advance(stage); err != nil {
			t.Fatalf("advance to %s: %v", stage, err)
		}
	}
	if track.stage != StageCommitted {
		t.Errorf("final stage = %s", track.stage)
	}
}

func TestProgressRejectsSkippedStage(t *testing.T) {
	track := newProgress()
	err := track.advance(StageGenerating)
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if track.stage != StageSelected {
		t.Errorf("stage moved to %s on rejected transition", track.stage)
	}
}

func TestProgressFailsFromAnyStage(t *testing.T) {
	for _, start := range []Stage{StageSelected, StageAnalyzing, StagePrompting, StageGenerating, StageStoring} {
		track := &progress{stage: start}
		if err := track.advance(StageFailed); err != nil {
			t.Errorf("fail from %s: %v", start, err)
		}
	}
}

func TestProgressTerminalStagesAreFinal(t *testing.T) {
	for _, terminal := range []Stage{StageCommitted, StageFailed} {
		track := &progress{stage: terminal}
		if err := track.advance(StageFailed); !errors.Is(err, services.ErrInvalidTransition) {
			t.Errorf("advance from %s: %v", terminal, err)
		}
	}
}
