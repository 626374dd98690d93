package pipeline

import (
	"fmt"

	"easel/internal/services"
)

// Stage is one step in a post's generation lifecycle. An attempt moves
// strictly forward through the ordered stages; Failed is reachable from any
// of them.
type Stage string

const (
	StageSelected   Stage = "selected"
	StageAnalyzing  Stage = "analyzing"
	StagePrompting  Stage = "prompting"
	StageGenerating Stage = "generating"
	StageStoring    Stage = "storing"
	StageCommitted  Stage = "committed"
	StageFailed     Stage = "failed"
)

var stageOrder = []Stage{
	StageSelected,
	StageAnalyzing,
	StagePrompting,
	StageGenerating,
	StageStoring,
	StageCommitted,
}

// progress guards an attempt's stage transitions: only the immediate
// successor or Failed is reachable, and terminal stages cannot move.
type progress struct {
	stage Stage
}

func newProgress() *progress {
	return &progress{stage: StageSelected}
}

func (p *progress) advance(to Stage) error {
	if p.stage == StageCommitted || p.stage == StageFailed {
		return services.Wrap(services.ErrInvalidTransition, string(p.stage), "advance", fmt.Sprintf("stage %s is terminal", p.stage), nil)
	}
	if to == StageFailed {
		p.stage = StageFailed
		return nil
	}
	for i, stage := range stageOrder {
		if stage != p.stage {
			continue
		}
		if i+1 < len(stageOrder) && stageOrder[i+1] == to {
			p.stage = to
			return nil
		}
		break
	}
	return services.Wrap(services.ErrInvalidTransition, string(p.stage), "advance", fmt.Sprintf("cannot move from %s to %s", p.stage, to), nil)
}
