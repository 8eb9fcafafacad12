package build

import (
	"context"
	"fmt"
	"time"
)

// Recorder receives stage lifecycle events for the run ledger. A nil
// Recorder disables recording.
type Recorder interface {
	StageStarted(runID string, stage string) error
	StageCompleted(runID string, stage string, duration time.Duration) error
	StageFailed(runID string, stage string, duration time.Duration, stageErr error) error
}

// Pipeline runs stages strictly in order, stopping at the first failure.
type Pipeline struct {
	stages   []Stage
	recorder Recorder
}

// NewPipeline creates a pipeline over the given ordered stages.
func NewPipeline(stages []Stage, recorder Recorder) *Pipeline {
	return &Pipeline{stages: stages, recorder: recorder}
}

// Run validates and executes every stage in order. Each stage blocks until
// its external processes exit; a stage failure aborts the remainder.
func (p *Pipeline) Run(ctx context.Context, sc *StageContext) error {
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := string(stage.Name())
		log.Info("Stage starting", "stage", name)

		if err := stage.Validate(ctx, sc); err != nil {
			return fmt.Errorf("stage %s cannot run: %w", name, err)
		}

		p.recordStart(sc.RunID, name)
		start := time.Now()

		progress := func(percent int, message string) {
			log.Info("Stage progress", "stage", name, "percent", percent, "msg", message)
		}

		if err := stage.Execute(ctx, sc, progress); err != nil {
			p.recordFailure(sc.RunID, name, time.Since(start), err)
			return fmt.Errorf("stage %s failed: %w", name, err)
		}

		p.recordCompletion(sc.RunID, name, time.Since(start))
		log.Info("Stage complete", "stage", name, "duration", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func (p *Pipeline) recordStart(runID, stage string) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.StageStarted(runID, stage); err != nil {
		log.Warn("Failed to record stage start", "stage", stage, "error", err)
	}
}

func (p *Pipeline) recordCompletion(runID, stage string, d time.Duration) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.StageCompleted(runID, stage, d); err != nil {
		log.Warn("Failed to record stage completion", "stage", stage, "error", err)
	}
}

func (p *Pipeline) recordFailure(runID, stage string, d time.Duration, stageErr error) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.StageFailed(runID, stage, d, stageErr); err != nil {
		log.Warn("Failed to record stage failure", "stage", stage, "error", err)
	}
}
