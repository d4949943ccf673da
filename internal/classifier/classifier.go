// Package classifier runs the fixed classification pipeline:
// project id, snapshot fetch, normalization, matching, validation.
package classifier

import (
	"context"

	"taskmatch/internal/graph"
	"taskmatch/internal/match"
	"taskmatch/internal/models"
)

const (
	ModeDeterministic = "deterministic"
	ModeRemote        = "remote"
)

// Classifier decides one event against a snapshot. Implementations return
// an error only when ctx is done.
type Classifier interface {
	Classify(ctx context.Context, ev models.NormalizedEvent, snap *graph.Snapshot) (models.ClassificationResult, error)
}

// Deterministic adapts match.Engine to Classifier.
type Deterministic struct {
	engine *match.Engine
}

func NewDeterministic(engine *match.Engine) *Deterministic {
	if engine == nil {
		engine = match.NewEngine(match.DefaultOptions())
	}
	return &Deterministic{engine: engine}
}

func (d *Deterministic) Classify(ctx context.Context, ev models.NormalizedEvent, snap *graph.Snapshot) (models.ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return models.ClassificationResult{}, err
	}
	return d.engine.Match(ev, snap), nil
}
