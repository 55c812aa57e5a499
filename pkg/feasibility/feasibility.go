// Package feasibility defines the scoring contract consumed by the workflow
// engine and the candidate search loop, plus a reference heuristic scorer so
// the system runs end to end without an external scoring service.
package feasibility

import (
	"context"

	"github.com/camforge/camforge/pkg/models"
)

// Engine scores a design against a manufacturing context. Implementations
// must return a score in [0,100] and one of the four risk buckets; warnings
// are optional. Errors are returned, never panicked: the search loop converts
// them into synthetic RED results.
type Engine interface {
	Score(ctx context.Context, design, manufacturingContext models.Document, mode models.WorkflowMode) (*models.FeasibilityResult, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, design, manufacturingContext models.Document, mode models.WorkflowMode) (*models.FeasibilityResult, error)

func (f EngineFunc) Score(ctx context.Context, design, manufacturingContext models.Document, mode models.WorkflowMode) (*models.FeasibilityResult, error) {
	return f(ctx, design, manufacturingContext, mode)
}
