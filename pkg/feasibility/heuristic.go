package feasibility

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camforge/camforge/pkg/models"
)

// PolicyVersion tags results produced by the built-in scorer.
const PolicyVersion = "heuristic/1"

// Heuristic is the reference scorer. It reads a handful of well-known
// numeric parameters from the design and compares them against limits in the
// context. Unknown parameters are ignored; a context without limits yields an
// UNKNOWN bucket, leaving the governance policy to decide how hard to fail.
type Heuristic struct{}

// NewHeuristic returns the reference scorer.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Parameter keys the heuristic understands.
const (
	ParamWallThickness = "wall_thickness_mm"
	ParamPocketDepth   = "pocket_depth_mm"
	ParamToolDiameter  = "tool_diameter_mm"

	LimitMinWallThickness = "min_wall_thickness_mm"
	LimitMaxPocketDepth   = "max_pocket_depth_mm"
	LimitMinToolDiameter  = "min_tool_diameter_mm"
)

// Score implements the Engine contract.
func (h *Heuristic) Score(_ context.Context, design, manufacturingContext models.Document, _ models.WorkflowMode) (*models.FeasibilityResult, error) {
	if len(design) == 0 {
		return nil, fmt.Errorf("design document is empty")
	}

	type check struct {
		param, limit string
		// below: violation when value < limit; otherwise when value > limit
		below bool
	}

	checks := []check{
		{ParamWallThickness, LimitMinWallThickness, true},
		{ParamPocketDepth, LimitMaxPocketDepth, false},
		{ParamToolDiameter, LimitMinToolDiameter, true},
	}

	var (
		evaluated  int
		violations int
		marginSum  float64
		warnings   []string
	)

	for _, c := range checks {
		value, okV := numeric(design[c.param])
		limit, okL := numeric(manufacturingContext[c.limit])

		if !okV || !okL || limit == 0 {
			continue
		}

		evaluated++

		var margin float64
		if c.below {
			margin = (value - limit) / limit
		} else {
			margin = (limit - value) / limit
		}

		if margin < 0 {
			violations++

			warnings = append(warnings, fmt.Sprintf("%s %.2f violates %s %.2f", c.param, value, c.limit, limit))
		}

		marginSum += clamp(margin, -1, 1)
	}

	result := &models.FeasibilityResult{
		Meta: map[string]any{
			models.MetaSource:        models.SourceServerDirect,
			models.MetaPolicyVersion: PolicyVersion,
		},
		Warnings: warnings,
	}

	if evaluated == 0 {
		result.Score = 0
		result.RiskBucket = models.RiskUnknown
		result.Warnings = append(result.Warnings, "no evaluable parameters; context carries no limits")

		return result, nil
	}

	// Average normalized margin mapped onto [0,100].
	avg := marginSum / float64(evaluated)
	result.Score = clamp(50+avg*50, 0, 100)

	switch {
	case violations > 0:
		result.RiskBucket = models.RiskRed
	case result.Score >= 75:
		result.RiskBucket = models.RiskGreen
	default:
		result.RiskBucket = models.RiskYellow
	}

	return result, nil
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
