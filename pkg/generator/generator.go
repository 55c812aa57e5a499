// Package generator defines the candidate generator contract used by the
// constraint-first search loop, plus a deterministic parameter-jitter
// generator.
package generator

import (
	"fmt"
	"math/rand/v2"

	"github.com/camforge/camforge/pkg/models"
)

// Generate produces the next candidate design from the previous one. The
// first call receives the seed design (possibly nil) at attempt index 0.
// Errors are per-attempt and recoverable: the loop skips the attempt.
type Generate func(prevDesign models.Document, attemptIndex int) (models.Document, error)

// Factory builds a generator closure bound to a context and budget. A nil
// factory (or a factory returning a nil closure) makes the whole search run
// fail immediately with an ERROR status.
type Factory func(manufacturingContext models.Document, budget models.SearchBudget) (Generate, error)

// JitterFactory returns a Factory producing evolutionary candidates: each
// call perturbs the numeric parameters of the previous design by up to
// spread (fractional). Non-numeric fields are carried over unchanged. With
// budget.Deterministic set, the RNG is seeded from the attempt budget so
// identical runs reproduce identical candidate sequences.
func JitterFactory(seed models.Document, spread float64) Factory {
	if spread <= 0 {
		spread = 0.15
	}

	return func(_ models.Document, budget models.SearchBudget) (Generate, error) {
		if len(seed) == 0 {
			return nil, fmt.Errorf("jitter generator needs a non-empty seed design")
		}

		var rng *rand.Rand
		if budget.Deterministic {
			rng = rand.New(rand.NewPCG(uint64(budget.MaxAttempts), uint64(len(seed))))
		} else {
			rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}

		return func(prevDesign models.Document, attemptIndex int) (models.Document, error) {
			base := prevDesign
			if len(base) == 0 {
				base = seed
			}

			if attemptIndex == 0 {
				// First attempt scores the seed itself.
				return cloneDocument(base), nil
			}

			next := cloneDocument(base)
			for key, value := range next {
				n, ok := numeric(value)
				if !ok {
					continue
				}

				factor := 1 + (rng.Float64()*2-1)*spread
				next[key] = n * factor
			}

			return next, nil
		}, nil
	}
}

// SeedFromLimits derives a starting design from the limit parameters of a
// manufacturing context: minimum limits get headroom above them, maximum
// limits are entered at half. Contexts without recognized limits yield an
// empty document and the caller must supply its own seed.
func SeedFromLimits(manufacturingContext models.Document) models.Document {
	limits := []struct {
		limitKey, paramKey string
		factor             float64
	}{
		{"min_wall_thickness_mm", "wall_thickness_mm", 1.5},
		{"max_pocket_depth_mm", "pocket_depth_mm", 0.5},
		{"min_tool_diameter_mm", "tool_diameter_mm", 1.5},
	}

	seed := models.Document{}

	for _, l := range limits {
		if value, ok := numeric(manufacturingContext[l.limitKey]); ok {
			seed[l.paramKey] = value * l.factor
		}
	}

	if len(seed) == 0 {
		return nil
	}

	return seed
}

func cloneDocument(d models.Document) models.Document {
	cp := make(models.Document, len(d))
	for k, v := range d {
		cp[k] = v
	}

	return cp
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
	default:
		return 0, false
	}
}
