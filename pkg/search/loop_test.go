package search

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/camforge/camforge/pkg/feasibility"
	"github.com/camforge/camforge/pkg/generator"
	"github.com/camforge/camforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticFactory yields the given generate func regardless of context.
func staticFactory(g generator.Generate) generator.Factory {
	return func(models.Document, models.SearchBudget) (generator.Generate, error) {
		return g, nil
	}
}

// scoreByThickness buckets candidates on their wall thickness so tests can
// steer outcomes through the generated documents alone.
func scoreByThickness() feasibility.Engine {
	return feasibility.EngineFunc(func(_ context.Context, design, _ models.Document, _ models.WorkflowMode) (*models.FeasibilityResult, error) {
		thickness, _ := design["wall_thickness_mm"].(float64)

		result := &models.FeasibilityResult{Score: thickness * 10}
		switch {
		case thickness >= 9:
			result.RiskBucket = models.RiskGreen
		case thickness >= 5:
			result.RiskBucket = models.RiskYellow
		default:
			result.RiskBucket = models.RiskRed
		}

		return result, nil
	})
}

func defaultBudget() models.SearchBudget {
	return models.SearchBudget{
		MaxAttempts:         10,
		TimeLimitSeconds:    5,
		MinFeasibilityScore: 70,
		StopOnFirstGreen:    true,
	}
}

func TestPolicyClamp(t *testing.T) {
	policy := DefaultPolicy()

	clamped := policy.Clamp(models.SearchBudget{
		MaxAttempts:         100000,
		TimeLimitSeconds:    9999,
		MinFeasibilityScore: 250,
	})

	assert.Equal(t, policy.MaxAttemptsCap, clamped.MaxAttempts)
	assert.InDelta(t, policy.MaxTimeLimitSeconds, clamped.TimeLimitSeconds, 0.001)
	assert.InDelta(t, 100, clamped.MinFeasibilityScore, 0.001)

	floor := policy.Clamp(models.SearchBudget{MaxAttempts: 0, TimeLimitSeconds: -1, MinFeasibilityScore: -5})
	assert.Equal(t, 1, floor.MaxAttempts)
	assert.InDelta(t, policy.MaxTimeLimitSeconds, floor.TimeLimitSeconds, 0.001)
	assert.InDelta(t, 0, floor.MinFeasibilityScore, 0.001)
}

func TestRun_StopsOnFirstGreen(t *testing.T) {
	generate := func(_ models.Document, i int) (models.Document, error) {
		return models.Document{"wall_thickness_mm": float64(i + 7)}, nil
	}

	loop := NewLoop(scoreByThickness(), staticFactory(generate), DefaultPolicy(), nil, nil)
	report := loop.Run(t.Context(), Params{Budget: defaultBudget()})

	// Attempt 0 scores 70 (yellow), attempt 1 scores 80 (yellow), attempt 2
	// reaches thickness 9 and is green.
	assert.Equal(t, models.SearchSuccess, report.Status)
	assert.Equal(t, models.ReasonGreenFound, report.Reason)
	require.NotNil(t, report.Best)
	assert.Equal(t, models.RiskGreen, report.Best.Result.RiskBucket)
	assert.Equal(t, 3, report.AttemptsUsed)
	assert.Equal(t, 3, report.ScoredAttempts)
	assert.True(t, report.Succeeded())
}

func TestRun_DuplicatesConsumeBudgetButScoreOnce(t *testing.T) {
	// A constant generator: every attempt yields the same document.
	generate := func(_ models.Document, _ int) (models.Document, error) {
		return models.Document{"wall_thickness_mm": 6.0}, nil
	}

	budget := defaultBudget()
	budget.MaxAttempts = 5

	loop := NewLoop(scoreByThickness(), staticFactory(generate), DefaultPolicy(), nil, nil)
	report := loop.Run(t.Context(), Params{Budget: budget})

	assert.Equal(t, 5, report.AttemptsUsed)
	assert.Equal(t, 1, report.ScoredAttempts)
	assert.Equal(t, 4, report.SkippedDupes)
	assert.Equal(t, 1, report.RiskTally[models.RiskYellow])
}

func TestRun_BestEffortYellow(t *testing.T) {
	generate := func(_ models.Document, i int) (models.Document, error) {
		return models.Document{"wall_thickness_mm": 7.0 + float64(i)/10}, nil
	}

	budget := defaultBudget()
	budget.MaxAttempts = 3

	loop := NewLoop(scoreByThickness(), staticFactory(generate), DefaultPolicy(), nil, nil)
	report := loop.Run(t.Context(), Params{Budget: budget})

	assert.Equal(t, models.SearchBestEffort, report.Status)
	assert.Equal(t, models.ReasonYellowAcceptable, report.Reason)
	require.NotNil(t, report.Best)
	// Strictly-greater tracking keeps the highest scorer.
	assert.InDelta(t, 72, report.Best.Result.Score, 0.001)
}

func TestRun_ExhaustedBelowFloor(t *testing.T) {
	generate := func(_ models.Document, i int) (models.Document, error) {
		return models.Document{"wall_thickness_mm": 1.0 + float64(i)/10}, nil
	}

	budget := defaultBudget()
	budget.MaxAttempts = 4

	loop := NewLoop(scoreByThickness(), staticFactory(generate), DefaultPolicy(), nil, nil)
	report := loop.Run(t.Context(), Params{Budget: budget})

	assert.Equal(t, models.SearchExhausted, report.Status)
	assert.Equal(t, models.ReasonBudgetExhausted, report.Reason)
	assert.False(t, report.Succeeded())
	assert.NotNil(t, report.Best)
}

func TestRun_GeneratorFailuresAreRecoverable(t *testing.T) {
	generate := func(_ models.Document, i int) (models.Document, error) {
		if i%2 == 0 {
			return nil, fmt.Errorf("solver diverged on attempt %d", i)
		}

		return models.Document{"wall_thickness_mm": 9.5}, nil
	}

	loop := NewLoop(scoreByThickness(), staticFactory(generate), DefaultPolicy(), nil, nil)
	report := loop.Run(t.Context(), Params{Budget: defaultBudget()})

	assert.Equal(t, models.SearchSuccess, report.Status)
	assert.Equal(t, 1, report.GeneratorSkips)
	assert.Equal(t, 1, report.ScoredAttempts)
}

func TestRun_ScorerErrorBecomesSyntheticRed(t *testing.T) {
	scorer := feasibility.EngineFunc(func(context.Context, models.Document, models.Document, models.WorkflowMode) (*models.FeasibilityResult, error) {
		return nil, fmt.Errorf("calculator backend unreachable")
	})
	generate := func(_ models.Document, i int) (models.Document, error) {
		return models.Document{"wall_thickness_mm": float64(i)}, nil
	}

	budget := defaultBudget()
	budget.MaxAttempts = 2

	loop := NewLoop(scorer, staticFactory(generate), DefaultPolicy(), nil, nil)
	report := loop.Run(t.Context(), Params{Budget: budget})

	assert.Equal(t, 2, report.ScoredAttempts)
	assert.Equal(t, 2, report.RiskTally[models.RiskRed])
	require.NotNil(t, report.Best)
	assert.Contains(t, report.Best.Result.Warnings[0], "scorer failed")
}

func TestRun_TimeLimitReturnsBestSoFar(t *testing.T) {
	calls := 0
	scorer := feasibility.EngineFunc(func(_ context.Context, design, _ models.Document, _ models.WorkflowMode) (*models.FeasibilityResult, error) {
		calls++
		if calls > 1 {
			time.Sleep(500 * time.Millisecond)
		}

		return &models.FeasibilityResult{Score: 40, RiskBucket: models.RiskYellow}, nil
	})
	generate := func(_ models.Document, i int) (models.Document, error) {
		return models.Document{"wall_thickness_mm": float64(i)}, nil
	}

	budget := defaultBudget()
	budget.TimeLimitSeconds = 0.15

	loop := NewLoop(scorer, staticFactory(generate), DefaultPolicy(), nil, nil)

	start := time.Now()
	report := loop.Run(t.Context(), Params{Budget: budget})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, report.TimedOut)
	assert.Equal(t, models.SearchTimeout, report.Status)
	assert.Equal(t, models.ReasonTimeout, report.Reason)
	// The first attempt finished in time and is returned as best-so-far.
	require.NotNil(t, report.Best)
	assert.InDelta(t, 40, report.Best.Result.Score, 0.001)
}

func TestRun_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())

	scorer := feasibility.EngineFunc(func(context.Context, models.Document, models.Document, models.WorkflowMode) (*models.FeasibilityResult, error) {
		cancel()
		// Stay slow so cancellation, not the result, wins the race.
		time.Sleep(200 * time.Millisecond)

		return &models.FeasibilityResult{Score: 90, RiskBucket: models.RiskGreen}, nil
	})
	generate := func(_ models.Document, i int) (models.Document, error) {
		return models.Document{"wall_thickness_mm": float64(i)}, nil
	}

	loop := NewLoop(scorer, staticFactory(generate), DefaultPolicy(), nil, nil)
	report := loop.Run(ctx, Params{Budget: defaultBudget()})

	assert.Equal(t, models.SearchError, report.Status)
	assert.Equal(t, models.ReasonCancelled, report.Reason)
}

func TestRun_CancellationDuringGeneration(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())

	generate := func(_ models.Document, _ int) (models.Document, error) {
		cancel()
		// Stay slow so cancellation, not the candidate, wins the race.
		time.Sleep(200 * time.Millisecond)

		return models.Document{"wall_thickness_mm": 9.5}, nil
	}

	loop := NewLoop(scoreByThickness(), staticFactory(generate), DefaultPolicy(), nil, nil)

	start := time.Now()
	report := loop.Run(ctx, Params{Budget: defaultBudget()})

	// The loop returns without waiting for the generator call to finish.
	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, models.SearchError, report.Status)
	assert.Equal(t, models.ReasonCancelled, report.Reason)
	assert.Equal(t, 0, report.ScoredAttempts)
	assert.Nil(t, report.Best)
}

func TestRun_TimeLimitDuringGeneration(t *testing.T) {
	generate := func(_ models.Document, i int) (models.Document, error) {
		if i > 0 {
			time.Sleep(500 * time.Millisecond)
		}

		return models.Document{"wall_thickness_mm": 6.0 + float64(i)}, nil
	}

	budget := defaultBudget()
	budget.TimeLimitSeconds = 0.15

	loop := NewLoop(scoreByThickness(), staticFactory(generate), DefaultPolicy(), nil, nil)

	start := time.Now()
	report := loop.Run(t.Context(), Params{Budget: budget})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, report.TimedOut)
	assert.Equal(t, models.SearchTimeout, report.Status)
	assert.Equal(t, models.ReasonTimeout, report.Reason)
	// The first attempt generated and scored in time and is kept as best.
	require.NotNil(t, report.Best)
	assert.InDelta(t, 60, report.Best.Result.Score, 0.001)
}

func TestRun_NoCandidates(t *testing.T) {
	generate := func(models.Document, int) (models.Document, error) {
		return nil, fmt.Errorf("no feasible parameterization")
	}

	loop := NewLoop(scoreByThickness(), staticFactory(generate), DefaultPolicy(), nil, nil)
	report := loop.Run(t.Context(), Params{Budget: defaultBudget()})

	assert.Equal(t, models.SearchExhausted, report.Status)
	assert.Equal(t, models.ReasonNoCandidates, report.Reason)
	assert.Nil(t, report.Best)
	assert.Equal(t, 10, report.GeneratorSkips)
}

func TestRun_ContractsUnavailable(t *testing.T) {
	t.Run("nil scorer", func(t *testing.T) {
		loop := NewLoop(nil, staticFactory(nil), DefaultPolicy(), nil, nil)
		report := loop.Run(t.Context(), Params{Budget: defaultBudget()})

		assert.Equal(t, models.SearchError, report.Status)
		assert.Equal(t, "contract_unavailable", report.Reason)
	})

	t.Run("nil factory", func(t *testing.T) {
		loop := NewLoop(scoreByThickness(), nil, DefaultPolicy(), nil, nil)
		report := loop.Run(t.Context(), Params{Budget: defaultBudget()})

		assert.Equal(t, models.SearchError, report.Status)
		assert.Equal(t, "contract_unavailable", report.Reason)
	})

	t.Run("factory error", func(t *testing.T) {
		factory := func(models.Document, models.SearchBudget) (generator.Generate, error) {
			return nil, fmt.Errorf("seed missing")
		}

		loop := NewLoop(scoreByThickness(), factory, DefaultPolicy(), nil, nil)
		report := loop.Run(t.Context(), Params{Budget: defaultBudget()})

		assert.Equal(t, models.SearchError, report.Status)
		assert.Contains(t, report.Message, "seed missing")
	})
}

// recordingLogger captures the audit stream for assertions.
type recordingLogger struct {
	mu       sync.Mutex
	attempts []models.CandidateAttempt
	summary  *models.SearchReport
}

func (r *recordingLogger) LogAttempt(_ context.Context, _ string, attempt models.CandidateAttempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
}

func (r *recordingLogger) LogSummary(_ context.Context, report *models.SearchReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = report
}

func TestRun_AuditStream(t *testing.T) {
	generate := func(_ models.Document, i int) (models.Document, error) {
		return models.Document{"wall_thickness_mm": 6.0}, nil
	}

	budget := defaultBudget()
	budget.MaxAttempts = 3

	recorder := &recordingLogger{}
	loop := NewLoop(scoreByThickness(), staticFactory(generate), DefaultPolicy(), nil, recorder)
	report := loop.Run(t.Context(), Params{RunID: "run-1", Budget: budget})

	// Duplicates are never logged; exactly one attempt plus the summary.
	require.Len(t, recorder.attempts, 1)
	assert.Equal(t, recorder.attempts[0].DesignHash, DesignHash(models.Document{"wall_thickness_mm": 6.0}))
	require.NotNil(t, recorder.summary)
	assert.Equal(t, "run-1", recorder.summary.RunID)
	assert.Equal(t, report, recorder.summary)
}
