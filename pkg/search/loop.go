// Package search implements the budget-bounded candidate search loop:
// generate → dedupe → score → track, under the same governance rules as the
// workflow engine, with every scored attempt audited.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/camforge/camforge/pkg/feasibility"
	"github.com/camforge/camforge/pkg/generator"
	"github.com/camforge/camforge/pkg/models"
	"github.com/google/uuid"
)

// Policy caps what any single run may ask for. Budgets are clamped to these
// limits before the loop starts; automated search can never run unbounded.
type Policy struct {
	MaxAttemptsCap      int
	MaxTimeLimitSeconds float64
}

// DefaultPolicy returns the global clamp limits.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttemptsCap:      500,
		MaxTimeLimitSeconds: 300,
	}
}

// Clamp bounds a caller budget to the policy limits.
func (p Policy) Clamp(b models.SearchBudget) models.SearchBudget {
	if b.MaxAttempts < 1 {
		b.MaxAttempts = 1
	}

	if b.MaxAttempts > p.MaxAttemptsCap {
		b.MaxAttempts = p.MaxAttemptsCap
	}

	if b.TimeLimitSeconds <= 0 || b.TimeLimitSeconds > p.MaxTimeLimitSeconds {
		b.TimeLimitSeconds = p.MaxTimeLimitSeconds
	}

	if b.MinFeasibilityScore < 0 {
		b.MinFeasibilityScore = 0
	}

	if b.MinFeasibilityScore > 100 {
		b.MinFeasibilityScore = 100
	}

	return b
}

// AttemptLogger receives the audit stream of a run: one entry per scored
// attempt plus one run summary. Implementations must not block the loop.
type AttemptLogger interface {
	LogAttempt(ctx context.Context, runID string, attempt models.CandidateAttempt)
	LogSummary(ctx context.Context, report *models.SearchReport)
}

// Params describes one search run.
type Params struct {
	RunID string
	Seed  models.Document
	// Context is the manufacturing context candidates are scored against.
	Context models.Document
	Mode    models.WorkflowMode
	Budget  models.SearchBudget
}

// Loop runs candidate searches. The loop itself is single-threaded: each
// generated candidate depends on the previous one. Generator and scorer calls
// are each dispatched to a goroutine and raced against cancellation and the
// remaining time budget, so a slow contract cannot block cancellation.
type Loop struct {
	scorer   feasibility.Engine
	factory  generator.Factory
	policy   Policy
	logger   *slog.Logger
	attempts AttemptLogger
}

// NewLoop builds a search loop. attempts may be nil; scored attempts are then
// audited through the structured logger only.
func NewLoop(scorer feasibility.Engine, factory generator.Factory, policy Policy, logger *slog.Logger, attempts AttemptLogger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		scorer:   scorer,
		factory:  factory,
		policy:   policy,
		logger:   logger,
		attempts: attempts,
	}
}

// Run executes one search. It never returns a Go error: per-attempt failures
// are recovered as data, and only total unavailability of the generator or
// scorer contracts (or cancellation) yields a report with status ERROR.
func (l *Loop) Run(ctx context.Context, p Params) *models.SearchReport {
	if p.RunID == "" {
		p.RunID = uuid.New().String()
	}

	report := &models.SearchReport{
		RunID:     p.RunID,
		RiskTally: make(map[models.RiskBucket]int),
	}

	logger := l.logger.With("run_id", p.RunID, "mode", string(p.Mode))

	if l.scorer == nil {
		return l.fail(ctx, report, logger, "feasibility scorer unavailable")
	}

	if l.factory == nil {
		return l.fail(ctx, report, logger, "candidate generator factory unavailable")
	}

	budget := l.policy.Clamp(p.Budget)

	generate, err := l.factory(p.Context, budget)
	if err != nil || generate == nil {
		msg := "candidate generator unavailable"
		if err != nil {
			msg = "candidate generator unavailable: " + err.Error()
		}

		return l.fail(ctx, report, logger, msg)
	}

	logger.Info("starting candidate search",
		"max_attempts", budget.MaxAttempts,
		"time_limit_seconds", budget.TimeLimitSeconds,
		"min_feasibility_score", budget.MinFeasibilityScore,
		"stop_on_first_green", budget.StopOnFirstGreen)

	var (
		start     = time.Now() // Monotonic; all elapsed checks derive from it
		timeLimit = time.Duration(budget.TimeLimitSeconds * float64(time.Second))
		seen      = make(map[string]struct{}, budget.MaxAttempts)
		prev      = p.Seed
		cancelled bool
	)

	for i := 0; i < budget.MaxAttempts; i++ {
		if ctx.Err() != nil {
			cancelled = true

			break
		}

		// Hard wall-clock ceiling, checked before each generation.
		if time.Since(start) >= timeLimit {
			report.TimedOut = true

			break
		}

		report.AttemptsUsed++

		remaining := timeLimit - time.Since(start)

		candidate, genState, genErr := l.generateNext(ctx, generate, prev, i, remaining)
		if genState == stepCancelled {
			cancelled = true

			break
		}

		if genState == stepTimedOut {
			report.TimedOut = true

			break
		}

		if genErr != nil {
			// Recoverable: the attempt is consumed, the loop continues.
			report.GeneratorSkips++

			logger.Warn("generator failed, skipping attempt", "attempt", i, "error", genErr)

			continue
		}

		prev = candidate

		hash := DesignHash(candidate)
		if _, dup := seen[hash]; dup {
			// Duplicates consume a budget slot but are never scored or logged.
			report.SkippedDupes++

			continue
		}

		seen[hash] = struct{}{}

		remaining = timeLimit - time.Since(start)

		result, state := l.score(ctx, candidate, p, remaining)
		switch state {
		case stepCancelled:
			cancelled = true
		case stepTimedOut:
			report.TimedOut = true
		}

		if result == nil {
			break
		}

		attempt := models.CandidateAttempt{
			Index:      i,
			Design:     candidate,
			DesignHash: hash,
			Result:     result,
			Acceptable: result.Score >= budget.MinFeasibilityScore,
		}

		report.ScoredAttempts++
		report.RiskTally[result.RiskBucket]++

		logger.Info("candidate scored",
			"attempt", i,
			"design_hash", hash,
			"score", result.Score,
			"risk_bucket", string(result.RiskBucket),
			"acceptable", attempt.Acceptable)

		if l.attempts != nil {
			l.attempts.LogAttempt(ctx, p.RunID, attempt)
		}

		// Strictly greater: the first candidate at a given score wins ties.
		if report.Best == nil || attempt.Result.Score > report.Best.Result.Score {
			best := attempt
			report.Best = &best
		}

		if result.RiskBucket == models.RiskGreen && budget.StopOnFirstGreen {
			break
		}
	}

	report.ElapsedSeconds = time.Since(start).Seconds()
	if !report.TimedOut && time.Since(start) >= timeLimit {
		report.TimedOut = true
	}

	l.classify(report, budget, cancelled)

	logger.Info("candidate search finished",
		"status", string(report.Status),
		"reason", report.Reason,
		"attempts_used", report.AttemptsUsed,
		"scored_attempts", report.ScoredAttempts,
		"skipped_duplicates", report.SkippedDupes,
		"generator_skips", report.GeneratorSkips,
		"elapsed_seconds", report.ElapsedSeconds)

	if l.attempts != nil {
		l.attempts.LogSummary(ctx, report)
	}

	return report
}

type stepState int

const (
	stepOK stepState = iota
	stepCancelled
	stepTimedOut
)

// generateNext dispatches the generator call to a goroutine and waits on the
// candidate, cancellation, or the remaining time budget, whichever comes
// first. Generator errors stay recoverable; the caller decides how to treat
// them.
func (l *Loop) generateNext(ctx context.Context, generate generator.Generate, prev models.Document, attempt int, remaining time.Duration) (models.Document, stepState, error) {
	type outcome struct {
		candidate models.Document
		err       error
	}

	resCh := make(chan outcome, 1)

	go func() {
		candidate, err := generate(prev, attempt)
		resCh <- outcome{candidate: candidate, err: err}
	}()

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, stepCancelled, nil
	case <-timer.C:
		return nil, stepTimedOut, nil
	case out := <-resCh:
		return out.candidate, stepOK, out.err
	}
}

// score dispatches the scorer call to a goroutine and waits on the result,
// cancellation, or the remaining time budget, whichever comes first. A scorer
// error is converted into a synthetic RED result carrying the error text.
func (l *Loop) score(ctx context.Context, candidate models.Document, p Params, remaining time.Duration) (*models.FeasibilityResult, stepState) {
	type outcome struct {
		result *models.FeasibilityResult
		err    error
	}

	resCh := make(chan outcome, 1)

	go func() {
		result, err := l.scorer.Score(ctx, candidate, p.Context, p.Mode)
		resCh <- outcome{result: result, err: err}
	}()

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, stepCancelled
	case <-timer.C:
		return nil, stepTimedOut
	case out := <-resCh:
		if out.err != nil {
			return &models.FeasibilityResult{
				Score:      0,
				RiskBucket: models.RiskRed,
				Warnings:   []string{"scorer failed: " + out.err.Error()},
				Meta:       map[string]any{models.MetaSource: models.SourceServerDirect},
			}, stepOK
		}

		if out.result == nil {
			return &models.FeasibilityResult{
				Score:      0,
				RiskBucket: models.RiskRed,
				Warnings:   []string{"scorer returned no result"},
			}, stepOK
		}

		return out.result, stepOK
	}
}

// classify derives the terminal status in the order the governance rules
// define it: emptiness first, then the quality of the best candidate, then
// the time budget, then plain exhaustion.
func (l *Loop) classify(report *models.SearchReport, budget models.SearchBudget, cancelled bool) {
	if cancelled {
		report.Status = models.SearchError
		report.Reason = models.ReasonCancelled
		report.Message = "run cancelled by caller"

		return
	}

	switch {
	case report.Best == nil:
		report.Status = models.SearchExhausted
		report.Reason = models.ReasonNoCandidates
	case report.Best.Result.RiskBucket == models.RiskGreen:
		report.Status = models.SearchSuccess
		report.Reason = models.ReasonGreenFound
	case report.Best.Result.Score >= budget.MinFeasibilityScore:
		report.Status = models.SearchBestEffort
		report.Reason = models.ReasonYellowAcceptable
	case report.TimedOut:
		report.Status = models.SearchTimeout
		report.Reason = models.ReasonTimeout
	default:
		report.Status = models.SearchExhausted
		report.Reason = models.ReasonBudgetExhausted
	}
}

func (l *Loop) fail(ctx context.Context, report *models.SearchReport, logger *slog.Logger, msg string) *models.SearchReport {
	report.Status = models.SearchError
	report.Reason = "contract_unavailable"
	report.Message = msg

	logger.Error("candidate search aborted", "reason", msg)

	if l.attempts != nil {
		l.attempts.LogSummary(ctx, report)
	}

	return report
}
