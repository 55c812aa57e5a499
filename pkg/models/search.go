package models

// SearchBudget bounds one candidate search run. Budgets are clamped to the
// global policy limits before the loop starts.
type SearchBudget struct {
	MaxAttempts         int     `json:"max_attempts"          validate:"min=1"`
	TimeLimitSeconds    float64 `json:"time_limit_seconds"    validate:"gt=0"`
	MinFeasibilityScore float64 `json:"min_feasibility_score" validate:"min=0,max=100"`
	StopOnFirstGreen    bool    `json:"stop_on_first_green"`
	Deterministic       bool    `json:"deterministic"`
}

// SearchStatus classifies how a candidate search run terminated.
type SearchStatus string

const (
	SearchSuccess    SearchStatus = "success"     // Best candidate is GREEN
	SearchBestEffort SearchStatus = "best_effort" // Best clears the score floor but is not GREEN
	SearchTimeout    SearchStatus = "timeout"     // Wall-clock budget expired
	SearchExhausted  SearchStatus = "exhausted"   // Attempt budget spent, or nothing scored
	SearchError      SearchStatus = "error"       // Contracts unavailable or run cancelled
)

// Terminal reasons reported alongside the status.
const (
	ReasonGreenFound       = "green_found"
	ReasonYellowAcceptable = "yellow_acceptable"
	ReasonTimeout          = "timeout"
	ReasonBudgetExhausted  = "budget_exhausted"
	ReasonNoCandidates     = "no_candidates"
	ReasonCancelled        = "cancelled"
)

// CandidateAttempt records one scored candidate. Skipped attempts (duplicate
// designs, generator errors) are never recorded.
type CandidateAttempt struct {
	Index      int                `json:"index"`
	Design     Document           `json:"design"`
	DesignHash string             `json:"design_hash"`
	Result     *FeasibilityResult `json:"result"`
	Acceptable bool               `json:"acceptable"`
}

// SearchReport is the run summary emitted after the loop terminates.
type SearchReport struct {
	RunID   string       `json:"run_id"`
	Status  SearchStatus `json:"status"`
	Reason  string       `json:"reason"`
	Message string       `json:"message,omitempty"`

	Best *CandidateAttempt `json:"best,omitempty"`

	AttemptsUsed   int  `json:"attempts_used"`
	ScoredAttempts int  `json:"scored_attempts"`
	SkippedDupes   int  `json:"skipped_duplicates"`
	GeneratorSkips int  `json:"generator_skips"`
	TimedOut       bool `json:"timed_out"`

	RiskTally map[RiskBucket]int `json:"risk_tally"`

	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// Succeeded reports whether the run selected a usable candidate.
func (r *SearchReport) Succeeded() bool {
	return r.Status == SearchSuccess || r.Status == SearchBestEffort
}
