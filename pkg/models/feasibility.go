package models

// RiskBucket is the categorical safety assessment attached to a feasibility
// result. UNKNOWN is treated as RED under the default governance policy.
type RiskBucket string

const (
	RiskGreen   RiskBucket = "green"
	RiskYellow  RiskBucket = "yellow"
	RiskRed     RiskBucket = "red"
	RiskUnknown RiskBucket = "unknown"
)

// Well-known keys of FeasibilityResult.Meta. Downstream diffing and indexing
// tools read these, so the names are part of the durable encoding.
const (
	MetaFeasibilityHash    = "feasibility_hash"
	MetaPolicyVersion      = "policy_version"
	MetaCalculatorVersions = "calculator_versions"
	MetaDesignHash         = "design_hash"
	MetaContextHash        = "context_hash"
	MetaSource             = "source"
)

// Accepted values for the "source" meta key.
const (
	SourceServerRecompute = "server_recompute" // Server recomputed feasibility from the stored design
	SourceServerDirect    = "server_direct"    // Server scored the submitted design directly
	SourceClientIgnored   = "client_ignored"   // Client-supplied numbers, not trusted for toolpaths
)

// FeasibilityResult is the outcome of scoring a design against a
// manufacturing context.
type FeasibilityResult struct {
	Score      float64        `json:"score"       validate:"min=0,max=100"`
	RiskBucket RiskBucket     `json:"risk_bucket" validate:"required,oneof=green yellow red unknown"`
	Warnings   []string       `json:"warnings,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Source returns the value of the "source" meta key, or "" when absent.
func (r *FeasibilityResult) Source() string {
	if r == nil || r.Meta == nil {
		return ""
	}

	src, _ := r.Meta[MetaSource].(string)

	return src
}

// ServerSide reports whether the result was computed (or recomputed) on the
// server rather than taken from an untrusted client.
func (r *FeasibilityResult) ServerSide() bool {
	src := r.Source()

	return src == SourceServerRecompute || src == SourceServerDirect
}

// Clone returns a deep-enough copy: warnings and meta are copied so callers
// cannot mutate a stored result through the original slices/maps.
func (r *FeasibilityResult) Clone() *FeasibilityResult {
	if r == nil {
		return nil
	}

	cp := &FeasibilityResult{
		Score:      r.Score,
		RiskBucket: r.RiskBucket,
	}

	if r.Warnings != nil {
		cp.Warnings = append([]string(nil), r.Warnings...)
	}

	if r.Meta != nil {
		cp.Meta = make(map[string]any, len(r.Meta))
		for k, v := range r.Meta {
			cp.Meta[k] = v
		}
	}

	return cp
}
