package resolve

import (
	"time"

	"github.com/pdiddy/stack-adviser/pkg/types"
)

// Stop reasons recorded on a report. An eager-stop unit supplies its
// own reason instead.
const (
	StopCompleted = "requested number of stacks resolved"
	StopLimit     = "iteration limit reached"
	StopExhausted = "beam exhausted, nothing left to expand"
	StopCanceled  = "run canceled"
	StopDryRun    = "dry run, resolution not started"
)

// Report is the outcome of one resolution run: the accepted products
// ordered best-first plus run-wide diagnostics. Per prd001-resolution R4.1-R4.5.
type Report struct {
	// RunID identifies the run.
	RunID string `json:"run_id" yaml:"run_id"`

	// Products are the accepted stacks, best score first.
	Products []*Product `json:"products" yaml:"products"`

	// StackInfo carries run-wide advisory records not tied to a single
	// product.
	StackInfo []types.Justification `json:"stack_info,omitempty" yaml:"stack_info,omitempty"`

	// StopReason records why the run ended.
	StopReason string `json:"stop_reason" yaml:"stop_reason"`

	// Iterations is the number of driver loop passes performed.
	Iterations int `json:"iterations" yaml:"iterations"`

	// AcceptedCount counts accepted final stacks.
	AcceptedCount int `json:"accepted_count" yaml:"accepted_count"`

	// DiscardedStates counts states dropped as not acceptable or
	// dead-ended.
	DiscardedStates int `json:"discarded_states" yaml:"discarded_states"`

	// SkippedCandidates counts candidate versions dropped by sieves and
	// steps.
	SkippedCandidates int `json:"skipped_candidates" yaml:"skipped_candidates"`

	// Duration is the wall-clock run time in nanoseconds.
	Duration time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

// Best returns the highest-scored product, nil when the run produced
// none.
func (r *Report) Best() *Product {
	if len(r.Products) == 0 {
		return nil
	}
	return r.Products[0]
}
