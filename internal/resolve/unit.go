// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// MaxStepScore bounds the absolute score delta a single step may
// report. Larger deltas are clamped and logged. Per prd003-pipeline-units R2.3.
const MaxStepScore = 100.0

// Unit is the common surface of all pipeline units.
type Unit interface {
	// Name identifies the unit in logs and reports.
	Name() string
}

// Boot units run once before resolution starts: environment checks,
// fail-fast validation, run-wide stack info. A boot returning
// EagerStopError aborts the run before the first iteration.
type Boot interface {
	Unit
	Run(ctx *Context) error
}

// Pseudonym units offer alternative package identities for a candidate
// ("package A is also published as B"). Returned triples join the
// candidate set alongside the original. Per prd003-pipeline-units R1.2.
type Pseudonym interface {
	Unit
	Run(ctx *Context, pv types.PackageVersion) ([]types.PackageVersion, error)
}

// Sieve units filter candidate package versions before any state is
// cloned for them. Returning ErrSkipCandidate drops the candidate;
// other control errors propagate per the driver's taxonomy.
type Sieve interface {
	Unit
	Run(ctx *Context, pv types.PackageVersion) error
}

// StepResult carries a step's scoring outcome.
type StepResult struct {
	// Score is the delta added to the state's score, clamped to
	// [-MaxStepScore, MaxStepScore].
	Score float64

	// Justification explains the delta; appended to the child state.
	Justification []types.Justification
}

// Step units score the inclusion of a candidate into a state. A nil
// result means no score change. ErrSkipCandidate drops the candidate,
// NotAcceptableError discards the child state.
type Step interface {
	Unit
	Run(ctx *Context, state *State, pv types.PackageVersion) (*StepResult, error)
}

// Stride units accept or reject fully resolved states before they
// become products. NotAcceptableError rejects the stack; the run
// continues. Per prd003-pipeline-units R4.1.
type Stride interface {
	Unit
	Run(ctx *Context, state *State) error
}

// Wrap units post-process accepted final states: justifications,
// advised manifest changes. Per prd003-pipeline-units R5.1.
type Wrap interface {
	Unit
	Run(ctx *Context, state *State) error
}

// Pipeline is the ordered unit configuration of one run. Stage order
// during expansion is fixed: pseudonyms, sieves, steps; strides and
// wraps run on final states only.
type Pipeline struct {
	Boots      []Boot
	Pseudonyms []Pseudonym
	Sieves     []Sieve
	Steps      []Step
	Strides    []Stride
	Wraps      []Wrap
}

// UnitCount returns the total number of configured units.
func (p *Pipeline) UnitCount() int {
	return len(p.Boots) + len(p.Pseudonyms) + len(p.Sieves) +
		len(p.Steps) + len(p.Strides) + len(p.Wraps)
}
