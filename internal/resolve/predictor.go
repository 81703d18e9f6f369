// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

// Predictor chooses which beam state the driver expands next. Given a
// fixed random seed in the context, Run must be deterministic, and it
// must not mutate the beam or the context beyond its own internal
// history. Run errors only on genuine internal failure (an empty beam);
// "no good candidate" is a choice, never a failure.
// Per prd002-annealing R1.1-R1.3.
type Predictor interface {
	// PreRun resets internal mutable state before a run's first Run call.
	PreRun(ctx *Context)

	// Run returns the state to expand next.
	Run(ctx *Context, beam *Beam) (*State, error)
}
