// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/stack-adviser/internal/versions"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// Resolver drives the beam search: each iteration it asks the predictor
// for a state, expands that state's next unresolved requirement through
// the pipeline stages, and feeds surviving children back into the beam
// or promotes completed stacks to products.
// Per prd001-resolution R2, R5, R6.
type Resolver struct {
	// Pipeline holds the configured units.
	Pipeline *Pipeline

	// Predictor selects the state expanded each iteration.
	Predictor Predictor

	// Knowledge backs candidate and metadata queries.
	Knowledge KnowledgeBase

	// Recommendation selects the resolution profile.
	Recommendation types.RecommendationType

	// Decision selects the dependency-monkey acceptance function.
	Decision types.DecisionType

	// BeamWidth bounds the beam; 0 means unbounded.
	BeamWidth int

	// Limit bounds the number of iterations.
	Limit int

	// Count is the number of stacks to produce.
	Count int

	// Seed seeds the run's random source; 0 derives a seed from the
	// clock.
	Seed int64

	// NoDigests skips artifact digest lookups during product
	// finalization.
	NoDigests bool

	// Log receives progress lines; nil discards them.
	Log io.Writer
}

// Resolve runs the search for the given project. Cancellation of ctx is
// checked at the top of every iteration and ends the run with the
// products accumulated so far rather than an error. The returned error
// is non-nil only for configuration and genuine internal failures.
func (r *Resolver) Resolve(ctx context.Context, project *types.Project) (*Report, error) {
	if err := r.validate(project); err != nil {
		return nil, err
	}

	seed := r.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rctx := &Context{
		Project:        project,
		Knowledge:      r.Knowledge,
		Limit:          r.Limit,
		Count:          r.Count,
		Recommendation: r.Recommendation,
		Decision:       r.Decision,
		Rand:           rand.New(rand.NewSource(seed)),
		RunID:          uuid.NewString(),
		Log:            r.Log,
	}

	report := &Report{RunID: rctx.RunID}
	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
	}()

	rctx.Logf("run %s: resolving %d requirements (seed %d)", rctx.RunID, len(project.Requirements), seed)

	for _, boot := range r.Pipeline.Boots {
		if err := boot.Run(rctx); err != nil {
			var stop *EagerStopError
			if errors.As(err, &stop) {
				rctx.Logf("boot %s stopped the run: %s", boot.Name(), stop.Reason)
				report.StopReason = stop.Reason
				r.finishReport(rctx, report)
				return report, nil
			}
			return nil, fmt.Errorf("boot %s: %w", boot.Name(), err)
		}
	}

	beam := NewBeam(r.BeamWidth)
	beam.Add(NewState(project.Requirements))
	r.Predictor.PreRun(rctx)

	for {
		if err := ctx.Err(); err != nil {
			rctx.Logf("run canceled after %d iterations: %v", rctx.Iteration, err)
			report.StopReason = StopCanceled
			break
		}
		if rctx.AcceptedFinalStatesCount >= r.Count {
			report.StopReason = StopCompleted
			break
		}
		if rctx.Iteration >= r.Limit {
			report.StopReason = StopLimit
			break
		}
		if beam.Size() == 0 {
			report.StopReason = StopExhausted
			break
		}

		rctx.Iteration++

		state, err := r.Predictor.Run(rctx, beam)
		if err != nil {
			return nil, fmt.Errorf("predictor at iteration %d: %w", rctx.Iteration, err)
		}
		beam.Remove(state)

		if err := r.expand(rctx, beam, state, report); err != nil {
			var stop *EagerStopError
			if errors.As(err, &stop) {
				rctx.Logf("eager stop at iteration %d: %s", rctx.Iteration, stop.Reason)
				report.StopReason = stop.Reason
				break
			}
			return nil, err
		}
	}

	r.finishReport(rctx, report)
	rctx.Logf("run %s finished: %d products, %d iterations (%s)",
		rctx.RunID, len(report.Products), report.Iterations, report.StopReason)
	return report, nil
}

func (r *Resolver) validate(project *types.Project) error {
	switch {
	case project == nil || len(project.Requirements) == 0:
		return errors.New("no requirements to resolve")
	case r.Pipeline == nil:
		return errors.New("no pipeline configured")
	case r.Predictor == nil:
		return errors.New("no predictor configured")
	case r.Knowledge == nil:
		return errors.New("no knowledge base configured")
	case r.Limit <= 0:
		return fmt.Errorf("iteration limit must be positive, got %d", r.Limit)
	case r.Count <= 0:
		return fmt.Errorf("stack count must be positive, got %d", r.Count)
	}
	return nil
}

func (r *Resolver) finishReport(rctx *Context, report *Report) {
	report.Iterations = rctx.Iteration
	report.AcceptedCount = rctx.AcceptedFinalStatesCount
	report.StackInfo = rctx.StackInfo()
	sort.SliceStable(report.Products, func(i, j int) bool {
		return report.Products[i].Score > report.Products[j].Score
	})
	if len(report.Products) > r.Count {
		report.Products = report.Products[:r.Count]
	}
}

// expand resolves the next unresolved requirement of state, feeding
// surviving children into the beam and completed stacks into the
// report. Only EagerStopError and internal errors propagate; skip and
// not-acceptable outcomes are handled here.
func (r *Resolver) expand(rctx *Context, beam *Beam, state *State, report *Report) error {
	req, ok := state.NextUnresolved()
	if !ok {
		// Fully resolved state surfaced by the predictor.
		return r.finalize(rctx, state, report)
	}

	// A requirement whose package is already pinned in this state either
	// agrees with the pin or kills the state.
	if existing, resolved := state.ResolvedVersion(req.Name); resolved {
		spec, err := versions.Parse(req.Constraint)
		if err != nil {
			rctx.Logf("discarding state: bad specifier %q for %s: %v", req.Constraint, req.Name, err)
			report.DiscardedStates++
			return nil
		}
		if !spec.Match(existing.Version) {
			rctx.Logf("discarding state: %s pinned to %s conflicts with %s", req.Name, existing.Version, req)
			report.DiscardedStates++
			return nil
		}
		state.DropUnresolvedHead()
		if _, more := state.NextUnresolved(); more {
			beam.Add(state)
			return nil
		}
		return r.finalize(rctx, state, report)
	}

	candidates, err := rctx.Knowledge.Versions(req.Name, req.Constraint, req.Index)
	if err != nil {
		return fmt.Errorf("querying versions of %s: %w", req.Name, err)
	}

	candidates, err = r.runPseudonyms(rctx, candidates)
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		rctx.Logf("no candidates for %s, discarding state", req)
		report.DiscardedStates++
		return nil
	}

	children := 0
	for _, pv := range candidates {
		switch err := r.runSieves(rctx, pv); {
		case err == nil:
		case errors.Is(err, ErrSkipCandidate):
			report.SkippedCandidates++
			continue
		default:
			var na *NotAcceptableError
			if errors.As(err, &na) {
				rctx.Logf("discarding state at %s: %s", pv, na.Reason)
				report.DiscardedStates++
				return nil
			}
			return err
		}

		child := state.Clone()
		child.MarkResolved(pv)

		deps, err := rctx.Knowledge.Dependencies(pv)
		if err != nil {
			return fmt.Errorf("querying dependencies of %s: %w", pv, err)
		}
		for _, dep := range deps {
			child.AddUnresolved(dep)
		}

		ok, err := r.runSteps(rctx, state, child, pv, report)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		if _, more := child.NextUnresolved(); more {
			beam.Add(child)
			children++
			continue
		}
		if err := r.finalize(rctx, child, report); err != nil {
			return err
		}
		children++
		if rctx.AcceptedFinalStatesCount >= rctx.Count {
			break
		}
	}

	if children == 0 {
		rctx.Logf("state dead-ended on %s", req)
		report.DiscardedStates++
	}
	return nil
}

// runPseudonyms extends the candidate set with alternative identities.
// The original candidates always stay.
func (r *Resolver) runPseudonyms(rctx *Context, candidates []types.PackageVersion) ([]types.PackageVersion, error) {
	if len(r.Pipeline.Pseudonyms) == 0 || len(candidates) == 0 {
		return candidates, nil
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, pv := range candidates {
		seen[pv.Key()] = struct{}{}
	}

	originals := candidates
	for _, unit := range r.Pipeline.Pseudonyms {
		for _, pv := range originals {
			alts, err := unit.Run(rctx, pv)
			if err != nil {
				var stop *EagerStopError
				if errors.As(err, &stop) {
					return nil, err
				}
				return nil, fmt.Errorf("pseudonym %s on %s: %w", unit.Name(), pv, err)
			}
			for _, alt := range alts {
				if _, dup := seen[alt.Key()]; dup {
					continue
				}
				seen[alt.Key()] = struct{}{}
				candidates = append(candidates, alt)
			}
		}
	}
	return candidates, nil
}

func (r *Resolver) runSieves(rctx *Context, pv types.PackageVersion) error {
	for _, unit := range r.Pipeline.Sieves {
		if err := unit.Run(rctx, pv); err != nil {
			if errors.Is(err, ErrSkipCandidate) {
				return err
			}
			var na *NotAcceptableError
			var stop *EagerStopError
			if errors.As(err, &na) || errors.As(err, &stop) {
				return err
			}
			return fmt.Errorf("sieve %s on %s: %w", unit.Name(), pv, err)
		}
	}
	return nil
}

// runSteps scores the inclusion of pv into parent, applying deltas and
// justifications to child. Returns false when the candidate or child
// was dropped.
func (r *Resolver) runSteps(rctx *Context, parent, child *State, pv types.PackageVersion, report *Report) (bool, error) {
	for _, unit := range r.Pipeline.Steps {
		res, err := unit.Run(rctx, parent, pv)
		switch {
		case err == nil:
		case errors.Is(err, ErrSkipCandidate):
			report.SkippedCandidates++
			return false, nil
		default:
			var na *NotAcceptableError
			if errors.As(err, &na) {
				rctx.Logf("step %s rejected %s: %s", unit.Name(), pv, na.Reason)
				report.DiscardedStates++
				return false, nil
			}
			var stop *EagerStopError
			if errors.As(err, &stop) {
				return false, err
			}
			return false, fmt.Errorf("step %s on %s: %w", unit.Name(), pv, err)
		}

		if res == nil {
			continue
		}
		delta := res.Score
		if delta > MaxStepScore || delta < -MaxStepScore {
			rctx.Logf("step %s reported score %.4f outside [%.0f, %.0f], clamping",
				unit.Name(), delta, -MaxStepScore, MaxStepScore)
			if delta > MaxStepScore {
				delta = MaxStepScore
			} else {
				delta = -MaxStepScore
			}
		}
		child.AddScore(delta)
		child.AddJustification(res.Justification...)
	}
	return true, nil
}

// finalize runs strides and wraps on a fully resolved state and, when
// accepted, promotes it to a product.
func (r *Resolver) finalize(rctx *Context, state *State, report *Report) error {
	for _, unit := range r.Pipeline.Strides {
		if err := unit.Run(rctx, state); err != nil {
			var na *NotAcceptableError
			if errors.As(err, &na) {
				rctx.Logf("stride %s rejected stack: %s", unit.Name(), na.Reason)
				report.DiscardedStates++
				return nil
			}
			var stop *EagerStopError
			if errors.As(err, &stop) {
				return err
			}
			return fmt.Errorf("stride %s: %w", unit.Name(), err)
		}
	}

	rctx.AcceptedFinalStatesCount++

	for _, unit := range r.Pipeline.Wraps {
		if err := unit.Run(rctx, state); err != nil {
			var stop *EagerStopError
			if errors.As(err, &stop) {
				// The stack is already accepted; record the product
				// before the stop propagates.
				report.Products = append(report.Products, newProduct(rctx, state, r.NoDigests))
				return err
			}
			return fmt.Errorf("wrap %s: %w", unit.Name(), err)
		}
	}

	product := newProduct(rctx, state, r.NoDigests)
	report.Products = append(report.Products, product)
	rctx.Logf("accepted stack %d/%d, score %.4f (%d packages)",
		rctx.AcceptedFinalStatesCount, r.Count, product.Score, len(product.Packages))
	return nil
}
