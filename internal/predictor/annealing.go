// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package predictor implements the state-selection strategies driving
// the beam search.
// Implements: prd002-annealing (R1-R4);
//
//	docs/ARCHITECTURE § Predictors.
package predictor

import (
	"math"

	"github.com/pdiddy/stack-adviser/internal/resolve"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// coolingFactor is the base of the exponential cooling schedule.
const coolingFactor = 0.95

// AdaptiveSimulatedAnnealing selects the beam state to expand by
// simulated annealing: usually the best-known state, with a
// temperature-driven chance of a random neighbour instead. The
// temperature seeds from the iteration limit and cools faster as
// accepted stacks accumulate, shifting the run from exploration to
// exploitation. For latest-version runs the predictor degenerates to
// pure hill climbing. Per prd002-annealing R1-R3.
type AdaptiveSimulatedAnnealing struct {
	// KeepHistory records a temperature trace for diagnostics.
	KeepHistory bool

	temperature float64
	history     []TemperatureRecord
}

// TemperatureRecord is one line of the annealing trace.
type TemperatureRecord struct {
	Iteration             int
	Temperature           float64
	TopChosen             bool
	AcceptanceProbability float64
	AcceptedCount         int
}

// PreRun seeds the temperature from the run's iteration limit and
// clears any previous trace.
func (p *AdaptiveSimulatedAnnealing) PreRun(ctx *resolve.Context) {
	p.temperature = float64(ctx.Limit)
	p.history = nil
}

// Run returns the state to expand this iteration.
func (p *AdaptiveSimulatedAnnealing) Run(ctx *resolve.Context, beam *resolve.Beam) (*resolve.State, error) {
	// Latest-version runs exploit only; no temperature bookkeeping.
	if ctx.Recommendation == types.RecommendationLatest {
		return beam.Get(0)
	}

	p.temperature = coolDown(p.temperature, ctx)

	top, err := beam.Top()
	if err != nil {
		return nil, err
	}

	// Neighbour rank in [1, size); rank 0 when the beam holds a single
	// state, in which case the acceptance check below can never pick it
	// as an exploration target.
	idx := 0
	if beam.Size() > 1 {
		idx = 1 + ctx.Rand.Intn(beam.Size()-1)
	}
	neighbour, err := beam.Get(idx)
	if err != nil {
		return nil, err
	}

	prob := acceptanceProbability(ctx, top.Score(), neighbour.Score(), p.temperature)

	chosen := top
	if idx != 0 && prob >= ctx.Rand.Float64() {
		chosen = neighbour
	}

	if p.KeepHistory {
		p.history = append(p.history, TemperatureRecord{
			Iteration:             ctx.Iteration,
			Temperature:           p.temperature,
			TopChosen:             chosen == top,
			AcceptanceProbability: prob,
			AcceptedCount:         ctx.AcceptedFinalStatesCount,
		})
	}
	return chosen, nil
}

// coolDown applies the adaptive exponential schedule: the decay
// exponent grows with the share of requested stacks already accepted,
// so cooling accelerates toward the end of a run.
func coolDown(temperature float64, ctx *resolve.Context) float64 {
	k := float64(ctx.AcceptedFinalStatesCount) / float64(ctx.Limit)
	return temperature * math.Pow(coolingFactor, k)
}

// acceptanceProbability is the Metropolis criterion: a strictly better
// neighbour is always accepted; otherwise the score deficit is scaled
// by the current temperature. A non-positive temperature is an internal
// error reported on the run log; it yields probability zero instead of
// aborting the run.
func acceptanceProbability(ctx *resolve.Context, top, neighbour, temperature float64) float64 {
	if neighbour > top {
		return 1.0
	}
	if temperature <= 0 {
		ctx.Logf("error: acceptance probability requested with temperature %g", temperature)
		return 0.0
	}
	return math.Exp((neighbour - top) / temperature)
}
