// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package monkey

import (
	"math/rand"

	"github.com/pdiddy/stack-adviser/pkg/types"
)

// decisionFunc reports whether a produced stack is kept.
type decisionFunc func(r *rand.Rand) bool

// decisionFor maps a decision type to its acceptance function: all
// keeps every stack, random keeps each with probability 0.5.
func decisionFor(t types.DecisionType) decisionFunc {
	if t == types.DecisionRandom {
		return func(r *rand.Rand) bool { return r.Intn(2) == 1 }
	}
	return func(*rand.Rand) bool { return true }
}
