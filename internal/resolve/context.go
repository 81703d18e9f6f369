// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/pdiddy/stack-adviser/pkg/types"
)

// Context carries the mutable bookkeeping of one resolution run. The
// driver owns it; pipeline units and the predictor read it, and units
// may append run-wide stack info. Per prd001-resolution R2.1-R2.6.
type Context struct {
	// Project under resolution.
	Project *types.Project

	// Knowledge is the backing store units and the driver query.
	Knowledge KnowledgeBase

	// Iteration counts driver loop passes. Never decreases.
	Iteration int

	// Limit bounds Iteration.
	Limit int

	// Count is the number of accepted final states requested.
	Count int

	// AcceptedFinalStatesCount counts fully resolved accepted stacks,
	// bounded by Count.
	AcceptedFinalStatesCount int

	// Recommendation selects the resolution profile.
	Recommendation types.RecommendationType

	// Decision selects the dependency-monkey acceptance function. Unused
	// outside monkey runs.
	Decision types.DecisionType

	// Rand is the run's sole random source, seeded once so runs are
	// reproducible. Per prd001-resolution R6.2.
	Rand *rand.Rand

	// RunID identifies the run in reports and output files.
	RunID string

	// Log receives progress lines; nil discards them.
	Log io.Writer

	stackInfo []types.Justification
}

// AddStackInfo appends run-wide advisory records, surfaced in the
// final report independent of any single product.
func (c *Context) AddStackInfo(records ...types.Justification) {
	c.stackInfo = append(c.stackInfo, records...)
}

// StackInfo returns the accumulated run-wide records.
func (c *Context) StackInfo() []types.Justification { return c.stackInfo }

// Logf writes one formatted progress line to the context's log sink.
func (c *Context) Logf(format string, args ...any) {
	if c.Log == nil {
		return
	}
	fmt.Fprintf(c.Log, format+"\n", args...)
}
