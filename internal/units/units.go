// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package units provides the builtin pipeline units and the builder
// assembling a pipeline for one resolution run.
// Implements: prd003-pipeline-units (R1-R5);
//
//	docs/ARCHITECTURE § Pipeline Units.
package units

import (
	"github.com/pdiddy/stack-adviser/internal/resolve"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// BuilderContext describes the run a pipeline is being assembled for.
// Registration predicates inspect it to decide inclusion.
type BuilderContext struct {
	// Recommendation is the resolution profile of the run.
	Recommendation types.RecommendationType

	// Decision is the dependency-monkey acceptance function; meaningful
	// only when ForMonkey is set.
	Decision types.DecisionType

	// ForMonkey marks dependency-monkey runs, which assemble a
	// different pipeline than adviser runs.
	ForMonkey bool

	// Project under resolution.
	Project *types.Project

	// Lockfile optionally pins packages resolution must honor.
	Lockfile *types.Lockfile
}

// Registration pairs an inclusion predicate with a factory. The
// builder evaluates the predicate once per run and, when it holds,
// lets the factory append its unit instances to the pipeline.
type Registration struct {
	// Include reports whether the unit joins this run's pipeline. A nil
	// predicate always includes.
	Include func(*BuilderContext) bool

	// Add appends the constructed unit(s) to the pipeline.
	Add func(*BuilderContext, *resolve.Pipeline)
}

// Build assembles the pipeline for a run: the builtin catalog in its
// fixed order, then any extra registrations (prescriptions) in the
// order given.
func Build(bctx *BuilderContext, extra ...Registration) *resolve.Pipeline {
	pipeline := &resolve.Pipeline{}
	for _, reg := range builtinRegistrations() {
		if reg.Include != nil && !reg.Include(bctx) {
			continue
		}
		reg.Add(bctx, pipeline)
	}
	for _, reg := range extra {
		if reg.Include != nil && !reg.Include(bctx) {
			continue
		}
		reg.Add(bctx, pipeline)
	}
	return pipeline
}

// builtinRegistrations lists the builtin catalog. Order within each
// stage type is the order units run in.
func builtinRegistrations() []Registration {
	return []Registration{
		// Boots.
		{
			Add: func(_ *BuilderContext, p *resolve.Pipeline) {
				p.Boots = append(p.Boots, &EnvironmentBoot{})
			},
		},
		{
			Add: func(_ *BuilderContext, p *resolve.Pipeline) {
				p.Boots = append(p.Boots, &KnowledgeCheckBoot{})
			},
		},

		// Pseudonyms.
		{
			Add: func(_ *BuilderContext, p *resolve.Pipeline) {
				p.Pseudonyms = append(p.Pseudonyms, &AliasPseudonym{})
			},
		},

		// Sieves.
		{
			Add: func(_ *BuilderContext, p *resolve.Pipeline) {
				p.Sieves = append(p.Sieves, &LegacyVersionSieve{})
			},
		},
		{
			Add: func(_ *BuilderContext, p *resolve.Pipeline) {
				p.Sieves = append(p.Sieves, &SolvedSieve{})
			},
		},
		{
			Include: func(b *BuilderContext) bool { return len(b.Project.AllowedIndexes) > 0 },
			Add: func(b *BuilderContext, p *resolve.Pipeline) {
				p.Sieves = append(p.Sieves, &IndexSieve{Project: b.Project})
			},
		},
		{
			Include: func(b *BuilderContext) bool {
				return b.Recommendation != types.RecommendationTesting && !b.Project.AllowPrereleases
			},
			Add: func(_ *BuilderContext, p *resolve.Pipeline) {
				p.Sieves = append(p.Sieves, &PreReleaseSieve{})
			},
		},
		{
			Include: func(b *BuilderContext) bool { return b.Lockfile != nil },
			Add: func(b *BuilderContext, p *resolve.Pipeline) {
				p.Sieves = append(p.Sieves, NewLockedSieve(b.Lockfile))
			},
		},

		// Steps.
		{
			Include: func(b *BuilderContext) bool { return b.ForMonkey },
			Add: func(_ *BuilderContext, p *resolve.Pipeline) {
				p.Steps = append(p.Steps, NewDropoutStep())
			},
		},
		{
			Include: func(b *BuilderContext) bool { return b.Recommendation != types.RecommendationLatest },
			Add: func(_ *BuilderContext, p *resolve.Pipeline) {
				p.Steps = append(p.Steps, &SecurityStep{})
			},
		},
		{
			Add: func(_ *BuilderContext, p *resolve.Pipeline) {
				p.Steps = append(p.Steps, &PerformanceStep{})
			},
		},
		{
			Include: func(b *BuilderContext) bool { return b.Recommendation == types.RecommendationLatest },
			Add: func(_ *BuilderContext, p *resolve.Pipeline) {
				p.Steps = append(p.Steps, &LatestVersionStep{})
			},
		},

		// Strides.
		{
			Add: func(_ *BuilderContext, p *resolve.Pipeline) {
				p.Strides = append(p.Strides, NewUniqueStackStride())
			},
		},

		// Wraps.
		{
			Add: func(_ *BuilderContext, p *resolve.Pipeline) {
				p.Wraps = append(p.Wraps, NewRuntimeChangesWrap())
			},
		},
		{
			Add: func(_ *BuilderContext, p *resolve.Pipeline) {
				p.Wraps = append(p.Wraps, &NoObservationWrap{})
			},
		},
	}
}
