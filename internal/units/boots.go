// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package units

import (
	"fmt"

	"github.com/pdiddy/stack-adviser/internal/resolve"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// EnvironmentBoot records the targeted runtime environment as run-wide
// stack info so reports show what the recommendation was made for.
type EnvironmentBoot struct{}

func (b *EnvironmentBoot) Name() string { return "EnvironmentBoot" }

func (b *EnvironmentBoot) Run(ctx *resolve.Context) error {
	env := ctx.Project.RuntimeEnvironment

	msg := "resolving without a constrained runtime environment"
	if env.OperatingSystem.Name != "" || env.Runtime != "" {
		msg = fmt.Sprintf("resolving for %s %s, runtime %s",
			env.OperatingSystem.Name, env.OperatingSystem.Version, env.Runtime)
	}
	ctx.AddStackInfo(types.Justification{Type: types.JustificationInfo, Message: msg})

	if env.CUDAVersion != "" {
		ctx.AddStackInfo(types.Justification{
			Type:    types.JustificationInfo,
			Message: "stack targets CUDA " + env.CUDAVersion,
		})
	}
	return nil
}

// KnowledgeCheckBoot fails the run fast when a direct requirement has
// no known versions at all: resolution could only dead-end later, so
// stopping before the first iteration gives a clear report instead.
type KnowledgeCheckBoot struct{}

func (b *KnowledgeCheckBoot) Name() string { return "KnowledgeCheckBoot" }

func (b *KnowledgeCheckBoot) Run(ctx *resolve.Context) error {
	for _, req := range ctx.Project.Requirements {
		pvs, err := ctx.Knowledge.Versions(req.Name, req.Constraint, req.Index)
		if err != nil {
			return fmt.Errorf("checking versions of %s: %w", req.Name, err)
		}
		if len(pvs) == 0 {
			return resolve.EagerStop("no known versions of %s", req)
		}
	}
	return nil
}
