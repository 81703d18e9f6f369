// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package units

import (
	"fmt"

	"github.com/pdiddy/stack-adviser/internal/resolve"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// cvePenalty is the score delta applied per known vulnerability.
const cvePenalty = -0.2

// DropoutStep randomly discards in-progress states so dependency-monkey
// runs sample a wider slice of the stack space instead of walking it in
// order.
type DropoutStep struct {
	// Probability is the chance a state survives the step.
	Probability float64
}

// NewDropoutStep returns a dropout step with the default survival
// probability of 0.9.
func NewDropoutStep() *DropoutStep {
	return &DropoutStep{Probability: 0.9}
}

func (u *DropoutStep) Name() string { return "DropoutStep" }

func (u *DropoutStep) Run(ctx *resolve.Context, _ *resolve.State, _ types.PackageVersion) (*resolve.StepResult, error) {
	if ctx.Rand.Float64() >= u.Probability {
		return nil, resolve.NotAcceptable("dropout discarded the state")
	}
	return nil, nil
}

// SecurityStep penalizes candidates with recorded vulnerabilities and
// attaches a CVE justification per advisory.
type SecurityStep struct{}

func (u *SecurityStep) Name() string { return "SecurityStep" }

func (u *SecurityStep) Run(ctx *resolve.Context, _ *resolve.State, pv types.PackageVersion) (*resolve.StepResult, error) {
	advisories, err := ctx.Knowledge.Advisories(pv.Name, pv.Version)
	if err != nil {
		return nil, fmt.Errorf("querying advisories for %s: %w", pv, err)
	}
	if len(advisories) == 0 {
		return nil, nil
	}

	res := &resolve.StepResult{}
	for _, adv := range advisories {
		res.Score += cvePenalty
		res.Justification = append(res.Justification, types.Justification{
			Type:         types.JustificationCVE,
			Message:      adv.Summary,
			Link:         adv.Link,
			Package:      pv.Name,
			CVEID:        adv.CVEID,
			VersionRange: adv.VersionRange,
		})
	}
	return res, nil
}

// PerformanceStep scores candidates by the aggregated performance
// measurements recorded for them.
type PerformanceStep struct{}

func (u *PerformanceStep) Name() string { return "PerformanceStep" }

func (u *PerformanceStep) Run(ctx *resolve.Context, _ *resolve.State, pv types.PackageVersion) (*resolve.StepResult, error) {
	score, err := ctx.Knowledge.PerformanceScore(pv)
	if err != nil {
		return nil, fmt.Errorf("querying performance of %s: %w", pv, err)
	}
	if score == 0 {
		return nil, nil
	}
	return &resolve.StepResult{
		Score: score,
		Justification: []types.Justification{{
			Type:    types.JustificationInfo,
			Message: fmt.Sprintf("performance record %.2f for %s", score, pv),
			Package: pv.Name,
		}},
	}, nil
}

// LatestVersionStep marks the newest release of each package in
// latest-version runs, so the report explains why the pick was made.
type LatestVersionStep struct{}

func (u *LatestVersionStep) Name() string { return "LatestVersionStep" }

func (u *LatestVersionStep) Run(ctx *resolve.Context, _ *resolve.State, pv types.PackageVersion) (*resolve.StepResult, error) {
	known, err := ctx.Knowledge.Versions(pv.Name, "", "")
	if err != nil {
		return nil, fmt.Errorf("querying versions of %s: %w", pv.Name, err)
	}
	if len(known) == 0 || known[0].Version != pv.Version {
		return nil, nil
	}
	return &resolve.StepResult{
		Justification: []types.Justification{{
			Type:    types.JustificationLatest,
			Message: fmt.Sprintf("%s is the newest known release of %s", pv.Version, pv.Name),
			Package: pv.Name,
		}},
	}, nil
}
