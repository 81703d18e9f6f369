// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prescription

import (
	"strings"

	"github.com/pdiddy/stack-adviser/internal/resolve"
	"github.com/pdiddy/stack-adviser/internal/units"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// Registrations adapts the document's declared units into builder
// registrations, appended after the builtin catalog in declaration
// order.
func (d *Document) Registrations() []units.Registration {
	var regs []units.Registration
	for _, u := range d.Spec.Units.Boots {
		spec := u
		regs = append(regs, units.Registration{
			Include: spec.include,
			Add: func(_ *units.BuilderContext, p *resolve.Pipeline) {
				p.Boots = append(p.Boots, &declaredBoot{declaredUnit{spec: spec}})
			},
		})
	}
	for _, u := range d.Spec.Units.Pseudonyms {
		spec := u
		regs = append(regs, units.Registration{
			Include: spec.include,
			Add: func(_ *units.BuilderContext, p *resolve.Pipeline) {
				p.Pseudonyms = append(p.Pseudonyms, &declaredPseudonym{declaredUnit{spec: spec}})
			},
		})
	}
	for _, u := range d.Spec.Units.Sieves {
		spec := u
		regs = append(regs, units.Registration{
			Include: spec.include,
			Add: func(_ *units.BuilderContext, p *resolve.Pipeline) {
				p.Sieves = append(p.Sieves, &declaredSieve{declaredUnit{spec: spec}})
			},
		})
	}
	for _, u := range d.Spec.Units.Steps {
		spec := u
		regs = append(regs, units.Registration{
			Include: spec.include,
			Add: func(_ *units.BuilderContext, p *resolve.Pipeline) {
				p.Steps = append(p.Steps, &declaredStep{declaredUnit{spec: spec}})
			},
		})
	}
	for _, u := range d.Spec.Units.Strides {
		spec := u
		regs = append(regs, units.Registration{
			Include: spec.include,
			Add: func(_ *units.BuilderContext, p *resolve.Pipeline) {
				p.Strides = append(p.Strides, &declaredStride{declaredUnit{spec: spec}})
			},
		})
	}
	for _, u := range d.Spec.Units.Wraps {
		spec := u
		regs = append(regs, units.Registration{
			Include: spec.include,
			Add: func(_ *units.BuilderContext, p *resolve.Pipeline) {
				p.Wraps = append(p.Wraps, &declaredWrap{declaredUnit{spec: spec}})
			},
		})
	}
	return regs
}

// Registrations flattens multiple documents into one registration list.
func Registrations(docs []*Document) []units.Registration {
	var regs []units.Registration
	for _, d := range docs {
		regs = append(regs, d.Registrations()...)
	}
	return regs
}

// include is the builder predicate for a declared unit.
func (u *UnitSpec) include(bctx *units.BuilderContext) bool {
	si := u.ShouldInclude
	if si.Times != nil && *si.Times == 0 {
		return false
	}
	if bctx.ForMonkey {
		if !si.DependencyMonkeyPipeline {
			return false
		}
		if len(si.DecisionTypes) > 0 && !containsFold(si.DecisionTypes, bctx.Decision.String()) {
			return false
		}
	} else if !si.AdviserPipeline {
		return false
	}
	if len(si.RecommendationTypes) > 0 && !containsFold(si.RecommendationTypes, bctx.Recommendation.String()) {
		return false
	}
	return true
}

func containsFold(list []string, want string) bool {
	for _, s := range list {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}

// fires reports whether any match entry holds for the given state and
// candidate. Units without match clauses always fire. A nil pv or
// state satisfies only entries without the corresponding clause.
func (u *UnitSpec) fires(state *resolve.State, pv *types.PackageVersion) bool {
	if len(u.matchers) == 0 {
		return true
	}
	for _, m := range u.matchers {
		if m.pkg != nil && (pv == nil || !m.pkg.matches(*pv)) {
			continue
		}
		if len(m.state) > 0 && (state == nil || !resolvedMatch(state, m.state)) {
			continue
		}
		return true
	}
	return false
}

func (pm *pkgMatcher) matches(pv types.PackageVersion) bool {
	if pm.name != "" && pm.name != pv.Name {
		return false
	}
	if pm.index != "" && pm.index != pv.Index {
		return false
	}
	if pm.pinned && !pm.version.Match(pv.Version) {
		return false
	}
	return true
}

func resolvedMatch(state *resolve.State, deps []pkgMatcher) bool {
	for i := range deps {
		pv, ok := state.ResolvedVersion(deps[i].name)
		if !ok || !deps[i].matches(pv) {
			return false
		}
	}
	return true
}

// declaredUnit carries the shared run-effect plumbing of all adapter
// types. Stack info is recorded once per unit instance per run.
type declaredUnit struct {
	spec          *UnitSpec
	stackInfoDone bool
}

func (u *declaredUnit) Name() string { return u.spec.Name }

func (u *declaredUnit) applyEffects(ctx *resolve.Context) {
	if l := u.spec.Run.Log; l != nil && l.Message != "" {
		switch normalizeType(l.Type) {
		case "ERROR":
			ctx.Logf("error: %s: %s", u.spec.Name, l.Message)
		case "WARNING":
			ctx.Logf("warning: %s: %s", u.spec.Name, l.Message)
		default:
			ctx.Logf("%s: %s", u.spec.Name, l.Message)
		}
	}
	if !u.stackInfoDone && len(u.spec.Run.StackInfo) > 0 {
		ctx.AddStackInfo(justificationRecords(u.spec.Run.StackInfo)...)
		u.stackInfoDone = true
	}
}

// stop returns the declared terminal outcome, nil when none declared.
func (u *declaredUnit) stop() error {
	if msg := u.spec.Run.EagerStopPipeline; msg != "" {
		return resolve.EagerStop("%s", msg)
	}
	if msg := u.spec.Run.NotAcceptable; msg != "" {
		return resolve.NotAcceptable("%s", msg)
	}
	return nil
}

func justificationRecords(specs []JustificationSpec) []types.Justification {
	out := make([]types.Justification, 0, len(specs))
	for _, s := range specs {
		out = append(out, types.Justification{
			Type:    types.JustificationType(normalizeType(s.Type)),
			Message: s.Message,
			Link:    s.Link,
		})
	}
	return out
}

func manifestChanges(specs []ManifestChangeSpec) []types.ManifestChange {
	out := make([]types.ManifestChange, 0, len(specs))
	for _, s := range specs {
		out = append(out, types.ManifestChange{
			APIVersion: s.APIVersion,
			Kind:       s.Kind,
			Patch: types.ManifestPatch{
				Op:    s.PatchOp,
				Path:  s.PatchPath,
				Value: s.PatchValue,
			},
		})
	}
	return out
}

type declaredBoot struct{ declaredUnit }

func (u *declaredBoot) Run(ctx *resolve.Context) error {
	u.applyEffects(ctx)
	return u.stop()
}

type declaredPseudonym struct{ declaredUnit }

func (u *declaredPseudonym) Run(ctx *resolve.Context, pv types.PackageVersion) ([]types.PackageVersion, error) {
	if !u.spec.fires(nil, &pv) {
		return nil, nil
	}
	u.applyEffects(ctx)

	y := u.spec.Run.Yield.PackageVersion
	constraint := y.Version
	if constraint == "" {
		constraint = "==" + pv.Version
	}
	alts, err := ctx.Knowledge.Versions(y.Name, constraint, y.IndexURL)
	if err != nil {
		return nil, err
	}
	for _, alt := range alts {
		ctx.Logf("%s: considering %s as a pseudonym of %s", u.spec.Name, alt, pv)
	}
	return alts, nil
}

type declaredSieve struct{ declaredUnit }

func (u *declaredSieve) Run(ctx *resolve.Context, pv types.PackageVersion) error {
	if !u.spec.fires(nil, &pv) {
		return nil
	}
	u.applyEffects(ctx)
	if err := u.stop(); err != nil {
		return err
	}
	ctx.Logf("removing %s: matched by %s", pv, u.spec.Name)
	return resolve.ErrSkipCandidate
}

type declaredStep struct{ declaredUnit }

func (u *declaredStep) Run(ctx *resolve.Context, state *resolve.State, pv types.PackageVersion) (*resolve.StepResult, error) {
	if !u.spec.fires(state, &pv) {
		return nil, nil
	}
	u.applyEffects(ctx)
	if err := u.stop(); err != nil {
		return nil, err
	}

	run := u.spec.Run
	if run.Score == nil && len(run.Justification) == 0 {
		return nil, nil
	}
	res := &resolve.StepResult{Justification: justificationRecords(run.Justification)}
	if run.Score != nil {
		res.Score = *run.Score
	}
	return res, nil
}

type declaredStride struct{ declaredUnit }

func (u *declaredStride) Run(ctx *resolve.Context, state *resolve.State) error {
	if !u.spec.fires(state, nil) {
		return nil
	}
	u.applyEffects(ctx)
	return u.stop()
}

type declaredWrap struct{ declaredUnit }

func (u *declaredWrap) Run(ctx *resolve.Context, state *resolve.State) error {
	if !u.spec.fires(state, nil) {
		return nil
	}
	u.applyEffects(ctx)
	if err := u.stop(); err != nil {
		return err
	}
	if len(u.spec.Run.Justification) > 0 {
		state.AddJustification(justificationRecords(u.spec.Run.Justification)...)
	}
	if len(u.spec.Run.AdvisedManifestChanges) > 0 {
		state.AddManifestChange(manifestChanges(u.spec.Run.AdvisedManifestChanges)...)
	}
	return nil
}
