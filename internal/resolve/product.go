// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// Product is one accepted final stack: the pinned packages with their
// artifact digests, the final score and the advisory trail that
// produced it. Per prd001-resolution R4.2-R4.4.
type Product struct {
	// Packages are the pinned entries in resolution order.
	Packages []types.LockedPackage `json:"packages" yaml:"packages"`

	// Score is the final pipeline score of the stack.
	Score float64 `json:"score" yaml:"score"`

	// Justification explains the scoring and filtering decisions.
	Justification []types.Justification `json:"justification,omitempty" yaml:"justification,omitempty"`

	// AdvisedChanges are deployment-manifest adjustments advised by
	// wrap units.
	AdvisedChanges []types.ManifestChange `json:"advised_manifest_changes,omitempty" yaml:"advised_manifest_changes,omitempty"`
}

// newProduct finalizes an accepted state into a product, filling
// artifact digests from the knowledge base. A missing or failing digest
// lookup is reported on the run log and leaves the entry without
// hashes; it never fails the product.
func newProduct(ctx *Context, state *State, noDigests bool) *Product {
	p := &Product{Score: state.Score()}
	p.Justification = append(p.Justification, state.Justifications()...)
	p.AdvisedChanges = append(p.AdvisedChanges, state.ManifestChanges()...)

	for _, pv := range state.Resolved() {
		lp := types.LockedPackage{Name: pv.Name, Version: pv.Version, Index: pv.Index}
		if !noDigests {
			hashes, err := ctx.Knowledge.Hashes(pv)
			switch {
			case err != nil:
				ctx.Logf("digest lookup failed for %s: %v", pv, err)
			case len(hashes) == 0:
				ctx.Logf("no artifact digests recorded for %s", pv)
			default:
				lp.Hashes = hashes
			}
		}
		p.Packages = append(p.Packages, lp)
	}
	return p
}

// Lockfile renders the product as a pinned stack file.
func (p *Product) Lockfile(generatedBy, runID string) *types.Lockfile {
	l := &types.Lockfile{
		Meta: types.LockMeta{GeneratedBy: generatedBy, RunID: runID, Score: p.Score},
	}
	l.Packages = append(l.Packages, p.Packages...)
	return l
}
