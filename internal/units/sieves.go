// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package units

import (
	"fmt"

	"github.com/pdiddy/stack-adviser/internal/resolve"
	"github.com/pdiddy/stack-adviser/internal/versions"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// LegacyVersionSieve drops candidates whose version string does not
// parse as a semantic version. Such releases cannot be ordered or
// matched against constraints reliably.
type LegacyVersionSieve struct{}

func (u *LegacyVersionSieve) Name() string { return "LegacyVersionSieve" }

func (u *LegacyVersionSieve) Run(ctx *resolve.Context, pv types.PackageVersion) error {
	if !versions.IsValid(pv.Version) {
		ctx.Logf("removing %s: legacy version string", pv)
		return resolve.ErrSkipCandidate
	}
	return nil
}

// SolvedSieve drops candidates the knowledge base has not solved
// successfully, or that were yanked from their index.
type SolvedSieve struct{}

func (u *SolvedSieve) Name() string { return "SolvedSieve" }

func (u *SolvedSieve) Run(ctx *resolve.Context, pv types.PackageVersion) error {
	ok, err := ctx.Knowledge.Solved(pv)
	if err != nil {
		return fmt.Errorf("checking solver state of %s: %w", pv, err)
	}
	if !ok {
		ctx.Logf("removing %s: unsolved or yanked", pv)
		return resolve.ErrSkipCandidate
	}
	return nil
}

// IndexSieve enforces the project's index whitelist.
type IndexSieve struct {
	Project *types.Project
}

func (u *IndexSieve) Name() string { return "IndexSieve" }

func (u *IndexSieve) Run(ctx *resolve.Context, pv types.PackageVersion) error {
	if !u.Project.IndexAllowed(pv.Index) {
		ctx.Logf("removing %s: index not allowed", pv)
		return resolve.ErrSkipCandidate
	}
	return nil
}

// PreReleaseSieve drops pre-release candidates. Assembled only when
// neither the run profile nor the project admits pre-releases.
type PreReleaseSieve struct{}

func (u *PreReleaseSieve) Name() string { return "PreReleaseSieve" }

func (u *PreReleaseSieve) Run(ctx *resolve.Context, pv types.PackageVersion) error {
	if versions.IsPrerelease(pv.Version) {
		ctx.Logf("removing %s: pre-releases not allowed", pv)
		return resolve.ErrSkipCandidate
	}
	return nil
}

// LockedSieve pins packages named in a lockfile to their locked
// version and index; other candidates of those packages are dropped.
type LockedSieve struct {
	pins map[string]types.PackageVersion
}

// NewLockedSieve builds the sieve from lockfile pins.
func NewLockedSieve(lock *types.Lockfile) *LockedSieve {
	pins := make(map[string]types.PackageVersion, len(lock.Packages))
	for _, lp := range lock.Packages {
		pins[lp.Name] = lp.PackageVersion()
	}
	return &LockedSieve{pins: pins}
}

func (u *LockedSieve) Name() string { return "LockedSieve" }

func (u *LockedSieve) Run(ctx *resolve.Context, pv types.PackageVersion) error {
	pin, ok := u.pins[pv.Name]
	if !ok {
		return nil
	}
	if pin.Version != pv.Version || (pin.Index != "" && pin.Index != pv.Index) {
		ctx.Logf("removing %s: locked to %s", pv, pin.Version)
		return resolve.ErrSkipCandidate
	}
	return nil
}
