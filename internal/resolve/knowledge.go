package resolve

import (
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// KnowledgeBase is the query contract the driver and pipeline units
// consume. Implementations return precomputed metadata; resolution
// never installs or inspects packages itself.
// Per prd001-resolution R1.3, prd005-knowledge-base R3.1-R3.5.
type KnowledgeBase interface {
	// Versions returns the recorded releases of a package matching the
	// constraint specifier, newest first. An empty index means any
	// index. Includes yanked releases; sieves filter them.
	Versions(name, constraint, index string) ([]types.PackageVersion, error)

	// Solved reports whether the release was solved successfully and
	// not yanked.
	Solved(pv types.PackageVersion) (bool, error)

	// Dependencies returns the direct requirements recorded for a
	// release.
	Dependencies(pv types.PackageVersion) ([]types.Requirement, error)

	// Hashes returns the sha256 artifact digests recorded for a
	// release, "sha256:<hex>" form.
	Hashes(pv types.PackageVersion) ([]string, error)

	// Advisories returns the vulnerability records affecting the given
	// release.
	Advisories(name, version string) ([]types.Advisory, error)

	// PerformanceScore returns the aggregated performance score of a
	// release, 0 when none is recorded.
	PerformanceScore(pv types.PackageVersion) (float64, error)

	// Aliases returns alternative published names of a package.
	Aliases(name string) ([]string, error)
}
