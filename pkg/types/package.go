// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// PackageVersion identifies one concrete package release on one index.
// The triple (Name, Version, Index) is the unit of resolution throughout
// the pipeline. Per prd001-resolution R1.1.
type PackageVersion struct {
	// Name is the canonical package name, lowercase.
	Name string `json:"name" yaml:"name"`

	// Version is the release version without a "v" prefix (e.g. "2.1.0").
	Version string `json:"version" yaml:"version"`

	// Index is the base URL of the package index serving this release.
	Index string `json:"index" yaml:"index"`
}

// String renders the triple as "name==version (index)".
func (p PackageVersion) String() string {
	return fmt.Sprintf("%s==%s (%s)", p.Name, p.Version, p.Index)
}

// Key returns a stable map key for the triple.
func (p PackageVersion) Key() string {
	return p.Name + "==" + p.Version + "@" + p.Index
}

// Requirement is one entry of a project's direct requirements: a package
// name with an optional version constraint and an optional index pin.
// Per prd001-resolution R1.2.
type Requirement struct {
	// Name is the required package name.
	Name string `json:"name" yaml:"name"`

	// Constraint is a version specifier (e.g. ">=1.19,<2.0", "==2.1.0",
	// "*"). Empty means any version.
	Constraint string `json:"constraint,omitempty" yaml:"constraint,omitempty"`

	// Index restricts resolution to a single index URL. Empty means any
	// enabled index.
	Index string `json:"index,omitempty" yaml:"index,omitempty"`
}

func (r Requirement) String() string {
	s := r.Name
	if r.Constraint != "" && r.Constraint != "*" {
		s += r.Constraint
	}
	if r.Index != "" {
		s += " (" + r.Index + ")"
	}
	return s
}

// LockedPackage is one pinned entry of a lockfile, carrying the artifact
// digests recorded for the release. Per prd006-provenance R2.1.
type LockedPackage struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Index   string `json:"index" yaml:"index"`

	// Hashes are sha256 artifact digests, "sha256:<hex>" form.
	Hashes []string `json:"hashes,omitempty" yaml:"hashes,omitempty"`
}

// PackageVersion returns the locked entry as a resolution triple.
func (l LockedPackage) PackageVersion() PackageVersion {
	return PackageVersion{Name: l.Name, Version: l.Version, Index: l.Index}
}

// Lockfile is a fully pinned stack as written by advise and
// dependency-monkey and consumed by provenance checks.
type Lockfile struct {
	Meta     LockMeta        `json:"meta" yaml:"meta"`
	Packages []LockedPackage `json:"packages" yaml:"packages"`
}

// LockMeta records how a lockfile was produced.
type LockMeta struct {
	// GeneratedBy names the producing tool and version.
	GeneratedBy string `json:"generated_by" yaml:"generated_by"`

	// RunID is the resolution run identifier the stack came from.
	RunID string `json:"run_id,omitempty" yaml:"run_id,omitempty"`

	// Score is the final pipeline score of the stack.
	Score float64 `json:"score" yaml:"score"`
}

// RecommendationType selects the resolution profile for an advise run.
// Per prd001-resolution R2.1, prd002-annealing R1.1.
type RecommendationType int

const (
	// RecommendationStable favors well-scored, non-prerelease stacks.
	RecommendationStable RecommendationType = iota

	// RecommendationTesting admits pre-releases into resolution.
	RecommendationTesting

	// RecommendationLatest resolves the newest versions; the predictor
	// degenerates to pure hill climbing.
	RecommendationLatest
)

func (t RecommendationType) String() string {
	switch t {
	case RecommendationTesting:
		return "testing"
	case RecommendationLatest:
		return "latest"
	default:
		return "stable"
	}
}

// ParseRecommendationType maps a CLI/config string to a RecommendationType.
func ParseRecommendationType(s string) (RecommendationType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stable":
		return RecommendationStable, nil
	case "testing":
		return RecommendationTesting, nil
	case "latest":
		return RecommendationLatest, nil
	default:
		return RecommendationStable, fmt.Errorf("unknown recommendation type %q (expected stable, testing or latest)", s)
	}
}

// DecisionType selects the dependency-monkey acceptance function.
// Per prd007-dependency-monkey R1.2.
type DecisionType int

const (
	// DecisionAll accepts every produced stack.
	DecisionAll DecisionType = iota

	// DecisionRandom accepts each produced stack with probability 0.5.
	DecisionRandom
)

func (t DecisionType) String() string {
	if t == DecisionRandom {
		return "random"
	}
	return "all"
}

// ParseDecisionType maps a CLI/config string to a DecisionType.
func ParseDecisionType(s string) (DecisionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return DecisionAll, nil
	case "random":
		return DecisionRandom, nil
	default:
		return DecisionAll, fmt.Errorf("unknown decision type %q (expected all or random)", s)
	}
}
