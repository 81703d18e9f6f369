// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provenance validates pinned lockfiles against the knowledge
// base: artifact digests, index origin and requirement coverage. No
// resolution happens here.
// Implements: prd006-provenance (R1-R3);
//
//	docs/ARCHITECTURE § Provenance.
package provenance

import (
	"fmt"

	"github.com/pdiddy/stack-adviser/internal/resolve"
	"github.com/pdiddy/stack-adviser/internal/versions"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// Finding is one provenance check result. ERROR findings fail the
// check; WARNING and INFO findings inform.
type Finding struct {
	Type    types.JustificationType `json:"type" yaml:"type"`
	Package string                  `json:"package,omitempty" yaml:"package,omitempty"`
	Message string                  `json:"message" yaml:"message"`
}

// Report is the outcome of checking one lockfile.
type Report struct {
	Findings []Finding `json:"findings" yaml:"findings"`
	Checked  int       `json:"checked" yaml:"checked"`
	Passed   bool      `json:"passed" yaml:"passed"`
}

// Checker validates lockfiles against recorded knowledge.
type Checker struct {
	Knowledge resolve.KnowledgeBase
}

// Check validates every pinned package of the lockfile and the
// lockfile's coverage of the project requirements.
func (c *Checker) Check(project *types.Project, lock *types.Lockfile) (*Report, error) {
	if c.Knowledge == nil {
		return nil, fmt.Errorf("provenance check needs a knowledge base")
	}
	if lock == nil {
		return nil, fmt.Errorf("provenance check needs a lockfile")
	}

	report := &Report{Checked: len(lock.Packages)}

	for i := range lock.Packages {
		if err := c.checkPackage(project, &lock.Packages[i], report); err != nil {
			return nil, err
		}
	}
	if project != nil {
		checkRequirements(project, lock, report)
	}

	report.Passed = true
	for _, f := range report.Findings {
		if f.Type == types.JustificationError {
			report.Passed = false
			break
		}
	}
	return report, nil
}

func (c *Checker) checkPackage(project *types.Project, locked *types.LockedPackage, report *Report) error {
	pv := locked.PackageVersion()
	label := locked.Name + "==" + locked.Version

	if project != nil && !project.IndexAllowed(locked.Index) {
		report.add(types.JustificationError, locked.Name,
			fmt.Sprintf("index %s not allowed by project configuration", locked.Index))
	}

	known, err := c.Knowledge.Versions(locked.Name, "=="+locked.Version, "")
	if err != nil {
		return fmt.Errorf("checking %s: %w", label, err)
	}
	switch {
	case len(known) == 0:
		report.add(types.JustificationError, locked.Name,
			fmt.Sprintf("no known release %s in any index", label))
		return nil
	case !containsIndex(known, locked.Index):
		report.add(types.JustificationError, locked.Name,
			fmt.Sprintf("release %s not provided by index %s", label, locked.Index))
		return nil
	}

	solved, err := c.Knowledge.Solved(pv)
	if err != nil {
		return fmt.Errorf("checking %s: %w", label, err)
	}
	if !solved {
		report.add(types.JustificationWarning, locked.Name,
			fmt.Sprintf("release %s was yanked or never solved", label))
	}

	recorded, err := c.Knowledge.Hashes(pv)
	if err != nil {
		return fmt.Errorf("checking %s: %w", label, err)
	}
	switch {
	case len(locked.Hashes) == 0:
		report.add(types.JustificationWarning, locked.Name,
			fmt.Sprintf("no artifact hashes pinned for %s", label))
	case len(recorded) == 0:
		report.add(types.JustificationWarning, locked.Name,
			fmt.Sprintf("no artifact hashes recorded for %s, digests not verified", label))
	default:
		for _, digest := range locked.Hashes {
			if !containsString(recorded, digest) {
				report.add(types.JustificationError, locked.Name,
					fmt.Sprintf("artifact hash %s of %s not among recorded digests", digest, label))
			}
		}
	}
	return nil
}

// checkRequirements confirms every direct requirement is pinned by the
// lockfile at a satisfying version.
func checkRequirements(project *types.Project, lock *types.Lockfile, report *Report) {
	for _, req := range project.Requirements {
		locked, ok := lockedPackage(lock, req.Name)
		if !ok {
			report.add(types.JustificationError, req.Name,
				fmt.Sprintf("requirement %s missing from lockfile", req.Name))
			continue
		}
		spec, err := versions.Parse(req.Constraint)
		if err != nil {
			report.add(types.JustificationError, req.Name,
				fmt.Sprintf("requirement %s has an unparsable constraint %q", req.Name, req.Constraint))
			continue
		}
		if !spec.Match(locked.Version) {
			report.add(types.JustificationError, req.Name,
				fmt.Sprintf("pinned %s==%s does not satisfy requirement %s",
					locked.Name, locked.Version, req))
		}
	}
}

func (r *Report) add(kind types.JustificationType, pkg, message string) {
	r.Findings = append(r.Findings, Finding{Type: kind, Package: pkg, Message: message})
}

func lockedPackage(lock *types.Lockfile, name string) (*types.LockedPackage, bool) {
	for i := range lock.Packages {
		if lock.Packages[i].Name == name {
			return &lock.Packages[i], true
		}
	}
	return nil, false
}

func containsIndex(known []types.PackageVersion, index string) bool {
	for _, pv := range known {
		if pv.Index == index {
			return true
		}
	}
	return false
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
