// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package versions provides version ordering and constraint matching
// shared across resolution stages.
package versions

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// Canonical returns v in the "vMAJOR.MINOR.PATCH" form semver expects.
// Package versions are stored without the leading "v".
func Canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return v
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// IsValid reports whether v parses as a semantic version.
func IsValid(v string) bool {
	return semver.IsValid(Canonical(v))
}

// IsPrerelease reports whether v carries a pre-release suffix
// (e.g. "2.0.0-rc.1").
func IsPrerelease(v string) bool {
	return semver.Prerelease(Canonical(v)) != ""
}

// Compare orders two versions: -1 if a < b, 0 if equal, +1 if a > b.
// An invalid version sorts before any valid one.
func Compare(a, b string) int {
	return semver.Compare(Canonical(a), Canonical(b))
}

// Sort orders versions newest-first, in place.
func Sort(vs []string) {
	sort.SliceStable(vs, func(i, j int) bool {
		return Compare(vs[i], vs[j]) > 0
	})
}

// Latest returns the newest version of vs, false when vs is empty.
func Latest(vs []string) (string, bool) {
	if len(vs) == 0 {
		return "", false
	}
	best := vs[0]
	for _, v := range vs[1:] {
		if Compare(v, best) > 0 {
			best = v
		}
	}
	return best, true
}

// clause is one operator/version pair of a constraint.
type clause struct {
	op      string
	version string
}

// Constraint is a parsed version specifier: a comma-separated
// conjunction of operator clauses, all of which must hold.
type Constraint struct {
	raw     string
	clauses []clause
}

// constraint operators, longest first so ">=" wins over ">".
var operators = []string{"==", "!=", ">=", "<=", ">", "<", "~"}

// Parse parses a version specifier such as ">=1.19,<2.0", "==2.1.0",
// "~1.4" or "*". An empty specifier matches every version.
func Parse(spec string) (*Constraint, error) {
	c := &Constraint{raw: spec}

	spec = strings.TrimSpace(spec)
	if spec == "" || spec == "*" {
		return c, nil
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty clause in specifier %q", c.raw)
		}

		op := "=="
		for _, cand := range operators {
			if strings.HasPrefix(part, cand) {
				op = cand
				part = strings.TrimSpace(part[len(cand):])
				break
			}
		}
		if part == "" {
			return nil, fmt.Errorf("operator without version in specifier %q", c.raw)
		}
		if !IsValid(part) {
			return nil, fmt.Errorf("invalid version %q in specifier %q", part, c.raw)
		}

		c.clauses = append(c.clauses, clause{op: op, version: part})
	}
	return c, nil
}

// MustParse is Parse for specifiers known valid at compile time.
func MustParse(spec string) *Constraint {
	c, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return c
}

// Match reports whether v satisfies every clause of the constraint.
// Versions that do not parse as semver never match a non-empty
// constraint.
func (c *Constraint) Match(v string) bool {
	if len(c.clauses) == 0 {
		return true
	}
	if !IsValid(v) {
		return false
	}

	for _, cl := range c.clauses {
		cmp := Compare(v, cl.version)
		ok := false
		switch cl.op {
		case "==":
			ok = cmp == 0
		case "!=":
			ok = cmp != 0
		case ">=":
			ok = cmp >= 0
		case "<=":
			ok = cmp <= 0
		case ">":
			ok = cmp > 0
		case "<":
			ok = cmp < 0
		case "~":
			// Same major.minor, at least the given patch level.
			ok = cmp >= 0 && semver.MajorMinor(Canonical(v)) == semver.MajorMinor(Canonical(cl.version))
		}
		if !ok {
			return false
		}
	}
	return true
}

// String returns the original specifier text.
func (c *Constraint) String() string {
	if strings.TrimSpace(c.raw) == "" {
		return "*"
	}
	return c.raw
}
