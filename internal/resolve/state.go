// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve implements beam-search dependency resolution: states,
// the bounded beam, the predictor contract and the pipeline driver.
// Implements: prd001-resolution (R1-R6);
//
//	docs/ARCHITECTURE § Resolution.
package resolve

import (
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// State is one partial or complete resolved stack. Resolved entries are
// kept in resolution order; unresolved entries are the requirements
// still needing a version pick. States are expanded copy-on-write: the
// driver clones the parent for every surviving candidate, so a parent
// and its children never share collection storage.
// Per prd001-resolution R1.1, R1.5.
type State struct {
	score          float64
	resolved       []types.PackageVersion
	unresolved     []types.Requirement
	justification  []types.Justification
	advisedChanges []types.ManifestChange
}

// NewState builds the initial state of a run: nothing resolved, all
// direct requirements pending, score zero.
func NewState(requirements []types.Requirement) *State {
	s := &State{}
	s.unresolved = append(s.unresolved, requirements...)
	return s
}

// Clone deep-copies the state. The clone shares no slice storage with
// the receiver.
func (s *State) Clone() *State {
	c := &State{score: s.score}
	c.resolved = append(c.resolved, s.resolved...)
	c.unresolved = append(c.unresolved, s.unresolved...)
	c.justification = append(c.justification, s.justification...)
	c.advisedChanges = append(c.advisedChanges, s.advisedChanges...)
	return c
}

// Score returns the state's running pipeline score.
func (s *State) Score() float64 { return s.score }

// AddScore applies a step's score delta.
func (s *State) AddScore(delta float64) { s.score += delta }

// Resolved returns the resolved triples in resolution order. Callers
// must not modify the returned slice.
func (s *State) Resolved() []types.PackageVersion { return s.resolved }

// Unresolved returns the pending requirements. Callers must not modify
// the returned slice.
func (s *State) Unresolved() []types.Requirement { return s.unresolved }

// NextUnresolved returns the requirement the driver expands next, false
// when the state is fully resolved.
func (s *State) NextUnresolved() (types.Requirement, bool) {
	if len(s.unresolved) == 0 {
		return types.Requirement{}, false
	}
	return s.unresolved[0], true
}

// ResolvedVersion looks up the resolved entry for a package name.
func (s *State) ResolvedVersion(name string) (types.PackageVersion, bool) {
	for _, pv := range s.resolved {
		if pv.Name == name {
			return pv, true
		}
	}
	return types.PackageVersion{}, false
}

// MarkResolved pops the head unresolved requirement and records pv as
// its resolution.
func (s *State) MarkResolved(pv types.PackageVersion) {
	if len(s.unresolved) > 0 {
		s.unresolved = s.unresolved[1:]
	}
	s.resolved = append(s.resolved, pv)
}

// DropUnresolvedHead removes the head requirement without resolving it.
// Used when the requirement is already satisfied by a resolved entry.
func (s *State) DropUnresolvedHead() {
	if len(s.unresolved) > 0 {
		s.unresolved = s.unresolved[1:]
	}
}

// AddUnresolved appends a transitive requirement to the pending queue.
func (s *State) AddUnresolved(req types.Requirement) {
	s.unresolved = append(s.unresolved, req)
}

// AddJustification appends advisory records to the state.
func (s *State) AddJustification(records ...types.Justification) {
	s.justification = append(s.justification, records...)
}

// Justifications returns the state's advisory records in insertion
// order. Callers must not modify the returned slice.
func (s *State) Justifications() []types.Justification { return s.justification }

// AddManifestChange appends an advised deployment-manifest adjustment.
func (s *State) AddManifestChange(changes ...types.ManifestChange) {
	s.advisedChanges = append(s.advisedChanges, changes...)
}

// ManifestChanges returns the advised adjustments in insertion order.
// Callers must not modify the returned slice.
func (s *State) ManifestChanges() []types.ManifestChange { return s.advisedChanges }
