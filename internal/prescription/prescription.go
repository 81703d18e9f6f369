// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prescription loads YAML-declared pipeline units and adapts
// them into registrations the pipeline builder understands.
// Implements: prd004-prescriptions (R1-R4);
//
//	docs/ARCHITECTURE § Prescriptions.
package prescription

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/stack-adviser/internal/versions"
)

// Document is one prescription file: a named set of declared units.
type Document struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Spec       Spec   `yaml:"spec"`
}

// Spec is the payload of a prescription document.
type Spec struct {
	Name    string `yaml:"name"`
	Release string `yaml:"release,omitempty"`
	Units   Units  `yaml:"units"`
}

// Units groups declared units by pipeline stage.
type Units struct {
	Boots      []*UnitSpec `yaml:"boots,omitempty"`
	Pseudonyms []*UnitSpec `yaml:"pseudonyms,omitempty"`
	Sieves     []*UnitSpec `yaml:"sieves,omitempty"`
	Steps      []*UnitSpec `yaml:"steps,omitempty"`
	Strides    []*UnitSpec `yaml:"strides,omitempty"`
	Wraps      []*UnitSpec `yaml:"wraps,omitempty"`
}

// UnitSpec declares one pipeline unit. The stage it belongs to is
// implied by the list it appears in.
type UnitSpec struct {
	Name          string        `yaml:"name"`
	ShouldInclude ShouldInclude `yaml:"should_include"`
	Match         MatchList     `yaml:"match,omitempty"`
	Run           RunSpec       `yaml:"run"`

	stage    string
	matchers []compiledMatch
}

// ShouldInclude gates a declared unit into a run's pipeline. A unit
// joins adviser pipelines only when AdviserPipeline is set, and
// dependency-monkey pipelines only when DependencyMonkeyPipeline is.
type ShouldInclude struct {
	AdviserPipeline          bool     `yaml:"adviser_pipeline,omitempty"`
	DependencyMonkeyPipeline bool     `yaml:"dependency_monkey_pipeline,omitempty"`
	Times                    *int     `yaml:"times,omitempty"`
	RecommendationTypes      []string `yaml:"recommendation_types,omitempty"`
	DecisionTypes            []string `yaml:"decision_types,omitempty"`
}

// Match restricts when a declared unit fires: against the candidate
// package (sieves, steps, pseudonyms) and/or the resolved dependencies
// of the state (steps, strides, wraps).
type Match struct {
	PackageVersion *PackageVersionMatch `yaml:"package_version,omitempty"`
	State          *StateMatch          `yaml:"state,omitempty"`
}

// MatchList accepts either a single match mapping or a list of them.
// A unit fires when any entry matches; an empty list always matches.
type MatchList []Match

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *MatchList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var entries []Match
		if err := value.Decode(&entries); err != nil {
			return err
		}
		*m = entries
		return nil
	}
	var single Match
	if err := value.Decode(&single); err != nil {
		return err
	}
	*m = MatchList{single}
	return nil
}

// PackageVersionMatch matches a package triple. Unset fields match
// anything; Version is a version constraint.
type PackageVersionMatch struct {
	Name     string `yaml:"name,omitempty"`
	Version  string `yaml:"version,omitempty"`
	IndexURL string `yaml:"index_url,omitempty"`
}

// StateMatch requires each listed dependency to be resolved in the
// state.
type StateMatch struct {
	ResolvedDependencies []PackageVersionMatch `yaml:"resolved_dependencies,omitempty"`
}

// RunSpec declares what a unit does when it fires. Which fields apply
// depends on the stage: score and justification on steps, yield on
// pseudonyms, advised_manifest_changes on wraps; log, stack_info,
// not_acceptable and eager_stop_pipeline apply everywhere sensible.
type RunSpec struct {
	Score                  *float64             `yaml:"score,omitempty"`
	Justification          []JustificationSpec  `yaml:"justification,omitempty"`
	StackInfo              []JustificationSpec  `yaml:"stack_info,omitempty"`
	Log                    *LogSpec             `yaml:"log,omitempty"`
	NotAcceptable          string               `yaml:"not_acceptable,omitempty"`
	EagerStopPipeline      string               `yaml:"eager_stop_pipeline,omitempty"`
	AdvisedManifestChanges []ManifestChangeSpec `yaml:"advised_manifest_changes,omitempty"`
	Yield                  *YieldSpec           `yaml:"yield,omitempty"`
}

// YieldSpec names the package a pseudonym unit maps candidates to. An
// unset version yields the candidate's own version.
type YieldSpec struct {
	PackageVersion PackageVersionMatch `yaml:"package_version"`
}

// JustificationSpec is one declared justification or stack-info entry.
type JustificationSpec struct {
	Type    string `yaml:"type"`
	Message string `yaml:"message"`
	Link    string `yaml:"link,omitempty"`
}

// LogSpec is a declared log line with a severity tag.
type LogSpec struct {
	Message string `yaml:"message"`
	Type    string `yaml:"type,omitempty"`
}

// ManifestChangeSpec is a declared deployment-manifest adjustment.
type ManifestChangeSpec struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	PatchOp    string            `yaml:"op"`
	PatchPath  string            `yaml:"path"`
	PatchValue map[string]string `yaml:"value,omitempty"`
}

type compiledMatch struct {
	pkg   *pkgMatcher
	state []pkgMatcher
}

type pkgMatcher struct {
	name    string
	index   string
	version versions.Constraint
	pinned  bool
}

// Load reads prescription documents from path. A directory is walked
// for .yaml/.yml files in lexical order; a file yields one document.
func Load(path string) ([]*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("loading prescriptions: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files = files[:0]
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("loading prescriptions: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch filepath.Ext(e.Name()) {
			case ".yaml", ".yml":
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		sort.Strings(files)
		if len(files) == 0 {
			return nil, fmt.Errorf("loading prescriptions: no .yaml files in %s", path)
		}
	}

	docs := make([]*Document, 0, len(files))
	for _, file := range files {
		doc, err := loadFile(file)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func loadFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading prescription %s: %w", path, err)
	}
	doc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("prescription %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes and validates one prescription document. Declared unit
// names come back prefixed with the document's set name, and version
// constraints in match clauses are compiled here so malformed
// prescriptions fail at load time, not mid-resolution.
func Parse(raw []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	if doc.Spec.Name == "" {
		return nil, fmt.Errorf("prescription set name not set")
	}

	stages := []struct {
		stage string
		specs []*UnitSpec
	}{
		{stageBoot, doc.Spec.Units.Boots},
		{stagePseudonym, doc.Spec.Units.Pseudonyms},
		{stageSieve, doc.Spec.Units.Sieves},
		{stageStep, doc.Spec.Units.Steps},
		{stageStride, doc.Spec.Units.Strides},
		{stageWrap, doc.Spec.Units.Wraps},
	}
	for _, s := range stages {
		for _, unit := range s.specs {
			if err := compileUnit(unit, s.stage, doc.Spec.Name); err != nil {
				return nil, err
			}
		}
	}
	return &doc, nil
}

func compileUnit(unit *UnitSpec, stage, setName string) error {
	if unit.Name == "" {
		return fmt.Errorf("%s unit without a name", stage)
	}
	unit.stage = stage
	unit.Name = setName + "." + unit.Name

	if unit.ShouldInclude.Times != nil {
		if t := *unit.ShouldInclude.Times; t != 0 && t != 1 {
			return fmt.Errorf("unit %s: times must be 0 or 1, got %d", unit.Name, t)
		}
	}
	if stage == stagePseudonym {
		if unit.Run.Yield == nil || unit.Run.Yield.PackageVersion.Name == "" {
			return fmt.Errorf("unit %s: pseudonym without a yield package", unit.Name)
		}
	}
	if stage == stageBoot && len(unit.Match) > 0 {
		return fmt.Errorf("unit %s: boot units take no match clause", unit.Name)
	}

	for _, m := range unit.Match {
		switch stage {
		case stagePseudonym, stageSieve:
			if m.State != nil {
				return fmt.Errorf("unit %s: %s units cannot match on state", unit.Name, stage)
			}
		case stageStride, stageWrap:
			if m.PackageVersion != nil {
				return fmt.Errorf("unit %s: %s units cannot match on a package version", unit.Name, stage)
			}
		}
		var cm compiledMatch
		if m.PackageVersion != nil {
			pm, err := compilePkgMatcher(*m.PackageVersion)
			if err != nil {
				return fmt.Errorf("unit %s: %w", unit.Name, err)
			}
			cm.pkg = &pm
		}
		if m.State != nil {
			for _, dep := range m.State.ResolvedDependencies {
				if dep.Name == "" {
					return fmt.Errorf("unit %s: resolved dependency match without a name", unit.Name)
				}
				pm, err := compilePkgMatcher(dep)
				if err != nil {
					return fmt.Errorf("unit %s: %w", unit.Name, err)
				}
				cm.state = append(cm.state, pm)
			}
		}
		unit.matchers = append(unit.matchers, cm)
	}
	return nil
}

func compilePkgMatcher(m PackageVersionMatch) (pkgMatcher, error) {
	pm := pkgMatcher{name: m.Name, index: m.IndexURL}
	if m.Version != "" {
		spec, err := versions.Parse(m.Version)
		if err != nil {
			return pkgMatcher{}, fmt.Errorf("match version %q: %w", m.Version, err)
		}
		pm.version = *spec
		pm.pinned = true
	}
	return pm, nil
}

const (
	stageBoot      = "boot"
	stagePseudonym = "pseudonym"
	stageSieve     = "sieve"
	stageStep      = "step"
	stageStride    = "stride"
	stageWrap      = "wrap"
)

// UnitNames lists the prefixed names of all declared units, in stage
// order. Used by the CLI to report what a prescription set carries.
func (d *Document) UnitNames() []string {
	var names []string
	for _, list := range [][]*UnitSpec{
		d.Spec.Units.Boots, d.Spec.Units.Pseudonyms, d.Spec.Units.Sieves,
		d.Spec.Units.Steps, d.Spec.Units.Strides, d.Spec.Units.Wraps,
	} {
		for _, u := range list {
			names = append(names, u.Name)
		}
	}
	return names
}

func normalizeType(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
