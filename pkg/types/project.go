// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// OperatingSystem identifies the OS a stack is resolved for.
type OperatingSystem struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Hardware describes the hardware the stack will run on. Used by
// performance-aware pipeline units. Per prd003-pipeline-units R3.4.
type Hardware struct {
	CPUFamily string `json:"cpu_family,omitempty" yaml:"cpu_family,omitempty"`
	CPUModel  string `json:"cpu_model,omitempty" yaml:"cpu_model,omitempty"`
	GPUModel  string `json:"gpu_model,omitempty" yaml:"gpu_model,omitempty"`
}

// RuntimeEnvironment captures the environment a recommendation targets.
// All fields are optional; empty values mean "unconstrained".
type RuntimeEnvironment struct {
	OperatingSystem OperatingSystem `json:"operating_system,omitempty" yaml:"operating_system,omitempty"`

	// Runtime is the language runtime version (e.g. "1.25").
	Runtime string `json:"runtime,omitempty" yaml:"runtime,omitempty"`

	// CUDAVersion is set when the stack targets GPU nodes.
	CUDAVersion string `json:"cuda_version,omitempty" yaml:"cuda_version,omitempty"`

	Hardware Hardware `json:"hardware,omitempty" yaml:"hardware,omitempty"`
}

// Project is the resolution input: direct requirements plus the
// environment and index policy they resolve under.
// Per prd001-resolution R1.2-R1.4, prd006-provenance R1.1.
type Project struct {
	// Requirements are the direct dependencies to resolve.
	Requirements []Requirement `json:"requirements" yaml:"requirements"`

	// RuntimeEnvironment the recommendation targets.
	RuntimeEnvironment RuntimeEnvironment `json:"runtime_environment,omitempty" yaml:"runtime_environment,omitempty"`

	// AllowedIndexes whitelists index base URLs. Empty means every index
	// known to the knowledge base is allowed.
	AllowedIndexes []string `json:"allowed_indexes,omitempty" yaml:"allowed_indexes,omitempty"`

	// AllowPrereleases admits pre-release versions regardless of the
	// recommendation type.
	AllowPrereleases bool `json:"allow_prereleases,omitempty" yaml:"allow_prereleases,omitempty"`
}

// IndexAllowed reports whether the project's index policy admits url.
func (p *Project) IndexAllowed(url string) bool {
	if len(p.AllowedIndexes) == 0 {
		return true
	}
	for _, allowed := range p.AllowedIndexes {
		if allowed == url {
			return true
		}
	}
	return false
}

// LoadProject reads a project requirements file (YAML).
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing project file %s: %w", path, err)
	}
	if len(p.Requirements) == 0 {
		return nil, fmt.Errorf("project file %s lists no requirements", path)
	}
	for i, r := range p.Requirements {
		if r.Name == "" {
			return nil, fmt.Errorf("project file %s: requirement %d has no name", path, i)
		}
	}
	return &p, nil
}

// LoadLockfile reads a pinned stack (YAML).
func LoadLockfile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lockfile: %w", err)
	}

	var l Lockfile
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing lockfile %s: %w", path, err)
	}
	return &l, nil
}

// Write serializes the lockfile to path as YAML.
func (l *Lockfile) Write(path string) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshaling lockfile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing lockfile: %w", err)
	}
	return nil
}
