// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/stack-adviser/internal/versions"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// ExportEntry holds one package version with its dependency edges and
// artifact digests for export.
type ExportEntry struct {
	Name         string              `json:"name" yaml:"name"`
	Version      string              `json:"version" yaml:"version"`
	Index        string              `json:"index" yaml:"index"`
	Prerelease   bool                `json:"prerelease,omitempty" yaml:"prerelease,omitempty"`
	Yanked       bool                `json:"yanked,omitempty" yaml:"yanked,omitempty"`
	Dependencies []types.Requirement `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Hashes       []string            `json:"hashes,omitempty" yaml:"hashes,omitempty"`
}

// ExportYAML writes the package catalog to w as YAML, ordered by name
// and descending version.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer) error {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ExportJSON writes the package catalog to w as indented JSON.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func (s *Store) exportEntries(ctx context.Context) ([]ExportEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, version, index_url, prerelease, yanked
		 FROM package_versions ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	defer rows.Close()

	var entries []ExportEntry
	for rows.Next() {
		var e ExportEntry
		var prerelease, yanked int
		if err := rows.Scan(&e.Name, &e.Version, &e.Index, &prerelease, &yanked); err != nil {
			return nil, fmt.Errorf("scanning export row: %w", err)
		}
		e.Prerelease = prerelease != 0
		e.Yanked = yanked != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Same-name entries come back in arbitrary version order; settle
	// them newest first to keep exports diffable.
	sortExportEntries(entries)

	for i := range entries {
		pv := types.PackageVersion{Name: entries[i].Name, Version: entries[i].Version, Index: entries[i].Index}
		deps, err := s.Dependencies(pv)
		if err != nil {
			return nil, err
		}
		entries[i].Dependencies = deps

		hashes, err := s.Hashes(pv)
		if err != nil {
			return nil, err
		}
		entries[i].Hashes = hashes
	}

	return entries, nil
}

func sortExportEntries(entries []ExportEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		if c := versions.Compare(entries[i].Version, entries[j].Version); c != 0 {
			return c > 0
		}
		return entries[i].Index < entries[j].Index
	})
}
