// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/stack-adviser/internal/versions"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// SolverDocument is one solver run output: the package versions a
// solver resolved in some environment, plus curated advisory,
// performance and alias records shipped alongside.
type SolverDocument struct {
	Solver      string              `yaml:"solver,omitempty"`
	Packages    []SolverPackage     `yaml:"packages,omitempty"`
	Advisories  []types.Advisory    `yaml:"advisories,omitempty"`
	Performance []PerformanceRecord `yaml:"performance,omitempty"`
	Aliases     []AliasRecord       `yaml:"aliases,omitempty"`
}

// SolverPackage is one solved package version with its direct
// dependencies and artifact digests.
type SolverPackage struct {
	Name         string             `yaml:"name"`
	Version      string             `yaml:"version"`
	Index        string             `yaml:"index"`
	Yanked       bool               `yaml:"yanked,omitempty"`
	Dependencies []SolverDependency `yaml:"dependencies,omitempty"`
	Hashes       []string           `yaml:"hashes,omitempty"`
}

// SolverDependency is one direct dependency edge.
type SolverDependency struct {
	Name       string `yaml:"name"`
	Constraint string `yaml:"constraint,omitempty"`
}

// PerformanceRecord scores a package version from benchmark runs.
type PerformanceRecord struct {
	Name    string  `yaml:"name"`
	Version string  `yaml:"version"`
	Index   string  `yaml:"index"`
	Score   float64 `yaml:"score"`
}

// AliasRecord links two package names publishing the same code.
type AliasRecord struct {
	Name  string `yaml:"name"`
	Alias string `yaml:"alias"`
}

// IngestSummary holds counts from a knowledge base ingest run.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of solver documents processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest reads solver YAML documents from the configured solver
// directory and populates the database. It detects new, changed, and
// unchanged files for incremental updates.
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	if s.solverDir == "" {
		return IngestSummary{}, fmt.Errorf("solver directory not set")
	}

	entries, err := os.ReadDir(s.solverDir)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("reading solver directory %s: %w", s.solverDir, err)
	}

	var summary IngestSummary

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		docName := entry.Name()
		filePath := filepath.Join(s.solverDir, docName)

		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docName, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		// Skip documents unchanged since the last ingest.
		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT mtime FROM ingest_log WHERE path = ?`, docName,
		).Scan(&storedModTime)

		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", docName)
			summary.Skipped++
			continue
		}

		isUpdate := err == nil

		data, err := os.ReadFile(filePath)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docName, err)
			summary.Failed++
			continue
		}

		var doc SolverDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			fmt.Fprintf(w, "failed  %s: parse error: %v\n", docName, err)
			summary.Failed++
			continue
		}

		if err := s.ingestDocument(ctx, docName, &doc, modTime); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docName, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d packages)\n", docName, len(doc.Packages))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "ingesting %s (%d packages)\n", docName, len(doc.Packages))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\ningested: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)

	// Re-solved packages may carry different artifact digests.
	if summary.Indexed > 0 || summary.Updated > 0 {
		s.hashes.Purge()
	}

	return summary, nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func (s *Store) ingestDocument(ctx context.Context, docName string, doc *SolverDocument, modTime string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range doc.Packages {
		if err := ingestPackage(ctx, tx, &doc.Packages[i], modTime); err != nil {
			return err
		}
	}

	for _, adv := range doc.Advisories {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO advisories (package, version_range, cve_id, advisory, link)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(package, cve_id, version_range) DO UPDATE SET
				advisory=excluded.advisory, link=excluded.link`,
			adv.Package, adv.VersionRange, adv.CVEID, adv.Summary, adv.Link,
		)
		if err != nil {
			return fmt.Errorf("upserting advisory %s: %w", adv.CVEID, err)
		}
	}

	for _, perf := range doc.Performance {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO performance (name, version, index_url, score)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(name, version, index_url) DO UPDATE SET score=excluded.score`,
			perf.Name, perf.Version, perf.Index, perf.Score,
		)
		if err != nil {
			return fmt.Errorf("upserting performance record for %s: %w", perf.Name, err)
		}
	}

	for _, alias := range doc.Aliases {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO aliases (name, alias) VALUES (?, ?)`,
			alias.Name, alias.Alias,
		)
		if err != nil {
			return fmt.Errorf("inserting alias %s: %w", alias.Name, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ingest_log (path, mtime) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET mtime=excluded.mtime`,
		docName, modTime,
	)
	if err != nil {
		return fmt.Errorf("updating ingest log: %w", err)
	}

	return tx.Commit()
}

// ingestPackage upserts one package version. Dependency edges and
// artifact hashes are replaced wholesale so a re-solved package never
// keeps stale records.
func ingestPackage(ctx context.Context, tx *sql.Tx, pkg *SolverPackage, modTime string) error {
	if pkg.Name == "" || pkg.Version == "" {
		return fmt.Errorf("package record without name or version")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO packages (name) VALUES (?)`, pkg.Name,
	); err != nil {
		return fmt.Errorf("inserting package %s: %w", pkg.Name, err)
	}

	prerelease := 0
	if versions.IsPrerelease(pkg.Version) {
		prerelease = 1
	}
	yanked := 0
	if pkg.Yanked {
		yanked = 1
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO package_versions (name, version, index_url, prerelease, yanked, solved_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name, version, index_url) DO UPDATE SET
			prerelease=excluded.prerelease, yanked=excluded.yanked,
			solved_at=excluded.solved_at`,
		pkg.Name, pkg.Version, pkg.Index, prerelease, yanked, modTime,
	)
	if err != nil {
		return fmt.Errorf("upserting version %s==%s: %w", pkg.Name, pkg.Version, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM depends_on WHERE name = ? AND version = ? AND index_url = ?`,
		pkg.Name, pkg.Version, pkg.Index,
	); err != nil {
		return fmt.Errorf("clearing dependencies of %s==%s: %w", pkg.Name, pkg.Version, err)
	}
	for _, dep := range pkg.Dependencies {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO depends_on (name, version, index_url, dep_name, dep_constraint)
			 VALUES (?, ?, ?, ?, ?)`,
			pkg.Name, pkg.Version, pkg.Index, dep.Name, dep.Constraint,
		); err != nil {
			return fmt.Errorf("inserting dependency %s of %s==%s: %w", dep.Name, pkg.Name, pkg.Version, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM artifact_hashes WHERE name = ? AND version = ? AND index_url = ?`,
		pkg.Name, pkg.Version, pkg.Index,
	); err != nil {
		return fmt.Errorf("clearing hashes of %s==%s: %w", pkg.Name, pkg.Version, err)
	}
	for _, digest := range pkg.Hashes {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO artifact_hashes (name, version, index_url, sha256)
			 VALUES (?, ?, ?, ?)`,
			pkg.Name, pkg.Version, pkg.Index, digest,
		); err != nil {
			return fmt.Errorf("inserting hash of %s==%s: %w", pkg.Name, pkg.Version, err)
		}
	}

	return nil
}
