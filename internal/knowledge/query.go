// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/pdiddy/stack-adviser/internal/versions"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// Versions returns the recorded releases of a package matching the
// constraint, newest first. Yanked and unsolved releases are included;
// sieves decide what survives. An empty index matches all indexes, an
// empty constraint matches all versions.
func (s *Store) Versions(name, constraint, index string) ([]types.PackageVersion, error) {
	spec, err := versions.Parse(constraint)
	if err != nil {
		return nil, fmt.Errorf("constraint for %s: %w", name, err)
	}

	query := `SELECT version, index_url FROM package_versions WHERE name = ?`
	args := []any{name}
	if index != "" {
		query += ` AND index_url = ?`
		args = append(args, index)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying versions of %s: %w", name, err)
	}
	defer rows.Close()

	var out []types.PackageVersion
	for rows.Next() {
		var pv types.PackageVersion
		pv.Name = name
		if err := rows.Scan(&pv.Version, &pv.Index); err != nil {
			return nil, fmt.Errorf("scanning version row: %w", err)
		}
		if spec.Match(pv.Version) {
			out = append(out, pv)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := versions.Compare(out[i].Version, out[j].Version); c != 0 {
			return c > 0
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

// Solved reports whether the triple was solved and not yanked.
func (s *Store) Solved(pv types.PackageVersion) (bool, error) {
	var solvedAt sql.NullString
	var yanked int
	err := s.db.QueryRow(
		`SELECT solved_at, yanked FROM package_versions
		 WHERE name = ? AND version = ? AND index_url = ?`,
		pv.Name, pv.Version, pv.Index,
	).Scan(&solvedAt, &yanked)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying solver state of %s: %w", pv, err)
	}
	return solvedAt.Valid && yanked == 0, nil
}

// Dependencies returns the direct dependency requirements of a solved
// package version, ordered by dependency name.
func (s *Store) Dependencies(pv types.PackageVersion) ([]types.Requirement, error) {
	rows, err := s.db.Query(
		`SELECT dep_name, dep_constraint FROM depends_on
		 WHERE name = ? AND version = ? AND index_url = ?
		 ORDER BY dep_name`,
		pv.Name, pv.Version, pv.Index,
	)
	if err != nil {
		return nil, fmt.Errorf("querying dependencies of %s: %w", pv, err)
	}
	defer rows.Close()

	var out []types.Requirement
	for rows.Next() {
		var req types.Requirement
		var constraint sql.NullString
		if err := rows.Scan(&req.Name, &constraint); err != nil {
			return nil, fmt.Errorf("scanning dependency row: %w", err)
		}
		if constraint.Valid {
			req.Constraint = constraint.String
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Hashes returns the artifact sha256 digests of a package version.
// Results are LRU-cached; callers must not modify the returned slice.
func (s *Store) Hashes(pv types.PackageVersion) ([]string, error) {
	key := pv.Key()
	if cached, ok := s.hashes.Get(key); ok {
		return cached, nil
	}

	rows, err := s.db.Query(
		`SELECT sha256 FROM artifact_hashes
		 WHERE name = ? AND version = ? AND index_url = ?
		 ORDER BY sha256`,
		pv.Name, pv.Version, pv.Index,
	)
	if err != nil {
		return nil, fmt.Errorf("querying hashes of %s: %w", pv, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var digest string
		if err := rows.Scan(&digest); err != nil {
			return nil, fmt.Errorf("scanning hash row: %w", err)
		}
		out = append(out, digest)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.hashes.Add(key, out)
	return out, nil
}

// Advisories returns the recorded advisories whose version range covers
// the given version. Rows with unparsable ranges are ignored.
func (s *Store) Advisories(name, version string) ([]types.Advisory, error) {
	rows, err := s.db.Query(
		`SELECT package, version_range, cve_id, advisory, link FROM advisories
		 WHERE package = ?
		 ORDER BY cve_id`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("querying advisories of %s: %w", name, err)
	}
	defer rows.Close()

	var out []types.Advisory
	for rows.Next() {
		var adv types.Advisory
		var summary, link sql.NullString
		if err := rows.Scan(&adv.Package, &adv.VersionRange, &adv.CVEID, &summary, &link); err != nil {
			return nil, fmt.Errorf("scanning advisory row: %w", err)
		}
		adv.Summary = summary.String
		adv.Link = link.String

		spec, err := versions.Parse(adv.VersionRange)
		if err != nil {
			continue
		}
		if spec.Match(version) {
			out = append(out, adv)
		}
	}
	return out, rows.Err()
}

// PerformanceScore returns the benchmark score of a package version,
// zero when none is recorded.
func (s *Store) PerformanceScore(pv types.PackageVersion) (float64, error) {
	var score float64
	err := s.db.QueryRow(
		`SELECT score FROM performance
		 WHERE name = ? AND version = ? AND index_url = ?`,
		pv.Name, pv.Version, pv.Index,
	).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying performance of %s: %w", pv, err)
	}
	return score, nil
}

// Aliases returns the package names recorded as publishing the same
// code as name, in either link direction.
func (s *Store) Aliases(name string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT alias FROM aliases WHERE name = ?
		 UNION
		 SELECT name FROM aliases WHERE alias = ?
		 ORDER BY 1`,
		name, name,
	)
	if err != nil {
		return nil, fmt.Errorf("querying aliases of %s: %w", name, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("scanning alias row: %w", err)
		}
		out = append(out, alias)
	}
	return out, rows.Err()
}

// Stats holds row counts per knowledge base table.
type Stats struct {
	Packages     int `json:"packages" yaml:"packages"`
	Versions     int `json:"versions" yaml:"versions"`
	Dependencies int `json:"dependencies" yaml:"dependencies"`
	Hashes       int `json:"hashes" yaml:"hashes"`
	Advisories   int `json:"advisories" yaml:"advisories"`
	Performance  int `json:"performance" yaml:"performance"`
	Aliases      int `json:"aliases" yaml:"aliases"`
	Documents    int `json:"documents" yaml:"documents"`
}

// Stats counts the records the knowledge base holds.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"packages", &st.Packages},
		{"package_versions", &st.Versions},
		{"depends_on", &st.Dependencies},
		{"artifact_hashes", &st.Hashes},
		{"advisories", &st.Advisories},
		{"performance", &st.Performance},
		{"aliases", &st.Aliases},
		{"ingest_log", &st.Documents},
	}

	for _, c := range counts {
		if err := s.db.QueryRow(`SELECT count(*) FROM ` + c.table).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}
	return st, nil
}
