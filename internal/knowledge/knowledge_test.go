package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/stack-adviser/pkg/types"
)

const (
	testIndex   = "https://pkg.example.org/simple"
	mirrorIndex = "https://mirror.example.org/simple"
)

// --- test helpers ---

func testSetup(t *testing.T) (*Store, string) {
	t.Helper()
	tmpDir := t.TempDir()

	solverDir := filepath.Join(tmpDir, "solver")
	if err := os.MkdirAll(solverDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := types.KnowledgeConfig{
		Path:      filepath.Join(tmpDir, "knowledge.db"),
		SolverDir: solverDir,
	}
	store, err := NewStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return store, tmpDir
}

func writeSolverDoc(t *testing.T, tmpDir, name string, doc SolverDocument) {
	t.Helper()
	data, err := yaml.Marshal(&doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(tmpDir, "solver", name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func sampleDocument() SolverDocument {
	return SolverDocument{
		Solver: "solver-linux-x86_64",
		Packages: []SolverPackage{
			{
				Name: "flask", Version: "1.1.0", Index: testIndex,
				Dependencies: []SolverDependency{
					{Name: "werkzeug", Constraint: ">=0.15.0"},
					{Name: "click", Constraint: ">=5.1.0"},
				},
				Hashes: []string{"sha256:1f20", "sha256:4ef3"},
			},
			{Name: "flask", Version: "1.1.0", Index: mirrorIndex},
			{Name: "flask", Version: "1.0.1", Index: testIndex, Yanked: true},
			{Name: "flask", Version: "1.0.0", Index: testIndex, Hashes: []string{"sha256:9bc1"}},
			{Name: "flask", Version: "0.12.0", Index: testIndex},
			{Name: "werkzeug", Version: "1.0.1", Index: testIndex},
			{Name: "click", Version: "7.1.2", Index: testIndex},
			{Name: "markupsafe", Version: "2.0.0-rc.1", Index: testIndex},
		},
		Advisories: []types.Advisory{{
			Package: "flask", VersionRange: "<1.0.0", CVEID: "CVE-2018-1000656",
			Summary: "denial of service via crafted JSON",
			Link:    "https://cve.example/CVE-2018-1000656",
		}},
		Performance: []PerformanceRecord{
			{Name: "flask", Version: "1.1.0", Index: testIndex, Score: 0.3},
		},
		Aliases: []AliasRecord{
			{Name: "tensorflow", Alias: "intel-tensorflow"},
		},
	}
}

// ingestHelper writes the sample solver document, then ingests.
func ingestHelper(t *testing.T, store *Store, tmpDir string) {
	t.Helper()
	writeSolverDoc(t, tmpDir, "solver-linux.yaml", sampleDocument())
	var buf strings.Builder
	if _, err := store.Ingest(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
}

func pkg(name, version, index string) types.PackageVersion {
	return types.PackageVersion{Name: name, Version: version, Index: index}
}

// --- schema tests ---

func TestNewStoreCreatesSchema(t *testing.T) {
	store, _ := testSetup(t)

	tables := []string{
		"packages", "package_versions", "depends_on", "artifact_hashes",
		"advisories", "performance", "aliases", "ingest_log",
	}
	for _, table := range tables {
		var count int
		err := store.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestNewStoreCreatesDBFile(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "kb", "knowledge.db")

	store, err := NewStore(types.KnowledgeConfig{Path: dbPath})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", dbPath)
	}
}

func TestNewStoreRequiresPath(t *testing.T) {
	if _, err := NewStore(types.KnowledgeConfig{}); err == nil {
		t.Fatal("expected error for unset path")
	}
}

// --- ingest tests ---

func TestIngest(t *testing.T) {
	tests := []struct {
		name        string
		docs        int
		wantIndexed int
	}{
		{"single document", 1, 1},
		{"multiple documents", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, tmpDir := testSetup(t)

			for i := 0; i < tt.docs; i++ {
				doc := SolverDocument{
					Solver: fmt.Sprintf("solver-%d", i),
					Packages: []SolverPackage{
						{Name: fmt.Sprintf("pkg-%d", i), Version: "1.0.0", Index: testIndex},
					},
				}
				writeSolverDoc(t, tmpDir, fmt.Sprintf("solver-%d.yaml", i), doc)
			}

			var buf strings.Builder
			summary, err := store.Ingest(context.Background(), &buf)
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if summary.Indexed != tt.wantIndexed {
				t.Errorf("Indexed = %d, want %d", summary.Indexed, tt.wantIndexed)
			}
			if summary.Failed != 0 {
				t.Errorf("Failed = %d, want 0; output: %s", summary.Failed, buf.String())
			}
		})
	}
}

func TestIngestStoresAllFields(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	// Verify the flask 1.1.0 record round-trips through the database.
	deps, err := store.Dependencies(pkg("flask", "1.1.0", testIndex))
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 2 {
		t.Fatalf("dependencies = %v, want 2 entries", deps)
	}
	if deps[0].Name != "click" || deps[0].Constraint != ">=5.1.0" {
		t.Errorf("first dependency = %+v", deps[0])
	}

	hashes, err := store.Hashes(pkg("flask", "1.1.0", testIndex))
	if err != nil {
		t.Fatal(err)
	}
	if len(hashes) != 2 || hashes[0] != "sha256:1f20" {
		t.Errorf("hashes = %v", hashes)
	}

	var prerelease int
	err = store.db.QueryRow(
		`SELECT prerelease FROM package_versions WHERE name = 'markupsafe' AND version = '2.0.0-rc.1'`,
	).Scan(&prerelease)
	if err != nil {
		t.Fatal(err)
	}
	if prerelease != 1 {
		t.Error("prerelease flag not derived from version")
	}
}

func TestIngestSkipsUnchanged(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	// Second ingest without modifying the file.
	var buf strings.Builder
	summary, err := store.Ingest(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", summary.Skipped)
	}
	if summary.Indexed != 0 {
		t.Errorf("Indexed = %d, want 0", summary.Indexed)
	}
	if !strings.Contains(buf.String(), "skipped") {
		t.Errorf("output should contain 'skipped': %s", buf.String())
	}
}

func TestIngestUpdatesChanged(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	// Rewrite the document: flask 1.1.0 re-solved with fewer
	// dependencies and different digests.
	doc := sampleDocument()
	doc.Packages[0].Dependencies = doc.Packages[0].Dependencies[:1]
	doc.Packages[0].Hashes = []string{"sha256:feed"}
	writeSolverDoc(t, tmpDir, "solver-linux.yaml", doc)

	path := filepath.Join(tmpDir, "solver", "solver-linux.yaml")
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	var buf strings.Builder
	summary, err := store.Ingest(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Updated != 1 {
		t.Errorf("Updated = %d, want 1", summary.Updated)
	}

	// Old edges replaced, not appended.
	deps, err := store.Dependencies(pkg("flask", "1.1.0", testIndex))
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 1 || deps[0].Name != "werkzeug" {
		t.Errorf("dependencies after update = %v", deps)
	}

	// Hash cache was purged by the ingest.
	hashes, err := store.Hashes(pkg("flask", "1.1.0", testIndex))
	if err != nil {
		t.Fatal(err)
	}
	if len(hashes) != 1 || hashes[0] != "sha256:feed" {
		t.Errorf("hashes after update = %v", hashes)
	}
}

func TestIngestReportsMalformedDocument(t *testing.T) {
	store, tmpDir := testSetup(t)
	writeSolverDoc(t, tmpDir, "good.yaml", sampleDocument())

	bad := filepath.Join(tmpDir, "solver", "bad.yaml")
	if err := os.WriteFile(bad, []byte("packages: {not: [valid"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf strings.Builder
	summary, err := store.Ingest(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	if summary.Indexed != 1 {
		t.Errorf("Indexed = %d, want 1 (good document still ingested)", summary.Indexed)
	}
	if !strings.Contains(buf.String(), "failed  bad.yaml") {
		t.Errorf("output should report the failed document: %s", buf.String())
	}
}

func TestIngestSummaryOutput(t *testing.T) {
	store, tmpDir := testSetup(t)
	writeSolverDoc(t, tmpDir, "one.yaml", sampleDocument())

	var buf strings.Builder
	if _, err := store.Ingest(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	output := buf.String()

	if !strings.Contains(output, "ingested: 1") {
		t.Errorf("output should contain 'ingested: 1': %s", output)
	}
	if !strings.Contains(output, "skipped: 0") {
		t.Errorf("output should contain 'skipped: 0': %s", output)
	}
}

func TestIngestSummaryTotal(t *testing.T) {
	s := IngestSummary{Indexed: 2, Updated: 1, Skipped: 3, Failed: 1}
	if s.Total() != 7 {
		t.Errorf("Total() = %d, want 7", s.Total())
	}
}

// --- version query tests ---

func TestVersionsOrderedNewestFirst(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	got, err := store.Versions("flask", "", "")
	if err != nil {
		t.Fatal(err)
	}
	want := []types.PackageVersion{
		pkg("flask", "1.1.0", mirrorIndex),
		pkg("flask", "1.1.0", testIndex),
		pkg("flask", "1.0.1", testIndex),
		pkg("flask", "1.0.0", testIndex),
		pkg("flask", "0.12.0", testIndex),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d versions, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("versions[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestVersionsConstraintFilter(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	tests := []struct {
		constraint string
		wantCount  int
	}{
		{"", 5},
		{">=1.0.0", 4},
		{"==0.12.0", 1},
		{">=1.0.0,<1.1.0", 2},
		{"<0.1.0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			got, err := store.Versions("flask", tt.constraint, "")
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.wantCount {
				t.Errorf("got %d versions, want %d: %v", len(got), tt.wantCount, got)
			}
		})
	}
}

func TestVersionsIndexFilter(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	got, err := store.Versions("flask", "", testIndex)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d versions, want 4: %v", len(got), got)
	}
	for _, pv := range got {
		if pv.Index != testIndex {
			t.Errorf("version %v from wrong index", pv)
		}
	}
}

func TestVersionsRejectsBadConstraint(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	if _, err := store.Versions("flask", ">>nope", ""); err == nil {
		t.Fatal("expected constraint parse error")
	}
}

func TestVersionsUnknownPackage(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	got, err := store.Versions("no-such-package", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

// --- solver state tests ---

func TestSolved(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	tests := []struct {
		name string
		pv   types.PackageVersion
		want bool
	}{
		{"solved release", pkg("flask", "1.1.0", testIndex), true},
		{"yanked release", pkg("flask", "1.0.1", testIndex), false},
		{"unknown triple", pkg("flask", "9.9.9", testIndex), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Solved(tt.pv)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Solved(%v) = %v, want %v", tt.pv, got, tt.want)
			}
		})
	}
}

// --- hash cache tests ---

func TestHashesCached(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	first, err := store.Hashes(pkg("flask", "1.1.0", testIndex))
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 {
		t.Fatalf("hashes = %v, want 2 entries", first)
	}

	// Remove the rows behind the cache's back; the cached value must
	// still be served.
	if _, err := store.db.Exec(`DELETE FROM artifact_hashes WHERE name = 'flask'`); err != nil {
		t.Fatal(err)
	}
	second, err := store.Hashes(pkg("flask", "1.1.0", testIndex))
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 2 {
		t.Errorf("cached hashes = %v, want 2 entries", second)
	}
}

func TestHashesUnknownTriple(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	hashes, err := store.Hashes(pkg("flask", "9.9.9", testIndex))
	if err != nil {
		t.Fatal(err)
	}
	if len(hashes) != 0 {
		t.Errorf("hashes = %v, want none", hashes)
	}
}

// --- advisory tests ---

func TestAdvisoriesVersionRange(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	affected, err := store.Advisories("flask", "0.12.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(affected) != 1 {
		t.Fatalf("advisories for 0.12.0 = %v, want 1", affected)
	}
	if affected[0].CVEID != "CVE-2018-1000656" {
		t.Errorf("cve id = %s", affected[0].CVEID)
	}

	clean, err := store.Advisories("flask", "1.1.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(clean) != 0 {
		t.Errorf("advisories for 1.1.0 = %v, want none", clean)
	}
}

// --- performance tests ---

func TestPerformanceScore(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	score, err := store.PerformanceScore(pkg("flask", "1.1.0", testIndex))
	if err != nil {
		t.Fatal(err)
	}
	if score != 0.3 {
		t.Errorf("score = %v, want 0.3", score)
	}

	zero, err := store.PerformanceScore(pkg("flask", "1.0.0", testIndex))
	if err != nil {
		t.Fatal(err)
	}
	if zero != 0 {
		t.Errorf("unrecorded score = %v, want 0", zero)
	}
}

// --- alias tests ---

func TestAliasesBothDirections(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	forward, err := store.Aliases("tensorflow")
	if err != nil {
		t.Fatal(err)
	}
	if len(forward) != 1 || forward[0] != "intel-tensorflow" {
		t.Errorf("forward aliases = %v", forward)
	}

	backward, err := store.Aliases("intel-tensorflow")
	if err != nil {
		t.Fatal(err)
	}
	if len(backward) != 1 || backward[0] != "tensorflow" {
		t.Errorf("backward aliases = %v", backward)
	}

	none, err := store.Aliases("flask")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("aliases for flask = %v, want none", none)
	}
}

// --- export tests ---

func TestExportYAML(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	var buf bytes.Buffer
	if err := store.ExportYAML(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}

	var entries []ExportEntry
	if err := yaml.Unmarshal(buf.Bytes(), &entries); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if len(entries) != 8 {
		t.Fatalf("got %d entries, want 8", len(entries))
	}

	// click < flask lexically; flask entries newest first.
	if entries[0].Name != "click" {
		t.Errorf("first entry = %s, want click", entries[0].Name)
	}
	if entries[1].Name != "flask" || entries[1].Version != "1.1.0" {
		t.Errorf("second entry = %s %s, want flask 1.1.0", entries[1].Name, entries[1].Version)
	}

	for _, e := range entries {
		if e.Name == "flask" && e.Version == "1.1.0" && e.Index == testIndex {
			if len(e.Dependencies) != 2 || len(e.Hashes) != 2 {
				t.Errorf("flask 1.1.0 entry incomplete: %+v", e)
			}
		}
		if e.Name == "markupsafe" && !e.Prerelease {
			t.Error("markupsafe entry should be marked prerelease")
		}
		if e.Name == "flask" && e.Version == "1.0.1" && !e.Yanked {
			t.Error("flask 1.0.1 entry should be marked yanked")
		}
	}
}

func TestExportJSON(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	var buf bytes.Buffer
	if err := store.ExportJSON(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}

	var entries []ExportEntry
	if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(entries) != 8 {
		t.Errorf("got %d entries, want 8", len(entries))
	}
}

// --- stats tests ---

func TestStats(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir)

	st, err := store.Stats()
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{
		Packages:     4,
		Versions:     8,
		Dependencies: 2,
		Hashes:       3,
		Advisories:   1,
		Performance:  1,
		Aliases:      1,
		Documents:    1,
	}
	if st != want {
		t.Errorf("Stats = %+v, want %+v", st, want)
	}
}
