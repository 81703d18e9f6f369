// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knowledge persists solver results in SQLite and serves the
// version, dependency and advisory queries resolution runs on.
// Implements: prd005-knowledge-base (R1-R6);
//
//	docs/ARCHITECTURE § Knowledge Base.
package knowledge

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/stack-adviser/pkg/types"
)

const hashCacheSize = 4096

// Store manages the knowledge base SQLite database.
type Store struct {
	db        *sql.DB
	path      string
	solverDir string
	hashes    *lru.Cache[string, []string]
}

// NewStore opens or creates the knowledge base at cfg.Path. It creates
// the schema if it does not exist.
func NewStore(cfg types.KnowledgeConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("knowledge base path not set")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating knowledge directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	cache, err := lru.New[string, []string](hashCacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating hash cache: %w", err)
	}

	s := &Store{
		db:        db,
		path:      cfg.Path,
		solverDir: cfg.SolverDir,
		hashes:    cache,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS packages (
			name TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS package_versions (
			name TEXT NOT NULL REFERENCES packages(name),
			version TEXT NOT NULL,
			index_url TEXT NOT NULL,
			prerelease INTEGER NOT NULL DEFAULT 0,
			yanked INTEGER NOT NULL DEFAULT 0,
			solved_at TEXT,
			PRIMARY KEY (name, version, index_url)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_package_versions_name ON package_versions(name)`,
		`CREATE TABLE IF NOT EXISTS depends_on (
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			index_url TEXT NOT NULL,
			dep_name TEXT NOT NULL,
			dep_constraint TEXT,
			PRIMARY KEY (name, version, index_url, dep_name)
		)`,
		`CREATE TABLE IF NOT EXISTS artifact_hashes (
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			index_url TEXT NOT NULL,
			sha256 TEXT NOT NULL,
			PRIMARY KEY (name, version, index_url, sha256)
		)`,
		`CREATE TABLE IF NOT EXISTS advisories (
			package TEXT NOT NULL,
			version_range TEXT NOT NULL,
			cve_id TEXT NOT NULL,
			advisory TEXT,
			link TEXT,
			PRIMARY KEY (package, cve_id, version_range)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_advisories_package ON advisories(package)`,
		`CREATE TABLE IF NOT EXISTS performance (
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			index_url TEXT NOT NULL,
			score REAL NOT NULL,
			PRIMARY KEY (name, version, index_url)
		)`,
		`CREATE TABLE IF NOT EXISTS aliases (
			name TEXT NOT NULL,
			alias TEXT NOT NULL,
			PRIMARY KEY (name, alias)
		)`,
		`CREATE TABLE IF NOT EXISTS ingest_log (
			path TEXT PRIMARY KEY,
			mtime TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	return nil
}
