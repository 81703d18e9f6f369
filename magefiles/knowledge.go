//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Ingest builds the CLI and loads solver documents from solver/ into
// the knowledge base.
func Ingest() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "knowledge", "ingest")
}

// Export builds the CLI and writes the knowledge base export to
// reports/knowledge.yaml.
func Export() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "knowledge", "export",
		"--output", filepath.Join("reports", "knowledge.yaml"))
}
