// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/stack-adviser/internal/knowledge"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the knowledge base (init, ingest, versions, export, stats)",
	Long: `Knowledge manages the local SQLite knowledge base the resolver reads
from. Solver documents describing solved package releases are ingested
from a directory; subcommands query known versions, export the base,
or report table counts.`,
}

// --- init subcommand ---

var knowledgeInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty knowledge base",
	Long: `Init creates the SQLite database file with the full schema. Running it
against an existing knowledge base is harmless.`,
	RunE: runKnowledgeInit,
}

func runKnowledgeInit(cmd *cobra.Command, args []string) error {
	store, err := knowledge.NewStore(knowledgeSettings(cmd))
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Println("Knowledge base initialized at", store.Path())
	return nil
}

// --- ingest subcommand ---

var knowledgeIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest solver documents into the knowledge base",
	Long: `Ingest reads solver YAML documents from the solver directory and loads
the described releases, dependency edges, artifact digests, advisories
and performance records. Unchanged documents are skipped on subsequent
runs; re-solved packages replace their previous records.`,
	RunE: runKnowledgeIngest,
}

func runKnowledgeIngest(cmd *cobra.Command, args []string) error {
	store, err := knowledge.NewStore(knowledgeSettings(cmd))
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Ingest(cmd.Context(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d solver document(s) failed ingest", summary.Failed)
	}
	return nil
}

// --- versions subcommand ---

var knowledgeVersionsCmd = &cobra.Command{
	Use:   "versions <package>",
	Short: "List known releases of a package, newest first",
	Long: `Versions lists the releases of a package recorded in the knowledge
base, optionally narrowed by a version constraint or an index URL.`,
	Args: cobra.ExactArgs(1),
	RunE: runKnowledgeVersions,
}

func runKnowledgeVersions(cmd *cobra.Command, args []string) error {
	constraint, _ := cmd.Flags().GetString("constraint")
	index, _ := cmd.Flags().GetString("index")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := knowledge.NewStore(knowledgeSettings(cmd))
	if err != nil {
		return err
	}
	defer store.Close()

	releases, err := store.Versions(args[0], constraint, index)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(releases)
	}

	if len(releases) == 0 {
		fmt.Println("No known releases.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-30s  %-16s  %s\n", "Package", "Version", "Index")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
	for _, pv := range releases {
		fmt.Fprintf(os.Stdout, "%-30s  %-16s  %s\n", pv.Name, pv.Version, pv.Index)
	}
	fmt.Fprintf(os.Stdout, "\n%d release(s)\n", len(releases))
	return nil
}

// --- export subcommand ---

var knowledgeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the knowledge base to YAML or JSON",
	Long: `Export writes every known release with its dependencies and artifact
digests, ordered by package name and version for diffable output.`,
	RunE: runKnowledgeExport,
}

func runKnowledgeExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	store, err := knowledge.NewStore(knowledgeSettings(cmd))
	if err != nil {
		return err
	}
	defer store.Close()

	w := os.Stdout
	if output != "" && output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "yaml", "":
		return store.ExportYAML(cmd.Context(), w)
	case "json":
		return store.ExportJSON(cmd.Context(), w)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}

// --- stats subcommand ---

var knowledgeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print knowledge base table counts",
	RunE:  runKnowledgeStats,
}

func runKnowledgeStats(cmd *cobra.Command, args []string) error {
	store, err := knowledge.NewStore(knowledgeSettings(cmd))
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

// --- shared helpers ---

// knowledgeSettings assembles the knowledge base configuration from
// flags and config.
func knowledgeSettings(cmd *cobra.Command) types.KnowledgeConfig {
	return types.KnowledgeConfig{
		Path:      settingString(cmd, "db", "knowledge.path"),
		SolverDir: settingString(cmd, "solver-dir", "knowledge.solver_dir"),
	}
}

func init() {
	// Shared flag on the parent command, inherited by subcommands.
	knowledgeCmd.PersistentFlags().String("solver-dir", "solver", "directory of solver documents to ingest")

	// Versions flags.
	knowledgeVersionsCmd.Flags().String("constraint", "", "version constraint, e.g. \">=1.19,<2.0\"")
	knowledgeVersionsCmd.Flags().String("index", "", "restrict to a single index URL")
	knowledgeVersionsCmd.Flags().Bool("json", false, "output releases as JSON")

	// Export flags.
	knowledgeExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	knowledgeExportCmd.Flags().StringP("output", "o", "-", "export destination: file path or - for stdout")

	// Wire subcommands.
	knowledgeCmd.AddCommand(knowledgeInitCmd)
	knowledgeCmd.AddCommand(knowledgeIngestCmd)
	knowledgeCmd.AddCommand(knowledgeVersionsCmd)
	knowledgeCmd.AddCommand(knowledgeExportCmd)
	knowledgeCmd.AddCommand(knowledgeStatsCmd)

	rootCmd.AddCommand(knowledgeCmd)
}
