// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/stack-adviser/internal/knowledge"
	"github.com/pdiddy/stack-adviser/internal/predictor"
	"github.com/pdiddy/stack-adviser/internal/prescription"
	"github.com/pdiddy/stack-adviser/internal/resolve"
	"github.com/pdiddy/stack-adviser/internal/units"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Recommend dependency stacks for a set of requirements",
	Long: `Advise resolves the project requirements against the knowledge base and
recommends the best-scored dependency stacks. The recommendation type
selects the pipeline profile: stable favors vetted releases, testing
admits pre-releases, latest pins the newest versions regardless of
their scores.

The report carries the recommended stacks with scores, justifications
and advised manifest changes. With --history the predictor's
temperature trace lands in a CSV file for offline inspection.`,
	RunE: runAdvise,
}

// adviseParameters is the parameters block recorded in the result
// envelope.
type adviseParameters struct {
	RecommendationType string `json:"recommendation_type" yaml:"recommendation_type"`
	Count              int    `json:"count" yaml:"count"`
	Limit              int    `json:"limit" yaml:"limit"`
	BeamWidth          int    `json:"beam_width" yaml:"beam_width"`
	Seed               int64  `json:"seed" yaml:"seed"`
	Prescriptions      string `json:"prescriptions,omitempty" yaml:"prescriptions,omitempty"`
	Lockfile           string `json:"lockfile,omitempty" yaml:"lockfile,omitempty"`
	DryRun             bool   `json:"dry_run" yaml:"dry_run"`
}

func runAdvise(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	format := settingString(cmd, "format", "output.format")
	noPretty := settingBool(cmd, "no-pretty", "output.no_pretty")

	typeName, _ := cmd.Flags().GetString("type")
	recommendation, err := types.ParseRecommendationType(typeName)
	if err != nil {
		return err
	}

	reqPath, _ := cmd.Flags().GetString("requirements")
	lockPath, _ := cmd.Flags().GetString("lockfile")
	historyPath, _ := cmd.Flags().GetString("history")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	params := adviseParameters{
		RecommendationType: recommendation.String(),
		Count:              settingInt(cmd, "count", "resolver.count"),
		Limit:              settingInt(cmd, "limit", "resolver.limit"),
		BeamWidth:          settingInt(cmd, "beam-width", "resolver.beam_width"),
		Seed:               settingInt64(cmd, "seed", "resolver.seed"),
		Prescriptions:      settingString(cmd, "prescriptions", "resolver.prescriptions"),
		Lockfile:           lockPath,
		DryRun:             dryRun,
	}
	env := &resultEnvelope{Parameters: params}

	// From here on failures are reported inside the result envelope,
	// mirroring what consumers of stored reports expect.
	fail := func(err error) error {
		env.Error = true
		env.Report = errorReport(err)
		if werr := writeResult(output, format, noPretty, env); werr != nil {
			return werr
		}
		return err
	}

	project, err := types.LoadProject(reqPath)
	if err != nil {
		return fail(err)
	}
	env.Input = project

	var lock *types.Lockfile
	if lockPath != "" {
		if lock, err = types.LoadLockfile(lockPath); err != nil {
			return fail(err)
		}
	}

	var extra []units.Registration
	if params.Prescriptions != "" {
		docs, err := prescription.Load(params.Prescriptions)
		if err != nil {
			return fail(err)
		}
		extra = prescription.Registrations(docs)
		for _, d := range docs {
			fmt.Fprintf(os.Stderr, "Loaded prescription set %s (%d units)\n",
				d.Spec.Name, len(d.UnitNames()))
		}
	}

	store, err := knowledge.NewStore(knowledgeSettings(cmd))
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	pipeline := units.Build(&units.BuilderContext{
		Recommendation: recommendation,
		Project:        project,
		Lockfile:       lock,
	}, extra...)

	asa := &predictor.AdaptiveSimulatedAnnealing{KeepHistory: historyPath != ""}

	resolver := &resolve.Resolver{
		Pipeline:       pipeline,
		Predictor:      asa,
		Knowledge:      store,
		Recommendation: recommendation,
		BeamWidth:      params.BeamWidth,
		Limit:          params.Limit,
		Count:          params.Count,
		Seed:           params.Seed,
		Log:            os.Stderr,
	}

	if dryRun {
		env.Report = &resolve.Report{StopReason: resolve.StopDryRun}
		return writeResult(output, format, noPretty, env)
	}

	report, err := resolver.Resolve(cmd.Context(), project)
	if err != nil {
		return fail(err)
	}
	env.Report = report

	if historyPath != "" {
		if err := writeHistoryCSV(asa, historyPath); err != nil {
			return err
		}
	}
	return writeResult(output, format, noPretty, env)
}

// writeHistoryCSV lands the predictor's temperature trace next to the
// report for offline analysis.
func writeHistoryCSV(p *predictor.AdaptiveSimulatedAnnealing, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating history file: %w", err)
	}
	if err := p.WriteHistory(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing history file: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Annealing history written to", path)
	return nil
}

func init() {
	adviseCmd.Flags().StringP("requirements", "r", "requirements.yaml", "project requirements file (YAML)")
	adviseCmd.Flags().String("lockfile", "", "existing lockfile whose pins resolution must honor")
	adviseCmd.Flags().String("type", "stable", "recommendation type: stable, testing or latest")
	adviseCmd.Flags().Int("count", 3, "number of stacks to recommend")
	adviseCmd.Flags().Int("limit", 10000, "maximum resolver iterations")
	adviseCmd.Flags().Int("beam-width", 1000, "maximum states kept between iterations (0 = unbounded)")
	adviseCmd.Flags().Int64("seed", 0, "random seed (0 = derive from time)")
	adviseCmd.Flags().String("prescriptions", "", "YAML file or directory of declarative pipeline units")
	adviseCmd.Flags().String("history", "", "write the annealing temperature trace to a CSV file")
	adviseCmd.Flags().StringP("output", "o", "-", "report destination: file path or - for stdout")
	adviseCmd.Flags().String("format", "json", "report encoding: json or yaml")
	adviseCmd.Flags().Bool("no-pretty", false, "compact report output")
	adviseCmd.Flags().Bool("dry-run", false, "validate configuration and pipeline without resolving")

	rootCmd.AddCommand(adviseCmd)
}
