// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/stack-adviser/internal/knowledge"
	"github.com/pdiddy/stack-adviser/internal/monkey"
	"github.com/pdiddy/stack-adviser/internal/predictor"
	"github.com/pdiddy/stack-adviser/internal/prescription"
	"github.com/pdiddy/stack-adviser/internal/resolve"
	"github.com/pdiddy/stack-adviser/internal/units"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

var monkeyCmd = &cobra.Command{
	Use:   "dependency-monkey",
	Short: "Sample valid dependency stacks for offline inspection",
	Long: `Dependency-monkey resolves the requirements repeatedly and samples the
produced stacks with a decision function: all keeps every stack, random
keeps each with probability 0.5. Kept stacks land as lockfiles in the
stacks output directory, one file per stack, ready to be installed and
inspected by external tooling.

Use --dry-run to count the stacks that would be kept without writing
them.`,
	RunE: runMonkey,
}

type monkeyParameters struct {
	Decision     string `json:"decision" yaml:"decision"`
	Count        int    `json:"count" yaml:"count"`
	Limit        int    `json:"limit" yaml:"limit"`
	Seed         int64  `json:"seed" yaml:"seed"`
	StacksOutput string `json:"stacks_output,omitempty" yaml:"stacks_output,omitempty"`
	DryRun       bool   `json:"dry_run" yaml:"dry_run"`
}

func runMonkey(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	format := settingString(cmd, "format", "output.format")
	noPretty := settingBool(cmd, "no-pretty", "output.no_pretty")

	decision, err := types.ParseDecisionType(settingString(cmd, "decision", "monkey.decision"))
	if err != nil {
		return err
	}

	reqPath, _ := cmd.Flags().GetString("requirements")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	params := monkeyParameters{
		Decision:     decision.String(),
		Count:        settingInt(cmd, "count", "resolver.count"),
		Limit:        settingInt(cmd, "limit", "resolver.limit"),
		Seed:         settingInt64(cmd, "seed", "resolver.seed"),
		StacksOutput: settingString(cmd, "stacks-output", "monkey.stacks_dir"),
		DryRun:       dryRun,
	}
	env := &resultEnvelope{Parameters: params}

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

	var extra []units.Registration
	if prescriptionsPath := settingString(cmd, "prescriptions", "resolver.prescriptions"); prescriptionsPath != "" {
		docs, err := prescription.Load(prescriptionsPath)
		if err != nil {
			return fail(err)
		}
		extra = prescription.Registrations(docs)
	}

	store, err := knowledge.NewStore(knowledgeSettings(cmd))
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	pipeline := units.Build(&units.BuilderContext{
		Decision:  decision,
		ForMonkey: true,
		Project:   project,
	}, extra...)

	beamWidth := settingInt(cmd, "beam-width", "resolver.beam_width")
	mk := &monkey.Monkey{
		Resolver: &resolve.Resolver{
			Pipeline:  pipeline,
			Predictor: &predictor.AdaptiveSimulatedAnnealing{},
			Knowledge: store,
			BeamWidth: beamWidth,
			Limit:     params.Limit,
			Log:       os.Stderr,
		},
		Decision:    decision,
		Count:       params.Count,
		Output:      params.StacksOutput,
		DryRun:      dryRun,
		Seed:        params.Seed,
		GeneratedBy: fmt.Sprintf("stack-adviser %s dependency-monkey", version),
		Log:         os.Stderr,
	}

	report, err := mk.Run(cmd.Context(), project)
	if err != nil {
		return fail(err)
	}
	env.Report = report

	return writeResult(output, format, noPretty, env)
}

func init() {
	monkeyCmd.Flags().StringP("requirements", "r", "requirements.yaml", "project requirements file (YAML)")
	monkeyCmd.Flags().String("decision", "all", "stack acceptance function: all or random")
	monkeyCmd.Flags().Int("count", 3, "number of stacks to sample")
	monkeyCmd.Flags().Int("limit", 10000, "maximum resolver iterations per run")
	monkeyCmd.Flags().Int("beam-width", 1000, "maximum states kept between iterations (0 = unbounded)")
	monkeyCmd.Flags().Int64("seed", 0, "random seed (0 = derive from time)")
	monkeyCmd.Flags().String("prescriptions", "", "YAML file or directory of declarative pipeline units")
	monkeyCmd.Flags().String("stacks-output", "stacks", "directory sampled stack lockfiles are written to")
	monkeyCmd.Flags().StringP("output", "o", "-", "report destination: file path or - for stdout")
	monkeyCmd.Flags().String("format", "json", "report encoding: json or yaml")
	monkeyCmd.Flags().Bool("no-pretty", false, "compact report output")
	monkeyCmd.Flags().Bool("dry-run", false, "count accepted stacks without writing lockfiles")

	rootCmd.AddCommand(monkeyCmd)
}
