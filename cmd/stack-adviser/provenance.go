// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/stack-adviser/internal/knowledge"
	"github.com/pdiddy/stack-adviser/internal/provenance"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

var provenanceCmd = &cobra.Command{
	Use:   "provenance",
	Short: "Validate a lockfile against the knowledge base",
	Long: `Provenance checks that every pinned package of a lockfile is a known
release served by an allowed index and that its pinned artifact digests
match the recorded ones. With a requirements file the check also
verifies that every requirement is covered by a satisfying pin.

Findings are typed ERROR, WARNING or INFO; the check passes when no
ERROR finding is raised.`,
	RunE: runProvenance,
}

type provenanceParameters struct {
	Lockfile           string   `json:"lockfile" yaml:"lockfile"`
	Requirements       string   `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	WhitelistedIndexes []string `json:"whitelisted_indexes,omitempty" yaml:"whitelisted_indexes,omitempty"`
}

func runProvenance(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	format := settingString(cmd, "format", "output.format")
	noPretty := settingBool(cmd, "no-pretty", "output.no_pretty")

	lockPath, _ := cmd.Flags().GetString("lockfile")
	if lockPath == "" {
		return errors.New("no lockfile to check: pass --lockfile")
	}
	reqPath, _ := cmd.Flags().GetString("requirements")

	params := provenanceParameters{Lockfile: lockPath, Requirements: reqPath}
	env := &resultEnvelope{Parameters: &params}

	fail := func(err error) error {
		env.Error = true
		env.Report = errorReport(err)
		if werr := writeResult(output, format, noPretty, env); werr != nil {
			return werr
		}
		return err
	}

	var project *types.Project
	if reqPath != "" {
		var err error
		if project, err = types.LoadProject(reqPath); err != nil {
			return fail(err)
		}
		params.WhitelistedIndexes = project.AllowedIndexes
	}

	lock, err := types.LoadLockfile(lockPath)
	if err != nil {
		return fail(err)
	}
	env.Input = lock

	store, err := knowledge.NewStore(knowledgeSettings(cmd))
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	checker := &provenance.Checker{Knowledge: store}
	report, err := checker.Check(project, lock)
	if err != nil {
		return fail(err)
	}
	env.Report = report

	if err := writeResult(output, format, noPretty, env); err != nil {
		return err
	}
	if !report.Passed {
		errorCount := 0
		for _, f := range report.Findings {
			if f.Type == types.JustificationError {
				errorCount++
			}
		}
		return fmt.Errorf("provenance check failed with %d error finding(s)", errorCount)
	}
	return nil
}

func init() {
	provenanceCmd.Flags().String("lockfile", "", "pinned stack file to check")
	provenanceCmd.Flags().StringP("requirements", "r", "", "project requirements file supplying index policy and coverage checks")
	provenanceCmd.Flags().StringP("output", "o", "-", "report destination: file path or - for stdout")
	provenanceCmd.Flags().String("format", "json", "report encoding: json or yaml")
	provenanceCmd.Flags().Bool("no-pretty", false, "compact report output")

	rootCmd.AddCommand(provenanceCmd)
}
