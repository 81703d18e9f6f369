// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package monkey samples valid dependency stacks by running the
// resolution pipeline repeatedly and letting a decision function keep
// or discard each produced stack. Kept stacks land as lockfiles in an
// output directory for downstream inspection.
// Implements: prd007-dependency-monkey (R1-R3);
//
//	docs/ARCHITECTURE § Dependency Monkey.
package monkey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/stack-adviser/internal/resolve"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// Monkey drives repeated resolution runs. Each run's products pass
// through the decision function; every resolver run advances the seed
// so runs explore different stacks. Per prd007-dependency-monkey R1.
type Monkey struct {
	// Resolver produces candidate stacks. Its pipeline should be built
	// for the dependency-monkey profile.
	Resolver *resolve.Resolver

	// Decision selects the acceptance function applied to each stack.
	Decision types.DecisionType

	// Count is the number of accepted stacks to collect.
	Count int

	// Output is the directory stack lockfiles are written to. Ignored
	// on dry runs.
	Output string

	// DryRun counts accepted stacks without writing them.
	DryRun bool

	// Seed seeds the decision coin and the per-run resolver seeds; 0
	// derives a seed from the clock.
	Seed int64

	// GeneratedBy names the producer recorded in stack lockfiles.
	GeneratedBy string

	// Log receives progress lines; nil discards them.
	Log io.Writer
}

// Report summarizes a dependency monkey run.
// Per prd007-dependency-monkey R3.
type Report struct {
	// Inspected counts stacks the resolver produced.
	Inspected int `json:"inspected" yaml:"inspected"`

	// Accepted counts stacks the decision function kept.
	Accepted int `json:"accepted" yaml:"accepted"`

	// Discarded counts stacks the decision function rejected.
	Discarded int `json:"discarded" yaml:"discarded"`

	// ResolverRuns counts underlying resolution runs.
	ResolverRuns int `json:"resolver_runs" yaml:"resolver_runs"`

	// Stacks lists written lockfile paths, in acceptance order. Empty
	// on dry runs.
	Stacks []string `json:"stacks,omitempty" yaml:"stacks,omitempty"`
}

// Run collects stacks until Count are accepted, the resolver stops
// producing, or ctx is canceled. Cancellation keeps the stacks
// accepted so far rather than returning an error.
func (m *Monkey) Run(ctx context.Context, project *types.Project) (*Report, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	seed := m.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	decide := decisionFor(m.Decision)
	coin := rand.New(rand.NewSource(seed))

	if !m.DryRun {
		if err := os.MkdirAll(m.Output, 0o755); err != nil {
			return nil, fmt.Errorf("creating stack output directory: %w", err)
		}
	}

	m.logf("dependency monkey: %d stacks wanted, decision %s (seed %d)", m.Count, m.Decision, seed)

	report := &Report{}
	for report.Accepted < m.Count {
		if err := ctx.Err(); err != nil {
			m.logf("dependency monkey canceled after %d stacks: %v", report.Accepted, err)
			break
		}

		// Each run gets its own seed so repeated runs walk different
		// corners of the dependency graph.
		res := *m.Resolver
		res.Seed = seed + int64(report.ResolverRuns)
		res.Count = m.Count - report.Accepted
		res.Decision = m.Decision

		run, err := res.Resolve(ctx, project)
		if err != nil {
			return nil, fmt.Errorf("resolver run %d: %w", report.ResolverRuns+1, err)
		}
		report.ResolverRuns++

		if len(run.Products) == 0 {
			m.logf("resolver produced no stacks (%s), stopping", run.StopReason)
			break
		}

		for _, product := range run.Products {
			report.Inspected++
			if !decide(coin) {
				report.Discarded++
				continue
			}
			report.Accepted++

			if m.DryRun {
				m.logf("accepted stack %d/%d, score %.4f (dry run)",
					report.Accepted, m.Count, product.Score)
			} else {
				path, err := m.writeStack(product, run.RunID, report.Accepted)
				if err != nil {
					return nil, err
				}
				report.Stacks = append(report.Stacks, path)
				m.logf("accepted stack %d/%d, score %.4f: %s",
					report.Accepted, m.Count, product.Score, filepath.Base(path))
			}
			if report.Accepted >= m.Count {
				break
			}
		}
	}

	m.logf("dependency monkey finished: %d inspected, %d accepted, %d discarded (%d resolver runs)",
		report.Inspected, report.Accepted, report.Discarded, report.ResolverRuns)
	return report, nil
}

func (m *Monkey) validate() error {
	switch {
	case m.Resolver == nil:
		return errors.New("no resolver configured")
	case m.Count <= 0:
		return fmt.Errorf("stack count must be positive, got %d", m.Count)
	case !m.DryRun && m.Output == "":
		return errors.New("no stack output directory set (use a dry run to only count)")
	}
	return nil
}

// writeStack lands one accepted stack as stack-<n>-<uuid>.yaml. The
// write goes through a temp file and rename so directory watchers
// never observe a half-written lockfile.
func (m *Monkey) writeStack(p *resolve.Product, runID string, n int) (string, error) {
	generatedBy := m.GeneratedBy
	if generatedBy == "" {
		generatedBy = "dependency-monkey"
	}
	data, err := yaml.Marshal(p.Lockfile(generatedBy, runID))
	if err != nil {
		return "", fmt.Errorf("marshaling stack %d: %w", n, err)
	}

	dest := filepath.Join(m.Output, fmt.Sprintf("stack-%d-%s.yaml", n, uuid.NewString()))
	tmpFile, err := os.CreateTemp(m.Output, ".stack-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing stack %d: %w", n, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming stack file: %w", err)
	}
	return dest, nil
}

func (m *Monkey) logf(format string, args ...any) {
	if m.Log == nil {
		return
	}
	fmt.Fprintf(m.Log, format+"\n", args...)
}
