// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provenance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/stack-adviser/internal/versions"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

const (
	testIndex  = "https://pkg.example.org/simple"
	otherIndex = "https://mirror.example.org/simple"
)

type fakeKnowledge struct {
	releases map[string][]types.PackageVersion
	hashes   map[string][]string
	unsolved map[string]bool
}

func (f *fakeKnowledge) Versions(name, constraint, index string) ([]types.PackageVersion, error) {
	spec, err := versions.Parse(constraint)
	if err != nil {
		return nil, err
	}
	var out []types.PackageVersion
	for _, pv := range f.releases[name] {
		if !spec.Match(pv.Version) {
			continue
		}
		if index != "" && pv.Index != index {
			continue
		}
		out = append(out, pv)
	}
	return out, nil
}

func (f *fakeKnowledge) Solved(pv types.PackageVersion) (bool, error) {
	return !f.unsolved[pv.Key()], nil
}

func (f *fakeKnowledge) Dependencies(types.PackageVersion) ([]types.Requirement, error) {
	return nil, nil
}

func (f *fakeKnowledge) Hashes(pv types.PackageVersion) ([]string, error) {
	return f.hashes[pv.Key()], nil
}

func (f *fakeKnowledge) Advisories(string, string) ([]types.Advisory, error) { return nil, nil }

func (f *fakeKnowledge) PerformanceScore(types.PackageVersion) (float64, error) { return 0, nil }

func (f *fakeKnowledge) Aliases(string) ([]string, error) { return nil, nil }

func testKnowledge() *fakeKnowledge {
	flask := types.PackageVersion{Name: "flask", Version: "1.1.0", Index: testIndex}
	return &fakeKnowledge{
		releases: map[string][]types.PackageVersion{"flask": {flask}},
		hashes:   map[string][]string{flask.Key(): {"sha256:1f20", "sha256:4ef3"}},
		unsolved: map[string]bool{},
	}
}

func testProject() *types.Project {
	return &types.Project{
		Requirements:   []types.Requirement{{Name: "flask", Constraint: ">=1.0.0"}},
		AllowedIndexes: []string{testIndex},
	}
}

func testLockfile() *types.Lockfile {
	return &types.Lockfile{Packages: []types.LockedPackage{{
		Name: "flask", Version: "1.1.0", Index: testIndex,
		Hashes: []string{"sha256:1f20"},
	}}}
}

func TestCheckCleanLockfile(t *testing.T) {
	checker := &Checker{Knowledge: testKnowledge()}

	report, err := checker.Check(testProject(), testLockfile())
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Empty(t, report.Findings)
	assert.Equal(t, 1, report.Checked)
}

func TestCheckFindings(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(kb *fakeKnowledge, project *types.Project, lock *types.Lockfile)
		wantType types.JustificationType
		wantMsg  string
		passed   bool
	}{
		{
			name: "unknown release",
			mutate: func(kb *fakeKnowledge, _ *types.Project, lock *types.Lockfile) {
				lock.Packages[0].Version = "9.9.9"
			},
			wantType: types.JustificationError,
			wantMsg:  "no known release flask==9.9.9",
			passed:   false,
		},
		{
			name: "release from unexpected index",
			mutate: func(kb *fakeKnowledge, project *types.Project, lock *types.Lockfile) {
				project.AllowedIndexes = nil
				lock.Packages[0].Index = otherIndex
			},
			wantType: types.JustificationError,
			wantMsg:  "not provided by index " + otherIndex,
			passed:   false,
		},
		{
			name: "index not allowed",
			mutate: func(kb *fakeKnowledge, _ *types.Project, lock *types.Lockfile) {
				kb.releases["flask"] = append(kb.releases["flask"],
					types.PackageVersion{Name: "flask", Version: "1.1.0", Index: otherIndex})
				lock.Packages[0].Index = otherIndex
			},
			wantType: types.JustificationError,
			wantMsg:  "not allowed by project configuration",
			passed:   false,
		},
		{
			name: "artifact hash mismatch",
			mutate: func(_ *fakeKnowledge, _ *types.Project, lock *types.Lockfile) {
				lock.Packages[0].Hashes = []string{"sha256:0bad"}
			},
			wantType: types.JustificationError,
			wantMsg:  "not among recorded digests",
			passed:   false,
		},
		{
			name: "no hashes pinned",
			mutate: func(_ *fakeKnowledge, _ *types.Project, lock *types.Lockfile) {
				lock.Packages[0].Hashes = nil
			},
			wantType: types.JustificationWarning,
			wantMsg:  "no artifact hashes pinned",
			passed:   true,
		},
		{
			name: "no hashes recorded",
			mutate: func(kb *fakeKnowledge, _ *types.Project, _ *types.Lockfile) {
				kb.hashes = map[string][]string{}
			},
			wantType: types.JustificationWarning,
			wantMsg:  "digests not verified",
			passed:   true,
		},
		{
			name: "yanked release",
			mutate: func(kb *fakeKnowledge, _ *types.Project, _ *types.Lockfile) {
				kb.unsolved[types.PackageVersion{Name: "flask", Version: "1.1.0", Index: testIndex}.Key()] = true
			},
			wantType: types.JustificationWarning,
			wantMsg:  "yanked or never solved",
			passed:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := testKnowledge()
			project := testProject()
			lock := testLockfile()
			tt.mutate(kb, project, lock)

			checker := &Checker{Knowledge: kb}
			report, err := checker.Check(project, lock)
			require.NoError(t, err)

			require.NotEmpty(t, report.Findings)
			found := false
			for _, f := range report.Findings {
				if f.Type == tt.wantType && f.Package == "flask" && strings.Contains(f.Message, tt.wantMsg) {
					found = true
				}
			}
			assert.True(t, found, "findings %+v should carry %q", report.Findings, tt.wantMsg)
			assert.Equal(t, tt.passed, report.Passed)
		})
	}
}

func TestCheckRequirementCoverage(t *testing.T) {
	t.Run("missing requirement", func(t *testing.T) {
		project := testProject()
		project.Requirements = append(project.Requirements,
			types.Requirement{Name: "werkzeug", Constraint: ">=1.0.0"})

		checker := &Checker{Knowledge: testKnowledge()}
		report, err := checker.Check(project, testLockfile())
		require.NoError(t, err)

		assert.False(t, report.Passed)
		require.Len(t, report.Findings, 1)
		assert.Equal(t, "werkzeug", report.Findings[0].Package)
		assert.Contains(t, report.Findings[0].Message, "missing from lockfile")
	})

	t.Run("constraint not satisfied", func(t *testing.T) {
		project := testProject()
		project.Requirements[0].Constraint = ">=2.0.0"

		checker := &Checker{Knowledge: testKnowledge()}
		report, err := checker.Check(project, testLockfile())
		require.NoError(t, err)

		assert.False(t, report.Passed)
		require.Len(t, report.Findings, 1)
		assert.Contains(t, report.Findings[0].Message, "does not satisfy requirement")
	})

	t.Run("nil project skips coverage", func(t *testing.T) {
		checker := &Checker{Knowledge: testKnowledge()}
		report, err := checker.Check(nil, testLockfile())
		require.NoError(t, err)
		assert.True(t, report.Passed)
	})
}

func TestCheckValidation(t *testing.T) {
	checker := &Checker{}
	_, err := checker.Check(testProject(), testLockfile())
	assert.Error(t, err)

	checker = &Checker{Knowledge: testKnowledge()}
	_, err = checker.Check(testProject(), nil)
	assert.Error(t, err)
}
