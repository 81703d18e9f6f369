package units

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/pdiddy/stack-adviser/internal/resolve"
	"github.com/pdiddy/stack-adviser/internal/versions"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

const testIndex = "https://pkg.example.org/simple"

// fakeKnowledge serves canned metadata for unit tests.
type fakeKnowledge struct {
	releases   map[string][]string
	unsolved   map[string]bool
	advisories map[string][]types.Advisory
	perf       map[string]float64
	aliases    map[string][]string
}

func (f *fakeKnowledge) Versions(name, constraint, index string) ([]types.PackageVersion, error) {
	spec, err := versions.Parse(constraint)
	if err != nil {
		return nil, err
	}
	var out []types.PackageVersion
	for _, v := range f.releases[name] {
		if spec.Match(v) {
			out = append(out, types.PackageVersion{Name: name, Version: v, Index: testIndex})
		}
	}
	return out, nil
}

func (f *fakeKnowledge) Solved(pv types.PackageVersion) (bool, error) {
	return !f.unsolved[pv.Key()], nil
}

func (f *fakeKnowledge) Dependencies(types.PackageVersion) ([]types.Requirement, error) {
	return nil, nil
}

func (f *fakeKnowledge) Hashes(types.PackageVersion) ([]string, error) {
	return nil, nil
}

func (f *fakeKnowledge) Advisories(name, version string) ([]types.Advisory, error) {
	return f.advisories[name+" "+version], nil
}

func (f *fakeKnowledge) PerformanceScore(pv types.PackageVersion) (float64, error) {
	return f.perf[pv.Key()], nil
}

func (f *fakeKnowledge) Aliases(name string) ([]string, error) {
	return f.aliases[name], nil
}

func testContext(kb resolve.KnowledgeBase) *resolve.Context {
	return &resolve.Context{
		Project:   &types.Project{Requirements: []types.Requirement{{Name: "app"}}},
		Knowledge: kb,
		Limit:     100,
		Count:     3,
		Rand:      rand.New(rand.NewSource(1)),
	}
}

func pkg(name, version string) types.PackageVersion {
	return types.PackageVersion{Name: name, Version: version, Index: testIndex}
}

// --- builder tests ---

func stageCounts(p *resolve.Pipeline) [6]int {
	return [6]int{len(p.Boots), len(p.Pseudonyms), len(p.Sieves), len(p.Steps), len(p.Strides), len(p.Wraps)}
}

func TestBuildPipelineComposition(t *testing.T) {
	tests := []struct {
		name string
		bctx *BuilderContext
		want [6]int
	}{
		{
			"stable adviser",
			&BuilderContext{Recommendation: types.RecommendationStable, Project: &types.Project{}},
			[6]int{2, 1, 3, 2, 1, 2},
		},
		{
			"testing adviser admits prereleases",
			&BuilderContext{Recommendation: types.RecommendationTesting, Project: &types.Project{}},
			[6]int{2, 1, 2, 2, 1, 2},
		},
		{
			"latest adviser swaps security for latest marking",
			&BuilderContext{Recommendation: types.RecommendationLatest, Project: &types.Project{}},
			[6]int{2, 1, 3, 2, 1, 2},
		},
		{
			"monkey adds dropout",
			&BuilderContext{Recommendation: types.RecommendationStable, ForMonkey: true, Project: &types.Project{}},
			[6]int{2, 1, 3, 3, 1, 2},
		},
		{
			"index whitelist and lockfile add sieves",
			&BuilderContext{
				Recommendation: types.RecommendationStable,
				Project:        &types.Project{AllowedIndexes: []string{testIndex}},
				Lockfile:       &types.Lockfile{},
			},
			[6]int{2, 1, 5, 2, 1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Build(tt.bctx)
			if got := stageCounts(p); got != tt.want {
				t.Errorf("stage counts = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildAppendsExtraRegistrations(t *testing.T) {
	bctx := &BuilderContext{Project: &types.Project{}}
	extra := Registration{
		Add: func(_ *BuilderContext, p *resolve.Pipeline) {
			p.Sieves = append(p.Sieves, &PreReleaseSieve{})
		},
	}
	excluded := Registration{
		Include: func(*BuilderContext) bool { return false },
		Add: func(_ *BuilderContext, p *resolve.Pipeline) {
			t.Error("excluded registration was added")
		},
	}

	base := len(Build(bctx).Sieves)
	p := Build(bctx, extra, excluded)
	if len(p.Sieves) != base+1 {
		t.Errorf("sieves = %d, want %d", len(p.Sieves), base+1)
	}
}

func TestBuildLatestIncludesLatestStep(t *testing.T) {
	p := Build(&BuilderContext{Recommendation: types.RecommendationLatest, Project: &types.Project{}})

	var names []string
	for _, s := range p.Steps {
		names = append(names, s.Name())
	}
	hasLatest, hasSecurity := false, false
	for _, n := range names {
		if n == "LatestVersionStep" {
			hasLatest = true
		}
		if n == "SecurityStep" {
			hasSecurity = true
		}
	}
	if !hasLatest || hasSecurity {
		t.Errorf("latest pipeline steps = %v", names)
	}
}

// --- boot tests ---

func TestEnvironmentBootRecordsStackInfo(t *testing.T) {
	ctx := testContext(&fakeKnowledge{})
	ctx.Project.RuntimeEnvironment = types.RuntimeEnvironment{
		OperatingSystem: types.OperatingSystem{Name: "fedora", Version: "42"},
		Runtime:         "1.25",
		CUDAVersion:     "12.4",
	}

	if err := (&EnvironmentBoot{}).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(ctx.StackInfo()); got != 2 {
		t.Errorf("stack info records = %d, want 2", got)
	}
}

func TestKnowledgeCheckBootStopsOnUnknownPackage(t *testing.T) {
	ctx := testContext(&fakeKnowledge{releases: map[string][]string{}})

	err := (&KnowledgeCheckBoot{}).Run(ctx)
	var stop *resolve.EagerStopError
	if !errors.As(err, &stop) {
		t.Fatalf("err = %v, want EagerStopError", err)
	}

	ctx = testContext(&fakeKnowledge{releases: map[string][]string{"app": {"1.0.0"}}})
	if err := (&KnowledgeCheckBoot{}).Run(ctx); err != nil {
		t.Errorf("Run with known package: %v", err)
	}
}

// --- pseudonym tests ---

func TestAliasPseudonym(t *testing.T) {
	kb := &fakeKnowledge{
		releases: map[string][]string{
			"tensorflow":       {"2.2.0", "2.1.0"},
			"intel-tensorflow": {"2.2.0"},
		},
		aliases: map[string][]string{"tensorflow": {"intel-tensorflow"}},
	}
	ctx := testContext(kb)
	u := &AliasPseudonym{}

	alts, err := u.Run(ctx, pkg("tensorflow", "2.2.0"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(alts) != 1 || alts[0].Name != "intel-tensorflow" || alts[0].Version != "2.2.0" {
		t.Errorf("alternatives = %v", alts)
	}

	// No alias release at this version.
	alts, err = u.Run(ctx, pkg("tensorflow", "2.1.0"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(alts) != 0 {
		t.Errorf("alternatives = %v, want none", alts)
	}
}

// --- sieve tests ---

func TestLegacyVersionSieve(t *testing.T) {
	ctx := testContext(&fakeKnowledge{})
	u := &LegacyVersionSieve{}

	if err := u.Run(ctx, pkg("lib", "2020.12.alpha")); !errors.Is(err, resolve.ErrSkipCandidate) {
		t.Errorf("legacy version: err = %v, want skip", err)
	}
	if err := u.Run(ctx, pkg("lib", "1.2.3")); err != nil {
		t.Errorf("valid version: err = %v", err)
	}
}

func TestSolvedSieve(t *testing.T) {
	kb := &fakeKnowledge{unsolved: map[string]bool{pkg("lib", "1.0.0").Key(): true}}
	ctx := testContext(kb)
	u := &SolvedSieve{}

	if err := u.Run(ctx, pkg("lib", "1.0.0")); !errors.Is(err, resolve.ErrSkipCandidate) {
		t.Errorf("unsolved: err = %v, want skip", err)
	}
	if err := u.Run(ctx, pkg("lib", "1.1.0")); err != nil {
		t.Errorf("solved: err = %v", err)
	}
}

func TestIndexSieve(t *testing.T) {
	project := &types.Project{AllowedIndexes: []string{testIndex}}
	ctx := testContext(&fakeKnowledge{})
	u := &IndexSieve{Project: project}

	if err := u.Run(ctx, pkg("lib", "1.0.0")); err != nil {
		t.Errorf("allowed index: err = %v", err)
	}

	other := types.PackageVersion{Name: "lib", Version: "1.0.0", Index: "https://mirror.example/simple"}
	if err := u.Run(ctx, other); !errors.Is(err, resolve.ErrSkipCandidate) {
		t.Errorf("disallowed index: err = %v, want skip", err)
	}
}

func TestPreReleaseSieve(t *testing.T) {
	ctx := testContext(&fakeKnowledge{})
	u := &PreReleaseSieve{}

	if err := u.Run(ctx, pkg("lib", "2.0.0-rc.1")); !errors.Is(err, resolve.ErrSkipCandidate) {
		t.Errorf("prerelease: err = %v, want skip", err)
	}
	if err := u.Run(ctx, pkg("lib", "2.0.0")); err != nil {
		t.Errorf("release: err = %v", err)
	}
}

func TestLockedSieve(t *testing.T) {
	lock := &types.Lockfile{Packages: []types.LockedPackage{
		{Name: "lib", Version: "1.0.0", Index: testIndex},
	}}
	ctx := testContext(&fakeKnowledge{})
	u := NewLockedSieve(lock)

	if err := u.Run(ctx, pkg("lib", "1.0.0")); err != nil {
		t.Errorf("pinned version: err = %v", err)
	}
	if err := u.Run(ctx, pkg("lib", "1.1.0")); !errors.Is(err, resolve.ErrSkipCandidate) {
		t.Errorf("other version: err = %v, want skip", err)
	}
	if err := u.Run(ctx, pkg("unrelated", "9.9.9")); err != nil {
		t.Errorf("unpinned package: err = %v", err)
	}
}

// --- step tests ---

func TestDropoutStepProportion(t *testing.T) {
	ctx := testContext(&fakeKnowledge{})
	u := NewDropoutStep()

	dropped := 0
	for i := 0; i < 1000; i++ {
		_, err := u.Run(ctx, nil, pkg("lib", "1.0.0"))
		if err != nil {
			var na *resolve.NotAcceptableError
			if !errors.As(err, &na) {
				t.Fatalf("unexpected error type: %v", err)
			}
			dropped++
		}
	}

	// Survival probability 0.9: expect roughly 100 drops in 1000 trials.
	if dropped < 60 || dropped > 140 {
		t.Errorf("dropped = %d of 1000, want near 100", dropped)
	}
}

func TestSecurityStepPenalizesAdvisories(t *testing.T) {
	kb := &fakeKnowledge{advisories: map[string][]types.Advisory{
		"web 1.0.0": {
			{Package: "web", CVEID: "CVE-2025-1111", Summary: "request smuggling", VersionRange: "<1.0.2", Link: "https://cve.example/1111"},
			{Package: "web", CVEID: "CVE-2025-2222", Summary: "header injection", VersionRange: "<1.1.0"},
		},
	}}
	ctx := testContext(kb)
	u := &SecurityStep{}

	res, err := u.Run(ctx, nil, pkg("web", "1.0.0"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Score != 2*cvePenalty {
		t.Errorf("score = %v, want %v", res.Score, 2*cvePenalty)
	}
	if len(res.Justification) != 2 || res.Justification[0].Type != types.JustificationCVE {
		t.Errorf("justification = %+v", res.Justification)
	}
	if res.Justification[0].CVEID != "CVE-2025-1111" {
		t.Errorf("cve id = %s", res.Justification[0].CVEID)
	}

	res, err = u.Run(ctx, nil, pkg("web", "1.1.0"))
	if err != nil {
		t.Fatalf("Run clean version: %v", err)
	}
	if res != nil {
		t.Errorf("clean version result = %+v, want nil", res)
	}
}

func TestPerformanceStep(t *testing.T) {
	kb := &fakeKnowledge{perf: map[string]float64{pkg("numo", "2.0.0").Key(): 1.5}}
	ctx := testContext(kb)
	u := &PerformanceStep{}

	res, err := u.Run(ctx, nil, pkg("numo", "2.0.0"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res == nil || res.Score != 1.5 {
		t.Errorf("result = %+v, want score 1.5", res)
	}

	res, err = u.Run(ctx, nil, pkg("numo", "1.0.0"))
	if err != nil {
		t.Fatalf("Run without record: %v", err)
	}
	if res != nil {
		t.Errorf("result without record = %+v, want nil", res)
	}
}

func TestLatestVersionStep(t *testing.T) {
	kb := &fakeKnowledge{releases: map[string][]string{"lib": {"2.0.0", "1.0.0"}}}
	ctx := testContext(kb)
	u := &LatestVersionStep{}

	res, err := u.Run(ctx, nil, pkg("lib", "2.0.0"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res == nil || len(res.Justification) != 1 || res.Justification[0].Type != types.JustificationLatest {
		t.Errorf("result = %+v", res)
	}

	res, err = u.Run(ctx, nil, pkg("lib", "1.0.0"))
	if err != nil {
		t.Fatalf("Run older: %v", err)
	}
	if res != nil {
		t.Errorf("older version result = %+v, want nil", res)
	}
}

// --- stride tests ---

func TestUniqueStackStrideRejectsDuplicates(t *testing.T) {
	ctx := testContext(&fakeKnowledge{})
	u := NewUniqueStackStride()

	first := resolve.NewState(nil)
	first.MarkResolved(pkg("a", "1.0.0"))
	first.MarkResolved(pkg("b", "2.0.0"))

	// Same set, different resolution order.
	second := resolve.NewState(nil)
	second.MarkResolved(pkg("b", "2.0.0"))
	second.MarkResolved(pkg("a", "1.0.0"))

	if err := u.Run(ctx, first); err != nil {
		t.Fatalf("first stack: %v", err)
	}
	err := u.Run(ctx, second)
	var na *resolve.NotAcceptableError
	if !errors.As(err, &na) {
		t.Errorf("duplicate stack: err = %v, want NotAcceptableError", err)
	}

	third := resolve.NewState(nil)
	third.MarkResolved(pkg("a", "1.0.0"))
	if err := u.Run(ctx, third); err != nil {
		t.Errorf("distinct stack: %v", err)
	}
}

// --- wrap tests ---

func TestRuntimeChangesWrap(t *testing.T) {
	ctx := testContext(&fakeKnowledge{})
	u := NewRuntimeChangesWrap()

	state := resolve.NewState(nil)
	state.MarkResolved(pkg("intel-tensorflow", "2.2.0"))
	state.MarkResolved(pkg("flask", "1.0.0"))

	if err := u.Run(ctx, state); err != nil {
		t.Fatalf("Run: %v", err)
	}
	changes := state.ManifestChanges()
	if len(changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(changes))
	}
	if changes[0].Patch.Value["name"] != "OMP_NUM_THREADS" {
		t.Errorf("patch = %+v", changes[0].Patch)
	}
}

func TestNoObservationWrap(t *testing.T) {
	ctx := testContext(&fakeKnowledge{})
	u := &NoObservationWrap{}

	quiet := resolve.NewState(nil)
	if err := u.Run(ctx, quiet); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(quiet.Justifications()); got != 1 {
		t.Fatalf("justifications = %d, want 1", got)
	}

	noisy := resolve.NewState(nil)
	noisy.AddJustification(types.Justification{Type: types.JustificationInfo, Message: "seen"})
	if err := u.Run(ctx, noisy); err != nil {
		t.Fatalf("Run noisy: %v", err)
	}
	if got := len(noisy.Justifications()); got != 1 {
		t.Errorf("justifications = %d, want unchanged 1", got)
	}
}
