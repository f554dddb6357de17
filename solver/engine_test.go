package solver

import (
	"context"
	"testing"
)

func byName(records []*PackageRecord, name string) (*PackageRecord, bool) {
	for _, r := range records {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

func names(records []*PackageRecord) map[string]bool {
	out := make(map[string]bool, len(records))
	for _, r := range records {
		out[r.Name] = true
	}
	return out
}

// S1: trivial install, python kept at its installed minor.
func TestSolveEngineTrivialInstall(t *testing.T) {
	python := rec("python", "3.9.0", "h_0")

	index := NewIndex([]*PackageRecord{
		python,
		rec("flask", "2.0.0", "0", "werkzeug", "jinja2", "python >=3.7"),
		rec("werkzeug", "1.0.0", "0"),
		rec("jinja2", "3.0.0", "0"),
	})
	resolver := NewNativeResolver(index)

	engine := NewSolveEngine(&Config{}, EngineInputs{
		Index:         index,
		Resolver:      resolver,
		PrefixRecords: []*PackageRecord{python},
		SpecsToAdd:    []MatchSpec{NewMatchSpec("flask")},
		Command:       "install",
	})

	solution, err := engine.SolveFinalState(context.Background(), UpdateModifierNone, DepsModifierNotSet, false, false, false, false)
	if err != nil {
		t.Fatalf("SolveFinalState: %v", err)
	}

	got := names(solution)
	for _, want := range []string{"python", "flask", "werkzeug", "jinja2"} {
		if !got[want] {
			t.Errorf("expected %s in solution, got %v", want, got)
		}
	}
	if p, ok := byName(solution, "python"); !ok || p.Version != "3.9.0" {
		t.Errorf("expected python kept at 3.9.0, got %+v", p)
	}
}

// S2: force-remove a leaf without cascading to its dependent.
func TestSolveEngineForceRemoveLeaf(t *testing.T) {
	a := rec("a", "1.0", "0")
	b := rec("b", "1.0", "0", "a")

	engine := NewSolveEngine(&Config{}, EngineInputs{
		PrefixRecords: []*PackageRecord{a, b},
		SpecsToRemove: []MatchSpec{NewMatchSpec("a")},
		Command:       "remove",
	})

	solution, err := engine.SolveFinalState(context.Background(), UpdateModifierNone, DepsModifierNotSet, false, false, true, false)
	if err != nil {
		t.Fatalf("SolveFinalState: %v", err)
	}

	got := names(solution)
	if got["a"] {
		t.Errorf("expected a removed, got %v", got)
	}
	if !got["b"] {
		t.Errorf("expected b to remain (force_remove does not cascade), got %v", got)
	}
}

// S3: cascade remove drops both the target and its dependent.
func TestSolveEngineCascadeRemove(t *testing.T) {
	a := rec("a", "1.0", "0")
	b := rec("b", "1.0", "0", "a")

	index := NewIndex([]*PackageRecord{a, b})
	resolver := NewNativeResolver(index)

	engine := NewSolveEngine(&Config{}, EngineInputs{
		Index:         index,
		Resolver:      resolver,
		PrefixRecords: []*PackageRecord{a, b},
		SpecsToRemove: []MatchSpec{NewMatchSpec("a")},
		Command:       "remove",
	})

	solution, err := engine.SolveFinalState(context.Background(), UpdateModifierNone, DepsModifierNotSet, false, false, false, false)
	if err != nil {
		t.Fatalf("SolveFinalState: %v", err)
	}
	if len(solution) != 0 {
		t.Errorf("expected empty solution after cascade removal, got %v", names(solution))
	}
}

// S4: freeze-installed keeps existing records pinned while adding a new one.
func TestSolveEngineFreezeInstalled(t *testing.T) {
	numpy := rec("numpy", "1.20.0", "0")
	python := rec("python", "3.9.0", "h_0")

	index := NewIndex([]*PackageRecord{
		numpy,
		rec("numpy", "1.24.0", "0"), // newer, should not be picked while frozen
		python,
		rec("pandas", "1.3.0", "0", "numpy >=1.16", "python >=3.7"),
	})
	resolver := NewNativeResolver(index)

	engine := NewSolveEngine(&Config{}, EngineInputs{
		Index:         index,
		Resolver:      resolver,
		PrefixRecords: []*PackageRecord{numpy, python},
		HistoryMap: map[string]MatchSpec{
			"numpy":  NewMatchSpec("numpy"),
			"python": NewMatchSpec("python"),
		},
		SpecsToAdd: []MatchSpec{NewMatchSpec("pandas")},
		Command:    "install",
	})

	solution, err := engine.SolveFinalState(context.Background(), UpdateModifierFreezeInstalled, DepsModifierNotSet, false, false, false, false)
	if err != nil {
		t.Fatalf("SolveFinalState: %v", err)
	}

	if n, ok := byName(solution, "numpy"); !ok || n.Version != "1.20.0" {
		t.Errorf("expected numpy frozen at 1.20.0, got %+v", n)
	}
	if p, ok := byName(solution, "python"); !ok || p.Version != "3.9.0" {
		t.Errorf("expected python frozen at 3.9.0, got %+v", p)
	}
	if _, ok := byName(solution, "pandas"); !ok {
		t.Errorf("expected pandas added, got %v", names(solution))
	}
}

// S5: update-all advances history-driven packages to the newest compatible
// versions; python, not explicitly requested, stays within its installed
// major.minor.
func TestSolveEngineUpdateAll(t *testing.T) {
	numpy := rec("numpy", "1.20.0", "0")
	python := rec("python", "3.9.0", "h_0")

	newNumpy := rec("numpy", "1.24.0", "0")
	newPython := rec("python", "3.11.0", "h_0")

	index := NewIndex([]*PackageRecord{numpy, newNumpy, python, newPython})
	resolver := NewNativeResolver(index)

	engine := NewSolveEngine(&Config{}, EngineInputs{
		Index:         index,
		Resolver:      resolver,
		PrefixRecords: []*PackageRecord{numpy, python},
		HistoryMap: map[string]MatchSpec{
			"numpy":  NewMatchSpec("numpy"),
			"python": NewMatchSpec("python"),
		},
		Command: "update",
	})

	solution, err := engine.SolveFinalState(context.Background(), UpdateModifierUpdateAll, DepsModifierNotSet, false, false, false, false)
	if err != nil {
		t.Fatalf("SolveFinalState: %v", err)
	}

	if n, ok := byName(solution, "numpy"); !ok || n.Version != "1.24.0" {
		t.Errorf("expected numpy advanced to 1.24.0, got %+v", n)
	}
	if p, ok := byName(solution, "python"); !ok || p.Version != "3.9.0" {
		t.Errorf("expected python held at its installed minor (3.9.0), got %+v", p)
	}
}

// S6: a pinned spec conflicting with the requested spec fails with SpecsConfigurationConflict.
func TestSolveEnginePinnedConflict(t *testing.T) {
	python := rec("python", "3.9.0", "h_0")

	index := NewIndex([]*PackageRecord{
		python,
		rec("python", "3.10.0", "h_0"),
		rec("somepkg", "1.0.0", "0", "python >=3.10"),
	})
	resolver := NewNativeResolver(index)

	pinned, err := ParseMatchSpec("python 3.9.*")
	if err != nil {
		t.Fatalf("ParseMatchSpec: %v", err)
	}
	pinned.Optional = true

	engine := NewSolveEngine(&Config{}, EngineInputs{
		Index:         index,
		Resolver:      resolver,
		PrefixRecords: []*PackageRecord{python},
		PinnedSpecs:   []MatchSpec{pinned},
		SpecsToAdd:    []MatchSpec{NewMatchSpec("somepkg")},
		Command:       "install",
	})

	_, err = engine.SolveFinalState(context.Background(), UpdateModifierNone, DepsModifierNotSet, false, false, false, false)
	if err == nil {
		t.Fatal("expected a conflict error between the pinned python spec and somepkg's requirement")
	}
	if _, ok := err.(*ErrSpecsConfigurationConflict); !ok {
		if _, ok := err.(*ErrPackagesNotFound); !ok {
			t.Errorf("expected *ErrSpecsConfigurationConflict (or PackagesNotFound if python>=3.10 is pinned out entirely), got %T: %v", err, err)
		}
	}
}
