package solver

import (
	"context"
	"testing"
)

func TestNativeResolverGroupsOrdering(t *testing.T) {
	newestBuild := NewPackageRecord(Identity{Channel: "defaults", Subdir: "linux-64", Name: "numpy", Version: "1.24.0", Build: "1"}, 1, nil, nil, nil, nil, NoarchNone, false, 0)
	idx := NewIndex([]*PackageRecord{
		rec("numpy", "1.20.0", "0"),
		rec("numpy", "1.24.0", "0"),
		newestBuild,
	})
	r := NewNativeResolver(idx)

	groups := r.Groups("numpy")
	if len(groups) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(groups))
	}
	if groups[0].Version != "1.24.0" || groups[0].BuildNumber != 1 {
		t.Errorf("expected newest version/build first, got %+v", groups[0])
	}
	if groups[2].Version != "1.20.0" {
		t.Errorf("expected oldest version last, got %+v", groups[2])
	}
}

func TestNativeResolverSolveResolvesDependencies(t *testing.T) {
	idx := NewIndex([]*PackageRecord{
		rec("a", "1.0", "0", "b >=1.0"),
		rec("b", "1.0", "0"),
		rec("b", "2.0", "0"),
	})
	r := NewNativeResolver(idx)

	solution, err := r.Solve(context.Background(), []MatchSpec{NewMatchSpec("a")}, []MatchSpec{NewMatchSpec("a")}, nil, false)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if b, ok := byName(solution, "b"); !ok || b.Version != "2.0" {
		t.Errorf("expected newest b satisfying >=1.0, got %+v", b)
	}
}

// GetConflictingSpecs must expand specsToAdd's transitive dependencies, not
// just check each already-present name's own spec list in isolation —
// otherwise a pinned package conflicting with a new request's dependency
// would only surface deep inside Solve as a raw Unsatisfiable.
func TestNativeResolverGetConflictingSpecsCatchesTransitiveConflict(t *testing.T) {
	idx := NewIndex([]*PackageRecord{
		rec("python", "3.9.0", "h_0"),
		rec("python", "3.10.0", "h_0"),
		rec("somepkg", "1.0.0", "0", "python >=3.10"),
	})
	r := NewNativeResolver(idx)

	pythonPin, _ := ParseMatchSpec("python 3.9.*")
	somepkgSpec := NewMatchSpec("somepkg")

	conflicts := r.GetConflictingSpecs(context.Background(), []MatchSpec{pythonPin, somepkgSpec}, []MatchSpec{somepkgSpec})

	found := false
	for _, c := range conflicts {
		if c.Name == "python" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected python to be reported as conflicting via somepkg's transitive dependency, got %v", conflicts)
	}
}

func TestNativeResolverBadInstalledDetectsBrokenDeps(t *testing.T) {
	a := rec("a", "1.0", "0", "b >=2.0")
	b := rec("b", "1.0", "0")

	r := NewNativeResolver(NewIndex([]*PackageRecord{a, b}))
	ok, bad := r.BadInstalled([]*PackageRecord{a, b}, nil)

	if len(bad) != 1 || bad[0].Name != "a" {
		t.Errorf("expected a flagged as inconsistent (needs b>=2.0, only 1.0 present), got bad=%v", bad)
	}
	if len(ok) != 1 || ok[0].Name != "b" {
		t.Errorf("expected b to remain consistent, got ok=%v", ok)
	}
}
