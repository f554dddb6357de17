package solver

import "testing"

func TestPrefixGraphTopoOrderDependenciesFirst(t *testing.T) {
	a := rec("a", "1.0", "0")
	b := rec("b", "1.0", "0", "a")
	g := NewPrefixGraph([]*PackageRecord{b, a})

	order := g.Records()
	if len(order) != 2 {
		t.Fatalf("expected 2 records, got %d", len(order))
	}
	if order[0].Name != "a" || order[1].Name != "b" {
		t.Errorf("expected [a, b], got [%s, %s]", order[0].Name, order[1].Name)
	}
}

func TestPrefixGraphRemoveSpecCascades(t *testing.T) {
	a := rec("a", "1.0", "0")
	b := rec("b", "1.0", "0", "a")
	g := NewPrefixGraph([]*PackageRecord{a, b})

	spec := NewMatchSpec("a")
	removed := g.RemoveSpec(spec)

	names := map[string]bool{}
	for _, r := range removed {
		names[r.Name] = true
	}
	if !names["a"] || !names["b"] {
		t.Fatalf("expected cascade removal of both a and b, got %v", removed)
	}
	if len(g.Records()) != 0 {
		t.Errorf("expected empty graph after cascade removal, got %v", g.Records())
	}
}

func TestPrefixGraphRemoveSpecLeafOnly(t *testing.T) {
	a := rec("a", "1.0", "0")
	b := rec("b", "1.0", "0", "a")
	g := NewPrefixGraph([]*PackageRecord{a, b})

	// Force-remove semantics (S2): only remove the named leaf spec, no cascade.
	toRemove, _ := g.nodeByName("a")
	g.nodes[toRemove].rec = nil
	g.invalidate()

	remaining := g.Records()
	if len(remaining) != 1 || remaining[0].Name != "b" {
		t.Fatalf("expected only b to remain, got %v", remaining)
	}
}

func TestPrefixGraphPrune(t *testing.T) {
	root := rec("root", "1.0", "0", "dep")
	dep := rec("dep", "1.0", "0")
	orphan := rec("orphan", "1.0", "0")
	g := NewPrefixGraph([]*PackageRecord{root, dep, orphan})

	g.Prune([]string{"root"})
	names := map[string]bool{}
	for _, r := range g.Records() {
		names[r.Name] = true
	}
	if !names["root"] || !names["dep"] {
		t.Errorf("pruning should keep root and its dependency, got %v", names)
	}
	if names["orphan"] {
		t.Errorf("pruning should drop the unreachable orphan, got %v", names)
	}
}

func TestPrefixGraphAllAncestors(t *testing.T) {
	a := rec("a", "1.0", "0")
	b := rec("b", "1.0", "0", "a")
	c := rec("c", "1.0", "0", "b")
	g := NewPrefixGraph([]*PackageRecord{a, b, c})

	ancestors := g.AllAncestors("a")
	names := map[string]bool{}
	for _, r := range ancestors {
		names[r.Name] = true
	}
	if !names["b"] || !names["c"] {
		t.Errorf("expected b and c as ancestors of a, got %v", names)
	}
}
