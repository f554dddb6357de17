package solver

import "sort"

// nodeIndex is an arena index into PrefixGraph.nodes, per §9's guidance to
// avoid pointer graphs in favor of integer-indexed adjacency lists.
type nodeIndex int

const noNode nodeIndex = -1

type graphNode struct {
	rec  *PackageRecord
	deps []nodeIndex // edges A -> B iff some entry in A.Depends matches B
	rdeps []nodeIndex // reverse edges, for ancestor/prune queries
}

// PrefixGraph is a DAG keyed by package name — names are unique in any
// consistent prefix (spec.md §4.B). It caches its topological order and
// invalidates the cache on any mutating call.
type PrefixGraph struct {
	nodes   []graphNode
	byName  map[string]nodeIndex
	topo    []nodeIndex
	topoOK  bool
}

// NewPrefixGraph builds a graph over records, wiring an edge A->B whenever
// some dependency expression in A.Depends matches B.
func NewPrefixGraph(records []*PackageRecord) *PrefixGraph {
	g := &PrefixGraph{byName: make(map[string]nodeIndex, len(records))}
	for _, r := range records {
		g.byName[r.Name] = nodeIndex(len(g.nodes))
		g.nodes = append(g.nodes, graphNode{rec: r})
	}
	for i := range g.nodes {
		for _, dep := range g.nodes[i].rec.Depends {
			spec, err := ParseMatchSpec(dep)
			if err != nil {
				continue
			}
			if j, ok := g.byName[spec.Name]; ok && spec.Match(g.nodes[j].rec) {
				g.nodes[i].deps = append(g.nodes[i].deps, j)
				g.nodes[j].rdeps = append(g.nodes[j].rdeps, nodeIndex(i))
			}
		}
	}
	return g
}

func (g *PrefixGraph) invalidate() { g.topoOK = false }

func (g *PrefixGraph) nodeByName(name string) (nodeIndex, bool) {
	i, ok := g.byName[name]
	return i, ok
}

// Records returns every live record still present in the graph, in
// topological order (roots to leaves).
func (g *PrefixGraph) Records() []*PackageRecord {
	order := g.topoOrder()
	out := make([]*PackageRecord, 0, len(order))
	for _, i := range order {
		if g.nodes[i].rec != nil {
			out = append(out, g.nodes[i].rec)
		}
	}
	return out
}

// topoOrder computes (and caches) a topological order, roots first, ties
// broken by name asc, build number desc, version desc (§4.B).
func (g *PrefixGraph) topoOrder() []nodeIndex {
	if g.topoOK {
		return g.topo
	}
	// spec.md §8 property 6 says "no record precedes one of its
	// dependencies," i.e. dependencies come first (leaves of the depends
	// edges are emitted before the packages that need them). depCount holds
	// "number of not-yet-emitted dependencies" and a node emits once all its
	// dependencies are emitted.
	depCount := make([]int, len(g.nodes))
	for i := range g.nodes {
		if g.nodes[i].rec == nil {
			continue
		}
		for _, j := range g.nodes[i].deps {
			if g.nodes[j].rec != nil {
				depCount[i]++
			}
		}
	}

	var ready []nodeIndex
	for i := range g.nodes {
		if g.nodes[i].rec != nil && depCount[i] == 0 {
			ready = append(ready, nodeIndex(i))
		}
	}
	sortReady := func(xs []nodeIndex) {
		sort.Slice(xs, func(a, b int) bool {
			return dependencyLess(g.nodes[xs[a]].rec, g.nodes[xs[b]].rec)
		})
	}
	sortReady(ready)

	var out []nodeIndex
	remaining := depCount
	emitted := make([]bool, len(g.nodes))
	for len(ready) > 0 {
		sortReady(ready)
		n := ready[0]
		ready = ready[1:]
		if emitted[n] {
			continue
		}
		emitted[n] = true
		out = append(out, n)
		// g.nodes[n].rdeps already lists every node that depends on n, so the
		// dependents awaiting n's emission are a direct lookup rather than a
		// rescan of every node's deps.
		for _, i := range g.nodes[n].rdeps {
			if g.nodes[i].rec == nil || emitted[i] {
				continue
			}
			remaining[i]--
			if remaining[i] == 0 {
				ready = append(ready, i)
			}
		}
	}
	// Any node not reached (cycle, should not happen per invariant 2) is
	// appended in arena (insertion) order so Records() never silently drops
	// a record.
	for i := range g.nodes {
		if g.nodes[i].rec != nil && !emitted[i] {
			out = append(out, nodeIndex(i))
		}
	}

	g.topo = out
	g.topoOK = true
	return out
}

// RemoveSpec removes every record matching spec, cascading to every
// dependent that loses a dependency, and to any record whose features
// intersect spec's track_features. No dependent is shielded from the
// cascade: there is no set of kept roots. Returns the removed records in
// topological order (§4.B).
func (g *PrefixGraph) RemoveSpec(spec MatchSpec) []*PackageRecord {
	toRemove := map[nodeIndex]struct{}{}
	for i := range g.nodes {
		if g.nodes[i].rec != nil && spec.Match(g.nodes[i].rec) {
			toRemove[nodeIndex(i)] = struct{}{}
		}
	}

	if len(spec.TrackFeatures) > 0 {
		for i := range g.nodes {
			if g.nodes[i].rec == nil {
				continue
			}
			if _, already := toRemove[nodeIndex(i)]; already {
				continue
			}
			for f := range spec.TrackFeatures {
				if _, has := g.nodes[i].rec.Features[f]; has {
					toRemove[nodeIndex(i)] = struct{}{}
					break
				}
			}
		}
	}

	// Cascade: repeatedly remove any remaining node that depends on a
	// removed node.
	changed := true
	for changed {
		changed = false
		for i := range g.nodes {
			if g.nodes[i].rec == nil {
				continue
			}
			if _, already := toRemove[nodeIndex(i)]; already {
				continue
			}
			for _, dep := range g.nodes[i].deps {
				if _, gone := toRemove[dep]; gone {
					toRemove[nodeIndex(i)] = struct{}{}
					changed = true
					break
				}
			}
		}
	}

	order := g.topoOrder()
	var removed []*PackageRecord
	for _, i := range order {
		if _, ok := toRemove[i]; ok && g.nodes[i].rec != nil {
			removed = append(removed, g.nodes[i].rec)
		}
	}
	for i := range toRemove {
		g.nodes[i].rec = nil
	}
	g.invalidate()
	return removed
}

// RemoveYoungestDescendantNodesWithSpecs removes only the leaf-most nodes
// matching any of specs — i.e. matching nodes with no other live node
// depending on them — used by ONLY_DEPS (§4.B).
func (g *PrefixGraph) RemoveYoungestDescendantNodesWithSpecs(specs []MatchSpec) []*PackageRecord {
	var removed []*PackageRecord
	for i := range g.nodes {
		if g.nodes[i].rec == nil {
			continue
		}
		matched := false
		for _, s := range specs {
			if s.Match(g.nodes[i].rec) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		leaf := true
		for _, r := range g.nodes[i].rdeps {
			if g.nodes[r].rec != nil {
				leaf = false
				break
			}
		}
		if leaf {
			removed = append(removed, g.nodes[i].rec)
			g.nodes[i].rec = nil
		}
	}
	g.invalidate()
	return removed
}

// AllAncestors returns every live node that (transitively) depends on name.
func (g *PrefixGraph) AllAncestors(name string) []*PackageRecord {
	start, ok := g.nodeByName(name)
	if !ok || g.nodes[start].rec == nil {
		return nil
	}
	seen := map[nodeIndex]struct{}{}
	var stack []nodeIndex
	stack = append(stack, g.nodes[start].rdeps...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[n]; ok {
			continue
		}
		if g.nodes[n].rec == nil {
			continue
		}
		seen[n] = struct{}{}
		stack = append(stack, g.nodes[n].rdeps...)
	}
	var out []*PackageRecord
	for _, i := range g.topoOrder() {
		if _, ok := seen[i]; ok {
			out = append(out, g.nodes[i].rec)
		}
	}
	return out
}

// Prune discards nodes not reachable, by following dependency edges, from
// any node named in keptRoots (§4.B).
func (g *PrefixGraph) Prune(keptRoots []string) {
	keep := map[nodeIndex]struct{}{}
	var stack []nodeIndex
	for _, name := range keptRoots {
		if i, ok := g.nodeByName(name); ok && g.nodes[i].rec != nil {
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := keep[n]; ok {
			continue
		}
		keep[n] = struct{}{}
		for _, d := range g.nodes[n].deps {
			if g.nodes[d].rec != nil {
				stack = append(stack, d)
			}
		}
	}
	for i := range g.nodes {
		if g.nodes[i].rec == nil {
			continue
		}
		if _, ok := keep[nodeIndex(i)]; !ok {
			g.nodes[i].rec = nil
		}
	}
	g.invalidate()
}
