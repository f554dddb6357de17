package solver

import (
	"context"
	"sort"
	"time"

	"github.com/sdboyer/constext"
)

// nativeResolver is the reference Resolver implementation: a deterministic
// backtracking search over an Index, adapted from gps/solver.go's
// import-graph search (selectRoot/createVersionQueue/findValidVersion/
// backtrack/nextUnselected) to conda's name/MatchSpec/PackageRecord model.
// It is not the production SAT engine §1 treats as an external black box —
// it exists so this repo has a working, swappable Resolver to exercise the
// SolveEngine against, exactly as gps ships its own backtracking solver
// rather than only defining an interface.
type nativeResolver struct {
	index *Index
	// deadline bounds each blocking call into the search, merged with the
	// caller's context via constext — the one suspension point §5 allows.
	deadline time.Duration
}

// NewNativeResolver returns a Resolver backed by idx.
func NewNativeResolver(idx *Index) Resolver {
	return &nativeResolver{index: idx, deadline: 10 * time.Second}
}

// Groups orders candidates by version desc, then build number desc.
// Channel priority plays no part in the order.
func (r *nativeResolver) Groups(name string) []*PackageRecord {
	recs := append([]*PackageRecord(nil), r.index.ByName(name)...)
	sort.SliceStable(recs, func(i, j int) bool {
		if c := recs[j].ParsedVersion().Compare(recs[i].ParsedVersion()); c != 0 {
			return c < 0
		}
		return recs[j].BuildNumber < recs[i].BuildNumber
	})
	return recs
}

func (r *nativeResolver) FindMatches(spec MatchSpec) []*PackageRecord {
	var out []*PackageRecord
	for _, rec := range r.Groups(spec.Name) {
		if spec.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func (r *nativeResolver) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	dctx, cancel := context.WithTimeout(context.Background(), r.deadline)
	merged, mcancel := constext.Cons(ctx, dctx)
	return merged, func() { cancel(); mcancel() }
}

func (r *nativeResolver) GetPackagePool(ctx context.Context, specs []MatchSpec) map[string]map[*PackageRecord]struct{} {
	mctx, cancel := r.withDeadline(ctx)
	defer cancel()

	pool := make(map[string]map[*PackageRecord]struct{})
	var queue []MatchSpec
	queue = append(queue, specs...)
	seen := map[string]struct{}{}

	for len(queue) > 0 {
		select {
		case <-mctx.Done():
			return pool
		default:
		}
		s := queue[0]
		queue = queue[1:]
		if _, ok := seen[s.Name]; ok {
			continue
		}
		seen[s.Name] = struct{}{}
		matches := r.FindMatches(s)
		set := pool[s.Name]
		if set == nil {
			set = make(map[*PackageRecord]struct{})
			pool[s.Name] = set
		}
		for _, m := range matches {
			set[m] = struct{}{}
			for _, dep := range m.Depends {
				if ds, err := ParseMatchSpec(dep); err == nil {
					queue = append(queue, ds)
				}
			}
		}
	}
	return pool
}

func (r *nativeResolver) BadInstalled(records []*PackageRecord, specs []MatchSpec) ([]*PackageRecord, []*PackageRecord) {
	byName := make(map[string]*PackageRecord, len(records))
	for _, rec := range records {
		byName[rec.Name] = rec
	}
	var ok, bad []*PackageRecord
	for _, rec := range records {
		consistent := true
		for _, dep := range rec.Depends {
			ds, err := ParseMatchSpec(dep)
			if err != nil {
				continue
			}
			if len(ds.Name) > 1 && ds.Name[0] == '_' && ds.Name[1] == '_' {
				continue // virtual packages are never part of installed consistency checks
			}
			other, present := byName[ds.Name]
			if !present || !ds.Match(other) {
				consistent = false
				break
			}
		}
		if consistent {
			ok = append(ok, rec)
		} else {
			bad = append(bad, rec)
		}
	}
	return ok, bad
}

func (r *nativeResolver) GetConflictingSpecs(ctx context.Context, allSpecs []MatchSpec, specsToAdd []MatchSpec) []MatchSpec {
	byName := map[string][]MatchSpec{}
	for _, s := range allSpecs {
		byName[s.Name] = append(byName[s.Name], s)
	}

	// Pull in the transitive dependency specs of specsToAdd, the same way
	// GetPackagePool walks the dependency graph, so a conflict buried a level
	// down (e.g. a pinned package vs. a new request's dependency) still
	// surfaces here instead of only failing deep inside solve.
	seen := map[string]struct{}{}
	queue := append([]MatchSpec(nil), specsToAdd...)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if _, ok := seen[s.Name]; ok {
			continue
		}
		seen[s.Name] = struct{}{}
		for _, m := range r.FindMatches(s) {
			for _, dep := range m.Depends {
				ds, err := ParseMatchSpec(dep)
				if err != nil {
					continue
				}
				if len(ds.Name) > 1 && ds.Name[0] == '_' && ds.Name[1] == '_' {
					continue
				}
				byName[ds.Name] = append(byName[ds.Name], ds)
				queue = append(queue, ds)
			}
		}
	}

	var conflicts []MatchSpec
	for name, specs := range byName {
		var candidates []*PackageRecord
		for _, rec := range r.Groups(name) {
			matchesAll := true
			for _, s := range specs {
				if !s.Match(rec) {
					matchesAll = false
					break
				}
			}
			if matchesAll {
				candidates = append(candidates, rec)
			}
		}
		if len(candidates) == 0 && len(r.Groups(name)) > 0 {
			conflicts = append(conflicts, specs...)
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Name < conflicts[j].Name })
	return conflicts
}

func (r *nativeResolver) FindConflicts(ctx context.Context, specs []MatchSpec) error {
	conflicts := r.GetConflictingSpecs(ctx, specs, nil)
	if len(conflicts) == 0 {
		return nil
	}
	return &ErrUnsatisfiable{Specs: specs}
}

// searchState is one frame of the backtracking search, grounded on
// gps/solver.go's bimodalIdentifier/versionQueue shape: a name awaiting
// selection, plus the version candidates still untried at this frame.
type searchState struct {
	name       string
	candidates []*PackageRecord
	tried      int
}

func (r *nativeResolver) Solve(ctx context.Context, finalSpecs, specsToAdd []MatchSpec, historySpecs map[string]MatchSpec, shouldRetry bool) ([]*PackageRecord, error) {
	mctx, cancel := r.withDeadline(ctx)
	defer cancel()

	specsByName := map[string][]MatchSpec{}
	var order []string
	for _, s := range finalSpecs {
		if _, ok := specsByName[s.Name]; !ok {
			order = append(order, s.Name)
		}
		specsByName[s.Name] = append(specsByName[s.Name], s)
	}
	sort.Strings(order)

	assigned := map[string]*PackageRecord{}
	var frames []searchState

	// nextUnselected mirrors gps/solver.go's queue-driven selection: process
	// explicitly required names first (in sorted order for determinism),
	// then whatever dependency names get pulled in along the way.
	queue := append([]string(nil), order...)
	queued := map[string]struct{}{}
	for _, n := range order {
		queued[n] = struct{}{}
	}

	pushDepsOf := func(rec *PackageRecord) {
		for _, dep := range rec.Depends {
			ds, err := ParseMatchSpec(dep)
			if err != nil {
				continue
			}
			if len(ds.Name) > 1 && ds.Name[0] == '_' && ds.Name[1] == '_' {
				continue
			}
			specsByName[ds.Name] = append(specsByName[ds.Name], ds)
			if _, ok := queued[ds.Name]; !ok {
				queued[ds.Name] = struct{}{}
				queue = append(queue, ds.Name)
			}
		}
	}

	var backtrack func() bool
	backtrack = func() bool {
		for len(frames) > 0 {
			top := &frames[len(frames)-1]
			top.tried++
			delete(assigned, top.name)
			if top.tried < len(top.candidates) {
				return true
			}
			frames = frames[:len(frames)-1]
			// Undo any queueing this frame's previous pick caused; simplest
			// safe approach is to leave the queue as-is (already-queued
			// names are idempotent to re-push) and just retry the parent.
		}
		return false
	}

	for qi := 0; qi < len(queue); qi++ {
		select {
		case <-mctx.Done():
			return nil, &ErrUnsatisfiable{Specs: finalSpecs}
		default:
		}
		name := queue[qi]
		if _, ok := assigned[name]; ok {
			continue
		}
		candidates := r.candidatesFor(name, specsByName[name])
		frames = append(frames, searchState{name: name, candidates: candidates})

		placed := false
		for !placed {
			f := &frames[len(frames)-1]
			if f.tried >= len(f.candidates) {
				if !backtrack() {
					return nil, &ErrUnsatisfiable{Specs: finalSpecs, Chain: r.conflictChain(specsByName)}
				}
				qi = len(frames) - 1
				name = frames[qi].name
				continue
			}
			pick := f.candidates[f.tried]
			assigned[f.name] = pick
			pushDepsOf(pick)
			placed = true
		}
	}

	out := make([]*PackageRecord, 0, len(assigned))
	for _, name := range sortedKeys(assigned) {
		out = append(out, assigned[name])
	}
	return out, nil
}

func (r *nativeResolver) candidatesFor(name string, specs []MatchSpec) []*PackageRecord {
	var out []*PackageRecord
	for _, rec := range r.Groups(name) {
		ok := true
		for _, s := range specs {
			if !s.Match(rec) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

func (r *nativeResolver) conflictChain(specsByName map[string][]MatchSpec) []ConflictEdge {
	var chain []ConflictEdge
	for name, specs := range specsByName {
		if len(r.candidatesFor(name, specs)) == 0 {
			for _, s := range specs {
				chain = append(chain, ConflictEdge{Dependent: name, DependsOn: s})
			}
		}
	}
	sort.Slice(chain, func(i, j int) bool { return chain[i].Dependent < chain[j].Dependent })
	return chain
}

func sortedKeys(m map[string]*PackageRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
