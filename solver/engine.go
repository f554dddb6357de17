package solver

import (
	"context"
	"sort"

	"github.com/pkg/errors"
)

// SolveEngine is the orchestration state machine driving phases 1-7 of
// spec.md §4.E. One instance solves one prefix, once; per §5, "a
// SolveEngine instance is not safe for concurrent use."
type SolveEngine struct {
	cfg    *Config
	prefix string

	index    *Index
	resolver Resolver

	prefixRecords []*PackageRecord
	historyMap    map[string]MatchSpec
	pinnedSpecs   []MatchSpec

	specsToAdd    []MatchSpec
	specsToRemove []MatchSpec
	command       Command

	neuteredSpecs []MatchSpec
	diagnostics   []ConstrainingDependent

	// ssc survives across a retried call to SolveFinalState, mirroring the
	// Python Solver's `self.ssc` reuse on retry (§5 "Retry semantics").
	ssc *SolverState
}

// EngineInputs bundles everything NewSolveEngine needs beyond Config, per
// §6's "Inputs to solve_final_state."
type EngineInputs struct {
	Prefix        string
	Index         *Index
	Resolver      Resolver
	PrefixRecords []*PackageRecord
	HistoryMap    map[string]MatchSpec
	PinnedSpecs   []MatchSpec
	SpecsToAdd    []MatchSpec
	SpecsToRemove []MatchSpec
	Command       Command
}

// NewSolveEngine constructs a fresh engine for one solve.
func NewSolveEngine(cfg *Config, in EngineInputs) *SolveEngine {
	return &SolveEngine{
		cfg:           cfg,
		prefix:        in.Prefix,
		index:         in.Index,
		resolver:      in.Resolver,
		prefixRecords: in.PrefixRecords,
		historyMap:    in.HistoryMap,
		pinnedSpecs:   in.PinnedSpecs,
		specsToAdd:    in.SpecsToAdd,
		specsToRemove: in.SpecsToRemove,
		command:       in.Command,
	}
}

// NeuteredSpecs returns the specs weakened by the Phase 6 retry loop during
// the most recent solve.
func (e *SolveEngine) NeuteredSpecs() []MatchSpec { return e.neuteredSpecs }

// Diagnostics returns the constrained-update diagnostics produced during
// the most recent UPDATE_SPECS solve (SPEC_FULL.md supplement 1/2). The
// core does not print these; callers render them.
func (e *SolveEngine) Diagnostics() []ConstrainingDependent { return e.diagnostics }

// SolveFinalState drives phases 1-7 and returns the final, solved record
// set in topological order (§4.E).
func (e *SolveEngine) SolveFinalState(ctx context.Context, updateModifier UpdateModifier, depsModifier DepsModifier, prune, ignorePinned, forceRemove, shouldRetry bool) ([]*PackageRecord, error) {
	if e.prefix == e.cfg.RootPrefix && e.cfg.EnablePrivateEnvs {
		return nil, &ErrNotImplemented{Feature: "private environment transactions"}
	}

	// Phase 1 — short circuits.
	if len(e.specsToRemove) > 0 && forceRemove {
		if len(e.specsToAdd) > 0 {
			return nil, &ErrNotImplemented{Feature: "simultaneous force_remove and specs_to_add"}
		}
		kept := make([]*PackageRecord, 0, len(e.prefixRecords))
		for _, r := range e.prefixRecords {
			removed := false
			for _, s := range e.specsToRemove {
				if s.Match(r) {
					removed = true
					break
				}
			}
			if !removed {
				kept = append(kept, r)
			}
		}
		return NewPrefixGraph(kept).Records(), nil
	}

	if updateModifier == UpdateModifierSpecsSatisfiedSkipSolve && len(e.specsToRemove) == 0 && !prune {
		allSatisfied := true
		for _, s := range e.specsToAdd {
			if _, ok := findOne(e.prefixRecords, s); !ok {
				allSatisfied = false
				break
			}
		}
		if allSatisfied {
			return NewPrefixGraph(e.prefixRecords).Records(), nil
		}
	}

	retrying := e.ssc != nil
	var ssc *SolverState
	if !retrying {
		ssc = newSolverState(e.prefixRecords, e.historyMap, e.pinnedSpecs)
		ssc.index = e.index
		ssc.resolver = e.resolver
		e.ssc = ssc
	} else {
		ssc = e.ssc
	}
	ssc.updateModifier = updateModifier
	ssc.depsModifier = depsModifier
	ssc.prune = prune
	ssc.ignorePinned = ignorePinned
	ssc.forceRemove = forceRemove
	ssc.shouldRetrySolve = shouldRetry

	if !retrying {
		e.collectMetadata(ssc)
	}

	if err := e.removeSpecs(ssc); err != nil {
		return nil, err
	}

	e.findInconsistentPackages(ssc)

	if err := e.addSpecs(ssc); err != nil {
		return nil, err
	}

	solutionSnapshot := append([]*PackageRecord(nil), ssc.solutionPrecs...)
	preSnapshot := e.snapshotRequested(ssc)

	if err := e.runSAT(ctx, ssc); err != nil {
		return nil, err
	}

	postSnapshot := e.snapshotRequested(ssc)
	if ssc.updateModifier == UpdateModifierUpdateSpecs {
		constrained := constrainedPackages(e.specsToAdd, preSnapshot, postSnapshot, e.index)
		for _, spec := range constrained {
			e.diagnostics = append(e.diagnostics, ConstrainingDependents(spec, ssc.solutionPrecs)...)
		}
	}

	if len(ssc.addBackMap) > 0 {
		prevNames := make(map[string]struct{}, len(solutionSnapshot))
		for _, p := range solutionSnapshot {
			prevNames[p.Name] = struct{}{}
		}
		curNames := make(map[string]struct{}, len(ssc.solutionPrecs))
		for _, p := range ssc.solutionPrecs {
			curNames[p.Name] = struct{}{}
		}
		for _, p := range solutionSnapshot {
			if _, stillThere := curNames[p.Name]; stillThere {
				continue
			}
			if _, addedBack := ssc.addBackMap[p.Name]; addedBack {
				continue
			}
			if ssc.specsMap.Has(p.Name) {
				continue
			}
			ssc.solutionPrecs = append(ssc.solutionPrecs, p)
		}
	}

	if err := e.postSatHandling(ctx, ssc); err != nil {
		return nil, err
	}

	ssc.solutionPrecs = NewPrefixGraph(ssc.solutionPrecs).Records()
	return ssc.solutionPrecs, nil
}

func (e *SolveEngine) snapshotRequested(ssc *SolverState) map[string][][2]string {
	out := make(map[string][][2]string, len(e.specsToAdd))
	for _, s := range e.specsToAdd {
		out[s.Name] = requestedPackageSnapshot(s.Name, ssc.solutionPrecs, ssc.specsMap)
	}
	return out
}

// collectMetadata is Phase 2 (§4.E).
func (e *SolveEngine) collectMetadata(ssc *SolverState) {
	for name, spec := range e.historyMap {
		ssc.specsMap.Set(name, spec)
	}

	for _, name := range e.cfg.stickyNames() {
		if ssc.specsMap.Has(name) {
			continue
		}
		if _, ok := findRecordByName(ssc.prefixRecords, name); ok {
			ssc.specsMap.Set(name, NewMatchSpec(name))
		}
	}

	for _, name := range e.index.Names() {
		for _, rec := range e.index.ByName(name) {
			if rec.IsVirtual() && !ssc.specsMap.Has(name) {
				ssc.specsMap.Set(name, NewMatchSpec(name))
			}
			break
		}
	}

	noHistory := len(ssc.historyMap) == 0
	for _, rec := range ssc.prefixRecords {
		if noHistory || e.cfg.isAggressiveUpdate(rec.Name) || rec.Subdir() == "pypi" {
			ssc.specsMap.Set(rec.Name, NewMatchSpec(rec.Name))
		}
	}
}

func findRecordByName(recs []*PackageRecord, name string) (*PackageRecord, bool) {
	for _, r := range recs {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// removeSpecs is Phase 3 (§4.E).
func (e *SolveEngine) removeSpecs(ssc *SolverState) error {
	if len(e.specsToRemove) == 0 {
		return nil
	}

	featureNames := map[string]struct{}{}
	for _, spec := range e.specsToRemove {
		for f := range spec.TrackFeatures {
			featureNames[f] = struct{}{}
		}
	}

	graph := NewPrefixGraph(ssc.solutionPrecs)

	var allRemoved []*PackageRecord
	var unmatched []MatchSpec
	for _, spec := range e.specsToRemove {
		removed := graph.RemoveSpec(spec)
		if len(removed) > 0 {
			allRemoved = append(allRemoved, removed...)
		} else {
			unmatched = append(unmatched, spec)
		}
	}

	var stillUnmatched []MatchSpec
	for _, spec := range unmatched {
		matched := false
		for _, rec := range allRemoved {
			if spec.Match(rec) {
				matched = true
				break
			}
		}
		if !matched {
			stillUnmatched = append(stillUnmatched, spec)
		}
	}
	if len(stillUnmatched) > 0 {
		return &ErrPackagesNotFound{Specs: stillUnmatched}
	}

	for _, rec := range allRemoved {
		hasRemovedFeature := false
		for f := range rec.Features {
			if _, ok := featureNames[f]; ok {
				hasRemovedFeature = true
				break
			}
		}
		if _, inHistory := ssc.historyMap[rec.Name]; hasRemovedFeature && inHistory {
			spec, ok := ssc.specsMap.Get(rec.Name)
			if !ok {
				spec = NewMatchSpec(rec.Name)
			}
			spec.TrackFeatures = nil
			ssc.specsMap.Set(rec.Name, spec)
		} else {
			ssc.specsMap.Delete(rec.Name)
		}
	}

	ssc.solutionPrecs = graph.Records()
	return nil
}

// findInconsistentPackages is Phase 4 (§4.E).
func (e *SolveEngine) findInconsistentPackages(ssc *SolverState) {
	_, inconsistent := e.resolver.BadInstalled(ssc.solutionPrecs, nil)
	if len(inconsistent) > 0 {
		refreshed := make([]*PackageRecord, len(ssc.solutionPrecs))
		for i, r := range ssc.solutionPrecs {
			if matches := e.resolver.FindMatches(MatchSpec{Name: r.Name, Build: r.BuildString, Version: parseVersionMatcher("==" + r.Version)}); len(matches) > 0 {
				refreshed[i] = matches[0]
			} else {
				refreshed[i] = r
			}
		}
		ssc.solutionPrecs = refreshed
		_, inconsistent = e.resolver.BadInstalled(ssc.solutionPrecs, nil)
	}
	if len(inconsistent) == 0 {
		return
	}

	inconsistentSet := make(map[string]struct{}, len(inconsistent))
	for _, rec := range inconsistent {
		inconsistentSet[rec.Name] = struct{}{}
		spec, had := ssc.specsMap.Get(rec.Name)
		ssc.specsMap.Delete(rec.Name)
		var specPtr *MatchSpec
		if had {
			s := spec
			specPtr = &s
		}
		ssc.addBackMap[rec.Name] = addBackEntry{rec: rec, spec: specPtr}
		id := rec.Identity
		ssc.specsMap.Set(rec.Name, MatchSpec{Name: rec.Name, Target: &id})
		if rec.Name == "python" && had {
			ssc.specsMap.Set("python", spec)
		}
	}

	kept := ssc.solutionPrecs[:0:0]
	for _, r := range ssc.solutionPrecs {
		if _, gone := inconsistentSet[r.Name]; !gone {
			kept = append(kept, r)
		}
	}
	ssc.solutionPrecs = kept
}

// addSpecs is Phase 5, the policy layer (§4.E).
func (e *SolveEngine) addSpecs(ssc *SolverState) error {
	installedPool := map[string]*PackageRecord{}
	for _, r := range ssc.prefixRecords {
		installedPool[r.Name] = r
	}

	explicitPool := e.resolver.GetPackagePool(context.Background(), e.specsToAdd)

	installedAsSpecs := make([]MatchSpec, 0, len(ssc.prefixRecords))
	for _, r := range ssc.prefixRecords {
		installedAsSpecs = append(installedAsSpecs, ToMatchSpec(r))
	}
	conflictSpecs := map[string]struct{}{}
	for _, s := range e.resolver.GetConflictingSpecs(context.Background(), installedAsSpecs, e.specsToAdd) {
		conflictSpecs[s.Name] = struct{}{}
	}

	for _, name := range ssc.specsMap.Names() {
		spec, _ := ssc.specsMap.Get(name)
		matches := matchesInSolution(ssc.solutionPrecs, spec)
		if len(matches) == 0 {
			continue
		}
		if len(matches) > 1 {
			return &ErrInternalInvariantViolated{Details: "multiple records match spec slot for " + name}
		}
		target := matches[0]
		switch {
		case target.IsUnmanageable:
			ssc.specsMap.Set(name, ToMatchSpec(target))
		case e.cfg.isAggressiveUpdate(name):
			ssc.specsMap.Set(name, NewMatchSpec(name))
		case shouldFreeze(ssc, target, conflictSpecs, explicitPool, installedPool):
			ssc.specsMap.Set(name, ToMatchSpec(target))
		default:
			if hspec, ok := ssc.historyMap[name]; ok {
				id := target.Identity
				hspec.Target = &id
				ssc.specsMap.Set(name, hspec)
			} else {
				id := target.Identity
				ssc.specsMap.Set(name, MatchSpec{Name: name, Target: &id})
			}
		}
	}

	pinOverrides := map[string]struct{}{}
	for _, pinned := range ssc.pinnedSpecs {
		if _, inExplicit := explicitPool[pinned.Name]; !inExplicit {
			continue
		}
		_, requestedByUser := findSpecByName(e.specsToAdd, pinned.Name)
		if !requestedByUser && !ssc.ignorePinned {
			ssc.specsMap.Set(pinned.Name, MatchSpec{Name: pinned.Name, Version: pinned.Version, Build: pinned.Build, Optional: false})
			continue
		}
		pinnedMatches := e.resolver.GetPackagePool(context.Background(), []MatchSpec{pinned})[pinned.Name]
		overlap := false
		for r := range explicitPool[pinned.Name] {
			if _, ok := pinnedMatches[r]; ok {
				overlap = true
				break
			}
		}
		if overlap {
			ssc.specsMap.Set(pinned.Name, MatchSpec{Name: pinned.Name, Version: pinned.Version, Build: pinned.Build, Optional: false})
			pinOverrides[pinned.Name] = struct{}{}
		}
	}

	if ssc.updateModifier == UpdateModifierFreezeInstalled {
		for _, rec := range ssc.prefixRecords {
			if ssc.specsMap.Has(rec.Name) {
				continue
			}
			if _, conflict := conflictSpecs[rec.Name]; !conflict {
				ssc.specsMap.Set(rec.Name, ToMatchSpec(rec))
			} else {
				id := rec.Identity
				ssc.specsMap.Set(rec.Name, MatchSpec{Name: rec.Name, Target: &id, Optional: true})
			}
		}
	}

	if ssc.updateModifier == UpdateModifierUpdateAll {
		e.applyUpdateAll(ssc)
	} else if ssc.updateModifier == UpdateModifierUpdateSpecs {
		e.applyUpdateSpecs(ssc, pinOverrides)
	}

	e.applyPythonABIRule(ssc)

	if !e.cfg.Offline {
		for _, name := range e.cfg.AggressiveUpdatePackages {
			if ssc.specsMap.Has(name) {
				ssc.specsMap.Set(name, NewMatchSpec(name))
			}
		}
	}

	for _, s := range e.specsToAdd {
		if _, overridden := pinOverrides[s.Name]; overridden {
			continue
		}
		ssc.specsMap.Set(s.Name, s)
	}

	e.applyCondaSelfRule(ssc)

	return nil
}

func matchesInSolution(solution []*PackageRecord, spec MatchSpec) []*PackageRecord {
	var out []*PackageRecord
	for _, r := range solution {
		if spec.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func findSpecByName(specs []MatchSpec, name string) (MatchSpec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return MatchSpec{}, false
}

// shouldFreeze is the §4.E `should_freeze` predicate.
func shouldFreeze(ssc *SolverState, target *PackageRecord, conflictSpecs map[string]struct{}, explicitPool map[string]map[*PackageRecord]struct{}, installedPool map[string]*PackageRecord) bool {
	if len(ssc.historyMap) == 0 {
		return false
	}
	if ssc.updateModifier != UpdateModifierFreezeInstalled {
		return false
	}
	name := target.Name
	if _, conflict := conflictSpecs[name]; conflict {
		return false
	}
	pool, hasPool := explicitPool[name]
	if !hasPool {
		return true
	}
	_, inPool := pool[target]
	return inPool
}

func (e *SolveEngine) applyUpdateAll(ssc *SolverState) {
	newMap := newSpecMap()
	if len(ssc.historyMap) > 0 {
		for name := range ssc.historyMap {
			if _, isPinned := findSpecByName(ssc.pinnedSpecs, name); isPinned {
				if existing, ok := ssc.specsMap.Get(name); ok {
					newMap.Set(name, existing)
					continue
				}
			}
			newMap.Set(name, NewMatchSpec(name))
		}
		for _, rec := range ssc.prefixRecords {
			if rec.Subdir() == "pypi" {
				newMap.Set(rec.Name, NewMatchSpec(rec.Name))
			}
		}
	} else {
		for _, rec := range ssc.prefixRecords {
			if _, isPinned := findSpecByName(ssc.pinnedSpecs, rec.Name); isPinned {
				if existing, ok := ssc.specsMap.Get(rec.Name); ok {
					newMap.Set(rec.Name, existing)
					continue
				}
			}
			newMap.Set(rec.Name, NewMatchSpec(rec.Name))
		}
	}
	ssc.specsMap = newMap
}

func (e *SolveEngine) applyUpdateSpecs(ssc *SolverState, pinOverrides map[string]struct{}) {
	skip := func(s MatchSpec) bool {
		_, pinned := findSpecByName(ssc.pinnedSpecs, s.Name)
		_, overridden := pinOverrides[s.Name]
		_, inHistory := ssc.historyMap[s.Name]
		return (pinned && !overridden && !ssc.ignorePinned) || inHistory
	}

	installedPool := map[string]*PackageRecord{}
	for _, r := range ssc.prefixRecords {
		installedPool[r.Name] = r
	}

	var toAdd []MatchSpec
	for _, s := range e.specsToAdd {
		if skip(s) {
			continue
		}
		toAdd = append(toAdd, packageHasUpdates(e.resolver, s, installedPool))
	}

	conflicts := e.resolver.GetConflictingSpecs(context.Background(), ssc.specsMap.Values(), toAdd)
	for _, conflict := range conflicts {
		if _, inHistory := ssc.historyMap[conflict.Name]; inHistory {
			continue
		}
		_, pinned := findSpecByName(ssc.pinnedSpecs, conflict.Name)
		if pinned && !ssc.ignorePinned {
			continue
		}
		if ssc.specsMap.Has(conflict.Name) {
			ssc.specsMap.Set(conflict.Name, NewMatchSpec(conflict.Name))
		}
	}
}

func packageHasUpdates(r Resolver, spec MatchSpec, installedPool map[string]*PackageRecord) MatchSpec {
	installed, ok := installedPool[spec.Name]
	if !ok {
		return spec
	}
	for _, cand := range r.Groups(spec.Name) {
		if cand.ParsedVersion().Compare(installed.ParsedVersion()) > 0 ||
			(cand.ParsedVersion().Compare(installed.ParsedVersion()) == 0 && cand.BuildNumber > installed.BuildNumber) {
			return MatchSpec{Name: spec.Name, Version: parseVersionMatcher("==" + cand.Version)}
		}
	}
	return spec
}

// applyPythonABIRule: never update python beyond the current minor version
// unless requested explicitly (§4.E).
func (e *SolveEngine) applyPythonABIRule(ssc *SolverState) {
	pyInPrefix := false
	for _, r := range ssc.solutionPrecs {
		if r.Name == "python" {
			pyInPrefix = true
			break
		}
	}
	if !pyInPrefix {
		return
	}
	if _, requested := findSpecByName(e.specsToAdd, "python"); requested {
		return
	}
	pyPrefixRec, _ := findRecordByName(ssc.prefixRecords, "python")
	if pyPrefixRec == nil {
		return
	}

	freeze := ssc.updateModifier == UpdateModifierFreezeInstalled
	conflictSpecs := map[string]struct{}{}
	var installed []MatchSpec
	for _, r := range ssc.prefixRecords {
		installed = append(installed, ToMatchSpec(r))
	}
	for _, s := range e.resolver.GetConflictingSpecs(context.Background(), installed, e.specsToAdd) {
		conflictSpecs[s.Name] = struct{}{}
	}

	if _, conflict := conflictSpecs["python"]; !conflict && freeze {
		ssc.specsMap.Set("python", ToMatchSpec(pyPrefixRec))
		return
	}

	pySpec, ok := ssc.specsMap.Get("python")
	if !ok {
		pySpec = NewMatchSpec("python")
	}
	if pySpec.Version.empty() {
		pySpec.Version = versionMatcher{clauses: []versionClause{{wildcard: true, prefix: MajorMinor(pyPrefixRec.Version)}}}
	}
	ssc.specsMap.Set("python", pySpec)
}

// applyCondaSelfRule is the conda-self-version floor (§4.E, SPEC_FULL.md
// supplement 3).
func (e *SolveEngine) applyCondaSelfRule(ssc *SolverState) {
	if !ssc.specsMap.Has("conda") {
		return
	}
	if e.prefix != e.cfg.CurrentPrefix {
		return
	}
	installed, _ := findRecordByName(ssc.prefixRecords, "conda")
	if installed == nil {
		return
	}
	_, requested := findSpecByName(e.specsToAdd, "conda")
	if spec, ok := CondaSelfRule(e.prefix, e.cfg.CurrentPrefix, installed, requested, e.cfg.AutoUpdateSelf); ok {
		ssc.specsMap.Set("conda", spec)
	}
}

// runSAT is Phase 6: the conflict-relaxation loop plus the SAT call (§4.E).
func (e *SolveEngine) runSAT(ctx context.Context, ssc *SolverState) error {
	final := append([]MatchSpec(nil), ssc.specsMap.Values()...)
	final = append(final, ssc.trackFeaturesSpecs...)

	var absent []MatchSpec
	for _, s := range ssc.specsMap.Values() {
		if len(e.resolver.FindMatches(s)) == 0 {
			absent = append(absent, s)
		}
	}
	if len(absent) > 0 {
		return &ErrPackagesNotFound{Specs: absent}
	}

	conflicting := e.resolver.GetConflictingSpecs(ctx, final, e.specsToAdd)
	for len(conflicting) > 0 {
		specsMapSet := map[string]struct{}{}
		for _, s := range ssc.specsMap.Values() {
			specsMapSet[s.Name] = struct{}{}
		}

		var pinnedConflicts []MatchSpec
		for _, c := range conflicting {
			if _, isPinned := findSpecByName(ssc.pinnedSpecs, c.Name); isPinned {
				pinnedConflicts = append(pinnedConflicts, c)
			}
		}
		if len(pinnedConflicts) > 0 {
			userOrMap := map[string]MatchSpec{}
			for _, c := range conflicting {
				if _, inMap := specsMapSet[c.Name]; inMap {
					userOrMap[c.Name] = c
				}
			}
			for _, s := range e.specsToAdd {
				userOrMap[s.Name] = s
			}
			for _, p := range pinnedConflicts {
				delete(userOrMap, p.Name)
			}
			var userSpecs []MatchSpec
			for _, s := range userOrMap {
				userSpecs = append(userSpecs, s)
			}
			sort.Slice(userSpecs, func(i, j int) bool { return userSpecs[i].Name < userSpecs[j].Name })
			return &ErrSpecsConfigurationConflict{UserSpecs: userSpecs, PinnedSpecs: pinnedConflicts, Prefix: e.prefix}
		}

		specsModified := false
		for _, spec := range conflicting {
			if spec.Target != nil && !spec.Optional {
				specsModified = true
				final = removeSpec(final, spec)
				var neutered MatchSpec
				if !spec.Version.empty() {
					neutered = MatchSpec{Name: spec.Name, Version: spec.Version}
				} else {
					neutered = NewMatchSpec(spec.Name)
				}
				final = append(final, neutered)
				ssc.specsMap.Set(spec.Name, neutered)
			}
		}
		if !specsModified {
			break
		}
		conflicting = e.resolver.GetConflictingSpecs(ctx, final, e.specsToAdd)
	}

	var solution []*PackageRecord
	var err error
	if len(conflicting) == 0 || e.cfg.UnsatisfiableHints {
		solution, err = e.resolver.Solve(ctx, final, e.specsToAdd, ssc.historyMap, ssc.shouldRetrySolve)
		if err != nil {
			return err
		}
	} else {
		return &ErrUnsatisfiable{Specs: final}
	}
	ssc.solutionPrecs = solution

	e.neuteredSpecs = nil
	for _, name := range ssc.specsMap.Names() {
		v, _ := ssc.specsMap.Get(name)
		if h, ok := ssc.historyMap[name]; ok && v.LessStrict(h) {
			e.neuteredSpecs = append(e.neuteredSpecs, v)
		}
	}

	if len(ssc.addBackMap) > 0 {
		for name, entry := range ssc.addBackMap {
			if entry.spec == nil {
				ssc.removeFromSolution(func(r *PackageRecord) bool { return r.Name == name })
				ssc.solutionPrecs = append(ssc.solutionPrecs, entry.rec)
			}
		}
	}

	ssc.finalEnvironmentSpecs = final
	return nil
}

func removeSpec(specs []MatchSpec, target MatchSpec) []MatchSpec {
	out := specs[:0:0]
	removed := false
	for _, s := range specs {
		if !removed && s.Name == target.Name && s.String() == target.String() {
			removed = true
			continue
		}
		out = append(out, s)
	}
	return out
}

// postSatHandling is Phase 7 (§4.E).
func (e *SolveEngine) postSatHandling(ctx context.Context, ssc *SolverState) error {
	switch {
	case ssc.depsModifier == DepsModifierNoDeps:
		e.applyNoDeps(ssc)

	case ssc.depsModifier == DepsModifierOnlyDeps && ssc.updateModifier != UpdateModifierUpdateDeps:
		e.applyOnlyDeps(ssc)

	case ssc.updateModifier == UpdateModifierUpdateDeps:
		if err := e.applyUpdateDeps(ctx, ssc); err != nil {
			return err
		}
		return nil // the recursive call already finished post-sat handling and pruning
	}

	if ssc.prune {
		var roots []string
		for _, s := range ssc.finalEnvironmentSpecs {
			roots = append(roots, s.Name)
		}
		g := NewPrefixGraph(ssc.solutionPrecs)
		g.Prune(roots)
		ssc.solutionPrecs = g.Records()
	}
	return nil
}

func (e *SolveEngine) applyNoDeps(ssc *SolverState) {
	noDepsSolution := append([]*PackageRecord(nil), ssc.prefixRecords...)
	var onlyRemove []*PackageRecord
	for _, spec := range e.specsToRemove {
		for _, rec := range noDepsSolution {
			if spec.Match(rec) {
				onlyRemove = append(onlyRemove, rec)
			}
		}
	}
	noDepsSolution = subtractRecords(noDepsSolution, onlyRemove)

	var onlyAdd []*PackageRecord
	for _, spec := range e.specsToAdd {
		for _, rec := range ssc.solutionPrecs {
			if spec.Match(rec) {
				onlyAdd = append(onlyAdd, rec)
			}
		}
	}
	removeBeforeAddingBack := map[string]struct{}{}
	for _, r := range onlyAdd {
		removeBeforeAddingBack[r.Name] = struct{}{}
	}
	filtered := noDepsSolution[:0:0]
	for _, r := range noDepsSolution {
		if _, drop := removeBeforeAddingBack[r.Name]; !drop {
			filtered = append(filtered, r)
		}
	}
	ssc.solutionPrecs = append(filtered, onlyAdd...)
}

func subtractRecords(a, b []*PackageRecord) []*PackageRecord {
	remove := map[Identity]struct{}{}
	for _, r := range b {
		remove[r.Identity] = struct{}{}
	}
	out := a[:0:0]
	for _, r := range a {
		if _, gone := remove[r.Identity]; !gone {
			out = append(out, r)
		}
	}
	return out
}

func (e *SolveEngine) applyOnlyDeps(ssc *SolverState) {
	graph := NewPrefixGraph(ssc.solutionPrecs)
	removedNodes := graph.RemoveYoungestDescendantNodesWithSpecs(e.specsToAdd)

	newSpecsToAdd := append([]MatchSpec(nil), e.specsToAdd...)
	for _, prec := range removedNodes {
		for _, dep := range prec.Depends {
			ds, err := ParseMatchSpec(dep)
			if err != nil {
				continue
			}
			if !ssc.specsMap.Has(ds.Name) {
				newSpecsToAdd = append(newSpecsToAdd, ds)
			}
		}
	}
	e.specsToAdd = newSpecsToAdd

	removeNames := map[string]struct{}{}
	for _, s := range e.specsToRemove {
		removeNames[s.Name] = struct{}{}
	}
	var addBack []*PackageRecord
	for _, node := range removedNodes {
		if _, removing := removeNames[node.Name]; removing {
			continue
		}
		if rec, ok := findRecordByName(ssc.prefixRecords, node.Name); ok {
			addBack = append(addBack, rec)
		}
	}

	combined := append(graph.Records(), addBack...)
	ssc.solutionPrecs = NewPrefixGraph(combined).Records()
}

func (e *SolveEngine) applyUpdateDeps(ctx context.Context, ssc *SolverState) error {
	graph := NewPrefixGraph(ssc.solutionPrecs)
	updateNames := map[string]struct{}{}
	for _, spec := range e.specsToAdd {
		for _, ancestor := range graph.AllAncestors(spec.Name) {
			updateNames[ancestor.Name] = struct{}{}
		}
	}

	newSpecsMap := newSpecMap()
	for name := range updateNames {
		newSpecsMap.Set(name, NewMatchSpec(name))
	}
	for _, p := range ssc.pinnedSpecs {
		newSpecsMap.Delete(p.Name)
	}
	if newSpecsMap.Has("python") {
		if pyRec, ok := findRecordByName(ssc.prefixRecords, "python"); ok {
			newSpecsMap.Set("python", MatchSpec{Name: "python", Version: versionMatcher{clauses: []versionClause{{wildcard: true, prefix: MajorMinor(pyRec.Version)}}}})
		}
	}
	for _, s := range e.specsToAdd {
		newSpecsMap.Set(s.Name, s)
	}

	newSpecsToAdd := newSpecsMap.Values()

	child := NewSolveEngine(e.cfg, EngineInputs{
		Prefix:        e.prefix,
		Index:         e.index,
		Resolver:      e.resolver,
		PrefixRecords: e.prefixRecords,
		HistoryMap:    e.historyMap,
		PinnedSpecs:   e.pinnedSpecs,
		SpecsToAdd:    newSpecsToAdd,
		SpecsToRemove: e.specsToRemove,
		Command:       e.command,
	})
	solution, err := child.SolveFinalState(ctx, UpdateModifierUpdateSpecs, ssc.depsModifier, false, ssc.ignorePinned, ssc.forceRemove, ssc.shouldRetrySolve)
	if err != nil {
		return errors.Wrap(err, "solver: UPDATE_DEPS re-solve")
	}
	ssc.solutionPrecs = solution
	e.neuteredSpecs = child.neuteredSpecs
	e.diagnostics = append(e.diagnostics, child.diagnostics...)
	return nil
}

// Subdir is defined on PackageRecord here (rather than record.go) because
// it exists purely to keep the Phase 2 "foreign install marker" check
// (rec.Subdir == "pypi") readable without exposing the raw field name as
// part of the exported surface prematurely.
func (r *PackageRecord) Subdir() string { return r.Identity.Subdir }

func (c *Config) stickyNames() []string {
	if c == nil {
		return DefaultStickyPackageNames
	}
	if len(c.StickyPackageNames) == 0 {
		return DefaultStickyPackageNames
	}
	return c.StickyPackageNames
}
