package solver

// addBackEntry is one member of add_back_map: a record temporarily removed
// as inconsistent, paired with the spec it originally satisfied (nil if it
// had none) (§3).
type addBackEntry struct {
	rec  *PackageRecord
	spec *MatchSpec
}

// SolverState is the mutable bag of per-solve working state (§4.C). Apart
// from the two small solution-list helpers below, it has no behavior beyond
// holding fields — every other operation on it lives in engine.go, per §9's "explicit struct owned by the SolveEngine for one
// solve call; fields accessed directly, no attribute-based dispatch."
type SolverState struct {
	specsMap *specMap

	solutionPrecs []*PackageRecord

	addBackMap map[string]addBackEntry

	finalEnvironmentSpecs []MatchSpec
	trackFeaturesSpecs    []MatchSpec

	// Inputs snapshot.
	prefixRecords    []*PackageRecord
	historyMap       map[string]MatchSpec
	pinnedSpecs      []MatchSpec
	updateModifier   UpdateModifier
	depsModifier     DepsModifier
	prune            bool
	ignorePinned     bool
	forceRemove      bool
	shouldRetrySolve bool

	index    *Index
	resolver Resolver
}

func newSolverState(prefixRecords []*PackageRecord, historyMap map[string]MatchSpec, pinnedSpecs []MatchSpec) *SolverState {
	return &SolverState{
		specsMap:      newSpecMap(),
		solutionPrecs: append([]*PackageRecord(nil), prefixRecords...),
		addBackMap:    make(map[string]addBackEntry),
		prefixRecords: prefixRecords,
		historyMap:    historyMap,
		pinnedSpecs:   pinnedSpecs,
	}
}

func (s *SolverState) solutionByName(name string) (*PackageRecord, bool) {
	for _, r := range s.solutionPrecs {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

func (s *SolverState) removeFromSolution(pred func(*PackageRecord) bool) {
	kept := s.solutionPrecs[:0:0]
	for _, r := range s.solutionPrecs {
		if !pred(r) {
			kept = append(kept, r)
		}
	}
	s.solutionPrecs = kept
}
