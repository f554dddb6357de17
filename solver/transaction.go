package solver

// TransactionDiff computes the unlink/link plan between a previous and a
// final prefix state (§4.F). PrefixSetup bundles it with enough context for
// a caller to execute the plan.
type TransactionDiff struct {
	Unlink []*PackageRecord // reverse topological order of previous
	Link   []*PackageRecord // topological order of final
}

// PrefixSetup is solve_for_transaction's output bundle (§6).
type PrefixSetup struct {
	Prefix         string
	UnlinkPrecs    []*PackageRecord
	LinkPrecs      []*PackageRecord
	SpecsToRemove  []MatchSpec
	SpecsToAdd     []MatchSpec
	NeuteredSpecs  []MatchSpec
}

// DiffForUnlinkLink computes the TransactionDiff between previous and
// final, applying the force-reinstall and Python-ABI-aware adjustments
// from §4.F.
func DiffForUnlinkLink(previous, final []*PackageRecord, specsToAdd []MatchSpec, forceReinstall bool) (*TransactionDiff, error) {
	prevGraph := NewPrefixGraph(previous)
	finalGraph := NewPrefixGraph(final)
	prevOrdered := prevGraph.Records()
	finalOrdered := finalGraph.Records()

	prevByIdentity := make(map[Identity]*PackageRecord, len(prevOrdered))
	for _, r := range prevOrdered {
		prevByIdentity[r.Identity] = r
	}
	finalByIdentity := make(map[Identity]*PackageRecord, len(finalOrdered))
	for _, r := range finalOrdered {
		finalByIdentity[r.Identity] = r
	}

	unlinkSet := make(map[Identity]struct{})
	var unlink []*PackageRecord
	for i := len(prevOrdered) - 1; i >= 0; i-- {
		r := prevOrdered[i]
		if _, inFinal := finalByIdentity[r.Identity]; !inFinal {
			unlinkSet[r.Identity] = struct{}{}
			unlink = append(unlink, r)
		}
	}

	linkSet := make(map[Identity]struct{})
	var link []*PackageRecord
	for _, r := range finalOrdered {
		if _, inPrev := prevByIdentity[r.Identity]; !inPrev {
			linkSet[r.Identity] = struct{}{}
			link = append(link, r)
		}
	}

	// force_reinstall: strictly the named specs_to_add entries (DESIGN.md
	// Open Question 2), not their dependency closure.
	if forceReinstall {
		for _, spec := range specsToAdd {
			rec, ok := findOne(finalOrdered, spec)
			if !ok {
				continue
			}
			if _, already := linkSet[rec.Identity]; !already {
				link = append(link, rec)
				linkSet[rec.Identity] = struct{}{}
			}
			if prevRec, ok := prevByIdentity[rec.Identity]; ok {
				if _, already := unlinkSet[prevRec.Identity]; !already {
					unlink = append(unlink, prevRec)
					unlinkSet[prevRec.Identity] = struct{}{}
				}
			}
		}
	}

	// noarch(python) relink: if both sides carry a python record and their
	// major.minor differ, every final noarch=python record must be relinked.
	prevPy := findByName(prevOrdered, "python")
	finalPy := findByName(finalOrdered, "python")
	if prevPy != nil && finalPy != nil && MajorMinor(prevPy.Version) != MajorMinor(finalPy.Version) {
		for _, r := range finalOrdered {
			if r.Noarch != NoarchPython {
				continue
			}
			if _, already := linkSet[r.Identity]; !already {
				link = append(link, r)
				linkSet[r.Identity] = struct{}{}
			}
			if prevRec, ok := prevByIdentity[r.Identity]; ok {
				if _, already := unlinkSet[prevRec.Identity]; !already {
					unlink = append(unlink, prevRec)
					unlinkSet[prevRec.Identity] = struct{}{}
				}
			}
		}
	}

	var unmanageable []*PackageRecord
	for _, r := range unlink {
		if r.IsUnmanageable {
			unmanageable = append(unmanageable, r)
		}
	}
	if len(unmanageable) > 0 {
		return nil, &ErrCannotUnlinkUnmanageable{Records: unmanageable}
	}

	return &TransactionDiff{Unlink: unlink, Link: link}, nil
}

func findOne(recs []*PackageRecord, spec MatchSpec) (*PackageRecord, bool) {
	for _, r := range recs {
		if spec.Match(r) {
			return r, true
		}
	}
	return nil, false
}

func findByName(recs []*PackageRecord, name string) *PackageRecord {
	for _, r := range recs {
		if r.Name == name {
			return r
		}
	}
	return nil
}
