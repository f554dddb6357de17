package solver

import (
	"fmt"
	"strings"
)

// ErrPackagesNotFound: no candidate record in the index matches a required
// spec (§7).
type ErrPackagesNotFound struct {
	Specs []MatchSpec
}

func (e *ErrPackagesNotFound) Error() string {
	names := make([]string, len(e.Specs))
	for i, s := range e.Specs {
		names[i] = s.String()
	}
	return fmt.Sprintf("packages not found: %s", strings.Join(names, ", "))
}

// ConflictEdge records one edge of an unsatisfiability chain: a dependent
// whose dependency expression conflicts with the rest of the assembly.
type ConflictEdge struct {
	Dependent string
	DependsOn MatchSpec
}

// ErrUnsatisfiable: the resolver rejected the final assembly, carrying
// every spec that participated and, where available, the conflicting
// dependency edges (§7).
type ErrUnsatisfiable struct {
	Specs []MatchSpec
	Chain []ConflictEdge
}

func (e *ErrUnsatisfiable) Error() string {
	if len(e.Chain) == 0 {
		return "unsatisfiable: no solution found"
	}
	var b strings.Builder
	b.WriteString("unsatisfiable:\n")
	for _, c := range e.Chain {
		fmt.Fprintf(&b, "  %s requires %s\n", c.Dependent, c.DependsOn.String())
	}
	return b.String()
}

// ErrRawStrUnsatisfiable is the fallback for a resolver backend that cannot
// produce a structured conflict chain (§7).
type ErrRawStrUnsatisfiable struct {
	Message string
}

func (e *ErrRawStrUnsatisfiable) Error() string { return e.Message }

// ErrSpecsConfigurationConflict: pinned specs conflict with explicit asks
// (§7).
type ErrSpecsConfigurationConflict struct {
	UserSpecs   []MatchSpec
	PinnedSpecs []MatchSpec
	Prefix      string
}

func (e *ErrSpecsConfigurationConflict) Error() string {
	us := make([]string, len(e.UserSpecs))
	for i, s := range e.UserSpecs {
		us[i] = s.String()
	}
	ps := make([]string, len(e.PinnedSpecs))
	for i, s := range e.PinnedSpecs {
		ps[i] = s.String()
	}
	return fmt.Sprintf("pinned specs conflict with requested specs in %s: requested=[%s] pinned=[%s]",
		e.Prefix, strings.Join(us, ", "), strings.Join(ps, ", "))
}

// ErrCannotUnlinkUnmanageable: a required unlink targets a record installed
// outside the package manager (§7).
type ErrCannotUnlinkUnmanageable struct {
	Records []*PackageRecord
}

func (e *ErrCannotUnlinkUnmanageable) Error() string {
	ids := make([]string, len(e.Records))
	for i, r := range e.Records {
		ids[i] = r.RecordID()
	}
	return fmt.Sprintf("cannot unlink unmanageable packages: %s", strings.Join(ids, ", "))
}

// ErrInternalInvariantViolated: two records match a single spec slot, a
// name appears twice in solution_precs, etc (§7).
type ErrInternalInvariantViolated struct {
	Details string
}

func (e *ErrInternalInvariantViolated) Error() string {
	return "internal invariant violated: " + e.Details
}

// ErrNotImplemented: a feature this core deliberately does not support
// (simultaneous force-remove plus adds, multi-prefix transactions) (§7).
type ErrNotImplemented struct {
	Feature string
}

func (e *ErrNotImplemented) Error() string {
	return "not implemented: " + e.Feature
}
