package solver

import "context"

// Resolver is the SAT façade (§4.D). It is external to the core's
// orchestration logic but its contract is load-bearing: the engine depends
// only on this interface, never on a concrete SAT/backtracking
// implementation, per §9's "define the resolver as a trait/interface; the
// SAT engine is replaceable without touching the orchestration."
//
// Calls to Solve must be deterministic for identical inputs (§5).
type Resolver interface {
	// Groups returns every candidate record for name, sorted by channel
	// priority, then version desc, then build number desc.
	Groups(name string) []*PackageRecord

	// FindMatches returns every candidate matching spec.
	FindMatches(spec MatchSpec) []*PackageRecord

	// GetPackagePool returns the transitive closure of candidates reachable
	// from specs, keyed by name.
	GetPackagePool(ctx context.Context, specs []MatchSpec) map[string]map[*PackageRecord]struct{}

	// BadInstalled detects records among records whose declared
	// dependencies cannot be satisfied by other records in the same set,
	// returning (consistent, inconsistent).
	BadInstalled(records []*PackageRecord, specs []MatchSpec) (ok []*PackageRecord, bad []*PackageRecord)

	// GetConflictingSpecs returns a minimal-ish unsatisfiable subset of
	// allSpecs given specsToAdd, or empty when satisfiable.
	GetConflictingSpecs(ctx context.Context, allSpecs []MatchSpec, specsToAdd []MatchSpec) []MatchSpec

	// Solve is the SAT call. It fails with ErrUnsatisfiable carrying a
	// conflict chain.
	Solve(ctx context.Context, finalSpecs, specsToAdd []MatchSpec, historySpecs map[string]MatchSpec, shouldRetry bool) ([]*PackageRecord, error)

	// FindConflicts fails with a user-facing unsatisfiability report; it is
	// invoked only when the caller wants a richer error than Solve's.
	FindConflicts(ctx context.Context, specs []MatchSpec) error
}
