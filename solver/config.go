package solver

import (
	"io"
	"log"
)

// UpdateModifier directs how updates are handled regarding packages already
// existing in the environment (§6).
type UpdateModifier uint8

const (
	UpdateModifierNone UpdateModifier = iota
	UpdateModifierSpecsSatisfiedSkipSolve
	UpdateModifierFreezeInstalled
	UpdateModifierUpdateSpecs
	UpdateModifierUpdateAll
	UpdateModifierUpdateDeps
)

// DepsModifier indicates special solver handling for dependencies (§6).
type DepsModifier uint8

const (
	DepsModifierNotSet DepsModifier = iota
	DepsModifierNoDeps
	DepsModifierOnlyDeps
	DepsModifierUpdateDeps
	DepsModifierUpdateDepsOnlyDeps
	DepsModifierFreezeInstalled
)

// Command identifies the caller's high-level intent (install, update,
// remove, create, ...), used only for diagnostics (§6).
type Command string

// Config is the immutable, process-global-free configuration passed into
// NewSolveEngine (§9: "pass an immutable configuration struct into
// SolveEngine::new; do not read process-wide state inside the engine").
type Config struct {
	// StickyPackageNames are always seeded into specs_map when present in
	// the prefix, regardless of history (§4.E Phase 2).
	StickyPackageNames []string

	// AggressiveUpdatePackages are floated to a bare MatchSpec(name), with
	// any target stripped, in Phase 2 and in Phase 5's per-spec policy pass
	// whether or not Offline is set; Offline disables only the second
	// stripping pass that runs after the update modifiers (§4.E Phase 2/5,
	// SPEC_FULL.md supplement 4).
	AggressiveUpdatePackages []string

	// RootPrefix and EnablePrivateEnvs gate the multi-prefix transaction
	// path, which this core does not implement (§6, DESIGN.md Open
	// Question 3).
	RootPrefix       string
	EnablePrivateEnvs bool

	// CurrentPrefix, when equal to the prefix being solved, triggers the
	// conda-self-version rule (§4.E).
	CurrentPrefix string
	AutoUpdateSelf bool

	// Offline disables the aggressive-update target-stripping pass
	// (SPEC_FULL.md supplement 4).
	Offline bool

	// UnsatisfiableHints controls what happens when conflicts remain after
	// the Phase 6 relaxation loop: when set, the engine still calls the
	// resolver's Solve, whose failure carries a conflict chain; when unset,
	// it returns a bare ErrUnsatisfiable at once. The resolver's
	// FindConflicts is not called in either case (mirrors
	// context.unsatisfiable_hints).
	UnsatisfiableHints bool

	Logger *log.Logger
}

func (c *Config) logger() *log.Logger {
	if c == nil || c.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return c.Logger
}

func (c *Config) isAggressiveUpdate(name string) bool {
	if c == nil {
		return false
	}
	for _, n := range c.AggressiveUpdatePackages {
		if n == name {
			return true
		}
	}
	return false
}

// DefaultStickyPackageNames mirrors solve.py's hardcoded list of packages
// kept even without history, to compensate for older installers not
// recording them (§4.E Phase 2).
var DefaultStickyPackageNames = []string{
	"anaconda", "conda", "conda-build", "python.app",
	"console_shortcut", "powershell_shortcut",
}
