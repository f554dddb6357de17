package solver

import (
	"bufio"
	"io"
	"sort"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// LoadPinnedSpecs parses conda-meta/pinned: one spec per non-comment line,
// UTF-8, '#' starts a comment (§4.G, §6). Every returned spec has
// Optional=true by construction, matching PinnedSpecs's definition in §3.
func LoadPinnedSpecs(r io.Reader) ([]MatchSpec, error) {
	var out []MatchSpec
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		spec, err := ParseMatchSpec(line)
		if err != nil {
			return nil, errors.Wrap(err, "solver: parsing conda-meta/pinned")
		}
		spec.Optional = true
		out = append(out, spec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "solver: reading conda-meta/pinned")
	}
	return out, nil
}

// PolicyConfig is the richer, supplemented policy that the original kept as
// process-global context: aggressive-update packages, sticky package
// names, and the track_features configuration that seeds
// track_features_specs (SPEC_FULL.md DOMAIN STACK). Unlike conda-meta/pinned
// (plain text, §4.G), this is a TOML document, parsed the same way
// golang-dep's toml.go parses Gopkg.toml.
type PolicyConfig struct {
	AggressiveUpdatePackages []string
	StickyPackageNames       []string
	TrackFeatures            []string
	AutoUpdateConda          bool
	Offline                  bool
}

// LoadPolicyConfig parses a policy.toml document of the form:
//
//	auto_update_conda = true
//	offline = false
//	aggressive_update_packages = ["ca-certificates", "certifi", "openssl"]
//	sticky_package_names = ["conda", "conda-build"]
//	track_features = ["mkl", "nomkl"]
func LoadPolicyConfig(data []byte) (*PolicyConfig, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "solver: parsing policy.toml")
	}
	cfg := &PolicyConfig{
		AggressiveUpdatePackages: toStringSlice(tree.GetDefault("aggressive_update_packages", nil)),
		StickyPackageNames:       toStringSlice(tree.GetDefault("sticky_package_names", nil)),
		TrackFeatures:            toStringSlice(tree.GetDefault("track_features", nil)),
	}
	if b, ok := tree.GetDefault("auto_update_conda", false).(bool); ok {
		cfg.AutoUpdateConda = b
	}
	if b, ok := tree.GetDefault("offline", false).(bool); ok {
		cfg.Offline = b
	}
	return cfg, nil
}

func toStringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// TrackFeaturesSpecs synthesizes specs from configured track_features, for
// SolverState.trackFeaturesSpecs (§3).
func (c *PolicyConfig) TrackFeaturesSpecs() []MatchSpec {
	specs := make([]MatchSpec, 0, len(c.TrackFeatures))
	for _, f := range c.TrackFeatures {
		specs = append(specs, MatchSpec{TrackFeatures: map[string]struct{}{f: {}}})
	}
	return specs
}

// CondaSelfRule implements the conda-self-version floor (§4.E, SPEC_FULL.md
// supplement 3): if prefix is the one running the solver, ensure the conda
// spec requires at least the currently-installed version, unless
// AutoUpdate is configured and conda was not explicitly requested, in which
// case the floor is dropped so conda can float upward freely.
func CondaSelfRule(prefix, currentPrefix string, installed *PackageRecord, requestedExplicitly, autoUpdate bool) (MatchSpec, bool) {
	if installed == nil || prefix != currentPrefix {
		return MatchSpec{}, false
	}
	if autoUpdate && !requestedExplicitly {
		return MatchSpec{Name: "conda"}, true
	}
	return MatchSpec{
		Name:    "conda",
		Version: versionMatcher{clauses: []versionClause{{op: ">=", v: installed.version}}},
	}, true
}

// ConstrainingDependent is one entry of the diagnostic produced by
// ConstrainingDependents (SPEC_FULL.md supplement 1).
type ConstrainingDependent struct {
	Package    string
	Constraint MatchSpec
}

// ConstrainingDependents reports, for spec's package name, every dependent
// in solutionPrecs that hard-constrains it (an exact pin or a "<" bound) at
// or below the highest version of that package present in the solution —
// the Go rendering of solve.py's determine_constricting_specs
// (SPEC_FULL.md supplement 1). The core does not print this; callers
// render it.
func ConstrainingDependents(spec MatchSpec, solutionPrecs []*PackageRecord) []ConstrainingDependent {
	var highest *Version
	for _, p := range solutionPrecs {
		if p.Name != spec.Name {
			continue
		}
		v := p.ParsedVersion()
		if highest == nil || v.Compare(*highest) > 0 {
			highest = &v
		}
	}
	if highest == nil {
		return nil
	}

	var out []ConstrainingDependent
	for _, prec := range solutionPrecs {
		for _, dep := range prec.Depends {
			ds, err := ParseMatchSpec(dep)
			if err != nil || ds.Name != spec.Name {
				continue
			}
			if !isHardConstraint(ds) {
				continue
			}
			for _, c := range ds.Version.clauses {
				if c.wildcard {
					continue
				}
				if c.v.Compare(*highest) <= 0 {
					out = append(out, ConstrainingDependent{Package: prec.Name, Constraint: ds})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Package < out[j].Package })
	return out
}

func isHardConstraint(s MatchSpec) bool {
	for _, c := range s.Version.clauses {
		if c.wildcard {
			continue
		}
		if c.op == "==" || c.op == "=" || c.op == "" || c.op == "<" || c.op == "<=" {
			return true
		}
	}
	return false
}

// requestedPackageSnapshot captures, for one requested name, the
// (name, version) pairs present in a solution and in a specs map — the Go
// analogue of get_request_package_in_solution (SPEC_FULL.md supplement 2).
func requestedPackageSnapshot(name string, solutionPrecs []*PackageRecord, specs *specMap) [][2]string {
	var out [][2]string
	for _, p := range solutionPrecs {
		if p.Name == name {
			out = append(out, [2]string{p.Name, p.Version})
		}
	}
	if s, ok := specs.Get(name); ok && !s.Version.empty() {
		out = append(out, [2]string{name, s.Version.String()})
	}
	return out
}

// constrainedPackages implements get_constrained_packages (SPEC_FULL.md
// supplement 2): specs whose pre/post solve snapshots are identical even
// though a newer candidate exists in the index, meaning the package is
// constrained rather than simply unrequested-for-update.
func constrainedPackages(specsToAdd []MatchSpec, pre, post map[string][][2]string, idx *Index) []MatchSpec {
	var out []MatchSpec
	for _, spec := range specsToAdd {
		if len(spec.Name) > 1 && spec.Name[0] == '_' && spec.Name[1] == '_' {
			continue
		}
		preSnap, ok := pre[spec.Name]
		if !ok || len(preSnap) == 0 {
			continue
		}
		var current Version
		for i, p := range preSnap {
			v := ParseVersion(p[1])
			if i == 0 || v.Compare(current) > 0 {
				current = v
			}
		}
		var latest Version
		found := false
		for _, rec := range idx.ByName(spec.Name) {
			v := rec.ParsedVersion()
			if !found || v.Compare(latest) > 0 {
				latest = v
				found = true
			}
		}
		if !found || current.Compare(latest) == 0 {
			continue
		}
		if samePairs(pre[spec.Name], post[spec.Name]) {
			out = append(out, spec)
		}
	}
	return out
}

func samePairs(a, b [][2]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
