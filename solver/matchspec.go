package solver

import (
	"fmt"
	"strings"
)

// versionClause is one comma-separated term of a MatchSpec's version
// matcher: an operator plus the version it compares against, or a wildcard
// pin (e.g. "3.9.*").
type versionClause struct {
	op       string // "=", "==", ">=", ">", "<=", "<", "!=", ""
	wildcard bool
	prefix   string // for wildcard clauses, the dotted prefix before ".*"
	v        Version
}

func (c versionClause) matches(v Version) bool {
	if c.wildcard {
		return strings.HasPrefix(v.raw, c.prefix)
	}
	cmp := v.Compare(c.v)
	switch c.op {
	case "", "=", "==":
		return cmp == 0
	case ">=":
		return cmp >= 0
	case ">":
		return cmp > 0
	case "<=":
		return cmp <= 0
	case "<":
		return cmp < 0
	case "!=":
		return cmp != 0
	default:
		return false
	}
}

func (c versionClause) String() string {
	if c.wildcard {
		return c.prefix + ".*"
	}
	return c.op + c.v.raw
}

// versionMatcher is the conjunction (comma-separated AND) of clauses that
// make up a MatchSpec's version component.
type versionMatcher struct {
	clauses []versionClause
	// exact is set when the matcher is a single bare, "=" or "==" clause, which is
	// the strictest possible version constraint (used by strictness and by
	// ToMatchSpec pinning).
	exact bool
}

func parseVersionMatcher(s string) versionMatcher {
	if s == "" {
		return versionMatcher{}
	}
	parts := strings.Split(s, ",")
	m := versionMatcher{clauses: make([]versionClause, 0, len(parts))}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, ".*") {
			m.clauses = append(m.clauses, versionClause{wildcard: true, prefix: strings.TrimSuffix(p, ".*")})
			continue
		}
		op, rest := splitOp(p)
		m.clauses = append(m.clauses, versionClause{op: op, v: ParseVersion(rest)})
	}
	m.exact = len(m.clauses) == 1 && !m.clauses[0].wildcard &&
		(m.clauses[0].op == "" || m.clauses[0].op == "=" || m.clauses[0].op == "==")
	return m
}

func splitOp(s string) (op, rest string) {
	for _, candidate := range []string{">=", "<=", "!=", "==", ">", "<", "="} {
		if strings.HasPrefix(s, candidate) {
			return candidate, strings.TrimSpace(s[len(candidate):])
		}
	}
	return "", s
}

func (m versionMatcher) matches(v Version) bool {
	for _, c := range m.clauses {
		if !c.matches(v) {
			return false
		}
	}
	return true
}

func (m versionMatcher) String() string {
	parts := make([]string, len(m.clauses))
	for i, c := range m.clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

func (m versionMatcher) empty() bool { return len(m.clauses) == 0 }

// MatchSpec is a constraint expression matching zero or more PackageRecords
// (spec.md §4.A). The zero value matches everything for an unset field.
type MatchSpec struct {
	Name          string
	Version       versionMatcher
	Build         string
	Channel       string
	Features      map[string]struct{}
	TrackFeatures map[string]struct{}

	// Target is a hint pointing at an existing record this spec should
	// prefer. Optional governs whether that preference is a soft "prefer if
	// feasible" (Optional=false) or a hard "freeze unless necessary"
	// (Optional=true), per spec.md §3 invariant 4.
	Target   *Identity
	Optional bool
}

// NewMatchSpec returns the bare-name spec MatchSpec(name) — the weakest
// possible constraint on a package, matching any build/version/channel.
func NewMatchSpec(name string) MatchSpec { return MatchSpec{Name: name} }

// ParseMatchSpec parses conda's compact textual spec form:
// "[channel::]name[ version][ build]". Only the subset the engine actually
// needs to round-trip is supported: "name", "name version", "name
// version build", and "channel::name version".
func ParseMatchSpec(s string) (MatchSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MatchSpec{}, fmt.Errorf("solver: empty match spec")
	}
	var ms MatchSpec
	if i := strings.Index(s, "::"); i >= 0 {
		ms.Channel = s[:i]
		s = s[i+2:]
	}
	fields := strings.Fields(s)
	ms.Name = fields[0]
	if len(fields) > 1 {
		ms.Version = parseVersionMatcher(fields[1])
	}
	if len(fields) > 2 {
		ms.Build = fields[2]
	}
	return ms, nil
}

// Match applies every present component of the spec to rec, per §4.A.
func (s MatchSpec) Match(rec *PackageRecord) bool {
	if rec == nil {
		return false
	}
	if s.Name != "" && s.Name != rec.Name {
		return false
	}
	if !s.Version.empty() && !s.Version.matches(rec.version) {
		return false
	}
	if s.Build != "" && s.Build != rec.BuildString {
		return false
	}
	if s.Channel != "" && s.Channel != rec.Channel {
		return false
	}
	if !subsetOf(s.Features, rec.Features) {
		return false
	}
	if !subsetOf(s.TrackFeatures, rec.TrackFeatures) {
		return false
	}
	return true
}

func subsetOf(need, have map[string]struct{}) bool {
	for k := range need {
		if _, ok := have[k]; !ok {
			return false
		}
	}
	return true
}

// strictness ranks specs by how many components constrain a match: more
// present components is stricter, per §4.A. It is comparable with <.
func (s MatchSpec) strictness() int {
	n := 0
	if s.Name != "" {
		n++
	}
	if !s.Version.empty() {
		n++
		if s.Version.exact {
			n++
		}
	}
	if s.Build != "" {
		n++
	}
	if s.Channel != "" {
		n++
	}
	if len(s.Features) > 0 {
		n++
	}
	if len(s.TrackFeatures) > 0 {
		n++
	}
	if s.Target != nil {
		n++
	}
	return n
}

// Strictness exposes strictness for callers outside the package.
func (s MatchSpec) Strictness() int { return s.strictness() }

// LessStrict reports whether s is weaker than o — used to compute
// neutered_specs (§4.E Phase 6: "specs in specs_map whose strictness is
// less than the corresponding history entry").
func (s MatchSpec) LessStrict(o MatchSpec) bool { return s.strictness() < o.strictness() }

// ToMatchSpec returns the strictest possible spec pinning every exact
// identity component of rec (§4.A).
func ToMatchSpec(rec *PackageRecord) MatchSpec {
	return MatchSpec{
		Name:    rec.Name,
		Version: versionMatcher{clauses: []versionClause{{op: "==", v: rec.version}}, exact: true},
		Build:   rec.BuildString,
		Channel: rec.Channel,
	}
}

// String renders the spec in conda's compact textual form.
func (s MatchSpec) String() string {
	var b strings.Builder
	if s.Channel != "" {
		b.WriteString(s.Channel)
		b.WriteString("::")
	}
	b.WriteString(s.Name)
	if !s.Version.empty() {
		b.WriteByte(' ')
		b.WriteString(s.Version.String())
	}
	if s.Build != "" {
		b.WriteByte(' ')
		b.WriteString(s.Build)
	}
	return b.String()
}

// MergeSpecs combines specs sharing a name by intersecting their
// constraints (§4.A MatchSpec.merge). Returns a SpecsConfigurationConflict
// style error when the merge is unsatisfiable on its face (conflicting
// exact pins or builds).
func MergeSpecs(specs []MatchSpec) (map[string]MatchSpec, error) {
	out := make(map[string]MatchSpec)
	for _, s := range specs {
		existing, ok := out[s.Name]
		if !ok {
			out[s.Name] = s
			continue
		}
		merged, err := mergeTwo(existing, s)
		if err != nil {
			return nil, err
		}
		out[s.Name] = merged
	}
	return out, nil
}

func mergeTwo(a, b MatchSpec) (MatchSpec, error) {
	if a.Build != "" && b.Build != "" && a.Build != b.Build {
		return MatchSpec{}, fmt.Errorf("solver: cannot merge specs for %s: conflicting build %q vs %q", a.Name, a.Build, b.Build)
	}
	if a.Version.exact && b.Version.exact && a.Version.clauses[0].v.Compare(b.Version.clauses[0].v) != 0 {
		return MatchSpec{}, fmt.Errorf("solver: cannot merge specs for %s: conflicting exact versions %q vs %q", a.Name, a.Version.String(), b.Version.String())
	}
	out := a
	out.Version.clauses = append(append([]versionClause(nil), a.Version.clauses...), b.Version.clauses...)
	out.Version.exact = len(out.Version.clauses) == 1 && !out.Version.clauses[0].wildcard &&
		(out.Version.clauses[0].op == "" || out.Version.clauses[0].op == "=" || out.Version.clauses[0].op == "==")
	if out.Build == "" {
		out.Build = b.Build
	}
	if out.Channel == "" {
		out.Channel = b.Channel
	}
	if b.Target != nil {
		out.Target = b.Target
	}
	out.Optional = a.Optional && b.Optional
	return out, nil
}
