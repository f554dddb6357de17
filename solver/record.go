package solver

// Noarch describes whether a package's files are platform-independent, and
// if so, whether they are tied to the installed Python ABI.
type Noarch uint8

const (
	NoarchNone Noarch = iota
	NoarchPython
	NoarchGeneric
)

// Identity is the five-tuple that uniquely names a PackageRecord, per
// spec.md §3: "Identity is (channel, subdir, name, version, build)."
type Identity struct {
	Channel string
	Subdir  string
	Name    string
	Version string
	Build   string
}

// PackageRecord is an immutable package descriptor, harvested from
// repodata. Nothing in this package mutates a PackageRecord after
// construction; every transformation in the engine produces a new value or
// a new MatchSpec instead.
type PackageRecord struct {
	Identity

	BuildNumber     int
	BuildString     string
	Depends         []string
	Constrains      []string
	Features        map[string]struct{}
	TrackFeatures   map[string]struct{}
	Noarch          Noarch
	IsUnmanageable  bool
	Timestamp       int64

	version Version // cached parse of Identity.Version
}

// NewPackageRecord constructs a PackageRecord, pre-parsing its version for
// repeated comparisons during the solve.
func NewPackageRecord(id Identity, buildNumber int, depends, constrains []string, features, trackFeatures []string, noarch Noarch, unmanageable bool, timestamp int64) *PackageRecord {
	r := &PackageRecord{
		Identity:       id,
		BuildNumber:    buildNumber,
		BuildString:    id.Build,
		Depends:        append([]string(nil), depends...),
		Constrains:     append([]string(nil), constrains...),
		Features:       toSet(features),
		TrackFeatures:  toSet(trackFeatures),
		Noarch:         noarch,
		IsUnmanageable: unmanageable,
		Timestamp:      timestamp,
		version:        ParseVersion(id.Version),
	}
	return r
}

func toSet(ss []string) map[string]struct{} {
	if len(ss) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		m[s] = struct{}{}
	}
	return m
}

// ParsedVersion returns the pre-parsed, comparable Version for this record.
func (r *PackageRecord) ParsedVersion() Version { return r.version }

// IsVirtual reports whether this record represents a virtual package —
// never unlinked, never fetched from a channel (spec.md §3 invariant 5).
func (r *PackageRecord) IsVirtual() bool {
	return len(r.Name) > 0 && r.Name[0] == '_' && len(r.Name) > 1 && r.Name[1] == '_'
}

// RecordID renders a stable human-readable identifier for diagnostics, the
// Go analogue of the teacher's atom/a2vs helper in gps/errors.go.
func (r *PackageRecord) RecordID() string {
	return r.Channel + "::" + r.Name + "-" + r.Version + "-" + r.BuildString
}

// dependencyLess orders records deterministically: name asc, build number
// desc, version desc — the tie-break spec.md §4.B mandates for topological
// order.
func dependencyLess(a, b *PackageRecord) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.BuildNumber != b.BuildNumber {
		return b.BuildNumber < a.BuildNumber
	}
	return b.version.Compare(a.version) < 0
}
