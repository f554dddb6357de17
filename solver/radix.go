package solver

import radix "github.com/armon/go-radix"

// specRadix is a typed wrapper around a radix tree, directly modeled on
// gps's typed_radix.go: a thin shim that lets the rest of the package avoid
// type assertions, with walks returning keys in sorted order so iteration
// over a specRadix is always deterministic.
type specRadix struct {
	t *radix.Tree
}

func newSpecRadix() specRadix {
	return specRadix{t: radix.New()}
}

func (t specRadix) Get(name string) (MatchSpec, bool) {
	v, ok := t.t.Get(name)
	if !ok {
		return MatchSpec{}, false
	}
	return v.(MatchSpec), true
}

// Insert sets name to spec, returning the previous value if any.
func (t specRadix) Insert(name string, spec MatchSpec) (MatchSpec, bool) {
	old, had := t.t.Insert(name, spec)
	if !had {
		return MatchSpec{}, false
	}
	return old.(MatchSpec), true
}

func (t specRadix) Delete(name string) (MatchSpec, bool) {
	v, had := t.t.Delete(name)
	if !had {
		return MatchSpec{}, false
	}
	return v.(MatchSpec), true
}

func (t specRadix) Len() int { return t.t.Len() }

// Names returns every key in the tree in sorted order.
func (t specRadix) Names() []string {
	names := make([]string, 0, t.t.Len())
	t.t.Walk(func(s string, _ interface{}) bool {
		names = append(names, s)
		return false
	})
	return names
}

// ToMap materializes the tree as a plain map, for call sites that need
// random access without caring about order.
func (t specRadix) ToMap() map[string]MatchSpec {
	m := make(map[string]MatchSpec, t.t.Len())
	t.t.Walk(func(s string, v interface{}) bool {
		m[s] = v.(MatchSpec)
		return false
	})
	return m
}

// recordRadix is the same wrapper shape, keyed by package name, used by the
// Index for deterministic by-name grouping.
type recordRadix struct {
	t *radix.Tree
}

func newRecordRadix() recordRadix { return recordRadix{t: radix.New()} }

func (t recordRadix) Get(name string) ([]*PackageRecord, bool) {
	v, ok := t.t.Get(name)
	if !ok {
		return nil, false
	}
	return v.([]*PackageRecord), true
}

func (t recordRadix) Append(name string, rec *PackageRecord) {
	if existing, ok := t.t.Get(name); ok {
		t.t.Insert(name, append(existing.([]*PackageRecord), rec))
		return
	}
	t.t.Insert(name, []*PackageRecord{rec})
}

func (t recordRadix) Names() []string {
	names := make([]string, 0, t.t.Len())
	t.t.Walk(func(s string, _ interface{}) bool {
		names = append(names, s)
		return false
	})
	return names
}

func (t recordRadix) Len() int { return t.t.Len() }
