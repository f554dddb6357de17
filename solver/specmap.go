package solver

// specMap is specs_map from spec.md §3: name → MatchSpec currently under
// consideration, iterated in a deterministic order (here, lexicographic by
// name via the underlying radix tree, which — like the teacher's
// insertion-ordered maps — guarantees identical output for identical
// input regardless of Go's randomized map iteration).
type specMap struct {
	r specRadix
}

func newSpecMap() *specMap {
	return &specMap{r: newSpecRadix()}
}

func (m *specMap) Set(name string, spec MatchSpec) {
	m.r.Insert(name, spec)
}

func (m *specMap) Get(name string) (MatchSpec, bool) {
	return m.r.Get(name)
}

func (m *specMap) Delete(name string) {
	m.r.Delete(name)
}

func (m *specMap) Has(name string) bool {
	_, ok := m.r.Get(name)
	return ok
}

func (m *specMap) Names() []string {
	return m.r.Names()
}

func (m *specMap) Len() int { return m.r.Len() }

// Values returns every spec in deterministic (name-sorted) order.
func (m *specMap) Values() []MatchSpec {
	names := m.r.Names()
	out := make([]MatchSpec, len(names))
	for i, n := range names {
		v, _ := m.r.Get(n)
		out[i] = v
	}
	return out
}

// Clone returns an independent copy of the map.
func (m *specMap) Clone() *specMap {
	out := newSpecMap()
	for _, n := range m.r.Names() {
		v, _ := m.r.Get(n)
		out.Set(n, v)
	}
	return out
}

// Index is the prepared repodata index: every candidate PackageRecord,
// grouped by name (spec.md §3). It is built by an external collaborator and
// handed to the engine read-only.
type Index struct {
	byName recordRadix
	all    []*PackageRecord
}

// NewIndex builds an Index from a flat slice of records.
func NewIndex(records []*PackageRecord) *Index {
	idx := &Index{byName: newRecordRadix(), all: records}
	for _, r := range records {
		idx.byName.Append(r.Name, r)
	}
	return idx
}

// ByName returns every candidate record with the given name.
func (idx *Index) ByName(name string) []*PackageRecord {
	recs, _ := idx.byName.Get(name)
	return recs
}

// Names returns every package name present in the index, sorted.
func (idx *Index) Names() []string { return idx.byName.Names() }

// All returns every record in the index.
func (idx *Index) All() []*PackageRecord { return idx.all }

// WithVirtualPackages returns a new Index with the given virtual package
// records added, implementing supplement_index_with_system's effect (§6)
// without the core performing any system probing itself — the virtual
// records are handed in by the caller.
func (idx *Index) WithVirtualPackages(virtual []*PackageRecord) *Index {
	return NewIndex(append(append([]*PackageRecord(nil), idx.all...), virtual...))
}
