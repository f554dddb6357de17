package solver

import "testing"

func rec(name, version, build string, depends ...string) *PackageRecord {
	id := Identity{Channel: "defaults", Subdir: "linux-64", Name: name, Version: version, Build: build}
	return NewPackageRecord(id, 0, depends, nil, nil, nil, NoarchNone, false, 0)
}

func TestParseMatchSpecRoundTrip(t *testing.T) {
	cases := []string{"numpy", "numpy >=1.20", "numpy 1.20.* py39_0"}
	for _, c := range cases {
		spec, err := ParseMatchSpec(c)
		if err != nil {
			t.Fatalf("ParseMatchSpec(%q): %v", c, err)
		}
		if spec.Name == "" {
			t.Errorf("ParseMatchSpec(%q) produced empty name", c)
		}
		if got := spec.String(); got != c {
			t.Errorf("ParseMatchSpec(%q).String() = %q, want the input back", c, got)
		}
	}
}

func TestMatchSpecMatch(t *testing.T) {
	p := rec("numpy", "1.24.0", "py39_0")

	cases := []struct {
		spec string
		want bool
	}{
		{"numpy", true},
		{"numpy >=1.20", true},
		{"numpy >=1.25", false},
		{"numpy 1.24.*", true},
		{"numpy 1.23.*", false},
		{"scipy", false},
	}
	for _, c := range cases {
		spec, err := ParseMatchSpec(c.spec)
		if err != nil {
			t.Fatalf("ParseMatchSpec(%q): %v", c.spec, err)
		}
		if got := spec.Match(p); got != c.want {
			t.Errorf("MatchSpec(%q).Match(numpy-1.24.0) = %v, want %v", c.spec, got, c.want)
		}
	}
}

func TestMatchSpecStrictness(t *testing.T) {
	bare := NewMatchSpec("numpy")
	versioned, _ := ParseMatchSpec("numpy >=1.20")
	exact := ToMatchSpec(rec("numpy", "1.24.0", "py39_0"))

	if !bare.LessStrict(versioned) {
		t.Errorf("bare spec should be less strict than a versioned one")
	}
	if !versioned.LessStrict(exact) {
		t.Errorf("a >= bound should be less strict than an exact pin")
	}
}

func TestMergeSpecs(t *testing.T) {
	a, _ := ParseMatchSpec("numpy >=1.20")
	b, _ := ParseMatchSpec("numpy <2.0")
	merged, err := MergeSpecs([]MatchSpec{a, b})
	if err != nil {
		t.Fatalf("MergeSpecs: %v", err)
	}
	m := merged["numpy"]
	if !m.Match(rec("numpy", "1.24.0", "py39_0")) {
		t.Errorf("merged spec should match 1.24.0")
	}
	if m.Match(rec("numpy", "2.1.0", "py39_0")) {
		t.Errorf("merged spec should reject 2.1.0")
	}

	c, _ := ParseMatchSpec("numpy 1.0.0 py38_0")
	d, _ := ParseMatchSpec("numpy 1.0.0 py39_0")
	if _, err := MergeSpecs([]MatchSpec{c, d}); err == nil {
		t.Errorf("expected conflicting build strings to fail to merge")
	}
}
