package solver

import (
	"strings"
	"testing"
)

func TestLoadPinnedSpecsSkipsCommentsAndMarksOptional(t *testing.T) {
	input := "# comment\n\nnumpy >=1.20\npython 3.9.*\n"
	specs, err := LoadPinnedSpecs(strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadPinnedSpecs: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d: %v", len(specs), specs)
	}
	for _, s := range specs {
		if !s.Optional {
			t.Errorf("expected %q to be Optional, got %+v", s.Name, s)
		}
	}
	if specs[0].Name != "numpy" || specs[1].Name != "python" {
		t.Errorf("unexpected spec names: %+v", specs)
	}
}

func TestLoadPolicyConfig(t *testing.T) {
	doc := []byte(`
auto_update_conda = true
offline = false
aggressive_update_packages = ["ca-certificates", "certifi"]
sticky_package_names = ["conda", "conda-build"]
track_features = ["mkl"]
`)
	cfg, err := LoadPolicyConfig(doc)
	if err != nil {
		t.Fatalf("LoadPolicyConfig: %v", err)
	}
	if !cfg.AutoUpdateConda || cfg.Offline {
		t.Errorf("unexpected bool fields: %+v", cfg)
	}
	if len(cfg.AggressiveUpdatePackages) != 2 || cfg.AggressiveUpdatePackages[0] != "ca-certificates" {
		t.Errorf("unexpected aggressive_update_packages: %v", cfg.AggressiveUpdatePackages)
	}
	if len(cfg.StickyPackageNames) != 2 {
		t.Errorf("unexpected sticky_package_names: %v", cfg.StickyPackageNames)
	}
	specs := cfg.TrackFeaturesSpecs()
	if len(specs) != 1 {
		t.Fatalf("expected 1 track_features spec, got %d", len(specs))
	}
	if _, ok := specs[0].TrackFeatures["mkl"]; !ok {
		t.Errorf("expected track_features spec for mkl, got %+v", specs[0])
	}
}

func TestCondaSelfRule(t *testing.T) {
	installed := rec("conda", "4.10.0", "0")

	if _, ok := CondaSelfRule("/env/a", "/env/b", installed, false, false); ok {
		t.Errorf("expected no rule when prefix != currentPrefix")
	}

	spec, ok := CondaSelfRule("/env/a", "/env/a", installed, false, false)
	if !ok {
		t.Fatal("expected a floor spec when running in the current prefix")
	}
	if !spec.Match(rec("conda", "4.10.0", "0")) {
		t.Errorf("floor spec should match the installed version itself")
	}
	if spec.Match(rec("conda", "4.9.0", "0")) {
		t.Errorf("floor spec should reject an older conda")
	}

	bare, ok := CondaSelfRule("/env/a", "/env/a", installed, false, true)
	if !ok || !bare.Version.empty() {
		t.Errorf("auto-update without explicit request should drop the floor, got %+v", bare)
	}
}

func TestConstrainingDependents(t *testing.T) {
	numpy := rec("numpy", "1.20.0", "0")
	pinner := rec("scikit-learn", "1.0.0", "0", "numpy <1.21")
	loose := rec("pandas", "1.3.0", "0", "numpy >=1.16")

	deps := ConstrainingDependents(NewMatchSpec("numpy"), []*PackageRecord{numpy, pinner, loose})
	if len(deps) != 1 || deps[0].Package != "scikit-learn" {
		t.Errorf("expected only scikit-learn's hard upper bound reported, got %+v", deps)
	}
}
