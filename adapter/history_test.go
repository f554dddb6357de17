package adapter_test

import (
	"testing"

	"prefixsolve/adapter"
	"prefixsolve/adapter/testutil"
	"prefixsolve/solver"
)

func TestHistoryGetRequestedSpecsMap(t *testing.T) {
	prefix, cleanup, err := testutil.MaterializePrefix("testdata/numpy-prefix/conda-meta")
	if err != nil {
		t.Fatalf("materializing fixture: %v", err)
	}
	defer cleanup()

	specs, err := adapter.NewHistory(prefix).GetRequestedSpecsMap()
	if err != nil {
		t.Fatalf("GetRequestedSpecsMap: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 history entries, got %d: %+v", len(specs), specs)
	}
	if spec, ok := specs["python"]; !ok || spec.Version.String() == "" {
		t.Errorf("python history spec missing or lost its version constraint: %+v", spec)
	}
	if spec, ok := specs["numpy"]; !ok || spec.Name != "numpy" {
		t.Errorf("numpy history spec missing: %+v", spec)
	}
}

func TestHistoryAppendThenRead(t *testing.T) {
	prefix := t.TempDir()
	h := adapter.NewHistory(prefix)

	spec, err := adapter.NewHistory(prefix).GetRequestedSpecsMap()
	if err != nil {
		t.Fatalf("GetRequestedSpecsMap on fresh prefix: %v", err)
	}
	if len(spec) != 0 {
		t.Fatalf("expected empty history, got %+v", spec)
	}

	flask, err := solver.ParseMatchSpec("flask >=2.0")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Append(flask); err != nil {
		t.Fatalf("Append: %v", err)
	}

	specs, err := h.GetRequestedSpecsMap()
	if err != nil {
		t.Fatalf("GetRequestedSpecsMap after append: %v", err)
	}
	if _, ok := specs["flask"]; !ok {
		t.Fatalf("expected flask in history after Append, got %+v", specs)
	}
}
