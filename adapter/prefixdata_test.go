package adapter_test

import (
	"testing"

	"prefixsolve/adapter"
	"prefixsolve/adapter/testutil"
)

func TestPrefixDataLoad(t *testing.T) {
	prefix, cleanup, err := testutil.MaterializePrefix("testdata/numpy-prefix/conda-meta")
	if err != nil {
		t.Fatalf("materializing fixture: %v", err)
	}
	defer cleanup()

	records, err := adapter.NewPrefixData(prefix).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	var sawNumpy, sawPython bool
	for _, r := range records {
		switch r.Name {
		case "numpy":
			sawNumpy = true
			if r.Version != "1.20.0" {
				t.Errorf("numpy version = %q, want 1.20.0", r.Version)
			}
		case "python":
			sawPython = true
		}
	}
	if !sawNumpy || !sawPython {
		t.Fatalf("missing expected records: numpy=%v python=%v", sawNumpy, sawPython)
	}
}

func TestPrefixDataLoadPinned(t *testing.T) {
	prefix, cleanup, err := testutil.MaterializePrefix("testdata/numpy-prefix/conda-meta")
	if err != nil {
		t.Fatalf("materializing fixture: %v", err)
	}
	defer cleanup()

	pinned, err := adapter.NewPrefixData(prefix).LoadPinned()
	if err != nil {
		t.Fatalf("LoadPinned: %v", err)
	}
	if len(pinned) != 1 || pinned[0].Name != "python" {
		t.Fatalf("unexpected pinned specs: %+v", pinned)
	}
	if !pinned[0].Optional {
		t.Fatalf("pinned spec must be Optional per §3's PinnedSpecs definition")
	}
}

func TestPrefixDataLoadMissingCondaMetaIsEmpty(t *testing.T) {
	records, err := adapter.NewPrefixData(t.TempDir()).Load()
	if err != nil {
		t.Fatalf("Load on empty prefix: %v", err)
	}
	if records != nil {
		t.Fatalf("expected no records for a prefix with no conda-meta, got %v", records)
	}
}
