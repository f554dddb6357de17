// Package testutil materializes on-disk prefix fixtures for adapter and
// solver tests — never imported by non-test code.
package testutil

import (
	"os"
	"path/filepath"

	"github.com/termie/go-shutil"
)

// MaterializePrefix copies a golden conda-meta/ fixture tree (e.g.
// "testdata/numpy-prefix/conda-meta") into a fresh temp directory laid out
// as <tmp>/conda-meta, the same shutil.CopyTree-based materialization
// project_manager.go uses to export a checked-out revision to a GOPATH
// location.
func MaterializePrefix(srcMetaDir string) (prefix string, cleanup func(), err error) {
	tmp, err := os.MkdirTemp("", "prefixsolve-fixture-")
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { os.RemoveAll(tmp) }

	dst := filepath.Join(tmp, "conda-meta")
	cfg := &shutil.CopyTreeOptions{
		Symlinks:     false,
		CopyFunction: shutil.Copy,
	}
	if err := shutil.CopyTree(srcMetaDir, dst, cfg); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmp, cleanup, nil
}
