// Package adapter provides the concrete, non-core collaborators that
// spec.md §6 deliberately keeps out of the solver package: reading a
// prefix's installed records, loading history, and materializing fixtures
// for tests. None of it participates in solve semantics.
package adapter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"prefixsolve/solver"
)

// metaRecord is the on-disk shape of one conda-meta/<name>-<ver>-<build>.json
// file — a JSON rendering of the same fields solver.NewPackageRecord takes.
type metaRecord struct {
	Channel        string   `json:"channel"`
	Subdir         string   `json:"subdir"`
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	Build          string   `json:"build"`
	BuildNumber    int      `json:"build_number"`
	Depends        []string `json:"depends"`
	Constrains     []string `json:"constrains"`
	Features       []string `json:"features"`
	TrackFeatures  []string `json:"track_features"`
	Noarch         string   `json:"noarch"`
	IsUnmanageable bool     `json:"is_unmanageable"`
	Timestamp      int64    `json:"timestamp"`
}

func (m metaRecord) toRecord() *solver.PackageRecord {
	var noarch solver.Noarch
	switch m.Noarch {
	case "python":
		noarch = solver.NoarchPython
	case "generic":
		noarch = solver.NoarchGeneric
	}
	id := solver.Identity{Channel: m.Channel, Subdir: m.Subdir, Name: m.Name, Version: m.Version, Build: m.Build}
	return solver.NewPackageRecord(id, m.BuildNumber, m.Depends, m.Constrains, m.Features, m.TrackFeatures, noarch, m.IsUnmanageable, m.Timestamp)
}

// PrefixData reads the installed-record snapshot of one prefix, the Go
// analogue of golang-dep's CreateVendorTree read path — instead of writing
// a vendor tree out, it walks conda-meta/ in, grounded on the same
// walk-and-collect shape as result.go's export loop, using
// karrick/godirwalk in place of filepath.Walk for the harvest because the
// prefix's conda-meta directory can hold several thousand small JSON files
// and godirwalk avoids a lstat call per entry.
type PrefixData struct {
	Prefix string
}

// NewPrefixData returns a PrefixData rooted at prefix.
func NewPrefixData(prefix string) *PrefixData { return &PrefixData{Prefix: prefix} }

// metaDir is conda-meta/ under the prefix.
func (p *PrefixData) metaDir() string { return filepath.Join(p.Prefix, "conda-meta") }

// Load reads every conda-meta/*.json record in the prefix (§6's PrefixData
// collaborator). A missing conda-meta directory is an empty, not-installed
// environment rather than an error.
func (p *PrefixData) Load() ([]*solver.PackageRecord, error) {
	dir := p.metaDir()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var records []*solver.PackageRecord
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() || !strings.HasSuffix(path, ".json") {
				return nil
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "adapter: reading %s", path)
			}
			var m metaRecord
			if err := json.Unmarshal(raw, &m); err != nil {
				return errors.Wrapf(err, "adapter: parsing %s", path)
			}
			records = append(records, m.toRecord())
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "adapter: walking conda-meta")
	}
	return records, nil
}

// LoadPinned reads conda-meta/pinned through solver.LoadPinnedSpecs, or
// returns no specs if the file does not exist.
func (p *PrefixData) LoadPinned() ([]solver.MatchSpec, error) {
	f, err := os.Open(filepath.Join(p.metaDir(), "pinned"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "adapter: opening conda-meta/pinned")
	}
	defer f.Close()
	return solver.LoadPinnedSpecs(f)
}
