package adapter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"

	"prefixsolve/solver"
)

// repodataDoc is the subset of a repodata.json document this adapter
// understands: a flat map of filename to package metadata, identical in
// shape to conda-meta's metaRecord.
type repodataDoc struct {
	Packages map[string]metaRecord `json:"packages"`
}

// ChannelFetcher implements §6's `channel/index fetcher`
// (`get_reduced_index`) by reading repodata.json out of local channel
// directories — the adapter's stand-in for an HTTP-backed channel client,
// kept local so the repository is self-contained and testable without
// network access.
type ChannelFetcher struct {
	// Channels is an ordered list of local directory roots, each laid out
	// as <channel>/<subdir>/repodata.json, mirroring a real channel's
	// on-disk/URL structure.
	Channels []string
	Subdirs  []string
}

// NewChannelFetcher returns a fetcher over the given channel roots and
// platform subdirs, both in priority order.
func NewChannelFetcher(channels, subdirs []string) *ChannelFetcher {
	return &ChannelFetcher{Channels: channels, Subdirs: subdirs}
}

// GetReducedIndex loads every channel/subdir's repodata.json and returns
// the combined solver.Index. specs is accepted for interface parity with
// §6's contract (a real index fetcher narrows its HTTP fetch to the
// packages specs could possibly need); this local adapter always reads
// the full repodata since there is no network round trip to save.
func (f *ChannelFetcher) GetReducedIndex(specs []solver.MatchSpec) (*solver.Index, error) {
	var records []*solver.PackageRecord
	for _, channel := range f.Channels {
		for _, subdir := range f.Subdirs {
			path := filepath.Join(channel, subdir, "repodata.json")
			raw, err := os.ReadFile(path)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return nil, errors.Wrapf(err, "adapter: reading %s", path)
			}
			var doc repodataDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, errors.Wrapf(err, "adapter: parsing %s", path)
			}
			for _, m := range doc.Packages {
				m.Channel = channel
				m.Subdir = subdir
				records = append(records, m.toRecord())
			}
		}
	}
	return solver.NewIndex(records), nil
}

// SupplementIndexWithSystem implements §6's `supplement_index_with_system`:
// it injects the virtual packages a resolver needs to express platform
// facts as dependency constraints (`__unix`, `__win`, `__archspec`), none
// of which are ever fetched from a channel (spec.md §3 invariant 5).
func SupplementIndexWithSystem(idx *solver.Index) *solver.Index {
	virtual := []*solver.PackageRecord{
		virtualPackage("__archspec", "1", runtime.GOARCH),
	}
	switch runtime.GOOS {
	case "linux":
		virtual = append(virtual, virtualPackage("__unix", "0", "0"), virtualPackage("__linux", "0", "0"), virtualPackage("__glibc", "2.17", "0"))
	case "darwin":
		virtual = append(virtual, virtualPackage("__unix", "0", "0"), virtualPackage("__osx", "0", "0"))
	case "windows":
		virtual = append(virtual, virtualPackage("__win", "0", "0"))
	}
	return idx.WithVirtualPackages(virtual)
}

func virtualPackage(name, version, build string) *solver.PackageRecord {
	id := solver.Identity{Channel: "@", Subdir: runtime.GOOS, Name: name, Version: version, Build: build}
	return solver.NewPackageRecord(id, 0, nil, nil, nil, nil, solver.NoarchNone, false, 0)
}
