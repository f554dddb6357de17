// Command prefixsolve drives one solve against a prefix from the command
// line. Grounded on golang-dep's cmd/dep/main.go: a flat flag.FlagSet, a
// Loggers bundle, a Config carrying args/env/output streams, and a Run method returning a process exit code instead of
// calling os.Exit directly, so tests can exercise Run without forking.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/theckman/go-flock"

	"prefixsolve/adapter"
	"prefixsolve/solver"
)

func main() {
	c := &Config{
		Args:   os.Args,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Env:    os.Environ(),
	}
	os.Exit(c.Run())
}

// Config specifies a full prefixsolve invocation, mirroring dep's
// cmd/dep/main.go Config shape.
type Config struct {
	Args           []string
	Env            []string
	Stdout, Stderr io.Writer
}

// Loggers bundles standard loggers and a verbosity flag, the same shape as
// cmd/dep/loggers.go's Loggers.
type Loggers struct {
	Out, Err *log.Logger
	Verbose  bool
}

// Run parses flags, locks the prefix, runs one solve, and reports the
// resulting transaction diff. It returns a process exit code.
func (c *Config) Run() int {
	loggers := &Loggers{
		Out: log.New(c.Stdout, "", 0),
		Err: log.New(c.Stderr, "", 0),
	}

	fs := flag.NewFlagSet("prefixsolve", flag.ContinueOnError)
	fs.SetOutput(c.Stderr)
	prefix := fs.String("prefix", "", "path to the prefix being solved (required)")
	channelsFlag := fs.String("channels", "", "comma-separated local channel directory roots")
	subdirsFlag := fs.String("subdirs", "linux-64,noarch", "comma-separated platform subdirs")
	addFlag := fs.String("add", "", "comma-separated MatchSpecs to add")
	removeFlag := fs.String("remove", "", "comma-separated MatchSpecs to remove")
	updateAll := fs.Bool("update-all", false, "set update_modifier=UPDATE_ALL")
	freeze := fs.Bool("freeze-installed", false, "set update_modifier=FREEZE_INSTALLED")
	prune := fs.Bool("prune", false, "prune orphaned dependencies after solving")
	verbose := fs.Bool("v", false, "enable verbose logging")
	dryRun := fs.Bool("dry-run", false, "compute and print the diff without requiring a lock")
	cachePath := fs.String("cache", "", "path to a bolt-backed solve cache; empty disables caching")

	if err := fs.Parse(c.Args[1:]); err != nil {
		return 1
	}
	loggers.Verbose = *verbose
	if *prefix == "" {
		loggers.Err.Println("prefixsolve: -prefix is required")
		return 1
	}

	lockPath := filepath.Join(*prefix, "conda-meta", ".prefixsolve.lock")
	if !*dryRun {
		if err := os.MkdirAll(filepath.Dir(lockPath), 0o777); err != nil {
			loggers.Err.Println("prefixsolve: preparing lock directory:", err)
			return 1
		}
		fl := flock.NewFlock(lockPath)
		locked, err := fl.TryLock()
		if err != nil {
			loggers.Err.Println("prefixsolve: acquiring prefix lock:", err)
			return 1
		}
		if !locked {
			loggers.Err.Println("prefixsolve: prefix is locked by another process")
			return 1
		}
		defer fl.Unlock()
	}

	specsToAdd, err := parseSpecs(*addFlag)
	if err != nil {
		loggers.Err.Println("prefixsolve:", err)
		return 1
	}
	specsToRemove, err := parseSpecs(*removeFlag)
	if err != nil {
		loggers.Err.Println("prefixsolve:", err)
		return 1
	}

	result, err := solveOnce(*prefix, splitCSV(*channelsFlag), splitCSV(*subdirsFlag), specsToAdd, specsToRemove, *updateAll, *freeze, *prune, *cachePath, loggers)
	if err != nil {
		loggers.Err.Println("prefixsolve:", err)
		return 1
	}

	for _, r := range result.Unlink {
		fmt.Fprintf(c.Stdout, "- %s\n", r.RecordID())
	}
	for _, r := range result.Link {
		fmt.Fprintf(c.Stdout, "+ %s\n", r.RecordID())
	}
	return 0
}

func solveOnce(prefix string, channels, subdirs []string, specsToAdd, specsToRemove []solver.MatchSpec, updateAll, freeze, prune bool, cachePath string, loggers *Loggers) (*solver.TransactionDiff, error) {
	pd := adapter.NewPrefixData(prefix)
	prefixRecords, err := pd.Load()
	if err != nil {
		return nil, err
	}
	pinned, err := pd.LoadPinned()
	if err != nil {
		return nil, err
	}
	historyMap, err := adapter.NewHistory(prefix).GetRequestedSpecsMap()
	if err != nil {
		return nil, err
	}

	fetcher := adapter.NewChannelFetcher(channels, subdirs)
	idx, err := fetcher.GetReducedIndex(append(append([]solver.MatchSpec(nil), specsToAdd...), specsToRemove...))
	if err != nil {
		return nil, err
	}
	idx = adapter.SupplementIndexWithSystem(idx)

	var resolver solver.Resolver = solver.NewNativeResolver(idx)
	if cachePath != "" {
		cache, err := solver.OpenSolveCache(cachePath)
		if err != nil {
			return nil, err
		}
		defer cache.Close()
		resolver = solver.NewCachingResolver(resolver, cache, idx)
	}

	cfg := &solver.Config{
		CurrentPrefix: prefix,
		Logger:        loggers.Out,
	}

	modifier := solver.UpdateModifierNone
	switch {
	case updateAll:
		modifier = solver.UpdateModifierUpdateAll
	case freeze:
		modifier = solver.UpdateModifierFreezeInstalled
	}

	engine := solver.NewSolveEngine(cfg, solver.EngineInputs{
		Prefix:        prefix,
		Index:         idx,
		Resolver:      resolver,
		PrefixRecords: prefixRecords,
		HistoryMap:    historyMap,
		PinnedSpecs:   pinned,
		SpecsToAdd:    specsToAdd,
		SpecsToRemove: specsToRemove,
		Command:       "install",
	})

	final, err := engine.SolveFinalState(context.Background(), modifier, solver.DepsModifierNotSet, prune, false, false, false)
	if err != nil {
		return nil, err
	}

	return solver.DiffForUnlinkLink(prefixRecords, final, specsToAdd, false)
}

func parseSpecs(csv string) ([]solver.MatchSpec, error) {
	var out []solver.MatchSpec
	for _, s := range splitCSV(csv) {
		spec, err := solver.ParseMatchSpec(s)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
