package adapter

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"prefixsolve/solver"
)

// History reads conda-meta/history — explicitly out of the core's scope
// per §6 ("history file format" is an external collaborator contract) —
// and reduces it to the HistoryMap solver.SolverState needs: the latest
// MatchSpec the user explicitly requested for each package name. Format,
// one non-comment line per historical request, oldest first, later lines
// for the same name superseding earlier ones:
//
//	numpy >=1.20
//	python 3.9.*
//
// the same plain-text, '#'-comment, one-spec-per-line shape
// solver.LoadPinnedSpecs already uses for conda-meta/pinned.
type History struct {
	Prefix string
}

// NewHistory returns a History reader rooted at prefix.
func NewHistory(prefix string) *History { return &History{Prefix: prefix} }

func (h *History) path() string { return filepath.Join(h.Prefix, "conda-meta", "history") }

// GetRequestedSpecsMap implements §6's `History(prefix).get_requested_specs_map()`.
func (h *History) GetRequestedSpecsMap() (map[string]solver.MatchSpec, error) {
	f, err := os.Open(h.path())
	if os.IsNotExist(err) {
		return map[string]solver.MatchSpec{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "adapter: opening conda-meta/history")
	}
	defer f.Close()

	out := map[string]solver.MatchSpec{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		spec, err := solver.ParseMatchSpec(line)
		if err != nil {
			return nil, errors.Wrap(err, "adapter: parsing conda-meta/history")
		}
		out[spec.Name] = spec
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "adapter: reading conda-meta/history")
	}
	return out, nil
}

// Append records one more explicitly requested spec at the end of the
// history file, creating conda-meta/ if necessary.
func (h *History) Append(spec solver.MatchSpec) error {
	dir := filepath.Dir(h.path())
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return errors.Wrap(err, "adapter: creating conda-meta")
	}
	f, err := os.OpenFile(h.path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return errors.Wrap(err, "adapter: opening conda-meta/history")
	}
	defer f.Close()
	_, err = f.WriteString(spec.String() + "\n")
	return err
}
