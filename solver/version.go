package solver

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
)

// Version is conda's domain-specific ordering, not lexical and not plain
// semver: an optional epoch, a dotted run of numeric/alphanumeric segments,
// an optional local (build) segment, and special ordering for the
// dev/alpha/beta/rc/post/"" markers that can appear inside a segment.
//
// Comparisons wrap github.com/Masterminds/semver for the common case of a
// pure dotted-numeric run (the overwhelming majority of real package
// versions), and fall back to a manual segment walk for anything semver
// can't parse — epochs, local segments, and the alpha/rc vocabulary are all
// outside what semver.Version understands.
type Version struct {
	raw   string
	epoch int
	local string
	sv    *semver.Version // non-nil when the dotted run parsed as semver
	segs  []segment        // used when sv is nil
}

type segment struct {
	num    int64
	str    string
	isNum  bool
	rank   int // ordering rank for pre-release markers; 0 for plain numeric
}

// markerRank orders the non-numeric tokens conda treats specially. Lower
// sorts first. Anything unrecognized ranks as an ordinary string segment
// (rank 5), which sorts after all the known pre-release markers but before
// a bare numeric continuation — mirroring conda's VersionOrder table.
var markerRank = map[string]int{
	"dev":   0,
	"alpha": 1,
	"a":     1,
	"beta":  2,
	"b":     2,
	"rc":    3,
	"c":     3,
	"":      4, // the implicit "final" marker between e.g. "1" and "1.post"
	"post":  6,
}

// ParseVersion parses a conda-style version string into a comparable
// Version. It never errors — conda treats any string as a valid version;
// malformed input just sorts lexically relative to other malformed input.
func ParseVersion(raw string) Version {
	v := Version{raw: raw}
	rest := raw

	if i := strings.IndexByte(rest, '!'); i >= 0 {
		if e, err := strconv.Atoi(rest[:i]); err == nil {
			v.epoch = e
			rest = rest[i+1:]
		}
	}

	if i := strings.IndexByte(rest, '+'); i >= 0 {
		v.local = rest[i+1:]
		rest = rest[:i]
	}

	if sv, err := semver.NewVersion(rest); err == nil {
		v.sv = sv
		return v
	}

	v.segs = splitSegments(rest)
	return v
}

func splitSegments(s string) []segment {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		segs = append(segs, tokenToSegment(p))
	}
	return segs
}

func tokenToSegment(tok string) segment {
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return segment{num: n, isNum: true}
	}
	lower := strings.ToLower(tok)
	if r, ok := markerRank[lower]; ok {
		return segment{str: lower, rank: r}
	}
	return segment{str: lower, rank: 5}
}

// String returns the original, unparsed version text.
func (v Version) String() string { return v.raw }

// Compare returns -1, 0, or 1 as v orders before, equal to, or after o.
func (v Version) Compare(o Version) int {
	if v.epoch != o.epoch {
		if v.epoch < o.epoch {
			return -1
		}
		return 1
	}

	if v.sv != nil && o.sv != nil {
		if c := v.sv.Compare(o.sv); c != 0 {
			return c
		}
	} else {
		if c := compareSegs(segsOf(v), segsOf(o)); c != 0 {
			return c
		}
	}

	if v.local != o.local {
		if v.local < o.local {
			return -1
		}
		return 1
	}
	return 0
}

// segsOf normalizes a Version to its segment slice regardless of whether it
// took the semver fast path, so mixed comparisons (one side parsed as
// semver, the other fell back to manual segments because it carries a
// marker semver doesn't understand) still compare sanely.
func segsOf(v Version) []segment {
	if v.segs != nil {
		return v.segs
	}
	if v.sv == nil {
		return nil
	}
	return splitSegments(v.sv.Original())
}

func compareSegs(a, b []segment) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var sa, sb segment
		if i < len(a) {
			sa = a[i]
		} else {
			sa = segment{rank: 4} // missing trailing segment == implicit "final"
		}
		if i < len(b) {
			sb = b[i]
		} else {
			sb = segment{rank: 4}
		}
		if c := compareSeg(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

func compareSeg(a, b segment) int {
	if a.isNum && b.isNum {
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	}
	if a.isNum != b.isNum {
		// A numeric segment outranks a marker segment at the same position,
		// except markers that are explicitly "before zero" (dev, alpha..rc),
		// which is already captured by their rank being < the implicit-final
		// rank used for comparisons against absent segments. Here we're
		// comparing a *present* numeric token against a *present* marker
		// token directly, which conda treats as numeric-wins.
		if a.isNum {
			return 1
		}
		return -1
	}
	if a.rank != b.rank {
		if a.rank < b.rank {
			return -1
		}
		return 1
	}
	if a.str < b.str {
		return -1
	}
	if a.str > b.str {
		return 1
	}
	return 0
}

// MajorMinor returns the first two dot-separated segments of raw, per
// §4.G get_major_minor_version — a purely textual operation independent of
// the epoch/local parsing above.
func MajorMinor(raw string) string {
	parts := strings.SplitN(raw, ".", 3)
	switch {
	case len(parts) >= 2:
		return parts[0] + "." + parts[1]
	case len(parts) == 1:
		return parts[0]
	default:
		return raw
	}
}
