package solver

import "testing"

func TestVersionCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.2", "1.10", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.0.dev", "1.0", -1},
		{"1.0.rc", "1.0", -1},
		{"1.0", "1.0.post", -1},
		{"1!1.0", "2.0", 1}, // epoch always dominates
		{"1.0+local1", "1.0+local2", -1},
	}
	for _, c := range cases {
		got := ParseVersion(c.a).Compare(ParseVersion(c.b))
		if sign(got) != sign(c.want) {
			t.Errorf("Compare(%q,%q) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func TestMajorMinor(t *testing.T) {
	cases := map[string]string{
		"3.9.0":  "3.9",
		"3.11":   "3.11",
		"3":      "3",
		"3.9.1a": "3.9",
	}
	for in, want := range cases {
		if got := MajorMinor(in); got != want {
			t.Errorf("MajorMinor(%q) = %q, want %q", in, got, want)
		}
	}
}
