package solver

import "testing"

func recNoarch(name, version, build string) *PackageRecord {
	id := Identity{Channel: "defaults", Subdir: "noarch", Name: name, Version: version, Build: build}
	return NewPackageRecord(id, 0, nil, nil, nil, nil, NoarchPython, false, 0)
}

func TestDiffForUnlinkLinkBasic(t *testing.T) {
	python := rec("python", "3.9.0", "h_0")
	flask := rec("flask", "2.0.0", "0", "python >=3.7")

	previous := []*PackageRecord{python}
	final := []*PackageRecord{python, flask}

	diff, err := DiffForUnlinkLink(previous, final, []MatchSpec{NewMatchSpec("flask")}, false)
	if err != nil {
		t.Fatalf("DiffForUnlinkLink: %v", err)
	}
	if len(diff.Unlink) != 0 {
		t.Errorf("expected no unlinks, got %v", diff.Unlink)
	}
	if len(diff.Link) != 1 || diff.Link[0].Name != "flask" {
		t.Errorf("expected flask to be linked, got %v", diff.Link)
	}
}

func TestDiffForUnlinkLinkForceReinstall(t *testing.T) {
	numpy := rec("numpy", "1.24.0", "0")
	previous := []*PackageRecord{numpy}
	final := []*PackageRecord{numpy} // identical record set, but force_reinstall is set

	diff, err := DiffForUnlinkLink(previous, final, []MatchSpec{NewMatchSpec("numpy")}, true)
	if err != nil {
		t.Fatalf("DiffForUnlinkLink: %v", err)
	}
	if len(diff.Unlink) != 1 || diff.Unlink[0].Name != "numpy" {
		t.Errorf("expected numpy relinked via force_reinstall, unlink=%v", diff.Unlink)
	}
	if len(diff.Link) != 1 || diff.Link[0].Name != "numpy" {
		t.Errorf("expected numpy relinked via force_reinstall, link=%v", diff.Link)
	}
}

func TestDiffForUnlinkLinkPythonABIRelink(t *testing.T) {
	prevPy := rec("python", "3.9.0", "h_0")
	finalPy := rec("python", "3.11.0", "h_0")
	prevNoarch := recNoarch("somepkg", "1.0", "0")
	finalNoarch := recNoarch("somepkg", "1.0", "0")

	diff, err := DiffForUnlinkLink(
		[]*PackageRecord{prevPy, prevNoarch},
		[]*PackageRecord{finalPy, finalNoarch},
		nil, false,
	)
	if err != nil {
		t.Fatalf("DiffForUnlinkLink: %v", err)
	}

	hasUnlink := false
	for _, r := range diff.Unlink {
		if r.Name == "somepkg" {
			hasUnlink = true
		}
	}
	hasLink := false
	for _, r := range diff.Link {
		if r.Name == "somepkg" {
			hasLink = true
		}
	}
	if !hasUnlink || !hasLink {
		t.Errorf("expected noarch(python) package relinked on python ABI change, unlink=%v link=%v", diff.Unlink, diff.Link)
	}
}

func TestDiffForUnlinkLinkUnmanageable(t *testing.T) {
	id := Identity{Channel: "defaults", Subdir: "linux-64", Name: "conda", Version: "4.0", Build: "0"}
	unmanageable := NewPackageRecord(id, 0, nil, nil, nil, nil, NoarchNone, true, 0)

	_, err := DiffForUnlinkLink([]*PackageRecord{unmanageable}, nil, nil, false)
	if err == nil {
		t.Fatal("expected ErrCannotUnlinkUnmanageable")
	}
	if _, ok := err.(*ErrCannotUnlinkUnmanageable); !ok {
		t.Errorf("expected *ErrCannotUnlinkUnmanageable, got %T", err)
	}
}
