package manifest

import "testing"

func TestParseVersionFull(t *testing.T) {
	v, err := ParseVersion("1.2.3.4")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if v != (Version{1, 2, 3, 4}) {
		t.Errorf("got %v, want 1.2.3.4", v)
	}
}

func TestParseVersionDefaultsTrailingComponents(t *testing.T) {
	v, err := ParseVersion("1.2")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if v != (Version{1, 2, 0, 0}) {
		t.Errorf("got %v, want 1.2.0.0", v)
	}
}

func TestParseVersionInvalid(t *testing.T) {
	if _, err := ParseVersion("1.x.0.0"); err == nil {
		t.Error("expected error for non-numeric component")
	}
}

func TestVersionCompare(t *testing.T) {
	cases := []struct {
		a, b Version
		want int
	}{
		{Version{1, 0, 0, 0}, Version{1, 0, 0, 0}, 0},
		{Version{1, 0, 0, 0}, Version{1, 1, 0, 0}, -1},
		{Version{2, 0, 0, 0}, Version{1, 9, 9, 9}, 1},
		{Version{1, 0, 0, 1}, Version{1, 0, 0, 0}, 1},
	}
	for _, c := range cases {
		if got := c.a.Compare(c.b); got != c.want {
			t.Errorf("Compare(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestParseFilenameFull(t *testing.T) {
	pkg, v, isDelta, err := ParseFilename("MyApp-1.2.3.nupkg")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if pkg != "MyApp" || v != (Version{1, 2, 3, 0}) || isDelta {
		t.Errorf("got pkg=%q v=%v isDelta=%v", pkg, v, isDelta)
	}
}

func TestParseFilenameDelta(t *testing.T) {
	pkg, v, isDelta, err := ParseFilename("MyApp-1.2.3-delta.nupkg")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if pkg != "MyApp" || v != (Version{1, 2, 3, 0}) || !isDelta {
		t.Errorf("got pkg=%q v=%v isDelta=%v", pkg, v, isDelta)
	}
}

func TestParseFilenameCaseInsensitiveSuffix(t *testing.T) {
	_, _, isDelta, err := ParseFilename("MyApp-1.0.0-DELTA.NUPKG")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !isDelta {
		t.Error("expected delta suffix to match case-insensitively")
	}
}

func TestParseFilenameRejectsMissingSuffix(t *testing.T) {
	if _, _, _, err := ParseFilename("MyApp-1.0.0.zip"); err == nil {
		t.Error("expected error for non-.nupkg filename")
	}
}

func TestFullFilenameStripsDeltaSuffix(t *testing.T) {
	got := FullFilename("MyApp-1.2.0-delta.nupkg")
	if got != "MyApp-1.2.0.nupkg" {
		t.Errorf("got %q, want MyApp-1.2.0.nupkg", got)
	}
}

func TestFullFilenameLeavesFullAlone(t *testing.T) {
	got := FullFilename("MyApp-1.2.0.nupkg")
	if got != "MyApp-1.2.0.nupkg" {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestSameIdentityCaseInsensitiveDigest(t *testing.T) {
	a := Entry{Filename: "x.nupkg", SHA1: "AAbb"}
	b := Entry{Filename: "x.nupkg", SHA1: "aaBB"}
	if !a.SameIdentity(b) {
		t.Error("expected identity match on case-insensitive sha1")
	}
}
