package manifest

import (
	"bytes"
	"crypto/sha1" //nolint:gosec
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseIgnoresBlankAndCommentLines(t *testing.T) {
	text := "# a comment\n\n5F0F5E4D2C MyApp-1.0.0.nupkg 1024\n"
	m, err := Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(m.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(m.Entries))
	}
	if m.Entries[0].Filename != "myapp-1.0.0.nupkg" {
		t.Errorf("got filename %q", m.Entries[0].Filename)
	}
}

func TestParseMalformedLineIsRecoverable(t *testing.T) {
	text := "AAA MyApp-1.0.0.nupkg 1024\nbogus line here\n"
	_, err := Parse(strings.NewReader(text))
	if err == nil {
		t.Fatal("expected CorruptManifest error")
	}
	var cm *CorruptManifest
	if !errors.As(err, &cm) {
		t.Fatalf("expected *CorruptManifest, got %T: %s", err, err)
	}
	if cm.Line != 2 {
		t.Errorf("got line %d, want 2", cm.Line)
	}
}

func TestParseDoesNotPartiallyReturnOnFailure(t *testing.T) {
	text := "AAA MyApp-1.0.0.nupkg 1024\nbad\n"
	m, err := Parse(strings.NewReader(text))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(m.Entries) != 0 {
		t.Errorf("expected zero-value manifest on failure, got %d entries", len(m.Entries))
	}
}

func TestRoundTrip(t *testing.T) {
	original := Manifest{Entries: []Entry{
		{SHA1: "aaa", Filename: "myapp-1.0.0.nupkg", Filesize: 1024, Version: Version{1, 0, 0, 0}},
		{SHA1: "bbb", Filename: "myapp-1.1.0-delta.nupkg", Filesize: 512, Version: Version{1, 1, 0, 0}, IsDelta: true},
	}}
	var buf bytes.Buffer
	if err := Serialize(&buf, original); err != nil {
		t.Fatalf("serialize: %s", err)
	}
	parsed, err := Parse(&buf)
	if err != nil {
		t.Fatalf("parse: %s", err)
	}
	if len(parsed.Entries) != len(original.Entries) {
		t.Fatalf("got %d entries, want %d", len(parsed.Entries), len(original.Entries))
	}
	for i := range original.Entries {
		if parsed.Entries[i] != original.Entries[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, parsed.Entries[i], original.Entries[i])
		}
	}
}

func TestCurrentVersionIgnoresDeltas(t *testing.T) {
	m := Manifest{Entries: []Entry{
		{Filename: "a-1.0.0.nupkg", Version: Version{1, 0, 0, 0}},
		{Filename: "a-2.0.0-delta.nupkg", Version: Version{2, 0, 0, 0}, IsDelta: true},
	}}
	cur := m.CurrentVersion()
	if cur == nil || cur.Version != (Version{1, 0, 0, 0}) {
		t.Errorf("got %+v, want version 1.0.0.0", cur)
	}
}

func TestCurrentVersionNilWhenEmpty(t *testing.T) {
	var m Manifest
	if m.CurrentVersion() != nil {
		t.Error("expected nil current version for empty manifest")
	}
}

func TestRebuildHashesFilesOnDisk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "myapp-1.0.0.nupkg"), []byte("full package bytes"))
	writeFile(t, filepath.Join(dir, "myapp-1.1.0-delta.nupkg"), []byte("delta bytes"))

	m, err := Rebuild(dir)
	if err != nil {
		t.Fatalf("rebuild: %s", err)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(m.Entries))
	}
	// Ascending by version: 1.0.0.0 before 1.1.0.0.
	if m.Entries[0].Version.Less(m.Entries[0].Version) || !m.Entries[0].Version.Less(m.Entries[1].Version) {
		t.Errorf("entries not ordered ascending by version: %+v", m.Entries)
	}
	want := sha1hex(t, []byte("full package bytes"))
	if m.Entries[0].SHA1 != want {
		t.Errorf("got sha1 %s, want %s", m.Entries[0].SHA1, want)
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writeFile %s: %s", path, err)
	}
}

func sha1hex(t *testing.T, data []byte) string {
	t.Helper()
	h := sha1.Sum(data) //nolint:gosec
	return fmt.Sprintf("%x", h)
}
