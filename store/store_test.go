package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jeffora/Shimmer/manifest"
)

func TestPutThenVerifySucceeds(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	data := []byte("hello package")
	if err := s.Put("myapp-1.0.0.nupkg", data); err != nil {
		t.Fatalf("Put: %s", err)
	}
	sum := sha1Hex(data)
	e := manifest.Entry{Filename: "myapp-1.0.0.nupkg", SHA1: sum, Filesize: int64(len(data))}
	if err := s.Verify(e); err != nil {
		t.Errorf("Verify: %s", err)
	}
}

func TestVerifyMissing(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	err = s.Verify(manifest.Entry{Filename: "nope-1.0.0.nupkg", SHA1: "aaa", Filesize: 10})
	var missing *ErrMissing
	if !asErrMissing(err, &missing) {
		t.Fatalf("got %T (%v), want *ErrMissing", err, err)
	}
}

func TestVerifySizeMismatchDeletesFile(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	data := []byte("some bytes")
	if err := s.Put("myapp-1.0.0.nupkg", data); err != nil {
		t.Fatalf("Put: %s", err)
	}
	e := manifest.Entry{Filename: "myapp-1.0.0.nupkg", SHA1: sha1Hex(data), Filesize: int64(len(data)) + 1}
	err = s.Verify(e)
	var mismatch *ErrSizeMismatch
	if !asErrSizeMismatch(err, &mismatch) {
		t.Fatalf("got %T (%v), want *ErrSizeMismatch", err, err)
	}
	if _, statErr := os.Stat(s.Path(e)); !os.IsNotExist(statErr) {
		t.Error("expected corrupt artifact to be deleted")
	}
}

func TestVerifyDigestMismatchDeletesFile(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	data := []byte("some bytes")
	if err := s.Put("myapp-1.0.0.nupkg", data); err != nil {
		t.Fatalf("Put: %s", err)
	}
	e := manifest.Entry{Filename: "myapp-1.0.0.nupkg", SHA1: "deadbeef", Filesize: int64(len(data))}
	err = s.Verify(e)
	var mismatch *ErrDigestMismatch
	if !asErrDigestMismatch(err, &mismatch) {
		t.Fatalf("got %T (%v), want *ErrDigestMismatch", err, err)
	}
	if _, statErr := os.Stat(s.Path(e)); !os.IsNotExist(statErr) {
		t.Error("expected corrupt artifact to be deleted")
	}
}

func TestPutTwiceWithIdenticalContentIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	data := []byte("identical contents")
	if err := s.Put("myapp-1.0.0.nupkg", data); err != nil {
		t.Fatalf("Put: %s", err)
	}
	if err := s.Put("myapp-1.0.0.nupkg", data); err != nil {
		t.Fatalf("second Put: %s", err)
	}
	path := filepath.Join(s.Dir(), "myapp-1.0.0.nupkg")
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %s", err)
	}
	if string(got) != string(data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func asErrMissing(err error, target **ErrMissing) bool {
	if e, ok := err.(*ErrMissing); ok {
		*target = e
		return true
	}
	return false
}

func asErrSizeMismatch(err error, target **ErrSizeMismatch) bool {
	if e, ok := err.(*ErrSizeMismatch); ok {
		*target = e
		return true
	}
	return false
}

func asErrDigestMismatch(err error, target **ErrDigestMismatch) bool {
	if e, ok := err.(*ErrDigestMismatch); ok {
		*target = e
		return true
	}
	return false
}
