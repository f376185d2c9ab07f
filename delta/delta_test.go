package delta

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/jeffora/Shimmer/manifest"
	"github.com/jeffora/Shimmer/store"
)

// buildDeltaZip produces a minimal delta package carrying only the
// BaseVersionFile sidecar entry, for exercising Compose's fail-fast check.
func buildDeltaZip(t *testing.T, baseVersion string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(BaseVersionFile)
	if err != nil {
		t.Fatalf("zip Create: %s", err)
	}
	if _, err := w.Write([]byte(baseVersion)); err != nil {
		t.Fatalf("zip Write: %s", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close: %s", err)
	}
	return buf.Bytes()
}

// fakeApplicator concatenates base and delta, standing in for the real
// binary-patch algorithm, which is a black box per spec §1.
type fakeApplicator struct {
	calls [][2]string
	fail  bool
}

func (f *fakeApplicator) ApplyDelta(base, delta []byte) ([]byte, error) {
	if f.fail {
		return nil, errBoom
	}
	f.calls = append(f.calls, [2]string{string(base), string(delta)})
	out := append(append([]byte{}, base...), delta...)
	return out, nil
}

var errBoom = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func newStoreWithFile(t *testing.T, name string, data []byte) *store.Store {
	t.Helper()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %s", err)
	}
	if err := s.Put(name, data); err != nil {
		t.Fatalf("Put: %s", err)
	}
	return s
}

func TestComposeSingleFullReturnsItUnchanged(t *testing.T) {
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %s", err)
	}
	full := manifest.Entry{Filename: "myapp-1.0.0.nupkg", Version: manifest.Version{1, 0, 0, 0}}
	got, err := Compose(s, &fakeApplicator{}, nil, []manifest.Entry{full})
	if err != nil {
		t.Fatalf("Compose: %s", err)
	}
	if got != full {
		t.Errorf("got %+v, want %+v", got, full)
	}
}

func TestComposeMixedFullAndDeltaRejected(t *testing.T) {
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %s", err)
	}
	entries := []manifest.Entry{
		{Filename: "a-1.0.0.nupkg", IsDelta: false},
		{Filename: "a-1.1.0-delta.nupkg", IsDelta: true},
	}
	_, err = Compose(s, &fakeApplicator{}, nil, entries)
	if _, ok := err.(*ErrMixedFullAndDelta); !ok {
		t.Fatalf("got %T (%v), want *ErrMixedFullAndDelta", err, err)
	}
}

func TestComposeDeltaChainAppliesInOrder(t *testing.T) {
	s := newStoreWithFile(t, "myapp-1.0.0.nupkg", []byte("base"))
	if err := s.Put("myapp-1.1.0-delta.nupkg", []byte("d1")); err != nil {
		t.Fatalf("Put d1: %s", err)
	}
	if err := s.Put("myapp-1.2.0-delta.nupkg", []byte("d2")); err != nil {
		t.Fatalf("Put d2: %s", err)
	}

	current := manifest.Entry{Filename: "myapp-1.0.0.nupkg", Version: manifest.Version{1, 0, 0, 0}}
	deltas := []manifest.Entry{
		{Filename: "myapp-1.2.0-delta.nupkg", Version: manifest.Version{1, 2, 0, 0}, IsDelta: true},
		{Filename: "myapp-1.1.0-delta.nupkg", Version: manifest.Version{1, 1, 0, 0}, IsDelta: true},
	}

	app := &fakeApplicator{}
	final, err := Compose(s, app, &current, deltas)
	if err != nil {
		t.Fatalf("Compose: %s", err)
	}
	if final.Filename != "myapp-1.2.0.nupkg" {
		t.Errorf("got filename %q, want myapp-1.2.0.nupkg", final.Filename)
	}
	if final.Version != (manifest.Version{1, 2, 0, 0}) {
		t.Errorf("got version %v, want 1.2.0.0", final.Version)
	}
	if len(app.calls) != 2 {
		t.Fatalf("expected 2 applications, got %d", len(app.calls))
	}
	if app.calls[0][0] != "base" || app.calls[0][1] != "d1" {
		t.Errorf("first application got %+v, want base applied with d1 first", app.calls[0])
	}
	if app.calls[1][0] != "based1" || app.calls[1][1] != "d2" {
		t.Errorf("second application got %+v, want prior result applied with d2", app.calls[1])
	}

	composedPath := s.Path(manifest.Entry{Filename: "myapp-1.2.0.nupkg"})
	data, err := readFile(composedPath)
	if err != nil {
		t.Fatalf("readFile: %s", err)
	}
	if !bytes.Equal(data, []byte("based1d2")) {
		t.Errorf("got composed bytes %q, want %q", data, "based1d2")
	}
}

func TestComposeDeltaChainWithoutCurrentVersionFails(t *testing.T) {
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %s", err)
	}
	deltas := []manifest.Entry{{Filename: "a-1.1.0-delta.nupkg", IsDelta: true}}
	_, err = Compose(s, &fakeApplicator{}, nil, deltas)
	if err == nil {
		t.Fatal("expected error when composing deltas without a currently installed release")
	}
}

func TestComposeRejectsOutOfOrderDeltaViaBaseVersionSidecar(t *testing.T) {
	s := newStoreWithFile(t, "myapp-1.0.0.nupkg", []byte("base"))
	// This delta's sidecar claims it was built against 1.5.0.0, not the
	// installed 1.0.0.0 — an out-of-order chain.
	if err := s.Put("myapp-1.1.0-delta.nupkg", buildDeltaZip(t, "1.5.0.0")); err != nil {
		t.Fatalf("Put delta: %s", err)
	}

	current := manifest.Entry{Filename: "myapp-1.0.0.nupkg", Version: manifest.Version{1, 0, 0, 0}}
	deltas := []manifest.Entry{{Filename: "myapp-1.1.0-delta.nupkg", Version: manifest.Version{1, 1, 0, 0}, IsDelta: true}}

	_, err := Compose(s, &fakeApplicator{}, &current, deltas)
	mismatch, ok := err.(*ErrDeltaBaseMismatch)
	if !ok {
		t.Fatalf("got %T (%v), want *ErrDeltaBaseMismatch", err, err)
	}
	if mismatch.Expected != (manifest.Version{1, 0, 0, 0}) {
		t.Errorf("got Expected %v, want 1.0.0.0", mismatch.Expected)
	}
	if mismatch.Found != (manifest.Version{1, 5, 0, 0}) {
		t.Errorf("got Found %v, want 1.5.0.0", mismatch.Found)
	}
}

func TestComposeAcceptsDeltaWithMatchingBaseVersionSidecar(t *testing.T) {
	s := newStoreWithFile(t, "myapp-1.0.0.nupkg", []byte("base"))
	if err := s.Put("myapp-1.1.0-delta.nupkg", buildDeltaZip(t, "1.0.0.0")); err != nil {
		t.Fatalf("Put delta: %s", err)
	}

	current := manifest.Entry{Filename: "myapp-1.0.0.nupkg", Version: manifest.Version{1, 0, 0, 0}}
	deltas := []manifest.Entry{{Filename: "myapp-1.1.0-delta.nupkg", Version: manifest.Version{1, 1, 0, 0}, IsDelta: true}}

	final, err := Compose(s, &fakeApplicator{}, &current, deltas)
	if err != nil {
		t.Fatalf("Compose: %s", err)
	}
	if final.Filename != "myapp-1.1.0.nupkg" {
		t.Errorf("got filename %q, want myapp-1.1.0.nupkg", final.Filename)
	}
}

func TestComposeApplicationFailureIsFatal(t *testing.T) {
	s := newStoreWithFile(t, "myapp-1.0.0.nupkg", []byte("base"))
	if err := s.Put("myapp-1.1.0-delta.nupkg", []byte("d1")); err != nil {
		t.Fatalf("Put: %s", err)
	}
	current := manifest.Entry{Filename: "myapp-1.0.0.nupkg", Version: manifest.Version{1, 0, 0, 0}}
	deltas := []manifest.Entry{{Filename: "myapp-1.1.0-delta.nupkg", Version: manifest.Version{1, 1, 0, 0}, IsDelta: true}}

	_, err := Compose(s, &fakeApplicator{fail: true}, &current, deltas)
	if _, ok := err.(*ErrDeltaApplicationFailed); !ok {
		t.Fatalf("got %T (%v), want *ErrDeltaApplicationFailed", err, err)
	}
}
