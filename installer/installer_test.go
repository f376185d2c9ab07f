package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jeffora/Shimmer/internal/vfs"
	"github.com/jeffora/Shimmer/manifest"
	"github.com/jeffora/Shimmer/planner"
	"github.com/jeffora/Shimmer/store"
)

// S1 — bootstrap install, no plugin host configured.
func TestInstallBootstrap(t *testing.T) {
	root := t.TempDir()
	s, err := store.New(root)
	if err != nil {
		t.Fatalf("store.New: %s", err)
	}

	pkgPath := filepath.Join(root, "pkg.nupkg")
	writeTestPackage(t, pkgPath, map[string]string{"lib/net40/app.dll": "bits"})
	pkgData, err := os.ReadFile(pkgPath)
	if err != nil {
		t.Fatalf("ReadFile: %s", err)
	}
	if err := s.Put("MyApp-1.0.0.nupkg", pkgData); err != nil {
		t.Fatalf("Put: %s", err)
	}

	full := manifest.Entry{Filename: "MyApp-1.0.0.nupkg", Version: manifest.Version{1, 0, 0, 0}}
	plan := &planner.UpdateInfo{
		CurrentlyInstalled: nil,
		ReleasesToApply:    []manifest.Entry{full},
		FutureRelease:      full,
		IsBootstrapping:    true,
	}

	in := New(root, s, nil, "net40", "")
	result, err := in.Install(plan)
	if err != nil {
		t.Fatalf("Install: %s", err)
	}

	appDir := filepath.Join(root, "app-1.0.0.0")
	if _, err := os.Stat(filepath.Join(appDir, "app.dll")); err != nil {
		t.Errorf("expected extracted app.dll, got err=%v", err)
	}
	if result.NewVersionDir != appDir {
		t.Errorf("got NewVersionDir %q, want %q", result.NewVersionDir, appDir)
	}

	releasesPath := filepath.Join(s.Dir(), "RELEASES")
	m, err := manifest.ParseFile(releasesPath)
	if err != nil {
		t.Fatalf("ParseFile: %s", err)
	}
	if len(m.Entries) != 1 || m.Entries[0].Filename != "myapp-1.0.0.nupkg" {
		t.Errorf("got manifest %+v, want single myapp-1.0.0.nupkg entry", m.Entries)
	}
}

func TestCleanDeadRemovesStaleVersionsOnly(t *testing.T) {
	root := t.TempDir()
	s, err := store.New(root)
	if err != nil {
		t.Fatalf("store.New: %s", err)
	}
	for _, v := range []string{"app-1.0.0.0", "app-0.9.0.0"} {
		if err := os.MkdirAll(filepath.Join(root, v), 0755); err != nil {
			t.Fatalf("MkdirAll: %s", err)
		}
	}

	in := New(root, s, nil, "net40", "")
	current := manifest.Entry{Version: manifest.Version{1, 0, 0, 0}}
	in.cleanDead(&current)

	if _, err := os.Stat(filepath.Join(root, "app-1.0.0.0")); err != nil {
		t.Errorf("expected current version kept, got err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "app-0.9.0.0")); !os.IsNotExist(err) {
		t.Errorf("expected stale version removed, got err=%v", err)
	}
}

func TestCleanDeadAgainstInMemoryFileSystem(t *testing.T) {
	root := "/install"
	mem := vfs.NewMem()
	for _, v := range []string{"app-1.0.0.0", "app-0.9.0.0"} {
		if err := mem.MkdirAll(filepath.Join(root, v), 0755); err != nil {
			t.Fatalf("MkdirAll: %s", err)
		}
	}

	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %s", err)
	}
	in := New(root, s, nil, "net40", "").WithFileSystem(mem)

	current := manifest.Entry{Version: manifest.Version{1, 0, 0, 0}}
	in.cleanDead(&current)

	if _, err := mem.Stat(filepath.Join(root, "app-1.0.0.0")); err != nil {
		t.Errorf("expected current version kept, got err=%v", err)
	}
	if _, err := mem.Stat(filepath.Join(root, "app-0.9.0.0")); !os.IsNotExist(err) {
		t.Errorf("expected stale version removed, got err=%v", err)
	}
}
