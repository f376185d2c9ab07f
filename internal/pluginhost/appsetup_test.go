// Copyright © 2020 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pluginhost

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverAppSetupsReadsSidecarAndFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()

	withSidecar := filepath.Join(dir, "MainApp.exe")
	if err := os.WriteFile(withSidecar, []byte("binary"), 0644); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}
	sidecar := withSidecar + ".appsetup.toml"
	toml := "ShortcutName = \"Main App\"\nLaunchOnSetup = true\nShortcuts = [\"Desktop\"]\n"
	if err := os.WriteFile(sidecar, []byte(toml), 0644); err != nil {
		t.Fatalf("WriteFile sidecar: %s", err)
	}

	withoutSidecar := filepath.Join(dir, "Helper.exe")
	if err := os.WriteFile(withoutSidecar, []byte("binary"), 0644); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("n/a"), 0644); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}

	setups, err := DiscoverAppSetups(dir)
	if err != nil {
		t.Fatalf("DiscoverAppSetups: %s", err)
	}
	if len(setups) != 2 {
		t.Fatalf("got %d setups, want 2: %+v", len(setups), setups)
	}

	// Sorted by Target: Helper.exe sorts before MainApp.exe.
	helper, main := setups[0], setups[1]

	if helper.ShortcutName != "Helper" || helper.Discovered {
		t.Errorf("got default setup %+v", helper)
	}
	if main.ShortcutName != "Main App" || !main.LaunchOnSetup || !main.Discovered {
		t.Errorf("got discovered setup %+v", main)
	}
	if len(main.ShortcutList) != 1 || main.ShortcutList[0] != "Desktop" {
		t.Errorf("got ShortcutList %+v", main.ShortcutList)
	}
}

func TestDefaultSetupDerivesNameFromFilename(t *testing.T) {
	s := defaultSetup(filepath.Join("C:", "Program Files", "MyApp", "MyApp.exe"))
	if s.ShortcutName != "MyApp" {
		t.Errorf("got ShortcutName %q, want MyApp", s.ShortcutName)
	}
	if s.Discovered {
		t.Error("expected Discovered to be false for a synthesized default")
	}
}
