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
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeffora/Shimmer/internal/fsutil"
)

// AppSetup is the capability a hosted application implements to participate
// in install/uninstall lifecycle events. Go has no reflective load of a
// foreign executable's types, so discovery reads a declarative sidecar file
// (`<exe>.appsetup.toml`) next to each artifact instead of scanning the
// binary; absent that file, a DefaultSetup is synthesized from the file
// name, mirroring spec §6's "synthesize a default from file-version
// metadata … falling back to the file name" for the one metadata source Go
// can read without a PE-parsing dependency the reference pack does not
// carry.
type AppSetup struct {
	ShortcutName   string   `toml:"ShortcutName"`
	Target         string   `toml:"Target"`
	LaunchOnSetup  bool     `toml:"LaunchOnSetup"`
	ShortcutList   []string `toml:"Shortcuts"`
	Discovered     bool     `toml:"-"`
}

// DiscoverAppSetups scans dir for `*.exe` artifacts and returns one
// AppSetup per artifact, sorted by Target for determinism.
func DiscoverAppSetups(dir string) ([]AppSetup, error) {
	names, err := fsutil.ListVisibleFiles(dir)
	if err != nil {
		return nil, err
	}

	var setups []AppSetup
	for _, name := range names {
		if !strings.EqualFold(filepath.Ext(name), ".exe") {
			continue
		}
		exePath := filepath.Join(dir, name)
		setups = append(setups, discoverOne(exePath))
	}
	sort.Slice(setups, func(i, j int) bool { return setups[i].Target < setups[j].Target })
	return setups, nil
}

func discoverOne(exePath string) AppSetup {
	sidecar := exePath + ".appsetup.toml"
	var setup AppSetup
	if _, err := toml.DecodeFile(sidecar, &setup); err == nil {
		setup.Target = exePath
		setup.Discovered = true
		return setup
	}
	return defaultSetup(exePath)
}

func defaultSetup(exePath string) AppSetup {
	name := strings.TrimSuffix(filepath.Base(exePath), filepath.Ext(exePath))
	return AppSetup{
		ShortcutName:  name,
		Target:        exePath,
		LaunchOnSetup: false,
	}
}
