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

package installer

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/jeffora/Shimmer/internal/stringset"
)

const tombstonesFilename = "tombstones.toml"

type tombstoneFile struct {
	Paths []string `toml:"Paths"`
}

// LoadTombstones reads the set of shortcut paths the user has deleted by
// hand from packagesDir/tombstones.toml. A missing file is not an error —
// it just means no shortcuts have been tombstoned yet.
func LoadTombstones(packagesDir string) ([]string, error) {
	path := filepath.Join(packagesDir, tombstonesFilename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	var tf tombstoneFile
	if _, err := toml.DecodeFile(path, &tf); err != nil {
		return nil, errors.Wrapf(err, "couldn't decode %s", path)
	}
	return tf.Paths, nil
}

// SaveTombstones persists paths (merged with whatever is already recorded)
// to packagesDir/tombstones.toml.
func SaveTombstones(packagesDir string, paths []string) error {
	existing, err := LoadTombstones(packagesDir)
	if err != nil {
		return err
	}

	set := stringset.New(existing...)
	set.Add(paths...)
	merged := set.Sort()

	path := filepath.Join(packagesDir, tombstonesFilename)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "couldn't create %s", path)
	}
	defer func() { _ = f.Close() }()

	enc := toml.NewEncoder(f)
	return enc.Encode(tombstoneFile{Paths: merged})
}
