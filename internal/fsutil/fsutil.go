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

// Package fsutil collects the small filesystem primitives the installer and
// plugin host need: directory listing, and the atomic directory-rotation
// trick that makes an install-in-place crash safe.
package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// ListVisibleFiles returns the sorted, non-dotfile entry names of dirname.
func ListVisibleFiles(dirname string) ([]string, error) {
	f, err := os.Open(dirname)
	if err != nil {
		return nil, err
	}
	names, err := f.Readdirnames(-1)
	_ = f.Close()
	if err != nil && err != io.EOF {
		return nil, err
	}
	filtered := make([]string, 0, len(names))
	for _, n := range names {
		if len(n) > 0 && n[0] != '.' {
			filtered = append(filtered, n)
		}
	}
	sort.Strings(filtered)
	return filtered, nil
}

// AtomicSwapDir installs newDir as finalDir, keeping whatever previously sat
// at finalDir (if anything) at staleDir so a crash mid-swap leaves either the
// old install or the new one fully intact, never a half-written directory
// (spec §4.8 crash-safety invariant).
func AtomicSwapDir(newDir, finalDir, staleDir string) error {
	if _, err := os.Stat(finalDir); err == nil {
		if err := os.RemoveAll(staleDir); err != nil {
			return errors.Wrapf(err, "couldn't clear stale directory %s", staleDir)
		}
		if err := os.Rename(finalDir, staleDir); err != nil {
			return errors.Wrapf(err, "couldn't move %s aside to %s", finalDir, staleDir)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "couldn't stat %s", finalDir)
	}

	if err := os.Rename(newDir, finalDir); err != nil {
		return errors.Wrapf(err, "couldn't rename %s to %s", newDir, finalDir)
	}
	return nil
}

// RemoveStale deletes a directory left behind by an interrupted or
// completed AtomicSwapDir. It is a no-op if the directory does not exist.
func RemoveStale(staleDir string) error {
	err := os.RemoveAll(staleDir)
	if err != nil {
		return errors.Wrapf(err, "couldn't remove stale directory %s", staleDir)
	}
	return nil
}

// VersionedAppDir returns the conventional "app-<version>" directory name
// used for each installed release under root.
func VersionedAppDir(root, version string) string {
	return filepath.Join(root, "app-"+version)
}
