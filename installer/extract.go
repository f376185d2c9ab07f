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
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mholt/archiver/v3"
	"github.com/pkg/errors"

	"github.com/jeffora/Shimmer/internal/fsutil"
	"github.com/jeffora/Shimmer/internal/ulog"
)

type stagedFile struct {
	archivePath string
	destPath    string
	data        []byte
}

// Extract stages every file under `lib/` in pkgPath whose framework profile
// is compatible with targetFramework into a scratch directory, then swaps
// it into place as destDir via fsutil.AtomicSwapDir, per spec §4.8's
// profile filter and crash-safety invariant: a crash mid-extract leaves
// either the previous destDir fully intact or the new one, never a
// half-written directory. Higher-profile variants overwrite lower-profile
// variants because files are staged in ascending archive-path order before
// being written.
func Extract(pkgPath, destDir, targetFramework string) error {
	stagingDir := destDir + ".staging"
	staleDir := destDir + ".stale"
	if err := os.RemoveAll(stagingDir); err != nil {
		return errors.Wrapf(err, "couldn't clear staging directory %s", stagingDir)
	}
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return errors.Wrapf(err, "couldn't create %s", stagingDir)
	}

	var staged []stagedFile
	z := archiver.NewZip()
	err := z.Walk(pkgPath, func(f archiver.File) error {
		if f.IsDir() {
			return nil
		}
		archivePath := zipEntryName(f)
		rel, ok := libRelativePath(archivePath)
		if !ok {
			return nil
		}
		if !profileMatches(rel, targetFramework) {
			return nil
		}
		destRel := stripProfileDir(rel)
		data, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		staged = append(staged, stagedFile{
			archivePath: archivePath,
			destPath:    filepath.Join(stagingDir, filepath.FromSlash(destRel)),
			data:        data,
		})
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "couldn't read package %s", pkgPath)
	}

	sort.Slice(staged, func(i, j int) bool { return staged[i].archivePath < staged[j].archivePath })

	// A later entry in ascending archive-path order overwrites an earlier
	// one at the same destPath, so the highest matching profile wins.
	final := map[string][]byte{}
	for _, s := range staged {
		final[s.destPath] = s.data
	}
	for destPath, data := range final {
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return errors.Wrapf(err, "couldn't create directory for %s", destPath)
		}
		if err := os.WriteFile(destPath, data, 0644); err != nil {
			return errors.Wrapf(err, "couldn't write %s", destPath)
		}
	}

	if err := fsutil.AtomicSwapDir(stagingDir, destDir, staleDir); err != nil {
		return errors.Wrapf(err, "couldn't swap %s into place", destDir)
	}
	if err := fsutil.RemoveStale(staleDir); err != nil {
		ulog.Warning(ulog.Installer, "couldn't remove stale directory %s, will retry next run: %s", staleDir, err)
	}
	return nil
}

func zipEntryName(f archiver.File) string {
	type named interface{ Name() string }
	if n, ok := f.Header.(named); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	return f.Name()
}

// libRelativePath returns the path relative to a leading "lib/" (or "lib\")
// segment, normalized to forward slashes, case-insensitively.
func libRelativePath(archivePath string) (string, bool) {
	normalized := strings.ReplaceAll(archivePath, "\\", "/")
	parts := strings.SplitN(normalized, "/", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "lib") {
		return "", false
	}
	return parts[1], true
}

// profileMatches implements spec §4.8's profile filter: the first path
// segment under lib/ names a framework profile ("netXX"); it matches if XX
// is numerically <= the target's XX, and "winrt45" never matches.
func profileMatches(relPath, targetFramework string) bool {
	segment := relPath
	if idx := strings.Index(relPath, "/"); idx >= 0 {
		segment = relPath[:idx]
	}
	if strings.EqualFold(segment, "winrt45") {
		return false
	}
	profileNum, ok := netProfileNumber(segment)
	if !ok {
		return false
	}
	targetNum, ok := netProfileNumber(targetFramework)
	if !ok {
		return false
	}
	return profileNum <= targetNum
}

func netProfileNumber(profile string) (int, bool) {
	if len(profile) < 4 || !strings.EqualFold(profile[:3], "net") {
		return 0, false
	}
	n, err := strconv.Atoi(profile[3:])
	if err != nil {
		return 0, false
	}
	return n, true
}

func stripProfileDir(relPath string) string {
	if idx := strings.Index(relPath, "/"); idx >= 0 {
		return relPath[idx+1:]
	}
	return relPath
}
