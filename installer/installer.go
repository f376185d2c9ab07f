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

// Package installer drives the per-install state machine: PREPARE,
// CLEAN_DEAD, COMPOSE_OR_PICK, EXTRACT, POST_INSTALL, REWRITE_MANIFEST.
package installer

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jeffora/Shimmer/delta"
	"github.com/jeffora/Shimmer/internal/fsutil"
	"github.com/jeffora/Shimmer/internal/pluginhost"
	"github.com/jeffora/Shimmer/internal/ulog"
	"github.com/jeffora/Shimmer/internal/vfs"
	"github.com/jeffora/Shimmer/manifest"
	"github.com/jeffora/Shimmer/planner"
	"github.com/jeffora/Shimmer/store"
)

const appDirPrefix = "app-"

// Installer performs the EXTRACT/POST_INSTALL/REWRITE_MANIFEST phases of a
// single applyReleases call. Directory-shape operations (PREPARE's mkdir,
// CLEAN_DEAD's app-* bookkeeping) go through fs, which never needs to read
// file contents; EXTRACT and REWRITE_MANIFEST still use the real package
// store and manifest codec directly, since those need actual bytes.
type Installer struct {
	root            string
	store           *store.Store
	applicator      delta.Applicator
	targetFramework string
	pluginHostPath  string
	fs              vfs.FileSystem
}

// Result is returned after a successful Install.
type Result struct {
	LaunchPath    string
	NewVersionDir string
	FinalManifest manifest.Manifest
}

// New constructs an Installer rooted at root, using s as the package store
// and applicator for delta composition. pluginHostPath is the path to the
// shimmer-pluginhost binary; an empty path skips POST_INSTALL entirely
// (useful for composing/extracting without a hosted application, e.g. in
// tests).
func New(root string, s *store.Store, applicator delta.Applicator, targetFramework, pluginHostPath string) *Installer {
	return &Installer{
		root:            root,
		store:           s,
		applicator:      applicator,
		targetFramework: targetFramework,
		pluginHostPath:  pluginHostPath,
		fs:              vfs.OS{},
	}
}

// WithFileSystem overrides the directory-shape filesystem Installer uses
// for PREPARE/CLEAN_DEAD, primarily so tests can exercise those phases
// against an in-memory vfs.Mem instead of the real disk.
func (in *Installer) WithFileSystem(fs vfs.FileSystem) *Installer {
	in.fs = fs
	return in
}

// Install runs the full state machine for plan and returns the resulting
// launch path (if the hosted application requested LaunchOnSetup).
func (in *Installer) Install(plan *planner.UpdateInfo) (*Result, error) {
	// PREPARE
	if err := in.fs.MkdirAll(in.store.Dir(), 0755); err != nil {
		return nil, errors.Wrap(err, "PREPARE: couldn't create packages directory")
	}

	// CLEAN_DEAD — best effort, never fatal.
	in.cleanDead(plan.CurrentlyInstalled)

	// COMPOSE_OR_PICK
	final, err := delta.Compose(in.store, in.applicator, plan.CurrentlyInstalled, plan.ReleasesToApply)
	if err != nil {
		return nil, errors.Wrap(err, "COMPOSE_OR_PICK")
	}

	// EXTRACT
	newDir := fsutil.VersionedAppDir(in.root, final.Version.String())
	if err := Extract(in.store.Path(final), newDir, in.targetFramework); err != nil {
		return nil, errors.Wrap(err, "EXTRACT")
	}

	// POST_INSTALL
	launchPath, err := in.postInstall(plan, newDir, final.Version.String())
	if err != nil {
		return nil, errors.Wrap(err, "POST_INSTALL")
	}

	// REWRITE_MANIFEST — publishes the install; must be last.
	rebuilt, err := manifest.Rebuild(in.store.Dir())
	if err != nil {
		return nil, errors.Wrap(err, "REWRITE_MANIFEST: couldn't rebuild manifest")
	}
	releasesPath := filepath.Join(in.store.Dir(), "RELEASES")
	if err := manifest.WriteFile(releasesPath, rebuilt); err != nil {
		return nil, errors.Wrap(err, "REWRITE_MANIFEST: couldn't write RELEASES")
	}

	return &Result{LaunchPath: launchPath, NewVersionDir: newDir, FinalManifest: rebuilt}, nil
}

func (in *Installer) cleanDead(currentlyInstalled *manifest.Entry) {
	entries, err := in.fs.ReadDir(in.root)
	if err != nil {
		return
	}
	keepVersion := ""
	if currentlyInstalled != nil {
		keepVersion = currentlyInstalled.Version.String()
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), appDirPrefix) {
			continue
		}
		version := strings.TrimPrefix(e.Name(), appDirPrefix)
		if version == keepVersion {
			continue
		}
		dir := filepath.Join(in.root, e.Name())
		if err := in.fs.RemoveAll(dir); err != nil {
			ulog.Warning(ulog.Installer, "CLEAN_DEAD: couldn't remove %s, will retry next run: %s", dir, err)
		}
	}
}

func (in *Installer) retiredVersionDirs(newDir string) []string {
	entries, err := in.fs.ReadDir(in.root)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), appDirPrefix) {
			continue
		}
		full := filepath.Join(in.root, e.Name())
		if full == newDir {
			continue
		}
		dirs = append(dirs, full)
	}
	return dirs
}

func (in *Installer) postInstall(plan *planner.UpdateInfo, newDir, newVersion string) (string, error) {
	if in.pluginHostPath == "" {
		return "", nil
	}

	req := pluginhost.HookRequest{
		InstallDir:      newDir,
		OldVersionDirs:  in.retiredVersionDirs(newDir),
		NewVersion:      newVersion,
		IsBootstrapping: plan.IsBootstrapping,
	}

	tombstones, err := LoadTombstones(in.store.Dir())
	if err != nil {
		ulog.Warning(ulog.Installer, "couldn't load tombstones, proceeding without them: %s", err)
	} else {
		req.TombstonedShortcuts = tombstones
	}

	resp, err := pluginhost.Run(in.pluginHostPath, req, "POST_INSTALL")
	if err != nil {
		return "", err
	}
	if resp.Warning != "" {
		ulog.Warning(ulog.Installer, "plugin host warning: %s", resp.Warning)
	}
	if len(resp.Tombstones) > 0 {
		if err := SaveTombstones(in.store.Dir(), resp.Tombstones); err != nil {
			ulog.Warning(ulog.Installer, "couldn't persist tombstones: %s", err)
		}
	}
	return resp.LaunchPath, nil
}
