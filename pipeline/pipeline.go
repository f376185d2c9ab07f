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

// Package pipeline orchestrates check → download → verify → compose →
// install → publish under the global install lock, with progress
// reporting. Every exported method acquires the lock for the call's
// duration and always releases it, even on error paths, matching spec
// §4.9's "Finally" semantics.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/jeffora/Shimmer/delta"
	"github.com/jeffora/Shimmer/fetcher"
	"github.com/jeffora/Shimmer/installer"
	"github.com/jeffora/Shimmer/internal/pluginhost"
	"github.com/jeffora/Shimmer/internal/ulog"
	"github.com/jeffora/Shimmer/lock"
	"github.com/jeffora/Shimmer/manifest"
	"github.com/jeffora/Shimmer/planner"
	"github.com/jeffora/Shimmer/store"
)

const localCopyFanOut = 4

// ProgressSink receives a monotonically increasing percentage in [0, 100]
// over the lifetime of one pipeline call. It may be invoked from a
// worker goroutine and must be safe to call concurrently.
type ProgressSink func(percent int)

func noopSink(int) {}

// Pipeline is the update engine's top-level entry point.
type Pipeline struct {
	root               string
	store              *store.Store
	lockMgr            *lock.Manager
	fetcher            *fetcher.Fetcher
	applicator         delta.Applicator
	targetFramework    string
	pluginHostPath     string
	ignoreDeltaUpdates bool
}

// New constructs a Pipeline rooted at root.
func New(root string, f *fetcher.Fetcher, applicator delta.Applicator, targetFramework, pluginHostPath string, ignoreDeltaUpdates bool) (*Pipeline, error) {
	s, err := store.New(root)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't initialize package store")
	}
	return &Pipeline{
		root:               root,
		store:              s,
		lockMgr:            lock.NewManager(root),
		fetcher:            f,
		applicator:         applicator,
		targetFramework:    targetFramework,
		pluginHostPath:     pluginHostPath,
		ignoreDeltaUpdates: ignoreDeltaUpdates,
	}, nil
}

// WithLockTimeout overrides the install lock's default acquisition timeout,
// e.g. from config.Config's Install.LockTimeoutMS.
func (p *Pipeline) WithLockTimeout(d time.Duration) *Pipeline {
	p.lockMgr = p.lockMgr.WithTimeout(d)
	return p
}

func (p *Pipeline) localManifest() (manifest.Manifest, error) {
	releasesPath := filepath.Join(p.store.Dir(), "RELEASES")
	if _, err := os.Stat(releasesPath); os.IsNotExist(err) {
		return manifest.Manifest{}, nil
	}
	return manifest.ParseFile(releasesPath)
}

// CheckForUpdate computes the current UpdateInfo by diffing the local
// manifest against the remote one, or nil if no update is needed.
func (p *Pipeline) CheckForUpdate(ctx context.Context, progress ProgressSink) (*planner.UpdateInfo, error) {
	if progress == nil {
		progress = noopSink
	}

	h, err := p.lockMgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		progress(100)
		_ = h.Release()
	}()

	progress(10)

	local, err := p.localManifest()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't parse local manifest")
	}

	remoteText, err := p.fetcher.FetchManifest(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := manifest.Parse(strings.NewReader(remoteText))
	if err != nil {
		return nil, errors.Wrap(err, "couldn't parse remote manifest")
	}

	progress(50)

	return planner.Plan(local, remote, p.ignoreDeltaUpdates)
}

// DownloadReleases fetches and verifies every entry in entries into the
// package store. Copies are bounded by the fetcher's own fan-out;
// verification runs once all fetches are done, bounded to localCopyFanOut.
func (p *Pipeline) DownloadReleases(ctx context.Context, entries []manifest.Entry, progress ProgressSink) error {
	if progress == nil {
		progress = noopSink
	}

	h, err := p.lockMgr.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		progress(100)
		_ = h.Release()
	}()

	progress(10)

	if err := p.fetcher.FetchArtifacts(ctx, entries, p.store.Dir(), nil); err != nil {
		return err
	}

	progress(50)

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(localCopyFanOut)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			return p.store.Verify(e)
		})
	}
	return g.Wait()
}

// ApplyReleases runs the installer's state machine for plan and returns
// any launch path the hosted application requested.
func (p *Pipeline) ApplyReleases(ctx context.Context, plan *planner.UpdateInfo, progress ProgressSink) (launchPath string, err error) {
	if progress == nil {
		progress = noopSink
	}

	h, lerr := p.lockMgr.Acquire(ctx)
	if lerr != nil {
		return "", lerr
	}
	defer func() {
		progress(100)
		_ = h.Release()
	}()

	progress(10)

	in := installer.New(p.root, p.store, p.applicator, p.targetFramework, p.pluginHostPath)
	result, err := in.Install(plan)
	if err != nil {
		return "", err
	}

	progress(95)
	return result.LaunchPath, nil
}

// FullUninstall runs OnAppUninstall for every discovered AppSetup in the
// currently installed version, then removes the entire installation root.
func (p *Pipeline) FullUninstall(ctx context.Context) error {
	h, err := p.lockMgr.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = h.Release() }()

	local, err := p.localManifest()
	if err == nil {
		if current := local.CurrentVersion(); current != nil && p.pluginHostPath != "" {
			appDir := filepath.Join(p.root, "app-"+current.Version.String())
			req := pluginhost.HookRequest{OldVersionDirs: []string{appDir}, FullUninstall: true}
			if _, hookErr := pluginhost.Run(p.pluginHostPath, req, "OnAppUninstall"); hookErr != nil {
				ulog.Warning(ulog.Pipeline, "OnAppUninstall hook failed, continuing with removal: %s", hookErr)
			}
		}
	}

	return os.RemoveAll(p.root)
}

// UpdateLocalManifest rebuilds packages/RELEASES from the artifacts
// actually present on disk (C10).
func (p *Pipeline) UpdateLocalManifest(ctx context.Context) (manifest.Manifest, error) {
	h, err := p.lockMgr.Acquire(ctx)
	if err != nil {
		return manifest.Manifest{}, err
	}
	defer func() { _ = h.Release() }()

	rebuilt, err := manifest.Rebuild(p.store.Dir())
	if err != nil {
		return manifest.Manifest{}, err
	}
	releasesPath := filepath.Join(p.store.Dir(), "RELEASES")
	if err := manifest.WriteFile(releasesPath, rebuilt); err != nil {
		return manifest.Manifest{}, err
	}
	return rebuilt, nil
}
