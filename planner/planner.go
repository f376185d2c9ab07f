// Copyright © 2018 Intel Corporation
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

// Package planner diffs a local and a remote release manifest into an
// UpdateInfo plan: the minimal set of releases that must be downloaded and
// applied to bring the local installation up to date.
package planner

import (
	"fmt"

	"github.com/jeffora/Shimmer/manifest"
)

// ErrCorruptRemoteManifest is returned when the remote manifest is empty,
// or when the same filename appears in both manifests with two different
// digests (Open Question (b), resolved as corruption).
type ErrCorruptRemoteManifest struct{ Reason string }

func (e *ErrCorruptRemoteManifest) Error() string {
	return fmt.Sprintf("corrupt remote manifest: %s", e.Reason)
}

// UpdateInfo is the plan produced by Plan.
type UpdateInfo struct {
	CurrentlyInstalled *manifest.Entry
	ReleasesToApply    []manifest.Entry
	FutureRelease      manifest.Entry
	IsBootstrapping    bool
}

// Plan diffs localReleases against remoteReleases and returns the update
// plan, or nil if no update is needed.
//
// Known limitation (Open Question (a), preserved from the source system
// intentionally): "no update needed" is decided by comparing entry counts,
// which is fragile if a release is replaced in place with an equal count of
// entries. This mirrors the upstream behavior rather than fixing it.
func Plan(localReleases, remoteReleases manifest.Manifest, ignoreDeltaUpdates bool) (*UpdateInfo, error) {
	if len(remoteReleases.Entries) == 0 {
		return nil, &ErrCorruptRemoteManifest{Reason: "remote manifest has no entries"}
	}

	if err := checkIdentityCollisions(localReleases, remoteReleases); err != nil {
		return nil, err
	}

	if len(remoteReleases.Entries) == len(localReleases.Entries) {
		return nil, nil
	}

	remote := remoteReleases
	if ignoreDeltaUpdates {
		remote = filterDeltas(remote)
	}

	localCurrent := localReleases.CurrentVersion()
	remoteLatestFull := latestFull(remote)
	if remoteLatestFull == nil {
		return nil, &ErrCorruptRemoteManifest{Reason: "remote manifest has no full release"}
	}

	if localCurrent == nil {
		return &UpdateInfo{
			ReleasesToApply: []manifest.Entry{*remoteLatestFull},
			FutureRelease:   *remoteLatestFull,
			IsBootstrapping: true,
		}, nil
	}

	if !localCurrent.Version.Less(remoteLatestFull.Version) {
		return &UpdateInfo{
			CurrentlyInstalled: localCurrent,
			ReleasesToApply:    []manifest.Entry{*remoteLatestFull},
			FutureRelease:      *remoteLatestFull,
			IsBootstrapping:    false,
		}, nil
	}

	newer := newerThan(remote, localCurrent.Version)
	if len(newer) == 0 {
		return nil, nil
	}

	releasesToApply, future := chooseReleases(newer, remoteLatestFull)

	return &UpdateInfo{
		CurrentlyInstalled: localCurrent,
		ReleasesToApply:    releasesToApply,
		FutureRelease:      future,
		IsBootstrapping:    false,
	}, nil
}

// checkIdentityCollisions implements Open Question (b): the same filename
// appearing with two different digests across local and remote is corrupt.
func checkIdentityCollisions(local, remote manifest.Manifest) error {
	byName := make(map[string]string, len(local.Entries))
	for _, e := range local.Entries {
		byName[e.Filename] = e.SHA1
	}
	for _, e := range remote.Entries {
		if sha, ok := byName[e.Filename]; ok && sha != "" && e.SHA1 != "" && !equalFold(sha, e.SHA1) {
			return &ErrCorruptRemoteManifest{Reason: fmt.Sprintf("filename %q has conflicting digests locally and remotely", e.Filename)}
		}
	}
	return nil
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func filterDeltas(m manifest.Manifest) manifest.Manifest {
	var out manifest.Manifest
	for _, e := range m.Entries {
		if !e.IsDelta {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}

func latestFull(m manifest.Manifest) *manifest.Entry {
	var best *manifest.Entry
	for i := range m.Entries {
		e := &m.Entries[i]
		if e.IsDelta {
			continue
		}
		if best == nil || best.Version.Less(e.Version) {
			best = e
		}
	}
	return best
}

func newerThan(m manifest.Manifest, v manifest.Version) []manifest.Entry {
	var out []manifest.Entry
	for _, e := range m.Entries {
		if v.Less(e.Version) {
			out = append(out, e)
		}
	}
	return out
}

// chooseReleases implements spec §4.6 step 6: if the candidates newer than
// the installed version form a contiguous all-delta chain, the composer
// applies them all; otherwise the single largest full release wins.
func chooseReleases(candidates []manifest.Entry, latestFull *manifest.Entry) ([]manifest.Entry, manifest.Entry) {
	allDelta := true
	for _, e := range candidates {
		if !e.IsDelta {
			allDelta = false
			break
		}
	}
	if allDelta {
		sorted := manifest.Manifest{Entries: candidates}.Sorted()
		return sorted, sorted[len(sorted)-1]
	}

	var best manifest.Entry
	found := false
	for _, e := range candidates {
		if e.IsDelta {
			continue
		}
		if !found || best.Version.Less(e.Version) {
			best = e
			found = true
		}
	}
	if !found {
		best = *latestFull
	}
	return []manifest.Entry{best}, best
}
