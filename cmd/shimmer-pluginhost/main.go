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

// shimmer-pluginhost is the disposable process the installer spawns for
// POST_INSTALL. It never links against the engine's own packages beyond
// the small protocol and discovery types in internal/pluginhost, keeping
// the hosted application's code fully out of the engine's address space.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jeffora/Shimmer/internal/pluginhost"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "shimmer-pluginhost: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	var req pluginhost.HookRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		return fmt.Errorf("couldn't decode hook request: %w", err)
	}

	resp := pluginhost.HookResponse{}
	tombstones := map[string]bool{}
	for _, t := range req.TombstonedShortcuts {
		tombstones[t] = true
	}

	if req.FullUninstall {
		return runFullUninstall(req)
	}

	for _, oldDir := range req.OldVersionDirs {
		setups, err := pluginhost.DiscoverAppSetups(oldDir)
		if err != nil {
			continue
		}
		for _, s := range setups {
			if err := invokeHook(s.Target, "OnVersionUninstalling", oldVersionFromDir(oldDir)); err != nil {
				resp.Warning = err.Error()
				continue
			}
			for _, sc := range s.ShortcutList {
				if !pathExists(sc) {
					tombstones[sc] = true
				}
			}
		}
	}

	setups, err := pluginhost.DiscoverAppSetups(req.InstallDir)
	if err != nil {
		resp.Warning = err.Error()
		setups = nil
	}

	for _, s := range setups {
		if req.IsBootstrapping {
			if err := invokeHook(s.Target, "OnAppInstall", ""); err != nil {
				return err
			}
		}
		if err := invokeHook(s.Target, "OnVersionInstalled", req.NewVersion); err != nil {
			return err
		}
		for _, sc := range s.ShortcutList {
			if tombstones[sc] {
				continue
			}
			resp.ShortcutsCreated = append(resp.ShortcutsCreated, rewriteShortcutTarget(sc, req.InstallDir))
		}
		if s.LaunchOnSetup && resp.LaunchPath == "" {
			resp.LaunchPath = s.Target
		}
	}

	for t := range tombstones {
		resp.Tombstones = append(resp.Tombstones, t)
	}

	return json.NewEncoder(os.Stdout).Encode(resp)
}

// runFullUninstall calls OnAppUninstall on every AppSetup discovered under
// req.OldVersionDirs, per spec §6: "OnAppUninstall() — called once on
// complete uninstall". A hook that throws here is logged as a warning and
// swallowed (spec §7: HookThrew is non-fatal on uninstall), since a broken
// old version must never block removal.
func runFullUninstall(req pluginhost.HookRequest) error {
	resp := pluginhost.HookResponse{}
	for _, oldDir := range req.OldVersionDirs {
		setups, err := pluginhost.DiscoverAppSetups(oldDir)
		if err != nil {
			continue
		}
		for _, s := range setups {
			if err := invokeHook(s.Target, "OnAppUninstall", ""); err != nil {
				resp.Warning = err.Error()
			}
		}
	}
	return json.NewEncoder(os.Stdout).Encode(resp)
}

// invokeHook runs target with the documented hook-invocation convention:
// `target --shimmer-hook=<hook> [--version=<version>]`. A hosted
// application that doesn't understand the flag is expected to exit 0
// without side effects; a nonzero exit is treated as the hook throwing.
func invokeHook(target, hook, version string) error {
	if target == "" {
		return nil
	}
	args := []string{"--shimmer-hook=" + hook}
	if version != "" {
		args = append(args, "--version="+version)
	}
	cmd := exec.Command(target, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hook %s on %s: %w", hook, target, err)
	}
	return nil
}

func oldVersionFromDir(dir string) string {
	base := filepath.Base(dir)
	const prefix = "app-"
	if len(base) > len(prefix) && base[:len(prefix)] == prefix {
		return base[len(prefix):]
	}
	return base
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// rewriteShortcutTarget preserves the relative subpath of a shortcut
// target under the new install directory, per spec §4.8's pinned-shortcut
// fix: the part of the path below its app-<version> directory is kept. A
// target that is not inside any app-<version> directory keeps only its
// file name.
func rewriteShortcutTarget(shortcutTarget, newInstallDir string) string {
	parts := strings.Split(filepath.ToSlash(shortcutTarget), "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if strings.HasPrefix(parts[i], "app-") {
			return filepath.Join(append([]string{newInstallDir}, parts[i+1:]...)...)
		}
	}
	return filepath.Join(newInstallDir, filepath.Base(shortcutTarget))
}
