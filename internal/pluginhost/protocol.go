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

// Package pluginhost is the subprocess isolation boundary for the
// AppSetup lifecycle hooks: the installer spawns cmd/shimmer-pluginhost,
// writes one HookRequest to its stdin, and reads one HookResponse from its
// stdout, keeping hosted-application code out of the engine's process.
package pluginhost

// HookRequest is sent to the plugin host subprocess as a single JSON
// document on stdin.
type HookRequest struct {
	InstallDir          string   `json:"installDir"`
	OldVersionDirs      []string `json:"oldVersionDirs"`
	NewVersion          string   `json:"newVersion"`
	IsBootstrapping     bool     `json:"isBootstrapping"`
	TombstonedShortcuts []string `json:"tombstonedShortcuts"`
	// FullUninstall, when set, tells the host to call OnAppUninstall on
	// every AppSetup discovered under OldVersionDirs instead of running
	// the normal OnVersionUninstalling/OnVersionInstalled install flow.
	FullUninstall bool `json:"fullUninstall"`
}

// HookResponse is read back from the plugin host subprocess's stdout as a
// single JSON document.
type HookResponse struct {
	LaunchPath       string   `json:"launchPath"`
	ShortcutsCreated []string `json:"shortcutsCreated"`
	Tombstones       []string `json:"tombstones"`
	Warning          string   `json:"warning"`
}
