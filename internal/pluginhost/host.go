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
	"bytes"
	"encoding/json"
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// ErrHookThrew reports that the plugin host subprocess exited non-zero,
// corresponding to spec §7's HookThrew(setupType, phase) kind collapsed to
// the single subprocess boundary.
type ErrHookThrew struct {
	Phase string
	Cause error
}

func (e *ErrHookThrew) Error() string {
	return "plugin host hook threw during " + e.Phase + ": " + e.Cause.Error()
}

func (e *ErrHookThrew) Unwrap() error { return e.Cause }

// Run spawns the plugin host subprocess at hostPath, feeds it req as JSON
// on stdin, and decodes its stdout as a HookResponse. phase names the
// install-pipeline stage this call represents, used only for error context.
func Run(hostPath string, req HookRequest, phase string) (*HookResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't marshal hook request")
	}

	cmd := exec.Command(hostPath)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ErrHookThrew{Phase: phase, Cause: errors.Wrap(err, stderr.String())}
	}

	var resp HookResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, errors.Wrap(err, "couldn't decode hook response")
	}
	return &resp, nil
}

// HostPath returns the conventional location of the plugin host binary,
// alongside the engine's own executable.
func HostPath() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "couldn't locate own executable")
	}
	dir := self
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == os.PathSeparator {
			dir = dir[:i]
			break
		}
	}
	return dir + string(os.PathSeparator) + "shimmer-pluginhost", nil
}
