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

package delta

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// applyTimeout bounds a single bspatch invocation.
const applyTimeout = 480 * time.Second

// BsdiffApplicator implements Applicator by shelling out to the system
// bspatch binary, the inverse of the bsdiff binary the original build
// tooling invokes for delta creation. It is a black box from Compose's
// point of view; only the three-file calling convention (old, patch, new)
// is assumed.
type BsdiffApplicator struct {
	// BinaryPath is the path to the bspatch executable. Empty means "bspatch"
	// resolved through PATH.
	BinaryPath string
}

// ApplyDelta writes base and delta to temporary files, invokes bspatch, and
// returns the resulting full package bytes.
func (a BsdiffApplicator) ApplyDelta(base, delta []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "shimmer-bspatch-")
	if err != nil {
		return nil, errors.Wrap(err, "couldn't create temp dir for bspatch")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	oldPath := filepath.Join(dir, "old")
	patchPath := filepath.Join(dir, "patch")
	newPath := filepath.Join(dir, "new")

	if err := os.WriteFile(oldPath, base, 0600); err != nil {
		return nil, errors.Wrap(err, "couldn't write base file for bspatch")
	}
	if err := os.WriteFile(patchPath, delta, 0600); err != nil {
		return nil, errors.Wrap(err, "couldn't write patch file for bspatch")
	}

	bin := a.BinaryPath
	if bin == "" {
		bin = "bspatch"
	}

	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, oldPath, patchPath, newPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, errors.Wrapf(err, "bspatch failed: %s", string(out))
	}

	result, err := os.ReadFile(newPath)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't read bspatch output")
	}
	return result, nil
}
