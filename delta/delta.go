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

// Package delta reduces a chain of delta releases against a base full
// package into a single full package artifact, calling out to an injected
// binary-patch applicator that the core treats as a black box.
package delta

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/jeffora/Shimmer/manifest"
	"github.com/jeffora/Shimmer/store"
)

// ErrMixedFullAndDelta is returned when releasesToApply contains both full
// and delta entries, which spec §4.7 forbids.
type ErrMixedFullAndDelta struct{}

func (e *ErrMixedFullAndDelta) Error() string {
	return "cannot compose a release chain mixing full and delta packages"
}

// ErrDeltaApplicationFailed wraps a failure from the injected Applicator.
type ErrDeltaApplicationFailed struct {
	Version manifest.Version
	Cause   error
}

func (e *ErrDeltaApplicationFailed) Error() string {
	return fmt.Sprintf("delta application failed for version %s: %s", e.Version, e.Cause)
}

func (e *ErrDeltaApplicationFailed) Unwrap() error { return e.Cause }

// ErrDeltaBaseMismatch is returned when a delta's BaseVersionFile sidecar
// names a base version other than the one Compose is about to apply it
// over, catching an out-of-order chain before it reaches the applicator.
type ErrDeltaBaseMismatch struct {
	Delta    manifest.Version
	Expected manifest.Version
	Found    manifest.Version
}

func (e *ErrDeltaBaseMismatch) Error() string {
	return fmt.Sprintf("delta %s was built against base %s, but the current base is %s", e.Delta, e.Found, e.Expected)
}

// Applicator applies a single delta over a base full package and returns
// the resulting full package's bytes. It is the black-box `applyDelta`
// operation from spec §1; its binary-patch algorithm is out of scope here.
type Applicator interface {
	ApplyDelta(base []byte, delta []byte) ([]byte, error)
}

// Compose implements spec §4.7: releasesToApply must be either all full or
// all delta (with currentlyInstalled non-nil for the all-delta case).
// Returns the final full-package manifest.Entry, already Put into s.
func Compose(s *store.Store, applicator Applicator, currentlyInstalled *manifest.Entry, releasesToApply []manifest.Entry) (manifest.Entry, error) {
	if len(releasesToApply) == 0 {
		return manifest.Entry{}, errors.New("no releases to compose")
	}

	allFull, allDelta := true, true
	for _, e := range releasesToApply {
		if e.IsDelta {
			allFull = false
		} else {
			allDelta = false
		}
	}
	if !allFull && !allDelta {
		return manifest.Entry{}, &ErrMixedFullAndDelta{}
	}

	if allFull {
		// Single full release: nothing to compose, it is already the
		// chosen artifact.
		return releasesToApply[len(releasesToApply)-1], nil
	}

	if currentlyInstalled == nil {
		return manifest.Entry{}, errors.New("delta chain requires a currently installed release")
	}

	base, err := readFile(s.Path(*currentlyInstalled))
	if err != nil {
		return manifest.Entry{}, errors.Wrap(err, "couldn't read base package for delta composition")
	}

	ordered := manifest.Manifest{Entries: releasesToApply}.Sorted()

	expectedBase := currentlyInstalled.Version

	var final manifest.Entry
	for _, d := range ordered {
		deltaPath := s.Path(d)

		// BaseVersionFile is optional sidecar metadata (see peek.go); a
		// delta built without it, or not readable as a zip, skips the
		// check rather than failing composition.
		if baseVersion, err := PeekBaseVersion(deltaPath); err == nil {
			if found, err := manifest.ParseVersion(baseVersion); err == nil && found != expectedBase {
				return manifest.Entry{}, &ErrDeltaBaseMismatch{Delta: d.Version, Expected: expectedBase, Found: found}
			}
		}

		deltaBytes, err := readFile(deltaPath)
		if err != nil {
			return manifest.Entry{}, errors.Wrapf(err, "couldn't read delta package %s", d.Filename)
		}

		composed, err := applicator.ApplyDelta(base, deltaBytes)
		if err != nil {
			return manifest.Entry{}, &ErrDeltaApplicationFailed{Version: d.Version, Cause: err}
		}

		outName := manifest.FullFilename(d.Filename)
		if err := s.Put(outName, composed); err != nil {
			return manifest.Entry{}, errors.Wrapf(err, "couldn't write composed package %s", outName)
		}

		final = manifest.Entry{
			SHA1:     sha1Hex(composed),
			Filename: outName,
			Filesize: int64(len(composed)),
			Version:  d.Version,
			IsDelta:  false,
		}
		base = composed
		expectedBase = d.Version
	}

	return final, nil
}
