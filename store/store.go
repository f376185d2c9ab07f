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

// Package store owns the on-disk packages/ directory: it verifies
// downloaded release artifacts by length and SHA-1 digest, evicting
// corrupt files so a later retry can re-download them cleanly.
package store

import (
	"crypto/sha1" //nolint:gosec // release integrity is SHA-1 by spec, not a security boundary
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jeffora/Shimmer/manifest"
)

// ErrMissing is returned by Verify when the expected artifact file is absent.
type ErrMissing struct{ Filename string }

func (e *ErrMissing) Error() string { return fmt.Sprintf("artifact missing: %s", e.Filename) }

// ErrSizeMismatch is returned by Verify when the on-disk length disagrees
// with the recorded filesize. The offending file has already been deleted.
type ErrSizeMismatch struct {
	Filename           string
	Expected, Got int64
}

func (e *ErrSizeMismatch) Error() string {
	return fmt.Sprintf("size mismatch for %s: expected %d, got %d", e.Filename, e.Expected, e.Got)
}

// ErrDigestMismatch is returned by Verify when the computed SHA-1 disagrees
// with the recorded digest. The offending file has already been deleted.
type ErrDigestMismatch struct {
	Filename            string
	Expected, Got string
}

func (e *ErrDigestMismatch) Error() string {
	return fmt.Sprintf("digest mismatch for %s: expected %s, got %s", e.Filename, e.Expected, e.Got)
}

// Store owns <root>/packages/.
type Store struct {
	dir string
}

// New returns a Store rooted at <root>/packages, creating the directory if
// it does not yet exist (PREPARE, spec §4.8).
func New(root string) (*Store, error) {
	dir := filepath.Join(root, "packages")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "couldn't create package directory %s", dir)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the packages/ directory path.
func (s *Store) Dir() string { return s.dir }

// Path returns the expected absolute path for e.
func (s *Store) Path(e manifest.Entry) string {
	return filepath.Join(s.dir, strings.ToLower(e.Filename))
}

// Put atomically writes data to packages/<name>. If a file with that name
// already exists with matching digest and size the write is skipped, per
// spec §4.3.
func (s *Store) Put(name string, data []byte) error {
	name = strings.ToLower(name)
	dest := filepath.Join(s.dir, name)

	if fi, err := os.Stat(dest); err == nil && fi.Size() == int64(len(data)) {
		sum := sha1Hex(data)
		if existing, herr := hashFile(dest); herr == nil && existing == sum {
			return nil
		}
	}

	tmp := dest + ".downloading"
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "couldn't create temporary artifact %s", tmp)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "couldn't write artifact %s", tmp)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "couldn't close temporary artifact")
	}
	if err := os.Rename(tmp, dest); err != nil {
		return errors.Wrapf(err, "couldn't publish artifact %s", dest)
	}
	return nil
}

// Verify opens packages/<entry.Filename> and checks its length and SHA-1
// against the recorded values. On mismatch the offending file is deleted
// before the error is returned, so a retry re-downloads cleanly (spec §4.3).
func (s *Store) Verify(e manifest.Entry) error {
	path := s.Path(e)
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ErrMissing{Filename: e.Filename}
		}
		return errors.Wrapf(err, "couldn't stat artifact %s", path)
	}

	if fi.Size() != e.Filesize {
		_ = os.Remove(path)
		return &ErrSizeMismatch{Filename: e.Filename, Expected: e.Filesize, Got: fi.Size()}
	}

	sum, err := hashFile(path)
	if err != nil {
		return errors.Wrapf(err, "couldn't hash artifact %s", path)
	}
	if !strings.EqualFold(sum, e.SHA1) {
		_ = os.Remove(path)
		return &ErrDigestMismatch{Filename: e.Filename, Expected: e.SHA1, Got: sum}
	}
	return nil
}

func sha1Hex(data []byte) string {
	h := sha1.Sum(data) //nolint:gosec
	return fmt.Sprintf("%x", h)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha1.New() //nolint:gosec
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
