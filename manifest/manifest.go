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

package manifest

import (
	"bufio"
	"crypto/sha1" //nolint:gosec // release integrity is SHA-1 by spec, not a security boundary
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CorruptManifest reports a malformed RELEASES line. The decoder never
// returns a partial Manifest alongside this error, per spec §4.1.
type CorruptManifest struct {
	Line int
	Text string
}

func (e *CorruptManifest) Error() string {
	return fmt.Sprintf("corrupt manifest at line %d: %q", e.Line, e.Text)
}

// Manifest is an ordered sequence of release entries. Duplicate filenames
// are permitted; they denote historical full releases superseded by deltas.
type Manifest struct {
	Entries []Entry
}

// Parse decodes the RELEASES text format described in spec §4.1: one entry
// per line as "<sha1> <filename> <filesize>", blank lines and lines
// beginning with "#" ignored.
func Parse(r io.Reader) (Manifest, error) {
	var m Manifest
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return Manifest{}, &CorruptManifest{Line: lineNo, Text: line}
		}
		sha1hex, filename, sizeStr := fields[0], fields[1], fields[2]
		size, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil || size < 0 {
			return Manifest{}, &CorruptManifest{Line: lineNo, Text: line}
		}
		_, version, isDelta, err := ParseFilename(filename)
		if err != nil {
			return Manifest{}, &CorruptManifest{Line: lineNo, Text: line}
		}
		m.Entries = append(m.Entries, Entry{
			SHA1:     sha1hex,
			Filename: strings.ToLower(filename),
			Filesize: size,
			Version:  version,
			IsDelta:  isDelta,
		})
	}
	if err := scanner.Err(); err != nil {
		return Manifest{}, errors.Wrap(err, "failed reading manifest")
	}
	return m, nil
}

// ParseFile reads and parses the manifest at path.
func ParseFile(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "couldn't open manifest %s", path)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Serialize writes m in the caller-supplied order, one "\n"-terminated line
// per entry, UTF-8 without BOM, per spec §4.1.
func Serialize(w io.Writer, m Manifest) error {
	for _, e := range m.Entries {
		if _, err := fmt.Fprintf(w, "%s %s %d\n", e.SHA1, e.Filename, e.Filesize); err != nil {
			return errors.Wrap(err, "failed writing manifest entry")
		}
	}
	return nil
}

// WriteFile atomically writes m to path.
func WriteFile(path string, m Manifest) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "couldn't create temporary manifest %s", tmp)
	}
	if err := Serialize(f, m); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "couldn't close temporary manifest")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "couldn't publish manifest %s", path)
	}
	return nil
}

// CurrentVersion returns the largest version among non-delta entries, or
// nil if there is none (an empty/bootstrap manifest).
func (m Manifest) CurrentVersion() *Entry {
	var best *Entry
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

// Sorted returns a copy of m's entries ordered ascending by version, then by
// IsDelta=false first, per spec §4.2 and §4.10.
func (m Manifest) Sorted() []Entry {
	out := make([]Entry, len(m.Entries))
	copy(out, m.Entries)
	sort.Stable(byReleaseOrder(out))
	return out
}

// Rebuild regenerates a manifest by enumerating "*.nupkg" files under dir
// and hashing each, per spec §4.10. Ordering is ascending by version, then
// non-delta before delta.
func Rebuild(dir string) (Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "couldn't list package directory %s", dir)
	}

	var m Manifest
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(strings.ToLower(de.Name()), ".nupkg") {
			continue
		}
		_, version, isDelta, err := ParseFilename(de.Name())
		if err != nil {
			continue // not a release-shaped file, ignore
		}
		path := filepath.Join(dir, de.Name())
		sum, size, err := hashFile(path)
		if err != nil {
			return Manifest{}, err
		}
		m.Entries = append(m.Entries, Entry{
			SHA1:     sum,
			Filename: strings.ToLower(de.Name()),
			Filesize: size,
			Version:  version,
			IsDelta:  isDelta,
		})
	}
	m.Entries = m.Sorted()
	return m, nil
}

func hashFile(path string) (sum string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, errors.Wrapf(err, "couldn't open %s", path)
	}
	defer func() { _ = f.Close() }()

	h := sha1.New() //nolint:gosec
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, errors.Wrapf(err, "couldn't hash %s", path)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), n, nil
}
