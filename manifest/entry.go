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

// Package manifest parses and serializes the RELEASES manifest format and
// the version/filename rules release filenames must follow.
package manifest

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// deltaSuffix marks a release as a delta package, per spec §3.
const deltaSuffix = "-delta.nupkg"
const fullSuffix = ".nupkg"

// Version is a four-component release version, major.minor.build.revision.
// Trailing components default to zero when absent from a filename.
type Version struct {
	Major, Minor, Build, Revision uint64
}

// Compare returns -1, 0 or 1 if v is less than, equal to, or greater than o.
func (v Version) Compare(o Version) int {
	for _, pair := range [][2]uint64{
		{v.Major, o.Major},
		{v.Minor, o.Minor},
		{v.Build, o.Build},
		{v.Revision, o.Revision},
	} {
		if pair[0] != pair[1] {
			if pair[0] < pair[1] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Less reports whether v sorts strictly before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// String renders the version in dotted form.
func (v Version) String() string {
	return strconv.FormatUint(v.Major, 10) + "." +
		strconv.FormatUint(v.Minor, 10) + "." +
		strconv.FormatUint(v.Build, 10) + "." +
		strconv.FormatUint(v.Revision, 10)
}

// ParseVersion parses a dotted version string, defaulting missing trailing
// components to zero as required by spec §3.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return Version{}, errors.Errorf("invalid version %q", s)
	}
	var nums [4]uint64
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Version{}, errors.Wrapf(err, "invalid version component %q in %q", p, s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Build: nums[2], Revision: nums[3]}, nil
}

// Entry is an immutable record describing one release artifact.
//
// Identity is the pair (Filename, SHA1); Version must be recoverable from
// Filename by stripping the trailing "-<version>(-delta)?.nupkg" suffix.
type Entry struct {
	SHA1     string
	Filename string
	Filesize int64
	Version  Version
	IsDelta  bool
	BaseURL  string
}

// SameIdentity reports whether e and o share the (Filename, SHA1) identity
// pair, comparing the digest case-insensitively per spec §3.
func (e Entry) SameIdentity(o Entry) bool {
	return strings.EqualFold(e.Filename, o.Filename) && strings.EqualFold(e.SHA1, o.SHA1)
}

// ParseFilename splits "<packageId>-<version>(-delta).nupkg" into its parts.
// Matching is case-insensitive on the suffix, per spec §4.2.
func ParseFilename(filename string) (packageID string, version Version, isDelta bool, err error) {
	lower := strings.ToLower(filename)
	if !strings.HasSuffix(lower, fullSuffix) {
		return "", Version{}, false, errors.Errorf("filename %q does not end in .nupkg", filename)
	}
	isDelta = strings.HasSuffix(lower, deltaSuffix)

	stem := filename[:len(filename)-len(fullSuffix)]
	if isDelta {
		stem = filename[:len(filename)-len(deltaSuffix)]
	}

	idx := strings.LastIndexByte(stem, '-')
	if idx < 0 {
		return "", Version{}, false, errors.Errorf("filename %q missing package-version separator", filename)
	}
	packageID = stem[:idx]
	versionStr := stem[idx+1:]
	if packageID == "" || versionStr == "" {
		return "", Version{}, false, errors.Errorf("filename %q has an empty package id or version", filename)
	}

	version, err = ParseVersion(versionStr)
	if err != nil {
		return "", Version{}, false, errors.Wrapf(err, "filename %q", filename)
	}
	return packageID, version, isDelta, nil
}

// FullFilename returns the filename a delta's composed full package should
// carry: the delta suffix stripped, per spec §4.7 step 2.
func FullFilename(deltaFilename string) string {
	lower := strings.ToLower(deltaFilename)
	if !strings.HasSuffix(lower, deltaSuffix) {
		return deltaFilename
	}
	return deltaFilename[:len(deltaFilename)-len(deltaSuffix)] + fullSuffix
}

// byReleaseOrder sorts by version ascending, non-delta before delta on ties,
// per spec §4.2.
type byReleaseOrder []Entry

func (s byReleaseOrder) Len() int      { return len(s) }
func (s byReleaseOrder) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byReleaseOrder) Less(i, j int) bool {
	if c := s[i].Version.Compare(s[j].Version); c != 0 {
		return c < 0
	}
	return !s[i].IsDelta && s[j].IsDelta
}
