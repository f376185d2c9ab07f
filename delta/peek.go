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
	"archive/zip"
	"fmt"
	"io"

	"github.com/mholt/archiver/v3"
	"github.com/pkg/errors"
)

// BaseVersionFile is the name a delta's zip entry carries to record which
// full package version it was diffed against, letting Compose fail fast
// with a clear message if a delta is applied out of order.
const BaseVersionFile = ".shimmer-delta-base"

// PeekBaseVersion opens a delta package (a zip archive, per spec §6) and
// reads its BaseVersionFile entry, if present, using the same archiver.Zip
// walker the installer drives for full-package extraction (see
// installer.Extract).
func PeekBaseVersion(deltaPath string) (string, error) {
	z := archiver.NewZip()

	var found bool
	var result string
	err := z.Walk(deltaPath, func(f archiver.File) error {
		if found {
			return nil
		}
		name := f.Name()
		if zfh, ok := f.Header.(zip.FileHeader); ok {
			name = zfh.Name
		}
		if name != BaseVersionFile {
			return nil
		}
		data, rerr := io.ReadAll(f)
		if rerr != nil {
			return rerr
		}
		result = string(data)
		found = true
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "couldn't walk delta package %s", deltaPath)
	}
	if !found {
		return "", fmt.Errorf("%s not present in %s", BaseVersionFile, deltaPath)
	}
	return result, nil
}
