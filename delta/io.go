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
	"crypto/sha1" //nolint:gosec // release integrity is SHA-1 by spec, not a security boundary
	"fmt"
	"os"
)

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func sha1Hex(data []byte) string {
	h := sha1.Sum(data) //nolint:gosec
	return fmt.Sprintf("%x", h)
}
