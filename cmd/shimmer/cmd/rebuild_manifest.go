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

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildManifestCmd = &cobra.Command{
	Use:   "rebuild-manifest",
	Short: "Rebuild the local packages/RELEASES manifest from artifacts on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		m, err := p.UpdateLocalManifest(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("rebuilt RELEASES with %d entr(ies)\n", len(m.Entries))
		return nil
	},
}
