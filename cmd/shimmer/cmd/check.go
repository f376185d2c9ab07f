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

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the configured source for an available update",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}

		bar := newProgressBar("Checking for updates")
		plan, err := p.CheckForUpdate(context.Background(), barSink(bar))
		bar.Finish()
		if err != nil {
			return err
		}

		if plan == nil {
			fmt.Println("already up to date")
			return nil
		}

		if plan.IsBootstrapping {
			fmt.Printf("bootstrap install available: %s\n", plan.FutureRelease.Version)
		} else {
			fmt.Printf("update available: %s (%d release(s) to apply)\n", plan.FutureRelease.Version, len(plan.ReleasesToApply))
		}
		return nil
	},
}
