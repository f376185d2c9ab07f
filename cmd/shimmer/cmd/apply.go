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

	"github.com/jeffora/Shimmer/internal/ulog"
)

var applyFlags struct {
	launch bool
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Check, download and install any available update",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		p, err := newPipeline()
		if err != nil {
			return err
		}

		checkBar := newProgressBar("Checking for updates")
		plan, err := p.CheckForUpdate(ctx, barSink(checkBar))
		checkBar.Finish()
		if err != nil {
			return err
		}
		if plan == nil {
			fmt.Println("already up to date")
			return nil
		}

		downloadBar := newProgressBar("Downloading")
		if err := p.DownloadReleases(ctx, plan.ReleasesToApply, barSink(downloadBar)); err != nil {
			return err
		}
		downloadBar.Finish()

		applyBar := newProgressBar("Installing")
		launchPath, err := p.ApplyReleases(ctx, plan, barSink(applyBar))
		applyBar.Finish()
		if err != nil {
			return err
		}

		ulog.Info(ulog.CLI, "installed version %s", plan.FutureRelease.Version)
		if applyFlags.launch && launchPath != "" {
			return launchApp(launchPath)
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().BoolVar(&applyFlags.launch, "launch", false, "launch the application after a successful install")
}
