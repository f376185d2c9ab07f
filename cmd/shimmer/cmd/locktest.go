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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeffora/Shimmer/lock"
)

var lockTestFlags struct {
	hold time.Duration
}

// lockTestCmd exercises the install lock directly, useful for manually
// confirming two shimmer instances serialize against the same root.
var lockTestCmd = &cobra.Command{
	Use:    "lock-test",
	Short:  "Acquire the install lock and hold it for a duration",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := lock.NewManager(cfg.Install.Root)
		h, err := mgr.Acquire(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("lock acquired, holding for %s\n", lockTestFlags.hold)
		time.Sleep(lockTestFlags.hold)
		return h.Release()
	},
}

func init() {
	lockTestCmd.Flags().DurationVar(&lockTestFlags.hold, "hold", 2*time.Second, "how long to hold the lock before releasing it")
}
