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

// Package cmd implements the shimmer CLI: the operator-facing front end
// for the update pipeline, the same way mixer/cmd fronts the builder.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jeffora/Shimmer/config"
	"github.com/jeffora/Shimmer/delta"
	"github.com/jeffora/Shimmer/fetcher"
	"github.com/jeffora/Shimmer/internal/pluginhost"
	"github.com/jeffora/Shimmer/internal/ulog"
	"github.com/jeffora/Shimmer/pipeline"
)

var configFile string
var appID string
var rootFlags *pflag.FlagSet

var cfg *config.Config

// RootCmd is the base command when shimmer is called without any subcommands.
var RootCmd = &cobra.Command{
	Use:  "shimmer",
	Long: `shimmer is a client-side update engine: it checks, downloads, composes and installs application releases.`,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Parent() == nil {
			return nil
		}

		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded

		ulog.SetLevel(cfg.LogLevel())
		if cfg.Log.File != "" {
			if _, err := ulog.SetOutputFile(cfg.Log.File); err != nil {
				return errors.Wrap(err, "couldn't open log file")
			}
		}
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ulog.Close()
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Usage()
	},
}

// Execute adds all child commands to RootCmd and runs it.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to the shimmer.toml config file to use")
	RootCmd.PersistentFlags().StringVar(&appID, "app-id", "", "application identifier, used to derive default paths when no --config is given")
	rootFlags = RootCmd.PersistentFlags()

	RootCmd.AddCommand(checkCmd)
	RootCmd.AddCommand(applyCmd)
	RootCmd.AddCommand(rebuildManifestCmd)
	RootCmd.AddCommand(lockTestCmd)
	RootCmd.AddCommand(uninstallCmd)
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	id := appID
	if id == "" {
		id = "ShimmerApp"
	}
	return config.LoadDefaults(id)
}

func newPipeline() (*pipeline.Pipeline, error) {
	f := fetcher.New(cfg.Install.SourceURL)

	hostPath, err := pluginhost.HostPath()
	if err != nil {
		ulog.Warning(ulog.CLI, "plugin host binary not found alongside shimmer, app lifecycle hooks disabled: %s", err)
		hostPath = ""
	}

	p, err := pipeline.New(
		cfg.Install.Root,
		f,
		delta.BsdiffApplicator{},
		cfg.Install.TargetFramework,
		hostPath,
		cfg.Install.IgnoreDeltaUpdates,
	)
	if err != nil {
		return nil, err
	}
	if cfg.Install.LockTimeoutMS > 0 {
		p = p.WithLockTimeout(time.Duration(cfg.Install.LockTimeoutMS) * time.Millisecond)
	}
	return p, nil
}

func failf(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
