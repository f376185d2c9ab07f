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

// Package config reads the TOML configuration the shimmer CLI and
// pipeline are driven by, the same way the mixer tool reads builder.conf.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/jeffora/Shimmer/internal/ulog"
)

// Config holds every pipeline parameter spec.md otherwise treats as an
// implicit argument.
type Config struct {
	Install installConf `toml:"Install"`
	Log     logConf     `toml:"Log"`

	filename string
}

type installConf struct {
	Root               string `toml:"Root"`
	SourceURL          string `toml:"SourceURL"`
	AppID              string `toml:"AppID"`
	IgnoreDeltaUpdates bool   `toml:"IgnoreDeltaUpdates"`
	TargetFramework    string `toml:"TargetFramework"`
	LockTimeoutMS      int    `toml:"LockTimeoutMS"`
}

type logConf struct {
	Level string `toml:"Level"`
	File  string `toml:"File"`
}

// LoadDefaults returns a Config with sane values, rooted under the OS
// app-data directory for AppID, matching spec §6's "Environment" default.
func LoadDefaults(appID string) (*Config, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't resolve local app-data directory")
	}

	return &Config{
		Install: installConf{
			Root:               filepath.Join(base, appID),
			AppID:              appID,
			IgnoreDeltaUpdates: false,
			TargetFramework:    "net45",
			LockTimeoutMS:      2000,
		},
		Log: logConf{
			Level: "info",
			File:  "",
		},
	}, nil
}

// Load reads and parses a TOML config file at filename.
func Load(filename string) (*Config, error) {
	var c Config
	if _, err := toml.DecodeFile(filename, &c); err != nil {
		return nil, errors.Wrapf(err, "couldn't parse config file %s", filename)
	}
	c.filename = filename
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes c back to its originating file, or to filename if c was
// never loaded from disk.
func (c *Config) Save(filename string) error {
	if filename == "" {
		filename = c.filename
	}
	if filename == "" {
		return errors.New("no filename to save config to")
	}

	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "couldn't create config file %s", filename)
	}
	defer func() { _ = f.Close() }()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "couldn't encode config")
	}
	c.filename = filename
	return nil
}

func (c *Config) validate() error {
	if c.Install.SourceURL == "" {
		return errors.New("config: Install.SourceURL is required")
	}
	if c.Install.Root == "" {
		return errors.New("config: Install.Root is required")
	}
	return nil
}

// Filename returns the path c was loaded from or last saved to.
func (c *Config) Filename() string { return c.filename }

// LogLevel maps the configured Log.Level string to an internal/ulog level
// constant, defaulting to LevelInfo for an unrecognized value.
func (c *Config) LogLevel() int {
	switch strings.ToLower(c.Log.Level) {
	case "error":
		return ulog.LevelError
	case "warning":
		return ulog.LevelWarning
	case "debug":
		return ulog.LevelDebug
	case "verbose":
		return ulog.LevelVerbose
	default:
		return ulog.LevelInfo
	}
}
