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

// Package ulog is the update engine's logger: a level-tagged wrapper over
// the standard log package that collapses repeated lines, the same shape
// the mixer tool used for its own build log.
package ulog

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Log levels, ordered least to most verbose.
const (
	LevelError = iota + 1
	LevelWarning
	LevelInfo
	LevelDebug
	LevelVerbose // same as Debug, but without repeat-line filtering
)

// Component tags, one per package in the update pipeline.
const (
	Manifest   = "MANIFEST"
	Store      = "STORE"
	Lock       = "LOCK"
	Fetcher    = "FETCHER"
	Planner    = "PLANNER"
	Delta      = "DELTA"
	Installer  = "INSTALLER"
	Pipeline   = "PIPELINE"
	PluginHost = "PLUGINHOST"
	Config     = "CONFIG"
	CLI        = "CLI"
)

var (
	level      = LevelInfo
	levelMap   = map[int]string{}
	fileHandle *os.File
	logging    = false
	lineLast   string
	lineCount  int
	tagMap     = map[string]bool{}
)

func init() {
	levelMap[LevelError] = "ERROR"
	levelMap[LevelWarning] = "WARNING"
	levelMap[LevelInfo] = "INFO"
	levelMap[LevelDebug] = "DEBUG"
	levelMap[LevelVerbose] = "VERBOSE"
	for _, t := range []string{Manifest, Store, Lock, Fetcher, Planner, Delta, Installer, Pipeline, PluginHost, Config, CLI} {
		tagMap[t] = true
	}
}

// SetLevel sets the minimum level that reaches the log, clamped to the
// valid range.
func SetLevel(l int) {
	if l < LevelError {
		level = LevelError
	} else if l > LevelVerbose {
		level = LevelVerbose
	} else {
		level = l
	}
}

// SetOutputFile directs subsequent log output to filename, creating or
// appending to it, and returns the open handle for the caller to Close.
func SetOutputFile(filename string) (*os.File, error) {
	f, err := os.OpenFile(filename, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	fileHandle = f
	logging = true
	return f, nil
}

// Close closes the output file handle set by SetOutputFile, if any.
func Close() {
	if logging && fileHandle != nil {
		if err := fileHandle.Close(); err != nil {
			fmt.Printf("warning: couldn't close log file: %s\n", err)
		}
	}
}

func logTag(severity, tag, format string, a ...interface{}) {
	if len(a) < 1 {
		format = strings.ReplaceAll(format, "%", "%%")
	}

	line := fmt.Sprintf("["+severity+"]["+tag+"] "+format, a...)

	if !logging {
		return
	}

	if level >= LevelVerbose {
		log.Print(line)
		return
	}

	if line != lineLast {
		if lineCount > 0 {
			plural := ""
			if lineCount > 1 {
				plural = "s"
			}
			log.Printf("[%s] [previous line repeated %d time%s]", severity, lineCount, plural)
		}
		log.Print(line)
		lineLast = line
		lineCount = 0
	} else {
		lineCount++
	}
}

func normalizeTag(tag string) string {
	if _, ok := tagMap[tag]; !ok {
		return Pipeline
	}
	return tag
}

// Error logs an error-level line and always echoes it to stderr regardless
// of the configured level or whether a log file is open.
func Error(tag, format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", a...)
	logTag("ERROR", normalizeTag(tag), format, a...)
}

// Warning logs a warning-level line.
func Warning(tag, format string, a ...interface{}) {
	if level < LevelWarning {
		return
	}
	logTag("WARNING", normalizeTag(tag), format, a...)
}

// Info logs an info-level line.
func Info(tag, format string, a ...interface{}) {
	if level < LevelInfo {
		return
	}
	logTag("INFO", normalizeTag(tag), format, a...)
}

// Debug logs a debug-level line.
func Debug(tag, format string, a ...interface{}) {
	if level < LevelDebug {
		return
	}
	logTag("DEBUG", normalizeTag(tag), format, a...)
}

// Verbose logs a verbose-level line, bypassing repeat-line collapsing.
func Verbose(tag, format string, a ...interface{}) {
	if level < LevelVerbose {
		return
	}
	logTag("VERBOSE", normalizeTag(tag), format, a...)
}
