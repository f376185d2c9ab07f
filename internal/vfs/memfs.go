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

package vfs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Mem is an in-memory FileSystem, tracking only directory existence — the
// installer's PREPARE and CLEAN_DEAD steps never read file contents through
// this interface, only directory shape, so that's all Mem models.
type Mem struct {
	dirs map[string]bool
}

// NewMem returns an empty in-memory filesystem.
func NewMem() *Mem {
	return &Mem{dirs: map[string]bool{}}
}

func clean(path string) string {
	return filepath.Clean(path)
}

func (m *Mem) MkdirAll(path string, _ os.FileMode) error {
	path = clean(path)
	for p := path; p != "." && p != string(filepath.Separator) && p != ""; p = filepath.Dir(p) {
		m.dirs[p] = true
		if filepath.Dir(p) == p {
			break
		}
	}
	return nil
}

func (m *Mem) RemoveAll(path string) error {
	path = clean(path)
	prefix := path + string(filepath.Separator)
	for d := range m.dirs {
		if d == path || strings.HasPrefix(d, prefix) {
			delete(m.dirs, d)
		}
	}
	return nil
}

func (m *Mem) Rename(oldpath, newpath string) error {
	oldpath, newpath = clean(oldpath), clean(newpath)
	if !m.dirs[oldpath] {
		return &os.PathError{Op: "rename", Path: oldpath, Err: os.ErrNotExist}
	}
	oldPrefix := oldpath + string(filepath.Separator)
	for d := range m.dirs {
		if d == oldpath {
			delete(m.dirs, d)
			m.dirs[newpath] = true
			continue
		}
		if strings.HasPrefix(d, oldPrefix) {
			delete(m.dirs, d)
			m.dirs[newpath+string(filepath.Separator)+strings.TrimPrefix(d, oldPrefix)] = true
		}
	}
	return nil
}

type memFileInfo struct {
	name string
}

func (i memFileInfo) Name() string       { return i.name }
func (i memFileInfo) Size() int64        { return 0 }
func (i memFileInfo) Mode() os.FileMode  { return os.ModeDir | 0755 }
func (i memFileInfo) ModTime() time.Time { return time.Time{} }
func (i memFileInfo) IsDir() bool        { return true }
func (i memFileInfo) Sys() interface{}   { return nil }

func (m *Mem) Stat(path string) (os.FileInfo, error) {
	path = clean(path)
	if !m.dirs[path] {
		return nil, &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
	}
	return memFileInfo{name: filepath.Base(path)}, nil
}

func (m *Mem) ReadDir(path string) ([]os.DirEntry, error) {
	path = clean(path)
	if !m.dirs[path] {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
	}
	prefix := path + string(filepath.Separator)
	var names []string
	for d := range m.dirs {
		if !strings.HasPrefix(d, prefix) {
			continue
		}
		rest := strings.TrimPrefix(d, prefix)
		if strings.Contains(rest, string(filepath.Separator)) {
			continue
		}
		names = append(names, rest)
	}
	sort.Strings(names)
	entries := make([]os.DirEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, memDirEntry{name: n})
	}
	return entries, nil
}

type memDirEntry struct{ name string }

func (e memDirEntry) Name() string               { return e.name }
func (e memDirEntry) IsDir() bool                 { return true }
func (e memDirEntry) Type() os.FileMode           { return os.ModeDir }
func (e memDirEntry) Info() (os.FileInfo, error)  { return memFileInfo{name: e.name}, nil }
