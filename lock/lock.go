// Copyright © 2018 Intel Corporation
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

// Package lock implements the machine-wide install lock: a named,
// bounded-timeout mutex over a given installation root, shared by every
// process on the host that wants to run the update pipeline against it.
package lock

import (
	"context"
	"crypto/sha1" //nolint:gosec // lock identity, not a security boundary
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// DefaultTimeout is the bounded acquisition timeout mandated by spec §4.4.
const DefaultTimeout = 2000 * time.Millisecond

// ErrAnotherInstanceActive is returned by Acquire when the lock could not be
// obtained within the timeout.
type ErrAnotherInstanceActive struct{ Root string }

func (e *ErrAnotherInstanceActive) Error() string {
	return fmt.Sprintf("another instance is already updating %s", e.Root)
}

// Manager hands out the single install lock for a given root within one
// process. A re-entrant Acquire call on the same Manager does not
// re-acquire the OS-level primitive: it returns a new Handle (not the same
// Handle value) on the already-held lock, and each Handle is released on
// its own.
type Manager struct {
	root    string
	timeout time.Duration

	mu     sync.Mutex
	handle *Handle
	flock  *flock.Flock
	refs   int
}

// NewManager creates a lock manager for root with the default 2s timeout.
func NewManager(root string) *Manager {
	return &Manager{root: root, timeout: DefaultTimeout}
}

// WithTimeout overrides the default acquisition timeout.
func (m *Manager) WithTimeout(d time.Duration) *Manager {
	m.timeout = d
	return m
}

// Handle is a scoped handle on the install lock. Release is mandatory on
// every exit path; it is safe to call more than once.
type Handle struct {
	mgr      *Manager
	released bool
}

// Release gives up this handle's reference on the lock. The underlying
// OS-level lock is only actually unlocked once every outstanding handle
// from this Manager has been released.
func (h *Handle) Release() error {
	return h.mgr.release(h)
}

// Acquire obtains the install lock, identified by a hex digest of the SHA-1
// of root's UTF-8 bytes (spec §4.4), blocking up to the configured timeout.
// It fails with *ErrAnotherInstanceActive on timeout.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		m.refs++
		return &Handle{mgr: m}, nil
	}

	path := lockFilePath(m.root)
	fl := flock.New(path)

	deadline := time.Now().Add(m.timeout)
	lockCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil || !locked {
		return nil, &ErrAnotherInstanceActive{Root: m.root}
	}

	m.flock = fl
	m.refs = 1
	m.handle = &Handle{mgr: m}
	return m.handle, nil
}

func (m *Manager) release(h *Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h.released || m.handle == nil {
		return nil
	}
	h.released = true
	m.refs--
	if m.refs > 0 {
		return nil
	}

	err := m.flock.Unlock()
	m.handle = nil
	m.flock = nil
	if err != nil {
		return errors.Wrapf(err, "couldn't release install lock for %s", m.root)
	}
	return nil
}

func lockFilePath(root string) string {
	sum := sha1.Sum([]byte(root)) //nolint:gosec
	return filepath.Join(os.TempDir(), fmt.Sprintf("shimmer-lock-%x", sum))
}
