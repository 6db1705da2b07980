//  Copyright 2024 Google LLC
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cloudboot-io/boot-agent/internal/atomicfile"
)

// Frequency is a module's declared execution cadence.
type Frequency string

const (
	Always      Frequency = "always"
	PerBoot     Frequency = "per-boot"
	PerInstance Frequency = "per-instance"
	PerOnce     Frequency = "per-once"
)

// SemaphoreManager enforces the per-frequency policy table of §4.B: marker
// files under either the current instance's sem/ directory or the
// data-wide sem/ directory record that a module has already run.
type SemaphoreManager struct {
	paths      *Paths
	instanceID string
}

// NewSemaphoreManager returns a manager scoped to the given (possibly
// empty, if not yet known) instance id.
func NewSemaphoreManager(paths *Paths, instanceID string) *SemaphoreManager {
	return &SemaphoreManager{paths: paths, instanceID: instanceID}
}

// SetInstanceID updates the instance the manager resolves per-instance
// markers against. The stage code calls it after Store.SetInstanceID has
// done the directory swap.
func (m *SemaphoreManager) SetInstanceID(id string) { m.instanceID = id }

func (m *SemaphoreManager) semPath(module string, freq Frequency) (string, bool) {
	name := "config_" + module
	switch freq {
	case PerInstance:
		if m.instanceID == "" {
			return "", false
		}
		return filepath.Join(m.paths.SemDir(m.instanceID), name), true
	case PerOnce:
		return filepath.Join(m.paths.SemDataDir(), name), true
	default: // Always, PerBoot
		return "", false
	}
}

// ShouldRun reports whether module should execute under freq: always true
// for Always/PerBoot, true iff the marker is absent for PerInstance/PerOnce.
func (m *SemaphoreManager) ShouldRun(module string, freq Frequency) bool {
	path, marked := m.semPath(module, freq)
	if !marked {
		return true
	}
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}

// MarkDone writes the completion marker. A no-op for Always/PerBoot. Must
// be called only after the module body succeeds: failure should leave the
// marker absent so the next run retries.
func (m *SemaphoreManager) MarkDone(module string, freq Frequency) error {
	path, marked := m.semPath(module, freq)
	if !marked {
		return nil
	}
	body := []byte(strconv.FormatInt(time.Now().Unix(), 10))
	if err := atomicfile.WriteFile(body, path, 0644); err != nil {
		return fmt.Errorf("marking %q done under %q: %w", module, freq, err)
	}
	return nil
}

// Clear removes a single module's marker, if present.
func (m *SemaphoreManager) Clear(module string, freq Frequency) error {
	path, marked := m.semPath(module, freq)
	if !marked {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing %q: %w", module, err)
	}
	return nil
}

// ClearAll removes every per-instance marker for the current instance and
// every per-once marker.
func (m *SemaphoreManager) ClearAll() error {
	if m.instanceID != "" {
		if err := os.RemoveAll(m.paths.SemDir(m.instanceID)); err != nil {
			return fmt.Errorf("clearing per-instance semaphores: %w", err)
		}
	}
	if err := os.RemoveAll(m.paths.SemDataDir()); err != nil {
		return fmt.Errorf("clearing per-once semaphores: %w", err)
	}
	return nil
}

// List returns the sorted module names with a completed per-instance or
// per-once marker.
func (m *SemaphoreManager) List() ([]string, error) {
	seen := map[string]bool{}
	dirs := []string{m.paths.SemDataDir()}
	if m.instanceID != "" {
		dirs = append(dirs, m.paths.SemDir(m.instanceID))
	}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("listing semaphores under %q: %w", dir, err)
		}
		for _, e := range entries {
			name := strings.TrimPrefix(e.Name(), "config_")
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
