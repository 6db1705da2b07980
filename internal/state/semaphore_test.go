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

import "testing"

func newTestManager(t *testing.T, instanceID string) (*Paths, *SemaphoreManager) {
	t.Helper()
	paths := NewPathsWithBase(t.TempDir())
	return paths, NewSemaphoreManager(paths, instanceID)
}

func TestAlwaysAndPerBootNeverMark(t *testing.T) {
	_, mgr := newTestManager(t, "i-A")
	for _, freq := range []Frequency{Always, PerBoot} {
		if !mgr.ShouldRun("hostname", freq) {
			t.Fatalf("ShouldRun(%s) = false before mark_done", freq)
		}
		if err := mgr.MarkDone("hostname", freq); err != nil {
			t.Fatalf("MarkDone(%s): %v", freq, err)
		}
		if !mgr.ShouldRun("hostname", freq) {
			t.Fatalf("ShouldRun(%s) = false after mark_done, want still true", freq)
		}
	}
}

func TestPerInstanceMarksRunOnce(t *testing.T) {
	_, mgr := newTestManager(t, "i-A")
	if !mgr.ShouldRun("packages", PerInstance) {
		t.Fatal("expected should_run before mark_done")
	}
	if err := mgr.MarkDone("packages", PerInstance); err != nil {
		t.Fatal(err)
	}
	if mgr.ShouldRun("packages", PerInstance) {
		t.Fatal("expected should_run false after mark_done for same instance")
	}
}

func TestPerInstanceInvalidatedByInstanceChange(t *testing.T) {
	paths := NewPathsWithBase(t.TempDir())
	mgr := NewSemaphoreManager(paths, "i-A")
	if err := mgr.MarkDone("packages", PerInstance); err != nil {
		t.Fatal(err)
	}
	mgr.SetInstanceID("i-B")
	if !mgr.ShouldRun("packages", PerInstance) {
		t.Fatal("expected should_run true for a new instance id")
	}
}

func TestPerOncePersistsAcrossInstanceChange(t *testing.T) {
	paths := NewPathsWithBase(t.TempDir())
	mgr := NewSemaphoreManager(paths, "i-A")
	if err := mgr.MarkDone("ssh_keys", PerOnce); err != nil {
		t.Fatal(err)
	}
	mgr.SetInstanceID("i-B")
	if mgr.ShouldRun("ssh_keys", PerOnce) {
		t.Fatal("expected per-once marker to persist across instance change")
	}
	// but a per-instance marker under the same name for the new instance
	// must be independent.
	if !mgr.ShouldRun("ssh_keys", PerInstance) {
		t.Fatal("expected per-instance should_run true for the new instance")
	}
}

func TestClearAndList(t *testing.T) {
	_, mgr := newTestManager(t, "i-A")
	mgr.MarkDone("hostname", PerInstance)
	mgr.MarkDone("ssh_keys", PerOnce)

	names, err := mgr.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "hostname" || names[1] != "ssh_keys" {
		t.Fatalf("List() = %v, want [hostname ssh_keys]", names)
	}

	if err := mgr.Clear("hostname", PerInstance); err != nil {
		t.Fatal(err)
	}
	if !mgr.ShouldRun("hostname", PerInstance) {
		t.Fatal("expected should_run true after Clear")
	}

	if err := mgr.ClearAll(); err != nil {
		t.Fatal(err)
	}
	if !mgr.ShouldRun("ssh_keys", PerOnce) {
		t.Fatal("expected should_run true after ClearAll")
	}
}
