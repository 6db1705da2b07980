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
	"os"
	"testing"
)

func readLink(path string) (string, error) {
	return os.Readlink(path)
}

func TestSetInstanceIDSequence(t *testing.T) {
	paths := NewPathsWithBase(t.TempDir())
	store := NewStore(paths)
	if err := store.Initialize(); err != nil {
		t.Fatal(err)
	}

	ids := []string{"a", "a", "b", "b"}
	want := []bool{true, false, true, false}
	for i, id := range ids {
		isNew, err := store.SetInstanceID(id)
		if err != nil {
			t.Fatalf("SetInstanceID(%q): %v", id, err)
		}
		if isNew != want[i] {
			t.Errorf("SetInstanceID(%q) #%d = %v, want %v", id, i, isNew, want[i])
		}
	}
}

func TestSetInstanceIDCreatesDirectories(t *testing.T) {
	paths := NewPathsWithBase(t.TempDir())
	store := NewStore(paths)
	store.Initialize()

	if _, err := store.SetInstanceID("i-001"); err != nil {
		t.Fatal(err)
	}

	cached, err := store.CachedInstanceID()
	if err != nil {
		t.Fatal(err)
	}
	if cached != "i-001" {
		t.Errorf("CachedInstanceID() = %q, want i-001", cached)
	}

	target, err := readLink(paths.InstanceLink())
	if err != nil {
		t.Fatal(err)
	}
	if target != paths.InstanceDir("i-001") {
		t.Errorf("instance symlink -> %q, want %q", target, paths.InstanceDir("i-001"))
	}
}
