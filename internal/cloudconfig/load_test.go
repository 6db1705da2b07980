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

package cloudconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudboot-io/boot-agent/internal/state"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSystemConfigOrdersDropIns(t *testing.T) {
	dir := t.TempDir()
	paths := state.NewPathsWithDirs(dir, filepath.Join(dir, "etc-cloud"))

	writeFile(t, paths.MainConfig(), "hostname: base\npackages: [a, b]\n")
	writeFile(t, filepath.Join(paths.ConfigD(), "10-mid.cfg"), "hostname: mid\npackages: [b, c]\n")
	writeFile(t, filepath.Join(paths.ConfigD(), "99-last.cfg"), "timezone: UTC\n")
	writeFile(t, filepath.Join(paths.ConfigD(), "ignored.txt"), "hostname: nope\n")

	docs, err := LoadSystemConfig(paths)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d docs, want 3", len(docs))
	}
	if docs[0].Hostname != "base" || docs[1].Hostname != "mid" || docs[2].Timezone != "UTC" {
		t.Fatalf("docs out of order: %+v", docs)
	}
}

func TestComposeMergePrecedence(t *testing.T) {
	dir := t.TempDir()
	paths := state.NewPathsWithDirs(dir, filepath.Join(dir, "etc-cloud"))

	writeFile(t, paths.MainConfig(), "hostname: base\npackages: [a, b]\n")
	writeFile(t, filepath.Join(paths.ConfigD(), "10-mid.cfg"), "hostname: mid\npackages: [b, c]\n")

	merged, err := Compose(paths, "", "#cloud-config\nhostname: user\n")
	if err != nil {
		t.Fatal(err)
	}
	if merged.Hostname != "user" {
		t.Fatalf("Hostname = %q, want user", merged.Hostname)
	}
	want := []string{"a", "b", "c"}
	if len(merged.Packages) != len(want) {
		t.Fatalf("Packages = %v, want %v", merged.Packages, want)
	}
	for i, p := range want {
		if merged.Packages[i] != p {
			t.Fatalf("Packages = %v, want %v", merged.Packages, want)
		}
	}
}

func TestComposeNoSystemConfig(t *testing.T) {
	dir := t.TempDir()
	paths := state.NewPathsWithDirs(dir, filepath.Join(dir, "etc-cloud"))

	merged, err := Compose(paths, "", "#cloud-config\nhostname: solo\n")
	if err != nil {
		t.Fatal(err)
	}
	if merged.Hostname != "solo" {
		t.Fatalf("Hostname = %q, want solo", merged.Hostname)
	}
}
