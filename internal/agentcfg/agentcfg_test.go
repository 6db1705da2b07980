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

package agentcfg

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"Ec2", "Azure", "GCE", "OpenStack", "NoCloud"}
	got := s.EnabledDatasources()
	if len(got) != len(want) {
		t.Fatalf("enabled datasources = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("enabled[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestModuleEnabled(t *testing.T) {
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.Modules.Disabled = "packages, runcmd"
	if s.ModuleEnabled("packages") {
		t.Error("expected packages disabled")
	}
	if !s.ModuleEnabled("hostname") {
		t.Error("expected hostname enabled")
	}
}

func TestLoadOverlayFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/cloud.cfg"
	body := "[System]\nstate_dir = /custom/root\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.System.StateDir != "/custom/root" {
		t.Errorf("state_dir = %q, want /custom/root", s.System.StateDir)
	}
}
