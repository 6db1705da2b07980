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

import "testing"

func boolPtr(b bool) *bool { return &b }

func TestMergeHostnameOverlayWins(t *testing.T) {
	base := CloudConfig{Hostname: "base-host"}
	overlay := CloudConfig{Hostname: "overlay-host"}
	merged, err := Merge(base, overlay, Append)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Hostname != "overlay-host" {
		t.Fatalf("Hostname = %q, want overlay-host", merged.Hostname)
	}
}

func TestMergeKeepsBaseWhenOverlayMissing(t *testing.T) {
	base := CloudConfig{Hostname: "base-host", Timezone: "UTC"}
	overlay := CloudConfig{Hostname: "overlay-host"}
	merged, err := Merge(base, overlay, Append)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Timezone != "UTC" {
		t.Fatalf("Timezone = %q, want UTC carried from base", merged.Timezone)
	}
}

func TestMergePackagesAppend(t *testing.T) {
	base := CloudConfig{Packages: []string{"curl"}}
	overlay := CloudConfig{Packages: []string{"nginx"}}
	merged, err := Merge(base, overlay, Append)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.Packages) != 2 || merged.Packages[0] != "curl" || merged.Packages[1] != "nginx" {
		t.Fatalf("Packages = %v", merged.Packages)
	}
}

func TestMergePackagesNoDuplicates(t *testing.T) {
	base := CloudConfig{Packages: []string{"curl", "nginx"}}
	overlay := CloudConfig{Packages: []string{"nginx", "git"}}
	merged, err := Merge(base, overlay, Append)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"curl", "nginx", "git"}
	if len(merged.Packages) != len(want) {
		t.Fatalf("Packages = %v, want %v", merged.Packages, want)
	}
	for i, p := range want {
		if merged.Packages[i] != p {
			t.Fatalf("Packages = %v, want %v", merged.Packages, want)
		}
	}
}

func TestMergeRunCmdAppend(t *testing.T) {
	base := CloudConfig{RunCmd: []RunCmdEntry{{Shell: "echo base"}}}
	overlay := CloudConfig{RunCmd: []RunCmdEntry{{Shell: "echo overlay"}}}
	merged, err := Merge(base, overlay, Append)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.RunCmd) != 2 {
		t.Fatalf("RunCmd = %v", merged.RunCmd)
	}
}

func TestMergeAllConfigs(t *testing.T) {
	docs := []CloudConfig{
		{Hostname: "h1", Packages: []string{"curl"}},
		{Timezone: "UTC", Packages: []string{"nginx"}},
		{Hostname: "h3"},
	}
	merged, err := MergeAll(docs)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Hostname != "h3" || merged.Timezone != "UTC" || len(merged.Packages) != 2 {
		t.Fatalf("got %+v", merged)
	}
}

func TestMergeYAMLValuesReplace(t *testing.T) {
	base := CloudConfig{Packages: []string{"curl", "git"}}
	overlay := CloudConfig{Packages: []string{"nginx"}}
	merged, err := Merge(base, overlay, Replace)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.Packages) != 1 || merged.Packages[0] != "nginx" {
		t.Fatalf("Packages = %v, want [nginx]", merged.Packages)
	}
}

func TestMergeNoReplaceKeepsBaseList(t *testing.T) {
	base := CloudConfig{Packages: []string{"curl"}}
	overlay := CloudConfig{Packages: []string{"nginx"}}
	merged, err := Merge(base, overlay, NoReplace)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.Packages) != 1 || merged.Packages[0] != "curl" {
		t.Fatalf("Packages = %v, want [curl]", merged.Packages)
	}
}

func TestMergeEmptyConfigs(t *testing.T) {
	merged, err := Merge(CloudConfig{}, CloudConfig{}, Append)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Hostname != "" || len(merged.Packages) != 0 {
		t.Fatalf("got %+v, want zero value", merged)
	}
}

func TestMergeWriteFiles(t *testing.T) {
	base := CloudConfig{WriteFiles: []WriteFile{{Path: "/etc/a", Content: "a"}}}
	overlay := CloudConfig{WriteFiles: []WriteFile{{Path: "/etc/b", Content: "b"}}}
	merged, err := Merge(base, overlay, Append)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.WriteFiles) != 2 {
		t.Fatalf("WriteFiles = %v", merged.WriteFiles)
	}
}

func TestMergeNullOverlayKeepsBase(t *testing.T) {
	base := CloudConfig{ManageEtcHosts: boolPtr(true)}
	overlay := CloudConfig{}
	merged, err := Merge(base, overlay, Append)
	if err != nil {
		t.Fatal(err)
	}
	if merged.ManageEtcHosts == nil || !*merged.ManageEtcHosts {
		t.Fatalf("ManageEtcHosts = %v, want true carried from base", merged.ManageEtcHosts)
	}
}

func TestParseListMergeStrategyDefaultsToAppend(t *testing.T) {
	if got := ParseListMergeStrategy("garbage"); got != Append {
		t.Fatalf("ParseListMergeStrategy(garbage) = %v, want append", got)
	}
	if got := ParseListMergeStrategy("replace"); got != Replace {
		t.Fatalf("ParseListMergeStrategy(replace) = %v, want replace", got)
	}
}

func TestMergeBareUsers(t *testing.T) {
	base := CloudConfig{Users: []User{{Name: "default", bareName: true}}}
	overlay := CloudConfig{Users: []User{{Name: "alice", bareName: true}}}
	merged, err := Merge(base, overlay, Append)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.Users) != 2 || merged.Users[0].Name != "default" || merged.Users[1].Name != "alice" {
		t.Fatalf("Users = %+v", merged.Users)
	}
}

func TestMergeBareUserAlongsideFullRecord(t *testing.T) {
	base := CloudConfig{Users: []User{{Name: "default", bareName: true}}}
	overlay := CloudConfig{Users: []User{{Name: "alice", Shell: "/bin/bash", Sudo: "ALL=(ALL) NOPASSWD:ALL"}}}
	merged, err := Merge(base, overlay, Append)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.Users) != 2 {
		t.Fatalf("Users = %+v", merged.Users)
	}
	if merged.Users[0].Name != "default" {
		t.Fatalf("Users[0] = %+v", merged.Users[0])
	}
	if merged.Users[1].Name != "alice" || merged.Users[1].Shell != "/bin/bash" {
		t.Fatalf("Users[1] = %+v", merged.Users[1])
	}
}

func TestMergeBareGroups(t *testing.T) {
	base := CloudConfig{Groups: []Group{{Name: "docker"}}}
	overlay := CloudConfig{Groups: []Group{{Name: "admin", Members: []string{"alice"}}}}
	merged, err := Merge(base, overlay, Append)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.Groups) != 2 || merged.Groups[0].Name != "docker" {
		t.Fatalf("Groups = %+v", merged.Groups)
	}
	if merged.Groups[1].Name != "admin" || len(merged.Groups[1].Members) != 1 || merged.Groups[1].Members[0] != "alice" {
		t.Fatalf("Groups[1] = %+v", merged.Groups[1])
	}
}

func TestMergeRunCmdShellAndArgv(t *testing.T) {
	base := CloudConfig{RunCmd: []RunCmdEntry{{Shell: "echo base"}}}
	overlay := CloudConfig{RunCmd: []RunCmdEntry{{Args: []string{"echo", "overlay"}}}}
	merged, err := Merge(base, overlay, Append)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.RunCmd) != 2 {
		t.Fatalf("RunCmd = %+v", merged.RunCmd)
	}
	if !merged.RunCmd[0].IsShell() || merged.RunCmd[0].Shell != "echo base" {
		t.Fatalf("RunCmd[0] = %+v", merged.RunCmd[0])
	}
	if merged.RunCmd[1].IsShell() || len(merged.RunCmd[1].Args) != 2 || merged.RunCmd[1].Args[1] != "overlay" {
		t.Fatalf("RunCmd[1] = %+v", merged.RunCmd[1])
	}
}

// TestMergeAllStockBaseWithUserData exercises the exact scenario the review
// flagged: a base document shaped like the stock cloud.cfg (a bare
// `users: [default]` entry) merged with user-supplied data must not
// silently collapse into an empty document.
func TestMergeAllStockBaseWithUserData(t *testing.T) {
	base := CloudConfig{
		Users:    []User{{Name: "default", bareName: true}},
		RunCmd:   []RunCmdEntry{{Shell: "echo base"}},
		Packages: []string{"curl"},
	}
	userData := CloudConfig{Hostname: "myhost", Packages: []string{"nginx"}}
	merged, err := MergeAll([]CloudConfig{base, userData})
	if err != nil {
		t.Fatal(err)
	}
	if merged.Hostname != "myhost" {
		t.Fatalf("Hostname = %q, want myhost", merged.Hostname)
	}
	if len(merged.Users) != 1 || merged.Users[0].Name != "default" {
		t.Fatalf("Users = %+v, want [default] carried from base", merged.Users)
	}
	if len(merged.RunCmd) != 1 || merged.RunCmd[0].Shell != "echo base" {
		t.Fatalf("RunCmd = %+v, want carried from base", merged.RunCmd)
	}
	if len(merged.Packages) != 2 {
		t.Fatalf("Packages = %+v, want curl+nginx", merged.Packages)
	}
}

func TestMergeIdentity(t *testing.T) {
	cfg := CloudConfig{Hostname: "h", Packages: []string{"a", "b"}}
	merged, err := Merge(cfg, CloudConfig{}, Append)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Hostname != cfg.Hostname || len(merged.Packages) != len(cfg.Packages) {
		t.Fatalf("merging with empty overlay changed the document: %+v", merged)
	}
}
