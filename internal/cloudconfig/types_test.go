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
	"testing"

	"gopkg.in/yaml.v3"
)

func TestUserBareName(t *testing.T) {
	var u User
	if err := yaml.Unmarshal([]byte("alice"), &u); err != nil {
		t.Fatal(err)
	}
	if u.Name != "alice" || !u.bareName {
		t.Fatalf("got %+v", u)
	}
	out, err := yaml.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "alice\n" {
		t.Fatalf("round-trip = %q, want bare scalar", out)
	}
}

func TestUserFullRecord(t *testing.T) {
	doc := "name: bob\nshell: /bin/bash\nsudo: ALL=(ALL) NOPASSWD:ALL\nssh_import_id:\n  - gh:bob\n"
	var u User
	if err := yaml.Unmarshal([]byte(doc), &u); err != nil {
		t.Fatal(err)
	}
	if u.Name != "bob" || u.Shell != "/bin/bash" || len(u.SSHImportID) != 1 || u.SSHImportID[0] != "gh:bob" {
		t.Fatalf("got %+v", u)
	}
	if u.isBareEquivalent() {
		t.Fatal("full record should not be bare-equivalent")
	}
}

func TestGroupBareAndFull(t *testing.T) {
	var bare Group
	if err := yaml.Unmarshal([]byte("admins"), &bare); err != nil {
		t.Fatal(err)
	}
	if bare.Name != "admins" || len(bare.Members) != 0 {
		t.Fatalf("got %+v", bare)
	}

	var full Group
	if err := yaml.Unmarshal([]byte("name: admins\nmembers: [alice, bob]\n"), &full); err != nil {
		t.Fatal(err)
	}
	if full.Name != "admins" || len(full.Members) != 2 {
		t.Fatalf("got %+v", full)
	}
}

func TestRunCmdEntryShellOrArgs(t *testing.T) {
	var shell RunCmdEntry
	if err := yaml.Unmarshal([]byte("echo hi"), &shell); err != nil {
		t.Fatal(err)
	}
	if !shell.IsShell() || shell.Shell != "echo hi" {
		t.Fatalf("got %+v", shell)
	}

	var args RunCmdEntry
	if err := yaml.Unmarshal([]byte("[echo, hi]"), &args); err != nil {
		t.Fatal(err)
	}
	if args.IsShell() || len(args.Args) != 2 {
		t.Fatalf("got %+v", args)
	}
}

func TestFromYAMLStripsHeader(t *testing.T) {
	cfg, err := FromYAML("#cloud-config\nhostname: myhost\npackages: [nginx]\n")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hostname != "myhost" || len(cfg.Packages) != 1 {
		t.Fatalf("got %+v", cfg)
	}
}

func TestIsCloudConfig(t *testing.T) {
	if !IsCloudConfig("  \n#cloud-config\nfoo: bar\n") {
		t.Fatal("expected true")
	}
	if IsCloudConfig("hostname: foo\n") {
		t.Fatal("expected false")
	}
}
