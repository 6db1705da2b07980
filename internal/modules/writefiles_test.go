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

package modules

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudboot-io/boot-agent/internal/cloudconfig"
)

func TestWriteFilesPlainAndDeferSplit(t *testing.T) {
	dir := t.TempDir()
	immediate := filepath.Join(dir, "immediate.txt")
	deferredPath := filepath.Join(dir, "deferred.txt")

	entries := []cloudconfig.WriteFile{
		{Path: immediate, Content: "hello"},
		{Path: deferredPath, Content: "later", Defer: boolPtrM(true)},
	}

	if err := WriteFiles(entries, false); err != nil {
		t.Fatalf("WriteFiles(non-deferred): %v", err)
	}
	if _, err := os.Stat(deferredPath); !os.IsNotExist(err) {
		t.Errorf("expected deferred file to not yet exist, err=%v", err)
	}
	b, err := os.ReadFile(immediate)
	if err != nil || string(b) != "hello" {
		t.Errorf("immediate file = %q, err=%v", b, err)
	}

	if err := WriteFiles(entries, true); err != nil {
		t.Fatalf("WriteFiles(deferred): %v", err)
	}
	b, err = os.ReadFile(deferredPath)
	if err != nil || string(b) != "later" {
		t.Errorf("deferred file = %q, err=%v", b, err)
	}
}

func TestWriteFilesBase64(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "b64.txt")
	encoded := base64.StdEncoding.EncodeToString([]byte("decoded content"))

	err := WriteFiles([]cloudconfig.WriteFile{{Path: path, Content: encoded, Encoding: "base64"}}, false)
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "decoded content" {
		t.Errorf("content = %q", b)
	}
}

func TestWriteFilesGzipBase64(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gzb64.txt")

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write([]byte("gzipped text"))
	gw.Close()
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	err := WriteFiles([]cloudconfig.WriteFile{{Path: path, Content: encoded, Encoding: "gz+b64"}}, false)
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "gzipped text" {
		t.Errorf("content = %q", b)
	}
}

func TestWriteFilesAppend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "append.txt")
	if err := os.WriteFile(path, []byte("first\n"), 0644); err != nil {
		t.Fatalf("seed WriteFile: %v", err)
	}

	err := WriteFiles([]cloudconfig.WriteFile{{Path: path, Content: "second\n", Append: boolPtrM(true)}}, false)
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "first\nsecond\n" {
		t.Errorf("content = %q", b)
	}
}

func TestParsePermissionsDefault(t *testing.T) {
	m, err := parsePermissions("")
	if err != nil || m != 0644 {
		t.Errorf("parsePermissions(\"\") = %v, %v", m, err)
	}
	m, err = parsePermissions("0600")
	if err != nil || m != 0600 {
		t.Errorf("parsePermissions(0600) = %v, %v", m, err)
	}
}

func boolPtrM(b bool) *bool { return &b }
