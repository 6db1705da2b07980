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

package userdata

import "testing"

func TestClassifySigils(t *testing.T) {
	cases := []struct {
		data string
		want ContentType
	}{
		{"#cloud-config\nhostname: x\n", TypeCloudConfig},
		{"## template: jinja\nhostname: {{ v1.instance_id }}\n", TypeJinjaTemplate},
		{"#cloud-boothook\n#!/bin/sh\necho hi\n", TypeCloudBoothook},
		{"#include\nhttp://example.com/a.yaml\n", TypeIncludeURL},
		{"#upstart-job\ndescribe x\n", TypeUpstartJob},
		{"#part-handler\n", TypePartHandler},
		{"#!/bin/bash\necho hi\n", TypeScript},
	}
	for _, c := range cases {
		if got := Classify([]byte(c.data)); got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.data, got, c.want)
		}
	}
}

func TestClassifyGzip(t *testing.T) {
	data := []byte{0x1f, 0x8b, 0x08, 0x00}
	if got := Classify(data); got != TypeGzip {
		t.Errorf("Classify(gzip magic) = %v, want gzip", got)
	}
}

func TestClassifyYAMLFallback(t *testing.T) {
	data := []byte("hostname: foo\npackages:\n  - nginx\n")
	if got := Classify(data); got != TypeCloudConfig {
		t.Errorf("Classify(yaml-looking) = %v, want cloud-config", got)
	}
}

func TestClassifyDoesNotMisreadColonWithoutSpace(t *testing.T) {
	data := []byte("12:30:00 is the scheduled time\n")
	if got := Classify(data); got != TypeUnknown {
		t.Errorf("Classify(%q) = %v, want unknown", data, got)
	}
}

func TestClassifyUnknown(t *testing.T) {
	data := []byte("just some plain prose with no structure at all")
	if got := Classify(data); got != TypeUnknown {
		t.Errorf("Classify(prose) = %v, want unknown", got)
	}
}

func TestClassifyMultipartHeader(t *testing.T) {
	data := []byte("Content-Type: multipart/mixed; boundary=X\n\n--X\nfoo\n--X--\n")
	if got := Classify(data); got != TypeMultipart {
		t.Errorf("Classify(multipart headers) = %v, want multipart", got)
	}
}

func TestClassifyMIME(t *testing.T) {
	if got := ClassifyMIME("text/cloud-config"); got != TypeCloudConfig {
		t.Errorf("ClassifyMIME(text/cloud-config) = %v", got)
	}
	if got := ClassifyMIME("text/x-shellscript; charset=utf-8"); got != TypeScript {
		t.Errorf("ClassifyMIME(text/x-shellscript) = %v", got)
	}
}
