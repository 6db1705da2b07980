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

// Package userdata classifies, decompresses, decodes, and splits raw
// cloud-config / userdata blobs (§4.C, §4.D).
package userdata

import (
	"bufio"
	"bytes"
	"strings"
	"unicode/utf8"
)

// ContentType is the classification result of §4.C.
type ContentType string

const (
	TypeGzip         ContentType = "gzip"
	TypeBase64       ContentType = "base64"
	TypeMultipart    ContentType = "multipart"
	TypeCloudConfig  ContentType = "cloud-config"
	TypeJinjaTemplate ContentType = "jinja-template"
	TypeScript       ContentType = "script"
	TypeCloudBoothook ContentType = "cloud-boothook"
	TypeIncludeURL   ContentType = "include-url"
	TypeUpstartJob   ContentType = "upstart-job"
	TypePartHandler  ContentType = "part-handler"
	TypeUnknown      ContentType = "unknown"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Classify implements the §4.C algorithm in order: gzip magic, non-UTF8
// base64-looking content, first-line sigil, multipart header mention,
// YAML-looking heuristic, else unknown.
func Classify(data []byte) ContentType {
	if bytes.HasPrefix(data, gzipMagic) {
		return TypeGzip
	}

	if !utf8.Valid(data) && looksLikeBase64(data) {
		return TypeBase64
	}

	if ct, ok := classifyBySigil(data); ok {
		return ct
	}

	if headersMentionMultipart(data) {
		return TypeMultipart
	}

	if looksLikeYAML(data) {
		return TypeCloudConfig
	}

	return TypeUnknown
}

func classifyBySigil(data []byte) (ContentType, bool) {
	line, ok := firstNonBlankLine(data)
	if !ok {
		return "", false
	}
	switch {
	case strings.HasPrefix(line, "#cloud-config"):
		return TypeCloudConfig, true
	case strings.HasPrefix(line, "## template: jinja"):
		return TypeJinjaTemplate, true
	case strings.HasPrefix(line, "#cloud-boothook"):
		return TypeCloudBoothook, true
	case strings.HasPrefix(line, "#include"):
		return TypeIncludeURL, true
	case strings.HasPrefix(line, "#upstart-job"):
		return TypeUpstartJob, true
	case strings.HasPrefix(line, "#part-handler"):
		return TypePartHandler, true
	case strings.HasPrefix(line, "#!"):
		return TypeScript, true
	}
	return "", false
}

func firstNonBlankLine(data []byte) (string, bool) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if strings.TrimSpace(line) != "" {
			return line, true
		}
	}
	return "", false
}

func headersMentionMultipart(data []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			break
		}
		lower := strings.ToLower(line)
		if (strings.HasPrefix(lower, "content-type:") || strings.HasPrefix(lower, "mime-version:")) &&
			strings.Contains(lower, "multipart/") {
			return true
		}
		if strings.Contains(lower, "multipart/") {
			return true
		}
	}
	return false
}

func looksLikeYAML(data []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "---" {
			return true
		}
		if strings.HasPrefix(line, "- ") {
			return true
		}
		if strings.Contains(line, ": ") {
			return true
		}
	}
	return false
}

// looksLikeBase64 reports whether data only contains base64 alphabet
// characters plus line-wrap whitespace (\n, \r, \t), with no plain
// word-separating space character — a heuristic that distinguishes base64
// payloads (which wrap at line boundaries) from ordinary prose, since
// letters/digits alone are valid base64 characters too.
func looksLikeBase64(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, c := range data {
		isB64 := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '+' || c == '/' || c == '='
		isLineWrap := c == '\n' || c == '\r' || c == '\t'
		if c == ' ' || (!isB64 && !isLineWrap) {
			return false
		}
	}
	return true
}

// ClassifyMIME maps an explicit MIME type string (as seen on a multipart
// part) directly to a ContentType.
func ClassifyMIME(mimeType string) ContentType {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	switch mt {
	case "text/cloud-config":
		return TypeCloudConfig
	case "text/x-shellscript":
		return TypeScript
	case "text/cloud-boothook":
		return TypeCloudBoothook
	case "text/jinja2", "text/cloud-config-jinja2":
		return TypeJinjaTemplate
	case "text/upstart-job":
		return TypeUpstartJob
	case "text/part-handler":
		return TypePartHandler
	case "text/x-include-url":
		return TypeIncludeURL
	default:
		return TypeUnknown
	}
}
