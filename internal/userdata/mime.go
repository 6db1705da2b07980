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

import (
	"encoding/base64"
	"fmt"
	"mime/quotedprintable"
	"strings"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
)

// Part is a single section of a MIME multipart userdata message.
type Part struct {
	ContentType ContentType
	MIMEType    string
	Content     string
	Filename    string
	Headers     map[string]string
}

// ParseMultipart splits a MIME multipart message into typed parts,
// discovering the boundary per §4.D, decoding each part's
// Content-Transfer-Encoding, and discarding the preamble/epilogue.
func ParseMultipart(data string) ([]Part, error) {
	boundary, err := findBoundary(data)
	if err != nil {
		return nil, err
	}

	delimiter := "--" + boundary
	sections := strings.Split(data, delimiter)

	var parts []Part
	for i, section := range sections {
		trimmed := strings.TrimSpace(section)
		if i == 0 || strings.HasPrefix(trimmed, "--") || trimmed == "" {
			continue
		}
		part, ok, err := parsePart(strings.TrimLeft(section, "\r\n"))
		if err != nil {
			return nil, err
		}
		if ok {
			parts = append(parts, part)
		}
	}
	return parts, nil
}

func findBoundary(data string) (string, error) {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimRight(line, "\r")
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "content-type:") && strings.Contains(lower, "boundary=") {
			if b, ok := extractBoundaryValue(line); ok {
				return b, nil
			}
		}
		if strings.HasPrefix(strings.TrimSpace(line), "boundary=") {
			if b, ok := extractBoundaryValue(line); ok {
				return b, nil
			}
		}
		if strings.TrimSpace(line) == "" {
			break
		}
	}

	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "--") && !strings.HasPrefix(line, "---") {
			candidate := strings.TrimSpace(strings.TrimPrefix(line, "--"))
			if candidate != "" && !strings.Contains(candidate, ":") {
				return candidate, nil
			}
		}
	}

	return "", agenterrors.New(agenterrors.KindInvalidData, "no MIME boundary found")
}

func extractBoundaryValue(line string) (string, bool) {
	lower := strings.ToLower(line)
	idx := strings.Index(lower, "boundary=")
	if idx < 0 {
		return "", false
	}
	after := line[idx+len("boundary="):]
	if strings.HasPrefix(after, `"`) {
		end := strings.Index(after[1:], `"`)
		if end < 0 {
			return "", false
		}
		return after[1 : 1+end], true
	}
	end := strings.IndexFunc(after, func(r rune) bool {
		return r == ';' || r == ' ' || r == '\t'
	})
	if end < 0 {
		end = len(after)
	}
	return after[:end], true
}

func parsePart(data string) (Part, bool, error) {
	if strings.TrimSpace(data) == "" {
		return Part{}, false, nil
	}

	var headersStr, body string
	if idx := strings.Index(data, "\r\n\r\n"); idx >= 0 {
		headersStr, body = data[:idx], data[idx+4:]
	} else if idx := strings.Index(data, "\n\n"); idx >= 0 {
		headersStr, body = data[:idx], data[idx+2:]
	} else {
		headersStr, body = "", data
	}

	headers := map[string]string{}
	var curName, curVal string
	haveCur := false
	flush := func() {
		if haveCur {
			headers[strings.ToLower(curName)] = curVal
		}
	}
	for _, line := range strings.Split(headersStr, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if haveCur {
				curVal += " " + strings.TrimSpace(line)
			}
			continue
		}
		if name, val, ok := strings.Cut(line, ":"); ok {
			flush()
			curName, curVal = strings.TrimSpace(name), strings.TrimSpace(val)
			haveCur = true
		}
	}
	flush()

	mimeType := headers["content-type"]
	if mimeType == "" {
		mimeType = "text/plain"
	}
	ct := ClassifyMIME(mimeType)

	var filename string
	if cd, ok := headers["content-disposition"]; ok {
		filename, _ = extractFilename(cd)
	}

	var content string
	var err error
	switch strings.ToLower(headers["content-transfer-encoding"]) {
	case "base64":
		content, err = decodeBase64(body)
		if err != nil {
			return Part{}, false, err
		}
	case "quoted-printable":
		content = decodeQuotedPrintable(body)
	default:
		content = body
	}

	return Part{ContentType: ct, MIMEType: mimeType, Content: content, Filename: filename, Headers: headers}, true, nil
}

func extractFilename(cd string) (string, bool) {
	lower := strings.ToLower(cd)
	idx := strings.Index(lower, "filename=")
	if idx < 0 {
		return "", false
	}
	after := cd[idx+len("filename="):]
	if strings.HasPrefix(after, `"`) {
		end := strings.Index(after[1:], `"`)
		if end < 0 {
			return "", false
		}
		return after[1 : 1+end], true
	}
	end := strings.IndexFunc(after, func(r rune) bool {
		return r == ';' || r == ' ' || r == '\t'
	})
	if end < 0 {
		end = len(after)
	}
	return after[:end], true
}

func decodeBase64(data string) (string, error) {
	clean := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, data)
	decoded, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return "", agenterrors.Wrap(agenterrors.KindInvalidData, "base64 decode error", err)
	}
	return string(decoded), nil
}

func decodeQuotedPrintable(data string) string {
	r := quotedprintable.NewReader(strings.NewReader(data))
	var out strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		out.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return out.String()
}

// CreateMultipart emits a MIME multipart message from parts using the
// given boundary, the inverse of ParseMultipart.
func CreateMultipart(parts []Part, boundary string) string {
	var b strings.Builder
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=\"%s\"\r\n\r\n", boundary)

	for _, p := range parts {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: %s\r\n", p.MIMEType)
		if p.Filename != "" {
			fmt.Fprintf(&b, "Content-Disposition: attachment; filename=\"%s\"\r\n", p.Filename)
		}
		b.WriteString("\r\n")
		b.WriteString(p.Content)
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.String()
}
