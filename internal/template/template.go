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

// Package template implements the §4.F Template Renderer: detecting the
// "## template: jinja" marker, stripping it, and evaluating the remainder
// against a context built from InstanceMetadata. The evaluator itself is an
// external collaborator (github.com/nikolalohinski/gonja/v2); this package
// only shapes the context and the marker handling.
package template

import (
	"strings"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
	"github.com/cloudboot-io/boot-agent/internal/datasource"
)

const marker = "## template: jinja"

// IsTemplate reports whether data's first non-blank line carries the jinja
// marker (optional leading space after "##").
func IsTemplate(data string) bool {
	line, ok := firstNonBlankLine(data)
	if !ok {
		return false
	}
	return strings.HasPrefix(line, marker) || strings.HasPrefix(line, "##template: jinja")
}

// StripMarker removes the marker line, returning the remainder unevaluated.
func StripMarker(data string) string {
	data = strings.TrimLeft(data, " \t\r\n")
	idx := strings.IndexByte(data, '\n')
	if idx == -1 {
		return ""
	}
	return data[idx+1:]
}

// Render strips the marker (if present) and evaluates the remainder against
// a context derived from md, exposing ds.meta_data.*, instance.*, v1.*, plus
// top-level instance_id and local_hostname, each available under both
// hyphen and underscore key spellings. Errors are surfaced as InvalidData;
// the renderer itself is pure.
func Render(data string, md datasource.InstanceMetadata) (string, error) {
	body := data
	if IsTemplate(data) {
		body = StripMarker(data)
	}

	tpl, err := gonja.FromBytes([]byte(body))
	if err != nil {
		return "", agenterrors.Wrap(agenterrors.KindInvalidData, "parsing template", err)
	}

	out, err := tpl.Execute(exec.NewContext(renderContext(md)))
	if err != nil {
		return "", agenterrors.Wrap(agenterrors.KindInvalidData, "evaluating template", err)
	}
	return out, nil
}

// renderContext builds the ds.meta_data/instance/v1 namespaces plus the two
// top-level convenience keys. Every key in meta_data/instance is populated
// under both its hyphen and underscore spelling; gonja renders an
// undefined/missing variable as empty per Jinja2 semantics, satisfying
// "missing variables render as empty" without extra bookkeeping here.
func renderContext(md datasource.InstanceMetadata) map[string]interface{} {
	metaData := map[string]interface{}{
		"instance-id":         md.InstanceID,
		"instance_id":         md.InstanceID,
		"local-hostname":      md.LocalHostname,
		"local_hostname":      md.LocalHostname,
		"region":              md.Region,
		"availability-zone":   md.AvailabilityZone,
		"availability_zone":   md.AvailabilityZone,
		"cloud-name":          md.CloudName,
		"cloud_name":          md.CloudName,
		"platform":            md.Platform,
		"instance-type":       md.InstanceType,
		"instance_type":       md.InstanceType,
	}

	instance := map[string]interface{}{
		"id":                md.InstanceID,
		"hostname":          md.LocalHostname,
		"region":            md.Region,
		"availability-zone": md.AvailabilityZone,
		"availability_zone": md.AvailabilityZone,
		"cloud-name":        md.CloudName,
		"cloud_name":        md.CloudName,
		"platform":          md.Platform,
	}

	v1 := map[string]interface{}{
		"instance-id":    md.InstanceID,
		"instance_id":    md.InstanceID,
		"local-hostname": md.LocalHostname,
		"local_hostname": md.LocalHostname,
		"region":         md.Region,
		"cloud-name":     md.CloudName,
		"cloud_name":     md.CloudName,
		"platform":       md.Platform,
	}

	return map[string]interface{}{
		"ds": map[string]interface{}{
			"meta_data": metaData,
		},
		"instance":       instance,
		"v1":             v1,
		"instance_id":    md.InstanceID,
		"local_hostname": md.LocalHostname,
	}
}

func firstNonBlankLine(data string) (string, bool) {
	for _, line := range strings.Split(data, "\n") {
		trimmed := strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(trimmed) != "" {
			return trimmed, true
		}
	}
	return "", false
}
