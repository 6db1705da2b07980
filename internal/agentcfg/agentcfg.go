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

// Package agentcfg loads the agent's own operational settings: the state
// root override, HTTP probe timeouts, enabled datasources, and module
// enable/disable list. This is distinct from internal/cloudconfig, which
// parses the user-facing #cloud-config document.
package agentcfg

import (
	"fmt"
	"strings"

	"github.com/go-ini/ini"
)

const defaultConfig = `
[System]
state_dir =
config_dir =

[Datasources]
enabled = Ec2,Azure,GCE,OpenStack,NoCloud

[Network]
renderer =

[Modules]
disabled =

[Http]
connect_timeout_seconds = 2
total_timeout_seconds = 5
`

// Sections holds the agent's own operational configuration, loaded from
// the system_info-equivalent section of cloud.cfg.
type Sections struct {
	System      System      `ini:"System"`
	Datasources Datasources `ini:"Datasources"`
	Network     Network     `ini:"Network"`
	Modules     Modules     `ini:"Modules"`
	Http        Http        `ini:"Http"`
}

// System holds the state/config root overrides (§4.A Paths).
type System struct {
	StateDir  string `ini:"state_dir,omitempty"`
	ConfigDir string `ini:"config_dir,omitempty"`
}

// Datasources lists which drivers detection should try, in order.
type Datasources struct {
	Enabled string `ini:"enabled,omitempty"`
}

// Network holds the explicit renderer hint (§4.H Select).
type Network struct {
	Renderer string `ini:"renderer,omitempty"`
}

// Modules lists which module names the runtime should skip.
type Modules struct {
	Disabled string `ini:"disabled,omitempty"`
}

// Http holds the bounded-probe timeouts (§5 Cancellation and timeouts).
type Http struct {
	ConnectTimeoutSeconds int `ini:"connect_timeout_seconds,omitempty"`
	TotalTimeoutSeconds   int `ini:"total_timeout_seconds,omitempty"`
}

// Load reads the default configuration merged with the files at path (later
// files win), tolerating missing files the way cfg.Load's LoadSources chain
// does with ini.LoadOptions{Loose: true}.
func Load(paths ...string) (*Sections, error) {
	opts := ini.LoadOptions{Loose: true, Insensitive: true}

	sources := make([]interface{}, 0, len(paths)+1)
	sources = append(sources, []byte(defaultConfig))
	for _, p := range paths {
		sources = append(sources, p)
	}

	cfg, err := ini.LoadSources(opts, sources[0], sources[1:]...)
	if err != nil {
		return nil, fmt.Errorf("loading agent configuration: %w", err)
	}

	sections := new(Sections)
	if err := cfg.MapTo(sections); err != nil {
		return nil, fmt.Errorf("mapping agent configuration: %w", err)
	}
	return sections, nil
}

// EnabledDatasources splits the comma-separated Datasources.Enabled list.
func (s *Sections) EnabledDatasources() []string {
	return splitCSV(s.Datasources.Enabled)
}

// DisabledModules splits the comma-separated Modules.Disabled list.
func (s *Sections) DisabledModules() []string {
	return splitCSV(s.Modules.Disabled)
}

// ModuleEnabled reports whether name is absent from the disabled list.
func (s *Sections) ModuleEnabled(name string) bool {
	for _, d := range s.DisabledModules() {
		if strings.EqualFold(d, name) {
			return false
		}
	}
	return true
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
