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

// Package cloudconfig implements the §4.E CloudConfig document: its typed
// shape, YAML parsing of the polymorphic user/group/runcmd fields, and the
// value-tree merge that composes the precedence chain of §4.E.
package cloudconfig

import "gopkg.in/yaml.v3"

// CloudConfig is the typed representation of the recognized configuration
// surface (§3). Unknown fields are ignored, not an error.
type CloudConfig struct {
	Hostname        string           `yaml:"hostname,omitempty" mapstructure:"hostname"`
	FQDN            string           `yaml:"fqdn,omitempty" mapstructure:"fqdn"`
	ManageEtcHosts  *bool            `yaml:"manage_etc_hosts,omitempty" mapstructure:"manage_etc_hosts"`
	Users           []User           `yaml:"users,omitempty" mapstructure:"users"`
	Groups          []Group          `yaml:"groups,omitempty" mapstructure:"groups"`
	WriteFiles      []WriteFile      `yaml:"write_files,omitempty" mapstructure:"write_files"`
	RunCmd          []RunCmdEntry    `yaml:"runcmd,omitempty" mapstructure:"runcmd"`
	BootCmd         []RunCmdEntry    `yaml:"bootcmd,omitempty" mapstructure:"bootcmd"`
	Packages        []string         `yaml:"packages,omitempty" mapstructure:"packages"`
	PackageUpdate   *bool            `yaml:"package_update,omitempty" mapstructure:"package_update"`
	PackageUpgrade  *bool            `yaml:"package_upgrade,omitempty" mapstructure:"package_upgrade"`
	SSH             *SSHConfig       `yaml:"ssh,omitempty" mapstructure:"ssh"`
	SSHAuthorizedKeys []string       `yaml:"ssh_authorized_keys,omitempty" mapstructure:"ssh_authorized_keys"`
	Timezone        string           `yaml:"timezone,omitempty" mapstructure:"timezone"`
	Locale          string           `yaml:"locale,omitempty" mapstructure:"locale"`
	Growpart        *GrowpartConfig  `yaml:"growpart,omitempty" mapstructure:"growpart"`
	ResizeRootfs    *bool            `yaml:"resize_rootfs,omitempty" mapstructure:"resize_rootfs"`
	PhoneHome       *PhoneHomeConfig `yaml:"phone_home,omitempty" mapstructure:"phone_home"`
	FinalMessage    string           `yaml:"final_message,omitempty" mapstructure:"final_message"`

	// MergeHow, if present, selects the ListMergeStrategy for this merge
	// operation (§4.E). The merged document keeps the value, so it is saved
	// with the persisted cloud-config.
	MergeHow string `yaml:"merge_how,omitempty" mapstructure:"merge_how"`
}

// User is a users[] entry: a bare name or a full record (§3, §9 polymorphic
// union).
type User struct {
	Name            string   `yaml:"name" mapstructure:"name"`
	Gecos           string   `yaml:"gecos,omitempty" mapstructure:"gecos"`
	Homedir         string   `yaml:"homedir,omitempty" mapstructure:"homedir"`
	PrimaryGroup    string   `yaml:"primary_group,omitempty" mapstructure:"primary_group"`
	Groups          []string `yaml:"groups,omitempty" mapstructure:"groups"`
	Shell           string   `yaml:"shell,omitempty" mapstructure:"shell"`
	Sudo            string   `yaml:"sudo,omitempty" mapstructure:"sudo"`
	LockPasswd      *bool    `yaml:"lock_passwd,omitempty" mapstructure:"lock_passwd"`
	Passwd          string   `yaml:"passwd,omitempty" mapstructure:"passwd"`
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys,omitempty" mapstructure:"ssh_authorized_keys"`
	// SSHImportID is supplemented from original_source/src/config/mod.rs;
	// see SPEC_FULL.md's Data Model section. The agent stores and surfaces
	// it but does not perform the keyserver fetch itself.
	SSHImportID []string `yaml:"ssh_import_id,omitempty" mapstructure:"ssh_import_id"`
	System      *bool    `yaml:"system,omitempty" mapstructure:"system"`
	UID         *int     `yaml:"uid,omitempty" mapstructure:"uid"`

	// bareName records that this entry was written as a plain string, so
	// the emitter (MarshalYAML) round-trips it in the shorter form instead
	// of always emitting a full record.
	bareName bool
}

// UnmarshalYAML accepts either a bare scalar name or a full mapping.
func (u *User) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		u.Name = value.Value
		u.bareName = true
		return nil
	}
	type plain User
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*u = User(p)
	return nil
}

// MarshalYAML emits the shortest form: a bare scalar if nothing but the
// name was ever set, else a full mapping.
func (u User) MarshalYAML() (interface{}, error) {
	if u.isBareEquivalent() {
		return u.Name, nil
	}
	type plain User
	return plain(u), nil
}

func (u User) isBareEquivalent() bool {
	return u.bareName && u.Gecos == "" && u.Homedir == "" && u.PrimaryGroup == "" &&
		len(u.Groups) == 0 && u.Shell == "" && u.Sudo == "" && u.LockPasswd == nil &&
		u.Passwd == "" && len(u.SSHAuthorizedKeys) == 0 && len(u.SSHImportID) == 0 &&
		u.System == nil && u.UID == nil
}

// Group is a groups[] entry: a bare name or {name, members[]}.
type Group struct {
	Name    string   `yaml:"name" mapstructure:"name"`
	Members []string `yaml:"members,omitempty" mapstructure:"members"`
}

func (g *Group) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		g.Name = value.Value
		return nil
	}
	type plain Group
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*g = Group(p)
	return nil
}

func (g Group) MarshalYAML() (interface{}, error) {
	if len(g.Members) == 0 {
		return g.Name, nil
	}
	type plain Group
	return plain(g), nil
}

// WriteFile is a write_files[] entry.
type WriteFile struct {
	Path        string `yaml:"path" mapstructure:"path"`
	Content     string `yaml:"content,omitempty" mapstructure:"content"`
	Encoding    string `yaml:"encoding,omitempty" mapstructure:"encoding"`
	Owner       string `yaml:"owner,omitempty" mapstructure:"owner"`
	Permissions string `yaml:"permissions,omitempty" mapstructure:"permissions"`
	Append      *bool  `yaml:"append,omitempty" mapstructure:"append"`
	Defer       *bool  `yaml:"defer,omitempty" mapstructure:"defer"`
}

// RunCmdEntry is a runcmd[]/bootcmd[] entry: a shell string or argv list.
type RunCmdEntry struct {
	Shell string
	Args  []string
}

func (r *RunCmdEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		r.Shell = value.Value
		return nil
	}
	var args []string
	if err := value.Decode(&args); err != nil {
		return err
	}
	r.Args = args
	return nil
}

func (r RunCmdEntry) MarshalYAML() (interface{}, error) {
	if r.Args != nil {
		return r.Args, nil
	}
	return r.Shell, nil
}

// IsShell reports whether this entry is a single shell string rather than
// an argv list.
func (r RunCmdEntry) IsShell() bool { return r.Args == nil }

// SSHConfig is the ssh: block.
type SSHConfig struct {
	EmitKeysToConsole *bool    `yaml:"emit_keys_to_console,omitempty" mapstructure:"emit_keys_to_console"`
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys,omitempty" mapstructure:"ssh_authorized_keys"`
}

// GrowpartConfig is the growpart: block.
type GrowpartConfig struct {
	Mode                   string   `yaml:"mode,omitempty" mapstructure:"mode"`
	Devices                []string `yaml:"devices,omitempty" mapstructure:"devices"`
	IgnoreGrowrootDisabled *bool    `yaml:"ignore_growroot_disabled,omitempty" mapstructure:"ignore_growroot_disabled"`
}

// PhoneHomeConfig is the phone_home: block.
type PhoneHomeConfig struct {
	URL   string   `yaml:"url" mapstructure:"url"`
	Post  []string `yaml:"post,omitempty" mapstructure:"post"`
	Tries *int     `yaml:"tries,omitempty" mapstructure:"tries"`
}

// FromYAML parses cloud-config from YAML text, stripping a leading
// "#cloud-config" marker line if present.
func FromYAML(text string) (CloudConfig, error) {
	stripped := stripCloudConfigHeader(text)
	var cfg CloudConfig
	if err := yaml.Unmarshal([]byte(stripped), &cfg); err != nil {
		return CloudConfig{}, err
	}
	return cfg, nil
}

func stripCloudConfigHeader(text string) string {
	trimmed := text
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t' || trimmed[0] == '\n' || trimmed[0] == '\r') {
		trimmed = trimmed[1:]
	}
	const marker = "#cloud-config"
	if len(trimmed) >= len(marker) && trimmed[:len(marker)] == marker {
		rest := trimmed[len(marker):]
		i := 0
		for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t' || rest[i] == '\n' || rest[i] == '\r') {
			i++
		}
		return rest[i:]
	}
	return text
}

// IsCloudConfig reports whether data's first non-whitespace content is the
// #cloud-config marker.
func IsCloudConfig(data string) bool {
	trimmed := data
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t' || trimmed[0] == '\n' || trimmed[0] == '\r') {
		trimmed = trimmed[1:]
	}
	const marker = "#cloud-config"
	return len(trimmed) >= len(marker) && trimmed[:len(marker)] == marker
}
