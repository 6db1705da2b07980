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

// Package state owns the on-disk layout (§4.A), semaphore markers (§4.B),
// and the instance-id transition that ties them together.
package state

import "path/filepath"

// Default root directories, matching the existing cloud-init-shaped layout
// so this agent is a drop-in replacement on hosts that already carry that
// directory structure.
const (
	DefaultCloudDir  = "/var/lib/cloud"
	DefaultConfigDir = "/etc/cloud"
)

// Paths exposes pure accessors for every well-known path under a
// configurable base and config root.
type Paths struct {
	Base   string
	Config string
}

// NewPaths returns accessors rooted at the default directories.
func NewPaths() *Paths {
	return &Paths{Base: DefaultCloudDir, Config: DefaultConfigDir}
}

// NewPathsWithBase returns accessors rooted at a custom base directory
// (the config root stays at the default), primarily for tests.
func NewPathsWithBase(base string) *Paths {
	return &Paths{Base: base, Config: DefaultConfigDir}
}

// NewPathsWithDirs returns accessors rooted at custom base and config
// directories.
func NewPathsWithDirs(base, config string) *Paths {
	return &Paths{Base: base, Config: config}
}

// ==================== Base directories ====================

func (p *Paths) DataDir() string      { return filepath.Join(p.Base, "data") }
func (p *Paths) InstancesDir() string { return filepath.Join(p.Base, "instances") }
func (p *Paths) InstanceLink() string { return filepath.Join(p.Base, "instance") }
func (p *Paths) ScriptsDir() string   { return filepath.Join(p.Base, "scripts") }
func (p *Paths) SeedDir() string      { return filepath.Join(p.Base, "seed") }

// ==================== Instance-specific paths ====================

func (p *Paths) InstanceDir(instanceID string) string {
	return filepath.Join(p.InstancesDir(), instanceID)
}

func (p *Paths) SemDir(instanceID string) string {
	return filepath.Join(p.InstanceDir(instanceID), "sem")
}

func (p *Paths) BootFinished(instanceID string) string {
	return filepath.Join(p.InstanceDir(instanceID), "boot-finished")
}

func (p *Paths) CloudConfigFile(instanceID string) string {
	return filepath.Join(p.InstanceDir(instanceID), "cloud-config.txt")
}

func (p *Paths) UserDataFile(instanceID string) string {
	return filepath.Join(p.InstanceDir(instanceID), "user-data.txt")
}

func (p *Paths) VendorDataFile(instanceID string) string {
	return filepath.Join(p.InstanceDir(instanceID), "vendor-data.txt")
}

func (p *Paths) DatasourceFile(instanceID string) string {
	return filepath.Join(p.InstanceDir(instanceID), "datasource")
}

// MetadataFile holds the JSON-encoded InstanceMetadata captured during the
// Network stage, so a later `query` invocation or the Local stage of a
// subsequent boot can read it back without re-probing the datasource.
func (p *Paths) MetadataFile(instanceID string) string {
	return filepath.Join(p.InstanceDir(instanceID), "metadata.json")
}

// ==================== Scripts directories ====================

func (p *Paths) ScriptsPerBoot() string     { return filepath.Join(p.ScriptsDir(), "per-boot") }
func (p *Paths) ScriptsPerInstance() string { return filepath.Join(p.ScriptsDir(), "per-instance") }
func (p *Paths) ScriptsPerOnce() string     { return filepath.Join(p.ScriptsDir(), "per-once") }

// ==================== Config paths ====================

func (p *Paths) MainConfig() string { return filepath.Join(p.Config, "cloud.cfg") }
func (p *Paths) ConfigD() string    { return filepath.Join(p.Config, "cloud.cfg.d") }

// ==================== Data paths ====================

func (p *Paths) CachedInstanceID() string    { return filepath.Join(p.DataDir(), "instance-id") }
func (p *Paths) PreviousInstanceID() string  { return filepath.Join(p.DataDir(), "previous-instance-id") }
func (p *Paths) ResultFile() string          { return filepath.Join(p.DataDir(), "result.json") }
func (p *Paths) StatusFile() string          { return filepath.Join(p.DataDir(), "status.json") }
func (p *Paths) SemDataDir() string          { return filepath.Join(p.DataDir(), "sem") }
