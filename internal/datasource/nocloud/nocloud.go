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

// Package nocloud implements the NoCloud datasource (§4.G): a local seed
// directory carrying meta-data/user-data/vendor-data/network-config.
package nocloud

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cloudboot-io/boot-agent/internal/datasource"
	"github.com/cloudboot-io/boot-agent/internal/userdata"
)

// DefaultSeedDirs lists every location checked for a "meta-data" file, in
// priority order.
var DefaultSeedDirs = []string{
	"/var/lib/cloud/seed/nocloud",
	"/var/lib/cloud/seed/nocloud-net",
	"/media/cidata",
	"/mnt/cidata",
}

type metaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// Driver is the NoCloud datasource.
type Driver struct {
	SeedDirs []string
	found    string
}

func New() *Driver {
	return &Driver{SeedDirs: DefaultSeedDirs}
}

func NewWithSeedDirs(dirs ...string) *Driver {
	return &Driver{SeedDirs: dirs}
}

func (d *Driver) Name() string { return "NoCloud" }

func (d *Driver) seedDir() (string, bool) {
	if d.found != "" {
		return d.found, true
	}
	for _, dir := range d.SeedDirs {
		if _, err := os.Stat(filepath.Join(dir, "meta-data")); err == nil {
			return dir, true
		}
	}
	return "", false
}

func (d *Driver) IsAvailable(ctx context.Context) bool {
	dir, ok := d.seedDir()
	if ok {
		d.found = dir
	}
	return ok
}

func (d *Driver) GetMetadata(ctx context.Context) (datasource.InstanceMetadata, error) {
	meta := datasource.InstanceMetadata{CloudName: "nocloud", Platform: "nocloud"}
	dir, ok := d.seedDir()
	if !ok {
		return meta, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, "meta-data"))
	if err != nil {
		return meta, nil
	}
	var md metaData
	if err := yaml.Unmarshal(data, &md); err != nil {
		return meta, nil
	}
	meta.InstanceID = md.InstanceID
	meta.LocalHostname = md.LocalHostname
	return meta, nil
}

func (d *Driver) readAdjacent(name string) (userdata.Userdata, error) {
	dir, ok := d.seedDir()
	if !ok {
		return userdata.Userdata{Kind: userdata.KindAbsent}, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return userdata.Userdata{Kind: userdata.KindAbsent}, nil
	}
	return userdata.Decode(data)
}

func (d *Driver) GetUserdata(ctx context.Context) (userdata.Userdata, error) {
	return d.readAdjacent("user-data")
}

func (d *Driver) GetVendordata(ctx context.Context) (userdata.Userdata, error) {
	return d.readAdjacent("vendor-data")
}

// NetworkConfig reads the adjacent network-config blob, if present, for
// the network stage to parse as a v1 or v2 document.
func (d *Driver) NetworkConfig() ([]byte, bool) {
	dir, ok := d.seedDir()
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(dir, "network-config"))
	if err != nil {
		return nil, false
	}
	return data, true
}
