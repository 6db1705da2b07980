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

// Package openstack implements the OpenStack datasource (§4.G): metadata
// service with a config-drive short-circuit.
package openstack

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cloudboot-io/boot-agent/internal/datasource"
	"github.com/cloudboot-io/boot-agent/internal/httpx"
	"github.com/cloudboot-io/boot-agent/internal/userdata"
)

const defaultMetadataURL = "http://169.254.169.254/openstack"

var configDrivePaths = []string{
	"/mnt/config",
	"/config-2",
	"/media/configdrive",
	"/run/cloud-init/config-drive",
}

type metadataDoc struct {
	UUID             string `json:"uuid"`
	Name             string `json:"name"`
	Hostname         string `json:"hostname"`
	AvailabilityZone string `json:"availability_zone"`
}

// Driver is the OpenStack datasource.
type Driver struct {
	MetadataURL string
	client      *http.Client
}

func New() *Driver {
	return &Driver{MetadataURL: defaultMetadataURL, client: httpx.NewProbeClient()}
}

func NewWithBaseURL(baseURL string) *Driver {
	return &Driver{MetadataURL: baseURL, client: httpx.NewProbeClient()}
}

func (d *Driver) Name() string { return "OpenStack" }

func findConfigDrive() (string, bool) {
	for _, path := range configDrivePaths {
		metaPath := filepath.Join(path, "openstack/latest/meta_data.json")
		if _, err := os.Stat(metaPath); err == nil {
			return path, true
		}
	}
	return "", false
}

func (d *Driver) checkMetadataService(ctx context.Context) bool {
	_, _, err := httpx.Get(ctx, d.client, d.MetadataURL+"/latest/meta_data.json", nil)
	return err == nil
}

func (d *Driver) IsAvailable(ctx context.Context) bool {
	if _, ok := findConfigDrive(); ok {
		return true
	}
	if datasource.DMIContainsAny("openstack", "bochs", "qemu", "kvm", "rhev") {
		return d.checkMetadataService(ctx)
	}
	return d.checkMetadataService(ctx)
}

func (d *Driver) fetchMetadataHTTP(ctx context.Context) (metadataDoc, error) {
	body, _, err := httpx.Get(ctx, d.client, d.MetadataURL+"/latest/meta_data.json", nil)
	if err != nil {
		return metadataDoc{}, err
	}
	var doc metadataDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return metadataDoc{}, err
	}
	return doc, nil
}

func (d *Driver) fetchMetadataConfigDrive(configDrive string) (metadataDoc, error) {
	data, err := os.ReadFile(filepath.Join(configDrive, "openstack/latest/meta_data.json"))
	if err != nil {
		return metadataDoc{}, err
	}
	var doc metadataDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return metadataDoc{}, err
	}
	return doc, nil
}

func (d *Driver) GetMetadata(ctx context.Context) (datasource.InstanceMetadata, error) {
	var (
		doc metadataDoc
		err error
	)
	if configDrive, ok := findConfigDrive(); ok {
		doc, err = d.fetchMetadataConfigDrive(configDrive)
	} else {
		doc, err = d.fetchMetadataHTTP(ctx)
	}
	meta := datasource.InstanceMetadata{CloudName: "openstack", Platform: "openstack"}
	if err != nil {
		return meta, nil
	}

	meta.InstanceID = doc.UUID
	if doc.Hostname != "" {
		meta.LocalHostname = doc.Hostname
	} else {
		meta.LocalHostname = doc.Name
	}
	if doc.AvailabilityZone != "" {
		meta.AvailabilityZone = doc.AvailabilityZone
		if idx := lastDash(doc.AvailabilityZone); idx >= 0 {
			meta.Region = doc.AvailabilityZone[:idx]
		}
	}
	return meta, nil
}

func lastDash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '-' {
			return i
		}
	}
	return -1
}

func (d *Driver) fetchUserdataHTTP(ctx context.Context) ([]byte, bool) {
	body, status, err := httpx.Get(ctx, d.client, d.MetadataURL+"/latest/user_data", nil)
	if err != nil || status == 404 || len(body) == 0 {
		return nil, false
	}
	return body, true
}

func (d *Driver) fetchUserdataConfigDrive(configDrive string) ([]byte, bool) {
	data, err := os.ReadFile(filepath.Join(configDrive, "openstack/latest/user_data"))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

func (d *Driver) GetUserdata(ctx context.Context) (userdata.Userdata, error) {
	var (
		body []byte
		ok   bool
	)
	if configDrive, found := findConfigDrive(); found {
		body, ok = d.fetchUserdataConfigDrive(configDrive)
	} else {
		body, ok = d.fetchUserdataHTTP(ctx)
	}
	if !ok {
		return userdata.Userdata{Kind: userdata.KindAbsent}, nil
	}
	return userdata.Decode(body)
}

func (d *Driver) GetVendordata(ctx context.Context) (userdata.Userdata, error) {
	return userdata.Userdata{Kind: userdata.KindAbsent}, nil
}
