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

// Package azure implements the Azure Instance Metadata Service driver
// (§4.G).
package azure

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/cloudboot-io/boot-agent/internal/datasource"
	"github.com/cloudboot-io/boot-agent/internal/httpx"
	"github.com/cloudboot-io/boot-agent/internal/userdata"
)

const (
	defaultBaseURL = "http://169.254.169.254/metadata"
	apiVersion     = "2021-02-01"
)

type computeMetadata struct {
	Compute struct {
		VMID         string `json:"vmId"`
		Name         string `json:"name"`
		Location     string `json:"location"`
		VMSize       string `json:"vmSize"`
		Zone         string `json:"zone"`
		ComputerName string `json:"computerName"`
	} `json:"compute"`
}

// Driver is the Azure IMDS datasource.
type Driver struct {
	BaseURL string
	client  *http.Client
}

func New() *Driver {
	return &Driver{BaseURL: defaultBaseURL, client: httpx.NewProbeClient()}
}

func NewWithBaseURL(baseURL string) *Driver {
	return &Driver{BaseURL: baseURL, client: httpx.NewProbeClient()}
}

func (d *Driver) Name() string { return "Azure" }

func (d *Driver) headers() map[string]string {
	return map[string]string{"Metadata": "true"}
}

func (d *Driver) IsAvailable(ctx context.Context) bool {
	if dmiLooksLikeAzure() {
		return true
	}
	_, status, err := httpx.Get(ctx, d.client, d.BaseURL+"/instance?api-version="+apiVersion, d.headers())
	return err == nil && status >= 200 && status < 300
}

func dmiLooksLikeAzure() bool {
	if datasource.DMIContainsAny("microsoft", "azure", "virtual machine") {
		return true
	}
	tag, err := readAssetTag()
	return err == nil && strings.EqualFold(tag, "7783-7084-3265-9085-8269-3286-77")
}

func readAssetTag() (string, error) {
	data, err := os.ReadFile("/sys/class/dmi/id/chassis_asset_tag")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (d *Driver) fetchInstanceMetadata(ctx context.Context) (computeMetadata, error) {
	body, _, err := httpx.Get(ctx, d.client, d.BaseURL+"/instance?api-version="+apiVersion, d.headers())
	if err != nil {
		return computeMetadata{}, err
	}
	var meta computeMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return computeMetadata{}, err
	}
	return meta, nil
}

func (d *Driver) GetMetadata(ctx context.Context) (datasource.InstanceMetadata, error) {
	azMeta, err := d.fetchInstanceMetadata(ctx)
	if err != nil {
		return datasource.InstanceMetadata{CloudName: "azure", Platform: "azure"}, nil
	}

	meta := datasource.InstanceMetadata{CloudName: "azure", Platform: "azure"}
	meta.InstanceID = azMeta.Compute.VMID
	if azMeta.Compute.ComputerName != "" {
		meta.LocalHostname = azMeta.Compute.ComputerName
	} else {
		meta.LocalHostname = azMeta.Compute.Name
	}
	meta.Region = azMeta.Compute.Location
	if azMeta.Compute.Zone != "" {
		meta.AvailabilityZone = azMeta.Compute.Location + "-" + azMeta.Compute.Zone
	}
	meta.InstanceType = azMeta.Compute.VMSize
	return meta, nil
}

func (d *Driver) GetUserdata(ctx context.Context) (userdata.Userdata, error) {
	url := d.BaseURL + "/instance/compute/customData?api-version=" + apiVersion + "&format=text"
	body, status, err := httpx.Get(ctx, d.client, url, d.headers())
	if err != nil || status < 200 || status >= 300 || len(body) == 0 {
		return userdata.Userdata{Kind: userdata.KindAbsent}, nil
	}

	decoded, decErr := base64.StdEncoding.DecodeString(string(body))
	if decErr != nil {
		decoded = body
	}
	return userdata.Decode(decoded)
}

func (d *Driver) GetVendordata(ctx context.Context) (userdata.Userdata, error) {
	return userdata.Userdata{Kind: userdata.KindAbsent}, nil
}
