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

// Package ec2 implements the EC2 Instance Metadata Service driver (§4.G),
// preferring IMDSv2's token-based flow and falling back to IMDSv1.
package ec2

import (
	"context"
	"net/http"
	"strings"

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"

	"github.com/cloudboot-io/boot-agent/internal/datasource"
	"github.com/cloudboot-io/boot-agent/internal/httpx"
	"github.com/cloudboot-io/boot-agent/internal/userdata"
)

const (
	defaultBaseURL  = "http://169.254.169.254"
	tokenTTLSeconds = "300"

	tokenHeader    = "X-aws-ec2-metadata-token"
	tokenTTLHeader = "X-aws-ec2-metadata-token-ttl-seconds"
)

// Driver is the EC2 (and IMDS-compatible clone) datasource.
type Driver struct {
	BaseURL string
	client  *http.Client
}

// New returns an EC2 driver pointed at the real link-local IMDS address.
func New() *Driver {
	return &Driver{BaseURL: defaultBaseURL, client: httpx.NewProbeClient()}
}

// NewWithBaseURL returns a driver pointed at a custom base, for tests.
func NewWithBaseURL(baseURL string) *Driver {
	return &Driver{BaseURL: baseURL, client: httpx.NewProbeClient()}
}

func (d *Driver) Name() string { return "EC2" }

func (d *Driver) IsAvailable(ctx context.Context) bool {
	if dmiLooksLikeEC2() {
		return true
	}
	_, _, err := httpx.Get(ctx, d.client, d.BaseURL+"/latest/meta-data/instance-id", d.tokenHeaders(ctx))
	return err == nil
}

func dmiLooksLikeEC2() bool {
	return datasource.DMIContainsAny("amazon") || datasource.FileExists("/sys/hypervisor/uuid")
}

// tokenHeaders fetches an IMDSv2 token and returns the header map to carry
// it; on token failure (e.g. 403 on a v1-only host) it returns headers with
// no token, which IMDSv1 simply ignores.
func (d *Driver) tokenHeaders(ctx context.Context) map[string]string {
	token, status, err := httpx.Put(ctx, d.client, d.BaseURL+"/latest/api/token", map[string]string{
		tokenTTLHeader: tokenTTLSeconds,
	}, nil)
	if err != nil || status < 200 || status >= 300 || len(token) == 0 {
		return map[string]string{}
	}
	return map[string]string{tokenHeader: strings.TrimSpace(string(token))}
}

func (d *Driver) fetch(ctx context.Context, headers map[string]string, path string) (string, bool) {
	body, status, err := httpx.Get(ctx, d.client, d.BaseURL+path, headers)
	if err != nil || status == 404 || status < 200 || status >= 300 {
		return "", false
	}
	return string(body), true
}

func (d *Driver) GetMetadata(ctx context.Context) (datasource.InstanceMetadata, error) {
	headers := d.tokenHeaders(ctx)
	meta := datasource.InstanceMetadata{CloudName: "aws", Platform: "ec2"}

	if id, ok := d.fetch(ctx, headers, "/latest/meta-data/instance-id"); ok {
		meta.InstanceID = id
	}
	if hostname, ok := d.fetch(ctx, headers, "/latest/meta-data/local-hostname"); ok {
		meta.LocalHostname = hostname
	}
	if az, ok := d.fetch(ctx, headers, "/latest/meta-data/placement/availability-zone"); ok {
		meta.AvailabilityZone = az
		meta.Region = regionFromAZ(az)
	}
	return meta, nil
}

// regionFromAZ strips the trailing availability-zone letter, e.g.
// "us-east-1a" -> "us-east-1".
func regionFromAZ(az string) string {
	if az == "" {
		return ""
	}
	return az[:len(az)-1]
}

func (d *Driver) GetUserdata(ctx context.Context) (userdata.Userdata, error) {
	headers := d.tokenHeaders(ctx)
	body, status, err := httpx.Get(ctx, d.client, d.BaseURL+"/latest/user-data", headers)
	if err != nil {
		logger.Debugf("ec2: user-data fetch failed: %v", err)
		return userdata.Userdata{Kind: userdata.KindAbsent}, nil
	}
	if status == 404 || len(body) == 0 {
		return userdata.Userdata{Kind: userdata.KindAbsent}, nil
	}
	return userdata.Decode(body)
}

func (d *Driver) GetVendordata(ctx context.Context) (userdata.Userdata, error) {
	return userdata.Userdata{Kind: userdata.KindAbsent}, nil
}
