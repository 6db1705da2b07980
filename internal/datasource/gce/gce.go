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

// Package gce implements the GCE metadata server driver (§4.G), backed by
// the official cloud.google.com/go/compute/metadata client.
package gce

import (
	"context"
	"strings"

	"cloud.google.com/go/compute/metadata"

	"github.com/cloudboot-io/boot-agent/internal/datasource"
	"github.com/cloudboot-io/boot-agent/internal/userdata"
)

// Driver is the GCE datasource.
type Driver struct {
	client *metadata.Client
}

// New returns a GCE driver talking to the real metadata server.
func New() *Driver {
	return &Driver{client: metadata.NewClient(nil)}
}

func (d *Driver) Name() string { return "GCE" }

func (d *Driver) IsAvailable(ctx context.Context) bool {
	if datasource.DMIContainsAny("google") {
		if _, err := d.client.GetWithContext(ctx, "instance/id"); err == nil {
			return true
		}
	}
	_, err := d.client.GetWithContext(ctx, "instance/id")
	return err == nil
}

func (d *Driver) GetMetadata(ctx context.Context) (datasource.InstanceMetadata, error) {
	meta := datasource.InstanceMetadata{CloudName: "gce", Platform: "gce"}

	if id, err := d.client.GetWithContext(ctx, "instance/id"); err == nil {
		meta.InstanceID = strings.TrimSpace(id)
	}
	if hostname, err := d.client.GetWithContext(ctx, "instance/hostname"); err == nil {
		meta.LocalHostname = strings.TrimSpace(hostname)
	}
	if zonePath, err := d.client.GetWithContext(ctx, "instance/zone"); err == nil {
		zone := lastPathComponent(zonePath)
		meta.AvailabilityZone = zone
		meta.Region = regionFromZone(zone)
	}
	if typePath, err := d.client.GetWithContext(ctx, "instance/machine-type"); err == nil {
		meta.InstanceType = lastPathComponent(typePath)
	}
	return meta, nil
}

// lastPathComponent trims GCE's "projects/NUM/zones/ZONE"-shaped values
// down to the trailing segment.
func lastPathComponent(path string) string {
	path = strings.TrimSpace(path)
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// regionFromZone strips the trailing "-<letter>" suffix, e.g.
// "us-central1-a" -> "us-central1".
func regionFromZone(zone string) string {
	idx := strings.LastIndex(zone, "-")
	if idx < 0 {
		return zone
	}
	return zone[:idx]
}

func (d *Driver) GetUserdata(ctx context.Context) (userdata.Userdata, error) {
	content, err := d.client.GetWithContext(ctx, "instance/attributes/user-data")
	if err != nil || content == "" {
		content, err = d.client.GetWithContext(ctx, "instance/attributes/startup-script")
		if err != nil || content == "" {
			return userdata.Userdata{Kind: userdata.KindAbsent}, nil
		}
	}
	return userdata.Decode([]byte(content))
}

func (d *Driver) GetVendordata(ctx context.Context) (userdata.Userdata, error) {
	return userdata.Userdata{Kind: userdata.KindAbsent}, nil
}
