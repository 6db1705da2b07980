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

// Package datasource defines the cloud metadata driver contract (§4.G) and
// the fixed-priority detection that picks the first available one.
package datasource

import (
	"context"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
	"github.com/cloudboot-io/boot-agent/internal/userdata"
)

// InstanceMetadata is the flat record a driver produces. All fields are
// optional except that a non-empty InstanceID is required for persistence.
type InstanceMetadata struct {
	InstanceID       string
	LocalHostname    string
	Region           string
	AvailabilityZone string
	CloudName        string
	Platform         string
	InstanceType     string
}

// Driver is the interface every concrete cloud/NoCloud/OpenStack driver
// implements.
type Driver interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	GetMetadata(ctx context.Context) (InstanceMetadata, error)
	GetUserdata(ctx context.Context) (userdata.Userdata, error)
	// GetVendordata returns (Userdata{Kind: KindAbsent}, nil) when the
	// platform has no vendor-data concept.
	GetVendordata(ctx context.Context) (userdata.Userdata, error)
}

// Detect runs drivers in priority order and returns the first one whose
// IsAvailable reports true. A driver whose availability check panics or
// errors internally is expected to recover and report false, not bubble an
// error — detection itself only fails when none are available.
func Detect(ctx context.Context, drivers []Driver) (Driver, error) {
	for _, d := range drivers {
		if d.IsAvailable(ctx) {
			return d, nil
		}
	}
	return nil, agenterrors.New(agenterrors.KindNoDatasource, "no datasource available")
}
