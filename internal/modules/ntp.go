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

package modules

import (
	"context"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
	"github.com/cloudboot-io/boot-agent/internal/run"
)

// ntpServices is the probed-in-order list of service names this agent knows
// how to enable, covering the common distro defaults.
var ntpServices = []string{"systemd-timesyncd", "chronyd", "ntpd"}

// EnableNTP enables and starts whichever known NTP service is present,
// a thin wrapper around systemctl (§4.I names ntp among the leaf modules;
// the shelling-out body itself is out of scope for the design).
func EnableNTP(ctx context.Context) error {
	for _, svc := range ntpServices {
		if err := run.Quiet(ctx, "systemctl", "enable", "--now", svc); err == nil {
			return nil
		}
	}
	return agenterrors.New(agenterrors.KindModule, "no supported NTP service found")
}
