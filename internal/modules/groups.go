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

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
	"github.com/cloudboot-io/boot-agent/internal/cloudconfig"
	"github.com/cloudboot-io/boot-agent/internal/run"
)

// CreateGroups runs groupadd for every groups[] entry that doesn't already
// exist, then adds any listed members. Per-entity warn-and-continue (§4.I):
// one group's failure does not stop the rest.
func CreateGroups(ctx context.Context, groups []cloudconfig.Group) error {
	var firstErr error
	for _, g := range groups {
		if g.Name == "" {
			continue
		}
		if !groupExists(ctx, g.Name) {
			if err := run.Quiet(ctx, "groupadd", g.Name); err != nil {
				logger.Errorf("creating group %q: %v", g.Name, err)
				if firstErr == nil {
					firstErr = agenterrors.Wrap(agenterrors.KindUserGroup, "creating group "+g.Name, err)
				}
				continue
			}
		}
		for _, member := range g.Members {
			if err := run.Quiet(ctx, "gpasswd", "-a", member, g.Name); err != nil {
				logger.Errorf("adding %q to group %q: %v", member, g.Name, err)
			}
		}
	}
	return firstErr
}

func groupExists(ctx context.Context, name string) bool {
	return run.WithOutput(ctx, "getent", "group", name).ExitCode == 0
}
