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

	"github.com/cloudboot-io/boot-agent/internal/cloudconfig"
	"github.com/cloudboot-io/boot-agent/internal/run"
)

// RunCommands executes each entry in order, logging and continuing on a
// non-zero exit (§4.I: "historical compatibility"). A shell-string entry
// runs under `sh -c`; an argv entry runs directly.
func RunCommands(ctx context.Context, entries []cloudconfig.RunCmdEntry) error {
	for i, entry := range entries {
		var err error
		if entry.IsShell() {
			err = run.Quiet(ctx, "sh", "-c", entry.Shell)
		} else if len(entry.Args) > 0 {
			err = run.Quiet(ctx, entry.Args[0], entry.Args[1:]...)
		}
		if err != nil {
			logger.Errorf("command %d failed, continuing: %v", i, err)
		}
	}
	return nil
}
