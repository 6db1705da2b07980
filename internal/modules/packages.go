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
	"os"
	"os/exec"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
)

// packageManager names one of the package managers probed in order (§4.I).
type packageManager struct {
	name    string
	update  []string
	upgrade []string
	install func(pkgs []string) []string
}

var packageManagers = []packageManager{
	{
		name:    "apt-get",
		update:  []string{"update"},
		upgrade: []string{"upgrade", "-y"},
		install: func(pkgs []string) []string { return append([]string{"install", "-y"}, pkgs...) },
	},
	{
		name:    "dnf",
		update:  []string{"check-update"},
		upgrade: []string{"upgrade", "-y"},
		install: func(pkgs []string) []string { return append([]string{"install", "-y"}, pkgs...) },
	},
	{
		name:    "yum",
		update:  []string{"check-update"},
		upgrade: []string{"update", "-y"},
		install: func(pkgs []string) []string { return append([]string{"install", "-y"}, pkgs...) },
	},
	{
		name:    "zypper",
		update:  []string{"refresh"},
		upgrade: []string{"update", "-y"},
		install: func(pkgs []string) []string { return append([]string{"install", "-y"}, pkgs...) },
	},
	{
		name:    "apk",
		update:  []string{"update"},
		upgrade: []string{"upgrade"},
		install: func(pkgs []string) []string { return append([]string{"add"}, pkgs...) },
	},
}

// DetectPackageManager probes apt-get|dnf|yum|zypper|apk in order and
// returns the first one found on PATH.
func DetectPackageManager() (string, bool) {
	for _, pm := range packageManagers {
		if _, err := exec.LookPath(pm.name); err == nil {
			return pm.name, true
		}
	}
	return "", false
}

// InstallPackages runs update (if requested), upgrade (if requested), then
// install for the given package list, using whichever manager is present.
// Install failure is fatal per §4.I; update/upgrade failures are logged by
// the caller via the module's own failure policy.
func InstallPackages(ctx context.Context, pkgs []string, doUpdate, doUpgrade bool) error {
	pm, ok := lookupManager()
	if !ok {
		return agenterrors.New(agenterrors.KindModule, "no supported package manager found")
	}

	if doUpdate {
		if err := runPackageCmd(ctx, pm.name, pm.update); err != nil {
			return agenterrors.Wrap(agenterrors.KindCommand, pm.name+" update failed", err)
		}
	}
	if doUpgrade {
		if err := runPackageCmd(ctx, pm.name, pm.upgrade); err != nil {
			return agenterrors.Wrap(agenterrors.KindCommand, pm.name+" upgrade failed", err)
		}
	}
	if len(pkgs) == 0 {
		return nil
	}
	if err := runPackageCmd(ctx, pm.name, pm.install(pkgs)); err != nil {
		return agenterrors.Wrap(agenterrors.KindCommand, pm.name+" install failed", err)
	}
	return nil
}

func lookupManager() (packageManager, bool) {
	name, ok := DetectPackageManager()
	if !ok {
		return packageManager{}, false
	}
	for _, pm := range packageManagers {
		if pm.name == name {
			return pm, true
		}
	}
	return packageManager{}, false
}

// runPackageCmd invokes the manager with DEBIAN_FRONTEND=noninteractive set
// outward (§4.I), harmless for managers that ignore it.
func runPackageCmd(ctx context.Context, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive")
	return cmd.Run()
}
