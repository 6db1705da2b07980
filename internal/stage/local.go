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

package stage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"

	"github.com/cloudboot-io/boot-agent/internal/netmodel"
	"github.com/cloudboot-io/boot-agent/internal/netrender"
	"github.com/cloudboot-io/boot-agent/internal/run"
)

// wellKnownNetworkConfigPaths are checked in order for a pre-network
// network-config document (§4.J Local stage: "apply network configuration
// read from one of four well-known paths if any exists").
var wellKnownNetworkConfigPaths = []string{
	"/etc/cloud/cloud.cfg.d/99-network-config-cached.cfg",
	"/etc/network-config",
	"/var/lib/cloud/seed/nocloud/network-config",
	"/var/lib/cloud/seed/nocloud-net/network-config",
}

// RunLocal runs the pre-network stage: check for a NoCloud seed, apply any
// network configuration found at a well-known path, and touch the disk
// growth hook (out of scope for this agent's own implementation, but the
// hook remains so a future extension has somewhere to live).
func RunLocal(ctx context.Context, env *Env) error {
	if dir, ok := findSeedDir(); ok {
		logger.Infof("found NoCloud seed at %s", dir)
	}

	if err := applyWellKnownNetworkConfig(env); err != nil {
		logger.Errorf("applying local network configuration: %v", err)
	}

	runDiskGrowthHook(env)
	return nil
}

func findSeedDir() (string, bool) {
	for _, dir := range []string{
		"/var/lib/cloud/seed/nocloud",
		"/var/lib/cloud/seed/nocloud-net",
		"/media/cidata",
		"/mnt/cidata",
	} {
		if _, err := os.Stat(dir + "/meta-data"); err == nil {
			return dir, true
		}
	}
	return "", false
}

func applyWellKnownNetworkConfig(env *Env) error {
	for _, path := range wellKnownNetworkConfigPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return renderNetworkConfig(env, data)
	}
	return nil
}

// renderNetworkConfig parses a network-config document and writes it out
// through whichever renderer the environment selects, shared by the Local
// stage's well-known-path check and the Network stage's datasource-sourced
// network-config.
func renderNetworkConfig(env *Env, data []byte) error {
	model, err := netmodel.Parse(data)
	if err != nil {
		return err
	}

	hint := ""
	if env.Config != nil {
		hint = env.Config.Network.Renderer
	}
	renderer, ok := netrender.Select(hint, model.Renderer)
	if !ok {
		return nil
	}

	files, err := renderer.Render(model)
	if err != nil {
		return err
	}
	for _, f := range files {
		path := filepath.Join(renderer.Root(), f.RelativePath)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, f.Content, f.Mode); err != nil {
			return err
		}
	}
	logger.Infof("wrote %d network config file(s) via %s renderer", len(files), renderer.Name())

	reloadRenderer(renderer)
	return nil
}

// reloadRenderer runs the renderer's reload command so the backend picks
// up the files just written, falling back to the secondary command if the
// primary one is not installed (§4.H's emit contract). A failure here is
// logged, not fatal — the files are already on disk and will take effect
// on next boot regardless.
func reloadRenderer(renderer netrender.Renderer) {
	primary, fallback := renderer.ReloadArgv()
	if len(primary) == 0 {
		return
	}
	if err := run.Quiet(context.Background(), primary[0], primary[1:]...); err != nil {
		logger.Errorf("%s: %v", strings.Join(primary, " "), err)
		if len(fallback) > 0 {
			if err := run.Quiet(context.Background(), fallback[0], fallback[1:]...); err != nil {
				logger.Errorf("%s: %v", strings.Join(fallback, " "), err)
			}
		}
	}
}

// runDiskGrowthHook is the disk-growth stage hook named in §4.J. Actual
// growpart/resize_rootfs execution is a named Non-goal of this agent; the
// hook only logs so the call site a future implementation needs is already
// in place.
func runDiskGrowthHook(env *Env) {
	logger.Debugf("disk growth stage hook: not implemented")
}
