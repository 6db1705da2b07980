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

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
	"github.com/cloudboot-io/boot-agent/internal/cloudconfig"
	"github.com/cloudboot-io/boot-agent/internal/modules"
	"github.com/cloudboot-io/boot-agent/internal/state"
)

// RunConfig loads the merged cloud-config for the current instance and
// runs every module in the fixed order named in §4.J: hostname/fqdn/hosts,
// timezone, locale, groups, users, ssh_keys (root), write_files
// (non-deferred), packages (update -> upgrade -> install), ntp, write_files
// (deferred).
func RunConfig(ctx context.Context, env *Env) error {
	if env.InstanceID == "" {
		return agenterrors.Stage(Config, "no instance id, run the network stage first", nil)
	}

	cfg, err := loadInstanceCloudConfig(env)
	if err != nil {
		// §7: "A stage that cannot even load cloud-config falls back to
		// defaults and continues."
		logger.Errorf("loading cloud-config, falling back to empty document: %v", err)
		cfg = cloudconfig.CloudConfig{}
	}

	runner := modules.NewRunner(env.Sem)
	mods := []modules.Module{
		{
			Name: "hostname", Frequency: state.PerInstance, Policy: modules.FailWarn,
			Run: func(ctx context.Context) error {
				return modules.SetHostname(ctx, modules.HostnameInput{
					Hostname:       cfg.Hostname,
					FQDN:           cfg.FQDN,
					ManageEtcHosts: boolDefault(cfg.ManageEtcHosts, true),
				})
			},
		},
		{
			Name: "timezone", Frequency: state.PerInstance, Policy: modules.FailWarn,
			Run: func(ctx context.Context) error { return modules.SetTimezone(ctx, cfg.Timezone) },
		},
		{
			Name: "locale", Frequency: state.PerInstance, Policy: modules.FailWarn,
			Run: func(ctx context.Context) error { return modules.SetLocale(ctx, cfg.Locale) },
		},
		{
			Name: "groups", Frequency: state.PerInstance, Policy: modules.FailWarn,
			Run: func(ctx context.Context) error { return modules.CreateGroups(ctx, cfg.Groups) },
		},
		{
			Name: "users", Frequency: state.PerInstance, Policy: modules.FailWarn,
			Run: func(ctx context.Context) error { return modules.CreateUsers(ctx, cfg.Users) },
		},
		{
			Name: "ssh_keys", Frequency: state.PerInstance, Policy: modules.FailWarn,
			Run: func(ctx context.Context) error {
				keys := rootSSHKeys(cfg)
				if len(keys) == 0 {
					return nil
				}
				return modules.InstallAuthorizedKeys("root", keys)
			},
		},
		{
			Name: "write_files", Frequency: state.PerInstance, Policy: modules.FailWarn,
			Run: func(ctx context.Context) error { return modules.WriteFiles(cfg.WriteFiles, false) },
		},
		{
			Name: "packages", Frequency: state.PerInstance, Policy: modules.FailFatal,
			Run: func(ctx context.Context) error {
				return modules.InstallPackages(ctx, cfg.Packages,
					boolDefault(cfg.PackageUpdate, false), boolDefault(cfg.PackageUpgrade, false))
			},
		},
		{
			Name: "ntp", Frequency: state.PerInstance, Policy: modules.FailWarn,
			Run: func(ctx context.Context) error { return modules.EnableNTP(ctx) },
		},
		{
			Name: "write_files_deferred", Frequency: state.PerInstance, Policy: modules.FailWarn,
			Run: func(ctx context.Context) error { return modules.WriteFiles(cfg.WriteFiles, true) },
		},
	}

	for i, m := range mods {
		mods[i] = guardedRun(env, m)
	}

	return runner.RunAll(ctx, mods)
}

func loadInstanceCloudConfig(env *Env) (cloudconfig.CloudConfig, error) {
	data, err := os.ReadFile(env.Paths.CloudConfigFile(env.InstanceID))
	if err != nil {
		if os.IsNotExist(err) {
			return cloudconfig.CloudConfig{}, nil
		}
		return cloudconfig.CloudConfig{}, agenterrors.Wrap(agenterrors.KindIo, "reading merged cloud-config", err)
	}
	return cloudconfig.FromYAML(string(data))
}

func boolDefault(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
