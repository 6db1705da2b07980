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

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
	"github.com/cloudboot-io/boot-agent/internal/cloudconfig"
	"github.com/cloudboot-io/boot-agent/internal/datasource"
	"github.com/cloudboot-io/boot-agent/internal/modules"
	"github.com/cloudboot-io/boot-agent/internal/state"
	"github.com/cloudboot-io/boot-agent/internal/template"
	"github.com/cloudboot-io/boot-agent/internal/userdata"
	"gopkg.in/yaml.v3"
)

// RunNetwork detects the datasource, pulls its metadata/userdata/
// vendordata, persists everything into the instance directory, swaps the
// instance-id directory if this is a new boot, saves the merged
// cloud-config, and applies the two settings that come straight from
// metadata rather than cloud-config: hostname and (if present in the
// resulting cloud-config) SSH keys.
func RunNetwork(ctx context.Context, env *Env) error {
	drv, err := datasource.Detect(ctx, env.Drivers)
	if err != nil {
		return agenterrors.Stage(Network, "no datasource available", err)
	}
	env.DatasourceName = drv.Name()
	logger.Infof("detected datasource %s", drv.Name())

	meta, err := drv.GetMetadata(ctx)
	if err != nil {
		return agenterrors.Stage(Network, "fetching metadata", err)
	}
	if meta.InstanceID == "" {
		return agenterrors.Stage(Network, "datasource produced no instance id", nil)
	}

	userData, err := drv.GetUserdata(ctx)
	if err != nil {
		logger.Errorf("fetching userdata: %v", err)
	}
	vendorData, err := drv.GetVendordata(ctx)
	if err != nil {
		logger.Errorf("fetching vendordata: %v", err)
	}

	userData = expandTemplate(userData, meta)
	vendorData = expandTemplate(vendorData, meta)

	isNew, err := env.Store.SetInstanceID(meta.InstanceID)
	if err != nil {
		return agenterrors.Stage(Network, "setting instance id", err)
	}
	env.InstanceID = meta.InstanceID
	env.Sem.SetInstanceID(meta.InstanceID)
	if isNew {
		logger.Infof("new instance id %s, directory swapped", meta.InstanceID)
	}

	if err := env.Store.SaveMetadata(meta.InstanceID, toStoreMetadata(meta)); err != nil {
		logger.Errorf("persisting metadata: %v", err)
	}
	if err := env.Store.SaveDatasourceName(meta.InstanceID, drv.Name()); err != nil {
		logger.Errorf("persisting datasource name: %v", err)
	}
	if raw := rawUserdataBlob(userData); raw != "" {
		if err := env.Store.SaveUserData(meta.InstanceID, []byte(raw)); err != nil {
			logger.Errorf("persisting userdata: %v", err)
		}
	}
	if raw := rawUserdataBlob(vendorData); raw != "" {
		if err := env.Store.SaveVendorData(meta.InstanceID, []byte(raw)); err != nil {
			logger.Errorf("persisting vendordata: %v", err)
		}
	}

	merged, err := cloudconfig.Compose(env.Paths, vendorData.RawCloudConfig, userData.RawCloudConfig)
	if err != nil {
		logger.Errorf("composing cloud-config: %v", err)
		merged = cloudconfig.CloudConfig{}
	}
	if out, err := yaml.Marshal(merged); err == nil {
		if err := env.Store.SaveCloudConfig(meta.InstanceID, out); err != nil {
			logger.Errorf("persisting merged cloud-config: %v", err)
		}
	}

	if meta.LocalHostname != "" {
		if err := modules.SetHostname(ctx, modules.HostnameInput{
			Hostname:       meta.LocalHostname,
			ManageEtcHosts: true,
		}); err != nil {
			logger.Errorf("setting hostname from metadata: %v", err)
		}
	}

	if keys := rootSSHKeys(merged); len(keys) > 0 {
		if err := modules.InstallAuthorizedKeys("root", keys); err != nil {
			logger.Errorf("installing root SSH keys from metadata: %v", err)
		}
	}

	return nil
}

// expandTemplate evaluates a "## template: jinja" cloud-config document
// against the fetched instance metadata (§4.F); the userdata decoder
// itself only classifies and leaves the marker in place, per §4.D step 3
// ("Template content must already be expanded by the caller").
func expandTemplate(u userdata.Userdata, meta datasource.InstanceMetadata) userdata.Userdata {
	if u.Kind != userdata.KindCloudConfig || !template.IsTemplate(u.RawCloudConfig) {
		return u
	}
	out, err := template.Render(u.RawCloudConfig, meta)
	if err != nil {
		logger.Errorf("expanding jinja template: %v", err)
		return u
	}
	u.RawCloudConfig = out
	return u
}

// rawUserdataBlob recovers the original text worth persisting for a decoded
// Userdata value: the cloud-config YAML or the script body. Multipart and
// absent values have nothing single-blob to persist here.
func rawUserdataBlob(u userdata.Userdata) string {
	switch u.Kind {
	case userdata.KindCloudConfig:
		return u.RawCloudConfig
	case userdata.KindScript:
		return u.Script
	default:
		return ""
	}
}

func toStoreMetadata(m datasource.InstanceMetadata) state.Metadata {
	return state.Metadata{
		InstanceID:       m.InstanceID,
		LocalHostname:    m.LocalHostname,
		Region:           m.Region,
		AvailabilityZone: m.AvailabilityZone,
		CloudName:        m.CloudName,
		Platform:         m.Platform,
		InstanceType:     m.InstanceType,
	}
}

// rootSSHKeys gathers the top-level ssh_authorized_keys and ssh.ssh_authorized_keys
// fields, which apply to the default/root account rather than a named user
// (distinct from a users[] entry's own keys, handled by the Config stage).
func rootSSHKeys(cfg cloudconfig.CloudConfig) []string {
	keys := append([]string{}, cfg.SSHAuthorizedKeys...)
	if cfg.SSH != nil {
		keys = append(keys, cfg.SSH.SSHAuthorizedKeys...)
	}
	return keys
}
