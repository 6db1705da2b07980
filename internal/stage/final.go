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
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
	"github.com/cloudboot-io/boot-agent/internal/cloudconfig"
	"github.com/cloudboot-io/boot-agent/internal/httpx"
	"github.com/cloudboot-io/boot-agent/internal/modules"
	"github.com/cloudboot-io/boot-agent/internal/run"
	"github.com/cloudboot-io/boot-agent/internal/state"
)

// RunFinal runs bootcmd, runcmd, the three script directories, the
// optional phone_home POST, then writes result.json and marks the boot
// finished (§4.J Final stage).
func RunFinal(ctx context.Context, env *Env) error {
	if env.InstanceID == "" {
		return agenterrors.Stage(Final, "no instance id, run the network stage first", nil)
	}

	cfg, err := loadInstanceCloudConfig(env)
	if err != nil {
		logger.Errorf("loading cloud-config, falling back to empty document: %v", err)
		cfg = cloudconfig.CloudConfig{}
	}

	runner := modules.NewRunner(env.Sem)
	mods := []modules.Module{
		{
			Name: "bootcmd", Frequency: state.Always, Policy: modules.FailWarn,
			Run: func(ctx context.Context) error { return modules.RunCommands(ctx, cfg.BootCmd) },
		},
		{
			Name: "runcmd", Frequency: state.PerInstance, Policy: modules.FailWarn,
			Run: func(ctx context.Context) error { return modules.RunCommands(ctx, cfg.RunCmd) },
		},
	}
	for i, m := range mods {
		mods[i] = guardedRun(env, m)
	}
	if err := runner.RunAll(ctx, mods); err != nil {
		return err
	}

	runScriptDir(ctx, env, env.Paths.ScriptsPerBoot(), "per-boot", state.PerBoot)
	runScriptDir(ctx, env, env.Paths.ScriptsPerInstance(), "per-instance", state.PerInstance)
	runScriptDir(ctx, env, env.Paths.ScriptsPerOnce(), "per-once", state.PerOnce)

	if cfg.PhoneHome != nil {
		if err := phoneHome(ctx, env, cfg); err != nil {
			logger.Errorf("phone_home: %v", err)
		}
	}

	if cfg.FinalMessage != "" {
		logger.Infof("%s", cfg.FinalMessage)
	}

	if err := env.Store.WriteResult(state.Result{
		Status:     "done",
		Datasource: env.DatasourceName,
		Finished:   time.Now().UTC(),
	}); err != nil {
		logger.Errorf("writing result.json: %v", err)
	}

	if err := env.Store.MarkBootFinished(env.InstanceID); err != nil {
		logger.Errorf("marking boot finished: %v", err)
	}

	return nil
}

// runScriptDir runs every executable entry in dir, in lexicographic order,
// each guarded by its own semaphore under moduleName so a per-instance or
// per-once script only fires once across the frequencies §4.B describes.
// A non-zero exit is logged and does not stop the remaining scripts,
// matching runcmd/bootcmd's own warn-and-continue policy.
func runScriptDir(ctx context.Context, env *Env, dir, label string, freq state.Frequency) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Errorf("listing %s scripts: %v", label, err)
		}
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		moduleName := "script_" + label + "_" + name
		if !env.Sem.ShouldRun(moduleName, freq) {
			continue
		}
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || info.Mode()&0111 == 0 {
			continue
		}
		if err := run.Quiet(ctx, path); err != nil {
			logger.Errorf("%s script %s failed, continuing: %v", label, name, err)
			continue
		}
		if err := env.Sem.MarkDone(moduleName, freq); err != nil {
			logger.Errorf("marking %s script %s done: %v", label, name, err)
		}
	}
}

// phoneHome POSTs the requested fields to the configured URL, retrying up
// to Tries times (default 1) the way §4.J's phone_home hook describes.
// Only the fields this agent actually has on hand are populated; fields
// named in Post that this agent has no value for (the RSA/ECDSA/ED25519
// host key fingerprints cloud-init also supports) are posted as empty
// strings rather than omitted, matching the form-post shape phone_home
// consumers expect.
func phoneHome(ctx context.Context, env *Env, cfg cloudconfig.CloudConfig) error {
	ph := cfg.PhoneHome
	if ph.URL == "" {
		return agenterrors.New(agenterrors.KindConfig, "phone_home: missing url")
	}

	form := buildPhoneHomeForm(ph.Post, env.InstanceID, cfg.Hostname, cfg.FQDN)

	tries := 1
	if ph.Tries != nil && *ph.Tries > 0 {
		tries = *ph.Tries
	}

	client := httpx.NewProbeClient()
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	var lastErr error
	for attempt := 0; attempt < tries; attempt++ {
		_, status, err := httpx.Post(ctx, client, ph.URL, headers, []byte(form))
		if err == nil && status >= 200 && status < 300 {
			return nil
		}
		lastErr = err
		if err == nil {
			lastErr = agenterrors.New(agenterrors.KindHttp, "phone_home: status "+strconv.Itoa(status))
		}
	}
	return agenterrors.Wrap(agenterrors.KindHttp, "phone_home: all attempts failed", lastErr)
}

// buildPhoneHomeForm encodes the requested fields as an
// application/x-www-form-urlencoded body. fields defaults to
// instance_id/hostname/fqdn when the post list is empty; a requested field
// this agent has no value for (the host key fingerprints cloud-init also
// supports) is posted as an empty string rather than omitted.
func buildPhoneHomeForm(fields []string, instanceID, hostname, fqdn string) string {
	if len(fields) == 0 {
		fields = []string{"instance_id", "hostname", "fqdn"}
	}

	values := map[string]string{
		"instance_id": instanceID,
		"hostname":    hostname,
		"fqdn":        fqdn,
	}

	form := ""
	for i, f := range fields {
		if i > 0 {
			form += "&"
		}
		form += url.QueryEscape(f) + "=" + url.QueryEscape(values[f])
	}
	return form
}
