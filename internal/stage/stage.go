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

// Package stage implements the §4.J Stage Scheduler: the Local, Network,
// Config, and Final stages, and the status-blob rewriting that brackets
// each of them.
package stage

import (
	"context"

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"

	"github.com/cloudboot-io/boot-agent/internal/agentcfg"
	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
	"github.com/cloudboot-io/boot-agent/internal/datasource"
	"github.com/cloudboot-io/boot-agent/internal/modules"
	"github.com/cloudboot-io/boot-agent/internal/state"
)

// Env bundles the dependencies every stage needs: the path/state layer, the
// agent's own configuration, and the datasource drivers to try, in
// priority order. It is built once by the CLI entrypoint and threaded
// through whichever stages run.
type Env struct {
	Paths   *state.Paths
	Store   *state.Store
	Sem     *state.SemaphoreManager
	Config  *agentcfg.Sections
	Drivers []datasource.Driver

	// InstanceID is populated by the Network stage (or read back from the
	// cached value for stages run independently of it).
	InstanceID string

	// DatasourceName is populated by the Network stage once detection
	// succeeds, and carried into status.json thereafter.
	DatasourceName string
}

// Names of the four stages, used in status.json and CLI dispatch.
const (
	Local   = "local"
	Network = "network"
	Config  = "config"
	Final   = "final"
)

// Run executes the named stage, updating status.json before and after.
// It is the single entrypoint cmd/cloudboot-agent dispatches through.
func Run(ctx context.Context, env *Env, name string) error {
	if env.InstanceID == "" {
		if id, err := env.Store.CachedInstanceID(); err == nil {
			env.InstanceID = id
			env.Sem.SetInstanceID(id)
		}
	}

	writeStatus(env, name, "running", "")

	var err error
	switch name {
	case Local:
		err = RunLocal(ctx, env)
	case Network:
		err = RunNetwork(ctx, env)
	case Config:
		err = RunConfig(ctx, env)
	case Final:
		err = RunFinal(ctx, env)
	default:
		err = agenterrors.New(agenterrors.KindStage, "unknown stage "+name)
	}

	if err != nil {
		logger.Errorf("stage %s failed: %v", name, err)
		writeStatus(env, name, "error", err.Error())
		return err
	}

	writeStatus(env, name, "done", "")
	return nil
}

// RunAll runs Local, Network, Config, Final in order, stopping at the first
// fatal stage error (§4.J: "A fatal error in a stage aborts the pipeline").
func RunAll(ctx context.Context, env *Env) error {
	for _, name := range []string{Local, Network, Config, Final} {
		if err := Run(ctx, env, name); err != nil {
			return err
		}
	}
	return nil
}

func writeStatus(env *Env, stageName, status, errMsg string) {
	st := state.Status{
		Status:       status,
		BootFinished: env.InstanceID != "" && env.Store.IsBootFinished(env.InstanceID),
		Stage:        stageName,
		Error:        errMsg,
		Datasource:   env.DatasourceName,
	}
	if err := env.Store.WriteStatus(st); err != nil {
		logger.Errorf("writing status: %v", err)
	}
}

// moduleEnabled is a small adapter so stage code can skip a module by name
// via the agent's own operational config, independent of the semaphore's
// should_run check.
func moduleEnabled(env *Env, name string) bool {
	if env.Config == nil {
		return true
	}
	return env.Config.ModuleEnabled(name)
}

// guardedRun wraps mod.Run so a module disabled in agentcfg is skipped
// before the semaphore/runtime machinery ever sees it.
func guardedRun(env *Env, mod modules.Module) modules.Module {
	if moduleEnabled(env, mod.Name) {
		return mod
	}
	original := mod.Name
	mod.Run = func(ctx context.Context) error {
		logger.Debugf("module %s disabled by agent configuration, skipping", original)
		return nil
	}
	return mod
}
