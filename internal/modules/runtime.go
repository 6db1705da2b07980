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

// Package modules executes the leaf modules named in §4.I (hostname,
// timezone, locale, groups, users, write_files, packages, runcmd, bootcmd,
// ssh_keys, ntp), each guarded by the §4.B semaphore policy and wrapped in
// the per-kind failure propagation pseudocode from §4.I.
package modules

import (
	"context"

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
	"github.com/cloudboot-io/boot-agent/internal/state"
)

// FailurePolicy decides whether a module's error is fatal to the stage or
// merely logged and skipped (§4.I: "Module failure policy is per-kind").
type FailurePolicy string

const (
	// FailWarn logs the error and lets the stage continue.
	FailWarn FailurePolicy = "warn"
	// FailFatal propagates the error, aborting the stage.
	FailFatal FailurePolicy = "fatal"
)

// Module pairs a name/frequency/policy with its body.
type Module struct {
	Name      string
	Frequency state.Frequency
	Policy    FailurePolicy
	Run       func(ctx context.Context) error
}

// Runner wraps module execution with the semaphore check and mark-done
// call described in §4.I's pseudocode.
type Runner struct {
	Sem *state.SemaphoreManager
}

// NewRunner returns a Runner guarding modules with sem.
func NewRunner(sem *state.SemaphoreManager) *Runner { return &Runner{Sem: sem} }

// RunOne executes m if its semaphore allows it, marks it done on success,
// and applies m's failure policy on error.
func (r *Runner) RunOne(ctx context.Context, m Module) error {
	if !r.Sem.ShouldRun(m.Name, m.Frequency) {
		logger.Debugf("module %s: already satisfied for this frequency, skipping", m.Name)
		return nil
	}

	err := m.Run(ctx)
	if err == nil {
		if err := r.Sem.MarkDone(m.Name, m.Frequency); err != nil {
			logger.Errorf("module %s: marking done: %v", m.Name, err)
		}
		return nil
	}

	logger.Errorf("module %s failed: %v", m.Name, err)
	if m.Policy == FailFatal {
		return agenterrors.Module(m.Name, "module failed", err)
	}
	return nil
}

// RunAll executes modules in order, stopping at the first fatal error.
func (r *Runner) RunAll(ctx context.Context, mods []Module) error {
	for _, m := range mods {
		if err := r.RunOne(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
