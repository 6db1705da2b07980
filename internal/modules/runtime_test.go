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
	"errors"
	"testing"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
	"github.com/cloudboot-io/boot-agent/internal/state"
)

func TestRunOneSkipsWhenSemaphoreSatisfied(t *testing.T) {
	paths := state.NewPathsWithBase(t.TempDir())
	sem := state.NewSemaphoreManager(paths, "i-1")
	if err := sem.MarkDone("hostname", state.PerInstance); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	ran := false
	r := NewRunner(sem)
	m := Module{
		Name: "hostname", Frequency: state.PerInstance, Policy: FailWarn,
		Run: func(ctx context.Context) error { ran = true; return nil },
	}
	if err := r.RunOne(context.Background(), m); err != nil {
		t.Fatalf("RunOne: %v", err)
	}
	if ran {
		t.Error("expected module body to be skipped")
	}
}

func TestRunOneMarksDoneOnSuccess(t *testing.T) {
	paths := state.NewPathsWithBase(t.TempDir())
	sem := state.NewSemaphoreManager(paths, "i-1")

	r := NewRunner(sem)
	m := Module{
		Name: "timezone", Frequency: state.PerInstance, Policy: FailWarn,
		Run: func(ctx context.Context) error { return nil },
	}
	if err := r.RunOne(context.Background(), m); err != nil {
		t.Fatalf("RunOne: %v", err)
	}
	if sem.ShouldRun("timezone", state.PerInstance) {
		t.Error("expected semaphore marked done")
	}
}

func TestRunOneWarnPolicySwallowsError(t *testing.T) {
	paths := state.NewPathsWithBase(t.TempDir())
	sem := state.NewSemaphoreManager(paths, "i-1")
	r := NewRunner(sem)

	m := Module{
		Name: "packages", Frequency: state.Always, Policy: FailWarn,
		Run: func(ctx context.Context) error { return errors.New("boom") },
	}
	if err := r.RunOne(context.Background(), m); err != nil {
		t.Fatalf("expected nil error for warn policy, got %v", err)
	}
}

func TestRunOneFatalPolicyPropagates(t *testing.T) {
	paths := state.NewPathsWithBase(t.TempDir())
	sem := state.NewSemaphoreManager(paths, "i-1")
	r := NewRunner(sem)

	m := Module{
		Name: "packages", Frequency: state.Always, Policy: FailFatal,
		Run: func(ctx context.Context) error { return errors.New("boom") },
	}
	err := r.RunOne(context.Background(), m)
	if err == nil {
		t.Fatal("expected error for fatal policy")
	}
	if !agenterrors.Is(err, agenterrors.KindModule) {
		t.Errorf("expected KindModule, got %v", err)
	}
}
