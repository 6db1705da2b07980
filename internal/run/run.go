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

// Package run wraps os/exec for the module runtime's command invocations
// (useradd, chpasswd, visudo, package managers, systemd control tools).
package run

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"
)

// Result wraps a command execution result.
type Result struct {
	// ExitCode is -1 if the command could not be started at all.
	ExitCode int
	StdErr   string
	StdOut   string
}

// Error returns the trimmed stderr content, satisfying the error interface
// so a *Result can be returned directly as an error value.
func (r *Result) Error() string {
	return strings.TrimSuffix(r.StdErr, "\n")
}

// Quiet runs a command and returns an error (the *Result) only on failure.
func Quiet(ctx context.Context, name string, args ...string) error {
	res := exec_(ctx, name, args...)
	if res.ExitCode != 0 {
		return res
	}
	return nil
}

// WithOutput runs a command and always returns its Result.
func WithOutput(ctx context.Context, name string, args ...string) *Result {
	return exec_(ctx, name, args...)
}

var errDeadline = errors.New("command timed out")

func exec_(ctx context.Context, name string, args ...string) *Result {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debugf("exec: %s %v", name, args)

	err := cmd.Run()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return &Result{ExitCode: ee.ExitCode(), StdOut: stdout.String(), StdErr: stderr.String()}
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Result{ExitCode: 124, StdErr: errDeadline.Error()}
		}
		return &Result{ExitCode: -1, StdErr: err.Error()}
	}
	return &Result{ExitCode: 0, StdOut: stdout.String(), StdErr: stderr.String()}
}
