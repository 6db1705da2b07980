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

// Package httpx provides the bounded-timeout HTTP client shared by every
// datasource driver's metadata probe, plus a generic retry helper that the
// drivers do not call (each probe is a single bounded request).
package httpx

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"
)

// IsRetriable overrides the default "retry every error" behavior.
type IsRetriable func(error) bool

// Policy configures retry timing.
type Policy struct {
	MaxAttempts   int
	BackoffFactor float64
	Jitter        time.Duration
	ShouldRetry   IsRetriable
}

// DefaultProbePolicy is a retry policy sized for metadata-service probes: a
// handful of quick attempts, so a dead link-local address does not delay
// falling through to the next driver. No driver in this repository passes
// it to RunWithResponse.
var DefaultProbePolicy = Policy{MaxAttempts: 3, BackoffFactor: 2, Jitter: 200 * time.Millisecond}

func backoff(attempt int, policy Policy) time.Duration {
	b := float64(policy.Jitter) * math.Pow(policy.BackoffFactor, float64(attempt))
	return time.Duration(b)
}

func isRetriable(policy Policy, err error) bool {
	if policy.ShouldRetry == nil {
		return true
	}
	return policy.ShouldRetry(err)
}

// RunWithResponse executes f, retrying on failure per policy, and returns
// the last response/error.
func RunWithResponse[T any](ctx context.Context, policy Policy, f func() (T, error)) (T, error) {
	var (
		res T
		err error
	)
	if f == nil {
		return res, fmt.Errorf("retry function cannot be nil")
	}
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if res, err = f(); err == nil {
			return res, nil
		}
		if !isRetriable(policy, err) {
			return res, fmt.Errorf("giving up, retry policy rejected error: %w", err)
		}
		logger.Debugf("attempt %d failed: %v", attempt, err)
		if attempt+1 >= policy.MaxAttempts {
			return res, fmt.Errorf("exhausted %d retries, last error: %w", policy.MaxAttempts, err)
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(backoff(attempt, policy)):
		}
	}
	return res, fmt.Errorf("policy allows no attempts")
}
