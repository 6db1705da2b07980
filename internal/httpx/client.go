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

package httpx

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

// ConnectTimeout and TotalTimeout are the metadata-service probe bounds
// named in the concurrency model: every request to a link-local metadata
// endpoint must fail fast so driver detection can fall through.
const (
	ConnectTimeout = 2 * time.Second
	TotalTimeout   = 5 * time.Second
)

// NewProbeClient returns an http.Client bounded by ConnectTimeout for the
// TCP handshake and TotalTimeout for the whole request/response cycle.
func NewProbeClient() *http.Client {
	dialer := &net.Dialer{Timeout: ConnectTimeout}
	return &http.Client{
		Timeout: TotalTimeout,
		Transport: &http.Transport{
			DialContext: dialer.DialContext,
		},
	}
}

// Get issues a GET with optional headers and returns the body, the status
// code, and any transport error. A non-2xx status is not itself an error —
// callers decide tolerance per the datasource's own rules.
func Get(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// Put issues a PUT with optional headers and a body and returns the
// response body, status code, and any transport error.
func Put(ctx context.Context, client *http.Client, url string, headers map[string]string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return respBody, resp.StatusCode, nil
}

// Post issues a POST with optional headers and a body and returns the
// response body, status code, and any transport error. Used by the Final
// stage's phone_home module, which is not a bounded metadata probe but
// reuses the same client/helper shape for consistency.
func Post(ctx context.Context, client *http.Client, url string, headers map[string]string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return respBody, resp.StatusCode, nil
}
