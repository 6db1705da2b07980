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

package azure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudboot-io/boot-agent/internal/userdata"
)

func TestGetMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Metadata") != "true" {
			t.Errorf("missing Metadata header")
		}
		switch r.URL.Path {
		case "/metadata/instance":
			if r.URL.Query().Get("api-version") != apiVersion {
				t.Errorf("api-version = %q", r.URL.Query().Get("api-version"))
			}
			w.Write([]byte(`{"compute":{"vmId":"abc-123","computerName":"myhost","location":"eastus","vmSize":"Standard_D2s_v3","zone":"1"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	d := NewWithBaseURL(srv.URL + "/metadata")
	meta, err := d.GetMetadata(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if meta.InstanceID != "abc-123" {
		t.Fatalf("InstanceID = %q", meta.InstanceID)
	}
	if meta.LocalHostname != "myhost" {
		t.Fatalf("LocalHostname = %q", meta.LocalHostname)
	}
	if meta.Region != "eastus" || meta.AvailabilityZone != "eastus-1" {
		t.Fatalf("Region/AZ = %q/%q", meta.Region, meta.AvailabilityZone)
	}
	if meta.InstanceType != "Standard_D2s_v3" {
		t.Fatalf("InstanceType = %q", meta.InstanceType)
	}
}

func TestGetMetadataNameFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"compute":{"vmId":"abc-123","name":"fallback-name","location":"eastus"}}`))
	}))
	defer srv.Close()

	d := NewWithBaseURL(srv.URL + "/metadata")
	meta, err := d.GetMetadata(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if meta.LocalHostname != "fallback-name" {
		t.Fatalf("LocalHostname = %q, want fallback to name", meta.LocalHostname)
	}
	if meta.AvailabilityZone != "" {
		t.Fatalf("AvailabilityZone = %q, want empty when zone absent", meta.AvailabilityZone)
	}
}

func TestGetUserdataCustomDataBase64(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/metadata/instance/compute/customData":
			// base64 for "#cloud-config\nhostname: x\n"
			w.Write([]byte("I2Nsb3VkLWNvbmZpZwpob3N0bmFtZTogeAo="))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	d := NewWithBaseURL(srv.URL + "/metadata")
	ud, err := d.GetUserdata(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ud.Kind != userdata.KindCloudConfig {
		t.Fatalf("Kind = %v, want cloud-config", ud.Kind)
	}
	if ud.RawCloudConfig != "#cloud-config\nhostname: x\n" {
		t.Fatalf("RawCloudConfig = %q", ud.RawCloudConfig)
	}
}

func TestGetUserdataAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewWithBaseURL(srv.URL + "/metadata")
	ud, err := d.GetUserdata(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ud.Kind != userdata.KindAbsent {
		t.Fatalf("Kind = %v, want absent", ud.Kind)
	}
}
