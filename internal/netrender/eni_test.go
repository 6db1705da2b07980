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

package netrender

import (
	"strings"
	"testing"

	"github.com/cloudboot-io/boot-agent/internal/netmodel"
)

func TestENIRendersLoopbackAndDHCP(t *testing.T) {
	m := netmodel.Model{
		Ethernets: map[string]netmodel.Ethernet{
			"eth0": {InterfaceCommon: netmodel.InterfaceCommon{DHCP4: boolPtr(true)}},
		},
	}
	files, err := NewENI().Render(m)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(files) != 1 || files[0].RelativePath != "interfaces" {
		t.Fatalf("expected single interfaces file, got %+v", names(files))
	}
	content := string(files[0].Content)
	if !strings.Contains(content, "auto lo") || !strings.Contains(content, "iface lo inet loopback") {
		t.Errorf("missing loopback stanza:\n%s", content)
	}
	if !strings.Contains(content, "auto eth0") || !strings.Contains(content, "iface eth0 inet dhcp") {
		t.Errorf("missing dhcp stanza:\n%s", content)
	}
}

func TestENIRendersStaticWithCIDRSplit(t *testing.T) {
	m := netmodel.Model{
		Ethernets: map[string]netmodel.Ethernet{
			"eth0": {InterfaceCommon: netmodel.InterfaceCommon{
				Addresses: []string{"10.0.0.5/24"},
				Gateway4:  "10.0.0.1",
			}},
		},
	}
	files, err := NewENI().Render(m)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	content := string(files[0].Content)
	if !strings.Contains(content, "iface eth0 inet static") {
		t.Errorf("missing static stanza:\n%s", content)
	}
	if !strings.Contains(content, "address 10.0.0.5") || !strings.Contains(content, "netmask 255.255.255.0") {
		t.Errorf("expected split address/netmask, got:\n%s", content)
	}
	if !strings.Contains(content, "gateway 10.0.0.1") {
		t.Errorf("missing gateway line:\n%s", content)
	}
}
