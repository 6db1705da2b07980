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

func intPtr(i int) *int    { return &i }
func boolPtr(b bool) *bool { return &b }

func TestNetworkdNumberingAndRoutes(t *testing.T) {
	m := netmodel.Model{
		Version: 2,
		Ethernets: map[string]netmodel.Ethernet{
			"eth0": {InterfaceCommon: netmodel.InterfaceCommon{
				DHCP4: boolPtr(true),
				Routes: []netmodel.Route{
					{To: "10.0.0.0/8", Via: "192.168.1.1", Metric: intPtr(100)},
				},
			}},
		},
	}

	files, err := NewNetworkd().Render(m)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	f := files[0]
	if f.RelativePath != "10-eth0.network" {
		t.Errorf("path = %q, want 10-eth0.network", f.RelativePath)
	}
	content := string(f.Content)
	if !strings.Contains(content, "DHCP") {
		t.Errorf("expected DHCP key, got:\n%s", content)
	}
	if !strings.Contains(content, "[Route]") || !strings.Contains(content, "Destination=10.0.0.0/8") {
		t.Errorf("expected route block, got:\n%s", content)
	}
	if !strings.Contains(content, "Gateway=192.168.1.1") || !strings.Contains(content, "Metric=100") {
		t.Errorf("expected route fields, got:\n%s", content)
	}
}

func TestNetworkdBondMembersAndPrimary(t *testing.T) {
	m := netmodel.Model{
		Version: 2,
		Ethernets: map[string]netmodel.Ethernet{
			"eth0": {},
			"eth1": {},
		},
		Bonds: map[string]netmodel.Bond{
			"bond0": {
				Interfaces: []string{"eth0", "eth1"},
				Parameters: &netmodel.BondParameters{Mode: "active-backup", Primary: "eth0"},
			},
		},
	}

	files, err := NewNetworkd().Render(m)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var netdev, parent, member0, member1 *RenderedFile
	for i := range files {
		switch files[i].RelativePath {
		case "10-bond0.netdev":
			netdev = &files[i]
		case "10-bond0.network":
			parent = &files[i]
		case "11-eth0.network":
			member0 = &files[i]
		case "12-eth1.network":
			member1 = &files[i]
		}
	}
	if netdev == nil || parent == nil || member0 == nil || member1 == nil {
		t.Fatalf("missing expected files, got: %+v", names(files))
	}
	if !strings.Contains(string(netdev.Content), "Primary=eth0") {
		t.Errorf("expected Primary=eth0 in netdev, got:\n%s", netdev.Content)
	}
	if !strings.Contains(string(member0.Content), "Bond=bond0") {
		t.Errorf("expected Bond=bond0 in member file, got:\n%s", member0.Content)
	}
}

func TestNetworkdVLANBindsToParent(t *testing.T) {
	m := netmodel.Model{
		Version: 2,
		Ethernets: map[string]netmodel.Ethernet{
			"eth0": {},
		},
		VLANs: map[string]netmodel.VLAN{
			"eth0.100": {ID: 100, Link: "eth0"},
		},
	}

	files, err := NewNetworkd().Render(m)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	var parent *RenderedFile
	for i := range files {
		if files[i].RelativePath == "10-eth0.network" {
			parent = &files[i]
		}
	}
	if parent == nil {
		t.Fatalf("missing parent file, got: %+v", names(files))
	}
	if !strings.Contains(string(parent.Content), "VLAN=eth0.100") {
		t.Errorf("expected VLAN=eth0.100 in parent, got:\n%s", parent.Content)
	}
}

func names(files []RenderedFile) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.RelativePath)
	}
	return out
}
