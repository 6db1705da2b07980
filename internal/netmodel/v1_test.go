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

package netmodel

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestToV2SimpleStatic(t *testing.T) {
	v1 := V1Config{
		Version: 1,
		Config: []V1Item{
			{
				Type: "physical",
				Name: "eth0",
				Subnets: []V1Subnet{
					{
						Type:           "static",
						Address:        "192.168.1.10",
						Netmask:        "255.255.255.0",
						Gateway:        "192.168.1.1",
						DNSNameservers: []string{"8.8.8.8"},
					},
				},
			},
		},
	}

	m, err := ToV2(v1)
	if err != nil {
		t.Fatalf("ToV2: %v", err)
	}
	eth, ok := m.Ethernets["eth0"]
	if !ok {
		t.Fatalf("expected ethernets.eth0 to exist")
	}
	if want := []string{"192.168.1.10/24"}; !cmp.Equal(eth.Addresses, want) {
		t.Errorf("addresses = %v, want %v", eth.Addresses, want)
	}
	if eth.Gateway4 != "192.168.1.1" {
		t.Errorf("gateway4 = %q, want 192.168.1.1", eth.Gateway4)
	}
	if eth.Nameservers == nil || !cmp.Equal(eth.Nameservers.Addresses, []string{"8.8.8.8"}) {
		t.Errorf("nameservers = %+v", eth.Nameservers)
	}
}

func TestToV2InterfaceNames(t *testing.T) {
	v1 := V1Config{
		Version: 1,
		Config: []V1Item{
			{Type: "physical", Name: "eth0"},
			{Type: "bond", Name: "bond0", BondInterfaces: []string{"eth1", "eth2"}},
			{Type: "bridge", Name: "br0"},
			{Type: "vlan", Name: "eth0.100", VlanID: 100, VlanLink: "eth0"},
			{Type: "nameserver", Address: []string{"1.1.1.1"}},
		},
	}

	m, err := ToV2(v1)
	if err != nil {
		t.Fatalf("ToV2: %v", err)
	}
	names := m.InterfaceNames()
	want := map[string]bool{"eth0": true, "bond0": true, "br0": true, "eth0.100": true}
	if len(names) != len(want) {
		t.Fatalf("interface names = %v, want keys of %v", names, want)
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected interface name %q", n)
		}
	}
}

func TestToV2GlobalNameserverFallback(t *testing.T) {
	v1 := V1Config{
		Version: 1,
		Config: []V1Item{
			{Type: "nameserver", Address: []string{"1.1.1.1"}, Search: []string{"example.com"}},
			{Type: "physical", Name: "eth0", Subnets: []V1Subnet{{Type: "dhcp4"}}},
		},
	}
	m, err := ToV2(v1)
	if err != nil {
		t.Fatalf("ToV2: %v", err)
	}
	eth := m.Ethernets["eth0"]
	if eth.Nameservers == nil || eth.Nameservers.Addresses[0] != "1.1.1.1" {
		t.Errorf("expected global nameserver fallback, got %+v", eth.Nameservers)
	}
	if eth.DHCP4 == nil || !*eth.DHCP4 {
		t.Errorf("expected dhcp4=true")
	}
}

func TestNormalizeBondMode(t *testing.T) {
	cases := map[string]string{
		"0": "balance-rr",
		"1": "active-backup",
		"4": "802.3ad",
		"bogus": "bogus",
	}
	for in, want := range cases {
		if got := NormalizeBondMode(in); got != want {
			t.Errorf("NormalizeBondMode(%q) = %q, want %q", in, got, want)
		}
	}
}
