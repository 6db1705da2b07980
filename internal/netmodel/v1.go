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
	"strconv"
	"strings"
)

// V1Config is the v1 network document: a flat sequence of tagged items
// (§3, §4.H).
type V1Config struct {
	Version int      `yaml:"version"`
	Config  []V1Item `yaml:"config"`
}

// V1Item is one entry of a v1 document's config list. Only the fields
// relevant to its Type are populated.
type V1Item struct {
	Type string `yaml:"type"`
	Name string `yaml:"name,omitempty"`

	// physical
	MACAddress string `yaml:"mac_address,omitempty"`
	MTU        *int   `yaml:"mtu,omitempty"`
	Subnets    []V1Subnet `yaml:"subnets,omitempty"`

	// bond
	BondInterfaces []string          `yaml:"bond_interfaces,omitempty"`
	Params         map[string]string `yaml:"params,omitempty"`

	// bridge
	BridgeInterfaces []string `yaml:"bridge_interfaces,omitempty"`

	// vlan
	VlanID   int    `yaml:"vlan_id,omitempty"`
	VlanLink string `yaml:"vlan_link,omitempty"`

	// nameserver (global)
	Address []string `yaml:"address,omitempty"`
	Search  []string `yaml:"search,omitempty"`

	// route (global)
	Destination string `yaml:"destination,omitempty"`
	Gateway     string `yaml:"gateway,omitempty"`
	Netmask     string `yaml:"netmask,omitempty"`
}

// V1Subnet is a physical/bond/bridge/vlan item's subnets[] entry.
type V1Subnet struct {
	Type           string     `yaml:"type"`
	Address        string     `yaml:"address,omitempty"`
	Netmask        string     `yaml:"netmask,omitempty"`
	Gateway        string     `yaml:"gateway,omitempty"`
	DNSNameservers []string   `yaml:"dns_nameservers,omitempty"`
	DNSSearch      []string   `yaml:"dns_search,omitempty"`
	Routes         []V1Route  `yaml:"routes,omitempty"`
}

// V1Route is a subnet-scoped static route.
type V1Route struct {
	Destination string `yaml:"destination,omitempty"`
	Gateway     string `yaml:"gateway,omitempty"`
	Netmask     string `yaml:"netmask,omitempty"`
	Metric      *int   `yaml:"metric,omitempty"`
}

// bondModeNames maps numeric bond modes to their symbolic form (§4.H).
var bondModeNames = map[string]string{
	"0": "balance-rr",
	"1": "active-backup",
	"2": "balance-xor",
	"3": "broadcast",
	"4": "802.3ad",
	"5": "balance-tlb",
	"6": "balance-alb",
}

// NormalizeBondMode maps a numeric bond mode to its symbolic name; unknown
// values (including already-symbolic ones) pass through unchanged.
func NormalizeBondMode(mode string) string {
	if name, ok := bondModeNames[mode]; ok {
		return name
	}
	return mode
}

// ToV2 converts a v1 document into the v2 Model via the pure mapping
// described in §4.H: physical/bond/bridge/vlan items map to their v2
// counterpart, subnets translate to dhcp4/dhcp6/addresses/gateways/routes,
// dotted-decimal netmasks convert to CIDR prefixes, and global nameserver
// items apply to any interface lacking its own.
func ToV2(v1 V1Config) (Model, error) {
	m := Model{
		Version:   2,
		Ethernets: map[string]Ethernet{},
		Bonds:     map[string]Bond{},
		Bridges:   map[string]Bridge{},
		VLANs:     map[string]VLAN{},
	}

	var globalNameservers *Nameservers
	for _, item := range v1.Config {
		if item.Type == "nameserver" {
			globalNameservers = &Nameservers{Addresses: item.Address, Search: item.Search}
		}
	}

	for _, item := range v1.Config {
		switch item.Type {
		case "physical":
			eth := Ethernet{}
			if err := applySubnets(&eth.InterfaceCommon, item.Subnets); err != nil {
				return Model{}, err
			}
			eth.MACAddress = item.MACAddress
			eth.MTU = item.MTU
			m.Ethernets[item.Name] = eth

		case "bond":
			bond := Bond{Interfaces: item.BondInterfaces}
			if err := applySubnets(&bond.InterfaceCommon, item.Subnets); err != nil {
				return Model{}, err
			}
			if len(item.Params) > 0 {
				bond.Parameters = &BondParameters{
					Mode:               NormalizeBondMode(item.Params["bond-mode"]),
					LACPRate:           item.Params["bond-lacp-rate"],
					Primary:            item.Params["bond-primary"],
					TransmitHashPolicy: item.Params["bond-xmit-hash-policy"],
				}
			}
			m.Bonds[item.Name] = bond

		case "bridge":
			br := Bridge{Interfaces: item.BridgeInterfaces}
			if err := applySubnets(&br.InterfaceCommon, item.Subnets); err != nil {
				return Model{}, err
			}
			m.Bridges[item.Name] = br

		case "vlan":
			vlan := VLAN{ID: item.VlanID, Link: item.VlanLink}
			if err := applySubnets(&vlan.InterfaceCommon, item.Subnets); err != nil {
				return Model{}, err
			}
			m.VLANs[item.Name] = vlan
		}
	}

	if globalNameservers != nil {
		for k, v := range m.Ethernets {
			if v.Nameservers == nil {
				v.Nameservers = globalNameservers
				m.Ethernets[k] = v
			}
		}
		for k, v := range m.Bonds {
			if v.Nameservers == nil {
				v.Nameservers = globalNameservers
				m.Bonds[k] = v
			}
		}
		for k, v := range m.Bridges {
			if v.Nameservers == nil {
				v.Nameservers = globalNameservers
				m.Bridges[k] = v
			}
		}
		for k, v := range m.VLANs {
			if v.Nameservers == nil {
				v.Nameservers = globalNameservers
				m.VLANs[k] = v
			}
		}
	}

	return m, nil
}

func applySubnets(common *InterfaceCommon, subnets []V1Subnet) error {
	for _, sn := range subnets {
		switch sn.Type {
		case "dhcp", "dhcp4":
			common.DHCP4 = boolPtr(true)
		case "dhcp6":
			common.DHCP6 = boolPtr(true)
		case "manual":
			// No addressing to configure.
		case "static", "static6":
			if sn.Netmask != "" {
				prefix, err := NetmaskToPrefix(sn.Netmask)
				if err != nil {
					return err
				}
				common.Addresses = append(common.Addresses, sn.Address+"/"+strconv.Itoa(prefix))
			} else {
				common.Addresses = append(common.Addresses, sn.Address)
			}
			if sn.Gateway != "" {
				if strings.Contains(sn.Gateway, ":") {
					common.Gateway6 = sn.Gateway
				} else {
					common.Gateway4 = sn.Gateway
				}
			}
			if len(sn.DNSNameservers) > 0 {
				common.Nameservers = &Nameservers{Addresses: sn.DNSNameservers, Search: sn.DNSSearch}
			}
			for _, r := range sn.Routes {
				common.Routes = append(common.Routes, Route{To: r.Destination, Via: r.Gateway, Metric: r.Metric})
			}
		}
	}
	return nil
}
