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

// Package netmodel defines the declarative network interface model (§4.H):
// the v2 document shape, the v1 document shape, and the pure v1->v2
// conversion. Renderers (internal/netrender) consume only the v2 form.
package netmodel

// Nameservers is the DNS configuration shared by every interface kind.
type Nameservers struct {
	Addresses []string `yaml:"addresses,omitempty"`
	Search    []string `yaml:"search,omitempty"`
}

// Route is a single static route entry.
type Route struct {
	To     string `yaml:"to,omitempty"`
	Via    string `yaml:"via,omitempty"`
	Metric *int   `yaml:"metric,omitempty"`
}

// RoutingPolicy is a single policy-routing rule.
type RoutingPolicy struct {
	From  string `yaml:"from,omitempty"`
	To    string `yaml:"to,omitempty"`
	Table *int   `yaml:"table,omitempty"`
}

// InterfaceCommon holds the fields shared by every interface kind in the
// v2 model (§3 NetworkModel).
type InterfaceCommon struct {
	DHCP4          *bool           `yaml:"dhcp4,omitempty"`
	DHCP6          *bool           `yaml:"dhcp6,omitempty"`
	Addresses      []string        `yaml:"addresses,omitempty"`
	Gateway4       string          `yaml:"gateway4,omitempty"`
	Gateway6       string          `yaml:"gateway6,omitempty"`
	Nameservers    *Nameservers    `yaml:"nameservers,omitempty"`
	MTU            *int            `yaml:"mtu,omitempty"`
	Routes         []Route         `yaml:"routes,omitempty"`
	RoutingPolicy  []RoutingPolicy `yaml:"routing-policy,omitempty"`
	MACAddress     string          `yaml:"macaddress,omitempty"`
	AcceptRA       *bool           `yaml:"accept-ra,omitempty"`
	WakeOnLAN      *bool           `yaml:"wakeonlan,omitempty"`
	Optional       *bool           `yaml:"optional,omitempty"`
}

// Match is an ethernet interface's optional selector, used instead of a
// literal device name.
type Match struct {
	MACAddress string `yaml:"macaddress,omitempty"`
	Driver     string `yaml:"driver,omitempty"`
	Name       string `yaml:"name,omitempty"`
}

// Ethernet is one ethernets.<name> entry.
type Ethernet struct {
	InterfaceCommon `yaml:",inline"`
	Match           *Match `yaml:"match,omitempty"`
}

// BondParameters is the bond.<name>.parameters block.
type BondParameters struct {
	Mode                string   `yaml:"mode,omitempty"`
	LACPRate            string   `yaml:"lacp-rate,omitempty"`
	MiiMonitorInterval  *int     `yaml:"mii-monitor-interval,omitempty"`
	Primary             string   `yaml:"primary,omitempty"`
	TransmitHashPolicy  string   `yaml:"transmit-hash-policy,omitempty"`
}

// Bond is one bonds.<name> entry.
type Bond struct {
	InterfaceCommon `yaml:",inline"`
	Interfaces      []string        `yaml:"interfaces,omitempty"`
	Parameters      *BondParameters `yaml:"parameters,omitempty"`
}

// BridgeParameters is the bridges.<name>.parameters block.
type BridgeParameters struct {
	STP          *bool `yaml:"stp,omitempty"`
	ForwardDelay *int  `yaml:"forward-delay,omitempty"`
}

// Bridge is one bridges.<name> entry.
type Bridge struct {
	InterfaceCommon `yaml:",inline"`
	Interfaces      []string          `yaml:"interfaces,omitempty"`
	Parameters      *BridgeParameters `yaml:"parameters,omitempty"`
}

// VLAN is one vlans.<name> entry.
type VLAN struct {
	InterfaceCommon `yaml:",inline"`
	ID              int    `yaml:"id"`
	Link            string `yaml:"link"`
}

// Model is the v2 NetworkModel document (§3).
type Model struct {
	Version  int                 `yaml:"version"`
	Renderer string              `yaml:"renderer,omitempty"`
	Ethernets map[string]Ethernet `yaml:"ethernets,omitempty"`
	Bonds     map[string]Bond     `yaml:"bonds,omitempty"`
	Bridges   map[string]Bridge   `yaml:"bridges,omitempty"`
	VLANs     map[string]VLAN     `yaml:"vlans,omitempty"`
}

// InterfaceNames returns the set of named items across all kinds, used by
// the §8 property test `to_v2(V1).interface_names() == ...`.
func (m Model) InterfaceNames() []string {
	var names []string
	for name := range m.Ethernets {
		names = append(names, name)
	}
	for name := range m.Bonds {
		names = append(names, name)
	}
	for name := range m.Bridges {
		names = append(names, name)
	}
	for name := range m.VLANs {
		names = append(names, name)
	}
	return names
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }
