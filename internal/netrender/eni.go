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
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudboot-io/boot-agent/internal/netmodel"
)

// eniRenderer emits a single /etc/network/interfaces file in Debian's
// ifupdown stanza format (§4.H). Bonds/bridges/vlans render as plain
// ethernet-shaped stanzas of their own addressing. A bond member's stanza
// carries a `bond-master <bond>` line and a bridge member's stanza carries
// a `bridge_ports <member>` line; a vlan stanza does not name its parent
// link.
type eniRenderer struct{}

// NewENI returns the Debian ENI renderer.
func NewENI() Renderer { return &eniRenderer{} }

func (e *eniRenderer) Name() string { return ENI }
func (e *eniRenderer) Root() string { return "/etc/network" }

// ReloadArgv: ENI is left for the next ifup/reboot (§4.H), nothing
// to run.
func (e *eniRenderer) ReloadArgv() ([]string, []string) {
	return nil, nil
}

func (e *eniRenderer) Render(m netmodel.Model) ([]RenderedFile, error) {
	var buf bytes.Buffer
	buf.WriteString("auto lo\n")
	buf.WriteString("iface lo inet loopback\n\n")

	memberOfBond := map[string]string{}
	for name, b := range m.Bonds {
		for _, iface := range b.Interfaces {
			memberOfBond[iface] = name
		}
	}
	memberOfBridge := map[string]string{}
	for name, b := range m.Bridges {
		for _, iface := range b.Interfaces {
			memberOfBridge[iface] = name
		}
	}

	for _, name := range sortedKeys(m.Ethernets) {
		writeStanza(&buf, name, m.Ethernets[name].InterfaceCommon, memberOfBond[name], memberOfBridge[name])
	}
	for _, name := range sortedKeys(m.Bonds) {
		writeStanza(&buf, name, m.Bonds[name].InterfaceCommon, "", "")
	}
	for _, name := range sortedKeys(m.Bridges) {
		writeStanza(&buf, name, m.Bridges[name].InterfaceCommon, "", "")
	}
	for _, name := range sortedKeys(m.VLANs) {
		writeStanza(&buf, name, m.VLANs[name].InterfaceCommon, "", "")
	}

	return []RenderedFile{{
		RelativePath: "interfaces",
		Content:      buf.Bytes(),
		Mode:         0644,
	}}, nil
}

func writeStanza(buf *bytes.Buffer, name string, c netmodel.InterfaceCommon, bondMaster, bridgeMaster string) {
	v4Addrs := filterByColon(c.Addresses, false)
	v6Addrs := filterByColon(c.Addresses, true)
	dhcp4 := c.DHCP4 != nil && *c.DHCP4
	dhcp6 := c.DHCP6 != nil && *c.DHCP6

	fmt.Fprintf(buf, "auto %s\n", name)

	switch {
	case dhcp4:
		fmt.Fprintf(buf, "iface %s inet dhcp\n", name)
	case len(v4Addrs) > 0:
		fmt.Fprintf(buf, "iface %s inet static\n", name)
		writeCIDR(buf, v4Addrs[0])
		if c.Gateway4 != "" {
			fmt.Fprintf(buf, "    gateway %s\n", c.Gateway4)
		}
		for _, a := range v4Addrs[1:] {
			fmt.Fprintf(buf, "    up ip addr add %s dev %s\n", a, name)
		}
	default:
		fmt.Fprintf(buf, "iface %s inet manual\n", name)
	}

	if bondMaster != "" {
		fmt.Fprintf(buf, "    bond-master %s\n", bondMaster)
	}
	if bridgeMaster != "" {
		fmt.Fprintf(buf, "    bridge_ports %s\n", name)
	}
	if c.MTU != nil {
		fmt.Fprintf(buf, "    mtu %d\n", *c.MTU)
	}
	if c.Nameservers != nil {
		if len(c.Nameservers.Addresses) > 0 {
			fmt.Fprintf(buf, "    dns-nameservers %s\n", strings.Join(c.Nameservers.Addresses, " "))
		}
		if len(c.Nameservers.Search) > 0 {
			fmt.Fprintf(buf, "    dns-search %s\n", strings.Join(c.Nameservers.Search, " "))
		}
	}

	if dhcp6 {
		fmt.Fprintf(buf, "\niface %s inet6 dhcp\n", name)
	} else if len(v6Addrs) > 0 {
		fmt.Fprintf(buf, "\niface %s inet6 static\n", name)
		writeCIDR(buf, v6Addrs[0])
		if c.Gateway6 != "" {
			fmt.Fprintf(buf, "    gateway %s\n", c.Gateway6)
		}
		for _, a := range v6Addrs[1:] {
			fmt.Fprintf(buf, "    up ip addr add %s dev %s\n", a, name)
		}
	}

	for _, r := range c.Routes {
		if r.Via == "" {
			continue
		}
		fmt.Fprintf(buf, "    up ip route add %s via %s dev %s\n", r.To, r.Via, name)
	}

	buf.WriteString("\n")
}

// writeCIDR splits a CIDR address into ifupdown's separate `address` and
// `netmask` keys; addr is already validated by netmodel so errors here
// degrade to writing it verbatim as an address line.
func writeCIDR(buf *bytes.Buffer, cidr string) {
	addr, prefixStr, ok := strings.Cut(cidr, "/")
	if !ok {
		fmt.Fprintf(buf, "    address %s\n", cidr)
		return
	}
	prefix, err := strconv.Atoi(prefixStr)
	if err != nil {
		fmt.Fprintf(buf, "    address %s\n", cidr)
		return
	}
	fmt.Fprintf(buf, "    address %s\n", addr)
	if strings.Contains(addr, ":") {
		fmt.Fprintf(buf, "    netmask %d\n", prefix)
		return
	}
	netmask, err := netmodel.PrefixToNetmask(prefix)
	if err != nil {
		fmt.Fprintf(buf, "    netmask %d\n", prefix)
		return
	}
	fmt.Fprintf(buf, "    netmask %s\n", netmask)
}
