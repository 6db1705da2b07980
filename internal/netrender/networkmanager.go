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
	"fmt"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
	"github.com/google/uuid"

	"github.com/cloudboot-io/boot-agent/internal/netmodel"
)

// networkManagerRenderer emits one .nmconnection file per ethernet (§4.H).
// Bonds/bridges/vlans are not implemented, matching the reference
// implementation this spec describes — a future extension, not an
// oversight.
type networkManagerRenderer struct {
	// newUUID is overridable in tests so file content is deterministic.
	newUUID func() string
}

// NewNetworkManager returns the NetworkManager renderer.
func NewNetworkManager() Renderer {
	return &networkManagerRenderer{newUUID: func() string { return uuid.New().String() }}
}

func (r *networkManagerRenderer) Name() string { return NetworkManager }
func (r *networkManagerRenderer) Root() string { return "/etc/NetworkManager/system-connections" }

// ReloadArgv: "nmcli connection reload", no fallback (§4.H).
func (r *networkManagerRenderer) ReloadArgv() ([]string, []string) {
	return []string{"nmcli", "connection", "reload"}, nil
}

func (r *networkManagerRenderer) Render(m netmodel.Model) ([]RenderedFile, error) {
	var files []RenderedFile
	for _, name := range sortedKeys(m.Ethernets) {
		eth := m.Ethernets[name]
		files = append(files, r.renderConnection(name, eth.InterfaceCommon))
	}
	return files, nil
}

func (r *networkManagerRenderer) renderConnection(name string, c netmodel.InterfaceCommon) RenderedFile {
	f := ini.Empty()

	conn, _ := f.NewSection("connection")
	conn.NewKey("id", name)
	conn.NewKey("uuid", r.newUUID())
	conn.NewKey("type", "ethernet")
	conn.NewKey("interface-name", name)

	eth, _ := f.NewSection("ethernet")
	if c.MACAddress != "" {
		eth.NewKey("mac-address", c.MACAddress)
	}
	if c.MTU != nil {
		eth.NewKey("mtu", strconv.Itoa(*c.MTU))
	}

	ipv4, _ := f.NewSection("ipv4")
	writeIPSection(ipv4, c.DHCP4 != nil && *c.DHCP4, ipv4Addresses(c), c.Gateway4, ipv4Nameservers(c))

	ipv6, _ := f.NewSection("ipv6")
	writeIPSection(ipv6, c.DHCP6 != nil && *c.DHCP6, ipv6Addresses(c), c.Gateway6, ipv6Nameservers(c))

	for i, rt := range c.Routes {
		sec, _ := f.NewSection(fmt.Sprintf("ipv4.route%d", i+1))
		sec.NewKey("destination", rt.To)
		if rt.Via != "" {
			sec.NewKey("next-hop", rt.Via)
		}
	}

	var buf strings.Builder
	f.WriteTo(&buf)

	return RenderedFile{
		RelativePath: name + ".nmconnection",
		Content:      []byte(buf.String()),
		Mode:         0600,
	}
}

func writeIPSection(sec *ini.Section, dhcp bool, addresses []string, gateway string, nameservers []string) {
	switch {
	case dhcp:
		sec.NewKey("method", "auto")
	case len(addresses) > 0:
		sec.NewKey("method", "manual")
		for i, a := range addresses {
			sec.NewKey(fmt.Sprintf("address%d", i+1), a)
		}
		if gateway != "" {
			sec.NewKey("gateway", gateway)
		}
	default:
		sec.NewKey("method", "link-local")
	}
	if len(nameservers) > 0 {
		sec.NewKey("dns", strings.Join(nameservers, ";")+";")
	}
}

func ipv4Addresses(c netmodel.InterfaceCommon) []string { return filterByColon(c.Addresses, false) }
func ipv6Addresses(c netmodel.InterfaceCommon) []string { return filterByColon(c.Addresses, true) }

func filterByColon(addrs []string, wantIPv6 bool) []string {
	var out []string
	for _, a := range addrs {
		isV6 := strings.Contains(a, ":")
		if isV6 == wantIPv6 {
			out = append(out, a)
		}
	}
	return out
}

func ipv4Nameservers(c netmodel.InterfaceCommon) []string {
	if c.Nameservers == nil {
		return nil
	}
	return filterByColon(c.Nameservers.Addresses, false)
}

func ipv6Nameservers(c netmodel.InterfaceCommon) []string {
	if c.Nameservers == nil {
		return nil
	}
	return filterByColon(c.Nameservers.Addresses, true)
}
