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
	"reflect"
	"sort"

	"github.com/go-ini/ini"

	"github.com/cloudboot-io/boot-agent/internal/netmodel"
)

// networkdRenderer emits systemd-networkd .network/.netdev files, one pair
// per bond/bridge/vlan plus a plain .network per ethernet, numbered so
// members sort after their parent (§4.H).
type networkdRenderer struct{}

// NewNetworkd returns the systemd-networkd renderer.
func NewNetworkd() Renderer { return &networkdRenderer{} }

func (n *networkdRenderer) Name() string { return Networkd }
func (n *networkdRenderer) Root() string { return "/etc/systemd/network" }

// ReloadArgv: "networkctl reload" with a fall back to restarting the
// unit directly (§4.H).
func (n *networkdRenderer) ReloadArgv() ([]string, []string) {
	return []string{"networkctl", "reload"}, []string{"systemctl", "restart", "systemd-networkd"}
}

type ndMatch struct {
	Name       string `ini:"Name,omitempty"`
	MACAddress string `ini:"MACAddress,omitempty"`
	Driver     string `ini:"Driver,omitempty"`
}

type ndNetwork struct {
	DHCP            string   `ini:"DHCP,omitempty"`
	Address         []string `ini:"Address,omitempty,allowshadow"`
	Gateway         string   `ini:"Gateway,omitempty"`
	DNS             []string `ini:"DNS,omitempty,allowshadow"`
	Domains         string   `ini:"Domains,omitempty"`
	Bond            string   `ini:"Bond,omitempty"`
	Bridge          string   `ini:"Bridge,omitempty"`
	VLAN            []string `ini:"VLAN,omitempty,allowshadow"`
	IPv6AcceptRA    string   `ini:"IPv6AcceptRA,omitempty"`
}

type ndLink struct {
	MACAddress string `ini:"MACAddress,omitempty"`
	MTUBytes   int    `ini:"MTUBytes,omitempty"`
}

type ndConfig struct {
	Match   ndMatch
	Network ndNetwork
	Link    *ndLink `ini:",omitempty"`

	// num is the file-name priority prefix (§4.H), assigned once all
	// primaries are known; routes are appended as raw [Route] blocks since
	// go-ini can't repeat a struct section. Neither is serialized by
	// ReflectFrom (unexported fields are skipped).
	num    int
	routes []netmodel.Route
}

type ndNetDev struct {
	Name string
	Kind string
}

type ndBond struct {
	Mode               string `ini:"Mode,omitempty"`
	TransmitHashPolicy string `ini:"TransmitHashPolicy,omitempty"`
	LACPTransmitRate   string `ini:"LACPTransmitRate,omitempty"`
	Primary            string `ini:"Primary,omitempty"`
}

type ndVLANSection struct {
	Id int `ini:"Id"`
}

func (r *networkdRenderer) Render(m netmodel.Model) ([]RenderedFile, error) {
	memberOfBond := map[string]string{}
	memberOfBridge := map[string]string{}
	for name, b := range m.Bonds {
		for _, iface := range b.Interfaces {
			memberOfBond[iface] = name
		}
	}
	for name, b := range m.Bridges {
		for _, iface := range b.Interfaces {
			memberOfBridge[iface] = name
		}
	}

	// parentConfigs holds the per-primary-interface .network config so
	// vlan bindings can be appended to the parent before serialization.
	parentConfigs := map[string]*ndConfig{}
	var files []RenderedFile

	nn := 10
	nextNN := func() int {
		v := nn
		nn += 10
		return v
	}

	for _, name := range sortedKeys(m.Ethernets) {
		if _, isMember := memberOfBond[name]; isMember {
			continue
		}
		if _, isMember := memberOfBridge[name]; isMember {
			continue
		}
		eth := m.Ethernets[name]
		cfg := ethernetConfig(name, eth)
		parentConfigs[name] = cfg
		cfg.num = nextNN()
	}

	for _, name := range sortedKeys(m.Bonds) {
		bond := m.Bonds[name]
		netdevCfg := &ndNetDev{Name: name, Kind: "bond"}
		num := nextNN()
		files = append(files, iniFile(fmt.Sprintf("%02d-%s.netdev", num, name), "NetDev", netdevCfg,
			"Bond", bondSectionFromParams(bond.Parameters)))

		cfg := commonConfig(name, bond.InterfaceCommon)
		cfg.num = num
		parentConfigs[name] = cfg

		memberNum := num + 1
		for _, iface := range bond.Interfaces {
			files = append(files, iniFile(fmt.Sprintf("%02d-%s.network", memberNum, iface), "Match", ndMatch{Name: iface},
				"Network", ndNetwork{Bond: name}))
			memberNum++
		}
	}

	for _, name := range sortedKeys(m.Bridges) {
		br := m.Bridges[name]
		netdevCfg := &ndNetDev{Name: name, Kind: "bridge"}
		num := nextNN()
		files = append(files, iniFile(fmt.Sprintf("%02d-%s.netdev", num, name), "NetDev", netdevCfg))

		cfg := commonConfig(name, br.InterfaceCommon)
		cfg.num = num
		parentConfigs[name] = cfg

		memberNum := num + 1
		for _, iface := range br.Interfaces {
			files = append(files, iniFile(fmt.Sprintf("%02d-%s.network", memberNum, iface), "Match", ndMatch{Name: iface},
				"Network", ndNetwork{Bridge: name}))
			memberNum++
		}
	}

	for _, name := range sortedKeys(m.VLANs) {
		vlan := m.VLANs[name]
		num := nextNN()
		files = append(files, iniFile(fmt.Sprintf("%02d-%s.netdev", num, name), "NetDev", ndNetDev{Name: name, Kind: "vlan"},
			"VLAN", ndVLANSection{Id: vlan.ID}))

		cfg := commonConfig(name, vlan.InterfaceCommon)
		cfg.num = num
		parentConfigs[name] = cfg

		if parent, ok := parentConfigs[vlan.Link]; ok {
			parent.Network.VLAN = append(parent.Network.VLAN, name)
		}
	}

	for _, name := range sortedKeys(parentConfigs) {
		cfg := parentConfigs[name]
		f := iniFile(fmt.Sprintf("%02d-%s.network", cfg.num, name), "Match", cfg.Match,
			"Network", cfg.Network, "Link", cfg.Link)
		f.Content = append(f.Content, routeBlocks(cfg.routes)...)
		files = append(files, f)
	}

	return files, nil
}

// routeBlocks renders each route as its own [Route] section; go-ini's
// struct reflection can't repeat a section name, so these are appended as
// raw text after the reflected sections.
func routeBlocks(routes []netmodel.Route) []byte {
	var buf bytes.Buffer
	for _, r := range routes {
		buf.WriteString("\n[Route]\n")
		if r.To != "" {
			fmt.Fprintf(&buf, "Destination=%s\n", r.To)
		}
		if r.Via != "" {
			fmt.Fprintf(&buf, "Gateway=%s\n", r.Via)
		}
		if r.Metric != nil {
			fmt.Fprintf(&buf, "Metric=%d\n", *r.Metric)
		}
	}
	return buf.Bytes()
}

func ethernetConfig(name string, eth netmodel.Ethernet) *ndConfig {
	cfg := commonConfig(name, eth.InterfaceCommon)
	if eth.Match != nil {
		cfg.Match = ndMatch{Name: name, MACAddress: eth.Match.MACAddress, Driver: eth.Match.Driver}
		if eth.Match.Name != "" {
			cfg.Match.Name = eth.Match.Name
		}
	}
	return cfg
}

func commonConfig(name string, c netmodel.InterfaceCommon) *ndConfig {
	cfg := &ndConfig{Match: ndMatch{Name: name, MACAddress: c.MACAddress}}
	cfg.Network.DHCP = dhcpValue(c.DHCP4, c.DHCP6)
	cfg.Network.Address = c.Addresses
	cfg.Network.Gateway = firstNonEmpty(c.Gateway4, c.Gateway6)
	if c.Nameservers != nil {
		cfg.Network.DNS = c.Nameservers.Addresses
		if len(c.Nameservers.Search) > 0 {
			cfg.Network.Domains = joinSpace(c.Nameservers.Search)
		}
	}
	if c.AcceptRA != nil {
		cfg.Network.IPv6AcceptRA = boolYesNo(*c.AcceptRA)
	}
	if c.MTU != nil || c.MACAddress != "" {
		link := &ndLink{MACAddress: c.MACAddress}
		if c.MTU != nil {
			link.MTUBytes = *c.MTU
		}
		cfg.Link = link
	}
	cfg.routes = c.Routes
	return cfg
}

func bondSectionFromParams(p *netmodel.BondParameters) ndBond {
	if p == nil {
		return ndBond{}
	}
	return ndBond{
		Mode:               p.Mode,
		TransmitHashPolicy: p.TransmitHashPolicy,
		LACPTransmitRate:   p.LACPRate,
		// Primary maps to the sibling [Bond] Primary= field, not
		// PrimaryReselectPolicy= (see DESIGN.md's redesign-flag decision).
		Primary: p.Primary,
	}
}

func dhcpValue(v4, v6 *bool) string {
	on4 := v4 != nil && *v4
	on6 := v6 != nil && *v6
	switch {
	case on4 && on6:
		return "yes"
	case on4:
		return "ipv4"
	case on6:
		return "ipv6"
	default:
		return "no"
	}
}

func boolYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinSpace(vals []string) string {
	out := ""
	for i, v := range vals {
		if i > 0 {
			out += " "
		}
		out += v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// iniFile marshals alternating section-name/value pairs into an .ini-shaped
// RenderedFile at the networkd default mode (0644, per §4.H).
func iniFile(relPath string, sectionsAndValues ...interface{}) RenderedFile {
	f := ini.Empty()
	for i := 0; i+1 < len(sectionsAndValues); i += 2 {
		name, _ := sectionsAndValues[i].(string)
		value := sectionsAndValues[i+1]
		if value == nil {
			continue
		}
		if rv := reflect.ValueOf(value); rv.Kind() == reflect.Ptr && rv.IsNil() {
			continue
		}
		sec, err := f.NewSection(name)
		if err != nil {
			continue
		}
		if err := sec.ReflectFrom(value); err != nil {
			continue
		}
	}
	var buf bytes.Buffer
	// Compact "Key=Value" lines, the same form routeBlocks appends.
	pretty := ini.PrettyFormat
	ini.PrettyFormat = false
	f.WriteTo(&buf)
	ini.PrettyFormat = pretty
	return RenderedFile{RelativePath: relPath, Content: buf.Bytes(), Mode: 0644}
}
