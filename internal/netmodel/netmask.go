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
	"fmt"
	"math/bits"
	"net"
)

// PrefixToNetmask renders a CIDR prefix length as a dotted-decimal IPv4
// netmask (§8 property: round-trips via NetmaskToPrefix).
func PrefixToNetmask(prefix int) (string, error) {
	if prefix < 0 || prefix > 32 {
		return "", fmt.Errorf("invalid IPv4 prefix length %d", prefix)
	}
	mask := net.CIDRMask(prefix, 32)
	return net.IP(mask).String(), nil
}

// NetmaskToPrefix converts a dotted-decimal IPv4 netmask to its CIDR
// prefix length by popcount, per §4.H's v1 subnet conversion.
func NetmaskToPrefix(netmask string) (int, error) {
	ip := net.ParseIP(netmask)
	if ip == nil {
		return 0, fmt.Errorf("invalid netmask %q", netmask)
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("not an IPv4 netmask %q", netmask)
	}
	ones := bits.OnesCount8(v4[0]) + bits.OnesCount8(v4[1]) + bits.OnesCount8(v4[2]) + bits.OnesCount8(v4[3])
	return ones, nil
}
