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

import "testing"

func TestPrefixNetmaskRoundtrip(t *testing.T) {
	for prefix := 0; prefix <= 32; prefix++ {
		mask, err := PrefixToNetmask(prefix)
		if err != nil {
			t.Fatalf("PrefixToNetmask(%d): %v", prefix, err)
		}
		got, err := NetmaskToPrefix(mask)
		if err != nil {
			t.Fatalf("NetmaskToPrefix(%q): %v", mask, err)
		}
		if got != prefix {
			t.Errorf("prefix %d: roundtrip gave %d (via %q)", prefix, got, mask)
		}
	}
}

func TestNetmaskToPrefixKnownValues(t *testing.T) {
	cases := map[string]int{
		"255.255.255.0": 24,
		"255.255.0.0":   16,
		"255.0.0.0":     8,
		"255.255.255.255": 32,
		"0.0.0.0":       0,
	}
	for mask, want := range cases {
		got, err := NetmaskToPrefix(mask)
		if err != nil {
			t.Fatalf("NetmaskToPrefix(%q): %v", mask, err)
		}
		if got != want {
			t.Errorf("NetmaskToPrefix(%q) = %d, want %d", mask, got, want)
		}
	}
}

func TestNetmaskToPrefixInvalid(t *testing.T) {
	if _, err := NetmaskToPrefix("not-an-ip"); err == nil {
		t.Error("expected error for invalid netmask")
	}
}
