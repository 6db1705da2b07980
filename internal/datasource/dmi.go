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

package datasource

import (
	"os"
	"strings"
)

var dmiPaths = []string{
	"/sys/class/dmi/id/product_name",
	"/sys/class/dmi/id/bios_vendor",
	"/sys/class/dmi/id/sys_vendor",
	"/sys/class/dmi/id/chassis_asset_tag",
	"/sys/class/dmi/id/chassis_vendor",
}

// DMIContainsAny reports whether any DMI identity file's lowercased content
// contains one of keywords (§4.G's common availability pattern).
func DMIContainsAny(keywords ...string) bool {
	for _, path := range dmiPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		content := strings.ToLower(string(data))
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				return true
			}
		}
	}
	return false
}

// FileExists reports whether path exists on disk.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
