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

package cloudconfig

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"

	"github.com/cloudboot-io/boot-agent/internal/state"
)

// LoadSystemConfig reads the base cloud.cfg plus every *.cfg drop-in under
// cloud.cfg.d/, in strictly lexicographic filename order (§4.E). A drop-in
// that fails to parse is logged and skipped, not fatal; a missing base
// config or drop-in directory contributes no document to the result.
func LoadSystemConfig(paths *state.Paths) ([]CloudConfig, error) {
	var docs []CloudConfig

	if base, ok, err := readConfigFile(paths.MainConfig()); err != nil {
		return nil, err
	} else if ok {
		docs = append(docs, base)
	}

	entries, err := os.ReadDir(paths.ConfigD())
	if err != nil {
		if os.IsNotExist(err) {
			return docs, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".cfg") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(paths.ConfigD(), name)
		doc, ok, err := readConfigFile(path)
		if err != nil {
			logger.Warningf("skipping drop-in %s: %v", path, err)
			continue
		}
		if ok {
			docs = append(docs, doc)
		}
	}

	return docs, nil
}

func readConfigFile(path string) (CloudConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return CloudConfig{}, false, nil
		}
		return CloudConfig{}, false, err
	}
	cfg, err := FromYAML(string(data))
	if err != nil {
		return CloudConfig{}, false, err
	}
	return cfg, true, nil
}

// Compose builds the full precedence chain of §4.E — system drop-ins, then
// vendor-data, then user-data — and merges it into a single CloudConfig.
// Either data blob may be empty (absent vendor-data/userdata).
func Compose(paths *state.Paths, vendorDataYAML, userDataYAML string) (CloudConfig, error) {
	docs, err := LoadSystemConfig(paths)
	if err != nil {
		return CloudConfig{}, err
	}

	if strings.TrimSpace(vendorDataYAML) != "" {
		vd, err := FromYAML(vendorDataYAML)
		if err != nil {
			logger.Warningf("skipping unparsable vendor-data: %v", err)
		} else {
			docs = append(docs, vd)
		}
	}

	if strings.TrimSpace(userDataYAML) != "" {
		ud, err := FromYAML(userDataYAML)
		if err != nil {
			logger.Warningf("skipping unparsable user-data: %v", err)
		} else {
			docs = append(docs, ud)
		}
	}

	return MergeAll(docs)
}
