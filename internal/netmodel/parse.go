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
	"gopkg.in/yaml.v3"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
)

type envelope struct {
	Network *yaml.Node `yaml:"network"`
}

type versionProbe struct {
	Version int `yaml:"version"`
}

// Parse reads a network-config YAML blob (§6): top-level `version: 1` or
// `version: 2`, optionally wrapped under a top-level `network:` key, and
// returns the v2 Model (converting a v1 document via ToV2).
func Parse(data []byte) (Model, error) {
	node, err := unwrapNetworkKey(data)
	if err != nil {
		return Model{}, err
	}

	var probe versionProbe
	if err := node.Decode(&probe); err != nil {
		return Model{}, agenterrors.Wrap(agenterrors.KindParseYAML, "detecting network-config version", err)
	}

	switch probe.Version {
	case 1:
		var v1 V1Config
		if err := node.Decode(&v1); err != nil {
			return Model{}, agenterrors.Wrap(agenterrors.KindParseYAML, "parsing v1 network-config", err)
		}
		return ToV2(v1)
	case 2:
		var v2 Model
		if err := node.Decode(&v2); err != nil {
			return Model{}, agenterrors.Wrap(agenterrors.KindParseYAML, "parsing v2 network-config", err)
		}
		return v2, nil
	default:
		return Model{}, agenterrors.New(agenterrors.KindConfig, "unrecognized network-config version")
	}
}

func unwrapNetworkKey(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, agenterrors.Wrap(agenterrors.KindParseYAML, "parsing network-config YAML", err)
	}
	if len(doc.Content) == 0 {
		return nil, agenterrors.New(agenterrors.KindConfig, "empty network-config document")
	}
	root := doc.Content[0]

	var env envelope
	if err := root.Decode(&env); err == nil && env.Network != nil {
		return env.Network, nil
	}
	return root, nil
}
