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
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ListMergeStrategy controls how Seq × Seq pairs combine during merge
// (§4.E).
type ListMergeStrategy string

const (
	Append    ListMergeStrategy = "append"
	Prepend   ListMergeStrategy = "prepend"
	Replace   ListMergeStrategy = "replace"
	NoReplace ListMergeStrategy = "no_replace"
)

// ParseListMergeStrategy parses merge_how's value. An unrecognized string
// defaults to Append — see SPEC_FULL.md's Open-Question decision: kept
// permissive rather than promoted to a parse error.
func ParseListMergeStrategy(s string) ListMergeStrategy {
	switch strings.ToLower(s) {
	case "append":
		return Append
	case "prepend":
		return Prepend
	case "replace":
		return Replace
	case "no_replace", "noreplace":
		return NoReplace
	default:
		return Append
	}
}

// Merge composes base and overlay into a new CloudConfig: overlay wins on
// scalars, sequences combine per strategy, maps union and recurse, and a
// null overlay value keeps the base value (§4.E).
func Merge(base, overlay CloudConfig, strategy ListMergeStrategy) (CloudConfig, error) {
	baseTree, err := toTree(base)
	if err != nil {
		return CloudConfig{}, err
	}
	overlayTree, err := toTree(overlay)
	if err != nil {
		return CloudConfig{}, err
	}

	merged := mergeValues(baseTree, overlayTree, strategy)

	var out CloudConfig
	if err := fromTree(merged, &out); err != nil {
		return CloudConfig{}, err
	}
	return out, nil
}

// MergeAll composes an ordered list of documents, later documents
// overriding earlier ones, using the first document present that sets
// merge_how (if any) as the strategy, else Append.
func MergeAll(docs []CloudConfig) (CloudConfig, error) {
	if len(docs) == 0 {
		return CloudConfig{}, nil
	}
	strategy := Append
	for _, d := range docs {
		if d.MergeHow != "" {
			strategy = ParseListMergeStrategy(d.MergeHow)
			break
		}
	}

	result := docs[0]
	for _, d := range docs[1:] {
		merged, err := Merge(result, d, strategy)
		if err != nil {
			return CloudConfig{}, err
		}
		result = merged
	}
	return result, nil
}

func toTree(cfg CloudConfig) (interface{}, error) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree interface{}
	if err := yaml.Unmarshal(b, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func fromTree(tree interface{}, out *CloudConfig) error {
	// mapstructure decodes the generic map[string]interface{} tree (already
	// string-keyed after a YAML round-trip) straight into the typed
	// document, matching the field-per-field shape of §3's Data Model.
	// User/Group/RunCmdEntry round-trip through MarshalYAML's "shortest
	// form" (§9: a bare scalar or list whenever only the name/shell was
	// set), so the decode hook below rehydrates those bare shapes back into
	// the typed structs before mapstructure's own struct/map decoding runs
	// — otherwise a bare `users: [default]` or `runcmd: ["echo hi"]` entry
	// fails to decode (mapstructure requires a map/struct source for a
	// struct target) and the whole merged document would be discarded.
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook:       bareFormDecodeHook,
	})
	if err != nil {
		return err
	}
	return dec.Decode(tree)
}

// bareFormDecodeHook rehydrates the bare-scalar/bare-list forms that
// User.MarshalYAML, Group.MarshalYAML, and RunCmdEntry.MarshalYAML emit for
// the "shortest form" case back into their full struct shape, so a
// value-tree round trip through yaml.Marshal/Unmarshal doesn't hand
// mapstructure a string or slice where it expects a map.
func bareFormDecodeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	switch to {
	case reflect.TypeOf(User{}):
		if from.Kind() == reflect.String {
			return User{Name: data.(string), bareName: true}, nil
		}
	case reflect.TypeOf(Group{}):
		if from.Kind() == reflect.String {
			return Group{Name: data.(string)}, nil
		}
	case reflect.TypeOf(RunCmdEntry{}):
		switch from.Kind() {
		case reflect.String:
			return RunCmdEntry{Shell: data.(string)}, nil
		case reflect.Slice:
			args, err := bareFormStringSlice(data)
			if err != nil {
				return nil, err
			}
			return RunCmdEntry{Args: args}, nil
		}
	}
	return data, nil
}

func bareFormStringSlice(data interface{}) ([]string, error) {
	switch v := data.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list item, got %T", item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string list, got %T", data)
	}
}

// mergeValues implements the recursive merge of §4.E over a YAML-shaped
// value tree built from map[string]interface{}, []interface{}, and
// scalars/nil.
func mergeValues(base, overlay interface{}, strategy ListMergeStrategy) interface{} {
	baseMap, baseIsMap := base.(map[string]interface{})
	overlayMap, overlayIsMap := overlay.(map[string]interface{})
	if baseIsMap && overlayIsMap {
		result := make(map[string]interface{}, len(baseMap))
		for k, v := range baseMap {
			result[k] = v
		}
		for k, overlayVal := range overlayMap {
			if baseVal, ok := result[k]; ok {
				result[k] = mergeValues(baseVal, overlayVal, strategy)
			} else {
				result[k] = overlayVal
			}
		}
		return result
	}

	baseSeq, baseIsSeq := base.([]interface{})
	overlaySeq, overlayIsSeq := overlay.([]interface{})
	if baseIsSeq && overlayIsSeq {
		switch strategy {
		case Prepend:
			result := append([]interface{}{}, overlaySeq...)
			for _, item := range baseSeq {
				if !containsEqual(result, item) {
					result = append(result, item)
				}
			}
			return result
		case Replace:
			return overlaySeq
		case NoReplace:
			return baseSeq
		default: // Append
			result := append([]interface{}{}, baseSeq...)
			for _, item := range overlaySeq {
				if !containsEqual(result, item) {
					result = append(result, item)
				}
			}
			return result
		}
	}

	if overlay == nil {
		return base
	}
	return overlay
}

func containsEqual(list []interface{}, item interface{}) bool {
	for _, v := range list {
		if reflect.DeepEqual(v, item) {
			return true
		}
	}
	return false
}
