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

package userdata

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"io"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
)

// Kind tags a decoded Userdata value's shape.
type Kind string

const (
	KindAbsent      Kind = "absent"
	KindCloudConfig Kind = "cloud_config"
	KindScript      Kind = "script"
	KindMultipart   Kind = "multipart"
)

// Userdata is the tagged value produced by Decode (§3, §4.D).
type Userdata struct {
	Kind Kind
	// RawCloudConfig holds the YAML text when Kind == KindCloudConfig; the
	// caller (internal/cloudconfig) is responsible for parsing it, keeping
	// this package free of a dependency on the CloudConfig type.
	RawCloudConfig string
	Script         string
	Parts          []Part
}

// Decode implements the §4.D pipeline: unwrap gzip/base64 layers, then
// dispatch on the classified content type.
func Decode(data []byte) (Userdata, error) {
	if len(data) == 0 {
		return Userdata{Kind: KindAbsent}, nil
	}

	for {
		switch Classify(data) {
		case TypeGzip:
			decompressed, err := gunzip(data)
			if err != nil {
				return Userdata{}, agenterrors.Wrap(agenterrors.KindInvalidData, "decompressing gzip userdata", err)
			}
			data = decompressed
			continue
		case TypeBase64:
			decoded, err := base64DecodeLoose(data)
			if err != nil {
				return Userdata{}, agenterrors.Wrap(agenterrors.KindInvalidData, "base64-decoding userdata", err)
			}
			data = decoded
			continue
		}
		break
	}

	switch ct := Classify(data); ct {
	case TypeCloudConfig, TypeJinjaTemplate:
		// Template content must already be expanded by the caller before
		// reaching here; the text is returned unchanged, including any
		// "## template: jinja" marker line.
		return Userdata{Kind: KindCloudConfig, RawCloudConfig: string(data)}, nil

	case TypeMultipart:
		parts, err := ParseMultipart(string(data))
		if err != nil {
			return Userdata{}, err
		}
		return Userdata{Kind: KindMultipart, Parts: parts}, nil

	case TypeScript, TypeCloudBoothook:
		return Userdata{Kind: KindScript, Script: string(data)}, nil

	case TypeIncludeURL:
		return includeURLMultipart(data), nil

	default:
		return Userdata{Kind: KindScript, Script: string(data)}, nil
	}
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func base64DecodeLoose(data []byte) ([]byte, error) {
	clean := bytes.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, data)
	return base64.StdEncoding.DecodeString(string(clean))
}

// includeURLMultipart emits a Multipart whose single part carries the
// #include list's URLs as placeholder content; fetching is the caller's
// job (§4.D step 6).
func includeURLMultipart(data []byte) Userdata {
	return Userdata{
		Kind: KindMultipart,
		Parts: []Part{{
			ContentType: TypeIncludeURL,
			MIMEType:    "text/x-include-url",
			Content:     string(data),
		}},
	}
}
