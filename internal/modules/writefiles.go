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

package modules

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
	"github.com/cloudboot-io/boot-agent/internal/cloudconfig"
)

// WriteFiles materializes every write_files[] entry whose Defer flag
// matches deferred, decoding content per its encoding, creating parent
// directories, applying permissions/ownership, and honoring append (§4.I).
// Per-entity warn-and-continue: one file's failure is recorded but does not
// stop the rest.
func WriteFiles(entries []cloudconfig.WriteFile, deferred bool) error {
	var firstErr error
	for _, f := range entries {
		if boolValue(f.Defer) != deferred {
			continue
		}
		if err := writeOneFile(f); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func writeOneFile(f cloudconfig.WriteFile) error {
	if f.Path == "" {
		return agenterrors.New(agenterrors.KindInvalidData, "write_files entry missing path")
	}

	content, err := decodeWriteFileContent(f.Content, f.Encoding)
	if err != nil {
		return agenterrors.Wrap(agenterrors.KindInvalidData, "decoding content for "+f.Path, err)
	}

	mode, err := parsePermissions(f.Permissions)
	if err != nil {
		return agenterrors.Wrap(agenterrors.KindInvalidData, "parsing permissions for "+f.Path, err)
	}

	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "creating parent directory for "+f.Path, err)
	}

	flags := os.O_WRONLY | os.O_CREATE
	if boolValue(f.Append) {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	fh, err := os.OpenFile(f.Path, flags, mode)
	if err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "opening "+f.Path, err)
	}
	defer fh.Close()
	if _, err := fh.Write(content); err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "writing "+f.Path, err)
	}
	if err := fh.Chmod(mode); err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "chmod "+f.Path, err)
	}

	if f.Owner != "" {
		if err := chownPath(f.Path, f.Owner); err != nil {
			return err
		}
	}
	return nil
}

// decodeWriteFileContent handles the encoding alphabet listed in §4.I:
// base64/b64, gzip/gz, and the five gz+b64 spellings, or raw text.
func decodeWriteFileContent(content, encoding string) ([]byte, error) {
	data := []byte(content)
	enc := strings.ToLower(strings.TrimSpace(encoding))

	switch enc {
	case "", "text", "plain":
		return data, nil
	case "base64", "b64":
		return base64.StdEncoding.DecodeString(content)
	case "gzip", "gz":
		return gunzipBytes(data)
	case "gz+base64", "gzip+base64", "gz+b64", "b64+gzip", "base64+gzip":
		decoded, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, err
		}
		return gunzipBytes(decoded)
	default:
		return data, nil
	}
}

func gunzipBytes(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// parsePermissions parses an octal mode string, defaulting to 0644 (§4.I).
func parsePermissions(perm string) (os.FileMode, error) {
	if perm == "" {
		return 0644, nil
	}
	v, err := strconv.ParseUint(perm, 8, 32)
	if err != nil {
		return 0, err
	}
	return os.FileMode(v), nil
}

// chownPath applies a "owner[:group] path" style spec (§4.I: "Ownership set
// by `chown owner path`").
func chownPath(path, owner string) error {
	userName, groupName, _ := strings.Cut(owner, ":")
	if groupName == "" {
		groupName = userName
	}

	u, err := user.Lookup(userName)
	if err != nil {
		return agenterrors.Wrap(agenterrors.KindUserGroup, "looking up owner "+userName, err)
	}
	g, err := user.LookupGroup(groupName)
	if err != nil {
		return agenterrors.Wrap(agenterrors.KindUserGroup, "looking up group "+groupName, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return agenterrors.Wrap(agenterrors.KindUserGroup, "parsing uid for "+userName, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return agenterrors.Wrap(agenterrors.KindUserGroup, "parsing gid for "+groupName, err)
	}

	if err := os.Chown(path, uid, gid); err != nil {
		return agenterrors.Wrap(agenterrors.KindPermission, "chowning "+path, err)
	}
	return nil
}

func boolValue(b *bool) bool { return b != nil && *b }
