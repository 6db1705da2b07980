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
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
)

// InstallAuthorizedKeys resolves user's home directory from /etc/passwd and
// writes their authorized_keys file, ensuring .ssh is mode 0700 and
// authorized_keys is mode 0600, both owned by the user (§4.I ssh_keys).
// Keys failing SSH wire-format validation are skipped, not fatal.
func InstallAuthorizedKeys(user string, keys []string) error {
	passwd, err := lookupPasswd(user)
	if err != nil {
		return err
	}
	if passwd.HomeDir == "" {
		return agenterrors.New(agenterrors.KindUserGroup, "user "+user+" has no homedir set")
	}

	valid := filterValidKeys(keys)

	sshDir := filepath.Join(passwd.HomeDir, ".ssh")
	if err := os.MkdirAll(sshDir, 0700); err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "creating .ssh directory", err)
	}
	if err := os.Chmod(sshDir, 0700); err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "setting .ssh mode", err)
	}
	if err := os.Chown(sshDir, passwd.UID, passwd.GID); err != nil {
		return agenterrors.Wrap(agenterrors.KindPermission, "chowning .ssh", err)
	}

	akPath := filepath.Join(sshDir, "authorized_keys")
	body := strings.Join(valid, "\n")
	if len(valid) > 0 {
		body += "\n"
	}
	if err := os.WriteFile(akPath, []byte(body), 0600); err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "writing authorized_keys", err)
	}
	if err := os.Chown(akPath, passwd.UID, passwd.GID); err != nil {
		return agenterrors.Wrap(agenterrors.KindPermission, "chowning authorized_keys", err)
	}
	return nil
}

// filterValidKeys drops any entry that doesn't parse as an authorized_keys
// line, using golang.org/x/crypto/ssh for the wire-format check rather than
// hand-rolled validation.
func filterValidKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(k)); err != nil {
			continue
		}
		out = append(out, k)
	}
	return out
}
