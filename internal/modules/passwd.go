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
	"bufio"
	"bytes"
	"os"
	"strconv"
	"strings"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
)

// passwdEntry mirrors the fields of /etc/passwd needed to locate and own a
// user's .ssh directory.
type passwdEntry struct {
	Username string
	UID      int
	GID      int
	HomeDir  string
	Shell    string
}

// lookupPasswd scans /etc/passwd for user, the way accounts.go's getPasswd
// does (code adapted from os/user, which doesn't expose a pure-Go lookup on
// every platform).
func lookupPasswd(user string) (*passwdEntry, error) {
	f, err := os.Open("/etc/passwd")
	if err != nil {
		return nil, agenterrors.Wrap(agenterrors.KindIo, "opening /etc/passwd", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		entry, ok := parsePasswdLine(string(line), user)
		if ok {
			return entry, nil
		}
	}
	return nil, agenterrors.New(agenterrors.KindUserGroup, "user "+user+" not found in /etc/passwd")
}

func parsePasswdLine(line, wantUser string) (*passwdEntry, bool) {
	parts := strings.SplitN(line, ":", 7)
	if len(parts) != 7 || parts[0] != wantUser {
		return nil, false
	}
	uid, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, false
	}
	gid, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, false
	}
	return &passwdEntry{
		Username: parts[0],
		UID:      uid,
		GID:      gid,
		HomeDir:  parts[5],
		Shell:    parts[6],
	}, true
}
