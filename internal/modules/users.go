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
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
	"github.com/cloudboot-io/boot-agent/internal/cloudconfig"
	"github.com/cloudboot-io/boot-agent/internal/run"
)

// CreateUsers provisions every users[] entry: useradd if missing, then
// primary/secondary group membership, sudo rule, lock_passwd, and SSH keys.
// Per-entity warn-and-continue (§4.I): one user's failure doesn't stop the
// rest, but the first error is still surfaced to the caller's policy.
func CreateUsers(ctx context.Context, users []cloudconfig.User) error {
	var firstErr error
	record := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, u := range users {
		if u.Name == "" {
			continue
		}
		if _, err := lookupPasswd(u.Name); err != nil {
			if err := createUser(ctx, u); err != nil {
				logger.Errorf("creating user %q: %v", u.Name, err)
				record(agenterrors.Wrap(agenterrors.KindUserGroup, "creating user "+u.Name, err))
				continue
			}
		}

		for _, g := range u.Groups {
			if err := run.Quiet(ctx, "gpasswd", "-a", u.Name, g); err != nil {
				logger.Errorf("adding %q to group %q: %v", u.Name, g, err)
			}
		}

		if u.LockPasswd != nil && *u.LockPasswd {
			if err := run.Quiet(ctx, "passwd", "-l", u.Name); err != nil {
				logger.Errorf("locking password for %q: %v", u.Name, err)
			}
		}

		if u.Sudo != "" {
			if err := writeSudoersEntry(ctx, u.Name, u.Sudo); err != nil {
				logger.Errorf("writing sudoers entry for %q: %v", u.Name, err)
				record(err)
			}
		}

		if len(u.SSHAuthorizedKeys) > 0 {
			if err := InstallAuthorizedKeys(u.Name, u.SSHAuthorizedKeys); err != nil {
				logger.Errorf("installing SSH keys for %q: %v", u.Name, err)
				record(err)
			}
		}
	}
	return firstErr
}

func createUser(ctx context.Context, u cloudconfig.User) error {
	args := []string{"-m"}
	if u.Gecos != "" {
		args = append(args, "-c", u.Gecos)
	}
	if u.Homedir != "" {
		args = append(args, "-d", u.Homedir)
	}
	if u.PrimaryGroup != "" {
		args = append(args, "-g", u.PrimaryGroup)
	}
	if u.Shell != "" {
		args = append(args, "-s", u.Shell)
	}
	if u.System != nil && *u.System {
		args = append(args, "--system")
	}
	if u.UID != nil {
		args = append(args, "-u", strconv.Itoa(*u.UID))
	}
	args = append(args, u.Name)

	if err := run.Quiet(ctx, "useradd", args...); err != nil {
		return err
	}
	if u.Passwd != "" {
		if err := chpasswdHash(ctx, u.Name, u.Passwd); err != nil {
			return err
		}
	}
	return nil
}

// chpasswdHash feeds "user:hash" to chpasswd -e over stdin; the run package
// only wraps argv-based invocations, and this is the one module body that
// needs to write to a child's stdin.
func chpasswdHash(ctx context.Context, user, hash string) error {
	cmd := exec.CommandContext(ctx, "chpasswd", "-e")
	cmd.Stdin = strings.NewReader(user + ":" + hash + "\n")
	if err := cmd.Run(); err != nil {
		return agenterrors.Wrap(agenterrors.KindCommand, "setting password hash", err)
	}
	return nil
}

// writeSudoersEntry drops a file under /etc/sudoers.d validated by
// `visudo -c -f`; on validation failure the file is removed and an error
// surfaced (§4.I: "users with sudo").
func writeSudoersEntry(ctx context.Context, user, rule string) error {
	path := fmt.Sprintf("/etc/sudoers.d/90-cloud-init-%s", user)
	body := fmt.Sprintf("%s\n", rule)

	if err := os.WriteFile(path, []byte(body), 0440); err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "writing sudoers entry", err)
	}

	if err := run.Quiet(ctx, "visudo", "-c", "-f", path); err != nil {
		os.Remove(path)
		return agenterrors.Wrap(agenterrors.KindUserGroup, "sudoers entry for "+user+" failed validation", err)
	}
	return nil
}
