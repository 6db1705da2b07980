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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
	"github.com/cloudboot-io/boot-agent/internal/run"
)

// HostnameInput carries what the hostname module needs from the merged
// cloud-config document.
type HostnameInput struct {
	Hostname       string
	FQDN           string
	ManageEtcHosts bool
}

const etcHostsPath = "/etc/hosts"

// SetHostname shells out to `hostname` and, if ManageEtcHosts is set,
// rewrites /etc/hosts preserving unrelated lines (§4.I).
func SetHostname(ctx context.Context, in HostnameInput) error {
	name := in.Hostname
	if name == "" {
		return nil
	}

	if err := run.Quiet(ctx, "hostname", name); err != nil {
		return agenterrors.Wrap(agenterrors.KindCommand, "setting hostname", err)
	}

	if !in.ManageEtcHosts {
		return nil
	}
	return rewriteEtcHosts(name, in.FQDN)
}

func rewriteEtcHosts(hostname, fqdn string) error {
	existing, err := os.ReadFile(etcHostsPath)
	if err != nil && !os.IsNotExist(err) {
		return agenterrors.Wrap(agenterrors.KindIo, "reading /etc/hosts", err)
	}

	updated := renderEtcHosts(string(existing), hostname, fqdn)
	if err := os.WriteFile(etcHostsPath, []byte(updated), 0644); err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "writing /etc/hosts", err)
	}
	return nil
}

// renderEtcHosts returns existing with its 127.0.0.1/127.0.1.1 lines
// replaced by the ones for hostname/fqdn, preserving every other line
// (§4.I: "rewrite /etc/hosts preserving unrelated lines").
func renderEtcHosts(existing, hostname, fqdn string) string {
	var kept []string
	sc := bufio.NewScanner(strings.NewReader(existing))
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "127.0.0.1 ") || strings.HasPrefix(trimmed, "127.0.1.1 ") {
			continue
		}
		kept = append(kept, line)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "127.0.0.1 localhost %s\n", hostname)
	if fqdn != "" && fqdn != hostname {
		fmt.Fprintf(&buf, "127.0.1.1 %s %s\n", fqdn, hostname)
	} else {
		fmt.Fprintf(&buf, "127.0.1.1 %s\n", hostname)
	}
	for _, line := range kept {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.String()
}

// SetTimezone shells out to the distro's timezone tool. Warn-and-continue
// per §4.I; the error is still returned so the caller's FailWarn policy can
// decide.
func SetTimezone(ctx context.Context, tz string) error {
	if tz == "" {
		return nil
	}
	if err := run.Quiet(ctx, "timedatectl", "set-timezone", tz); err != nil {
		return agenterrors.Wrap(agenterrors.KindCommand, "setting timezone", err)
	}
	return nil
}

// SetLocale shells out to the distro's locale tool.
func SetLocale(ctx context.Context, locale string) error {
	if locale == "" {
		return nil
	}
	if err := run.Quiet(ctx, "localectl", "set-locale", locale); err != nil {
		return agenterrors.Wrap(agenterrors.KindCommand, "setting locale", err)
	}
	return nil
}
