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

// Package netrender implements the §4.H network renderers: pure functions
// from internal/netmodel.Model to a set of files for a specific backend
// (systemd-networkd, NetworkManager, Debian ENI), plus the environment
// detection that picks one.
package netrender

import (
	"io/fs"
	"os"

	"github.com/cloudboot-io/boot-agent/internal/netmodel"
)

// RenderedFile is one file a renderer wants written, relative to its root
// directory, with the mode the spec requires for that backend.
type RenderedFile struct {
	RelativePath string
	Content      []byte
	Mode         fs.FileMode
}

// Renderer is a pure function (Model) -> []RenderedFile, plus the fixed
// root the scheduler writes those files under and the reload command run
// after writing (§4.H's emit contract).
type Renderer interface {
	Name() string
	Root() string
	Render(m netmodel.Model) ([]RenderedFile, error)
	// ReloadArgv returns the command and arguments used to make the
	// backend pick up newly written files (§4.H's emit contract), and its
	// fallback if the primary command is absent. ENI has nothing to run
	// here — it returns (nil, nil) and is left for the next ifup/reboot.
	ReloadArgv() (primary []string, fallback []string)
}

// Backend names used for explicit selection / renderer hints.
const (
	Networkd       = "networkd"
	NetworkManager = "network-manager"
	ENI            = "eni"
)

// New returns the Renderer for the named backend.
func New(name string) (Renderer, bool) {
	switch name {
	case Networkd:
		return NewNetworkd(), true
	case NetworkManager:
		return NewNetworkManager(), true
	case ENI:
		return NewENI(), true
	default:
		return nil, false
	}
}

// Select implements §4.H's renderer-selection order: an explicit hint
// wins; else the document's own `renderer` field; else auto-detection
// from the environment.
func Select(explicitHint, modelRenderer string) (Renderer, bool) {
	if explicitHint != "" {
		if r, ok := New(explicitHint); ok {
			return r, true
		}
	}
	if modelRenderer != "" {
		if r, ok := New(modelRenderer); ok {
			return r, true
		}
	}
	return New(Detect())
}

// Detect probes the environment for which network backend is present,
// preferring systemd-networkd, then NetworkManager, then the Debian ENI
// format when /etc/network/interfaces exists (§4.H). When none of these is
// found it returns networkd.
func Detect() string {
	if fileExists("/lib/systemd/systemd-networkd") || fileExists("/usr/lib/systemd/systemd-networkd") {
		return Networkd
	}
	if lookPathExists("nmcli") || fileExists("/etc/NetworkManager") {
		return NetworkManager
	}
	if fileExists("/etc/network/interfaces") {
		return ENI
	}
	return Networkd
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func lookPathExists(name string) bool {
	for _, dir := range []string{"/usr/bin", "/bin", "/usr/sbin", "/sbin", "/usr/local/bin"} {
		if fileExists(dir + "/" + name) {
			return true
		}
	}
	return false
}
