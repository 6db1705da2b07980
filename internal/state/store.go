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

package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudboot-io/boot-agent/internal/agenterrors"
	"github.com/cloudboot-io/boot-agent/internal/atomicfile"
)

// Status is the small document rewritten at stage boundaries (§3).
type Status struct {
	Status       string `json:"status"`
	BootFinished bool   `json:"boot_finished"`
	Stage        string `json:"stage,omitempty"`
	Error        string `json:"error,omitempty"`
	Datasource   string `json:"datasource,omitempty"`
}

// Result is the final per-boot outcome document written in the Final
// stage.
type Result struct {
	Status     string    `json:"status"`
	Datasource string    `json:"datasource,omitempty"`
	Finished   time.Time `json:"finished"`
}

// Metadata is the persisted shape of a driver's instance metadata record.
// It mirrors datasource.InstanceMetadata field-for-field; state stays
// decoupled from the datasource package and callers convert at the edge.
type Metadata struct {
	InstanceID       string `json:"instance_id"`
	LocalHostname    string `json:"local_hostname,omitempty"`
	Region           string `json:"region,omitempty"`
	AvailabilityZone string `json:"availability_zone,omitempty"`
	CloudName        string `json:"cloud_name,omitempty"`
	Platform         string `json:"platform,omitempty"`
	InstanceType     string `json:"instance_type,omitempty"`
}

// Store is the mutating half of the Paths & State Store component: it owns
// initialize() and set_instance_id() plus the small persistence helpers
// named in §4.A.
type Store struct {
	Paths *Paths
}

// NewStore returns a store rooted at paths.
func NewStore(paths *Paths) *Store { return &Store{Paths: paths} }

// Initialize idempotently creates the base directory tree.
func (s *Store) Initialize() error {
	dirs := []string{
		s.Paths.DataDir(),
		s.Paths.InstancesDir(),
		s.Paths.ScriptsPerBoot(),
		s.Paths.ScriptsPerInstance(),
		s.Paths.ScriptsPerOnce(),
		s.Paths.SeedDir(),
		s.Paths.SemDataDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return agenterrors.Wrap(agenterrors.KindIo, "initializing state tree", err)
		}
	}
	return nil
}

// CachedInstanceID returns the previously persisted instance id, or "" if
// none has been recorded yet.
func (s *Store) CachedInstanceID() (string, error) {
	b, err := os.ReadFile(s.Paths.CachedInstanceID())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", agenterrors.Wrap(agenterrors.KindIo, "reading cached instance id", err)
	}
	return string(b), nil
}

// SetInstanceID compares id to the cached value. If they differ, it writes
// the old value to previous-instance-id, creates instances/<id>/ and its
// sem/ directory, atomically swaps the instance symlink, persists the new
// cached id, and returns true. If identical, it returns false and mutates
// nothing (Invariant 2/3 of §3).
func (s *Store) SetInstanceID(id string) (isNew bool, err error) {
	cached, err := s.CachedInstanceID()
	if err != nil {
		return false, err
	}
	if cached == id {
		return false, nil
	}

	if cached != "" {
		if err := atomicfile.WriteFile([]byte(cached), s.Paths.PreviousInstanceID(), 0644); err != nil {
			return false, agenterrors.Wrap(agenterrors.KindIo, "recording previous instance id", err)
		}
	}

	if err := os.MkdirAll(s.Paths.SemDir(id), 0755); err != nil {
		return false, agenterrors.Wrap(agenterrors.KindIo, "creating instance directory", err)
	}

	if err := atomicfile.Symlink(s.Paths.InstanceDir(id), s.Paths.InstanceLink()); err != nil {
		return false, agenterrors.Wrap(agenterrors.KindIo, "swapping instance symlink", err)
	}

	if err := atomicfile.WriteFile([]byte(id), s.Paths.CachedInstanceID(), 0644); err != nil {
		return false, agenterrors.Wrap(agenterrors.KindIo, "persisting cached instance id", err)
	}

	return true, nil
}

// SaveUserData persists the raw userdata blob for the given instance.
func (s *Store) SaveUserData(instanceID string, data []byte) error {
	return s.writeInstanceFile(s.Paths.UserDataFile(instanceID), data)
}

// SaveVendorData persists the raw vendordata blob for the given instance.
func (s *Store) SaveVendorData(instanceID string, data []byte) error {
	return s.writeInstanceFile(s.Paths.VendorDataFile(instanceID), data)
}

// SaveCloudConfig persists the merged cloud-config YAML for the given
// instance.
func (s *Store) SaveCloudConfig(instanceID string, yaml []byte) error {
	return s.writeInstanceFile(s.Paths.CloudConfigFile(instanceID), yaml)
}

// SaveDatasourceName persists the name of the detected datasource driver.
func (s *Store) SaveDatasourceName(instanceID, name string) error {
	return s.writeInstanceFile(s.Paths.DatasourceFile(instanceID), []byte(name))
}

// SaveMetadata persists the datasource's metadata record for the instance.
func (s *Store) SaveMetadata(instanceID string, m Metadata) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "encoding metadata", err)
	}
	return s.writeInstanceFile(s.Paths.MetadataFile(instanceID), b)
}

// LoadMetadata reads back a previously persisted metadata record. It
// returns the zero Metadata and no error if none has been saved yet.
func (s *Store) LoadMetadata(instanceID string) (Metadata, error) {
	var m Metadata
	b, err := os.ReadFile(s.Paths.MetadataFile(instanceID))
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return m, agenterrors.Wrap(agenterrors.KindIo, "reading metadata", err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, agenterrors.Wrap(agenterrors.KindIo, "decoding metadata", err)
	}
	return m, nil
}

func (s *Store) writeInstanceFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "creating instance directory", err)
	}
	if err := atomicfile.WriteFile(data, path, 0644); err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, fmt.Sprintf("writing %q", path), err)
	}
	return nil
}

// MarkBootFinished writes the boot-finished marker for the instance.
func (s *Store) MarkBootFinished(instanceID string) error {
	body := []byte(time.Now().UTC().Format(time.RFC3339))
	return s.writeInstanceFile(s.Paths.BootFinished(instanceID), body)
}

// IsBootFinished reports whether the boot-finished marker exists.
func (s *Store) IsBootFinished(instanceID string) bool {
	_, err := os.Stat(s.Paths.BootFinished(instanceID))
	return err == nil
}

// WriteStatus rewrites the status blob.
func (s *Store) WriteStatus(st Status) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "encoding status", err)
	}
	if err := atomicfile.WriteFile(b, s.Paths.StatusFile(), 0644); err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "writing status", err)
	}
	return nil
}

// WriteResult writes the final result document.
func (s *Store) WriteResult(r Result) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "encoding result", err)
	}
	if err := atomicfile.WriteFile(b, s.Paths.ResultFile(), 0644); err != nil {
		return agenterrors.Wrap(agenterrors.KindIo, "writing result", err)
	}
	return nil
}
