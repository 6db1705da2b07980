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

// Package atomicfile provides temp-file-plus-rename write helpers so
// concurrent readers never observe a partially written file.
package atomicfile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Write writes content to a temporary file under outputFile's directory and
// renames it into place, creating parent directories as needed.
func Write(content []byte, outputFile string, perm fs.FileMode) error {
	dir := filepath.Dir(outputFile)
	name := filepath.Base(outputFile)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("unable to create required directories %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, name+"*")
	if err != nil {
		return fmt.Errorf("unable to create temporary file under %q: %w", dir, err)
	}

	if err := os.Chmod(tmp.Name(), perm); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("unable to set permissions on temporary file %q: %w", tmp.Name(), err)
	}

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("unable to write to temporary file %q: %w", tmp.Name(), err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	return os.Rename(tmp.Name(), outputFile)
}

// WriteFile creates parent directories if required and writes content
// directly (non-atomically) to outputFile.
func WriteFile(content []byte, outputFile string, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("unable to create required directories for %q: %w", outputFile, err)
	}
	return os.WriteFile(outputFile, content, perm)
}

// Symlink atomically replaces (or creates) a symlink at linkPath pointing
// at target: a temp-name symlink is created first, then renamed over
// linkPath so readers never observe a missing or half-updated link.
func Symlink(target, linkPath string) error {
	dir := filepath.Dir(linkPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("unable to create required directories %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(linkPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("unable to allocate temp symlink name under %q: %w", dir, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	os.Remove(tmpPath)

	if err := os.Symlink(target, tmpPath); err != nil {
		return fmt.Errorf("unable to create symlink %q -> %q: %w", tmpPath, target, err)
	}

	if err := os.Rename(tmpPath, linkPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("unable to replace symlink %q: %w", linkPath, err)
	}
	return nil
}
