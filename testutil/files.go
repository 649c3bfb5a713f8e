// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package testutil provides support code for unit tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TempDir creates a temporary directory prefixed by "v2driver_unittest_[TestName]."
// and returns its path. The directory is removed when the test finishes.
// If the directory cannot be created, a fatal error is reported to t.
func TempDir(t *testing.T) string {
	t.Helper()
	// Subtests have slashes in their name.
	name := strings.Replace(t.Name(), "/", "_", -1)
	td, err := os.MkdirTemp("", "v2driver_unittest_"+name+".")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(td) })
	return td
}

// WriteFiles creates and writes files (keys are relative filenames,
// values are contents) within dir.
func WriteFiles(dir string, files map[string]string) error {
	for fn, c := range files {
		p := filepath.Join(dir, fn)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(c), 0644); err != nil {
			return err
		}
	}
	return nil
}

// WriteManifest writes a test manifest named name into a new temporary
// directory and returns its path.
func WriteManifest(t *testing.T, name, content string) string {
	t.Helper()
	dir := TempDir(t)
	if err := WriteFiles(dir, map[string]string{name: content}); err != nil {
		t.Fatal(err)
	}
	return filepath.Join(dir, name)
}
