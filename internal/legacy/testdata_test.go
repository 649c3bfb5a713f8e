// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package legacy

import (
	"testing"

	"gopkg.in/yaml.v2"
)

const testRunnerID = 7

// sampleManifest yields these test ids:
//
//	1000 tests.yaml (Assembly)
//	1001 Sample
//	1002 Sample.MathTests [Fast]
//	1003   Add
//	1004   Divide (fails)
//	1005   Slow (explicit)
//	1006 Sample.DbTests [Db]
//	1007   Insert [Write]
//	1008   Legacy (ignored)
const sampleManifest = `
suites:
- name: Sample
  suites:
  - name: MathTests
    categories: [Fast]
    tests:
    - name: Add
      outcome: {asserts: 1}
    - name: Divide
      outcome:
        state: Failure
        message: expected 2 but was 3
        stackTrace: at Sample.MathTests.Divide()
        asserts: 1
        duration: 1500ms
    - name: Slow
      explicit: true
  - name: DbTests
    categories: [Db]
    tests:
    - name: Insert
      categories: [Write]
      outcome: {asserts: 2, duration: 250ms}
    - name: Legacy
      ignore: not supported
`

// loadTree builds a test tree from manifest text without touching the
// file system.
func loadTree(t *testing.T, text string) *node {
	t.Helper()
	var m manifest
	if err := yaml.Unmarshal([]byte(text), &m); err != nil {
		t.Fatal("Failed to decode manifest: ", err)
	}
	return buildTree(&m, "/tests/tests.yaml", testRunnerID)
}

// findNode returns the node whose full name is fullName.
func findNode(t *testing.T, root *node, fullName string) *node {
	t.Helper()
	var found *node
	var walk func(n *node)
	walk = func(n *node) {
		if n.info.TestName.FullName == fullName {
			found = n
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(root)
	if found == nil {
		t.Fatalf("No test named %q", fullName)
	}
	return found
}
