// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package legacy

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/nunit/v2driver/errors"
)

// manifest is the contents of a test manifest file. A manifest plays the
// role of a compiled test assembly for the reference engine:
//
//	suites:
//	- name: Sample
//	  suites:
//	  - name: MathTests
//	    categories: [Fast]
//	    tests:
//	    - name: Add
//	    - name: Divide
//	      outcome: {state: Failure, message: "expected 2", asserts: 1}
//	    - name: Slow
//	      explicit: true
type manifest struct {
	Suites []*suiteSpec `yaml:"suites"`
}

type suiteSpec struct {
	Name       string       `yaml:"name"`
	Type       string       `yaml:"type"`
	Categories []string     `yaml:"categories"`
	Explicit   bool         `yaml:"explicit"`
	Ignore     string       `yaml:"ignore"`
	Suites     []*suiteSpec `yaml:"suites"`
	Tests      []*testSpec  `yaml:"tests"`
}

type testSpec struct {
	Name        string      `yaml:"name"`
	Categories  []string    `yaml:"categories"`
	Explicit    bool        `yaml:"explicit"`
	Ignore      string      `yaml:"ignore"`
	NotRunnable string      `yaml:"notRunnable"`
	Outcome     outcomeSpec `yaml:"outcome"`
}

// outcomeSpec scripts what happens when a test case runs.
type outcomeSpec struct {
	State      stateSpec     `yaml:"state"`
	Message    string        `yaml:"message"`
	StackTrace string        `yaml:"stackTrace"`
	Asserts    int           `yaml:"asserts"`
	Duration   time.Duration `yaml:"duration"`
	// Sleep is waited for on the runner's clock while the test runs.
	Sleep time.Duration `yaml:"sleep"`
}

// stateSpec is a ResultState written by name. The zero value means Success.
type stateSpec struct {
	state ResultState
	set   bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *stateSpec) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	st, ok := ParseResultState(name)
	if !ok {
		return errors.Errorf("unknown result state %q", name)
	}
	*s = stateSpec{state: st, set: true}
	return nil
}

func (s stateSpec) get() ResultState {
	if !s.set {
		return ResultSuccess
	}
	return s.state
}

// readManifest reads and decodes the manifest at path.
func readManifest(path string) (*manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m manifest
	// A manifest without any document declares no tests.
	if err := yaml.NewDecoder(f).Decode(&m); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "failed to decode test manifest %s", path)
	}
	return &m, nil
}

// node is a test or suite in a loaded tree.
type node struct {
	info     *TestInfo
	parent   *node
	children []*node
	outcome  *outcomeSpec // test cases only
}

func (n *node) explicit() bool {
	return n.info.RunState == RunStateExplicit
}

// buildTree converts m into a test tree rooted at an assembly suite.
// Test ids are assigned depth-first starting at firstTestID.
func buildTree(m *manifest, path string, runnerID int) *node {
	nextID := firstTestID
	newInfo := func(name, fullName, typ string, isSuite bool) *TestInfo {
		info := &TestInfo{
			TestName: TestName{
				RunnerID: runnerID,
				TestID:   nextID,
				Name:     name,
				FullName: fullName,
			},
			TestType: typ,
			IsSuite:  isSuite,
			RunState: RunStateRunnable,
		}
		nextID++
		return info
	}

	root := &node{info: newInfo(filepath.Base(path), path, "Assembly", true)}

	var addSuite func(parent *node, prefix string, s *suiteSpec)
	addSuite = func(parent *node, prefix string, s *suiteSpec) {
		fullName := s.Name
		if prefix != "" {
			fullName = prefix + "." + s.Name
		}
		typ := s.Type
		if typ == "" {
			typ = "Namespace"
			if len(s.Suites) == 0 {
				typ = "TestFixture"
			}
		}
		sn := &node{info: newInfo(s.Name, fullName, typ, true), parent: parent}
		sn.info.Categories = s.Categories
		setRunState(sn.info, s.Explicit, s.Ignore, "")
		parent.children = append(parent.children, sn)

		for _, child := range s.Suites {
			addSuite(sn, fullName, child)
		}
		for _, t := range s.Tests {
			tn := &node{
				info:    newInfo(t.Name, fullName+"."+t.Name, "TestMethod", false),
				parent:  sn,
				outcome: &t.Outcome,
			}
			tn.info.ClassName = fullName
			tn.info.MethodName = t.Name
			tn.info.Categories = t.Categories
			setRunState(tn.info, t.Explicit, t.Ignore, t.NotRunnable)
			sn.children = append(sn.children, tn)
		}
	}
	for _, s := range m.Suites {
		addSuite(root, "", s)
	}

	countTestCases(root)
	return root
}

func setRunState(info *TestInfo, explicit bool, ignore, notRunnable string) {
	switch {
	case notRunnable != "":
		info.RunState = RunStateNotRunnable
		info.IgnoreReason = notRunnable
	case ignore != "":
		info.RunState = RunStateIgnored
		info.IgnoreReason = ignore
	case explicit:
		info.RunState = RunStateExplicit
	}
}

// countTestCases fills in TestCaseCount for n and its descendants.
func countTestCases(n *node) int {
	if !n.info.IsSuite {
		n.info.TestCaseCount = 1
		return 1
	}
	total := 0
	for _, c := range n.children {
		total += countTestCases(c)
	}
	n.info.TestCaseCount = total
	return total
}
