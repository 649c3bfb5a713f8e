// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package legacy

import (
	"fmt"
	"time"
)

// TestName identifies a test within a runner.
type TestName struct {
	RunnerID int
	TestID   int
	Name     string
	FullName string
}

// UniqueID returns the "<runnerId>-<testId>" form of n.
func (n TestName) UniqueID() string {
	return fmt.Sprintf("%d-%d", n.RunnerID, n.TestID)
}

// RunState describes whether a test can be run.
type RunState int

const (
	RunStateNotRunnable RunState = iota
	RunStateRunnable
	RunStateExplicit
	RunStateSkipped
	RunStateIgnored
)

func (s RunState) String() string {
	switch s {
	case RunStateNotRunnable:
		return "NotRunnable"
	case RunStateRunnable:
		return "Runnable"
	case RunStateExplicit:
		return "Explicit"
	case RunStateSkipped:
		return "Skipped"
	case RunStateIgnored:
		return "Ignored"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// TestInfo is the static description of a test or suite.
type TestInfo struct {
	TestName TestName
	// TestType is "Assembly", "Namespace", "TestFixture" or "TestMethod".
	TestType      string
	IsSuite       bool
	RunState      RunState
	TestCaseCount int
	ClassName     string
	MethodName    string
	Categories    []string
	// IgnoreReason is set when RunState is RunStateIgnored or
	// RunStateNotRunnable.
	IgnoreReason string
}

// ResultState is the outcome of running a test.
type ResultState int

const (
	ResultInconclusive ResultState = iota
	ResultNotRunnable
	ResultSkipped
	ResultIgnored
	ResultSuccess
	ResultFailure
	ResultError
	ResultCancelled
)

var resultStateNames = map[ResultState]string{
	ResultInconclusive: "Inconclusive",
	ResultNotRunnable:  "NotRunnable",
	ResultSkipped:      "Skipped",
	ResultIgnored:      "Ignored",
	ResultSuccess:      "Success",
	ResultFailure:      "Failure",
	ResultError:        "Error",
	ResultCancelled:    "Cancelled",
}

func (s ResultState) String() string {
	if name, ok := resultStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ResultState(%d)", int(s))
}

// Label returns the result attribute value the newer reporting protocol
// uses for s.
func (s ResultState) Label() string {
	switch s {
	case ResultSuccess:
		return "Passed"
	case ResultFailure:
		return "Failed"
	case ResultError, ResultCancelled, ResultNotRunnable:
		return "Error"
	case ResultSkipped, ResultIgnored:
		return "Skipped"
	default:
		return "Inconclusive"
	}
}

// ParseResultState parses the names returned by ResultState.String.
func ParseResultState(s string) (ResultState, bool) {
	for st, name := range resultStateNames {
		if name == s {
			return st, true
		}
	}
	return 0, false
}

// TestResult is the outcome of a test or a suite.
type TestResult struct {
	Test        *TestInfo
	State       ResultState
	Message     string
	StackTrace  string
	Time        time.Duration
	AssertCount int

	// Counts of test cases below a suite, filled in as results are
	// aggregated.
	Passed       int
	Failed       int
	Inconclusive int
	Skipped      int

	// Children holds results of child tests for suites.
	Children []*TestResult
}

// SetResult records the outcome of the test.
func (r *TestResult) SetResult(state ResultState, msg, stack string) {
	r.State = state
	r.Message = msg
	r.StackTrace = stack
}

// IsFailure reports whether the result counts as a failure for
// StopOnError.
func (r *TestResult) IsFailure() bool {
	return r.State == ResultFailure || r.State == ResultError
}
