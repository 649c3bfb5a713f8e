// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package legacy

// EventListener receives execution events from a Runner.
//
// Events are delivered in order on the goroutine calling Runner.Run.
// Implementations must not call back into the Runner except CancelRun.
type EventListener interface {
	// RunStarted is called once before any test is run.
	RunStarted(name string, testCount int)
	// RunFinished is called once after the run. err is non-nil if the run
	// was aborted by an unexpected engine failure.
	RunFinished(result *TestResult, err error)
	SuiteStarted(n TestName)
	SuiteFinished(r *TestResult)
	TestStarted(n TestName)
	TestFinished(r *TestResult)
}

// BaseListener is an EventListener ignoring every event. It can be embedded
// to implement a subset of the events.
type BaseListener struct{}

var _ EventListener = BaseListener{}

func (BaseListener) RunStarted(name string, testCount int)     {}
func (BaseListener) RunFinished(result *TestResult, err error) {}
func (BaseListener) SuiteStarted(n TestName)                   {}
func (BaseListener) SuiteFinished(r *TestResult)               {}
func (BaseListener) TestStarted(n TestName)                    {}
func (BaseListener) TestFinished(r *TestResult)                {}
