// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package driver

import (
	"github.com/nunit/v2driver/internal/legacy"
	"github.com/nunit/v2driver/internal/report"
)

// EventAdapter converts V2 engine events into report fragments and passes
// each of them to a Listener before returning.
type EventAdapter struct {
	listener Listener
}

var _ legacy.EventListener = (*EventAdapter)(nil)

// NewEventAdapter returns an EventAdapter delivering fragments to l.
// Fragments are dropped if l is nil.
func NewEventAdapter(l Listener) *EventAdapter {
	return &EventAdapter{listener: l}
}

func (a *EventAdapter) send(fragment string) {
	if a.listener == nil {
		return
	}
	a.listener.OnTestEvent(fragment)
}

// RunStarted is ignored.
func (a *EventAdapter) RunStarted(name string, testCount int) {}

// RunFinished is ignored, including runs that ended with an error.
func (a *EventAdapter) RunFinished(result *legacy.TestResult, err error) {}

// SuiteStarted sends a start-suite fragment for n.
func (a *EventAdapter) SuiteStarted(n legacy.TestName) {
	a.send(report.StartSuite(n))
}

// SuiteFinished sends a test-suite fragment for r.
func (a *EventAdapter) SuiteFinished(r *legacy.TestResult) {
	a.send(report.SuiteFinished(r))
}

// TestStarted sends a start-test fragment for n.
func (a *EventAdapter) TestStarted(n legacy.TestName) {
	a.send(report.StartTest(n))
}

// TestFinished sends a test-case fragment for r.
func (a *EventAdapter) TestFinished(r *legacy.TestResult) {
	a.send(report.TestFinished(r))
}
