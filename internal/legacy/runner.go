// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package legacy is a reference implementation of the V2 test engine.
//
// Test assemblies are YAML manifests describing suites and scripted test
// cases. A Runner loads one manifest, evaluates compiled filters against it
// with V2 selection semantics and runs the selected tests, firing events to
// an EventListener.
package legacy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/nunit/v2driver/errors"
	"github.com/nunit/v2driver/internal/filter"
	"github.com/nunit/v2driver/internal/logging"
)

// firstTestID is the id of the assembly suite; other tests are numbered
// depth-first after it.
const firstTestID = 1000

// SettingStopOnError is the setting that stops a run after the first failing
// test case.
const SettingStopOnError = "StopOnError"

const (
	childFailuresMessage = "One or more child tests had errors"
	cancelledMessage     = "Test run cancelled by user"
)

// LoadResult is returned by Runner.Load.
type LoadResult struct {
	// Found is false if the assembly contains no test cases.
	Found bool
	// Tree is the assembly suite, without descendants, as XML. It is empty
	// when no test tree is available.
	Tree string
}

// Runner loads and runs tests of a single assembly.
//
// Load must complete before any other method is called. Run must not be
// called concurrently with itself, CountTestCases or Explore. CancelRun may
// be called at any time from any goroutine.
type Runner struct {
	id  int
	clk clock.Clock

	mu       sync.Mutex
	root     *node
	settings map[string]interface{}

	cancelled atomic.Bool
}

// NewRunner returns a Runner whose tests carry runnerID. clk measures test
// durations; pass clock.NewClock() outside unit tests.
func NewRunner(runnerID int, clk clock.Clock) *Runner {
	return &Runner{id: runnerID, clk: clk}
}

// ID returns the runner id.
func (r *Runner) ID() int { return r.id }

// Load reads the manifest at path. settings are retained for later runs.
func (r *Runner) Load(ctx context.Context, path string, settings map[string]interface{}) (*LoadResult, error) {
	m, err := readManifest(path)
	if err != nil {
		return nil, err
	}
	root := buildTree(m, path, r.id)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings = make(map[string]interface{}, len(settings))
	for k, v := range settings {
		r.settings[k] = v
	}
	if root.info.TestCaseCount == 0 {
		logging.Debugf(ctx, "No test cases in %s", path)
		r.root = nil
		return &LoadResult{Found: false}, nil
	}
	r.root = root
	logging.Debugf(ctx, "Loaded %d test cases from %s", root.info.TestCaseCount, path)

	tree, err := marshal(describe(root, false, nil))
	if err != nil {
		return nil, err
	}
	return &LoadResult{Found: true, Tree: tree}, nil
}

func (r *Runner) loaded() (*node, map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root, r.settings
}

// CountTestCases returns the number of test cases selected by f.
// It returns 0 if nothing is loaded.
func (r *Runner) CountTestCases(ctx context.Context, f *filter.Node) (int, error) {
	root, _ := r.loaded()
	if root == nil {
		return 0, nil
	}
	return countSelected(f, root), nil
}

func countSelected(f *filter.Node, n *node) int {
	if !n.info.IsSuite {
		if pass(f, n) {
			return 1
		}
		return 0
	}
	total := 0
	for _, c := range n.children {
		total += countSelected(f, c)
	}
	return total
}

// Explore returns the XML description of the tests selected by f.
func (r *Runner) Explore(ctx context.Context, f *filter.Node) (string, error) {
	root, _ := r.loaded()
	if root == nil {
		return "", errors.New("no tests loaded")
	}
	return marshal(describe(root, true, f))
}

// Run runs the tests selected by f and returns the final report.
// Cancellation requested by CancelRun or ctx is observed between tests; the
// report then covers the tests run so far.
func (r *Runner) Run(ctx context.Context, l EventListener, f *filter.Node) (string, error) {
	root, settings := r.loaded()
	if root == nil {
		return "", errors.New("no tests loaded")
	}
	r.cancelled.Store(false)

	ex := &execution{
		ctx:         ctx,
		r:           r,
		l:           l,
		f:           f,
		stopOnError: boolSetting(settings, SettingStopOnError),
	}
	count := countSelected(f, root)
	l.RunStarted(root.info.TestName.FullName, count)

	var res *TestResult
	if count > 0 && pass(f, root) {
		res = ex.runSuite(root)
	} else {
		info := *root.info
		info.TestCaseCount = 0
		res = &TestResult{Test: &info, State: ResultInconclusive}
	}
	l.RunFinished(res, nil)

	return marshal(describeResult(res))
}

// CancelRun requests cancellation of the current run. It has no effect if
// no run is in progress. force is accepted for compatibility; the reference
// engine never aborts a test in progress.
func (r *Runner) CancelRun(ctx context.Context, force bool) error {
	logging.Debugf(ctx, "Cancellation requested (force=%t)", force)
	r.cancelled.Store(true)
	return nil
}

// Close unloads the tests.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.root = nil
	return nil
}

func boolSetting(settings map[string]interface{}, key string) bool {
	switch v := settings[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "True"
	default:
		return false
	}
}

// execution holds the state of a single Run call.
type execution struct {
	ctx         context.Context
	r           *Runner
	l           EventListener
	f           *filter.Node
	stopOnError bool
	halted      bool
}

func (ex *execution) stopped() bool {
	return ex.halted || ex.r.cancelled.Load() || ex.ctx.Err() != nil
}

func (ex *execution) runSuite(n *node) *TestResult {
	info := *n.info
	info.TestCaseCount = countSelected(ex.f, n)
	res := &TestResult{Test: &info}

	ex.l.SuiteStarted(info.TestName)
	start := ex.r.clk.Now()
	var childTime time.Duration
	interrupted := false

	switch n.info.RunState {
	case RunStateIgnored:
		res.SetResult(ResultIgnored, n.info.IgnoreReason, "")
		res.Skipped = info.TestCaseCount
	case RunStateNotRunnable:
		res.SetResult(ResultNotRunnable, n.info.IgnoreReason, "")
		res.Failed = info.TestCaseCount
	default:
		for _, c := range n.children {
			if ex.stopped() {
				interrupted = true
				break
			}
			if !pass(ex.f, c) {
				continue
			}
			var cr *TestResult
			if c.info.IsSuite {
				cr = ex.runSuite(c)
			} else {
				cr = ex.runTest(c)
			}
			res.Children = append(res.Children, cr)
			res.add(cr)
			childTime += cr.Time
		}
		res.summarize(interrupted)
	}

	res.Time = ex.r.clk.Since(start)
	if childTime > res.Time {
		res.Time = childTime
	}
	ex.l.SuiteFinished(res)
	return res
}

func (ex *execution) runTest(n *node) *TestResult {
	res := &TestResult{Test: n.info}
	ex.l.TestStarted(n.info.TestName)

	switch n.info.RunState {
	case RunStateIgnored:
		res.SetResult(ResultIgnored, n.info.IgnoreReason, "")
	case RunStateNotRunnable:
		res.SetResult(ResultNotRunnable, n.info.IgnoreReason, "")
	default:
		o := n.outcome
		start := ex.r.clk.Now()
		if o.Sleep > 0 {
			select {
			case <-ex.r.clk.After(o.Sleep):
			case <-ex.ctx.Done():
			}
		}
		res.SetResult(o.State.get(), o.Message, o.StackTrace)
		res.AssertCount = o.Asserts
		res.Time = o.Duration
		if res.Time == 0 {
			res.Time = ex.r.clk.Since(start)
		}
	}

	if ex.stopOnError && res.IsFailure() {
		ex.halted = true
	}
	ex.l.TestFinished(res)
	return res
}

// add accumulates the counts of a child result into r.
func (r *TestResult) add(c *TestResult) {
	r.AssertCount += c.AssertCount
	if c.Test.IsSuite {
		r.Passed += c.Passed
		r.Failed += c.Failed
		r.Inconclusive += c.Inconclusive
		r.Skipped += c.Skipped
		return
	}
	switch c.State {
	case ResultSuccess:
		r.Passed++
	case ResultFailure, ResultError, ResultCancelled, ResultNotRunnable:
		r.Failed++
	case ResultSkipped, ResultIgnored:
		r.Skipped++
	default:
		r.Inconclusive++
	}
}

// summarize sets the state of a suite from the counts of its children.
func (r *TestResult) summarize(interrupted bool) {
	switch {
	case r.Failed > 0:
		r.SetResult(ResultFailure, childFailuresMessage, "")
	case interrupted:
		r.SetResult(ResultCancelled, cancelledMessage, "")
	case r.Passed > 0:
		r.SetResult(ResultSuccess, "", "")
	case r.Skipped > 0 && r.Inconclusive == 0:
		r.SetResult(ResultSkipped, "", "")
	default:
		r.SetResult(ResultInconclusive, "", "")
	}
}
