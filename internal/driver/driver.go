// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package driver adapts the V2 test engine to the reporting protocol of the
// newer test engine.
//
// A Driver loads one test assembly into an execution context, compiles
// filter documents for it and translates engine events into XML fragments
// delivered to a Listener.
package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"code.cloudfoundry.org/clock"

	"github.com/nunit/v2driver/errors"
	"github.com/nunit/v2driver/internal/filter"
	"github.com/nunit/v2driver/internal/legacy"
	"github.com/nunit/v2driver/internal/logging"
	"github.com/nunit/v2driver/internal/report"
)

// Skip reasons of placeholder reports.
const (
	NoTestsFoundReason = "No tests were found"
	NoTestTreeReason   = "Test tree could not be loaded"
	NotLoadedReason    = "Error loading test"
)

// Listener receives report fragments while tests run.
//
// OnTestEvent is called synchronously, in event order, on the goroutine
// running the tests. It must not block for long and must not call back into
// the Driver other than StopRun.
type Listener interface {
	OnTestEvent(report string)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(report string)

// OnTestEvent calls f(report).
func (f ListenerFunc) OnTestEvent(report string) { f(report) }

// ExecutionContext is the isolated environment running the V2 engine.
// *legacy.Runner implements it in-process; rpc.Client implements it across
// a process boundary.
type ExecutionContext interface {
	Load(ctx context.Context, path string, settings map[string]interface{}) (*legacy.LoadResult, error)
	CountTestCases(ctx context.Context, f *filter.Node) (int, error)
	Explore(ctx context.Context, f *filter.Node) (string, error)
	Run(ctx context.Context, l legacy.EventListener, f *filter.Node) (string, error)
	CancelRun(ctx context.Context, force bool) error
	Close(ctx context.Context) error
}

// OpenFunc opens an execution context for runnerID.
type OpenFunc func(ctx context.Context, runnerID int) (ExecutionContext, error)

// InProcess returns an OpenFunc running the engine in the calling process.
func InProcess(clk clock.Clock) OpenFunc {
	return func(ctx context.Context, runnerID int) (ExecutionContext, error) {
		return legacy.NewRunner(runnerID, clk), nil
	}
}

// Config holds the parameters fixed for the lifetime of a Driver.
type Config struct {
	// RunnerID is the decimal integer id of the runner. It prefixes every
	// test id the engine reports. It may be empty, but must then not be
	// needed to open the execution context.
	RunnerID string
	// IDFilters selects how <id> filter elements are handled.
	IDFilters filter.Mode
}

// State is the lifecycle state of a Driver.
type State int

const (
	// StateCreated is the state before Load.
	StateCreated State = iota
	// StateLoaded is the state after Load, before any run.
	StateLoaded
	// StateIdle is the state between runs.
	StateIdle
	// StateRunning is the state while Run is in progress.
	StateRunning
	// StateStopped is the state after StopRun until Run returns.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateLoaded:
		return "Loaded"
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Driver is a framework driver for V2 test assemblies.
//
// Only one Run may be in progress at a time, and CountTestCases and Explore
// must not be called while it is. StopRun may be called from any goroutine.
type Driver struct {
	cfg      Config
	runnerID int
	hasID    bool
	compiler *filter.Compiler
	open     OpenFunc

	mu       sync.Mutex
	state    State
	ec       ExecutionContext
	name     string // base name of the loaded assembly
	fullName string // path of the loaded assembly
	hasTree  bool
}

// New validates cfg and returns a Driver. The execution context is opened
// with open when Load first needs it.
func New(cfg Config, open OpenFunc) (*Driver, error) {
	d := &Driver{
		cfg:      cfg,
		compiler: filter.NewCompiler(cfg.IDFilters),
		open:     open,
	}
	if cfg.RunnerID != "" {
		id, err := strconv.Atoi(cfg.RunnerID)
		if err != nil {
			return nil, &ConfigurationError{errors.Wrapf(err, "runner id %q is not an integer", cfg.RunnerID)}
		}
		d.runnerID = id
		d.hasID = true
	}
	return d, nil
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) setState(ctx context.Context, s State) {
	d.mu.Lock()
	prev := d.state
	d.state = s
	d.mu.Unlock()
	if prev != s {
		logging.Debugf(ctx, "Driver state %v -> %v", prev, s)
	}
}

// placeholderID is the id of the placeholder assembly suite.
func (d *Driver) placeholderID() string {
	if d.cfg.RunnerID == "" {
		return "1"
	}
	return d.cfg.RunnerID + "-1"
}

func (d *Driver) placeholder(reason string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return report.NotRunnable(d.placeholderID(), d.name, d.fullName, reason)
}

// execContext returns the execution context, opening it if needed.
func (d *Driver) execContext(ctx context.Context) (ExecutionContext, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ec != nil {
		return d.ec, nil
	}
	if !d.hasID {
		return nil, &ConfigurationError{errors.New("runner id must be set before tests are loaded")}
	}
	ec, err := d.open(ctx, d.runnerID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open execution context for runner %d", d.runnerID)
	}
	d.ec = ec
	return ec, nil
}

// loaded returns the execution context if a test tree is loaded.
func (d *Driver) loaded() (ExecutionContext, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ec, d.ec != nil && d.hasTree
}

// Load loads the test assembly at path, passing settings to the engine
// untouched. It returns the XML of the assembly suite, or a NotRunnable
// placeholder if the assembly has no tests.
func (d *Driver) Load(ctx context.Context, path string, settings map[string]interface{}) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", &PreconditionError{errors.Wrapf(err, "test assembly %s does not exist", path)}
	}

	ec, err := d.execContext(ctx)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	d.name = filepath.Base(path)
	d.fullName = path
	d.hasTree = false
	d.mu.Unlock()

	res, err := ec.Load(ctx, path, settings)
	if err != nil {
		return "", errors.Wrapf(err, "failed to load %s", path)
	}
	d.setState(ctx, StateLoaded)

	if !res.Found {
		logging.Infof(ctx, "No tests were found in %s", path)
		return d.placeholder(NoTestsFoundReason), nil
	}
	if res.Tree == "" {
		logging.Infof(ctx, "Test tree of %s could not be loaded", path)
		return d.placeholder(NoTestTreeReason), nil
	}

	d.mu.Lock()
	d.hasTree = true
	d.mu.Unlock()
	return res.Tree, nil
}

// CountTestCases returns the number of test cases selected by filterXML.
// It returns 0 if nothing has been loaded.
func (d *Driver) CountTestCases(ctx context.Context, filterXML string) (int, error) {
	f, err := d.compiler.Compile(filterXML)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	ec := d.ec
	d.mu.Unlock()
	if ec == nil {
		return 0, nil
	}
	return ec.CountTestCases(ctx, f)
}

// Explore returns the static description of the tests selected by
// filterXML.
func (d *Driver) Explore(ctx context.Context, filterXML string) (string, error) {
	ec, ok := d.loaded()
	if !ok {
		return d.placeholder(NotLoadedReason), nil
	}
	f, err := d.compiler.Compile(filterXML)
	if err != nil {
		return "", err
	}
	logging.Debugf(ctx, "Exploring with filter %v", f)
	return ec.Explore(ctx, f)
}

// Run runs the tests selected by filterXML, passing a fragment to l for
// every engine event, and returns the final report.
func (d *Driver) Run(ctx context.Context, l Listener, filterXML string) (string, error) {
	ec, ok := d.loaded()
	if !ok {
		return d.placeholder(NotLoadedReason), nil
	}
	f, err := d.compiler.Compile(filterXML)
	if err != nil {
		return "", err
	}
	logging.Debugf(ctx, "Running with filter %v", f)

	d.setState(ctx, StateRunning)
	defer d.setState(ctx, StateIdle)
	return ec.Run(ctx, NewEventAdapter(l), f)
}

// StopRun requests cancellation of the run in progress. Tests already
// started are not interrupted. It does nothing if no run is in progress.
func (d *Driver) StopRun(ctx context.Context, force bool) error {
	d.mu.Lock()
	if d.state != StateRunning && d.state != StateStopped {
		d.mu.Unlock()
		logging.Debug(ctx, "StopRun ignored: no run in progress")
		return nil
	}
	d.state = StateStopped
	ec := d.ec
	d.mu.Unlock()

	logging.Debugf(ctx, "Stopping run (force=%t)", force)
	return ec.CancelRun(ctx, force)
}

// Close releases the execution context.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	ec := d.ec
	d.ec = nil
	d.hasTree = false
	d.mu.Unlock()

	d.setState(ctx, StateCreated)
	if ec == nil {
		return nil
	}
	return ec.Close(ctx)
}
