// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/google/go-cmp/cmp"

	"github.com/nunit/v2driver/errors"
	"github.com/nunit/v2driver/internal/filter"
	"github.com/nunit/v2driver/internal/legacy"
	"github.com/nunit/v2driver/internal/logging"
	"github.com/nunit/v2driver/internal/logging/loggingtest"
	"github.com/nunit/v2driver/testutil"
)

const sampleManifest = `
suites:
- name: Sample
  tests:
  - name: Pass
    categories: [Fast]
  - name: Fail
    outcome: {state: Failure, message: boom, duration: 2s}
`

// fakeContext is an ExecutionContext returning canned values.
type fakeContext struct {
	loadResult *legacy.LoadResult
	loadErr    error
	count      int

	loadedPath string
	settings   map[string]interface{}
	filters    []*filter.Node
	cancels    []bool
	closed     bool

	// run is called by Run if set.
	run func(ctx context.Context, l legacy.EventListener) string
}

func (c *fakeContext) Load(ctx context.Context, path string, settings map[string]interface{}) (*legacy.LoadResult, error) {
	c.loadedPath = path
	c.settings = settings
	return c.loadResult, c.loadErr
}

func (c *fakeContext) CountTestCases(ctx context.Context, f *filter.Node) (int, error) {
	c.filters = append(c.filters, f)
	return c.count, nil
}

func (c *fakeContext) Explore(ctx context.Context, f *filter.Node) (string, error) {
	c.filters = append(c.filters, f)
	return "<explored/>", nil
}

func (c *fakeContext) Run(ctx context.Context, l legacy.EventListener, f *filter.Node) (string, error) {
	c.filters = append(c.filters, f)
	if c.run != nil {
		return c.run(ctx, l), nil
	}
	return "<ran/>", nil
}

func (c *fakeContext) CancelRun(ctx context.Context, force bool) error {
	c.cancels = append(c.cancels, force)
	return nil
}

func (c *fakeContext) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

// newFakeDriver returns a Driver whose execution context is ec. opened is
// set to true when the context is opened.
func newFakeDriver(t *testing.T, cfg Config, ec ExecutionContext) (d *Driver, opened *bool) {
	t.Helper()
	opened = new(bool)
	d, err := New(cfg, func(ctx context.Context, runnerID int) (ExecutionContext, error) {
		*opened = true
		return ec, nil
	})
	if err != nil {
		t.Fatal("New failed: ", err)
	}
	return d, opened
}

func newInProcessDriver(t *testing.T, cfg Config) (*Driver, string) {
	t.Helper()
	d, err := New(cfg, InProcess(fakeclock.NewFakeClock(time.Unix(0, 0))))
	if err != nil {
		t.Fatal("New failed: ", err)
	}
	path := testutil.WriteManifest(t, "sample.yaml", sampleManifest)
	if _, err := d.Load(context.Background(), path, nil); err != nil {
		t.Fatal("Load failed: ", err)
	}
	return d, path
}

func TestNewBadRunnerID(t *testing.T) {
	_, err := New(Config{RunnerID: "abc"}, nil)
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Errorf("New = %v; want ConfigurationError", err)
	}
}

func TestLoadMissingPath(t *testing.T) {
	d, opened := newFakeDriver(t, Config{RunnerID: "3"}, &fakeContext{})
	_, err := d.Load(context.Background(), filepath.Join(testutil.TempDir(t), "missing.yaml"), nil)
	var perr *PreconditionError
	if !errors.As(err, &perr) {
		t.Errorf("Load = %v; want PreconditionError", err)
	}
	if *opened {
		t.Error("Load opened the execution context for a missing path")
	}
	if s := d.State(); s != StateCreated {
		t.Errorf("State = %v; want %v", s, StateCreated)
	}
}

func TestLoadUnsetRunnerID(t *testing.T) {
	d, opened := newFakeDriver(t, Config{}, &fakeContext{})
	path := testutil.WriteManifest(t, "sample.yaml", sampleManifest)
	_, err := d.Load(context.Background(), path, nil)
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Errorf("Load = %v; want ConfigurationError", err)
	}
	if *opened {
		t.Error("Load opened the execution context without a runner id")
	}
}

func TestLoadForwardsSettings(t *testing.T) {
	ec := &fakeContext{loadResult: &legacy.LoadResult{Found: true, Tree: "<test-suite/>"}}
	d, _ := newFakeDriver(t, Config{RunnerID: "3"}, ec)
	path := testutil.WriteManifest(t, "sample.yaml", sampleManifest)
	settings := map[string]interface{}{"StopOnError": true, "WorkDirectory": "/tmp"}

	got, err := d.Load(context.Background(), path, settings)
	if err != nil {
		t.Fatal("Load failed: ", err)
	}
	if got != "<test-suite/>" {
		t.Errorf("Load = %s; want %s", got, "<test-suite/>")
	}
	if ec.loadedPath != path {
		t.Errorf("Loaded path = %s; want %s", ec.loadedPath, path)
	}
	if diff := cmp.Diff(ec.settings, settings); diff != "" {
		t.Errorf("Settings mismatch (-got +want):\n%s", diff)
	}
	if s := d.State(); s != StateLoaded {
		t.Errorf("State = %v; want %v", s, StateLoaded)
	}
}

func TestLoadDegraded(t *testing.T) {
	dir := testutil.TempDir(t)
	const name = `it's <odd> & "quoted".yaml`
	if err := testutil.WriteFiles(dir, map[string]string{name: sampleManifest}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)

	for _, tc := range []struct {
		name   string
		res    *legacy.LoadResult
		reason string
	}{
		{"NoTests", &legacy.LoadResult{Found: false}, NoTestsFoundReason},
		{"NoTree", &legacy.LoadResult{Found: true}, NoTestTreeReason},
	} {
		t.Run(tc.name, func(t *testing.T) {
			logger := loggingtest.NewLogger(t, logging.LevelInfo)
			ctx := logging.AttachLogger(context.Background(), logger)

			d, _ := newFakeDriver(t, Config{RunnerID: "5"}, &fakeContext{loadResult: tc.res})
			got, err := d.Load(ctx, path, nil)
			if err != nil {
				t.Fatal("Load failed: ", err)
			}
			escDir := strings.NewReplacer("&", "&amp;", `"`, "&quot;", "'", "&apos;", "<", "&lt;", ">", "&gt;").Replace(dir)
			want := fmt.Sprintf(`<test-suite type='Assembly' id='5-1' name='it&apos;s &lt;odd&gt; &amp; &quot;quoted&quot;.yaml' fullname='%s/it&apos;s &lt;odd&gt; &amp; &quot;quoted&quot;.yaml' testcasecount='0' runstate='NotRunnable'><properties><property name='_SKIPREASON' value='%s'/></properties></test-suite>`, escDir, tc.reason)
			if got != want {
				t.Errorf("Load =\n%s\nwant\n%s", got, want)
			}
			if len(logger.Logs()) == 0 {
				t.Error("Degraded load was not logged")
			}

			// Nothing can be explored or run.
			for _, op := range []func() (string, error){
				func() (string, error) { return d.Explore(ctx, "") },
				func() (string, error) { return d.Run(ctx, nil, "") },
			} {
				got, err := op()
				if err != nil {
					t.Fatal("Operation failed: ", err)
				}
				if !strings.Contains(got, "value='"+NotLoadedReason+"'") {
					t.Errorf("Report %s does not carry %q", got, NotLoadedReason)
				}
			}
		})
	}
}

func TestLoadEmptyAssembly(t *testing.T) {
	d, err := New(Config{RunnerID: "5"}, InProcess(fakeclock.NewFakeClock(time.Unix(0, 0))))
	if err != nil {
		t.Fatal("New failed: ", err)
	}
	path := testutil.WriteManifest(t, "empty.yaml", "")

	got, err := d.Load(context.Background(), path, nil)
	if err != nil {
		t.Fatal("Load failed: ", err)
	}
	if !strings.Contains(got, "runstate='NotRunnable'") || !strings.Contains(got, "value='"+NoTestsFoundReason+"'") {
		t.Errorf("Load = %s; want a placeholder carrying %q", got, NoTestsFoundReason)
	}
	if n, err := d.CountTestCases(context.Background(), ""); err != nil || n != 0 {
		t.Errorf("CountTestCases = (%d, %v); want (0, nil)", n, err)
	}
}

func TestNotLoadedPlaceholderID(t *testing.T) {
	for _, tc := range []struct {
		runnerID string
		want     string
	}{
		{"", "<test-suite type='Assembly' id='1' name='' fullname='' testcasecount='0' runstate='NotRunnable'><properties><property name='_SKIPREASON' value='Error loading test'/></properties></test-suite>"},
		{"9", "<test-suite type='Assembly' id='9-1' name='' fullname='' testcasecount='0' runstate='NotRunnable'><properties><property name='_SKIPREASON' value='Error loading test'/></properties></test-suite>"},
	} {
		d, opened := newFakeDriver(t, Config{RunnerID: tc.runnerID}, &fakeContext{})
		var reports reportList
		got, err := d.Run(context.Background(), &reports, "<filter><cat>A</cat></filter>")
		if err != nil {
			t.Fatalf("Run with runner id %q failed: %v", tc.runnerID, err)
		}
		if got != tc.want {
			t.Errorf("Run with runner id %q =\n%s\nwant\n%s", tc.runnerID, got, tc.want)
		}
		if len(reports) != 0 {
			t.Errorf("Run with runner id %q delivered fragments: %v", tc.runnerID, reports)
		}
		if *opened {
			t.Error("Run opened the execution context")
		}
	}
}

func TestCountTestCasesBeforeLoad(t *testing.T) {
	d, opened := newFakeDriver(t, Config{RunnerID: "1"}, &fakeContext{count: 10})
	n, err := d.CountTestCases(context.Background(), "<filter><cat>A</cat></filter>")
	if err != nil {
		t.Fatal("CountTestCases failed: ", err)
	}
	if n != 0 {
		t.Errorf("CountTestCases = %d; want 0", n)
	}
	if *opened {
		t.Error("CountTestCases opened the execution context")
	}

	// The filter is still compiled.
	if _, err := d.CountTestCases(context.Background(), "<filter><name>X</name></filter>"); !errors.Is(err, filter.ErrUnsupportedFeature) {
		t.Errorf("CountTestCases with <name> = %v; want unsupported feature", err)
	}
}

func TestFilterCompiledAndForwarded(t *testing.T) {
	ec := &fakeContext{loadResult: &legacy.LoadResult{Found: true, Tree: "<t/>"}, count: 3}
	d, _ := newFakeDriver(t, Config{RunnerID: "1"}, ec)
	path := testutil.WriteManifest(t, "sample.yaml", sampleManifest)
	ctx := context.Background()
	if _, err := d.Load(ctx, path, nil); err != nil {
		t.Fatal("Load failed: ", err)
	}

	if n, err := d.CountTestCases(ctx, "<filter><cat>A</cat></filter>"); err != nil || n != 3 {
		t.Errorf("CountTestCases = (%d, %v); want (3, nil)", n, err)
	}
	if got, err := d.Explore(ctx, "<filter><id>1-5</id></filter>"); err != nil || got != "<explored/>" {
		t.Errorf("Explore = (%s, %v); want (<explored/>, nil)", got, err)
	}
	if got, err := d.Run(ctx, nil, "<filter><not><test>T</test></not></filter>"); err != nil || got != "<ran/>" {
		t.Errorf("Run = (%s, %v); want (<ran/>, nil)", got, err)
	}

	notT := filter.Not(filter.Name("T"))
	notT.TopLevel = true
	want := []*filter.Node{filter.Category("A"), filter.ID(1, 5), notT}
	if diff := cmp.Diff(ec.filters, want); diff != "" {
		t.Errorf("Forwarded filters mismatch (-got +want):\n%s", diff)
	}

	// Filter errors abort the operation before the engine sees it.
	for _, op := range []func() error{
		func() error { _, err := d.Explore(ctx, "<bogus/>"); return err },
		func() error { _, err := d.Run(ctx, nil, "<filter><test re='1'>x</test></filter>"); return err },
	} {
		if err := op(); err == nil {
			t.Error("Operation unexpectedly succeeded with a bad filter")
		}
	}
	if len(ec.filters) != len(want) {
		t.Errorf("Engine received %d filters; want %d", len(ec.filters), len(want))
	}
}

func TestIDFilterModes(t *testing.T) {
	const doc = "<filter><id>1-1002</id></filter>"
	for _, tc := range []struct {
		mode    filter.Mode
		want    int
		wantErr bool
	}{
		{filter.TranslateIDs, 1, false},
		{filter.RejectIDs, 0, true},
	} {
		d, _ := newInProcessDriver(t, Config{RunnerID: "1", IDFilters: tc.mode})
		n, err := d.CountTestCases(context.Background(), doc)
		if tc.wantErr {
			var uerr *filter.UnsupportedFeatureError
			if !errors.As(err, &uerr) || uerr.Feature != "id" {
				t.Errorf("CountTestCases in %v mode = %v; want unsupported id", tc.mode, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("CountTestCases in %v mode failed: %v", tc.mode, err)
		} else if n != tc.want {
			t.Errorf("CountTestCases in %v mode = %d; want %d", tc.mode, n, tc.want)
		}
	}
}

func TestRunInProcess(t *testing.T) {
	d, path := newInProcessDriver(t, Config{RunnerID: "2"})
	var reports reportList
	got, err := d.Run(context.Background(), &reports, "")
	if err != nil {
		t.Fatal("Run failed: ", err)
	}

	want := []string{
		fmt.Sprintf(`<start-suite id="2-1000" name="sample.yaml" fullname="%s"/>`, path),
		`<start-suite id="2-1001" name="Sample" fullname="Sample"/>`,
		`<start-test id="2-1002" name="Pass" fullname="Sample.Pass"/>`,
		`<test-case id="2-1002" name="Pass" fullname="Sample.Pass" methodname="Pass" classname="Sample" runstate="Runnable" result="Passed" duration="0.000000" asserts="0"></test-case>`,
		`<start-test id="2-1003" name="Fail" fullname="Sample.Fail"/>`,
		`<test-case id="2-1003" name="Fail" fullname="Sample.Fail" methodname="Fail" classname="Sample" runstate="Runnable" result="Failed" duration="2.000000" asserts="0"><failure><message><![CDATA[boom]]></message></failure></test-case>`,
		`<test-suite type="TestFixture" id="2-1001" name="Sample" fullname="Sample" runstate="Runnable" testcasecount="2" result="Failed" duration="2.000000" total="2" passed="1" failed="1" inconclusive="0" skipped="0" asserts="0"><failure><message><![CDATA[One or more child tests had errors]]></message></failure></test-suite>`,
		fmt.Sprintf(`<test-suite type="Assembly" id="2-1000" name="sample.yaml" fullname="%s" runstate="Runnable" testcasecount="2" result="Failed" duration="2.000000" total="2" passed="1" failed="1" inconclusive="0" skipped="0" asserts="0"><failure><message><![CDATA[One or more child tests had errors]]></message></failure></test-suite>`, path),
	}
	if diff := cmp.Diff([]string(reports), want); diff != "" {
		t.Errorf("Fragments mismatch (-got +want):\n%s", diff)
	}
	if !strings.Contains(got, `testcasecount="2" result="Failed"`) {
		t.Errorf("Unexpected final report: %s", got)
	}
	if s := d.State(); s != StateIdle {
		t.Errorf("State = %v; want %v", s, StateIdle)
	}
}

func TestRunNoMatches(t *testing.T) {
	d, _ := newInProcessDriver(t, Config{RunnerID: "2"})
	var reports reportList
	got, err := d.Run(context.Background(), &reports, "<filter><cat>Nothing</cat></filter>")
	if err != nil {
		t.Fatal("Run failed: ", err)
	}
	if len(reports) != 0 {
		t.Errorf("Run delivered fragments: %v", reports)
	}
	if !strings.Contains(got, `testcasecount="0"`) {
		t.Errorf("Final report does not reflect the filtered subset: %s", got)
	}
}

func TestStopRun(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	ec := &fakeContext{
		loadResult: &legacy.LoadResult{Found: true, Tree: "<t/>"},
		run: func(ctx context.Context, l legacy.EventListener) string {
			close(started)
			<-release
			return "<partial/>"
		},
	}
	d, _ := newFakeDriver(t, Config{RunnerID: "1"}, ec)
	path := testutil.WriteManifest(t, "sample.yaml", sampleManifest)
	if _, err := d.Load(ctx, path, nil); err != nil {
		t.Fatal("Load failed: ", err)
	}

	// Not running: nothing is forwarded.
	if err := d.StopRun(ctx, false); err != nil {
		t.Fatal("StopRun failed: ", err)
	}
	if len(ec.cancels) != 0 {
		t.Fatal("StopRun forwarded cancellation while idle")
	}

	type result struct {
		report string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := d.Run(ctx, nil, "")
		done <- result{report, err}
	}()

	<-started
	if s := d.State(); s != StateRunning {
		t.Errorf("State while running = %v; want %v", s, StateRunning)
	}
	if err := d.StopRun(ctx, true); err != nil {
		t.Fatal("StopRun failed: ", err)
	}
	if s := d.State(); s != StateStopped {
		t.Errorf("State after StopRun = %v; want %v", s, StateStopped)
	}
	close(release)

	res := <-done
	if res.err != nil || res.report != "<partial/>" {
		t.Errorf("Run = (%s, %v); want (<partial/>, nil)", res.report, res.err)
	}
	if diff := cmp.Diff(ec.cancels, []bool{true}); diff != "" {
		t.Errorf("Cancellations mismatch (-got +want):\n%s", diff)
	}
	if s := d.State(); s != StateIdle {
		t.Errorf("State after run = %v; want %v", s, StateIdle)
	}
}

func TestClose(t *testing.T) {
	ec := &fakeContext{loadResult: &legacy.LoadResult{Found: true, Tree: "<t/>"}}
	d, _ := newFakeDriver(t, Config{RunnerID: "1"}, ec)
	path := testutil.WriteManifest(t, "sample.yaml", sampleManifest)
	ctx := context.Background()
	if _, err := d.Load(ctx, path, nil); err != nil {
		t.Fatal("Load failed: ", err)
	}
	if err := d.Close(ctx); err != nil {
		t.Fatal("Close failed: ", err)
	}
	if !ec.closed {
		t.Error("Close did not close the execution context")
	}
	got, err := d.Explore(ctx, "")
	if err != nil {
		t.Fatal("Explore failed: ", err)
	}
	if !strings.Contains(got, NotLoadedReason) {
		t.Errorf("Explore after Close = %s; want a placeholder", got)
	}
}
