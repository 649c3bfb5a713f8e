// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/google/subcommands"

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
    outcome: {state: Failure, message: boom}
  - name: Later
    ignore: not yet
`

// execute parses args into cmd's flags and executes it with a context
// logging to the returned logger.
func execute(t *testing.T, cmd subcommands.Command, args ...string) (subcommands.ExitStatus, *loggingtest.Logger) {
	t.Helper()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	cmd.SetFlags(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatalf("Failed to parse %v: %v", args, err)
	}
	logger := loggingtest.NewLogger(t, logging.LevelInfo)
	ctx := logging.AttachLogger(context.Background(), logger)
	return cmd.Execute(ctx, flags), logger
}

func TestLoadCmd(t *testing.T) {
	path := testutil.WriteManifest(t, "sample.yaml", sampleManifest)
	for _, isolation := range []string{isolationNone, isolationPipe} {
		t.Run(isolation, func(t *testing.T) {
			var stdout bytes.Buffer
			status, _ := execute(t, newLoadCmd(&stdout, nil), "-isolation="+isolation, "-runnerid=5", path)
			if status != subcommands.ExitSuccess {
				t.Fatalf("load returned %v; want %v", status, subcommands.ExitSuccess)
			}
			if out := stdout.String(); !strings.HasPrefix(out, `<test-suite type="Assembly" id="5-1000"`) {
				t.Errorf("load printed %q; want the assembly suite", out)
			}
		})
	}
}

func TestCountCmd(t *testing.T) {
	path := testutil.WriteManifest(t, "sample.yaml", sampleManifest)
	for _, tc := range []struct {
		name      string
		isolation string
		filter    string
		want      string
	}{
		{"All", isolationNone, "", "3\n"},
		{"Category", isolationNone, "<filter><cat>Fast</cat></filter>", "1\n"},
		{"Not", isolationPipe, "<filter><not><test>Sample.Fail</test></not></filter>", "2\n"},
		{"ID", isolationPipe, "<filter><id>1-1003,1-1004</id></filter>", "2\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var stdout bytes.Buffer
			status, _ := execute(t, newCountCmd(&stdout, nil), "-isolation="+tc.isolation, "-filter="+tc.filter, path)
			if status != subcommands.ExitSuccess {
				t.Fatalf("count returned %v; want %v", status, subcommands.ExitSuccess)
			}
			if diff := cmp.Diff(stdout.String(), tc.want); diff != "" {
				t.Errorf("count output mismatch (-got +want):\n%s", diff)
			}
		})
	}
}

func TestCountCmdRejectIDs(t *testing.T) {
	path := testutil.WriteManifest(t, "sample.yaml", sampleManifest)
	var stdout bytes.Buffer
	status, logger := execute(t, newCountCmd(&stdout, nil), "-isolation=none", "-idfilters=reject", "-filter=<filter><id>1-1002</id></filter>", path)
	if status != subcommands.ExitFailure {
		t.Errorf("count returned %v; want %v", status, subcommands.ExitFailure)
	}
	if logs := logger.String(); !strings.Contains(logs, "Failed to count tests") {
		t.Errorf("Logs do not report the failure:\n%s", logs)
	}
}

func TestExploreCmd(t *testing.T) {
	path := testutil.WriteManifest(t, "sample.yaml", sampleManifest)
	var stdout bytes.Buffer
	status, _ := execute(t, newExploreCmd(&stdout, nil), "-isolation=pipe", "-filter=<filter><cat>Fast</cat></filter>", path)
	if status != subcommands.ExitSuccess {
		t.Fatalf("explore returned %v; want %v", status, subcommands.ExitSuccess)
	}
	out := stdout.String()
	if !strings.Contains(out, `fullname="Sample.Pass"`) {
		t.Errorf("explore output lacks the selected test:\n%s", out)
	}
	if strings.Contains(out, `fullname="Sample.Fail"`) {
		t.Errorf("explore output contains an unselected test:\n%s", out)
	}
}

func TestRunCmd(t *testing.T) {
	path := testutil.WriteManifest(t, "sample.yaml", sampleManifest)
	color.NoColor = true

	var stdout, stderr bytes.Buffer
	cmd := newRunCmd(&stdout, &stderr, nil)
	interrupts := 0
	cmd.watch = func(ctx context.Context, onInterrupt func()) func() {
		interrupts++
		return func() {}
	}
	status, _ := execute(t, cmd, "-isolation=pipe", "-runnerid=2", "-setting=StopOnError=false", path)
	if status != subcommands.ExitSuccess {
		t.Fatalf("run returned %v; want %v", status, subcommands.ExitSuccess)
	}
	if interrupts != 1 {
		t.Errorf("run watched interrupts %d times; want 1", interrupts)
	}

	lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
	var prefixes []string
	for _, l := range lines {
		prefixes = append(prefixes, strings.SplitN(l, " ", 3)[:2]...)
	}
	wantPrefixes := []string{
		"<start-suite", `id="2-1000"`,
		"<start-suite", `id="2-1001"`,
		"<start-test", `id="2-1002"`,
		"<test-case", `id="2-1002"`,
		"<start-test", `id="2-1003"`,
		"<test-case", `id="2-1003"`,
		"<start-test", `id="2-1004"`,
		"<test-case", `id="2-1004"`,
		"<test-suite", `type="TestFixture"`,
		"<test-suite", `type="Assembly"`,
		"<test-suite", `type="Assembly"`,
	}
	if diff := cmp.Diff(prefixes, wantPrefixes); diff != "" {
		t.Errorf("run output mismatch (-got +want):\n%s", diff)
	}

	wantSummary := strings.Join([]string{
		strings.Repeat("-", 40),
		"Total        3",
		"Passed       1",
		"Failed       1",
		"Skipped      1",
		"",
	}, "\n")
	if diff := cmp.Diff(stderr.String(), wantSummary); diff != "" {
		t.Errorf("Summary mismatch (-got +want):\n%s", diff)
	}
}

func TestRunCmdMissingAssembly(t *testing.T) {
	var stdout, stderr bytes.Buffer
	status, _ := execute(t, newRunCmd(&stdout, &stderr, nil), "-isolation=none")
	if status != subcommands.ExitUsageError {
		t.Errorf("run returned %v; want %v", status, subcommands.ExitUsageError)
	}
}

func TestBadIsolation(t *testing.T) {
	path := testutil.WriteManifest(t, "sample.yaml", sampleManifest)
	var stdout bytes.Buffer
	status, logger := execute(t, newLoadCmd(&stdout, nil), "-isolation=container", path)
	if status != subcommands.ExitFailure {
		t.Errorf("load returned %v; want %v", status, subcommands.ExitFailure)
	}
	if logs := logger.String(); !strings.Contains(logs, `unknown isolation "container"`) {
		t.Errorf("Logs do not name the isolation:\n%s", logs)
	}
}

func TestSettingsFlag(t *testing.T) {
	s := make(settingsFlag)
	for _, v := range []string{"b=2", "a=x=y", "StopOnError=true"} {
		if err := s.Set(v); err != nil {
			t.Errorf("Set(%q) failed: %v", v, err)
		}
	}
	for _, v := range []string{"novalue", "=1"} {
		if err := s.Set(v); err == nil {
			t.Errorf("Set(%q) succeeded", v)
		}
	}
	if got, want := s.String(), "StopOnError=true,a=x=y,b=2"; got != want {
		t.Errorf("String() = %q; want %q", got, want)
	}
}
