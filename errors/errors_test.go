// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package errors

import (
	"errors"
	"fmt"
	"regexp"
	"testing"
)

func check(t *testing.T, err error, msg string, traceRegexp *regexp.Regexp) {
	t.Helper()
	if s := err.Error(); s != msg {
		t.Errorf("Wrong error message %q; want %q", s, msg)
	}
	if s := fmt.Sprintf("%v", err); s != msg {
		t.Errorf("Wrong default value %q; want %q", s, msg)
	}
	if tr := fmt.Sprintf("%+v", err); !traceRegexp.MatchString(tr) {
		t.Errorf("Wrong trace %q; should match %q", tr, traceRegexp)
	}
}

func TestNew(t *testing.T) {
	const msg = "engine gone"
	traceRegexp := regexp.MustCompile(`^engine gone
	at github\.com/nunit/v2driver/errors\.TestNew \(errors_test.go:\d+\)`)

	err := New(msg)

	check(t, err, msg, traceRegexp)
}

func TestErrorf(t *testing.T) {
	const msg = "runner 42"
	traceRegexp := regexp.MustCompile(`^runner 42
	at github\.com/nunit/v2driver/errors\.TestErrorf \(errors_test.go:\d+\)`)

	err := Errorf("runner %d", 42)

	check(t, err, msg, traceRegexp)
}

func TestWrap(t *testing.T) {
	const msg = "load: no manifest"
	traceRegexp := regexp.MustCompile(`(?s)^load
	at github\.com/nunit/v2driver/errors\.TestWrap \(errors_test.go:\d+\)
.*
no manifest
	at github\.com/nunit/v2driver/errors\.TestWrap \(errors_test.go:\d+\)`)

	err := Wrap(New("no manifest"), "load")

	check(t, err, msg, traceRegexp)
}

func TestWrapForeignError(t *testing.T) {
	const msg = "load: no manifest"
	traceRegexp := regexp.MustCompile(`(?s)^load
	at github\.com/nunit/v2driver/errors\.TestWrapForeignError \(errors_test.go:\d+\)
.*
no manifest
	at \?\?\?$`)

	// Use standard errors package to create an error without trace.
	err := Wrap(errors.New("no manifest"), "load")

	check(t, err, msg, traceRegexp)
}

func TestWrapNil(t *testing.T) {
	const msg = "load"
	traceRegexp := regexp.MustCompile(`^load
	at github\.com/nunit/v2driver/errors\.TestWrapNil \(errors_test.go:\d+\)`)

	err := Wrap(nil, "load")

	check(t, err, msg, traceRegexp)
}

func TestWrapf(t *testing.T) {
	const msg = "load 3: no manifest"
	traceRegexp := regexp.MustCompile(`(?s)^load 3
	at github\.com/nunit/v2driver/errors\.TestWrapf \(errors_test.go:\d+\)
.*
no manifest
	at github\.com/nunit/v2driver/errors\.TestWrapf \(errors_test.go:\d+\)`)

	err := Wrapf(New("no manifest"), "load %d", 3)

	check(t, err, msg, traceRegexp)
}

type typedError struct {
	*E
}

func TestIsAndAs(t *testing.T) {
	base := errors.New("base")
	var err error = &typedError{Wrap(base, "typed")}
	err = Wrap(err, "outer")

	if !Is(err, base) {
		t.Errorf("Is(%v, base) = false; want true", err)
	}
	var te *typedError
	if !As(err, &te) {
		t.Fatalf("As(%v, *typedError) = false; want true", err)
	}
	if got, want := te.Error(), "typed: base"; got != want {
		t.Errorf("typedError.Error() = %q; want %q", got, want)
	}
	if got := Unwrap(te.E); got != base {
		t.Errorf("Unwrap(%v) = %v; want %v", te.E, got, base)
	}
}
