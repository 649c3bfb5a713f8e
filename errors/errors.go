// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package errors provides basic utilities to construct errors.
//
// To construct new errors or wrap other errors, use this package rather than
// standard libraries (errors.New, fmt.Errorf). This package records stack
// traces and chained errors, which makes driver failures reported across the
// engine boundary much easier to diagnose.
//
// To construct a new error, use New or Errorf.
//
//	errors.New("engine connection closed")
//	errors.Errorf("runner id %q is not an integer", id)
//
// To construct an error by adding context to an existing error, use Wrap or
// Wrapf.
//
//	errors.Wrap(err, "failed to load test manifest")
//	errors.Wrapf(err, "failed to count test cases in %s", path)
//
// A stack trace can be printed by formatting an error with the fmt package
// using the "%+v" verb.
package errors

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/nunit/v2driver/errors/stack"
)

// E is the error implementation used by this package.
type E struct {
	msg   string      // error message to be prepended to cause
	stk   stack.Stack // stack trace where this error was created
	cause error       // original error that caused this error if non-nil
}

// newE creates an E recording the caller of its caller.
func newE(msg string, cause error) *E {
	return &E{msg: msg, stk: stack.New(2), cause: cause}
}

// Error implements the error interface.
func (e *E) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

// Unwrap returns the error that caused e, if any.
func (e *E) Unwrap() error {
	return e.cause
}

// Format implements fmt.Formatter. The "%+v" verb prints every error of the
// chain followed by the stack where it was created; errors not created by
// this package get a "\tat ???" line instead.
func (e *E) Format(s fmt.State, verb rune) {
	if verb != 'v' || !s.Flag('+') {
		io.WriteString(s, e.Error())
		return
	}
	var err error = e
	for first := true; err != nil; first = false {
		if !first {
			io.WriteString(s, "\n")
		}
		ee, ok := err.(*E)
		if !ok {
			io.WriteString(s, err.Error()+"\n\tat ???")
			return
		}
		io.WriteString(s, ee.msg+"\n"+ee.stk.String())
		err = ee.cause
	}
}

// New creates an error with msg, recording where it was called.
func New(msg string) *E {
	return newE(msg, nil)
}

// Errorf is like New with a formatted message.
func Errorf(format string, args ...interface{}) *E {
	return newE(fmt.Sprintf(format, args...), nil)
}

// Wrap creates an error with msg that wraps cause, recording where it was
// called. A nil cause makes it equivalent to New.
func Wrap(cause error, msg string) *E {
	return newE(msg, cause)
}

// Wrapf is like Wrap with a formatted message.
func Wrapf(cause error, format string, args ...interface{}) *E {
	return newE(fmt.Sprintf(format, args...), cause)
}

// Unwrap calls the standard errors.Unwrap.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Is calls the standard errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As calls the standard errors.As.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
