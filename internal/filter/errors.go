// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package filter

import (
	"github.com/nunit/v2driver/errors"
)

// Messages reported to callers. They are exported so tests and callers can
// match on them.
const (
	NoFilterElementMessage      = "Invalid filter passed to NUnit V2 driver: no filter element at top level"
	NoRegularExpressionsMessage = "Filters with regular expressions are only supported when running NUnit 3 tests"
	NoIDFilterMessage           = "Filtering on id is only valid when running NUnit 3 tests"
	NoNameFilterMessage         = "Filtering on name is only valid when running NUnit 3 tests"
	NoClassFilterMessage        = "Filtering on class is only valid when running NUnit 3 tests"
	NoMethodFilterMessage       = "Filtering on method is only valid when running NUnit 3 tests"
	NoPropertyFilterMessage     = "Filtering on property value is only valid when running NUnit 3 tests"
)

var (
	// ErrSyntax is matched by errors.Is for every malformed filter document.
	ErrSyntax error = errors.New("filter syntax error")
	// ErrUnsupportedFeature is matched by errors.Is for every selector the
	// V2 engine cannot evaluate, including unknown elements.
	ErrUnsupportedFeature error = errors.New("unsupported filter feature")
)

// SyntaxError is returned when the filter document is not well-formed or is
// missing its <filter> root.
type SyntaxError struct {
	*errors.E
}

// Is reports whether target is ErrSyntax.
func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

// UnsupportedFeatureError is returned for a known selector the active
// compatibility mode cannot translate.
type UnsupportedFeatureError struct {
	*errors.E
	// Feature names the rejected selector: "regex", "id", "name", "class",
	// "method" or "prop".
	Feature string
}

// Is reports whether target is ErrUnsupportedFeature.
func (e *UnsupportedFeatureError) Is(target error) bool { return target == ErrUnsupportedFeature }

// UnrecognizedElementError is returned for an element name outside the
// filter grammar.
type UnrecognizedElementError struct {
	*errors.E
	Element string
}

// Is reports whether target is ErrUnsupportedFeature.
func (e *UnrecognizedElementError) Is(target error) bool { return target == ErrUnsupportedFeature }

func syntaxErrorf(format string, args ...interface{}) error {
	return &SyntaxError{errors.Errorf(format, args...)}
}

func unsupported(feature, msg string) error {
	return &UnsupportedFeatureError{E: errors.New(msg), Feature: feature}
}
