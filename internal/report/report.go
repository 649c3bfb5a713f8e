// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package report formats V2 engine events as XML fragments of the newer
// engine's reporting protocol.
//
// Every function returns exactly one fragment. Attribute order is fixed, so
// fragments are built by hand rather than through encoding/xml.
package report

import (
	"strconv"
	"strings"

	"github.com/nunit/v2driver/internal/legacy"
)

// StartSuite formats a suite start event.
func StartSuite(n legacy.TestName) string {
	return start("start-suite", n)
}

// StartTest formats a test case start event.
func StartTest(n legacy.TestName) string {
	return start("start-test", n)
}

func start(tag string, n legacy.TestName) string {
	var sb strings.Builder
	sb.WriteString("<" + tag)
	attr(&sb, "id", n.UniqueID())
	attr(&sb, "name", n.Name)
	attr(&sb, "fullname", n.FullName)
	sb.WriteString("/>")
	return sb.String()
}

// SuiteFinished formats the result of a suite.
func SuiteFinished(r *legacy.TestResult) string {
	t := r.Test
	count := strconv.Itoa(t.TestCaseCount)

	var sb strings.Builder
	sb.WriteString("<test-suite")
	attr(&sb, "type", t.TestType)
	attr(&sb, "id", t.TestName.UniqueID())
	attr(&sb, "name", t.TestName.Name)
	attr(&sb, "fullname", t.TestName.FullName)
	attr(&sb, "runstate", "Runnable")
	attr(&sb, "testcasecount", count)
	attr(&sb, "result", ResultName(r.State))
	attr(&sb, "duration", Duration(r))
	attr(&sb, "total", count)
	attr(&sb, "passed", strconv.Itoa(r.Passed))
	attr(&sb, "failed", strconv.Itoa(r.Failed))
	attr(&sb, "inconclusive", strconv.Itoa(r.Inconclusive))
	attr(&sb, "skipped", strconv.Itoa(r.Skipped))
	attr(&sb, "asserts", strconv.Itoa(r.AssertCount))
	sb.WriteString(">")
	failure(&sb, r)
	sb.WriteString("</test-suite>")
	return sb.String()
}

// TestFinished formats the result of a test case.
func TestFinished(r *legacy.TestResult) string {
	t := r.Test

	var sb strings.Builder
	sb.WriteString("<test-case")
	attr(&sb, "id", t.TestName.UniqueID())
	attr(&sb, "name", t.TestName.Name)
	attr(&sb, "fullname", t.TestName.FullName)
	attr(&sb, "methodname", t.MethodName)
	attr(&sb, "classname", t.ClassName)
	attr(&sb, "runstate", "Runnable")
	attr(&sb, "result", ResultName(r.State))
	attr(&sb, "duration", Duration(r))
	attr(&sb, "asserts", strconv.Itoa(r.AssertCount))
	sb.WriteString(">")
	failure(&sb, r)
	sb.WriteString("</test-case>")
	return sb.String()
}

// ResultName maps a V2 result state to the result attribute of the newer
// protocol.
func ResultName(s legacy.ResultState) string {
	return s.Label()
}

// Duration renders the elapsed time of r in seconds with six decimals.
func Duration(r *legacy.TestResult) string {
	return strconv.FormatFloat(r.Time.Seconds(), 'f', 6, 64)
}

func failure(sb *strings.Builder, r *legacy.TestResult) {
	if name := ResultName(r.State); name != "Failed" && name != "Error" {
		return
	}
	sb.WriteString("<failure><message>")
	sb.WriteString(CDATA(r.Message))
	sb.WriteString("</message>")
	if r.StackTrace != "" {
		sb.WriteString("<stack-trace>")
		sb.WriteString(CDATA(r.StackTrace))
		sb.WriteString("</stack-trace>")
	}
	sb.WriteString("</failure>")
}

func attr(sb *strings.Builder, name, value string) {
	sb.WriteString(" " + name + `="`)
	sb.WriteString(Escape(value))
	sb.WriteString(`"`)
}

// NotRunnable builds the placeholder assembly suite returned when no test
// tree is available. All arguments are escaped.
func NotRunnable(id, name, fullname, reason string) string {
	return "<test-suite type='Assembly' id='" + Escape(id) +
		"' name='" + Escape(name) +
		"' fullname='" + Escape(fullname) +
		"' testcasecount='0' runstate='NotRunnable'>" +
		"<properties>" +
		"<property name='_SKIPREASON' value='" + Escape(reason) + "'/>" +
		"</properties>" +
		"</test-suite>"
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	`"`, "&quot;",
	"'", "&apos;",
	"<", "&lt;",
	">", "&gt;",
)

// Escape replaces the five XML special characters with named entities.
func Escape(s string) string {
	return escaper.Replace(s)
}

// CDATA wraps s in CDATA sections, splitting any "]]>" it contains.
func CDATA(s string) string {
	return "<![CDATA[" + strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>") + "]]>"
}
