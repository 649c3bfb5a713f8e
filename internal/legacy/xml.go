// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package legacy

import (
	"encoding/xml"
	"strconv"

	"github.com/nunit/v2driver/errors"
	"github.com/nunit/v2driver/internal/filter"
)

type xmlSuite struct {
	XMLName       xml.Name `xml:"test-suite"`
	Type          string   `xml:"type,attr"`
	ID            string   `xml:"id,attr"`
	Name          string   `xml:"name,attr"`
	FullName      string   `xml:"fullname,attr"`
	RunState      string   `xml:"runstate,attr"`
	TestCaseCount int      `xml:"testcasecount,attr"`

	// Result attributes, only set in run reports.
	Result       string `xml:"result,attr,omitempty"`
	Duration     string `xml:"duration,attr,omitempty"`
	Total        string `xml:"total,attr,omitempty"`
	Passed       string `xml:"passed,attr,omitempty"`
	Failed       string `xml:"failed,attr,omitempty"`
	Inconclusive string `xml:"inconclusive,attr,omitempty"`
	Skipped      string `xml:"skipped,attr,omitempty"`
	Asserts      string `xml:"asserts,attr,omitempty"`

	Properties *xmlProperties `xml:"properties,omitempty"`
	Reason     *xmlMessage    `xml:"reason,omitempty"`
	Failure    *xmlFailure    `xml:"failure,omitempty"`
	Suites     []*xmlSuite    `xml:"test-suite"`
	Cases      []*xmlCase     `xml:"test-case"`
}

type xmlCase struct {
	XMLName    xml.Name `xml:"test-case"`
	ID         string   `xml:"id,attr"`
	Name       string   `xml:"name,attr"`
	FullName   string   `xml:"fullname,attr"`
	MethodName string   `xml:"methodname,attr"`
	ClassName  string   `xml:"classname,attr"`
	RunState   string   `xml:"runstate,attr"`

	Result   string `xml:"result,attr,omitempty"`
	Duration string `xml:"duration,attr,omitempty"`
	Asserts  string `xml:"asserts,attr,omitempty"`

	Properties *xmlProperties `xml:"properties,omitempty"`
	Reason     *xmlMessage    `xml:"reason,omitempty"`
	Failure    *xmlFailure    `xml:"failure,omitempty"`
}

type xmlProperties struct {
	Properties []xmlProperty `xml:"property"`
}

type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlMessage struct {
	Message xmlCDATA `xml:"message"`
}

type xmlFailure struct {
	Message    xmlCDATA  `xml:"message"`
	StackTrace *xmlCDATA `xml:"stack-trace,omitempty"`
}

type xmlCDATA struct {
	Text string `xml:",cdata"`
}

func properties(info *TestInfo) *xmlProperties {
	var props []xmlProperty
	for _, c := range info.Categories {
		props = append(props, xmlProperty{Name: "Category", Value: c})
	}
	if info.IgnoreReason != "" {
		props = append(props, xmlProperty{Name: "_SKIPREASON", Value: info.IgnoreReason})
	}
	if len(props) == 0 {
		return nil
	}
	return &xmlProperties{Properties: props}
}

// describe builds the static description of n. Descendants are included
// when recursive is set, restricted to those selected by f.
func describe(n *node, recursive bool, f *filter.Node) *xmlSuite {
	s := &xmlSuite{
		Type:          n.info.TestType,
		ID:            n.info.TestName.UniqueID(),
		Name:          n.info.TestName.Name,
		FullName:      n.info.TestName.FullName,
		RunState:      n.info.RunState.String(),
		TestCaseCount: n.info.TestCaseCount,
		Properties:    properties(n.info),
	}
	if !recursive {
		return s
	}
	for _, c := range n.children {
		if !pass(f, c) {
			continue
		}
		if c.info.IsSuite {
			s.Suites = append(s.Suites, describe(c, true, f))
		} else {
			s.Cases = append(s.Cases, describeCase(c.info))
		}
	}
	return s
}

func describeCase(info *TestInfo) *xmlCase {
	return &xmlCase{
		ID:         info.TestName.UniqueID(),
		Name:       info.TestName.Name,
		FullName:   info.TestName.FullName,
		MethodName: info.MethodName,
		ClassName:  info.ClassName,
		RunState:   info.RunState.String(),
		Properties: properties(info),
	}
}

func failureOf(r *TestResult) (*xmlMessage, *xmlFailure) {
	switch r.State {
	case ResultFailure, ResultError, ResultCancelled, ResultNotRunnable:
		f := &xmlFailure{Message: xmlCDATA{r.Message}}
		if r.StackTrace != "" {
			f.StackTrace = &xmlCDATA{r.StackTrace}
		}
		return nil, f
	case ResultSkipped, ResultIgnored:
		if r.Message == "" {
			return nil, nil
		}
		return &xmlMessage{Message: xmlCDATA{r.Message}}, nil
	default:
		return nil, nil
	}
}

func seconds(r *TestResult) string {
	return strconv.FormatFloat(r.Time.Seconds(), 'f', 6, 64)
}

// describeResult builds the run report for r and its descendants.
func describeResult(r *TestResult) *xmlSuite {
	info := r.Test
	reason, failure := failureOf(r)
	s := &xmlSuite{
		Type:          info.TestType,
		ID:            info.TestName.UniqueID(),
		Name:          info.TestName.Name,
		FullName:      info.TestName.FullName,
		RunState:      info.RunState.String(),
		TestCaseCount: info.TestCaseCount,
		Result:        r.State.Label(),
		Duration:      seconds(r),
		Total:         strconv.Itoa(info.TestCaseCount),
		Passed:        strconv.Itoa(r.Passed),
		Failed:        strconv.Itoa(r.Failed),
		Inconclusive:  strconv.Itoa(r.Inconclusive),
		Skipped:       strconv.Itoa(r.Skipped),
		Asserts:       strconv.Itoa(r.AssertCount),
		Properties:    properties(info),
		Reason:        reason,
		Failure:       failure,
	}
	for _, c := range r.Children {
		if c.Test.IsSuite {
			s.Suites = append(s.Suites, describeResult(c))
			continue
		}
		reason, failure := failureOf(c)
		xc := describeCase(c.Test)
		xc.Result = c.State.Label()
		xc.Duration = seconds(c)
		xc.Asserts = strconv.Itoa(c.AssertCount)
		xc.Reason = reason
		xc.Failure = failure
		s.Cases = append(s.Cases, xc)
	}
	return s
}

func marshal(v interface{}) (string, error) {
	b, err := xml.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize report")
	}
	return string(b), nil
}
