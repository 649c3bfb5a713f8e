// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package rpc

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nunit/v2driver/errors"
	"github.com/nunit/v2driver/internal/filter"
	"github.com/nunit/v2driver/internal/legacy"
)

// Filters, test descriptions and results cross the process boundary as
// google.protobuf.Struct values. The functions below convert between those
// and the Go types.

func filterToStruct(n *filter.Node) (*structpb.Struct, error) {
	return structpb.NewStruct(filterToMap(n))
}

func filterToMap(n *filter.Node) map[string]interface{} {
	if n == nil {
		n = filter.Empty()
	}
	m := map[string]interface{}{"kind": float64(n.Kind)}
	switch n.Kind {
	case filter.KindName:
		m["names"] = stringList(n.Names)
	case filter.KindCategory:
		m["categories"] = stringList(n.Categories)
	case filter.KindID:
		m["runnerId"] = float64(n.ID.RunnerID)
		m["localId"] = float64(n.ID.LocalID)
	case filter.KindAnd, filter.KindOr, filter.KindNot:
		var children []interface{}
		for _, c := range n.Children {
			children = append(children, filterToMap(c))
		}
		m["children"] = children
		m["topLevel"] = n.TopLevel
	}
	return m
}

func filterFromStruct(st *structpb.Struct) (*filter.Node, error) {
	return filterFromMap(st.AsMap())
}

func filterFromMap(m map[string]interface{}) (*filter.Node, error) {
	kind, ok := m["kind"].(float64)
	if !ok {
		return nil, errors.New("filter node without kind")
	}
	n := &filter.Node{Kind: filter.Kind(kind)}
	switch n.Kind {
	case filter.KindEmpty:
	case filter.KindName:
		n.Names = stringsOf(m["names"])
	case filter.KindCategory:
		n.Categories = stringsOf(m["categories"])
	case filter.KindID:
		n.ID = filter.TestID{RunnerID: intOf(m["runnerId"]), LocalID: intOf(m["localId"])}
	case filter.KindAnd, filter.KindOr, filter.KindNot:
		list, _ := m["children"].([]interface{})
		for _, v := range list {
			cm, ok := v.(map[string]interface{})
			if !ok {
				return nil, errors.Errorf("malformed child of %v node", n.Kind)
			}
			c, err := filterFromMap(cm)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, c)
		}
		if n.Kind == filter.KindNot && len(n.Children) != 1 {
			return nil, errors.Errorf("not node with %d children", len(n.Children))
		}
		n.TopLevel, _ = m["topLevel"].(bool)
	default:
		return nil, errors.Errorf("unknown filter kind %d", int(kind))
	}
	return n, nil
}

func testNameToMap(n legacy.TestName) map[string]interface{} {
	return map[string]interface{}{
		"runnerId": float64(n.RunnerID),
		"testId":   float64(n.TestID),
		"name":     n.Name,
		"fullName": n.FullName,
	}
}

func testNameFromMap(m map[string]interface{}) legacy.TestName {
	return legacy.TestName{
		RunnerID: intOf(m["runnerId"]),
		TestID:   intOf(m["testId"]),
		Name:     stringOf(m["name"]),
		FullName: stringOf(m["fullName"]),
	}
}

func testInfoToMap(info *legacy.TestInfo) map[string]interface{} {
	return map[string]interface{}{
		"testName":      testNameToMap(info.TestName),
		"type":          info.TestType,
		"isSuite":       info.IsSuite,
		"runState":      float64(info.RunState),
		"testCaseCount": float64(info.TestCaseCount),
		"className":     info.ClassName,
		"methodName":    info.MethodName,
		"categories":    stringList(info.Categories),
		"ignoreReason":  info.IgnoreReason,
	}
}

func testInfoFromMap(m map[string]interface{}) *legacy.TestInfo {
	name, _ := m["testName"].(map[string]interface{})
	isSuite, _ := m["isSuite"].(bool)
	return &legacy.TestInfo{
		TestName:      testNameFromMap(name),
		TestType:      stringOf(m["type"]),
		IsSuite:       isSuite,
		RunState:      legacy.RunState(intOf(m["runState"])),
		TestCaseCount: intOf(m["testCaseCount"]),
		ClassName:     stringOf(m["className"]),
		MethodName:    stringOf(m["methodName"]),
		Categories:    stringsOf(m["categories"]),
		IgnoreReason:  stringOf(m["ignoreReason"]),
	}
}

// testResultToMap converts r without its children; events never need them.
func testResultToMap(r *legacy.TestResult) map[string]interface{} {
	return map[string]interface{}{
		"test":         testInfoToMap(r.Test),
		"state":        float64(r.State),
		"message":      r.Message,
		"stackTrace":   r.StackTrace,
		"timeNanos":    float64(r.Time.Nanoseconds()),
		"asserts":      float64(r.AssertCount),
		"passed":       float64(r.Passed),
		"failed":       float64(r.Failed),
		"inconclusive": float64(r.Inconclusive),
		"skipped":      float64(r.Skipped),
	}
}

func testResultFromMap(m map[string]interface{}) *legacy.TestResult {
	info, _ := m["test"].(map[string]interface{})
	return &legacy.TestResult{
		Test:         testInfoFromMap(info),
		State:        legacy.ResultState(intOf(m["state"])),
		Message:      stringOf(m["message"]),
		StackTrace:   stringOf(m["stackTrace"]),
		Time:         time.Duration(intOf(m["timeNanos"])),
		AssertCount:  intOf(m["asserts"]),
		Passed:       intOf(m["passed"]),
		Failed:       intOf(m["failed"]),
		Inconclusive: intOf(m["inconclusive"]),
		Skipped:      intOf(m["skipped"]),
	}
}

func stringList(ss []string) []interface{} {
	if ss == nil {
		return nil
	}
	l := make([]interface{}, len(ss))
	for i, s := range ss {
		l[i] = s
	}
	return l
}

func stringsOf(v interface{}) []string {
	list, _ := v.([]interface{})
	if list == nil {
		return nil
	}
	ss := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			ss = append(ss, s)
		}
	}
	return ss
}

func stringOf(v interface{}) string {
	s, _ := v.(string)
	return s
}

func intOf(v interface{}) int {
	f, _ := v.(float64)
	return int(f)
}
