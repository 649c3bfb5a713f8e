// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package stack captures call stacks for the errors package.
package stack

import (
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// maxDepth is the number of frames kept in a Stack.
const maxDepth = 8

// ellipsis is the last line of a formatted stack that was cut at maxDepth.
const ellipsis = "\t..."

// Stack is a captured call stack, innermost frame first.
type Stack []uintptr

// New captures the stack of its caller. skip is the number of additional
// frames to omit; skip=0 makes the caller of New the innermost frame.
func New(skip int) Stack {
	var pcs [maxDepth + 1]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	return append(Stack(nil), pcs[:n]...)
}

// Frames resolves the captured program counters, up to maxDepth frames. The
// second value reports whether frames were dropped.
func (s Stack) Frames() ([]runtime.Frame, bool) {
	var frames []runtime.Frame
	it := runtime.CallersFrames(s)
	for {
		f, more := it.Next()
		frames = append(frames, f)
		if !more {
			return frames, false
		}
		if len(frames) == maxDepth {
			return frames, true
		}
	}
}

// String formats the stack with one "\tat function (file:line)" line per
// frame.
func (s Stack) String() string {
	frames, cut := s.Frames()
	var sb strings.Builder
	for i, f := range frames {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("\tat " + f.Function + " (" + filepath.Base(f.File) + ":" + strconv.Itoa(f.Line) + ")")
	}
	if cut {
		sb.WriteString("\n" + ellipsis)
	}
	return sb.String()
}
