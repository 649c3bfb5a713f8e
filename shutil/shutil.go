// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil quotes command lines for display, so logged engine command
// lines can be pasted into a POSIX shell.
package shutil

import "strings"

// safe reports whether c can appear unquoted in a shell word. '=' is only
// safe after the first byte; a leading '=' triggers expansion in zsh.
func safe(c byte, first bool) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '=':
		return !first
	}
	return strings.IndexByte("-_@%+:,./", c) >= 0
}

// Escape returns s quoted for a shell if it needs quoting, and s otherwise.
func Escape(s string) string {
	needsQuote := s == ""
	for i := 0; i < len(s) && !needsQuote; i++ {
		needsQuote = !safe(s[i], i == 0)
	}
	if !needsQuote {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// EscapeSlice escapes each of args and joins them with spaces.
func EscapeSlice(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = Escape(a)
	}
	return strings.Join(quoted, " ")
}
