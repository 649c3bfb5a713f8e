// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package shutil_test

import (
	"testing"

	"github.com/nunit/v2driver/shutil"
)

func TestEscape(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{``, `''`},
		{`engine`, `engine`},
		{`-rpc`, `-rpc`},
		{`/opt/tests/nunit2driver`, `/opt/tests/nunit2driver`},
		{`AZaz09@%_+=:,./-`, `AZaz09@%_+=:,./-`},
		{`my tests`, `'my tests'`},
		{"a\tb", "'a\tb'"},
		{`=x`, `'=x'`},
		{`x=`, `x=`},
		{`$HOME`, `'$HOME'`},
		{`it's`, `'it'"'"'s'`},
		{`"`, `'"'`},
	} {
		if got := shutil.Escape(tc.in); got != tc.want {
			t.Errorf("Escape(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestEscapeSlice(t *testing.T) {
	got := shutil.EscapeSlice([]string{"/tmp/my dir/nunit2driver", "engine", "-rpc"})
	if want := `'/tmp/my dir/nunit2driver' engine -rpc`; got != want {
		t.Errorf("EscapeSlice = %q; want %q", got, want)
	}
}
