// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"code.cloudfoundry.org/clock"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/nunit/v2driver/errors"
	"github.com/nunit/v2driver/internal/driver"
	"github.com/nunit/v2driver/internal/filter"
	"github.com/nunit/v2driver/internal/rpc"
)

// Values of the -isolation flag.
const (
	isolationProcess = "process" // engine in a child process
	isolationPipe    = "pipe"    // engine behind gRPC in this process
	isolationNone    = "none"    // engine called directly
)

// settingsFlag is a repeatable flag.Value collecting key=value settings.
type settingsFlag map[string]interface{}

func (s settingsFlag) String() string {
	keys := maps.Keys(s)
	slices.Sort(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, k+"="+s[k].(string))
	}
	return strings.Join(parts, ",")
}

func (s settingsFlag) Set(v string) error {
	key, val, ok := strings.Cut(v, "=")
	if !ok || key == "" {
		return errors.Errorf("setting %q is not of the form key=value", v)
	}
	s[key] = val
	return nil
}

// driverFlags holds the flags shared by the commands that drive an
// assembly.
type driverFlags struct {
	runnerID  string
	idFilters string
	isolation string
	filter    string
	settings  settingsFlag

	verbose *bool // global -verbose flag, passed to engine processes
}

func newDriverFlags(verbose *bool) *driverFlags {
	return &driverFlags{settings: make(settingsFlag), verbose: verbose}
}

func (df *driverFlags) SetFlags(f *flag.FlagSet) {
	f.StringVar(&df.runnerID, "runnerid", "1", "id of the runner, prefixed to test ids")
	f.StringVar(&df.idFilters, "idfilters", filter.TranslateIDs.String(), `handling of <id> filter elements ("translate" or "reject")`)
	f.StringVar(&df.isolation, "isolation", isolationProcess, `where the engine runs ("process", "pipe" or "none")`)
	f.StringVar(&df.filter, "filter", "", "XML filter document selecting tests")
	f.Var(df.settings, "setting", "engine setting as key=value; may be repeated")
}

// openFunc returns the OpenFunc selected by -isolation.
func (df *driverFlags) openFunc() (driver.OpenFunc, error) {
	inProcess := driver.InProcess(clock.NewClock())
	switch df.isolation {
	case isolationNone:
		return inProcess, nil
	case isolationPipe:
		return rpc.Isolated(inProcess), nil
	case isolationProcess:
		exe, err := os.Executable()
		if err != nil {
			return nil, errors.Wrap(err, "failed to locate executable")
		}
		var args []string
		if df.verbose != nil && *df.verbose {
			args = append(args, "-verbose")
		}
		return rpc.Exec(exe, append(args, "engine", "-rpc")...), nil
	default:
		return nil, errors.Errorf("unknown isolation %q", df.isolation)
	}
}

// newDriver creates a Driver from the flags.
func (df *driverFlags) newDriver() (*driver.Driver, error) {
	mode, err := filter.ParseMode(df.idFilters)
	if err != nil {
		return nil, err
	}
	open, err := df.openFunc()
	if err != nil {
		return nil, err
	}
	return driver.New(driver.Config{RunnerID: df.runnerID, IDFilters: mode}, open)
}

// load creates a Driver and loads the assembly at path into it. On success,
// the caller must close the returned Driver.
func (df *driverFlags) load(ctx context.Context, path string) (*driver.Driver, string, error) {
	d, err := df.newDriver()
	if err != nil {
		return nil, "", err
	}
	tree, err := d.Load(ctx, path, df.settings)
	if err != nil {
		d.Close(ctx)
		return nil, "", err
	}
	return d, tree, nil
}
