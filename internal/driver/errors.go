// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package driver

import (
	"github.com/nunit/v2driver/errors"
)

// PreconditionError is returned by Load when the test assembly does not
// exist. The execution context is not contacted in that case.
type PreconditionError struct {
	*errors.E
}

// ConfigurationError is returned when the runner id is unset or is not an
// integer.
type ConfigurationError struct {
	*errors.E
}
