// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mpc

import (
	"testing"

	"go.uber.org/goleak"
)

// Both parties of every payment run on their own goroutines; none may
// outlive its test.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
