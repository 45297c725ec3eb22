// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mockable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockSetAndAdvance(t *testing.T) {
	require := require.New(t)

	var clock Clock
	start := time.Unix(1_000_000, 0)
	clock.Set(start)
	require.Equal(start, clock.Time())

	clock.Advance(time.Minute)
	require.Equal(start.Add(time.Minute), clock.Time())
	require.Equal(start.Add(time.Minute).Unix(), clock.Unix())

	clock.Sync()
	require.WithinDuration(time.Now(), clock.Time(), time.Second)
}
