// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"
	"time"

	"github.com/luxfi/metric"
	"github.com/stretchr/testify/require"
)

func gatheredNames(t *testing.T, reg metric.Registry) []string {
	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(mfs))
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	return names
}

func TestMetrics(t *testing.T) {
	require := require.New(t)

	reg := metric.NewRegistry()
	m, err := New("merchant", reg)
	require.NoError(err)

	m.MarkPaymentStarted()
	m.MarkPaymentStarted()
	m.MarkPaymentCompleted()
	m.MarkPaymentFailed("dust")
	m.MarkRevocation(true)
	m.MarkRevocation(false)
	m.MarkStaleClose()
	m.MarkChannelOpened()
	m.ObserveVerify(time.Millisecond)
	m.ObserveMPC(time.Second)

	names := gatheredNames(t, reg)
	for _, name := range []string{
		"merchant_payments_started",
		"merchant_payments_completed",
		"merchant_payments_failed",
		"merchant_revocations",
		"merchant_stale_closes",
		"merchant_channels_opened",
	} {
		require.Contains(names, name)
	}
}

func TestMPCAndVerifyDurationsAreSeparate(t *testing.T) {
	require := require.New(t)

	reg := metric.NewRegistry()
	m, err := New("merchant", reg)
	require.NoError(err)
	m.ObserveVerify(time.Millisecond)
	m.ObserveMPC(time.Second)

	impl := m.(*metricsImpl)
	require.NotSame(impl.verifyDuration, impl.mpcDuration)

	names := gatheredNames(t, reg)
	require.Contains(names, "merchant_verify_duration_count")
	require.Contains(names, "merchant_verify_duration_sum")
	require.Contains(names, "merchant_mpc_duration_count")
	require.Contains(names, "merchant_mpc_duration_sum")
}

func TestAveragerDuplicateRegistration(t *testing.T) {
	require := require.New(t)

	reg := metric.NewRegistry()
	_, err := NewAverager("merchant", "mpc_duration", "mpc time", reg)
	require.NoError(err)
	_, err = NewAverager("merchant", "mpc_duration", "mpc time", reg)
	require.Error(err)
}

func TestDuplicateRegistration(t *testing.T) {
	reg := metric.NewRegistry()
	_, err := New("merchant", reg)
	require.NoError(t, err)
	_, err = New("merchant", reg)
	require.Error(t, err)
}

func TestNoop(t *testing.T) {
	m := NewNoop()
	m.MarkPaymentStarted()
	m.MarkPaymentFailed("x")
	m.ObserveVerify(time.Second)
	m.ObserveMPC(time.Second)
}
