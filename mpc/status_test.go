// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to ChannelStatus
		allowed  bool
	}{
		{ChannelNone, ChannelPendingOpen, true},
		{ChannelNone, ChannelOpen, false},
		{ChannelPendingOpen, ChannelOpen, true},
		{ChannelOpen, ChannelCustomerInitClose, true},
		{ChannelOpen, ChannelMerchantInitClose, true},
		{ChannelOpen, ChannelPendingClose, true},
		{ChannelOpen, ChannelConfirmedClose, false},
		{ChannelMerchantInitClose, ChannelCustomerInitClose, true},
		{ChannelCustomerInitClose, ChannelMerchantInitClose, false},
		{ChannelPendingClose, ChannelConfirmedClose, true},
		{ChannelConfirmedClose, ChannelOpen, false},
	}
	for _, test := range tests {
		t.Run(test.from.String()+"->"+test.to.String(), func(t *testing.T) {
			require := require.New(t)

			status := test.from
			err := changeChannelStatus("test", &status, test.to)
			if test.allowed {
				require.NoError(err)
				require.Equal(test.to, status)
				return
			}
			require.ErrorIs(err, ErrInvalidStatus)
			require.Equal(test.from, status)
		})
	}
}

func TestProtocolStatusTransitions(t *testing.T) {
	require := require.New(t)

	status := ProtocolNew
	require.ErrorIs(changeProtocolStatus("test", &status, ProtocolActivated), ErrInvalidStatus)
	require.NoError(changeProtocolStatus("test", &status, ProtocolInitialized))
	require.NoError(changeProtocolStatus("test", &status, ProtocolActivated))
	require.NoError(changeProtocolStatus("test", &status, ProtocolEstablished))
	require.NoError(changeProtocolStatus("test", &status, ProtocolEstablished))
	require.ErrorIs(changeProtocolStatus("test", &status, ProtocolInitialized), ErrInvalidStatus)
	require.NoError(changeProtocolStatus("test", &status, ProtocolError))
}

func TestStatusError(t *testing.T) {
	require := require.New(t)

	err := checkProtocolStatus("pay", ProtocolNew, ProtocolActivated, ProtocolEstablished)
	require.ErrorIs(err, ErrInvalidStatus)
	require.Equal("pay: invalid status: have new, want activated or established", err.Error())

	var statusErr *StatusError
	require.ErrorAs(err, &statusErr)
	require.Equal(ProtocolNew, statusErr.Have)

	require.NoError(checkChannelStatus("pay", ChannelOpen, ChannelOpen))
}
