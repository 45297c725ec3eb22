// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, int64(57), cfg.RangeProof.DigitBase)
}

func TestParseConfig(t *testing.T) {
	require := require.New(t)

	cfg, err := ParseConfig(nil)
	require.NoError(err)
	require.Equal(DefaultConfig(), cfg)

	cfg, err = ParseConfig([]byte(`{
		"rangeProof": {"digitBase": 16},
		"fees": {"channelFee": 5},
		"network": {"connType": "unix", "path": "/tmp/mpc.sock"},
		"store": {"sessionLeaseTimeout": 1000000000}
	}`))
	require.NoError(err)
	require.Equal(int64(16), cfg.RangeProof.DigitBase)
	require.Equal(int64(5), cfg.Fees.ChannelFee)
	require.Equal(int64(546), cfg.Fees.BalMinCust)
	require.Equal(ConnUnix, cfg.Network.ConnType)
	require.Equal(time.Second, cfg.Store.SessionLeaseTimeout)

	_, err = ParseConfig([]byte(`{`))
	require.Error(err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    error
	}{
		{
			name:   "digit base",
			modify: func(c *Config) { c.RangeProof.DigitBase = 1 },
			err:    ErrInvalidDigitBase,
		},
		{
			name:   "max balance",
			modify: func(c *Config) { c.RangeProof.MaxBalance = 2 },
			err:    ErrInvalidMaxBalance,
		},
		{
			name:   "negative dust limit",
			modify: func(c *Config) { c.Fees.BalMinCust = -1 },
			err:    ErrInvalidFees,
		},
		{
			name: "min above max fee",
			modify: func(c *Config) {
				c.Fees.MinFee = 10
				c.Fees.MaxFee = 5
			},
			err: ErrInvalidFees,
		},
		{
			name:   "unknown conn type",
			modify: func(c *Config) { c.Network.ConnType = "udp" },
			err:    ErrInvalidNetwork,
		},
		{
			name:   "unix without path",
			modify: func(c *Config) { c.Network.ConnType = ConnUnix },
			err:    ErrInvalidNetwork,
		},
		{
			name:   "unknown backend",
			modify: func(c *Config) { c.Store.Backend = "leveldb" },
			err:    ErrInvalidStore,
		},
		{
			name:   "zero lease",
			modify: func(c *Config) { c.Store.SessionLeaseTimeout = 0 },
			err:    ErrInvalidStore,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			test.modify(&cfg)
			require.ErrorIs(t, cfg.Validate(), test.err)
		})
	}
}
