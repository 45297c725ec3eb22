// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidDigitBase  = errors.New("invalid range proof digit base")
	ErrInvalidMaxBalance = errors.New("invalid range proof max balance")
	ErrInvalidFees       = errors.New("invalid fee configuration")
	ErrInvalidNetwork    = errors.New("invalid network configuration")
	ErrInvalidStore      = errors.New("invalid store configuration")
)

// Connection types understood by the MPC transport.
const (
	ConnTCP      = "tcp"
	ConnUnix     = "unix"
	ConnCallback = "callback"
)

// Config holds the configuration of a channel party.
type Config struct {
	RangeProof RangeProofConfig `json:"rangeProof"`
	Fees       FeeConfig        `json:"fees"`
	Network    NetworkConfig    `json:"network"`
	Store      StoreConfig      `json:"store"`
}

// RangeProofConfig configures the balance range proofs.
type RangeProofConfig struct {
	DigitBase      int64 `json:"digitBase"`  // Default: 57
	MaxBalance     int64 `json:"maxBalance"` // upper bound of every balance
	ParallelVerify bool  `json:"parallelVerify"`
	CacheSize      int   `json:"cacheSize"`
}

// FeeConfig holds dust limits and fees, in the smallest currency unit.
type FeeConfig struct {
	BalMinCust  int64 `json:"balMinCust"`
	BalMinMerch int64 `json:"balMinMerch"`
	ValCPFP     int64 `json:"valCpfp"`
	FeeCC       int64 `json:"feeCc"`
	FeeMC       int64 `json:"feeMc"`
	MinFee      int64 `json:"minFee"`
	MaxFee      int64 `json:"maxFee"`

	// ChannelFee is charged on every bidirectional payment.
	ChannelFee int64 `json:"channelFee"`
}

// NetworkConfig locates the MPC peer.
type NetworkConfig struct {
	ConnType    string        `json:"connType"`
	DestIP      string        `json:"destIp"`
	DestPort    uint16        `json:"destPort"`
	Path        string        `json:"path"`
	DialTimeout time.Duration `json:"dialTimeout"`
}

// StoreConfig configures the merchant session store.
type StoreConfig struct {
	Backend             string        `json:"backend"`
	SessionLeaseTimeout time.Duration `json:"sessionLeaseTimeout"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() Config {
	return Config{
		RangeProof: RangeProofConfig{
			DigitBase:      57,
			MaxBalance:     1<<32 - 1,
			ParallelVerify: true,
			CacheSize:      1024,
		},
		Fees: FeeConfig{
			BalMinCust:  546,
			BalMinMerch: 546,
			ValCPFP:     1000,
			FeeCC:       1000,
			FeeMC:       1000,
			MinFee:      0,
			MaxFee:      10000,
		},
		Network: NetworkConfig{
			ConnType:    ConnTCP,
			DestIP:      "127.0.0.1",
			DestPort:    12347,
			DialTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Backend:             "memdb",
			SessionLeaseTimeout: 2 * time.Minute,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.RangeProof.DigitBase < 2 {
		return fmt.Errorf("%w: %d", ErrInvalidDigitBase, c.RangeProof.DigitBase)
	}
	if c.RangeProof.MaxBalance < 4 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxBalance, c.RangeProof.MaxBalance)
	}
	if c.RangeProof.CacheSize <= 0 {
		c.RangeProof.CacheSize = 1024
	}

	f := c.Fees
	for _, v := range []int64{f.BalMinCust, f.BalMinMerch, f.ValCPFP, f.FeeCC, f.FeeMC, f.MinFee, f.MaxFee, f.ChannelFee} {
		if v < 0 {
			return fmt.Errorf("%w: negative value", ErrInvalidFees)
		}
	}
	if f.MinFee > f.MaxFee {
		return fmt.Errorf("%w: min fee %d exceeds max fee %d", ErrInvalidFees, f.MinFee, f.MaxFee)
	}

	switch c.Network.ConnType {
	case ConnTCP:
		if c.Network.DestIP == "" || c.Network.DestPort == 0 {
			return fmt.Errorf("%w: tcp needs an address", ErrInvalidNetwork)
		}
	case ConnUnix:
		if c.Network.Path == "" {
			return fmt.Errorf("%w: unix needs a path", ErrInvalidNetwork)
		}
	case ConnCallback:
	default:
		return fmt.Errorf("%w: unknown connection type %q", ErrInvalidNetwork, c.Network.ConnType)
	}

	if c.Store.Backend != "memdb" {
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidStore, c.Store.Backend)
	}
	if c.Store.SessionLeaseTimeout <= 0 {
		return fmt.Errorf("%w: lease timeout must be positive", ErrInvalidStore)
	}
	return nil
}

// ParseConfig parses configuration from JSON bytes on top of the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(data) == 0 {
		return cfg, nil
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}
