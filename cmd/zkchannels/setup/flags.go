// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package setup

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/luxfi/zkchannels/crypto/ccs08"
)

const (
	LowerKey = "a"
	UpperKey = "b"
	BaseKey  = "base"
	SlotsKey = "slots"
	OutKey   = "out"
)

var (
	errNoOutput = errors.New("--out is required")
	errSlots    = errors.New("--slots must be at least 1")
)

func AddFlags(flags *pflag.FlagSet) {
	flags.Int64(LowerKey, 0, "Lower bound of the proven range")
	flags.Int64(UpperKey, 1<<32-1, "Upper bound of the proven range")
	flags.Int64(BaseKey, ccs08.DefaultDigitBase, "Digit base of the decomposition")
	flags.Int(SlotsKey, 4, "Number of message slots of the commitment parameters")
	flags.String(OutKey, "", "File to write the public parameters to (required)")
}

type Config struct {
	A     int64
	B     int64
	Base  int64
	Slots int
	Out   string
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	a, err := flags.GetInt64(LowerKey)
	if err != nil {
		return nil, err
	}
	b, err := flags.GetInt64(UpperKey)
	if err != nil {
		return nil, err
	}
	base, err := flags.GetInt64(BaseKey)
	if err != nil {
		return nil, err
	}
	slots, err := flags.GetInt(SlotsKey)
	if err != nil {
		return nil, err
	}
	if slots < 1 {
		return nil, errSlots
	}
	out, err := flags.GetString(OutKey)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, errNoOutput
	}

	return &Config{
		A:     a,
		B:     b,
		Base:  base,
		Slots: slots,
		Out:   out,
	}, nil
}
