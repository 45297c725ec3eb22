// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ccs08

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/luxfi/zkchannels/crypto/group"

	safemath "github.com/luxfi/zkchannels/utils/math"
)

var ErrOutOfRange = errors.New("value out of range")

// Decompose writes x in base u with exactly l digits, least significant
// first. x must be in [0, u^l).
func Decompose(x, u, l int64) ([]int64, error) {
	if u < 2 {
		return nil, ErrInvalidBase
	}
	ul, err := safemath.Pow(u, l)
	if err != nil {
		return nil, ErrRangeOverflow
	}
	if x < 0 || x >= ul {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, x, ul)
	}

	digits := make([]int64, l)
	for i := range digits {
		digits[i] = x % u
		x /= u
	}
	return digits, nil
}

func digitScalar(d int64) []fr.Element {
	return []fr.Element{group.ScalarFromInt64(d)}
}
