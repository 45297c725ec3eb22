// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"errors"
	"math"
)

var (
	ErrOverflow  = errors.New("overflow")
	ErrUnderflow = errors.New("underflow")
	ErrNegative  = errors.New("negative operand")
)

// Add returns:
// 1) a + b
// 2) If the result does not fit in an int64, an error
func Add(a, b int64) (int64, error) {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return 0, ErrOverflow
	case b < 0 && a < math.MinInt64-b:
		return 0, ErrUnderflow
	}
	return a + b, nil
}

// Sub returns:
// 1) a - b
// 2) If the result does not fit in an int64, an error
func Sub(a, b int64) (int64, error) {
	switch {
	case b < 0 && a > math.MaxInt64+b:
		return 0, ErrOverflow
	case b > 0 && a < math.MinInt64+b:
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Mul returns a * b for non-negative operands, or an error on overflow.
func Mul(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, ErrNegative
	}
	if b != 0 && a > math.MaxInt64/b {
		return 0, ErrOverflow
	}
	return a * b, nil
}

// Pow returns base^exp for non-negative operands, or an error on overflow.
func Pow(base, exp int64) (int64, error) {
	if base < 0 || exp < 0 {
		return 0, ErrNegative
	}
	result := int64(1)
	for i := int64(0); i < exp; i++ {
		var err error
		result, err = Mul(result, base)
		if err != nil {
			return 0, err
		}
	}
	return result, nil
}
