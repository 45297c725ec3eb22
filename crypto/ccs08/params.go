// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ccs08 implements the set-membership range proofs of Camenisch,
// Chaabouni and shelat (2008). A value is decomposed into l base-u digits and
// the prover shows knowledge of a signature on every digit, linked to a
// Pedersen commitment of the value.
package ccs08

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/luxfi/zkchannels/crypto/cl"
	"github.com/luxfi/zkchannels/crypto/group"
	"github.com/luxfi/zkchannels/crypto/pedersen"

	safemath "github.com/luxfi/zkchannels/utils/math"
)

// DefaultDigitBase is the digit base used when none is configured.
const DefaultDigitBase = 57

var (
	ErrInvalidRange    = errors.New("range lower bound exceeds upper bound")
	ErrDegenerateRange = errors.New("range upper bound is too small for a digit decomposition")
	ErrInvalidBase     = errors.New("digit base must be at least 2")
	ErrInvalidLength   = errors.New("digit count must be at least 1")
	ErrRangeOverflow   = errors.New("u^l does not fit in 63 bits")
	ErrBaseIndex       = errors.New("commitment base index out of range")
	ErrMissingDigit    = errors.New("no signature for digit")
	ErrOtherMessages   = errors.New("wrong number of other committed messages")
	ErrBadDigitSig     = errors.New("invalid digit signature")
)

// DeriveUL returns the digit count l for base u and range [a, b]: the
// smallest l >= 1 with u^l > max(b, b-a). Ranges with log2(log2(b)) <= 0 are
// rejected.
func DeriveUL(a, b, u int64) (int64, error) {
	if a > b {
		return 0, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, a, b)
	}
	if u < 2 {
		return 0, ErrInvalidBase
	}
	loglog := math.Log2(math.Log2(float64(b)))
	if !(loglog > 0) {
		return 0, fmt.Errorf("%w: b=%d", ErrDegenerateRange, b)
	}

	width, err := safemath.Sub(b, a)
	if err != nil {
		return 0, fmt.Errorf("%w: [%d, %d]", ErrRangeOverflow, a, b)
	}
	bound := max(b, width)
	l := int64(1)
	ul := u
	for ul <= bound {
		ul, err = safemath.Mul(ul, u)
		if err != nil {
			return 0, ErrRangeOverflow
		}
		l++
	}
	return l, nil
}

// ParamsUL are the public parameters of a proof that a committed value lies
// in [0, u^l).
type ParamsUL struct {
	MPK *cl.PublicParams
	// Signatures maps the decimal string of every digit in [0, u) to its
	// signature under PK.
	Signatures map[string]cl.Signature
	CSParams   *pedersen.CSMultiParams
	PK         *cl.BlindPublicKey
	U          int64
	L          int64
}

// SecretParamsUL keeps the digit signing key next to the public parameters.
type SecretParamsUL struct {
	Pub *ParamsUL
	KP  *cl.KeyPair
}

// SetupUL signs every digit in [0, u) with a fresh single-message key.
func SetupUL(rng io.Reader, u, l int64, cs *pedersen.CSMultiParams) (*SecretParamsUL, error) {
	switch {
	case u < 2:
		return nil, ErrInvalidBase
	case l < 1:
		return nil, ErrInvalidLength
	}
	if _, err := safemath.Pow(u, l); err != nil {
		return nil, ErrRangeOverflow
	}
	if len(cs.PubBases) < 2 {
		return nil, pedersen.ErrNoBases
	}

	mpk, err := cl.Setup(rng)
	if err != nil {
		return nil, err
	}
	kp, err := cl.Generate(rng, mpk, 1)
	if err != nil {
		return nil, err
	}
	signatures := make(map[string]cl.Signature, u)
	for i := int64(0); i < u; i++ {
		digit := digitScalar(i)
		sig, err := kp.Sign(rng, mpk, digit)
		if err != nil {
			return nil, err
		}
		signatures[strconv.FormatInt(i, 10)] = *sig
	}
	return &SecretParamsUL{
		Pub: &ParamsUL{
			MPK:        mpk,
			Signatures: signatures,
			CSParams:   cs,
			PK:         kp.Public,
			U:          u,
			L:          l,
		},
		KP: kp,
	}, nil
}

// RPPublicParams are the public parameters of a proof that a committed value
// lies in [A, B].
type RPPublicParams struct {
	P *ParamsUL
	A int64
	B int64
}

// RPSecretParams is the output of a trusted setup. Only Pub is distributed.
type RPSecretParams struct {
	Pub *RPPublicParams
	P   *SecretParamsUL
}

// Setup runs the trusted setup for [a, b] with DefaultDigitBase.
func Setup(rng io.Reader, a, b int64, cs *pedersen.CSMultiParams) (*RPSecretParams, error) {
	return SetupWithBase(rng, a, b, DefaultDigitBase, cs)
}

// SetupWithBase runs the trusted setup for [a, b] with digit base u.
func SetupWithBase(rng io.Reader, a, b, u int64, cs *pedersen.CSMultiParams) (*RPSecretParams, error) {
	l, err := DeriveUL(a, b, u)
	if err != nil {
		return nil, err
	}
	sp, err := SetupUL(rng, u, l, cs)
	if err != nil {
		return nil, err
	}
	return &RPSecretParams{
		Pub: &RPPublicParams{
			P: sp.Pub,
			A: a,
			B: b,
		},
		P: sp,
	}, nil
}

// VerifyDigitSignatures checks the signature on every digit in [0, u). Each
// signature is blinded with fresh randomness and checked through the blind
// verification path.
func (p *ParamsUL) VerifyDigitSignatures(rng io.Reader) error {
	for i := int64(0); i < p.U; i++ {
		sig, ok := p.Signatures[strconv.FormatInt(i, 10)]
		if !ok {
			return fmt.Errorf("%w: %d", ErrMissingDigit, i)
		}
		bf, err := group.RandomScalar(rng)
		if err != nil {
			return err
		}
		shift := group.G1Mul(&sig.H1, &bf)
		blinded := &cl.Signature{
			H1: sig.H1,
			H2: group.G1Add(&sig.H2, &shift),
		}
		if !p.PK.VerifyBlind(p.MPK, digitScalar(i), &bf, blinded) {
			return fmt.Errorf("%w: %d", ErrBadDigitSig, i)
		}
	}
	return nil
}

// ULBound returns u^l.
func (p *ParamsUL) ULBound() int64 {
	ul, _ := safemath.Pow(p.U, p.L)
	return ul
}

func (p *ParamsUL) checkBaseIndex(k int) error {
	if k < 1 || k >= len(p.CSParams.PubBases) {
		return fmt.Errorf("%w: %d", ErrBaseIndex, k)
	}
	return nil
}

// otherIndices lists the commitment bases other than H and k, in order.
func (p *ParamsUL) otherIndices(k int) []int {
	out := make([]int, 0, len(p.CSParams.PubBases)-2)
	for i := 1; i < len(p.CSParams.PubBases); i++ {
		if i != k {
			out = append(out, i)
		}
	}
	return out
}
