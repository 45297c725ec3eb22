// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package group wraps the BLS12-381 pairing groups used by the signature,
// commitment and range proof packages.
package group

import (
	"errors"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// scalarEntropy is the number of random bytes reduced into a scalar. 48 bytes
// keeps the modular bias below 2^-128.
const scalarEntropy = 48

const maxNonZeroAttempts = 8

var (
	hashToScalarDST = []byte("ZKCHANNELS-V1-HASH-TO-FR")

	ErrZeroScalar = errors.New("sampled zero scalar")
)

type (
	G1 = bls12381.G1Affine
	G2 = bls12381.G2Affine
	GT = bls12381.GT
)

// RandomScalar samples a uniform element of Fr from rng.
func RandomScalar(rng io.Reader) (fr.Element, error) {
	var (
		buf [scalarEntropy]byte
		s   fr.Element
	)
	if _, err := io.ReadFull(rng, buf[:]); err != nil {
		return s, err
	}
	s.SetBytes(buf[:])
	return s, nil
}

// RandomNonZeroScalar samples a uniform element of Fr \ {0}.
func RandomNonZeroScalar(rng io.Reader) (fr.Element, error) {
	for range maxNonZeroAttempts {
		s, err := RandomScalar(rng)
		if err != nil {
			return s, err
		}
		if !s.IsZero() {
			return s, nil
		}
	}
	return fr.Element{}, ErrZeroScalar
}

// RandomScalars samples n uniform scalars.
func RandomScalars(rng io.Reader, n int) ([]fr.Element, error) {
	out := make([]fr.Element, n)
	for i := range out {
		s, err := RandomScalar(rng)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// ScalarFromInt64 maps v into Fr. Negative values map to -|v|.
func ScalarFromInt64(v int64) fr.Element {
	var s fr.Element
	s.SetInt64(v)
	return s
}

// HashToScalar hashes msg onto Fr with the package domain separation tag.
// Equal inputs map to equal scalars in every process.
func HashToScalar(msg []byte) fr.Element {
	out, err := fr.Hash(msg, hashToScalarDST, 1)
	if err != nil {
		// only reachable with an oversized DST
		panic(err)
	}
	return out[0]
}

// Generators returns the fixed generators of G1 and G2.
func Generators() (G1, G2) {
	_, _, g1, g2 := bls12381.Generators()
	return g1, g2
}

func G1Mul(p *G1, s *fr.Element) G1 {
	var (
		k   big.Int
		out G1
	)
	s.BigInt(&k)
	out.ScalarMultiplication(p, &k)
	return out
}

func G2Mul(p *G2, s *fr.Element) G2 {
	var (
		k   big.Int
		out G2
	)
	s.BigInt(&k)
	out.ScalarMultiplication(p, &k)
	return out
}

func G1Add(a, b *G1) G1 {
	var out G1
	out.Add(a, b)
	return out
}

func G2Add(a, b *G2) G2 {
	var out G2
	out.Add(a, b)
	return out
}

func G1Neg(a *G1) G1 {
	var out G1
	out.Neg(a)
	return out
}

// GTExp returns x^s.
func GTExp(x *GT, s *fr.Element) GT {
	var (
		k   big.Int
		out GT
	)
	s.BigInt(&k)
	out.Exp(*x, &k)
	return out
}

func GTMul(a, b *GT) GT {
	var out GT
	out.Mul(a, b)
	return out
}

// RandomG1 returns g1^s for a random non-zero s.
func RandomG1(rng io.Reader) (G1, error) {
	s, err := RandomNonZeroScalar(rng)
	if err != nil {
		return G1{}, err
	}
	g1, _ := Generators()
	return G1Mul(&g1, &s), nil
}

// RandomG2 returns g2^s for a random non-zero s.
func RandomG2(rng io.Reader) (G2, error) {
	s, err := RandomNonZeroScalar(rng)
	if err != nil {
		return G2{}, err
	}
	_, g2 := Generators()
	return G2Mul(&g2, &s), nil
}

// Pair computes the product of pairings e(P[i], Q[i]).
func Pair(p []G1, q []G2) (GT, error) {
	return bls12381.Pair(p, q)
}

// PairingCheck reports whether the product of e(P[i], Q[i]) is one.
func PairingCheck(p []G1, q []G2) (bool, error) {
	return bls12381.PairingCheck(p, q)
}
