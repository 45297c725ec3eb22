// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cl implements pairing-based blind signatures over BLS12-381 with a
// zero-knowledge proof of knowledge of a signature on hidden messages.
package cl

import (
	"errors"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/luxfi/zkchannels/crypto/group"
	"github.com/luxfi/zkchannels/crypto/pedersen"
)

var ErrEmptyKey = errors.New("key must sign at least one message")

// PublicParams are the group generators shared by signer and verifiers.
type PublicParams struct {
	G1 group.G1
	G2 group.G2
}

// Setup samples fresh generators.
func Setup(rng io.Reader) (*PublicParams, error) {
	g1, err := group.RandomG1(rng)
	if err != nil {
		return nil, err
	}
	g2, err := group.RandomG2(rng)
	if err != nil {
		return nil, err
	}
	return &PublicParams{G1: g1, G2: g2}, nil
}

func (mpk *PublicParams) Equal(o *PublicParams) bool {
	return mpk.G1.Equal(&o.G1) && mpk.G2.Equal(&o.G2)
}

// SecretKey is (x, y_1..y_n).
type SecretKey struct {
	X fr.Element
	Y []fr.Element
}

// PublicKey is the verification key (X2, Y2_1..Y2_n) in G2.
type PublicKey struct {
	X2 group.G2
	Y2 []group.G2
}

// BlindPublicKey extends PublicKey with the G1 images needed to form
// commitments that can be blindly signed.
type BlindPublicKey struct {
	X1 group.G1
	Y1 []group.G1
	X2 group.G2
	Y2 []group.G2
}

// KeyPair is a signer key pair over a fixed message length.
type KeyPair struct {
	Secret SecretKey
	Public *BlindPublicKey
}

// Generate samples a key pair signing n messages.
func Generate(rng io.Reader, mpk *PublicParams, n int) (*KeyPair, error) {
	if n < 1 {
		return nil, ErrEmptyKey
	}
	x, err := group.RandomNonZeroScalar(rng)
	if err != nil {
		return nil, err
	}
	sk := SecretKey{
		X: x,
		Y: make([]fr.Element, n),
	}
	pk := &BlindPublicKey{
		X1: group.G1Mul(&mpk.G1, &x),
		Y1: make([]group.G1, n),
		X2: group.G2Mul(&mpk.G2, &x),
		Y2: make([]group.G2, n),
	}
	for i := 0; i < n; i++ {
		y, err := group.RandomNonZeroScalar(rng)
		if err != nil {
			return nil, err
		}
		sk.Y[i] = y
		pk.Y1[i] = group.G1Mul(&mpk.G1, &y)
		pk.Y2[i] = group.G2Mul(&mpk.G2, &y)
	}
	return &KeyPair{Secret: sk, Public: pk}, nil
}

// MessageLength is the number of messages the key signs.
func (pk *BlindPublicKey) MessageLength() int {
	return len(pk.Y2)
}

// PublicKey drops the G1 components.
func (pk *BlindPublicKey) PublicKey() *PublicKey {
	return &PublicKey{X2: pk.X2, Y2: pk.Y2}
}

// ToCommitmentParams returns the commitment bases [g1, Y1_1..Y1_n]. A
// commitment under these bases can be signed with SignBlind.
func (pk *BlindPublicKey) ToCommitmentParams(mpk *PublicParams) *pedersen.CSMultiParams {
	bases := make([]group.G1, 0, len(pk.Y1)+1)
	bases = append(bases, mpk.G1)
	bases = append(bases, pk.Y1...)
	return &pedersen.CSMultiParams{PubBases: bases}
}
