// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cl

import (
	"errors"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/luxfi/zkchannels/crypto/group"
	"github.com/luxfi/zkchannels/crypto/pedersen"
)

var ErrMessageLength = errors.New("message length does not match key")

// Signature is (h, H) with H = h^(x + sum y_i m_i).
type Signature struct {
	H1 group.G1
	H2 group.G1
}

func (s *Signature) Equal(o *Signature) bool {
	return s.H1.Equal(&o.H1) && s.H2.Equal(&o.H2)
}

// Sign signs msgs, which must have exactly the key's message length.
func (kp *KeyPair) Sign(rng io.Reader, mpk *PublicParams, msgs []fr.Element) (*Signature, error) {
	if len(msgs) != len(kp.Secret.Y) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrMessageLength, len(msgs), len(kp.Secret.Y))
	}
	u, err := group.RandomNonZeroScalar(rng)
	if err != nil {
		return nil, err
	}

	exp := kp.Secret.X
	for i := range msgs {
		var ym fr.Element
		ym.Mul(&kp.Secret.Y[i], &msgs[i])
		exp.Add(&exp, &ym)
	}
	h := group.G1Mul(&mpk.G1, &u)
	return &Signature{
		H1: h,
		H2: group.G1Mul(&h, &exp),
	}, nil
}

// SignBlind signs the messages hidden in com, which must have been produced
// with the bases of Public.ToCommitmentParams. The result is blinded by the
// commitment randomness and must be passed through Unblind.
func (kp *KeyPair) SignBlind(rng io.Reader, mpk *PublicParams, com *pedersen.Commitment) (*Signature, error) {
	u, err := group.RandomNonZeroScalar(rng)
	if err != nil {
		return nil, err
	}
	base := group.G1Add(&kp.Public.X1, &com.C)
	return &Signature{
		H1: group.G1Mul(&mpk.G1, &u),
		H2: group.G1Mul(&base, &u),
	}, nil
}

// Unblind removes the commitment randomness bf from a blind signature.
func Unblind(bf *fr.Element, sig *Signature) *Signature {
	ht := group.G1Mul(&sig.H1, bf)
	var h2 group.G1
	h2.Sub(&sig.H2, &ht)
	return &Signature{H1: sig.H1, H2: h2}
}

// Verify checks e(h, X2 * prod Y2_i^m_i) == e(H, g2) and h != 1.
func (pk *PublicKey) Verify(mpk *PublicParams, msgs []fr.Element, sig *Signature) bool {
	if len(msgs) != len(pk.Y2) || sig.H1.IsInfinity() {
		return false
	}
	acc := pk.X2
	for i := range msgs {
		term := group.G2Mul(&pk.Y2[i], &msgs[i])
		acc.Add(&acc, &term)
	}
	negH2 := group.G1Neg(&sig.H2)
	ok, err := group.PairingCheck(
		[]group.G1{sig.H1, negH2},
		[]group.G2{acc, mpk.G2},
	)
	return err == nil && ok
}

// Verify checks sig with the G2 part of the key.
func (pk *BlindPublicKey) Verify(mpk *PublicParams, msgs []fr.Element, sig *Signature) bool {
	return pk.PublicKey().Verify(mpk, msgs, sig)
}

// VerifyBlind unblinds sig with bf and verifies it against msgs.
func (pk *BlindPublicKey) VerifyBlind(mpk *PublicParams, msgs []fr.Element, bf *fr.Element, sig *Signature) bool {
	return pk.Verify(mpk, msgs, Unblind(bf, sig))
}
