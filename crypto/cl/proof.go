// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cl

import (
	"errors"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/luxfi/zkchannels/crypto/group"
)

var ErrBlindingCount = errors.New("blinding count does not match key")

// ProofState is the prover side of a proof of knowledge of a signature.
// V is the rerandomized signature that is sent to the verifier.
type ProofState struct {
	V  Signature
	T  []fr.Element
	TT fr.Element
	A  group.GT

	v fr.Element
}

// SignatureProof is the response of a proof of knowledge of a signature.
type SignatureProof struct {
	Zsig []fr.Element
	Zv   fr.Element
	A    group.GT
}

// ProveCommitment rerandomizes sig and commits to fresh blindings. t and tt
// fix the blindings when non-nil; a zero t[j] marks message j as disclosed
// to the verifier.
func (pk *BlindPublicKey) ProveCommitment(rng io.Reader, mpk *PublicParams, sig *Signature, t []fr.Element, tt *fr.Element) (*ProofState, error) {
	n := len(pk.Y2)
	if t != nil && len(t) != n {
		return nil, ErrBlindingCount
	}

	r, err := group.RandomNonZeroScalar(rng)
	if err != nil {
		return nil, err
	}
	v, err := group.RandomScalar(rng)
	if err != nil {
		return nil, err
	}

	// h' = h^r, H' = (H * h^v)^r
	hv := group.G1Mul(&sig.H1, &v)
	hv.Add(&hv, &sig.H2)
	blindSig := Signature{
		H1: group.G1Mul(&sig.H1, &r),
		H2: group.G1Mul(&hv, &r),
	}

	if t == nil {
		t, err = group.RandomScalars(rng, n)
		if err != nil {
			return nil, err
		}
	}
	var ttVal fr.Element
	if tt != nil {
		ttVal = *tt
	} else {
		ttVal, err = group.RandomScalar(rng)
		if err != nil {
			return nil, err
		}
	}

	// a = e(h', g2^tt * prod Y2_j^t_j)
	acc := group.G2Mul(&mpk.G2, &ttVal)
	for j := range t {
		term := group.G2Mul(&pk.Y2[j], &t[j])
		acc.Add(&acc, &term)
	}
	a, err := group.Pair([]group.G1{blindSig.H1}, []group.G2{acc})
	if err != nil {
		return nil, err
	}
	return &ProofState{
		V:  blindSig,
		T:  t,
		TT: ttVal,
		A:  a,
		v:  v,
	}, nil
}

// ProveResponse computes zsig_j = t_j + c*m_j and zv = tt + c*v.
func (pk *BlindPublicKey) ProveResponse(ps *ProofState, c *fr.Element, msgs []fr.Element) (*SignatureProof, error) {
	if len(msgs) != len(ps.T) {
		return nil, ErrMessageLength
	}
	zsig := make([]fr.Element, len(msgs))
	for j := range msgs {
		zsig[j].Mul(c, &msgs[j]).Add(&zsig[j], &ps.T[j])
	}
	var zv fr.Element
	zv.Mul(c, &ps.v).Add(&zv, &ps.TT)
	return &SignatureProof{
		Zsig: zsig,
		Zv:   zv,
		A:    ps.A,
	}, nil
}

// VerifyProof checks
//
//	e(h', g2^zv * prod Y2_j^zsig_j) == a * e(H', g2)^c * e(h', X2)^-c
//
// for the rerandomized signature V.
func (pk *PublicKey) VerifyProof(mpk *PublicParams, V *Signature, proof *SignatureProof, c *fr.Element) bool {
	if len(proof.Zsig) != len(pk.Y2) || V.H1.IsInfinity() {
		return false
	}

	acc := group.G2Mul(&mpk.G2, &proof.Zv)
	for j := range proof.Zsig {
		term := group.G2Mul(&pk.Y2[j], &proof.Zsig[j])
		acc.Add(&acc, &term)
	}
	lhs, err := group.Pair([]group.G1{V.H1}, []group.G2{acc})
	if err != nil {
		return false
	}

	var negC fr.Element
	negC.Neg(c)
	cH := group.G1Mul(&V.H2, c)
	negCh := group.G1Mul(&V.H1, &negC)
	rhs, err := group.Pair(
		[]group.G1{cH, negCh},
		[]group.G2{mpk.G2, pk.X2},
	)
	if err != nil {
		return false
	}
	rhs.Mul(&rhs, &proof.A)
	return lhs.Equal(&rhs)
}

// VerifyProof checks the proof with the G2 part of the key.
func (pk *BlindPublicKey) VerifyProof(mpk *PublicParams, V *Signature, proof *SignatureProof, c *fr.Element) bool {
	return pk.PublicKey().VerifyProof(mpk, V, proof, c)
}
