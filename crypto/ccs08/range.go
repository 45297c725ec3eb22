// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ccs08

import (
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/luxfi/zkchannels/crypto/group"
	"github.com/luxfi/zkchannels/crypto/pedersen"
)

// RangeProofState holds both [0, u^l) sub-proof states of an [a, b] proof.
type RangeProofState struct {
	Com1 *pedersen.Commitment
	PS1  *ProofULState
	Com2 *pedersen.Commitment
	PS2  *ProofULState
}

// RangeProof proves x in [a, b] through x-b+u^l-1 in [0, u^l) (P1) and
// x-a in [0, u^l) (P2), both answered under one challenge.
type RangeProof struct {
	P1 *ProofUL
	P2 *ProofUL
}

// shiftedCommitments returns the commitments to x-b+u^l-1 and x-a derived
// from the commitment to x at base k.
func (rp *RPPublicParams) shiftedCommitments(com *pedersen.Commitment, k int) (*pedersen.Commitment, *pedersen.Commitment) {
	gk := &rp.P.CSParams.PubBases[k]
	shiftB := group.ScalarFromInt64(rp.P.ULBound() - 1 - rp.B)
	shiftA := group.ScalarFromInt64(-rp.A)
	return com.Shift(gk, &shiftB), com.Shift(gk, &shiftA)
}

// ProveCommitment runs the first move for x, committed in com at base k.
// Values outside [A, B] are rejected before any proof work.
func (rp *RPPublicParams) ProveCommitment(rng io.Reader, x int64, com *pedersen.Commitment, k int, sOpt []fr.Element, mOpt *fr.Element) (*RangeProofState, error) {
	if x < rp.A || x > rp.B {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfRange, x, rp.A, rp.B)
	}
	if err := rp.P.checkBaseIndex(k); err != nil {
		return nil, err
	}

	ul := rp.P.ULBound()
	com1, com2 := rp.shiftedCommitments(com, k)
	ps1, err := rp.P.ProveULCommitment(rng, x-rp.B+ul-1, k, sOpt, mOpt)
	if err != nil {
		return nil, err
	}
	ps2, err := rp.P.ProveULCommitment(rng, x-rp.A, k, sOpt, mOpt)
	if err != nil {
		return nil, err
	}
	return &RangeProofState{
		Com1: com1,
		PS1:  ps1,
		Com2: com2,
		PS2:  ps2,
	}, nil
}

// ProveResponse answers challenge c for both sub-proofs.
func (rp *RPPublicParams) ProveResponse(r *fr.Element, st *RangeProofState, c *fr.Element, k int, otherM []fr.Element) (*RangeProof, error) {
	p1, err := rp.P.ProveULResponse(r, st.Com1, st.PS1, c, k, otherM)
	if err != nil {
		return nil, err
	}
	p2, err := rp.P.ProveULResponse(r, st.Com2, st.PS2, c, k, otherM)
	if err != nil {
		return nil, err
	}
	return &RangeProof{P1: p1, P2: p2}, nil
}

// Prove proves that com, opened by (x at base k, otherM, r), holds x in
// [A, B].
func (rp *RPPublicParams) Prove(rng io.Reader, x int64, com *pedersen.Commitment, r *fr.Element, k int, otherM []fr.Element) (*RangeProof, error) {
	st, err := rp.ProveCommitment(rng, x, com, k, nil, nil)
	if err != nil {
		return nil, err
	}
	c := ChallengeUL(st.Transcript())
	return rp.ProveResponse(r, st, &c, k, otherM)
}

// Verify checks proof against com under challenge c. The sub-proof
// commitments must be the shifts of com.
func (rp *RPPublicParams) Verify(com *pedersen.Commitment, proof *RangeProof, c *fr.Element, k int) bool {
	if proof == nil || proof.P1 == nil || proof.P2 == nil || rp.P.checkBaseIndex(k) != nil {
		return false
	}
	com1, com2 := rp.shiftedCommitments(com, k)
	if !com1.Equal(&proof.P1.Comm) || !com2.Equal(&proof.P2.Comm) {
		return false
	}
	return rp.P.VerifyUL(proof.P1, c, k) && rp.P.VerifyUL(proof.P2, c, k)
}

// VerifyProof recomputes the challenge from the proof and verifies it.
func (rp *RPPublicParams) VerifyProof(com *pedersen.Commitment, proof *RangeProof, k int) bool {
	if proof == nil || proof.P1 == nil || proof.P2 == nil {
		return false
	}
	c := rp.ComputeChallenge(proof)
	return rp.Verify(com, proof, &c, k)
}

// ComputeChallenge hashes the first-move values of both sub-proofs.
func (*RPPublicParams) ComputeChallenge(proof *RangeProof) fr.Element {
	return ChallengeUL(proof.Transcript())
}

// Transcript interleaves the digit commitments of both sub-proofs and
// appends both D values.
func (st *RangeProofState) Transcript() ([]group.GT, []group.G1) {
	a1, d1 := st.PS1.Transcript()
	a2, d2 := st.PS2.Transcript()
	return interleave(a1, a2), append(d1, d2...)
}

// Transcript matches RangeProofState.Transcript on the prover side.
func (proof *RangeProof) Transcript() ([]group.GT, []group.G1) {
	a1, d1 := proof.P1.Transcript()
	a2, d2 := proof.P2.Transcript()
	return interleave(a1, a2), append(d1, d2...)
}

func interleave(a1, a2 []group.GT) []group.GT {
	out := make([]group.GT, 0, len(a1)+len(a2))
	for i := 0; i < max(len(a1), len(a2)); i++ {
		if i < len(a1) {
			out = append(out, a1[i])
		}
		if i < len(a2) {
			out = append(out, a2[i])
		}
	}
	return out
}
