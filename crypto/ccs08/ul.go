// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ccs08

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/zkchannels/crypto/cl"
	"github.com/luxfi/zkchannels/crypto/group"
	"github.com/luxfi/zkchannels/crypto/pedersen"
)

const challengeLabel = "ZKCHANNELS-CCS08"

var errDigitProof = errors.New("digit signature proof rejected")

// ProofULState is the prover state between the commitment and the response.
type ProofULState struct {
	Decx        []int64
	ProofStates []*cl.ProofState
	V           []cl.Signature
	D           group.G1
	M           fr.Element
	S           []fr.Element
}

// ProofUL proves that Comm opens to a value in [0, u^l) at base k.
type ProofUL struct {
	V         []cl.Signature
	D         group.G1
	Comm      pedersen.Commitment
	SigProofs []cl.SignatureProof
	Zr        fr.Element
	Zs        []fr.Element
}

// ProveULCommitment runs the first move for x at commitment base k. sOpt and
// mOpt fix the blindings of the other committed messages and of the
// randomness; nil samples fresh ones.
func (p *ParamsUL) ProveULCommitment(rng io.Reader, x int64, k int, sOpt []fr.Element, mOpt *fr.Element) (*ProofULState, error) {
	if err := p.checkBaseIndex(k); err != nil {
		return nil, err
	}
	others := p.otherIndices(k)
	if sOpt != nil && len(sOpt) != len(others) {
		return nil, fmt.Errorf("%w: got %d blindings, want %d", ErrOtherMessages, len(sOpt), len(others))
	}
	decx, err := Decompose(x, p.U, p.L)
	if err != nil {
		return nil, err
	}

	var m fr.Element
	if mOpt != nil {
		m = *mOpt
	} else {
		m, err = group.RandomScalar(rng)
		if err != nil {
			return nil, err
		}
	}

	bases := p.CSParams.PubBases
	gk := &bases[k]
	D := group.G1Mul(&bases[0], &m)
	states := make([]*cl.ProofState, len(decx))
	V := make([]cl.Signature, len(decx))
	for i, digit := range decx {
		sig, ok := p.Signatures[strconv.FormatInt(digit, 10)]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrMissingDigit, digit)
		}
		ps, err := p.PK.ProveCommitment(rng, p.MPK, &sig, nil, nil)
		if err != nil {
			return nil, err
		}
		states[i] = ps
		V[i] = ps.V

		// D += g_k^(u^i * sum_j t[i][j])
		exp := p.digitWeight(i)
		var tsum fr.Element
		for j := range ps.T {
			tsum.Add(&tsum, &ps.T[j])
		}
		exp.Mul(&exp, &tsum)
		term := group.G1Mul(gk, &exp)
		D.Add(&D, &term)
	}

	s := make([]fr.Element, len(others))
	for j, idx := range others {
		if sOpt != nil {
			s[j] = sOpt[j]
		} else {
			s[j], err = group.RandomScalar(rng)
			if err != nil {
				return nil, err
			}
		}
		term := group.G1Mul(&bases[idx], &s[j])
		D.Add(&D, &term)
	}

	return &ProofULState{
		Decx:        decx,
		ProofStates: states,
		V:           V,
		D:           D,
		M:           m,
		S:           s,
	}, nil
}

// ProveULResponse answers challenge c. r is the commitment randomness and
// otherM are the messages committed at the bases other than H and k.
func (p *ParamsUL) ProveULResponse(r *fr.Element, com *pedersen.Commitment, ps *ProofULState, c *fr.Element, k int, otherM []fr.Element) (*ProofUL, error) {
	if err := p.checkBaseIndex(k); err != nil {
		return nil, err
	}
	if len(otherM) != len(ps.S) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrOtherMessages, len(otherM), len(ps.S))
	}

	sigProofs := make([]cl.SignatureProof, len(ps.Decx))
	for i, digit := range ps.Decx {
		sp, err := p.PK.ProveResponse(ps.ProofStates[i], c, digitScalar(digit))
		if err != nil {
			return nil, err
		}
		sigProofs[i] = *sp
	}

	// zr = m + r*c
	var zr fr.Element
	zr.Mul(r, c).Add(&zr, &ps.M)

	// zs_j = s_j + m_j*c
	zs := make([]fr.Element, len(otherM))
	for j := range otherM {
		zs[j].Mul(&otherM[j], c).Add(&zs[j], &ps.S[j])
	}

	return &ProofUL{
		V:         ps.V,
		D:         ps.D,
		Comm:      *com,
		SigProofs: sigProofs,
		Zr:        zr,
		Zs:        zs,
	}, nil
}

// ProveUL proves that com, opened by (x at base k, otherM, r), holds
// x in [0, u^l).
func (p *ParamsUL) ProveUL(rng io.Reader, x int64, r *fr.Element, com *pedersen.Commitment, k int, otherM []fr.Element) (*ProofUL, error) {
	ps, err := p.ProveULCommitment(rng, x, k, nil, nil)
	if err != nil {
		return nil, err
	}
	c := ChallengeUL(ps.Transcript())
	return p.ProveULResponse(r, com, ps, &c, k, otherM)
}

// VerifyUL checks both the commitment equation and every digit signature
// proof. Structural mismatches are rejected.
func (p *ParamsUL) VerifyUL(proof *ProofUL, c *fr.Element, k int) bool {
	if p.checkBaseIndex(k) != nil ||
		int64(len(proof.V)) != p.L ||
		int64(len(proof.SigProofs)) != p.L ||
		len(proof.Zs) != len(p.CSParams.PubBases)-2 {
		return false
	}
	return p.verifyPart1(proof, c, k) && p.verifyPart2(proof, c)
}

// verifyPart1 checks
//
//	D == C^-c * H^zr * prod_i g_k^(u^i * sum_j zsig[i][j]) * prod_{i != k} g_i^zs
func (p *ParamsUL) verifyPart1(proof *ProofUL, c *fr.Element, k int) bool {
	bases := p.CSParams.PubBases
	var negC fr.Element
	negC.Neg(c)

	acc := group.G1Mul(&proof.Comm.C, &negC)
	hzr := group.G1Mul(&bases[0], &proof.Zr)
	acc.Add(&acc, &hzr)

	for i := range proof.SigProofs {
		var zsum fr.Element
		for j := range proof.SigProofs[i].Zsig {
			zsum.Add(&zsum, &proof.SigProofs[i].Zsig[j])
		}
		exp := p.digitWeight(i)
		exp.Mul(&exp, &zsum)
		term := group.G1Mul(&bases[k], &exp)
		acc.Add(&acc, &term)
	}
	for j, idx := range p.otherIndices(k) {
		term := group.G1Mul(&bases[idx], &proof.Zs[j])
		acc.Add(&acc, &term)
	}
	return acc.Equal(&proof.D)
}

// verifyPart2 checks every digit signature proof. Digits are independent and
// verified concurrently.
func (p *ParamsUL) verifyPart2(proof *ProofUL, c *fr.Element) bool {
	pk := p.PK.PublicKey()
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range proof.SigProofs {
		g.Go(func() error {
			if !pk.VerifyProof(p.MPK, &proof.V[i], &proof.SigProofs[i], c) {
				return errDigitProof
			}
			return nil
		})
	}
	return g.Wait() == nil
}

func (p *ParamsUL) digitWeight(i int) fr.Element {
	var (
		w fr.Element
		u = group.ScalarFromInt64(p.U)
	)
	w.SetOne()
	for range i {
		w.Mul(&w, &u)
	}
	return w
}

// Transcript returns the first-move values hashed into the challenge.
func (ps *ProofULState) Transcript() ([]group.GT, []group.G1) {
	a := make([]group.GT, len(ps.ProofStates))
	for i, s := range ps.ProofStates {
		a[i] = s.A
	}
	return a, []group.G1{ps.D}
}

// Transcript returns the first-move values hashed into the challenge.
func (proof *ProofUL) Transcript() ([]group.GT, []group.G1) {
	a := make([]group.GT, len(proof.SigProofs))
	for i := range proof.SigProofs {
		a[i] = proof.SigProofs[i].A
	}
	return a, []group.G1{proof.D}
}

// ChallengeUL hashes the canonical encodings of a and D to a scalar.
func ChallengeUL(a []group.GT, d []group.G1) fr.Element {
	var buf bytes.Buffer
	WriteTranscript(&buf, a, d)
	return group.HashToScalar(buf.Bytes())
}

// WriteTranscript appends the canonical encoding of a and D to buf. Callers
// that fold range proofs into a larger Fiat-Shamir challenge use it directly.
func WriteTranscript(buf *bytes.Buffer, a []group.GT, d []group.G1) {
	buf.WriteString(challengeLabel)
	for i := range a {
		buf.Write(group.GTBytes(&a[i]))
	}
	for i := range d {
		buf.Write(group.G1Bytes(&d[i]))
	}
}
