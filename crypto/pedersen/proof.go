// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pedersen

import (
	"bytes"
	"errors"
	"io"
	"slices"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/luxfi/zkchannels/crypto/group"
)

const openingLabel = "ZKCHANNELS-PEDERSEN-OPENING"

var (
	ErrRevealIndex   = errors.New("revealed index out of range")
	ErrBlindingCount = errors.New("wrong number of blinding scalars")
)

// Prover holds the first move of a proof of knowledge of an opening.
// T = H^t0 * prod g_i^t_i, with t_i = 0 for revealed messages.
type Prover struct {
	T group.G1

	t []fr.Element
}

// NewProver samples blindings and computes T. If tMsgs is non-nil it fixes the
// message blindings, which lets a caller link this proof to another one by
// sharing them.
func (cs *CSMultiParams) NewProver(rng io.Reader, reveal []int, tMsgs []fr.Element) (*Prover, error) {
	n := cs.NumMessages()
	if tMsgs != nil && len(tMsgs) != n {
		return nil, ErrBlindingCount
	}
	for _, idx := range reveal {
		if idx < 0 || idx >= n {
			return nil, ErrRevealIndex
		}
	}

	t := make([]fr.Element, n+1)
	t0, err := group.RandomScalar(rng)
	if err != nil {
		return nil, err
	}
	t[0] = t0
	for i := 0; i < n; i++ {
		switch {
		case slices.Contains(reveal, i):
			// zero blinding so that the response equals c*m_i
		case tMsgs != nil:
			t[i+1] = tMsgs[i]
		default:
			s, err := group.RandomScalar(rng)
			if err != nil {
				return nil, err
			}
			t[i+1] = s
		}
	}

	T := group.G1Mul(&cs.PubBases[0], &t[0])
	for i := 1; i <= n; i++ {
		if t[i].IsZero() {
			continue
		}
		term := group.G1Mul(&cs.PubBases[i], &t[i])
		T.Add(&T, &term)
	}
	return &Prover{T: T, t: t}, nil
}

// Respond computes z_0 = t_0 + c*r and z_i = t_i + c*m_{i-1}. Missing
// trailing messages are zero.
func (p *Prover) Respond(c *fr.Element, msgs []fr.Element, r *fr.Element) ([]fr.Element, error) {
	if len(msgs) > len(p.t)-1 {
		return nil, ErrTooManyMessages
	}
	z := make([]fr.Element, len(p.t))
	z[0].Mul(c, r).Add(&z[0], &p.t[0])
	for i := 1; i < len(p.t); i++ {
		z[i] = p.t[i]
		if i-1 < len(msgs) {
			var cm fr.Element
			cm.Mul(c, &msgs[i-1])
			z[i].Add(&z[i], &cm)
		}
	}
	return z, nil
}

// VerifyResponses checks prod PubBases[i]^z_i == T * C^c and, for every
// revealed message index, z_{i+1} == c*m_i.
func (cs *CSMultiParams) VerifyResponses(com *Commitment, T *group.G1, z []fr.Element, c *fr.Element, revealed map[int]fr.Element) bool {
	if len(z) != len(cs.PubBases) {
		return false
	}
	for idx, m := range revealed {
		if idx < 0 || idx >= cs.NumMessages() {
			return false
		}
		var cm fr.Element
		cm.Mul(c, &m)
		if !z[idx+1].Equal(&cm) {
			return false
		}
	}

	lhs := group.G1Mul(&cs.PubBases[0], &z[0])
	for i := 1; i < len(z); i++ {
		term := group.G1Mul(&cs.PubBases[i], &z[i])
		lhs.Add(&lhs, &term)
	}
	rhs := group.G1Mul(&com.C, c)
	rhs.Add(&rhs, T)
	return lhs.Equal(&rhs)
}

// Proof is a non-interactive proof of knowledge of an opening.
type Proof struct {
	T group.G1
	Z []fr.Element
}

// ProveOpening proves knowledge of (msgs, r) opening com, revealing the
// messages at the given indices.
func (cs *CSMultiParams) ProveOpening(rng io.Reader, com *Commitment, msgs []fr.Element, r *fr.Element, reveal []int) (*Proof, error) {
	p, err := cs.NewProver(rng, reveal, nil)
	if err != nil {
		return nil, err
	}
	c := cs.openingChallenge(com, &p.T)
	z, err := p.Respond(&c, msgs, r)
	if err != nil {
		return nil, err
	}
	return &Proof{T: p.T, Z: z}, nil
}

// VerifyOpening verifies a proof produced by ProveOpening.
func (cs *CSMultiParams) VerifyOpening(com *Commitment, proof *Proof, revealed map[int]fr.Element) bool {
	c := cs.openingChallenge(com, &proof.T)
	return cs.VerifyResponses(com, &proof.T, proof.Z, &c, revealed)
}

func (cs *CSMultiParams) openingChallenge(com *Commitment, T *group.G1) fr.Element {
	var buf bytes.Buffer
	buf.WriteString(openingLabel)
	buf.Write(cs.transcript())
	buf.Write(com.Bytes())
	buf.Write(group.G1Bytes(T))
	return group.HashToScalar(buf.Bytes())
}
