// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pedersen implements Pedersen multi-commitments over G1,
// C = H^r * g_1^m_1 * ... * g_n^m_n, together with a proof of knowledge of
// an opening that may reveal selected messages.
package pedersen

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/luxfi/zkchannels/crypto/group"
)

var (
	ErrTooManyMessages = errors.New("more messages than commitment bases")
	ErrNoBases         = errors.New("commitment params need at least two bases")
)

// CSMultiParams holds the commitment bases. PubBases[0] is H, the base of the
// randomness; PubBases[i] commits to message i-1.
type CSMultiParams struct {
	PubBases []group.G1
}

// SetupGenParams samples n+1 independent random bases.
func SetupGenParams(rng io.Reader, n int) (*CSMultiParams, error) {
	if n < 1 {
		return nil, ErrNoBases
	}
	bases := make([]group.G1, n+1)
	for i := range bases {
		g, err := group.RandomG1(rng)
		if err != nil {
			return nil, err
		}
		bases[i] = g
	}
	return &CSMultiParams{PubBases: bases}, nil
}

// NumMessages is the number of message slots.
func (cs *CSMultiParams) NumMessages() int {
	return len(cs.PubBases) - 1
}

// Commit computes H^r * prod g_i^m_i. Fewer messages than slots leaves the
// trailing slots at zero.
func (cs *CSMultiParams) Commit(msgs []fr.Element, r *fr.Element) (*Commitment, error) {
	if len(cs.PubBases) < 2 {
		return nil, ErrNoBases
	}
	if len(msgs) > cs.NumMessages() {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyMessages, len(msgs), cs.NumMessages())
	}
	c := group.G1Mul(&cs.PubBases[0], r)
	for i := range msgs {
		term := group.G1Mul(&cs.PubBases[i+1], &msgs[i])
		c.Add(&c, &term)
	}
	return &Commitment{C: c}, nil
}

// Decommit reports whether (msgs, r) opens com.
func (cs *CSMultiParams) Decommit(com *Commitment, msgs []fr.Element, r *fr.Element) bool {
	expected, err := cs.Commit(msgs, r)
	if err != nil {
		return false
	}
	return expected.C.Equal(&com.C)
}

// Equal reports whether both parameter sets use the same bases.
func (cs *CSMultiParams) Equal(o *CSMultiParams) bool {
	if len(cs.PubBases) != len(o.PubBases) {
		return false
	}
	for i := range cs.PubBases {
		if !cs.PubBases[i].Equal(&o.PubBases[i]) {
			return false
		}
	}
	return true
}

func (cs *CSMultiParams) transcript() []byte {
	var buf bytes.Buffer
	for i := range cs.PubBases {
		buf.Write(group.G1Bytes(&cs.PubBases[i]))
	}
	return buf.Bytes()
}

// Commitment is a point of G1 produced by CSMultiParams.Commit.
type Commitment struct {
	C group.G1
}

// Add returns the homomorphic sum of two commitments.
func (c *Commitment) Add(o *Commitment) *Commitment {
	return &Commitment{C: group.G1Add(&c.C, &o.C)}
}

// Shift returns c * base^s, i.e. a commitment whose message at base is
// offset by s under the same randomness.
func (c *Commitment) Shift(base *group.G1, s *fr.Element) *Commitment {
	term := group.G1Mul(base, s)
	return &Commitment{C: group.G1Add(&c.C, &term)}
}

func (c *Commitment) Equal(o *Commitment) bool {
	return c.C.Equal(&o.C)
}

func (c *Commitment) Bytes() []byte {
	return group.G1Bytes(&c.C)
}
