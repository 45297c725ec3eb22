// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package group

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"

	"github.com/luxfi/zkchannels/utils/wrappers"
)

const (
	ScalarLen = fr.Bytes
	G1Len     = bls12381.SizeOfG1AffineCompressed
	G2Len     = bls12381.SizeOfG2AffineCompressed
	GTLen     = bls12381.SizeOfGT
)

func PackScalar(p *wrappers.Packer, s *fr.Element) {
	b := s.Bytes()
	p.PackFixedBytes(b[:])
}

// UnpackScalar rejects non-canonical encodings.
func UnpackScalar(p *wrappers.Packer) fr.Element {
	var s fr.Element
	b := p.UnpackFixedBytes(ScalarLen)
	if p.Errored() {
		return s
	}
	p.Add(s.SetBytesCanonical(b))
	return s
}

func PackG1(p *wrappers.Packer, g *G1) {
	b := g.Bytes()
	p.PackFixedBytes(b[:])
}

// UnpackG1 reads a compressed point and checks subgroup membership.
func UnpackG1(p *wrappers.Packer) G1 {
	var g G1
	b := p.UnpackFixedBytes(G1Len)
	if p.Errored() {
		return g
	}
	_, err := g.SetBytes(b)
	p.Add(err)
	return g
}

func PackG2(p *wrappers.Packer, g *G2) {
	b := g.Bytes()
	p.PackFixedBytes(b[:])
}

func UnpackG2(p *wrappers.Packer) G2 {
	var g G2
	b := p.UnpackFixedBytes(G2Len)
	if p.Errored() {
		return g
	}
	_, err := g.SetBytes(b)
	p.Add(err)
	return g
}

func PackGT(p *wrappers.Packer, g *GT) {
	b := g.Bytes()
	p.PackFixedBytes(b[:])
}

func UnpackGT(p *wrappers.Packer) GT {
	var g GT
	b := p.UnpackFixedBytes(GTLen)
	if p.Errored() {
		return g
	}
	p.Add(g.SetBytes(b))
	return g
}

// G1Bytes is the canonical compressed encoding used in Fiat-Shamir transcripts.
func G1Bytes(g *G1) []byte {
	b := g.Bytes()
	return b[:]
}

// GTBytes is the canonical encoding used in Fiat-Shamir transcripts.
func GTBytes(g *GT) []byte {
	b := g.Bytes()
	return b[:]
}
