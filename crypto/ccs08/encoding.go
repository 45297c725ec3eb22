// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ccs08

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/luxfi/zkchannels/crypto/cl"
	"github.com/luxfi/zkchannels/crypto/group"
	"github.com/luxfi/zkchannels/crypto/pedersen"
	"github.com/luxfi/zkchannels/utils/wrappers"

	safemath "github.com/luxfi/zkchannels/utils/math"
)

const (
	encodingVersion byte = 0

	// MaxDigitBase bounds decoded parameter blobs.
	MaxDigitBase = 1 << 12
	maxDigits    = 64
	maxBases     = 64
	maxBlobSize  = math.MaxInt32
)

var (
	errUnknownVersion = errors.New("unknown encoding version")
	errBadParams      = errors.New("malformed range proof parameters")
)

// MarshalBinary encodes the public parameters. The encoding is stable:
// digit signatures are written in digit order.
func (rp *RPPublicParams) MarshalBinary() ([]byte, error) {
	p := wrappers.NewWriter(0, maxBlobSize)
	p.PackByte(encodingVersion)
	p.PackSignedLong(rp.A)
	p.PackSignedLong(rp.B)
	packParamsUL(p, rp.P)
	return p.Bytes, p.Err
}

// UnmarshalRPPublicParams decodes and sanity checks parameters produced by
// MarshalBinary.
func UnmarshalRPPublicParams(b []byte) (*RPPublicParams, error) {
	p := wrappers.NewReader(b)
	if v := p.UnpackByte(); !p.Errored() && v != encodingVersion {
		return nil, fmt.Errorf("%w: %d", errUnknownVersion, v)
	}
	rp := &RPPublicParams{
		A: p.UnpackSignedLong(),
		B: p.UnpackSignedLong(),
	}
	rp.P = unpackParamsUL(p)
	if err := p.Done(); err != nil {
		return nil, err
	}
	if rp.A > rp.B {
		return nil, ErrInvalidRange
	}
	width, err := safemath.Sub(rp.B, rp.A)
	if err != nil || rp.P.ULBound() <= max(rp.B, width) {
		return nil, fmt.Errorf("%w: u^l does not cover [%d, %d]", errBadParams, rp.A, rp.B)
	}
	return rp, nil
}

func packParamsUL(p *wrappers.Packer, params *ParamsUL) {
	p.PackLong(uint64(params.U))
	p.PackLong(uint64(params.L))
	cl.PackParams(p, params.MPK)
	cl.PackBlindPublicKey(p, params.PK)
	p.PackShort(uint16(len(params.CSParams.PubBases)))
	for i := range params.CSParams.PubBases {
		group.PackG1(p, &params.CSParams.PubBases[i])
	}
	for i := int64(0); i < params.U; i++ {
		sig, ok := params.Signatures[strconv.FormatInt(i, 10)]
		if !ok {
			p.Add(fmt.Errorf("%w: %d", ErrMissingDigit, i))
			return
		}
		cl.PackSignature(p, &sig)
	}
}

func unpackParamsUL(p *wrappers.Packer) *ParamsUL {
	u := int64(p.UnpackLong())
	l := int64(p.UnpackLong())
	if p.Errored() {
		return nil
	}
	if u < 2 || u > MaxDigitBase || l < 1 || l > maxDigits {
		p.Add(errBadParams)
		return nil
	}
	if _, err := safemath.Pow(u, l); err != nil {
		p.Add(ErrRangeOverflow)
		return nil
	}

	params := &ParamsUL{
		U:   u,
		L:   l,
		MPK: cl.UnpackParams(p),
		PK:  cl.UnpackBlindPublicKey(p),
	}
	if p.Errored() {
		return nil
	}
	if params.PK.MessageLength() != 1 {
		p.Add(errBadParams)
		return nil
	}
	n := int(p.UnpackShort())
	if n < 2 || n > maxBases {
		p.Add(errBadParams)
		return nil
	}
	bases := make([]group.G1, n)
	for i := range bases {
		bases[i] = group.UnpackG1(p)
	}
	params.CSParams = &pedersen.CSMultiParams{PubBases: bases}

	params.Signatures = make(map[string]cl.Signature, u)
	for i := int64(0); i < u; i++ {
		params.Signatures[strconv.FormatInt(i, 10)] = cl.UnpackSignature(p)
	}
	return params
}

// MarshalBinary encodes a range proof.
func (proof *RangeProof) MarshalBinary() ([]byte, error) {
	p := wrappers.NewWriter(0, maxBlobSize)
	p.PackByte(encodingVersion)
	packProofUL(p, proof.P1)
	packProofUL(p, proof.P2)
	return p.Bytes, p.Err
}

// UnmarshalRangeProof decodes a proof produced by RangeProof.MarshalBinary.
func UnmarshalRangeProof(b []byte) (*RangeProof, error) {
	p := wrappers.NewReader(b)
	if v := p.UnpackByte(); !p.Errored() && v != encodingVersion {
		return nil, fmt.Errorf("%w: %d", errUnknownVersion, v)
	}
	proof := &RangeProof{
		P1: unpackProofUL(p),
		P2: unpackProofUL(p),
	}
	if err := p.Done(); err != nil {
		return nil, err
	}
	return proof, nil
}

func packProofUL(p *wrappers.Packer, proof *ProofUL) {
	if len(proof.V) != len(proof.SigProofs) {
		p.Add(errBadParams)
		return
	}
	p.PackShort(uint16(len(proof.V)))
	for i := range proof.V {
		cl.PackSignature(p, &proof.V[i])
		sp := &proof.SigProofs[i]
		p.PackShort(uint16(len(sp.Zsig)))
		for j := range sp.Zsig {
			group.PackScalar(p, &sp.Zsig[j])
		}
		group.PackScalar(p, &sp.Zv)
		group.PackGT(p, &sp.A)
	}
	group.PackG1(p, &proof.D)
	group.PackG1(p, &proof.Comm.C)
	group.PackScalar(p, &proof.Zr)
	p.PackShort(uint16(len(proof.Zs)))
	for i := range proof.Zs {
		group.PackScalar(p, &proof.Zs[i])
	}
}

func unpackProofUL(p *wrappers.Packer) *ProofUL {
	n := int(p.UnpackShort())
	if n > maxDigits {
		p.Add(errBadParams)
		return nil
	}
	proof := &ProofUL{
		V:         make([]cl.Signature, n),
		SigProofs: make([]cl.SignatureProof, n),
	}
	for i := 0; i < n; i++ {
		proof.V[i] = cl.UnpackSignature(p)
		m := int(p.UnpackShort())
		if m > cl.MaxMessageLength {
			p.Add(errBadParams)
			return nil
		}
		zsig := make([]fr.Element, m)
		for j := range zsig {
			zsig[j] = group.UnpackScalar(p)
		}
		proof.SigProofs[i] = cl.SignatureProof{
			Zsig: zsig,
			Zv:   group.UnpackScalar(p),
			A:    group.UnpackGT(p),
		}
	}
	proof.D = group.UnpackG1(p)
	proof.Comm = pedersen.Commitment{C: group.UnpackG1(p)}
	proof.Zr = group.UnpackScalar(p)
	m := int(p.UnpackShort())
	if m > maxBases {
		p.Add(errBadParams)
		return nil
	}
	proof.Zs = make([]fr.Element, m)
	for i := range proof.Zs {
		proof.Zs[i] = group.UnpackScalar(p)
	}
	return proof
}
