// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cl

import (
	"errors"

	"github.com/luxfi/zkchannels/crypto/group"
	"github.com/luxfi/zkchannels/utils/wrappers"
)

// MaxMessageLength bounds decoded keys.
const MaxMessageLength = 64

var errKeyTooLong = errors.New("encoded key exceeds maximum message length")

func PackParams(p *wrappers.Packer, mpk *PublicParams) {
	group.PackG1(p, &mpk.G1)
	group.PackG2(p, &mpk.G2)
}

func UnpackParams(p *wrappers.Packer) *PublicParams {
	return &PublicParams{
		G1: group.UnpackG1(p),
		G2: group.UnpackG2(p),
	}
}

func PackSignature(p *wrappers.Packer, sig *Signature) {
	group.PackG1(p, &sig.H1)
	group.PackG1(p, &sig.H2)
}

func UnpackSignature(p *wrappers.Packer) Signature {
	return Signature{
		H1: group.UnpackG1(p),
		H2: group.UnpackG1(p),
	}
}

// PackBlindPublicKey writes n, X1, Y1[n], X2, Y2[n].
func PackBlindPublicKey(p *wrappers.Packer, pk *BlindPublicKey) {
	p.PackShort(uint16(len(pk.Y1)))
	group.PackG1(p, &pk.X1)
	for i := range pk.Y1 {
		group.PackG1(p, &pk.Y1[i])
	}
	group.PackG2(p, &pk.X2)
	for i := range pk.Y2 {
		group.PackG2(p, &pk.Y2[i])
	}
}

func UnpackBlindPublicKey(p *wrappers.Packer) *BlindPublicKey {
	n := int(p.UnpackShort())
	if n > MaxMessageLength {
		p.Add(errKeyTooLong)
		return nil
	}
	pk := &BlindPublicKey{
		Y1: make([]group.G1, n),
		Y2: make([]group.G2, n),
	}
	pk.X1 = group.UnpackG1(p)
	for i := range pk.Y1 {
		pk.Y1[i] = group.UnpackG1(p)
	}
	pk.X2 = group.UnpackG2(p)
	for i := range pk.Y2 {
		pk.Y2[i] = group.UnpackG2(p)
	}
	return pk
}
