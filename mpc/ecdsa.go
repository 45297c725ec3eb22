// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mpc

import (
	"errors"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/luxfi/zkchannels/utils/hashing"
	"github.com/luxfi/zkchannels/wallet"
)

const (
	escrowClosePrefix = "ZKCHANNELS_ESCROW_CLOSE"
	merchClosePrefix  = "ZKCHANNELS_MERCH_CLOSE"
	merchForcePrefix  = "ZKCHANNELS_MERCH_FORCE_CLOSE"
)

var errBadScalar = errors.New("invalid scalar encoding")

// PartialSig is a merchant ECDSA signature with the message left open:
// R = kG, r = R.x, KInv = k^-1 and RX = r·x for the signing key x.
// Completing it for a digest z gives s = KInv·(z + RX).
type PartialSig struct {
	R    secp256k1.ModNScalar
	KInv secp256k1.ModNScalar
	RX   secp256k1.ModNScalar
}

// NewPartialSig samples a signing nonce for sk.
func NewPartialSig(rng io.Reader, sk *secp256k1.PrivateKey) (*PartialSig, error) {
	var buf [32]byte
	for {
		if _, err := io.ReadFull(rng, buf[:]); err != nil {
			return nil, err
		}
		var k secp256k1.ModNScalar
		if overflow := k.SetBytes(&buf); overflow != 0 || k.IsZero() {
			continue
		}

		var point secp256k1.JacobianPoint
		secp256k1.ScalarBaseMultNonConst(&k, &point)
		point.ToAffine()

		ps := &PartialSig{}
		ps.R.SetByteSlice(point.X.Bytes()[:])
		if ps.R.IsZero() {
			continue
		}
		ps.KInv.InverseValNonConst(&k)
		ps.RX.Mul2(&ps.R, &sk.Key)
		return ps, nil
	}
}

// Complete returns the low-S value s for digest.
func (p *PartialSig) Complete(digest []byte) secp256k1.ModNScalar {
	var z, s secp256k1.ModNScalar
	z.SetByteSlice(digest)
	s.Add2(&z, &p.RX).Mul(&p.KInv)
	if s.IsOverHalfOrder() {
		s.Negate()
	}
	return s
}

// maskScalar XORs the encoding of s with mask.
func maskScalar(s *secp256k1.ModNScalar, mask [32]byte) [32]byte {
	out := s.Bytes()
	for i := range out {
		out[i] ^= mask[i]
	}
	return out
}

// unmaskSignature rebuilds a DER signature from r and a masked s.
func unmaskSignature(r, masked, mask [32]byte) ([]byte, error) {
	for i := range masked {
		masked[i] ^= mask[i]
	}
	var rs, ss secp256k1.ModNScalar
	if overflow := rs.SetBytes(&r); overflow != 0 || rs.IsZero() {
		return nil, errBadScalar
	}
	if overflow := ss.SetBytes(&masked); overflow != 0 || ss.IsZero() {
		return nil, errBadScalar
	}
	return ecdsa.NewSignature(&rs, &ss).Serialize(), nil
}

// CloseDigest is the digest the merchant signs to authorize a customer
// close on state, from escrow or from merch-close.
func CloseDigest(state *wallet.State, fromEscrow bool) hashing.Hash256 {
	prefix := merchClosePrefix
	if fromEscrow {
		prefix = escrowClosePrefix
	}
	return hashing.PrefixedHash(prefix, state.SerializeCompact())
}

func merchForceDigest(token *ChannelMPCToken) hashing.Hash256 {
	return hashing.PrefixedHash(merchForcePrefix, token.EscrowTxID[:], token.EscrowPrevout[:], token.MerchTxID[:])
}

func signECDSA(sk *secp256k1.PrivateKey, digest []byte) []byte {
	return ecdsa.Sign(sk, digest).Serialize()
}

func verifyECDSA(pubKey, digest, sig []byte) bool {
	pk, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	s, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return s.Verify(digest, pk)
}
