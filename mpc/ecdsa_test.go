// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mpc

import (
	"crypto/rand"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/zkchannels/wallet"
)

func TestPartialSigComplete(t *testing.T) {
	require := require.New(t)

	sk, err := secp256k1.GeneratePrivateKeyFromRand(rand.Reader)
	require.NoError(err)
	pk := sk.PubKey().SerializeCompressed()

	state := &wallet.State{BC: 10, BM: 20}
	for _, fromEscrow := range []bool{true, false} {
		ps, err := NewPartialSig(rand.Reader, sk)
		require.NoError(err)

		digest := CloseDigest(state, fromEscrow)
		s := ps.Complete(digest[:])
		require.False(s.IsOverHalfOrder())

		var mask [32]byte
		_, err = rand.Read(mask[:])
		require.NoError(err)
		sig, err := unmaskSignature(ps.R.Bytes(), maskScalar(&s, mask), mask)
		require.NoError(err)
		require.True(verifyECDSA(pk, digest[:], sig))

		other := CloseDigest(state, !fromEscrow)
		require.False(verifyECDSA(pk, other[:], sig))
	}
}

func TestUnmaskWrongMask(t *testing.T) {
	require := require.New(t)

	sk, err := secp256k1.GeneratePrivateKeyFromRand(rand.Reader)
	require.NoError(err)
	ps, err := NewPartialSig(rand.Reader, sk)
	require.NoError(err)

	digest := CloseDigest(&wallet.State{}, true)
	s := ps.Complete(digest[:])
	mask := [32]byte{1}
	masked := maskScalar(&s, mask)

	sig, err := unmaskSignature(ps.R.Bytes(), masked, [32]byte{2})
	if err == nil {
		require.False(verifyECDSA(sk.PubKey().SerializeCompressed(), digest[:], sig))
	}

	_, err = unmaskSignature([32]byte{}, masked, mask)
	require.ErrorIs(err, errBadScalar)
}

func TestCloseDigestDomains(t *testing.T) {
	require := require.New(t)

	state := &wallet.State{BC: 1}
	require.NotEqual(CloseDigest(state, true), CloseDigest(state, false))

	token := &ChannelMPCToken{}
	require.NotEqual(CloseDigest(state, true), merchForceDigest(token))
}
