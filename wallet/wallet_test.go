// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wallet

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/zkchannels/crypto/group"
)

func testWallet() *Wallet {
	return &Wallet{
		ChannelID: group.HashToScalar([]byte("channel")),
		Wpk:       group.HashToScalar([]byte("wpk")),
		BC:        100,
		BM:        25,
	}
}

func TestWalletVectors(t *testing.T) {
	require := require.New(t)

	w := testWallet()
	vec := w.AsFrVec()
	require.Len(vec, 4)
	require.True(vec[SlotChannelID].Equal(&w.ChannelID))
	require.True(vec[SlotWpk].Equal(&w.Wpk))
	bc := group.ScalarFromInt64(100)
	require.True(vec[SlotBC].Equal(&bc))

	slots := w.Slots()
	require.Len(slots, NumSlots)
	require.True(slots[SlotClose].IsZero())
	require.False(w.IsClose())

	closeWallet := w.CloseWallet()
	require.Nil(w.Close)
	require.True(closeWallet.IsClose())
	require.Len(closeWallet.AsFrVec(), 5)
	require.Len(closeWallet.WithoutClose(), 4)
	tag := CloseTag()
	require.True(closeWallet.Slots()[SlotClose].Equal(&tag))
}

func TestSerializeCompact(t *testing.T) {
	require := require.New(t)

	w := testWallet()
	out := SerializeCompact(w.AsFrVec())
	require.Len(out, 4*fr.Bytes)

	// balances are encoded as big-endian field elements
	require.Equal(uint64(100), binary.BigEndian.Uint64(out[3*fr.Bytes-8:3*fr.Bytes]))
	require.Equal(uint64(25), binary.BigEndian.Uint64(out[4*fr.Bytes-8:]))
}

func TestStateSerializeCompact(t *testing.T) {
	require := require.New(t)

	s := State{
		BC:            1000,
		BM:            -1,
		EscrowTxID:    ids.ID{1},
		EscrowPrevout: ids.ID{2},
		MerchTxID:     ids.ID{3},
		MerchPrevout:  ids.ID{4},
		MinFee:        5,
		MaxFee:        6,
		FeeMC:         7,
	}
	s.Nonce[0] = 0xaa
	s.RevLock[0] = 0xbb

	out := s.SerializeCompact()
	require.Len(out, StateLen)

	offset := 0
	require.Equal(byte(0xaa), out[offset])
	offset += NonceLen
	require.Equal(byte(0xbb), out[offset])
	offset += RevLockLen
	require.Equal(uint64(1000), binary.BigEndian.Uint64(out[offset:]))
	offset += 8
	require.Equal(^uint64(0), binary.BigEndian.Uint64(out[offset:]))
	offset += 8
	// merch txid precedes escrow txid, then merch and escrow prevouts
	for _, want := range []byte{3, 1, 4, 2} {
		require.Equal(want, out[offset])
		offset += 32
	}
	for _, want := range []uint64{5, 6, 7} {
		require.Equal(want, binary.BigEndian.Uint64(out[offset:]))
		offset += 8
	}
	require.Equal(StateLen, offset)
}

func TestStateComputeHash(t *testing.T) {
	require := require.New(t)

	s := State{BC: 10, BM: 20}
	expected := sha256.Sum256(append([]byte("ZKCHANNELS_STATE"), s.SerializeCompact()...))
	require.Equal(expected, s.ComputeHash())

	s2 := s
	s2.BC++
	require.NotEqual(s.ComputeHash(), s2.ComputeHash())
}

func TestParseState(t *testing.T) {
	require := require.New(t)

	s := &State{
		BC:         -3,
		BM:         44,
		EscrowTxID: ids.ID{9},
		MerchTxID:  ids.ID{8},
		MaxFee:     12,
	}
	s.Nonce[3] = 1

	parsed, err := ParseState(s.SerializeCompact())
	require.NoError(err)
	require.Equal(s, parsed)

	_, err = ParseState(s.SerializeCompact()[1:])
	require.ErrorIs(err, errStateLen)
}
