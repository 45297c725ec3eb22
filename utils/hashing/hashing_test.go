// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/luxfi/crypto/hash"
	"github.com/stretchr/testify/require"
)

func TestHashToSlice(t *testing.T) {
	require := require.New(t)

	// sha256("abc")
	expected, err := hex.DecodeString("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
	require.NoError(err)
	got := HashToSlice([]byte("abc"))
	require.Equal(expected, got[:])
}

func TestPrefixedHash(t *testing.T) {
	require := require.New(t)

	got := PrefixedHash("ZKCHANNELS_STATE", []byte{1, 2}, []byte{3})
	want := sha256.Sum256([]byte("ZKCHANNELS_STATE\x01\x02\x03"))
	require.Equal(want, got)
	require.Equal(got, ComputeHash256([]byte("ZKCHANNELS_STATE"), []byte{1, 2, 3}))
}

func TestFingerprint(t *testing.T) {
	require := require.New(t)

	a := FingerprintHex([]byte{2, 1})
	b := FingerprintHex([]byte{2, 2})
	require.Len(a, 2*FingerprintLen)
	require.NotEqual(a, b)
	require.Equal(a, FingerprintHex([]byte{2, 1}))
}

func TestFingerprintIsHash160OfSha256(t *testing.T) {
	require := require.New(t)

	pubKey := []byte{3, 0xaa, 0xbb}
	digest := HashToSlice(pubKey)
	require.Equal(hash.ComputeHash160Array(digest[:]), Fingerprint(pubKey))
}
