// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hashing holds the byte-level hash helpers shared by the channel
// protocols.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/luxfi/crypto/hash"
)

const (
	HashLen        = hash.HashLen
	FingerprintLen = hash.AddrLen
)

// Hash256 is a sha256 digest.
type Hash256 = hash.Hash256

// HashToSlice returns sha256(input).
func HashToSlice(input []byte) Hash256 {
	return hash.ComputeHash256Array(input)
}

// ComputeHash256 hashes the concatenation of parts.
func ComputeHash256(parts ...[]byte) Hash256 {
	h := sha256.New()
	for _, part := range parts {
		_, _ = h.Write(part)
	}
	var out Hash256
	h.Sum(out[:0])
	return out
}

// PrefixedHash returns sha256(prefix || parts...).
func PrefixedHash(prefix string, parts ...[]byte) Hash256 {
	return ComputeHash256(append([][]byte{[]byte(prefix)}, parts...)...)
}

// Fingerprint identifies a serialized public key by its hash160.
func Fingerprint(pubKey []byte) [FingerprintLen]byte {
	var out [FingerprintLen]byte
	copy(out[:], btcutil.Hash160(pubKey))
	return out
}

// FingerprintHex is the hex form of Fingerprint, used as a map and store key.
func FingerprintHex(pubKey []byte) string {
	fp := Fingerprint(pubKey)
	return hex.EncodeToString(fp[:])
}
