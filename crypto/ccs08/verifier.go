// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ccs08

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/luxfi/log"

	lru "github.com/hashicorp/golang-lru"

	"github.com/luxfi/zkchannels/crypto/pedersen"
)

// DefaultCacheSize is the number of verification results kept by a Verifier.
const DefaultCacheSize = 1024

// VerifierStats counts verifications served by a Verifier.
type VerifierStats struct {
	VerifyCount uint64
	CacheHits   uint64
	CacheMisses uint64
}

// Verifier verifies range proofs under fixed parameters and remembers the
// outcome of recently seen (commitment, proof, challenge) triples.
type Verifier struct {
	params *RPPublicParams
	log    log.Logger

	resultCache *lru.Cache

	stats VerifierStats
	mu    sync.Mutex
}

// NewVerifier creates a verifier for params.
func NewVerifier(params *RPPublicParams, cacheSize int, log log.Logger) (*Verifier, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Verifier{
		params:      params,
		log:         log,
		resultCache: cache,
	}, nil
}

// Params returns the public parameters proofs are verified against.
func (v *Verifier) Params() *RPPublicParams {
	return v.params
}

// Verify checks proof for com at base k under challenge c.
func (v *Verifier) Verify(com *pedersen.Commitment, proof *RangeProof, c *fr.Element, k int) bool {
	key, err := v.cacheKey(com, proof, c, k)
	if err != nil {
		v.log.Debug("range proof rejected",
			log.String("reason", "unencodable proof"),
			log.Err(err),
		)
		return false
	}

	v.mu.Lock()
	v.stats.VerifyCount++
	if cached, ok := v.resultCache.Get(key); ok {
		v.stats.CacheHits++
		v.mu.Unlock()
		return cached.(bool)
	}
	v.stats.CacheMisses++
	v.mu.Unlock()

	ok := v.params.Verify(com, proof, c, k)
	v.resultCache.Add(key, ok)
	if !ok {
		v.log.Debug("range proof rejected",
			log.Int("base", k),
			log.Int("digits", int(v.params.P.L)),
		)
	}
	return ok
}

// Stats returns a snapshot of the verification counters.
func (v *Verifier) Stats() VerifierStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}

func (*Verifier) cacheKey(com *pedersen.Commitment, proof *RangeProof, c *fr.Element, k int) (string, error) {
	if proof == nil || proof.P1 == nil || proof.P2 == nil {
		return "", errBadParams
	}
	proofBytes, err := proof.MarshalBinary()
	if err != nil {
		return "", err
	}
	h := sha256.New()
	_, _ = h.Write(com.Bytes())
	_, _ = h.Write(proofBytes)
	cb := c.Bytes()
	_, _ = h.Write(cb[:])
	_ = binary.Write(h, binary.BigEndian, uint32(k))
	return string(h.Sum(nil)), nil
}
