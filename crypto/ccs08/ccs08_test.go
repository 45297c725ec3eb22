// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ccs08

import (
	"crypto/rand"
	"strconv"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/zkchannels/crypto/group"
	"github.com/luxfi/zkchannels/crypto/pedersen"
)

// committedValue commits to [7, x, 9] and returns the opening data needed to
// prove x at base 2.
type committedValue struct {
	com    *pedersen.Commitment
	r      fr.Element
	otherM []fr.Element
}

func commitValue(t *testing.T, cs *pedersen.CSMultiParams, x int64) committedValue {
	r, err := group.RandomScalar(rand.Reader)
	require.NoError(t, err)
	msgs := []fr.Element{
		group.ScalarFromInt64(7),
		group.ScalarFromInt64(x),
		group.ScalarFromInt64(9),
	}
	com, err := cs.Commit(msgs, &r)
	require.NoError(t, err)
	return committedValue{
		com:    com,
		r:      r,
		otherM: []fr.Element{msgs[0], msgs[2]},
	}
}

func newCommitParams(t *testing.T) *pedersen.CSMultiParams {
	cs, err := pedersen.SetupGenParams(rand.Reader, 3)
	require.NoError(t, err)
	return cs
}

func TestDecompose(t *testing.T) {
	tests := []struct {
		x, u, l int64
		want    []int64
	}{
		{x: 25, u: 3, l: 3, want: []int64{1, 2, 2}},
		{x: 143225, u: 6, l: 7, want: []int64{5, 2, 0, 3, 2, 0, 3}},
		{x: 0, u: 57, l: 2, want: []int64{0, 0}},
		{x: 57*57 - 1, u: 57, l: 2, want: []int64{56, 56}},
	}
	for _, test := range tests {
		got, err := Decompose(test.x, test.u, test.l)
		require.NoError(t, err)
		require.Equal(t, test.want, got)
	}
}

func TestDecomposeOutOfRange(t *testing.T) {
	require := require.New(t)

	_, err := Decompose(27, 3, 3)
	require.ErrorIs(err, ErrOutOfRange)
	_, err = Decompose(-1, 3, 3)
	require.ErrorIs(err, ErrOutOfRange)
	_, err = Decompose(1, 1, 3)
	require.ErrorIs(err, ErrInvalidBase)
}

func TestDeriveUL(t *testing.T) {
	tests := []struct {
		name    string
		a, b, u int64
		want    int64
		err     error
	}{
		{name: "small", a: 2, b: 10, u: 57, want: 1},
		{name: "two digits", a: 0, b: 2000, u: 57, want: 2},
		{name: "width dominates", a: -100, b: 50, u: 57, want: 2},
		{name: "base boundary", a: 0, b: 57, u: 57, want: 2},
		{name: "inverted", a: 10, b: 2, u: 57, err: ErrInvalidRange},
		{name: "degenerate", a: 0, b: 2, u: 57, err: ErrDegenerateRange},
		{name: "negative", a: -2, b: -1, u: 57, err: ErrDegenerateRange},
		{name: "bad base", a: 0, b: 10, u: 1, err: ErrInvalidBase},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			l, err := DeriveUL(test.a, test.b, test.u)
			require.ErrorIs(t, err, test.err)
			require.Equal(t, test.want, l)
		})
	}
}

func TestSetupUL(t *testing.T) {
	require := require.New(t)

	cs := newCommitParams(t)
	sp, err := SetupUL(rand.Reader, 57, 1, cs)
	require.NoError(err)
	require.Len(sp.Pub.Signatures, 57)
	require.Equal(int64(57), sp.Pub.U)
	require.Equal(int64(1), sp.Pub.L)

	zero := fr.Element{}
	for i := int64(0); i < sp.Pub.U; i++ {
		sig, ok := sp.Pub.Signatures[strconv.FormatInt(i, 10)]
		require.True(ok)
		require.True(sp.Pub.PK.VerifyBlind(sp.Pub.MPK, digitScalar(i), &zero, &sig))
	}
}

func TestSetup(t *testing.T) {
	require := require.New(t)

	cs := newCommitParams(t)
	rp, err := Setup(rand.Reader, 2, 10, cs)
	require.NoError(err)
	require.Equal(int64(DefaultDigitBase), rp.Pub.P.U)
	require.Equal(int64(1), rp.Pub.P.L)
	require.Len(rp.Pub.P.Signatures, DefaultDigitBase)

	_, err = Setup(rand.Reader, -2, -1, cs)
	require.ErrorIs(err, ErrDegenerateRange)
	_, err = Setup(rand.Reader, 10, 2, cs)
	require.ErrorIs(err, ErrInvalidRange)
}

func TestSetupULRejects(t *testing.T) {
	require := require.New(t)

	cs := newCommitParams(t)
	_, err := SetupUL(rand.Reader, 1, 2, cs)
	require.ErrorIs(err, ErrInvalidBase)
	_, err = SetupUL(rand.Reader, 10, 0, cs)
	require.ErrorIs(err, ErrInvalidLength)
	_, err = SetupUL(rand.Reader, 1<<32, 3, cs)
	require.ErrorIs(err, ErrRangeOverflow)
}

func TestProveUL(t *testing.T) {
	require := require.New(t)

	cs := newCommitParams(t)
	sp, err := SetupUL(rand.Reader, 6, 7, cs)
	require.NoError(err)
	params := sp.Pub

	cv := commitValue(t, cs, 143225)
	proof, err := params.ProveUL(rand.Reader, 143225, &cv.r, cv.com, 2, cv.otherM)
	require.NoError(err)

	c := ChallengeUL(proof.Transcript())
	require.True(params.VerifyUL(proof, &c, 2))

	// challenge binding
	other := group.HashToScalar([]byte("other"))
	require.False(params.VerifyUL(proof, &other, 2))

	// wrong base index
	require.False(params.VerifyUL(proof, &c, 1))
	require.False(params.VerifyUL(proof, &c, 4))
}

func TestProveULTampered(t *testing.T) {
	require := require.New(t)

	cs := newCommitParams(t)
	sp, err := SetupUL(rand.Reader, 10, 3, cs)
	require.NoError(err)
	params := sp.Pub

	cv := commitValue(t, cs, 421)
	proof, err := params.ProveUL(rand.Reader, 421, &cv.r, cv.com, 2, cv.otherM)
	require.NoError(err)
	c := ChallengeUL(proof.Transcript())
	require.True(params.VerifyUL(proof, &c, 2))

	// part 1 fails when the commitment changes
	tampered := *proof
	tampered.Comm = *commitValue(t, cs, 421).com
	require.False(params.VerifyUL(&tampered, &c, 2))

	// part 2 fails when a digit proof is corrupted, even if part 1 holds
	tampered = *proof
	tampered.V = append(tampered.V[:0:0], proof.V...)
	tampered.V[0] = proof.V[1]
	require.True(params.verifyPart1(&tampered, &c, 2))
	require.False(params.VerifyUL(&tampered, &c, 2))

	// structural mismatches are rejected
	tampered = *proof
	tampered.SigProofs = proof.SigProofs[:2]
	require.False(params.VerifyUL(&tampered, &c, 2))
	tampered = *proof
	tampered.Zs = proof.Zs[:1]
	require.False(params.VerifyUL(&tampered, &c, 2))
}

func TestProveULOutOfRange(t *testing.T) {
	require := require.New(t)

	cs := newCommitParams(t)
	sp, err := SetupUL(rand.Reader, 10, 2, cs)
	require.NoError(err)

	cv := commitValue(t, cs, 100)
	_, err = sp.Pub.ProveUL(rand.Reader, 100, &cv.r, cv.com, 2, cv.otherM)
	require.ErrorIs(err, ErrOutOfRange)

	_, err = sp.Pub.ProveUL(rand.Reader, 5, &cv.r, cv.com, 0, cv.otherM)
	require.ErrorIs(err, ErrBaseIndex)

	_, err = sp.Pub.ProveUL(rand.Reader, 5, &cv.r, cv.com, 2, cv.otherM[:1])
	require.ErrorIs(err, ErrOtherMessages)
}

func TestRangeProofBoundaries(t *testing.T) {
	cs := newCommitParams(t)
	sp, err := Setup(rand.Reader, 10, 100, cs)
	require.NoError(t, err)
	rp := sp.Pub

	for _, x := range []int64{10, 11, 55, 99, 100} {
		t.Run(strconv.FormatInt(x, 10), func(t *testing.T) {
			require := require.New(t)

			cv := commitValue(t, cs, x)
			proof, err := rp.Prove(rand.Reader, x, cv.com, &cv.r, 2, cv.otherM)
			require.NoError(err)
			require.True(rp.VerifyProof(cv.com, proof, 2))
		})
	}
}

func TestRangeProofRejectsOutOfRange(t *testing.T) {
	require := require.New(t)

	cs := newCommitParams(t)
	sp, err := Setup(rand.Reader, 10, 100, cs)
	require.NoError(err)
	rp := sp.Pub

	for _, x := range []int64{9, 101, -1} {
		cv := commitValue(t, cs, x)
		_, err := rp.Prove(rand.Reader, x, cv.com, &cv.r, 2, cv.otherM)
		require.ErrorIs(err, ErrOutOfRange)
	}
}

func TestRangeProofBinding(t *testing.T) {
	require := require.New(t)

	cs := newCommitParams(t)
	sp, err := Setup(rand.Reader, 0, 1000, cs)
	require.NoError(err)
	rp := sp.Pub

	cv := commitValue(t, cs, 500)
	proof, err := rp.Prove(rand.Reader, 500, cv.com, &cv.r, 2, cv.otherM)
	require.NoError(err)
	c := rp.ComputeChallenge(proof)
	require.True(rp.Verify(cv.com, proof, &c, 2))

	other := group.HashToScalar([]byte("other"))
	require.False(rp.Verify(cv.com, proof, &other, 2))

	// a proof does not transfer to another commitment
	cv2 := commitValue(t, cs, 500)
	require.False(rp.VerifyProof(cv2.com, proof, 2))

	// tampering with D changes the challenge and breaks part 1
	tampered := &RangeProof{P1: proof.P1, P2: &ProofUL{}}
	*tampered.P2 = *proof.P2
	tampered.P2.D = proof.P1.D
	require.False(rp.VerifyProof(cv.com, tampered, 2))

	require.False(rp.VerifyProof(cv.com, &RangeProof{}, 2))
	require.False(rp.VerifyProof(cv.com, nil, 2))
}

func TestRangeProofNegativeLowerBound(t *testing.T) {
	require := require.New(t)

	cs := newCommitParams(t)
	sp, err := Setup(rand.Reader, -50, 50, cs)
	require.NoError(err)
	rp := sp.Pub

	for _, x := range []int64{-50, 0, 50} {
		cv := commitValue(t, cs, x)
		proof, err := rp.Prove(rand.Reader, x, cv.com, &cv.r, 2, cv.otherM)
		require.NoError(err)
		require.True(rp.VerifyProof(cv.com, proof, 2))
	}
}

func TestEncodingRoundTrip(t *testing.T) {
	require := require.New(t)

	cs := newCommitParams(t)
	sp, err := Setup(rand.Reader, 0, 300, cs)
	require.NoError(err)

	blob, err := sp.Pub.MarshalBinary()
	require.NoError(err)
	decoded, err := UnmarshalRPPublicParams(blob)
	require.NoError(err)

	again, err := decoded.MarshalBinary()
	require.NoError(err)
	require.Equal(blob, again)

	cv := commitValue(t, cs, 250)
	proof, err := sp.Pub.Prove(rand.Reader, 250, cv.com, &cv.r, 2, cv.otherM)
	require.NoError(err)
	require.True(decoded.VerifyProof(cv.com, proof, 2))

	proofBytes, err := proof.MarshalBinary()
	require.NoError(err)
	decodedProof, err := UnmarshalRangeProof(proofBytes)
	require.NoError(err)
	require.True(decoded.VerifyProof(cv.com, decodedProof, 2))

	_, err = UnmarshalRPPublicParams(blob[:len(blob)-1])
	require.Error(err)
	_, err = UnmarshalRPPublicParams(append(blob, 0))
	require.Error(err)
}

func TestVerifierCache(t *testing.T) {
	require := require.New(t)

	cs := newCommitParams(t)
	sp, err := Setup(rand.Reader, 0, 100, cs)
	require.NoError(err)

	v, err := NewVerifier(sp.Pub, DefaultCacheSize, log.NewNoOpLogger())
	require.NoError(err)

	cv := commitValue(t, cs, 42)
	proof, err := sp.Pub.Prove(rand.Reader, 42, cv.com, &cv.r, 2, cv.otherM)
	require.NoError(err)
	c := sp.Pub.ComputeChallenge(proof)

	require.True(v.Verify(cv.com, proof, &c, 2))
	require.True(v.Verify(cv.com, proof, &c, 2))
	other := group.HashToScalar([]byte("x"))
	require.False(v.Verify(cv.com, proof, &other, 2))

	stats := v.Stats()
	require.Equal(uint64(3), stats.VerifyCount)
	require.Equal(uint64(1), stats.CacheHits)
	require.Equal(uint64(2), stats.CacheMisses)
}

func TestVerifyDigitSignatures(t *testing.T) {
	require := require.New(t)

	sp, err := SetupUL(rand.Reader, 5, 2, newCommitParams(t))
	require.NoError(err)
	require.NoError(sp.Pub.VerifyDigitSignatures(rand.Reader))

	sig := sp.Pub.Signatures["3"]
	sp.Pub.Signatures["3"] = sp.Pub.Signatures["4"]
	require.ErrorIs(sp.Pub.VerifyDigitSignatures(rand.Reader), ErrBadDigitSig)

	sp.Pub.Signatures["3"] = sig
	delete(sp.Pub.Signatures, "0")
	require.ErrorIs(sp.Pub.VerifyDigitSignatures(rand.Reader), ErrMissingDigit)
}
