// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channels

import (
	"bytes"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/luxfi/zkchannels/crypto/ccs08"
	"github.com/luxfi/zkchannels/crypto/cl"
	"github.com/luxfi/zkchannels/crypto/group"
	"github.com/luxfi/zkchannels/crypto/pedersen"
	"github.com/luxfi/zkchannels/utils/wrappers"
	"github.com/luxfi/zkchannels/wallet"
)

const nizkLabel = "ZKCHANNELS-PAYMENT"

// NIZKProof proves that the wallet committed in a payment is derived from a
// signed wallet by moving epsilon from the customer to the merchant:
//
//   - knowledge of a pay token on the old wallet, disclosing its wpk,
//   - knowledge of the opening of the new commitment, sharing the channel
//     id and balance blindings with the signature proof,
//   - both new balances lie in the channel range.
//
// All parts answer a single challenge.
type NIZKProof struct {
	SigV     cl.Signature
	SigProof cl.SignatureProof
	ComT     group.G1
	ComZ     []fr.Element
	RangeBC  *ccs08.RangeProof
	RangeBM  *ccs08.RangeProof
}

func proveNIZK(
	rng io.Reader,
	params *ChannelParams,
	oldWallet *wallet.Wallet,
	payToken *cl.Signature,
	newWallet *wallet.Wallet,
	newCom *pedersen.Commitment,
	newR *fr.Element,
	wpk []byte,
	epsilon int64,
) (*NIZKProof, error) {
	t, err := group.RandomScalars(rng, wallet.NumSlots)
	if err != nil {
		return nil, err
	}
	// disclosed
	t[wallet.SlotWpk].SetZero()
	t[wallet.SlotClose].SetZero()

	sigState, err := params.PK.ProveCommitment(rng, params.MPK, payToken, t, nil)
	if err != nil {
		return nil, err
	}

	tNew := make([]fr.Element, wallet.NumSlots)
	tNew[wallet.SlotChannelID] = t[wallet.SlotChannelID]
	tNew[wallet.SlotBC] = t[wallet.SlotBC]
	tNew[wallet.SlotBM] = t[wallet.SlotBM]
	tNew[wallet.SlotWpk], err = group.RandomScalar(rng)
	if err != nil {
		return nil, err
	}
	comProver, err := params.ComParams.NewProver(rng, []int{wallet.SlotClose}, tNew)
	if err != nil {
		return nil, err
	}

	kBC := commitmentIndex(wallet.SlotBC)
	kBM := commitmentIndex(wallet.SlotBM)
	rangeBC, err := params.RangeProof.ProveCommitment(rng, newWallet.BC, newCom, kBC, nil, nil)
	if err != nil {
		return nil, err
	}
	rangeBM, err := params.RangeProof.ProveCommitment(rng, newWallet.BM, newCom, kBM, nil, nil)
	if err != nil {
		return nil, err
	}

	aBC, dBC := rangeBC.Transcript()
	aBM, dBM := rangeBM.Transcript()
	c := nizkChallenge(&sigState.A, &sigState.V, &comProver.T, newCom, wpk, epsilon, aBC, dBC, aBM, dBM)

	sigProof, err := params.PK.ProveResponse(sigState, &c, oldWallet.Slots())
	if err != nil {
		return nil, err
	}
	newSlots := newWallet.Slots()
	z, err := comProver.Respond(&c, newSlots, newR)
	if err != nil {
		return nil, err
	}
	proofBC, err := params.RangeProof.ProveResponse(newR, rangeBC, &c, kBC, otherMessages(newSlots, wallet.SlotBC))
	if err != nil {
		return nil, err
	}
	proofBM, err := params.RangeProof.ProveResponse(newR, rangeBM, &c, kBM, otherMessages(newSlots, wallet.SlotBM))
	if err != nil {
		return nil, err
	}

	return &NIZKProof{
		SigV:     sigState.V,
		SigProof: *sigProof,
		ComT:     comProver.T,
		ComZ:     z,
		RangeBC:  proofBC,
		RangeBM:  proofBM,
	}, nil
}

// verifyNIZK checks proof for a payment of epsilon spending the wallet
// identified by wpk. rangeVerify checks a range proof under the challenge.
func verifyNIZK(
	params *ChannelParams,
	proof *NIZKProof,
	newCom *pedersen.Commitment,
	wpk []byte,
	epsilon int64,
	rangeVerify func(*pedersen.Commitment, *ccs08.RangeProof, *fr.Element, int) bool,
) bool {
	if proof == nil ||
		proof.RangeBC == nil || proof.RangeBM == nil ||
		len(proof.SigProof.Zsig) != wallet.NumSlots ||
		len(proof.ComZ) != wallet.NumSlots+1 {
		return false
	}

	aBC, dBC := proof.RangeBC.Transcript()
	aBM, dBM := proof.RangeBM.Transcript()
	c := nizkChallenge(&proof.SigProof.A, &proof.SigV, &proof.ComT, newCom, wpk, epsilon, aBC, dBC, aBM, dBM)

	if !params.PK.VerifyProof(params.MPK, &proof.SigV, &proof.SigProof, &c) {
		return false
	}

	// the old wallet is a pay wallet with the disclosed wpk
	zsig := proof.SigProof.Zsig
	wpkScalar := group.HashToScalar(wpk)
	var expected fr.Element
	expected.Mul(&c, &wpkScalar)
	if !zsig[wallet.SlotWpk].Equal(&expected) || !zsig[wallet.SlotClose].IsZero() {
		return false
	}

	var zero fr.Element
	if !params.ComParams.VerifyResponses(newCom, &proof.ComT, proof.ComZ, &c, map[int]fr.Element{wallet.SlotClose: zero}) {
		return false
	}

	// same channel id, bc' = bc - epsilon, bm' = bm + epsilon
	eps := group.ScalarFromInt64(epsilon)
	var ce fr.Element
	ce.Mul(&c, &eps)
	var zbc, zbm fr.Element
	zbc.Sub(&zsig[wallet.SlotBC], &ce)
	zbm.Add(&zsig[wallet.SlotBM], &ce)
	z := proof.ComZ
	if !z[commitmentIndex(wallet.SlotChannelID)].Equal(&zsig[wallet.SlotChannelID]) ||
		!z[commitmentIndex(wallet.SlotBC)].Equal(&zbc) ||
		!z[commitmentIndex(wallet.SlotBM)].Equal(&zbm) {
		return false
	}

	return rangeVerify(newCom, proof.RangeBC, &c, commitmentIndex(wallet.SlotBC)) &&
		rangeVerify(newCom, proof.RangeBM, &c, commitmentIndex(wallet.SlotBM))
}

func nizkChallenge(
	a *group.GT,
	v *cl.Signature,
	comT *group.G1,
	newCom *pedersen.Commitment,
	wpk []byte,
	epsilon int64,
	aBC []group.GT, dBC []group.G1,
	aBM []group.GT, dBM []group.G1,
) fr.Element {
	var buf bytes.Buffer
	buf.WriteString(nizkLabel)
	buf.Write(group.GTBytes(a))
	buf.Write(group.G1Bytes(&v.H1))
	buf.Write(group.G1Bytes(&v.H2))
	buf.Write(group.G1Bytes(comT))
	buf.Write(newCom.Bytes())
	ccs08.WriteTranscript(&buf, aBC, dBC)
	ccs08.WriteTranscript(&buf, aBM, dBM)

	p := wrappers.NewWriter(len(wpk)+wrappers.IntLen+wrappers.LongLen, 1<<10)
	p.PackBytes(wpk)
	p.PackSignedLong(epsilon)
	buf.Write(p.Bytes)
	return group.HashToScalar(buf.Bytes())
}
