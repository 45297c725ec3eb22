// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channels

import (
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/luxfi/zkchannels/crypto/cl"
	"github.com/luxfi/zkchannels/crypto/group"
	"github.com/luxfi/zkchannels/crypto/pedersen"
	"github.com/luxfi/zkchannels/utils/math"
	"github.com/luxfi/zkchannels/wallet"
)

// CustomerState is one version of the customer wallet together with the
// tokens the merchant issued on it.
type CustomerState struct {
	Name string
	PkC  []byte
	skC  *secp256k1.PrivateKey

	Wallet wallet.Wallet
	// Wpk is the compressed public key whose hash is Wallet.Wpk.
	Wpk []byte
	wsk *secp256k1.PrivateKey

	Com *pedersen.Commitment
	r   fr.Element

	CloseToken *cl.Signature
	PayToken   *cl.Signature
	Index      int
}

// Payment is sent by the customer to the merchant.
type Payment struct {
	Proof *NIZKProof
	Com   *pedersen.Commitment
	// Wpk is the key of the wallet being spent.
	Wpk    []byte
	Amount int64
}

// InitCustomer creates the customer's first wallet and sets its key on
// the channel token.
func InitCustomer(rng io.Reader, token *ChannelToken, b0Cust, b0Merch int64, name string) (*CustomerState, error) {
	if token.Params == nil {
		return nil, phaseErr(PhaseEstablish, ErrNoParams)
	}
	if b0Cust < 0 || b0Merch < 0 {
		return nil, phaseErr(PhaseEstablish, fmt.Errorf("%w: customer %d, merchant %d", ErrInvalidBalance, b0Cust, b0Merch))
	}

	skC, err := secp256k1.GeneratePrivateKeyFromRand(rng)
	if err != nil {
		return nil, err
	}
	token.PkC = skC.PubKey().SerializeCompressed()

	cust := &CustomerState{
		Name: name,
		PkC:  token.PkC,
		skC:  skC,
	}
	err = cust.setWallet(rng, token.Params, token.ComputeChannelID(), b0Cust, b0Merch)
	return cust, err
}

// setWallet samples a fresh wallet key and commitment randomness and commits
// to the resulting pay wallet.
func (c *CustomerState) setWallet(rng io.Reader, params *ChannelParams, cid fr.Element, bc, bm int64) error {
	wsk, err := secp256k1.GeneratePrivateKeyFromRand(rng)
	if err != nil {
		return err
	}
	wpk := wsk.PubKey().SerializeCompressed()
	r, err := group.RandomScalar(rng)
	if err != nil {
		return err
	}
	w := wallet.Wallet{
		ChannelID: cid,
		Wpk:       group.HashToScalar(wpk),
		BC:        bc,
		BM:        bm,
	}
	com, err := params.ComParams.Commit(w.Slots(), &r)
	if err != nil {
		return err
	}

	c.Wallet = w
	c.Wpk = wpk
	c.wsk = wsk
	c.Com = com
	c.r = r
	c.CloseToken = nil
	c.PayToken = nil
	return nil
}

// HasTokens reports whether both tokens on the current wallet are held.
func (c *CustomerState) HasTokens() bool {
	return c.CloseToken != nil && c.PayToken != nil
}

// VerifyCloseToken unblinds a close token on the current wallet and keeps it
// if it verifies.
func (c *CustomerState) VerifyCloseToken(channel *ChannelState, blinded *cl.Signature) bool {
	params := channel.Params
	sig := cl.Unblind(&c.r, blinded)
	if !params.PK.Verify(params.MPK, c.Wallet.CloseWallet().Slots(), sig) {
		return false
	}
	c.CloseToken = sig
	return true
}

// VerifyPayToken unblinds a pay token on the current wallet and keeps it if
// it verifies.
func (c *CustomerState) VerifyPayToken(channel *ChannelState, blinded *cl.Signature) bool {
	params := channel.Params
	sig := cl.Unblind(&c.r, blinded)
	if !params.PK.Verify(params.MPK, c.Wallet.Slots(), sig) {
		return false
	}
	c.PayToken = sig
	return true
}

// EstablishCustomerGenerateProof proves knowledge of the opening of the
// initial wallet commitment, disclosing the channel id and both balances.
func EstablishCustomerGenerateProof(rng io.Reader, channel *ChannelState, cust *CustomerState) (*pedersen.Commitment, *pedersen.Proof, error) {
	if channel.Params == nil {
		return nil, nil, phaseErr(PhaseEstablish, ErrNoParams)
	}
	proof, err := channel.Params.ComParams.ProveOpening(
		rng,
		cust.Com,
		cust.Wallet.Slots(),
		&cust.r,
		[]int{wallet.SlotChannelID, wallet.SlotBC, wallet.SlotBM, wallet.SlotClose},
	)
	if err != nil {
		return nil, nil, phaseErr(PhaseEstablish, err)
	}
	return cust.Com, proof, nil
}

// EstablishCustomerFinal verifies the initial pay token. The channel is
// established once the customer holds both tokens.
func EstablishCustomerFinal(channel *ChannelState, cust *CustomerState, payToken *cl.Signature) bool {
	if !cust.VerifyPayToken(channel, payToken) || !cust.HasTokens() {
		return false
	}
	channel.Established = true
	return true
}

// GeneratePaymentProof builds a payment of amount plus the channel fee. The
// returned state holds the new wallet; cust is left untouched and must be
// kept until the revoke token is produced.
func GeneratePaymentProof(rng io.Reader, channel *ChannelState, cust *CustomerState, amount int64) (*Payment, *CustomerState, error) {
	if !channel.Established || cust.PayToken == nil {
		return nil, nil, phaseErr(PhasePay, ErrNotEstablished)
	}
	epsilon, newBC, newBM, err := applyPayment(channel, cust.Wallet.BC, cust.Wallet.BM, amount)
	if err != nil {
		return nil, nil, phaseErr(PhasePay, err)
	}

	next := &CustomerState{
		Name:  cust.Name,
		PkC:   cust.PkC,
		skC:   cust.skC,
		Index: cust.Index + 1,
	}
	if err := next.setWallet(rng, channel.Params, cust.Wallet.ChannelID, newBC, newBM); err != nil {
		return nil, nil, phaseErr(PhasePay, err)
	}

	proof, err := proveNIZK(rng, channel.Params, &cust.Wallet, cust.PayToken, &next.Wallet, next.Com, &next.r, cust.Wpk, epsilon)
	if err != nil {
		return nil, nil, phaseErr(PhasePay, err)
	}
	return &Payment{
		Proof:  proof,
		Com:    next.Com,
		Wpk:    cust.Wpk,
		Amount: amount,
	}, next, nil
}

// applyPayment returns the amount moved, including the channel fee, and the
// resulting balances. Balances below the dust limit are rejected.
func applyPayment(channel *ChannelState, bc, bm, amount int64) (int64, int64, int64, error) {
	epsilon, err := math.Add(amount, channel.Fee)
	if err != nil {
		return 0, 0, 0, err
	}
	newBC, err := math.Sub(bc, epsilon)
	if err != nil {
		return 0, 0, 0, err
	}
	newBM, err := math.Add(bm, epsilon)
	if err != nil {
		return 0, 0, 0, err
	}
	if newBC < channel.DustLimit || newBM < channel.DustLimit {
		return 0, 0, 0, fmt.Errorf("%w: %d, max payment: %d", ErrDustLimit, channel.DustLimit, bc-channel.DustLimit-channel.Fee)
	}
	if newBC > channel.MaxBalance || newBM > channel.MaxBalance {
		return 0, 0, 0, fmt.Errorf("%w: above maximum %d", ErrInvalidBalance, channel.MaxBalance)
	}
	return epsilon, newBC, newBM, nil
}

// GenerateRevokeToken verifies the close token on the new wallet and revokes
// the wallet of cust. On success next holds the close token.
func GenerateRevokeToken(channel *ChannelState, cust, next *CustomerState, closeToken *cl.Signature) (*RevokeToken, error) {
	if !next.VerifyCloseToken(channel, closeToken) {
		return nil, phaseErr(PhaseRevoke, ErrBadToken)
	}
	msg := NewRevokedMessage(cust.Wpk)
	h := msg.Hash()
	sig, err := signECDSA(cust.wsk, h[:])
	if err != nil {
		return nil, phaseErr(PhaseRevoke, err)
	}
	return &RevokeToken{
		Message:   msg,
		Signature: sig,
	}, nil
}

// CustomerClose signs the close wallet of the current state.
func CustomerClose(channel *ChannelState, cust *CustomerState) (*CloseC, error) {
	if cust.CloseToken == nil {
		return nil, phaseErr(PhaseClose, ErrNotEstablished)
	}
	closeC := &CloseC{
		Wallet: cust.Wallet.CloseWallet(),
		Token:  *cust.CloseToken,
		Wpk:    cust.Wpk,
	}
	h := closeC.Hash()
	sig, err := signECDSA(cust.wsk, h[:])
	if err != nil {
		return nil, phaseErr(PhaseClose, err)
	}
	closeC.Signature = sig
	return closeC, nil
}
