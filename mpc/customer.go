// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mpc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/luxfi/zkchannels/store"
	"github.com/luxfi/zkchannels/utils/hashing"
	"github.com/luxfi/zkchannels/utils/math"
	"github.com/luxfi/zkchannels/wallet"
)

// CustomerMPCState is the customer's view of an MPC channel.
type CustomerMPCState struct {
	Name string
	PkC  []byte
	skC  *secp256k1.PrivateKey
	PkM  []byte

	CustBalance  int64
	MerchBalance int64
	FeeInfo      TransactionFeeInfo

	ProtocolStatus ProtocolStatus
	ChannelStatus  ChannelStatus
	Index          int

	// state is nil until the funding outputs are known.
	state     *wallet.State
	revSecret [RevSecretLen]byte
	oldPairs  []LockPreimagePair
	payToken  *[32]byte
	closeSigs *CloseSignatures
	pending   *pendingPayment
}

type pendingPayment struct {
	sessionID  SessionID
	amount     int64
	state      *wallet.State
	revSecret  [RevSecretLen]byte
	revLockT   [RevLockTLen]byte
	revLockCom [32]byte
	payMaskCom [32]byte
	output     *CustomerOutput
	// unmasked is set once the close signatures on state verified.
	unmasked bool
}

// PaymentRequest is sent to the merchant to open a payment session.
type PaymentRequest struct {
	SessionID  SessionID
	Nonce      wallet.Nonce
	RevLockCom [32]byte
	Amount     int64
}

// InitCustomer creates a customer for a channel with the merchant key pkM.
// When the merchant contributes nothing, the customer funds the merchant's
// dust reserve, merch-close fee and child-pays-for-parent output.
func InitCustomer(rng io.Reader, pkM []byte, b0Cust, b0Merch int64, feeInfo TransactionFeeInfo, name string) (*ChannelMPCToken, *CustomerMPCState, error) {
	if _, err := secp256k1.ParsePubKey(pkM); err != nil {
		return nil, nil, fmt.Errorf("invalid merchant key: %w", err)
	}
	if b0Cust <= 0 || b0Merch < 0 {
		return nil, nil, fmt.Errorf("%w: customer %d, merchant %d", ErrInvalidBalance, b0Cust, b0Merch)
	}

	if b0Merch == 0 {
		reserve, err := math.Add(feeInfo.BalMinMerch, feeInfo.FeeMC)
		if err == nil {
			reserve, err = math.Add(reserve, feeInfo.ValCPFP)
		}
		if err != nil {
			return nil, nil, err
		}
		b0Cust -= reserve
		b0Merch = reserve
	}
	if b0Cust < feeInfo.BalMinCust || b0Merch < feeInfo.BalMinMerch {
		return nil, nil, fmt.Errorf("%w: customer %d, merchant %d", ErrDustLimit, b0Cust, b0Merch)
	}

	skC, err := secp256k1.GeneratePrivateKeyFromRand(rng)
	if err != nil {
		return nil, nil, err
	}
	cust := &CustomerMPCState{
		Name:         name,
		PkC:          skC.PubKey().SerializeCompressed(),
		skC:          skC,
		PkM:          bytes.Clone(pkM),
		CustBalance:  b0Cust,
		MerchBalance: b0Merch,
		FeeInfo:      feeInfo,
	}
	token := &ChannelMPCToken{
		PkC: cust.PkC,
		PkM: cust.PkM,
	}
	return token, cust, nil
}

// InitFunding records the funding outputs on token and builds the initial
// state.
func InitFunding(rng io.Reader, token *ChannelMPCToken, txInfo FundingTxInfo, cust *CustomerMPCState) error {
	if err := checkProtocolStatus("init funding", cust.ProtocolStatus, ProtocolNew); err != nil {
		return err
	}
	if txInfo.InitCustBal != cust.CustBalance || txInfo.InitMerchBal != cust.MerchBalance {
		return fmt.Errorf("%w: funding %d/%d, channel %d/%d", ErrInvalidBalance,
			txInfo.InitCustBal, txInfo.InitMerchBal, cust.CustBalance, cust.MerchBalance)
	}

	nonce, err := wallet.NewNonce(rng)
	if err != nil {
		return err
	}
	var secret [RevSecretLen]byte
	if _, err := io.ReadFull(rng, secret[:]); err != nil {
		return err
	}

	token.EscrowTxID = txInfo.EscrowTxID
	token.EscrowPrevout = txInfo.EscrowPrevout
	token.MerchTxID = txInfo.MerchTxID
	token.MerchPrevout = txInfo.MerchPrevout

	cust.revSecret = secret
	cust.state = &wallet.State{
		Nonce:         nonce,
		RevLock:       sha256.Sum256(secret[:]),
		BC:            cust.CustBalance,
		BM:            cust.MerchBalance,
		EscrowTxID:    txInfo.EscrowTxID,
		EscrowPrevout: txInfo.EscrowPrevout,
		MerchTxID:     txInfo.MerchTxID,
		MerchPrevout:  txInfo.MerchPrevout,
		MinFee:        cust.FeeInfo.MinFee,
		MaxFee:        cust.FeeInfo.MaxFee,
		FeeMC:         cust.FeeInfo.FeeMC,
	}
	return changeProtocolStatus("init funding", &cust.ProtocolStatus, ProtocolInitialized)
}

// GetInitialState returns the initial state for the merchant to validate,
// and its hash.
func GetInitialState(cust *CustomerMPCState) (*InitCustState, hashing.Hash256, error) {
	if err := checkProtocolStatus("get initial state", cust.ProtocolStatus, ProtocolInitialized); err != nil {
		return nil, hashing.Hash256{}, err
	}
	s := cust.state
	return &InitCustState{
		PkC:      cust.PkC,
		Nonce:    s.Nonce,
		RevLock:  s.RevLock,
		CustBal:  s.BC,
		MerchBal: s.BM,
		MinFee:   s.MinFee,
		MaxFee:   s.MaxFee,
		FeeMC:    s.FeeMC,
	}, s.ComputeHash(), nil
}

// VerifyInitialClose checks the merchant's signatures on both close
// transactions of the initial state. The channel is then pending open.
func VerifyInitialClose(token *ChannelMPCToken, sigs *CloseSignatures, cust *CustomerMPCState) (bool, error) {
	if err := checkProtocolStatus("verify initial close", cust.ProtocolStatus, ProtocolInitialized); err != nil {
		return false, err
	}
	if err := checkChannelStatus("verify initial close", cust.ChannelStatus, ChannelNone); err != nil {
		return false, err
	}
	if !verifyCloseSignatures(token.PkM, cust.state, sigs) {
		return false, nil
	}
	cust.closeSigs = sigs
	return true, changeChannelStatus("verify initial close", &cust.ChannelStatus, ChannelPendingOpen)
}

// CustomerMarkOpenChannel records that the escrow transaction confirmed.
func CustomerMarkOpenChannel(cust *CustomerMPCState) error {
	return changeChannelStatus("mark open", &cust.ChannelStatus, ChannelOpen)
}

// CustomerChangeChannelStatus moves the customer's channel status along an
// allowed transition, for events observed on chain.
func CustomerChangeChannelStatus(cust *CustomerMPCState, next ChannelStatus) error {
	return changeChannelStatus("change channel status", &cust.ChannelStatus, next)
}

// ActivateCustomer returns the initial state for the merchant to issue the
// first pay token on.
func ActivateCustomer(cust *CustomerMPCState) (*wallet.State, error) {
	if err := checkProtocolStatus("activate", cust.ProtocolStatus, ProtocolInitialized); err != nil {
		return nil, err
	}
	if err := checkChannelStatus("activate", cust.ChannelStatus, ChannelOpen); err != nil {
		return nil, err
	}
	s := *cust.state
	return &s, nil
}

// ActivateCustomerFinalize stores the first pay token.
func ActivateCustomerFinalize(payToken [32]byte, cust *CustomerMPCState) error {
	if err := changeProtocolStatus("activate finalize", &cust.ProtocolStatus, ProtocolActivated); err != nil {
		return err
	}
	cust.payToken = &payToken
	return nil
}

// PayPrepareCustomer stages a payment of amount. A negative amount is a
// refund from the merchant and is only allowed once a payment has been
// made. The returned RevokedState must be kept until the new close
// signatures verify.
func PayPrepareCustomer(rng io.Reader, channel *ChannelMPCState, amount int64, cust *CustomerMPCState) (*PaymentRequest, *RevokedState, error) {
	switch cust.ProtocolStatus {
	case ProtocolActivated:
		if amount < 0 {
			return nil, nil, fmt.Errorf("%w: refund of %d before first payment", ErrInvalidBalance, -amount)
		}
	case ProtocolEstablished:
		if amount == 0 {
			return nil, nil, fmt.Errorf("%w: zero payment", ErrInvalidBalance)
		}
	default:
		return nil, nil, checkProtocolStatus("pay prepare", cust.ProtocolStatus, ProtocolActivated, ProtocolEstablished)
	}
	if err := checkChannelStatus("pay prepare", cust.ChannelStatus, ChannelOpen); err != nil {
		return nil, nil, err
	}
	if cust.payToken == nil {
		return nil, nil, ErrNoPayToken
	}

	newBC, err := math.Sub(cust.state.BC, amount)
	if err != nil {
		return nil, nil, err
	}
	newBM, err := math.Add(cust.state.BM, amount)
	if err != nil {
		return nil, nil, err
	}
	fees := channel.FeeInfo
	if newBC < fees.BalMinCust || newBM < fees.BalMinMerch {
		return nil, nil, fmt.Errorf("%w: customer %d (min %d), merchant %d (min %d)",
			ErrDustLimit, newBC, fees.BalMinCust, newBM, fees.BalMinMerch)
	}

	sessionID, err := NewSessionID(rng)
	if err != nil {
		return nil, nil, err
	}
	nonce, err := wallet.NewNonce(rng)
	if err != nil {
		return nil, nil, err
	}
	p := &pendingPayment{
		sessionID: sessionID,
		amount:    amount,
	}
	if _, err := io.ReadFull(rng, p.revSecret[:]); err != nil {
		return nil, nil, err
	}
	if _, err := io.ReadFull(rng, p.revLockT[:]); err != nil {
		return nil, nil, err
	}

	next := *cust.state
	next.Nonce = nonce
	next.RevLock = sha256.Sum256(p.revSecret[:])
	next.BC = newBC
	next.BM = newBM
	p.state = &next
	p.revLockCom = commitRevLock(cust.state.RevLock, p.revLockT)
	cust.pending = p

	return &PaymentRequest{
			SessionID:  sessionID,
			Nonce:      cust.state.Nonce,
			RevLockCom: p.revLockCom,
			Amount:     amount,
		}, &RevokedState{
			LockPreimagePair: LockPreimagePair{
				RevLock:   cust.state.RevLock,
				RevSecret: cust.revSecret,
			},
			T: p.revLockT,
		}, nil
}

// PayUpdateCustomer runs the customer side of the payment MPC. It returns
// false if the functionality rejected the inputs.
func PayUpdateCustomer(ctx context.Context, engine Engine, t Transport, channel *ChannelMPCState, payMaskCom [32]byte, cust *CustomerMPCState) (bool, error) {
	if err := checkProtocolStatus("pay update", cust.ProtocolStatus, ProtocolActivated, ProtocolEstablished); err != nil {
		return false, err
	}
	p := cust.pending
	if p == nil || p.output != nil {
		return false, ErrNoPendingPayment
	}

	in := &CustomerInput{
		PublicInputs: PublicInputs{
			PkM:         cust.PkM,
			Amount:      p.amount,
			Nonce:       cust.state.Nonce,
			RevLockCom:  p.revLockCom,
			PayMaskCom:  payMaskCom,
			BalMinCust:  channel.FeeInfo.BalMinCust,
			BalMinMerch: channel.FeeInfo.BalMinMerch,
		},
		OldState:    cust.state,
		NewState:    p.state,
		OldPayToken: *cust.payToken,
		RevLockT:    p.revLockT,
	}
	out, err := engine.ExecuteCustomer(ctx, t, in)
	switch {
	case errors.Is(err, ErrMPCFailed):
		cust.pending = nil
		return false, nil
	case err != nil:
		cust.pending = nil
		return false, err
	}
	p.payMaskCom = payMaskCom
	p.output = out
	return true, nil
}

// PayUnmaskSigsCustomer unmasks the close signatures on the new state. Once
// they verify the customer moves to the new state and may reveal the
// secret of the old one.
func PayUnmaskSigsCustomer(token *ChannelMPCToken, masked *store.MaskedMPCInputs, cust *CustomerMPCState) (bool, error) {
	if err := checkProtocolStatus("unmask sigs", cust.ProtocolStatus, ProtocolActivated, ProtocolEstablished); err != nil {
		return false, err
	}
	p := cust.pending
	if p == nil || p.output == nil || p.unmasked {
		return false, ErrNoPendingPayment
	}

	escrowSig, err := unmaskSignature(masked.REscrowSig, p.output.MaskedEscrowS, masked.EscrowMask)
	if err != nil {
		return false, nil
	}
	merchSig, err := unmaskSignature(masked.RMerchSig, p.output.MaskedMerchS, masked.MerchMask)
	if err != nil {
		return false, nil
	}
	sigs := &CloseSignatures{Escrow: escrowSig, Merch: merchSig}
	if !verifyCloseSignatures(token.PkM, p.state, sigs) {
		return false, nil
	}

	cust.oldPairs = append(cust.oldPairs, LockPreimagePair{
		RevLock:   cust.state.RevLock,
		RevSecret: cust.revSecret,
	})
	cust.state = p.state
	cust.revSecret = p.revSecret
	cust.CustBalance = p.state.BC
	cust.MerchBalance = p.state.BM
	cust.closeSigs = sigs
	cust.payToken = nil
	cust.Index++
	p.unmasked = true
	return true, nil
}

// PayUnmaskPayTokenCustomer unmasks the pay token on the new state.
func PayUnmaskPayTokenCustomer(payMask [32]byte, payMaskR [16]byte, cust *CustomerMPCState) (bool, error) {
	p := cust.pending
	if p == nil || !p.unmasked {
		return false, ErrNoPendingPayment
	}
	if commitPayMask(payMask, payMaskR) != p.payMaskCom {
		return false, nil
	}
	if err := changeProtocolStatus("unmask pay token", &cust.ProtocolStatus, ProtocolEstablished); err != nil {
		return false, err
	}

	var pt [32]byte
	for i := range pt {
		pt[i] = p.output.MaskedPayToken[i] ^ payMask[i]
	}
	cust.payToken = &pt
	cust.pending = nil
	return true, nil
}

// ForceCustomerClose signs a close on the current state, spending from
// escrow or from merch-close.
func ForceCustomerClose(token *ChannelMPCToken, fromEscrow bool, cust *CustomerMPCState) (*CloseMessage, error) {
	if cust.closeSigs == nil {
		return nil, ErrNoCloseSignature
	}
	if err := changeChannelStatus("force close", &cust.ChannelStatus, ChannelCustomerInitClose); err != nil {
		return nil, err
	}

	s := *cust.state
	digest := CloseDigest(&s, fromEscrow)
	merchSig := cust.closeSigs.Merch
	if fromEscrow {
		merchSig = cust.closeSigs.Escrow
	}
	return &CloseMessage{
		State:      &s,
		FromEscrow: fromEscrow,
		MerchSig:   merchSig,
		CustSig:    signECDSA(cust.skC, digest[:]),
	}, nil
}

// State returns a copy of the current state, or nil before funding.
func (c *CustomerMPCState) State() *wallet.State {
	if c.state == nil {
		return nil
	}
	s := *c.state
	return &s
}

// RevokedPairs returns the lock and secret of every state the customer has
// moved past.
func (c *CustomerMPCState) RevokedPairs() []LockPreimagePair {
	return append([]LockPreimagePair(nil), c.oldPairs...)
}

// PayToken returns the pay token on the current state.
func (c *CustomerMPCState) PayToken() ([32]byte, bool) {
	if c.payToken == nil {
		return [32]byte{}, false
	}
	return *c.payToken, true
}

func verifyCloseSignatures(pkM []byte, state *wallet.State, sigs *CloseSignatures) bool {
	if state == nil || sigs == nil {
		return false
	}
	escrow := CloseDigest(state, true)
	merch := CloseDigest(state, false)
	return verifyECDSA(pkM, escrow[:], sigs.Escrow) && verifyECDSA(pkM, merch[:], sigs.Merch)
}
