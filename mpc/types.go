// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mpc runs zkChannels payments whose pay tokens and close
// signatures are computed jointly by the customer and the merchant.
package mpc

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"github.com/luxfi/ids"

	"github.com/luxfi/zkchannels/config"
	"github.com/luxfi/zkchannels/utils/hashing"
	"github.com/luxfi/zkchannels/utils/wrappers"
	"github.com/luxfi/zkchannels/wallet"
)

const (
	channelIDPrefix = "ZKCHANNELS_MPC_CHANNEL_ID"

	RevSecretLen = 32
	// RevLockTLen is the length of the rev lock commitment randomness.
	RevLockTLen = 16
)

var (
	ErrInvalidBalance        = errors.New("invalid balance")
	ErrDustLimit             = errors.New("balance below dust limit")
	ErrChannelNotInit        = errors.New("channel token is not initialized")
	ErrInitStateMismatch     = errors.New("initial state does not match its hash")
	ErrUnknownChannel        = errors.New("unknown channel")
	ErrNoPayToken            = errors.New("no pay token on current state")
	ErrNoPendingPayment      = errors.New("no payment in progress")
	ErrMissingJustification  = errors.New("refund requires a justification")
	ErrSessionExists         = errors.New("session already exists")
	ErrSessionStatus         = errors.New("unexpected session status")
	ErrPayMaskMismatch       = errors.New("pay mask commitment mismatch")
	ErrRevLockMismatch       = errors.New("revocation lock mismatch")
	ErrMPCFailed             = errors.New("mpc execution failed")
	ErrPaymentNotConfirmed   = errors.New("mpc result not confirmed")
	ErrCloseUnsigned         = errors.New("close message not signed by merchant")
	ErrCloseCustomerSig      = errors.New("close message not signed by customer")
	ErrNoCloseSignature      = errors.New("no close signature for current state")
)

// SessionID identifies one payment session.
type SessionID [16]byte

// NewSessionID samples a session id.
func NewSessionID(rng io.Reader) (SessionID, error) {
	var id SessionID
	_, err := io.ReadFull(rng, id[:])
	return id, err
}

func (id SessionID) String() string {
	return hex.EncodeToString(id[:])
}

// TransactionFeeInfo holds the dust limits and fees a channel is funded
// with.
type TransactionFeeInfo struct {
	BalMinCust  int64
	BalMinMerch int64
	ValCPFP     int64
	FeeCC       int64
	FeeMC       int64
	MinFee      int64
	MaxFee      int64
}

// NewTransactionFeeInfo copies the fee section of a config.
func NewTransactionFeeInfo(fees config.FeeConfig) TransactionFeeInfo {
	return TransactionFeeInfo{
		BalMinCust:  fees.BalMinCust,
		BalMinMerch: fees.BalMinMerch,
		ValCPFP:     fees.ValCPFP,
		FeeCC:       fees.FeeCC,
		FeeMC:       fees.FeeMC,
		MinFee:      fees.MinFee,
		MaxFee:      fees.MaxFee,
	}
}

// FundingTxInfo describes the escrow and merch-close funding outputs.
type FundingTxInfo struct {
	EscrowTxID    ids.ID
	EscrowPrevout ids.ID
	MerchTxID     ids.ID
	MerchPrevout  ids.ID
	InitCustBal   int64
	InitMerchBal  int64
}

// ChannelMPCState is the public channel configuration shared by both
// parties.
type ChannelMPCState struct {
	Name       string
	ThirdParty bool
	FeeInfo    TransactionFeeInfo
	Network    config.NetworkConfig
}

// NewChannelMPCState returns a channel configured from cfg.
func NewChannelMPCState(name string, thirdParty bool, cfg config.Config) *ChannelMPCState {
	return &ChannelMPCState{
		Name:       name,
		ThirdParty: thirdParty,
		FeeInfo:    NewTransactionFeeInfo(cfg.Fees),
		Network:    cfg.Network,
	}
}

// ChannelMPCToken identifies a funded channel.
type ChannelMPCToken struct {
	PkC           []byte
	PkM           []byte
	EscrowTxID    ids.ID
	EscrowPrevout ids.ID
	MerchTxID     ids.ID
	MerchPrevout  ids.ID
}

// IsInit reports whether both keys and the funding outputs are set.
func (t *ChannelMPCToken) IsInit() bool {
	return len(t.PkC) != 0 && len(t.PkM) != 0 && t.EscrowTxID != ids.Empty && t.MerchTxID != ids.Empty
}

// ComputeChannelID hashes the token under a channel id domain prefix.
func (t *ChannelMPCToken) ComputeChannelID() (ids.ID, error) {
	if !t.IsInit() {
		return ids.Empty, ErrChannelNotInit
	}
	p := wrappers.NewWriter(256, 1024)
	p.PackBytes(t.PkC)
	p.PackBytes(t.PkM)
	p.PackHash(t.EscrowTxID)
	p.PackHash(t.EscrowPrevout)
	p.PackHash(t.MerchTxID)
	p.PackHash(t.MerchPrevout)
	if p.Errored() {
		return ids.Empty, p.Err
	}
	return ids.ID(hashing.PrefixedHash(channelIDPrefix, p.Bytes)), nil
}

// LockPreimagePair is a revocation lock and its secret.
type LockPreimagePair struct {
	RevLock   [wallet.RevLockLen]byte
	RevSecret [RevSecretLen]byte
}

// RevokedState reveals the secret of a spent state together with the
// randomness of its lock commitment.
type RevokedState struct {
	LockPreimagePair
	T [RevLockTLen]byte
}

// Valid reports whether the pair opens revLockCom.
func (r *RevokedState) Valid(revLockCom [32]byte) bool {
	return sha256.Sum256(r.RevSecret[:]) == r.RevLock &&
		commitRevLock(r.RevLock, r.T) == revLockCom
}

// commitRevLock returns sha256(revLock || t).
func commitRevLock(revLock [wallet.RevLockLen]byte, t [RevLockTLen]byte) [32]byte {
	return hashing.ComputeHash256(revLock[:], t[:])
}

// commitPayMask returns sha256(mask || r).
func commitPayMask(mask [32]byte, r [16]byte) [32]byte {
	return hashing.ComputeHash256(mask[:], r[:])
}

// InitCustState is the customer's initial state as sent to the merchant.
type InitCustState struct {
	PkC      []byte
	Nonce    wallet.Nonce
	RevLock  [wallet.RevLockLen]byte
	CustBal  int64
	MerchBal int64
	MinFee   int64
	MaxFee   int64
	FeeMC    int64
}

// state rebuilds the full initial state from the funding outputs on token.
func (s *InitCustState) state(token *ChannelMPCToken) *wallet.State {
	return &wallet.State{
		Nonce:         s.Nonce,
		RevLock:       s.RevLock,
		BC:            s.CustBal,
		BM:            s.MerchBal,
		EscrowTxID:    token.EscrowTxID,
		EscrowPrevout: token.EscrowPrevout,
		MerchTxID:     token.MerchTxID,
		MerchPrevout:  token.MerchPrevout,
		MinFee:        s.MinFee,
		MaxFee:        s.MaxFee,
		FeeMC:         s.FeeMC,
	}
}

// CloseSignatures are the merchant's signatures on the two close
// transactions of one state.
type CloseSignatures struct {
	Escrow []byte
	Merch  []byte
}

// CloseMessage is broadcast by the customer to close on its current state.
type CloseMessage struct {
	State      *wallet.State
	FromEscrow bool
	// MerchSig is the merchant's close signature on State.
	MerchSig []byte
	// CustSig is the customer's signature over the same digest.
	CustSig []byte
}

// MerchantCloseMessage is broadcast by the merchant to spend the escrow
// into merch-close.
type MerchantCloseMessage struct {
	EscrowTxID ids.ID
	MerchTxID  ids.ID
	Signature  []byte
}

// CloseDispute is the merchant's verdict on a customer close.
type CloseDispute struct {
	EscrowTxID ids.ID
	// Revoked is set when the customer closed on a revoked state.
	Revoked bool
	// Evidence holds the revealed secret of the revoked state.
	Evidence *LockPreimagePair
}
