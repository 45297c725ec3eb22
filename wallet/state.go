// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wallet

import (
	"errors"
	"fmt"
	"io"

	"github.com/luxfi/ids"

	"github.com/luxfi/zkchannels/utils/hashing"
	"github.com/luxfi/zkchannels/utils/wrappers"
)

const (
	NonceLen   = 16
	RevLockLen = 32

	// StateLen is the length of State.SerializeCompact.
	StateLen = NonceLen + RevLockLen + 2*wrappers.LongLen + 4*len(ids.Empty) + 3*wrappers.LongLen

	statePrefix = "ZKCHANNELS_STATE"
)

var errStateLen = errors.New("invalid state length")

// Nonce identifies one channel state.
type Nonce [NonceLen]byte

// NewNonce samples a fresh nonce.
func NewNonce(rng io.Reader) (Nonce, error) {
	var n Nonce
	_, err := io.ReadFull(rng, n[:])
	return n, err
}

// State is the channel state the MPC protocol pays over.
type State struct {
	Nonce         Nonce
	RevLock       [RevLockLen]byte
	BC            int64
	BM            int64
	EscrowTxID    ids.ID
	EscrowPrevout ids.ID
	MerchTxID     ids.ID
	MerchPrevout  ids.ID
	MinFee        int64
	MaxFee        int64
	FeeMC         int64
}

// SerializeCompact encodes the state in its canonical order: nonce,
// rev_lock, bc, bm, merch_txid, escrow_txid, merch_prevout, escrow_prevout,
// min_fee, max_fee, fee_mc. Integers are big-endian.
func (s *State) SerializeCompact() []byte {
	p := wrappers.NewWriter(StateLen, StateLen)
	p.PackFixedBytes(s.Nonce[:])
	p.PackHash(s.RevLock)
	p.PackSignedLong(s.BC)
	p.PackSignedLong(s.BM)
	p.PackHash(s.MerchTxID)
	p.PackHash(s.EscrowTxID)
	p.PackHash(s.MerchPrevout)
	p.PackHash(s.EscrowPrevout)
	p.PackSignedLong(s.MinFee)
	p.PackSignedLong(s.MaxFee)
	p.PackSignedLong(s.FeeMC)
	return p.Bytes
}

// ParseState decodes the output of SerializeCompact.
func ParseState(b []byte) (*State, error) {
	if len(b) != StateLen {
		return nil, fmt.Errorf("%w: %d bytes, expected %d", errStateLen, len(b), StateLen)
	}
	p := wrappers.NewReader(b)
	s := &State{}
	copy(s.Nonce[:], p.UnpackFixedBytes(NonceLen))
	s.RevLock = p.UnpackHash()
	s.BC = p.UnpackSignedLong()
	s.BM = p.UnpackSignedLong()
	s.MerchTxID = p.UnpackHash()
	s.EscrowTxID = p.UnpackHash()
	s.MerchPrevout = p.UnpackHash()
	s.EscrowPrevout = p.UnpackHash()
	s.MinFee = p.UnpackSignedLong()
	s.MaxFee = p.UnpackSignedLong()
	s.FeeMC = p.UnpackSignedLong()
	return s, p.Done()
}

// ComputeHash returns sha256("ZKCHANNELS_STATE" || SerializeCompact()).
func (s *State) ComputeHash() hashing.Hash256 {
	return hashing.PrefixedHash(statePrefix, s.SerializeCompact())
}

func (s *State) String() string {
	return fmt.Sprintf("State{nonce: %x, rev_lock: %x, bc: %d, bm: %d, escrow_txid: %s, merch_txid: %s}",
		s.Nonce[:], s.RevLock[:], s.BC, s.BM, s.EscrowTxID, s.MerchTxID)
}
