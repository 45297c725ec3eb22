// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wallet defines the customer wallet signed by the merchant in the
// bidirectional protocol and the channel state used by the MPC protocol.
package wallet

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/luxfi/zkchannels/crypto/group"
)

// Positions of the wallet fields in the signed message vector.
const (
	SlotChannelID = iota
	SlotWpk
	SlotBC
	SlotBM
	SlotClose

	// NumSlots is the message length of the merchant signing key.
	NumSlots
)

// CloseLabel tags a wallet as a close wallet.
const CloseLabel = "close"

// CloseTag is the scalar stored in the close slot of a close wallet.
func CloseTag() fr.Element {
	return group.HashToScalar([]byte(CloseLabel))
}

// Wallet is the customer view of the channel. Close is set only on the
// variant signed as a close token.
type Wallet struct {
	ChannelID fr.Element
	Wpk       fr.Element
	BC        int64
	BM        int64
	Close     *fr.Element
}

// AsFrVec returns [channelId, wpk, bc, bm] followed by close if set.
func (w *Wallet) AsFrVec() []fr.Element {
	vec := w.WithoutClose()
	if w.Close != nil {
		vec = append(vec, *w.Close)
	}
	return vec
}

// WithoutClose returns the four-element vector, ignoring Close.
func (w *Wallet) WithoutClose() []fr.Element {
	return []fr.Element{
		w.ChannelID,
		w.Wpk,
		group.ScalarFromInt64(w.BC),
		group.ScalarFromInt64(w.BM),
	}
}

// Slots returns the NumSlots message vector used for signing: the close slot
// holds Close, or zero for a pay wallet.
func (w *Wallet) Slots() []fr.Element {
	vec := w.WithoutClose()
	var closeSlot fr.Element
	if w.Close != nil {
		closeSlot = *w.Close
	}
	return append(vec, closeSlot)
}

// CloseWallet returns a copy of w carrying the close tag.
func (w *Wallet) CloseWallet() *Wallet {
	tag := CloseTag()
	c := *w
	c.Close = &tag
	return &c
}

// IsClose reports whether w carries the close tag.
func (w *Wallet) IsClose() bool {
	if w.Close == nil {
		return false
	}
	tag := CloseTag()
	return w.Close.Equal(&tag)
}

// SerializeCompact concatenates the 32-byte big-endian encodings of vec.
func SerializeCompact(vec []fr.Element) []byte {
	out := make([]byte, 0, len(vec)*fr.Bytes)
	for i := range vec {
		b := vec[i].Bytes()
		out = append(out, b[:]...)
	}
	return out
}

func (w *Wallet) String() string {
	if w.Close != nil {
		return fmt.Sprintf("Wallet{channelId: %s, wpk: %s, bc: %d, bm: %d, close: %s}",
			w.ChannelID.String(), w.Wpk.String(), w.BC, w.BM, w.Close.String())
	}
	return fmt.Sprintf("Wallet{channelId: %s, wpk: %s, bc: %d, bm: %d}",
		w.ChannelID.String(), w.Wpk.String(), w.BC, w.BM)
}
