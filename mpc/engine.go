// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mpc

import (
	"context"

	"github.com/luxfi/zkchannels/wallet"
)

// PublicInputs are known to both parties of a payment.
type PublicInputs struct {
	PkM         []byte
	Amount      int64
	Nonce       wallet.Nonce
	RevLockCom  [32]byte
	PayMaskCom  [32]byte
	BalMinCust  int64
	BalMinMerch int64
}

// CustomerInput is the customer's side of one payment execution.
type CustomerInput struct {
	PublicInputs

	OldState    *wallet.State
	NewState    *wallet.State
	OldPayToken [32]byte
	RevLockT    [RevLockTLen]byte
}

// CustomerOutput is what the customer learns: a masked pay token on the
// new state and masked close signatures.
type CustomerOutput struct {
	MaskedPayToken [32]byte
	MaskedEscrowS  [32]byte
	MaskedMerchS   [32]byte
}

// MerchantInput is the merchant's side of one payment execution.
type MerchantInput struct {
	PublicInputs

	HMACKey    [32]byte
	PayMask    [32]byte
	PayMaskR   [16]byte
	EscrowMask [32]byte
	MerchMask  [32]byte
	EscrowSig  *PartialSig
	MerchSig   *PartialSig
}

// Engine evaluates the payment functionality between the two parties. The
// merchant learns nothing beyond success or failure, and the customer
// learns only CustomerOutput. A failed check returns an error wrapping
// ErrMPCFailed on both sides.
type Engine interface {
	ExecuteCustomer(ctx context.Context, t Transport, in *CustomerInput) (*CustomerOutput, error)
	ExecuteMerchant(ctx context.Context, t Transport, in *MerchantInput) error
}
