// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/zkchannels/wallet"
)

// PaymentStatus tracks a merchant payment session.
type PaymentStatus uint8

const (
	PaymentPrepare PaymentStatus = iota
	PaymentUpdate
	PaymentSuccess
	PaymentError
)

func (s PaymentStatus) String() string {
	switch s {
	case PaymentPrepare:
		return "prepare"
	case PaymentUpdate:
		return "update"
	case PaymentSuccess:
		return "success"
	case PaymentError:
		return "error"
	default:
		return "unknown"
	}
}

// SessionState is the merchant's record of one payment session.
type SessionState struct {
	Nonce         wallet.Nonce  `serialize:"true"`
	RevLockCom    [32]byte      `serialize:"true"`
	Amount        int64         `serialize:"true"`
	Status        PaymentStatus `serialize:"true"`
	Justification string        `serialize:"true"`

	// PayMask is released to the customer once the old state is revoked.
	PayMask  [32]byte `serialize:"true"`
	PayMaskR [16]byte `serialize:"true"`

	// StartedAt is a unix timestamp.
	StartedAt int64 `serialize:"true"`
}

// MaskedMPCInputs are the close signature masks of a session, released to
// the customer after a successful MPC run.
type MaskedMPCInputs struct {
	EscrowMask [32]byte `serialize:"true"`
	MerchMask  [32]byte `serialize:"true"`
	REscrowSig [32]byte `serialize:"true"`
	RMerchSig  [32]byte `serialize:"true"`
}

// ActivationRecord is stored when a channel is activated.
type ActivationRecord struct {
	ChannelID ids.ID       `serialize:"true"`
	Nonce     wallet.Nonce `serialize:"true"`
	RevLock   [32]byte     `serialize:"true"`
	PayToken  [32]byte     `serialize:"true"`
}

type nonceLease struct {
	SessionID string `serialize:"true"`
	Expiry    int64  `serialize:"true"`
}
