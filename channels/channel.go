// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package channels implements bidirectional zkChannels: a customer holds a
// wallet blindly signed by the merchant and pays by proving, in zero
// knowledge, that a new wallet follows from a signed one.
package channels

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/luxfi/zkchannels/config"
	"github.com/luxfi/zkchannels/crypto/ccs08"
	"github.com/luxfi/zkchannels/crypto/cl"
	"github.com/luxfi/zkchannels/crypto/group"
	"github.com/luxfi/zkchannels/crypto/pedersen"
	"github.com/luxfi/zkchannels/utils/wrappers"
	"github.com/luxfi/zkchannels/wallet"
)

const channelIDPrefix = "ZKCHANNELS_CHANNEL_ID"

// ChannelParams are the merchant public parameters a customer needs to pay.
type ChannelParams struct {
	MPK        *cl.PublicParams
	PK         *cl.BlindPublicKey
	ComParams  *pedersen.CSMultiParams
	RangeProof *ccs08.RPPublicParams
}

// ChannelState is the configuration both parties agree on.
type ChannelState struct {
	Name        string
	Fee         int64
	DustLimit   int64
	MaxBalance  int64
	DigitBase   int64
	CacheSize   int
	ThirdParty  bool
	Established bool

	// Params is set by InitMerchant.
	Params *ChannelParams
}

// NewChannelState returns a channel configured from cfg.
func NewChannelState(name string, thirdParty bool, cfg config.Config) *ChannelState {
	return &ChannelState{
		Name:       name,
		Fee:        cfg.Fees.ChannelFee,
		DustLimit:  cfg.Fees.BalMinCust,
		MaxBalance: cfg.RangeProof.MaxBalance,
		DigitBase:  cfg.RangeProof.DigitBase,
		CacheSize:  cfg.RangeProof.CacheSize,
		ThirdParty: thirdParty,
	}
}

// ChannelToken binds the channel to both parties' keys.
type ChannelToken struct {
	// PkC is set by the customer at InitCustomer.
	PkC    []byte
	PkM    []byte
	Params *ChannelParams
}

// IsInit reports whether the customer key has been set.
func (t *ChannelToken) IsInit() bool {
	return len(t.PkC) != 0
}

// ComputeChannelID hashes the customer key, merchant key and merchant
// signing parameters under a channel id domain prefix.
func (t *ChannelToken) ComputeChannelID() fr.Element {
	p := wrappers.NewWriter(1024, 1<<20)
	p.PackStr(channelIDPrefix)
	p.PackBytes(t.PkC)
	p.PackBytes(t.PkM)
	cl.PackParams(p, t.Params.MPK)
	cl.PackBlindPublicKey(p, t.Params.PK)
	return group.HashToScalar(p.Bytes)
}

// commitmentIndex maps a wallet slot to its commitment base.
func commitmentIndex(slot int) int {
	return slot + 1
}

// otherMessages returns the wallet slots except slot, in base order.
func otherMessages(slots []fr.Element, slot int) []fr.Element {
	out := make([]fr.Element, 0, len(slots)-1)
	for i := range slots {
		if i != slot {
			out = append(out, slots[i])
		}
	}
	return out
}

// closeCommitment turns a commitment to a pay wallet into one to its close
// wallet by adding the close tag at the close slot.
func closeCommitment(params *ChannelParams, com *pedersen.Commitment) *pedersen.Commitment {
	tag := wallet.CloseTag()
	return com.Shift(&params.ComParams.PubBases[commitmentIndex(wallet.SlotClose)], &tag)
}
