// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mpctest provides an in-memory transport and an engine that
// evaluates the payment functionality in the clear, for tests.
package mpctest

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/zkchannels/mpc"
	"github.com/luxfi/zkchannels/utils/hashing"
	"github.com/luxfi/zkchannels/utils/wrappers"
	"github.com/luxfi/zkchannels/wallet"
)

const (
	maxMessageSize = 4096

	statusOK   byte = 0
	statusFail byte = 1
)

var (
	_ mpc.Engine = IdealEngine{}

	errPublicInputs = errors.New("public inputs differ")
	errNonce        = errors.New("old state nonce mismatch")
	errPayToken     = errors.New("invalid pay token")
	errRevLockCom   = errors.New("rev lock commitment mismatch")
	errPayMaskCom   = errors.New("pay mask commitment mismatch")
	errTransition   = errors.New("invalid state transition")
	errDust         = errors.New("balance below dust limit")
)

// IdealEngine plays the trusted party: the customer sends its inputs to the
// merchant side, which evaluates the functionality and returns the
// customer's output. It offers no privacy.
type IdealEngine struct{}

func (IdealEngine) ExecuteCustomer(ctx context.Context, t mpc.Transport, in *mpc.CustomerInput) (*mpc.CustomerOutput, error) {
	msg, err := marshalCustomerInput(in)
	if err != nil {
		return nil, err
	}
	if err := t.Send(ctx, msg); err != nil {
		return nil, err
	}
	resp, err := t.Receive(ctx)
	if err != nil {
		return nil, err
	}

	p := wrappers.NewReader(resp)
	if status := p.UnpackByte(); status != statusOK {
		reason := p.UnpackStr()
		if p.Errored() {
			return nil, p.Err
		}
		return nil, fmt.Errorf("%w: %s", mpc.ErrMPCFailed, reason)
	}
	out := &mpc.CustomerOutput{}
	out.MaskedPayToken = p.UnpackHash()
	out.MaskedEscrowS = p.UnpackHash()
	out.MaskedMerchS = p.UnpackHash()
	return out, p.Done()
}

func (IdealEngine) ExecuteMerchant(ctx context.Context, t mpc.Transport, in *mpc.MerchantInput) error {
	msg, err := t.Receive(ctx)
	if err != nil {
		return err
	}
	cust, err := unmarshalCustomerInput(msg)
	if err != nil {
		return err
	}

	out, evalErr := evaluate(cust, in)
	p := wrappers.NewWriter(128, maxMessageSize)
	if evalErr != nil {
		p.PackByte(statusFail)
		p.PackStr(evalErr.Error())
	} else {
		p.PackByte(statusOK)
		p.PackHash(out.MaskedPayToken)
		p.PackHash(out.MaskedEscrowS)
		p.PackHash(out.MaskedMerchS)
	}
	if p.Errored() {
		return p.Err
	}
	if err := t.Send(ctx, p.Bytes); err != nil {
		return err
	}
	if evalErr != nil {
		return fmt.Errorf("%w: %w", mpc.ErrMPCFailed, evalErr)
	}
	return nil
}

func evaluate(c *mpc.CustomerInput, m *mpc.MerchantInput) (*mpc.CustomerOutput, error) {
	if !bytes.Equal(c.PkM, m.PkM) ||
		c.Amount != m.Amount ||
		c.Nonce != m.Nonce ||
		c.RevLockCom != m.RevLockCom ||
		c.PayMaskCom != m.PayMaskCom ||
		c.BalMinCust != m.BalMinCust ||
		c.BalMinMerch != m.BalMinMerch {
		return nil, errPublicInputs
	}

	oldState, newState := c.OldState, c.NewState
	if oldState.Nonce != m.Nonce {
		return nil, errNonce
	}
	pt := payToken(m.HMACKey, oldState)
	if !hmac.Equal(pt[:], c.OldPayToken[:]) {
		return nil, errPayToken
	}
	if hashing.ComputeHash256(oldState.RevLock[:], c.RevLockT[:]) != m.RevLockCom {
		return nil, errRevLockCom
	}
	if hashing.ComputeHash256(m.PayMask[:], m.PayMaskR[:]) != m.PayMaskCom {
		return nil, errPayMaskCom
	}

	if newState.Nonce == oldState.Nonce ||
		newState.EscrowTxID != oldState.EscrowTxID ||
		newState.EscrowPrevout != oldState.EscrowPrevout ||
		newState.MerchTxID != oldState.MerchTxID ||
		newState.MerchPrevout != oldState.MerchPrevout ||
		newState.MinFee != oldState.MinFee ||
		newState.MaxFee != oldState.MaxFee ||
		newState.FeeMC != oldState.FeeMC ||
		newState.BC != oldState.BC-m.Amount ||
		newState.BM != oldState.BM+m.Amount {
		return nil, errTransition
	}
	if newState.BC < m.BalMinCust || newState.BM < m.BalMinMerch {
		return nil, errDust
	}

	out := &mpc.CustomerOutput{}
	newPT := payToken(m.HMACKey, newState)
	escrowDigest := mpc.CloseDigest(newState, true)
	merchDigest := mpc.CloseDigest(newState, false)
	escrowS := m.EscrowSig.Complete(escrowDigest[:])
	merchS := m.MerchSig.Complete(merchDigest[:])
	xor(out.MaskedPayToken[:], newPT, m.PayMask)
	xor(out.MaskedEscrowS[:], escrowS.Bytes(), m.EscrowMask)
	xor(out.MaskedMerchS[:], merchS.Bytes(), m.MerchMask)
	return out, nil
}

func payToken(key [32]byte, state *wallet.State) [32]byte {
	h := state.ComputeHash()
	mac := hmac.New(sha256.New, key[:])
	_, _ = mac.Write(h[:])
	var out [32]byte
	mac.Sum(out[:0])
	return out
}

func xor(dst []byte, a, b [32]byte) {
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
}

func marshalCustomerInput(in *mpc.CustomerInput) ([]byte, error) {
	p := wrappers.NewWriter(512, maxMessageSize)
	p.PackBytes(in.PkM)
	p.PackSignedLong(in.Amount)
	p.PackFixedBytes(in.Nonce[:])
	p.PackHash(in.RevLockCom)
	p.PackHash(in.PayMaskCom)
	p.PackSignedLong(in.BalMinCust)
	p.PackSignedLong(in.BalMinMerch)
	p.PackFixedBytes(in.OldState.SerializeCompact())
	p.PackFixedBytes(in.NewState.SerializeCompact())
	p.PackHash(in.OldPayToken)
	p.PackFixedBytes(in.RevLockT[:])
	return p.Bytes, p.Err
}

func unmarshalCustomerInput(b []byte) (*mpc.CustomerInput, error) {
	p := wrappers.NewReader(b)
	in := &mpc.CustomerInput{}
	in.PkM = p.UnpackLimitedBytes(uint32(len(ids.Empty) + 1))
	in.Amount = p.UnpackSignedLong()
	copy(in.Nonce[:], p.UnpackFixedBytes(wallet.NonceLen))
	in.RevLockCom = p.UnpackHash()
	in.PayMaskCom = p.UnpackHash()
	in.BalMinCust = p.UnpackSignedLong()
	in.BalMinMerch = p.UnpackSignedLong()
	oldState := p.UnpackFixedBytes(wallet.StateLen)
	newState := p.UnpackFixedBytes(wallet.StateLen)
	in.OldPayToken = p.UnpackHash()
	copy(in.RevLockT[:], p.UnpackFixedBytes(mpc.RevLockTLen))
	if err := p.Done(); err != nil {
		return nil, err
	}

	var err error
	if in.OldState, err = wallet.ParseState(oldState); err != nil {
		return nil, err
	}
	in.NewState, err = wallet.ParseState(newState)
	return in, err
}
