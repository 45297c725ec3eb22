// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channels

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/zkchannels/config"
	"github.com/luxfi/zkchannels/metrics"
)

func testConfig(fee int64) config.Config {
	cfg := config.DefaultConfig()
	cfg.RangeProof.DigitBase = 16
	cfg.RangeProof.MaxBalance = 1000
	cfg.Fees.BalMinCust = 5
	cfg.Fees.ChannelFee = fee
	return cfg
}

func newMerchant(t *testing.T, fee int64) (*ChannelState, *MerchantState) {
	channel := NewChannelState("A <-> B", false, testConfig(fee))
	_, merch, err := InitMerchant(rand.Reader, channel, "Bob", log.NewNoOpLogger(), metrics.NewNoop())
	require.NoError(t, err)
	return channel, merch
}

func newToken(merch *MerchantState, channel *ChannelState) *ChannelToken {
	return &ChannelToken{PkM: merch.PkM, Params: channel.Params}
}

func establish(t *testing.T, channel *ChannelState, token *ChannelToken, merch *MerchantState, b0Cust, b0Merch int64) *CustomerState {
	require := require.New(t)

	cust, err := InitCustomer(rand.Reader, token, b0Cust, b0Merch, "Alice")
	require.NoError(err)

	com, proof, err := EstablishCustomerGenerateProof(rand.Reader, channel, cust)
	require.NoError(err)

	closeToken, err := EstablishMerchantIssueCloseToken(rand.Reader, channel, token, com, proof, b0Cust, b0Merch, merch)
	require.NoError(err)
	require.True(cust.VerifyCloseToken(channel, closeToken))

	payToken, err := EstablishMerchantIssuePayToken(rand.Reader, channel, com, merch)
	require.NoError(err)
	require.True(EstablishCustomerFinal(channel, cust, payToken))
	require.True(channel.Established)
	return cust
}

func pay(t *testing.T, channel *ChannelState, cust *CustomerState, merch *MerchantState, amount int64) *CustomerState {
	require := require.New(t)

	payment, next, err := GeneratePaymentProof(rand.Reader, channel, cust, amount)
	require.NoError(err)

	closeToken, err := VerifyPaymentProof(rand.Reader, channel, payment, merch)
	require.NoError(err)

	rt, err := GenerateRevokeToken(channel, cust, next, closeToken)
	require.NoError(err)

	payToken, err := VerifyRevokeToken(rt, merch)
	require.NoError(err)
	require.True(next.VerifyPayToken(channel, payToken))
	require.True(next.HasTokens())
	return next
}

func TestChannelEndToEnd(t *testing.T) {
	require := require.New(t)

	channel, merch := newMerchant(t, 1)
	token := newToken(merch, channel)
	cust := establish(t, channel, token, merch, 100, 20)

	next := pay(t, channel, cust, merch, 10)
	require.Equal(int64(89), next.Wallet.BC)
	require.Equal(int64(31), next.Wallet.BM)
	require.Equal(1, next.Index)
	require.True(next.Wallet.ChannelID.Equal(&cust.Wallet.ChannelID))

	// refund
	next = pay(t, channel, next, merch, -5)
	require.Equal(int64(93), next.Wallet.BC)
	require.Equal(int64(27), next.Wallet.BM)

	closeC, err := CustomerClose(channel, next)
	require.NoError(err)
	require.True(VerifyCustCloseMessage(token, closeC))

	verdict, err := MerchantClose(channel, token, closeC, merch)
	require.NoError(err)
	require.Equal(CloseValid, verdict.Status)
	require.Nil(verdict.Evidence)
}

func TestStaleClose(t *testing.T) {
	require := require.New(t)

	channel, merch := newMerchant(t, 0)
	token := newToken(merch, channel)
	cust := establish(t, channel, token, merch, 50, 50)
	_ = pay(t, channel, cust, merch, 10)

	// close on the revoked initial wallet
	stale, err := CustomerClose(channel, cust)
	require.NoError(err)
	require.True(VerifyCustCloseMessage(token, stale))

	verdict, err := MerchantClose(channel, token, stale, merch)
	require.NoError(err)
	require.Equal(CloseRevoked, verdict.Status)
	require.NotNil(verdict.Evidence)
	require.True(VerifyRevokeMessage(verdict.Evidence.RevokeToken))
	require.True(VerifyMerchCloseMessage(token, stale, verdict.Evidence))

	other, err := CustomerClose(channel, cust)
	require.NoError(err)
	other.Wpk = merch.PkM
	require.False(VerifyMerchCloseMessage(token, other, verdict.Evidence))
}

func TestCloseWithheldRevocation(t *testing.T) {
	require := require.New(t)

	channel, merch := newMerchant(t, 0)
	token := newToken(merch, channel)
	cust := establish(t, channel, token, merch, 50, 50)

	payment, _, err := GeneratePaymentProof(rand.Reader, channel, cust, 10)
	require.NoError(err)
	_, err = VerifyPaymentProof(rand.Reader, channel, payment, merch)
	require.NoError(err)

	// the customer never revokes the spent wallet and closes on it
	closeC, err := CustomerClose(channel, cust)
	require.NoError(err)
	require.True(VerifyCustCloseMessage(token, closeC))

	verdict, err := MerchantClose(channel, token, closeC, merch)
	require.NoError(err)
	require.Equal(CloseMerchantAbort, verdict.Status)
	require.Equal("merchant abort", verdict.Status.String())
	require.Nil(verdict.Evidence)
}

func TestCloseRequiresEstablished(t *testing.T) {
	require := require.New(t)

	channel, merch := newMerchant(t, 0)
	token := newToken(merch, channel)
	cust := establish(t, channel, token, merch, 50, 50)

	closeC, err := CustomerClose(channel, cust)
	require.NoError(err)

	channel.Established = false
	verdict, err := MerchantClose(channel, token, closeC, merch)
	require.ErrorIs(err, ErrNotEstablished)
	require.Nil(verdict)
}

func TestCloseSignatureRejectsOtherKey(t *testing.T) {
	require := require.New(t)

	channel, merch := newMerchant(t, 0)
	token := newToken(merch, channel)
	cust := establish(t, channel, token, merch, 50, 50)

	closeC, err := CustomerClose(channel, cust)
	require.NoError(err)
	require.Len(closeC.Signature, 65)

	h := closeC.Hash()
	require.True(verifyECDSA(closeC.Wpk, h[:], closeC.Signature))
	require.False(verifyECDSA(token.PkM, h[:], closeC.Signature))
	require.False(verifyECDSA(closeC.Wpk, h[:], closeC.Signature[:64]))
}

func TestPaymentDustLimit(t *testing.T) {
	require := require.New(t)

	channel, merch := newMerchant(t, 1)
	token := newToken(merch, channel)
	cust := establish(t, channel, token, merch, 100, 20)

	_, _, err := GeneratePaymentProof(rand.Reader, channel, cust, 95)
	require.ErrorIs(err, ErrDustLimit)

	var phaseErr *PhaseError
	require.True(errors.As(err, &phaseErr))
	require.Equal(PhasePay, phaseErr.Phase)

	_, _, err = GeneratePaymentProof(rand.Reader, channel, cust, -20)
	require.ErrorIs(err, ErrDustLimit)
}

func TestPaymentRequiresEstablished(t *testing.T) {
	require := require.New(t)

	channel, merch := newMerchant(t, 0)
	token := newToken(merch, channel)
	cust, err := InitCustomer(rand.Reader, token, 100, 20, "Alice")
	require.NoError(err)

	_, _, err = GeneratePaymentProof(rand.Reader, channel, cust, 10)
	require.ErrorIs(err, ErrNotEstablished)

	_, err = CustomerClose(channel, cust)
	require.ErrorIs(err, ErrNotEstablished)
}

func TestInitCustomerRejectsNegativeBalance(t *testing.T) {
	channel, merch := newMerchant(t, 0)
	token := newToken(merch, channel)
	_, err := InitCustomer(rand.Reader, token, -1, 20, "Alice")
	require.ErrorIs(t, err, ErrInvalidBalance)
}

func TestEstablishRejectsWrongBalances(t *testing.T) {
	require := require.New(t)

	channel, merch := newMerchant(t, 0)
	token := newToken(merch, channel)
	cust, err := InitCustomer(rand.Reader, token, 100, 20, "Alice")
	require.NoError(err)

	com, proof, err := EstablishCustomerGenerateProof(rand.Reader, channel, cust)
	require.NoError(err)

	_, err = EstablishMerchantIssueCloseToken(rand.Reader, channel, token, com, proof, 120, 0, merch)
	require.ErrorIs(err, ErrBadProof)

	// no pay token for an unverified commitment
	_, err = EstablishMerchantIssuePayToken(rand.Reader, channel, com, merch)
	require.ErrorIs(err, ErrBadProof)
}

func TestEstablishRejectsBadToken(t *testing.T) {
	require := require.New(t)

	channel, merch := newMerchant(t, 0)
	token := newToken(merch, channel)
	cust, err := InitCustomer(rand.Reader, token, 100, 20, "Alice")
	require.NoError(err)

	com, proof, err := EstablishCustomerGenerateProof(rand.Reader, channel, cust)
	require.NoError(err)
	closeToken, err := EstablishMerchantIssueCloseToken(rand.Reader, channel, token, com, proof, 100, 20, merch)
	require.NoError(err)

	// a close token is not a pay token
	require.False(EstablishCustomerFinal(channel, cust, closeToken))
	require.False(channel.Established)
}

func TestPaymentReusedWpk(t *testing.T) {
	require := require.New(t)

	channel, merch := newMerchant(t, 0)
	token := newToken(merch, channel)
	cust := establish(t, channel, token, merch, 100, 20)

	payment, _, err := GeneratePaymentProof(rand.Reader, channel, cust, 10)
	require.NoError(err)
	_, err = VerifyPaymentProof(rand.Reader, channel, payment, merch)
	require.NoError(err)

	_, err = VerifyPaymentProof(rand.Reader, channel, payment, merch)
	require.ErrorIs(err, ErrReusedWpk)

	// a second spend of the same wallet with a different amount
	payment2, _, err := GeneratePaymentProof(rand.Reader, channel, cust, 20)
	require.NoError(err)
	_, err = VerifyPaymentProof(rand.Reader, channel, payment2, merch)
	require.ErrorIs(err, ErrReusedWpk)
}

func TestPaymentTampered(t *testing.T) {
	channel, merch := newMerchant(t, 0)
	token := newToken(merch, channel)
	cust := establish(t, channel, token, merch, 100, 20)

	tests := []struct {
		name   string
		modify func(*Payment)
	}{
		{
			name:   "amount",
			modify: func(p *Payment) { p.Amount = 1 },
		},
		{
			name: "commitment",
			modify: func(p *Payment) {
				p.Com = cust.Com
			},
		},
		{
			name: "balance response",
			modify: func(p *Payment) {
				p.Proof.ComZ[3].SetOne()
			},
		},
		{
			name:   "missing range proof",
			modify: func(p *Payment) { p.Proof.RangeBM = nil },
		},
		{
			name:   "malformed wpk",
			modify: func(p *Payment) { p.Wpk = []byte{1, 2, 3} },
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			payment, _, err := GeneratePaymentProof(rand.Reader, channel, cust, 10)
			require.NoError(t, err)
			test.modify(payment)

			_, err = VerifyPaymentProof(rand.Reader, channel, payment, merch)
			require.ErrorIs(t, err, ErrBadProof)
		})
	}
}

func TestRevokeToken(t *testing.T) {
	require := require.New(t)

	channel, merch := newMerchant(t, 0)
	token := newToken(merch, channel)
	cust := establish(t, channel, token, merch, 100, 20)

	payment, next, err := GeneratePaymentProof(rand.Reader, channel, cust, 10)
	require.NoError(err)
	closeToken, err := VerifyPaymentProof(rand.Reader, channel, payment, merch)
	require.NoError(err)

	// the close token on the new wallet does not verify for the old one
	_, err = GenerateRevokeToken(channel, next, cust, closeToken)
	require.ErrorIs(err, ErrBadToken)

	rt, err := GenerateRevokeToken(channel, cust, next, closeToken)
	require.NoError(err)

	h := rt.Message.Hash()
	forgedSig, err := signECDSA(next.wsk, h[:])
	require.NoError(err)
	forged := &RevokeToken{
		Message:   rt.Message,
		Signature: forgedSig,
	}
	_, err = VerifyRevokeToken(forged, merch)
	require.ErrorIs(err, ErrBadRevokeToken)

	unknown := &RevokeToken{Message: NewRevokedMessage(next.Wpk), Signature: rt.Signature}
	_, err = VerifyRevokeToken(unknown, merch)
	require.ErrorIs(err, ErrUnknownWpk)

	payToken, err := VerifyRevokeToken(rt, merch)
	require.NoError(err)
	require.True(next.VerifyPayToken(channel, payToken))

	_, err = VerifyRevokeToken(rt, merch)
	require.ErrorIs(err, ErrNoParkedToken)
}

func TestIntermediaryPayment(t *testing.T) {
	require := require.New(t)

	aliceChannel, merch := newMerchant(t, 0)
	aliceToken := newToken(merch, aliceChannel)
	alice := establish(t, aliceChannel, aliceToken, merch, 100, 20)

	bobChannel := NewChannelState("I <-> Bob", false, testConfig(0))
	bobChannel.Params = aliceChannel.Params
	bobToken := newToken(merch, bobChannel)
	bob := establish(t, bobChannel, bobToken, merch, 30, 70)

	alicePayment, aliceNext, err := GeneratePaymentProof(rand.Reader, aliceChannel, alice, 10)
	require.NoError(err)
	bobPayment, bobNext, err := GeneratePaymentProof(rand.Reader, bobChannel, bob, -10)
	require.NoError(err)

	mismatched, _, err := GeneratePaymentProof(rand.Reader, bobChannel, bob, -9)
	require.NoError(err)
	_, _, err = VerifyMultiplePaymentProofs(rand.Reader, aliceChannel, alicePayment, bobChannel, mismatched, merch)
	require.ErrorIs(err, ErrAmountsDoNotOffset)

	aliceClose, bobClose, err := VerifyMultiplePaymentProofs(rand.Reader, aliceChannel, alicePayment, bobChannel, bobPayment, merch)
	require.NoError(err)

	aliceRT, err := GenerateRevokeToken(aliceChannel, alice, aliceNext, aliceClose)
	require.NoError(err)
	bobRT, err := GenerateRevokeToken(bobChannel, bob, bobNext, bobClose)
	require.NoError(err)

	alicePT, bobPT, err := VerifyMultipleRevokeTokens(aliceRT, bobRT, merch)
	require.NoError(err)
	require.True(aliceNext.VerifyPayToken(aliceChannel, alicePT))
	require.True(bobNext.VerifyPayToken(bobChannel, bobPT))

	require.Equal(int64(90), aliceNext.Wallet.BC)
	require.Equal(int64(40), bobNext.Wallet.BC)
}

func TestComputeChannelIDDependsOnKeys(t *testing.T) {
	require := require.New(t)

	channel, merch := newMerchant(t, 0)
	token := newToken(merch, channel)
	require.False(token.IsInit())

	_, err := InitCustomer(rand.Reader, token, 10, 10, "Alice")
	require.NoError(err)
	require.True(token.IsInit())
	id1 := token.ComputeChannelID()

	other := *token
	_, err = InitCustomer(rand.Reader, &other, 10, 10, "Carol")
	require.NoError(err)
	id2 := other.ComputeChannelID()
	require.False(id1.Equal(&id2))
	require.Equal(id1, token.ComputeChannelID())
}
