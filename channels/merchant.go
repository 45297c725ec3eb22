// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channels

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/luxfi/log"

	"github.com/luxfi/zkchannels/crypto/ccs08"
	"github.com/luxfi/zkchannels/crypto/cl"
	"github.com/luxfi/zkchannels/crypto/group"
	"github.com/luxfi/zkchannels/crypto/pedersen"
	"github.com/luxfi/zkchannels/metrics"
	"github.com/luxfi/zkchannels/utils/hashing"
	"github.com/luxfi/zkchannels/wallet"
)

// CloseStatus is the merchant's verdict on a customer close.
type CloseStatus uint8

const (
	// CloseValid means the customer closed on a wallet that was never
	// revoked.
	CloseValid CloseStatus = iota
	// CloseRevoked means the customer closed on a revoked wallet. The
	// verdict carries the merchant dispute message.
	CloseRevoked
	// CloseMerchantAbort means the customer closed on a wallet it spent in a
	// payment without handing over a valid revocation.
	CloseMerchantAbort
)

func (s CloseStatus) String() string {
	switch s {
	case CloseValid:
		return "valid"
	case CloseRevoked:
		return "revoked"
	case CloseMerchantAbort:
		return "merchant abort"
	default:
		return "unknown"
	}
}

// CloseVerdict is returned by MerchantClose.
type CloseVerdict struct {
	Status   CloseStatus
	Evidence *CloseM
}

type wpkEntry struct {
	wpk    []byte
	revoke *RevokeToken
}

// MerchantState holds the merchant keys and the record of spent wallets.
// It is safe for concurrent use.
type MerchantState struct {
	ID  string
	PkM []byte

	keyPair  *cl.KeyPair
	sk       *secp256k1.PrivateKey
	verifier *ccs08.Verifier
	log      log.Logger
	metrics  metrics.Metrics

	lock sync.Mutex
	// wallet key fingerprint -> spent wallet
	keys map[string]*wpkEntry
	// wallet key fingerprint -> pay token waiting for the revoke token
	payTokens map[string]*cl.Signature
	// commitments whose opening was verified but that have no pay token yet
	establishing map[string]struct{}
}

// InitMerchant generates the merchant keys and range proof parameters and
// stores the public parameters on channel.
func InitMerchant(rng io.Reader, channel *ChannelState, name string, logger log.Logger, m metrics.Metrics) (*ChannelToken, *MerchantState, error) {
	mpk, err := cl.Setup(rng)
	if err != nil {
		return nil, nil, err
	}
	kp, err := cl.Generate(rng, mpk, wallet.NumSlots)
	if err != nil {
		return nil, nil, err
	}
	comParams := kp.Public.ToCommitmentParams(mpk)
	rp, err := ccs08.SetupWithBase(rng, channel.DustLimit, channel.MaxBalance, channel.DigitBase, comParams)
	if err != nil {
		return nil, nil, fmt.Errorf("range proof setup: %w", err)
	}
	verifier, err := ccs08.NewVerifier(rp.Pub, channel.CacheSize, logger)
	if err != nil {
		return nil, nil, err
	}
	sk, err := secp256k1.GeneratePrivateKeyFromRand(rng)
	if err != nil {
		return nil, nil, err
	}

	params := &ChannelParams{
		MPK:        mpk,
		PK:         kp.Public,
		ComParams:  comParams,
		RangeProof: rp.Pub,
	}
	channel.Params = params

	merch := &MerchantState{
		ID:           name,
		PkM:          sk.PubKey().SerializeCompressed(),
		keyPair:      kp,
		sk:           sk,
		verifier:     verifier,
		log:          logger,
		metrics:      m,
		keys:         make(map[string]*wpkEntry),
		payTokens:    make(map[string]*cl.Signature),
		establishing: make(map[string]struct{}),
	}
	logger.Info("initialized merchant",
		log.String("merchant", name),
		log.String("channel", channel.Name),
		log.Int("digitBase", int(rp.Pub.P.U)),
		log.Int("digits", int(rp.Pub.P.L)),
	)
	return &ChannelToken{PkM: merch.PkM, Params: params}, merch, nil
}

// EstablishMerchantIssueCloseToken verifies the customer's proof of the
// initial wallet opening for the agreed balances and blindly signs the
// close wallet.
func EstablishMerchantIssueCloseToken(
	rng io.Reader,
	channel *ChannelState,
	token *ChannelToken,
	com *pedersen.Commitment,
	proof *pedersen.Proof,
	b0Cust, b0Merch int64,
	merch *MerchantState,
) (*cl.Signature, error) {
	if !token.IsInit() {
		return nil, phaseErr(PhaseEstablish, ErrNoParams)
	}
	if b0Cust < 0 || b0Merch < 0 || b0Cust > channel.MaxBalance || b0Merch > channel.MaxBalance {
		return nil, phaseErr(PhaseEstablish, fmt.Errorf("%w: customer %d, merchant %d", ErrInvalidBalance, b0Cust, b0Merch))
	}

	var zero fr.Element
	revealed := map[int]fr.Element{
		wallet.SlotChannelID: token.ComputeChannelID(),
		wallet.SlotBC:        group.ScalarFromInt64(b0Cust),
		wallet.SlotBM:        group.ScalarFromInt64(b0Merch),
		wallet.SlotClose:     zero,
	}
	if !channel.Params.ComParams.VerifyOpening(com, proof, revealed) {
		merch.log.Warn("rejected wallet opening proof", log.String("channel", channel.Name))
		return nil, phaseErr(PhaseEstablish, ErrBadProof)
	}

	closeToken, err := merch.keyPair.SignBlind(rng, channel.Params.MPK, closeCommitment(channel.Params, com))
	if err != nil {
		return nil, phaseErr(PhaseEstablish, err)
	}

	merch.lock.Lock()
	merch.establishing[hex.EncodeToString(com.Bytes())] = struct{}{}
	merch.lock.Unlock()
	return closeToken, nil
}

// EstablishMerchantIssuePayToken signs the initial wallet once funding is
// confirmed. The commitment must have passed
// EstablishMerchantIssueCloseToken.
func EstablishMerchantIssuePayToken(rng io.Reader, channel *ChannelState, com *pedersen.Commitment, merch *MerchantState) (*cl.Signature, error) {
	key := hex.EncodeToString(com.Bytes())

	merch.lock.Lock()
	defer merch.lock.Unlock()

	if _, ok := merch.establishing[key]; !ok {
		return nil, phaseErr(PhaseEstablish, ErrBadProof)
	}
	payToken, err := merch.keyPair.SignBlind(rng, channel.Params.MPK, com)
	if err != nil {
		return nil, phaseErr(PhaseEstablish, err)
	}
	delete(merch.establishing, key)
	merch.metrics.MarkChannelOpened()
	return payToken, nil
}

// VerifyPaymentProof verifies a payment and returns the close token on the
// new wallet. The pay token is kept until the spent wallet is revoked.
func VerifyPaymentProof(rng io.Reader, channel *ChannelState, payment *Payment, merch *MerchantState) (*cl.Signature, error) {
	if err := merch.checkPayment(channel, payment); err != nil {
		return nil, err
	}
	closeToken, err := merch.acceptPayment(rng, channel, payment)
	if err != nil {
		return nil, phaseErr(PhasePay, err)
	}
	return closeToken, nil
}

// VerifyMultiplePaymentProofs is run by an intermediary merchant receiving a
// payment on one channel and paying on another. Both payments are verified
// before either is accepted, and the amounts must offset.
func VerifyMultiplePaymentProofs(
	rng io.Reader,
	senderChannel *ChannelState,
	senderPayment *Payment,
	receiverChannel *ChannelState,
	receiverPayment *Payment,
	merch *MerchantState,
) (*cl.Signature, *cl.Signature, error) {
	if senderPayment.Amount+receiverPayment.Amount != 0 {
		return nil, nil, phaseErr(PhasePay, fmt.Errorf("%w: %d and %d", ErrAmountsDoNotOffset, senderPayment.Amount, receiverPayment.Amount))
	}
	if err := merch.checkPayment(senderChannel, senderPayment); err != nil {
		return nil, nil, err
	}
	if err := merch.checkPayment(receiverChannel, receiverPayment); err != nil {
		return nil, nil, err
	}
	senderClose, err := merch.acceptPayment(rng, senderChannel, senderPayment)
	if err != nil {
		return nil, nil, phaseErr(PhasePay, err)
	}
	receiverClose, err := merch.acceptPayment(rng, receiverChannel, receiverPayment)
	if err != nil {
		return nil, nil, phaseErr(PhasePay, err)
	}
	return senderClose, receiverClose, nil
}

func (m *MerchantState) checkPayment(channel *ChannelState, payment *Payment) error {
	m.metrics.MarkPaymentStarted()
	start := time.Now()
	defer func() {
		m.metrics.ObserveVerify(time.Since(start))
	}()

	if _, err := secp256k1.ParsePubKey(payment.Wpk); err != nil {
		m.metrics.MarkPaymentFailed("malformed")
		return phaseErr(PhasePay, fmt.Errorf("%w: %w", ErrBadProof, err))
	}
	fp := hashing.FingerprintHex(payment.Wpk)

	m.lock.Lock()
	_, spent := m.keys[fp]
	m.lock.Unlock()
	if spent {
		m.metrics.MarkPaymentFailed("reused_wpk")
		m.log.Warn("rejected payment on spent wallet", log.String("wpk", fp))
		return phaseErr(PhasePay, ErrReusedWpk)
	}

	epsilon := payment.Amount + channel.Fee
	if !verifyNIZK(channel.Params, payment.Proof, payment.Com, payment.Wpk, epsilon, m.verifier.Verify) {
		m.metrics.MarkPaymentFailed("bad_proof")
		m.log.Warn("rejected payment proof",
			log.String("channel", channel.Name),
			log.String("wpk", fp),
		)
		return phaseErr(PhasePay, ErrBadProof)
	}
	return nil
}

func (m *MerchantState) acceptPayment(rng io.Reader, channel *ChannelState, payment *Payment) (*cl.Signature, error) {
	closeToken, err := m.keyPair.SignBlind(rng, channel.Params.MPK, closeCommitment(channel.Params, payment.Com))
	if err != nil {
		return nil, err
	}
	payToken, err := m.keyPair.SignBlind(rng, channel.Params.MPK, payment.Com)
	if err != nil {
		return nil, err
	}

	fp := hashing.FingerprintHex(payment.Wpk)

	m.lock.Lock()
	defer m.lock.Unlock()

	if _, spent := m.keys[fp]; spent {
		return nil, ErrReusedWpk
	}
	m.keys[fp] = &wpkEntry{wpk: payment.Wpk}
	m.payTokens[fp] = payToken

	m.log.Debug("accepted payment",
		log.String("channel", channel.Name),
		log.String("wpk", fp),
	)
	return closeToken, nil
}

// VerifyRevokeToken checks the revocation of a spent wallet and releases the
// pay token on its successor.
func VerifyRevokeToken(rt *RevokeToken, merch *MerchantState) (*cl.Signature, error) {
	entry, fp, err := merch.checkRevokeToken(rt)
	if err != nil {
		return nil, err
	}
	return merch.releasePayToken(entry, fp, rt)
}

// VerifyMultipleRevokeTokens checks both revocations of an intermediary
// payment before releasing either pay token.
func VerifyMultipleRevokeTokens(senderRT, receiverRT *RevokeToken, merch *MerchantState) (*cl.Signature, *cl.Signature, error) {
	senderEntry, senderFP, err := merch.checkRevokeToken(senderRT)
	if err != nil {
		return nil, nil, err
	}
	receiverEntry, receiverFP, err := merch.checkRevokeToken(receiverRT)
	if err != nil {
		return nil, nil, err
	}
	senderPT, err := merch.releasePayToken(senderEntry, senderFP, senderRT)
	if err != nil {
		return nil, nil, err
	}
	receiverPT, err := merch.releasePayToken(receiverEntry, receiverFP, receiverRT)
	if err != nil {
		return nil, nil, err
	}
	return senderPT, receiverPT, nil
}

func (m *MerchantState) checkRevokeToken(rt *RevokeToken) (*wpkEntry, string, error) {
	if rt == nil || rt.Message == nil {
		return nil, "", phaseErr(PhaseRevoke, ErrBadRevokeToken)
	}
	fp := hashing.FingerprintHex(rt.Message.Wpk)

	m.lock.Lock()
	entry, ok := m.keys[fp]
	m.lock.Unlock()
	if !ok {
		return nil, "", phaseErr(PhaseRevoke, ErrUnknownWpk)
	}
	if !VerifyRevokeMessage(rt) {
		m.metrics.MarkRevocation(false)
		m.log.Warn("rejected revoke token", log.String("wpk", fp))
		return nil, "", phaseErr(PhaseRevoke, ErrBadRevokeToken)
	}
	return entry, fp, nil
}

func (m *MerchantState) releasePayToken(entry *wpkEntry, fp string, rt *RevokeToken) (*cl.Signature, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	payToken, ok := m.payTokens[fp]
	if !ok {
		return nil, phaseErr(PhaseRevoke, ErrNoParkedToken)
	}
	entry.revoke = rt
	delete(m.payTokens, fp)

	m.metrics.MarkRevocation(true)
	m.metrics.MarkPaymentCompleted()
	return payToken, nil
}

// MerchantClose checks a customer close. A close on a revoked wallet yields
// the signed dispute message. A close on a spent wallet whose revocation was
// withheld is reported as a merchant abort.
func MerchantClose(channel *ChannelState, token *ChannelToken, closeC *CloseC, merch *MerchantState) (*CloseVerdict, error) {
	if !channel.Established {
		return nil, phaseErr(PhaseClose, ErrNotEstablished)
	}
	if !VerifyCustCloseMessage(token, closeC) {
		merch.log.Warn("rejected customer close message", log.String("channel", channel.Name))
		return nil, phaseErr(PhaseClose, ErrBadCloseMessage)
	}

	fp := hashing.FingerprintHex(closeC.Wpk)
	merch.lock.Lock()
	entry, ok := merch.keys[fp]
	var rt *RevokeToken
	if ok {
		rt = entry.revoke
	}
	merch.lock.Unlock()

	if !ok {
		return &CloseVerdict{Status: CloseValid}, nil
	}
	if rt == nil || !VerifyRevokeMessage(rt) {
		merch.log.Warn("customer closed on spent wallet without revocation",
			log.String("channel", channel.Name),
			log.String("wpk", fp),
		)
		return &CloseVerdict{Status: CloseMerchantAbort}, nil
	}

	merch.metrics.MarkStaleClose()
	merch.log.Warn("customer closed on revoked wallet",
		log.String("channel", channel.Name),
		log.String("wpk", fp),
	)
	evidence, err := NewMerchantCloseMessage(merch, closeC, rt)
	if err != nil {
		return nil, phaseErr(PhaseClose, err)
	}
	return &CloseVerdict{
		Status:   CloseRevoked,
		Evidence: evidence,
	}, nil
}

// NewMerchantCloseMessage signs the dispute of closeC with the revocation rt.
func NewMerchantCloseMessage(merch *MerchantState, closeC *CloseC, rt *RevokeToken) (*CloseM, error) {
	closeM := &CloseM{
		Wpk:         closeC.Wpk,
		RevokeToken: rt,
	}
	h := closeM.hash(closeC.Hash())
	sig, err := signECDSA(merch.sk, h[:])
	if err != nil {
		return nil, err
	}
	closeM.Signature = sig
	return closeM, nil
}
