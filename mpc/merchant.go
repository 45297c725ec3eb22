// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mpc

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"golang.org/x/crypto/hkdf"

	"github.com/luxfi/zkchannels/metrics"
	"github.com/luxfi/zkchannels/store"
	"github.com/luxfi/zkchannels/utils/hashing"
	"github.com/luxfi/zkchannels/utils/timer/mockable"
	"github.com/luxfi/zkchannels/wallet"
)

const (
	payTokenKeyInfo  = "ZKCHANNELS_PAY_TOKEN_KEY"
	maskSeedInfo     = "ZKCHANNELS_MASK_SEED"
	sessionMaskInfo  = "ZKCHANNELS_SESSION_MASKS"
	sessionMasksSize = 32 + 16 + 32 + 32
)

// MerchantMPCState holds the merchant keys and the channels it serves.
type MerchantMPCState struct {
	ID  string
	PkM []byte

	sk       *secp256k1.PrivateKey
	hmacKey  [32]byte
	maskSeed [32]byte

	log     log.Logger
	metrics metrics.Metrics
	clock   mockable.Clock

	lock     sync.Mutex
	channels map[ids.ID]*merchantChannel
	// sessions holds the signing nonces of prepared sessions. They are used
	// at most once and never persisted.
	sessions map[SessionID]*sessionNonces
}

type merchantChannel struct {
	token    ChannelMPCToken
	initHash hashing.Hash256
	status   ChannelStatus
	protocol ProtocolStatus
}

type sessionNonces struct {
	escrow *PartialSig
	merch  *PartialSig
}

// InitMerchant creates a merchant with fresh signing and pay token keys.
func InitMerchant(rng io.Reader, channel *ChannelMPCState, name string, logger log.Logger, m metrics.Metrics) (*MerchantMPCState, error) {
	sk, err := secp256k1.GeneratePrivateKeyFromRand(rng)
	if err != nil {
		return nil, err
	}
	var seed [32]byte
	if _, err := io.ReadFull(rng, seed[:]); err != nil {
		return nil, err
	}

	merch := &MerchantMPCState{
		ID:       name,
		PkM:      sk.PubKey().SerializeCompressed(),
		sk:       sk,
		log:      logger,
		metrics:  m,
		channels: make(map[ids.ID]*merchantChannel),
		sessions: make(map[SessionID]*sessionNonces),
	}
	if err := deriveKey(seed[:], nil, payTokenKeyInfo, merch.hmacKey[:]); err != nil {
		return nil, err
	}
	if err := deriveKey(seed[:], nil, maskSeedInfo, merch.maskSeed[:]); err != nil {
		return nil, err
	}

	logger.Info("initialized merchant",
		log.String("channel", channel.Name),
		log.String("merchant", name),
		log.String("pkM", hashing.FingerprintHex(merch.PkM)),
	)
	return merch, nil
}

func deriveKey(secret, salt []byte, info string, out []byte) error {
	_, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(info)), out)
	return err
}

// Clock is used to timestamp sessions.
func (m *MerchantMPCState) Clock() *mockable.Clock {
	return &m.clock
}

func (m *MerchantMPCState) payToken(state *wallet.State) [32]byte {
	h := state.ComputeHash()
	mac := hmac.New(sha256.New, m.hmacKey[:])
	_, _ = mac.Write(h[:])
	var out [32]byte
	mac.Sum(out[:0])
	return out
}

func (m *MerchantMPCState) channel(escrowTxID ids.ID) (*merchantChannel, error) {
	c, ok := m.channels[escrowTxID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, escrowTxID)
	}
	return c, nil
}

// ValidateChannelParams checks the customer's initial state against its
// hash, the channel fees and the dust limits, and registers the channel.
func ValidateChannelParams(channel *ChannelMPCState, token *ChannelMPCToken, init *InitCustState, initHash hashing.Hash256, merch *MerchantMPCState) (bool, error) {
	if !token.IsInit() {
		return false, ErrChannelNotInit
	}
	if !bytes.Equal(token.PkM, merch.PkM) || !bytes.Equal(token.PkC, init.PkC) {
		return false, nil
	}
	fees := channel.FeeInfo
	if init.MinFee != fees.MinFee || init.MaxFee != fees.MaxFee || init.FeeMC != fees.FeeMC {
		return false, nil
	}
	if init.CustBal < fees.BalMinCust || init.MerchBal < fees.BalMinMerch {
		return false, fmt.Errorf("%w: customer %d, merchant %d", ErrDustLimit, init.CustBal, init.MerchBal)
	}
	if init.state(token).ComputeHash() != initHash {
		return false, nil
	}

	merch.lock.Lock()
	defer merch.lock.Unlock()

	if c, ok := merch.channels[token.EscrowTxID]; ok && c.status != ChannelNone {
		return false, &StatusError{Op: "validate channel params", Have: c.status, Want: []fmt.Stringer{ChannelNone}}
	}
	merch.channels[token.EscrowTxID] = &merchantChannel{
		token:    *token,
		initHash: initHash,
		protocol: ProtocolInitialized,
	}
	return true, nil
}

// SignInitialClose signs both close transactions of the validated initial
// state. The channel is then pending open.
func SignInitialClose(token *ChannelMPCToken, s0 *wallet.State, merch *MerchantMPCState) (*CloseSignatures, error) {
	merch.lock.Lock()
	defer merch.lock.Unlock()

	c, err := merch.channel(token.EscrowTxID)
	if err != nil {
		return nil, err
	}
	if s0.ComputeHash() != c.initHash {
		return nil, ErrInitStateMismatch
	}
	if err := changeChannelStatus("sign initial close", &c.status, ChannelPendingOpen); err != nil {
		return nil, err
	}
	escrow := CloseDigest(s0, true)
	merchClose := CloseDigest(s0, false)
	return &CloseSignatures{
		Escrow: signECDSA(merch.sk, escrow[:]),
		Merch:  signECDSA(merch.sk, merchClose[:]),
	}, nil
}

// MerchantMarkOpenChannel records that the escrow transaction confirmed.
func MerchantMarkOpenChannel(escrowTxID ids.ID, merch *MerchantMPCState) error {
	merch.lock.Lock()
	defer merch.lock.Unlock()

	c, err := merch.channel(escrowTxID)
	if err != nil {
		return err
	}
	if err := changeChannelStatus("mark open", &c.status, ChannelOpen); err != nil {
		return err
	}
	merch.metrics.MarkChannelOpened()
	merch.log.Info("channel open", log.Stringer("escrowTxID", escrowTxID))
	return nil
}

// ChannelStatus returns the merchant's status of the channel funded by
// escrowTxID.
func (m *MerchantMPCState) ChannelStatus(escrowTxID ids.ID) (ChannelStatus, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	c, err := m.channel(escrowTxID)
	if err != nil {
		return ChannelNone, err
	}
	return c.status, nil
}

// ActivateMerchant issues the first pay token on the initial state and
// records the activation. A channel is activated once.
func ActivateMerchant(db store.StateDatabase, token *ChannelMPCToken, s0 *wallet.State, merch *MerchantMPCState) ([32]byte, error) {
	merch.lock.Lock()
	defer merch.lock.Unlock()

	c, err := merch.channel(token.EscrowTxID)
	if err != nil {
		return [32]byte{}, err
	}
	if err := checkChannelStatus("activate", c.status, ChannelOpen); err != nil {
		return [32]byte{}, err
	}
	if err := checkProtocolStatus("activate", c.protocol, ProtocolInitialized); err != nil {
		return [32]byte{}, err
	}
	if s0.ComputeHash() != c.initHash {
		return [32]byte{}, ErrInitStateMismatch
	}
	channelID, err := c.token.ComputeChannelID()
	if err != nil {
		return [32]byte{}, err
	}

	pt := merch.payToken(s0)
	err = db.PutActivation(&store.ActivationRecord{
		ChannelID: channelID,
		Nonce:     s0.Nonce,
		RevLock:   s0.RevLock,
		PayToken:  pt,
	})
	if err != nil {
		return [32]byte{}, err
	}
	if err := changeProtocolStatus("activate", &c.protocol, ProtocolActivated); err != nil {
		return [32]byte{}, err
	}
	merch.log.Info("channel activated",
		log.Stringer("channelID", channelID),
		log.Stringer("escrowTxID", token.EscrowTxID),
	)
	return pt, nil
}

// PayPrepareMerchant opens a payment session on the state identified by
// nonce and returns the commitment to the pay token mask. Refunds need a
// justification.
func PayPrepareMerchant(ctx context.Context, rng io.Reader, db store.StateDatabase, req *PaymentRequest, justification string, merch *MerchantMPCState) ([32]byte, error) {
	if err := db.IsConnected(ctx); err != nil {
		return [32]byte{}, err
	}
	if req.Amount < 0 && justification == "" {
		return [32]byte{}, ErrMissingJustification
	}

	id := req.SessionID.String()
	switch _, err := db.LoadSessionState(id); {
	case err == nil:
		return [32]byte{}, fmt.Errorf("%w: %s", ErrSessionExists, id)
	case !errors.Is(err, database.ErrNotFound):
		return [32]byte{}, err
	}

	if err := db.AcquireNonce(req.Nonce, id); err != nil {
		merch.metrics.MarkPaymentFailed("nonce")
		return [32]byte{}, err
	}

	session, masks, nonces, err := merch.newSession(rng, req, justification)
	if err == nil {
		err = db.PutSession(id, session, masks)
	}
	if err != nil {
		if releaseErr := db.ReleaseNonce(req.Nonce, id); releaseErr != nil {
			merch.log.Error("failed to release nonce lease",
				log.String("session", id),
				log.Err(releaseErr),
			)
		}
		return [32]byte{}, err
	}

	merch.lock.Lock()
	merch.sessions[req.SessionID] = nonces
	merch.lock.Unlock()

	merch.metrics.MarkPaymentStarted()
	merch.log.Debug("prepared payment session",
		log.String("session", id),
		log.Int("amount", int(req.Amount)),
	)
	return commitPayMask(session.PayMask, session.PayMaskR), nil
}

func (m *MerchantMPCState) newSession(rng io.Reader, req *PaymentRequest, justification string) (*store.SessionState, *store.MaskedMPCInputs, *sessionNonces, error) {
	var fresh [32]byte
	if _, err := io.ReadFull(rng, fresh[:]); err != nil {
		return nil, nil, nil, err
	}
	var buf [sessionMasksSize]byte
	salt := make([]byte, 0, len(req.SessionID)+len(fresh))
	salt = append(salt, req.SessionID[:]...)
	salt = append(salt, fresh[:]...)
	if err := deriveKey(m.maskSeed[:], salt, sessionMaskInfo, buf[:]); err != nil {
		return nil, nil, nil, err
	}

	escrow, err := NewPartialSig(rng, m.sk)
	if err != nil {
		return nil, nil, nil, err
	}
	merchSig, err := NewPartialSig(rng, m.sk)
	if err != nil {
		return nil, nil, nil, err
	}

	session := &store.SessionState{
		Nonce:         req.Nonce,
		RevLockCom:    req.RevLockCom,
		Amount:        req.Amount,
		Status:        store.PaymentPrepare,
		Justification: justification,
		StartedAt:     m.clock.Unix(),
	}
	masks := &store.MaskedMPCInputs{
		REscrowSig: escrow.R.Bytes(),
		RMerchSig:  merchSig.R.Bytes(),
	}
	copy(session.PayMask[:], buf[0:32])
	copy(session.PayMaskR[:], buf[32:48])
	copy(masks.EscrowMask[:], buf[48:80])
	copy(masks.MerchMask[:], buf[80:112])
	return session, masks, &sessionNonces{escrow: escrow, merch: merchSig}, nil
}

// loadSession returns the session, requiring one of the given statuses.
func loadSession(db store.StateDatabase, id SessionID, want ...store.PaymentStatus) (*store.SessionState, error) {
	session, err := db.LoadSessionState(id.String())
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", store.ErrSessionUnknown, id)
	}
	if err != nil {
		return nil, err
	}
	for _, w := range want {
		if session.Status == w {
			return session, nil
		}
	}
	return nil, fmt.Errorf("%w: session %s is %s", ErrSessionStatus, id, session.Status)
}

// failSession marks the session failed and releases its nonce unspent.
func (m *MerchantMPCState) failSession(db store.StateDatabase, id SessionID, session *store.SessionState, reason string) {
	m.lock.Lock()
	delete(m.sessions, id)
	m.lock.Unlock()

	session.Status = store.PaymentError
	if err := db.UpdateSessionState(id.String(), session); err != nil {
		m.log.Error("failed to mark session failed",
			log.String("session", id.String()),
			log.Err(err),
		)
	}
	if err := db.ReleaseNonce(session.Nonce, id.String()); err != nil {
		m.log.Warn("failed to release nonce lease",
			log.String("session", id.String()),
			log.Err(err),
		)
	}
	m.metrics.MarkPaymentFailed(reason)
}

// PayUpdateMerchant runs the merchant side of the payment MPC. It returns
// false if the functionality rejected the customer's inputs.
func PayUpdateMerchant(ctx context.Context, engine Engine, t Transport, channel *ChannelMPCState, db store.StateDatabase, sessionID SessionID, payMaskCom [32]byte, merch *MerchantMPCState) (bool, error) {
	if err := db.IsConnected(ctx); err != nil {
		return false, err
	}
	session, err := loadSession(db, sessionID, store.PaymentPrepare)
	if err != nil {
		return false, err
	}
	if commitPayMask(session.PayMask, session.PayMaskR) != payMaskCom {
		return false, ErrPayMaskMismatch
	}
	masks, err := db.GetMaskedMPCInputs(sessionID.String())
	if err != nil {
		return false, err
	}
	if err := db.RenewNonce(session.Nonce, sessionID.String()); err != nil {
		merch.log.Warn("session lost its nonce lease",
			log.String("session", sessionID.String()),
			log.Err(err),
		)
		merch.failSession(db, sessionID, session, "lease")
		return false, err
	}

	merch.lock.Lock()
	nonces, ok := merch.sessions[sessionID]
	delete(merch.sessions, sessionID)
	merch.lock.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: no signing nonces for session %s", ErrSessionStatus, sessionID)
	}

	session.Status = store.PaymentUpdate
	if err := db.UpdateSessionState(sessionID.String(), session); err != nil {
		return false, err
	}

	in := &MerchantInput{
		PublicInputs: PublicInputs{
			PkM:         merch.PkM,
			Amount:      session.Amount,
			Nonce:       session.Nonce,
			RevLockCom:  session.RevLockCom,
			PayMaskCom:  payMaskCom,
			BalMinCust:  channel.FeeInfo.BalMinCust,
			BalMinMerch: channel.FeeInfo.BalMinMerch,
		},
		HMACKey:    merch.hmacKey,
		PayMask:    session.PayMask,
		PayMaskR:   session.PayMaskR,
		EscrowMask: masks.EscrowMask,
		MerchMask:  masks.MerchMask,
		EscrowSig:  nonces.escrow,
		MerchSig:   nonces.merch,
	}
	start := time.Now()
	err = engine.ExecuteMerchant(ctx, t, in)
	merch.metrics.ObserveMPC(time.Since(start))
	switch {
	case errors.Is(err, ErrMPCFailed):
		merch.log.Warn("payment rejected by mpc",
			log.String("session", sessionID.String()),
			log.Err(err),
		)
		merch.failSession(db, sessionID, session, "mpc")
		return false, nil
	case err != nil:
		merch.log.Warn("payment mpc aborted",
			log.String("session", sessionID.String()),
			log.Err(err),
		)
		merch.failSession(db, sessionID, session, "transport")
		return false, err
	}
	return true, nil
}

// PayConfirmMPCResult records the customer's view of the MPC outcome. On
// success the old nonce is spent and the close signature masks are
// released; otherwise the session is marked failed.
func PayConfirmMPCResult(ctx context.Context, db store.StateDatabase, sessionID SessionID, success bool, merch *MerchantMPCState) (*store.MaskedMPCInputs, error) {
	if err := db.IsConnected(ctx); err != nil {
		return nil, err
	}
	session, err := loadSession(db, sessionID, store.PaymentUpdate)
	if err != nil {
		return nil, err
	}
	if !success {
		merch.failSession(db, sessionID, session, "customer")
		return nil, fmt.Errorf("%w: session %s", ErrPaymentNotConfirmed, sessionID)
	}
	masks, err := db.GetMaskedMPCInputs(sessionID.String())
	if err != nil {
		return nil, err
	}
	if err := db.SpendNonce(session.Nonce, sessionID.String()); err != nil {
		merch.log.Warn("withholding close masks",
			log.String("session", sessionID.String()),
			log.Err(err),
		)
		merch.failSession(db, sessionID, session, "lease")
		return nil, err
	}
	return masks, nil
}

// PayValidateRevLockMerchant checks the revealed secret of the spent state
// against the session's lock commitment. On success the secret and the
// final session state are stored together and the pay token mask is
// released.
func PayValidateRevLockMerchant(ctx context.Context, db store.StateDatabase, sessionID SessionID, revoked *RevokedState, merch *MerchantMPCState) ([32]byte, [16]byte, error) {
	if err := db.IsConnected(ctx); err != nil {
		return [32]byte{}, [16]byte{}, err
	}
	session, err := loadSession(db, sessionID, store.PaymentUpdate)
	if err != nil {
		return [32]byte{}, [16]byte{}, err
	}
	if !revoked.Valid(session.RevLockCom) {
		merch.metrics.MarkRevocation(false)
		merch.log.Warn("invalid revocation",
			log.String("session", sessionID.String()),
		)
		return [32]byte{}, [16]byte{}, ErrRevLockMismatch
	}

	session.Status = store.PaymentSuccess
	if err := db.CompleteSession(sessionID.String(), session, revoked.RevLock, revoked.RevSecret); err != nil {
		return [32]byte{}, [16]byte{}, err
	}

	merch.metrics.MarkRevocation(true)
	merch.metrics.MarkPaymentCompleted()
	merch.log.Debug("payment complete",
		log.String("session", sessionID.String()),
	)
	return session.PayMask, session.PayMaskR, nil
}

// ForceMerchantClose signs the merch-close spend of the escrow.
func ForceMerchantClose(escrowTxID ids.ID, merch *MerchantMPCState) (*MerchantCloseMessage, error) {
	merch.lock.Lock()
	defer merch.lock.Unlock()

	c, err := merch.channel(escrowTxID)
	if err != nil {
		return nil, err
	}
	if err := changeChannelStatus("force close", &c.status, ChannelMerchantInitClose); err != nil {
		return nil, err
	}
	digest := merchForceDigest(&c.token)
	merch.log.Info("merchant closing channel", log.Stringer("escrowTxID", escrowTxID))
	return &MerchantCloseMessage{
		EscrowTxID: escrowTxID,
		MerchTxID:  c.token.MerchTxID,
		Signature:  signECDSA(merch.sk, digest[:]),
	}, nil
}

// VerifyMerchantCloseMessage checks a merchant close against the token.
func VerifyMerchantCloseMessage(token *ChannelMPCToken, msg *MerchantCloseMessage) bool {
	if msg == nil || msg.EscrowTxID != token.EscrowTxID || msg.MerchTxID != token.MerchTxID {
		return false
	}
	digest := merchForceDigest(token)
	return verifyECDSA(token.PkM, digest[:], msg.Signature)
}

// MerchantCheckCustomerClose inspects a customer close. A close on a state
// whose lock was revealed yields the revocation evidence.
func MerchantCheckCustomerClose(db store.StateDatabase, msg *CloseMessage, merch *MerchantMPCState) (*CloseDispute, error) {
	if msg == nil || msg.State == nil {
		return nil, ErrCloseUnsigned
	}
	escrowTxID := msg.State.EscrowTxID

	merch.lock.Lock()
	defer merch.lock.Unlock()

	c, err := merch.channel(escrowTxID)
	if err != nil {
		return nil, err
	}
	digest := CloseDigest(msg.State, msg.FromEscrow)
	if !verifyECDSA(merch.PkM, digest[:], msg.MerchSig) {
		return nil, ErrCloseUnsigned
	}
	if !verifyECDSA(c.token.PkC, digest[:], msg.CustSig) {
		return nil, ErrCloseCustomerSig
	}

	secret, revoked, err := db.GetRevokedSecret(msg.State.RevLock)
	if err != nil {
		return nil, err
	}
	if c.status != ChannelCustomerInitClose {
		if err := changeChannelStatus("check customer close", &c.status, ChannelCustomerInitClose); err != nil {
			return nil, err
		}
	}

	dispute := &CloseDispute{EscrowTxID: escrowTxID}
	if revoked {
		merch.metrics.MarkStaleClose()
		merch.log.Warn("customer closed on revoked state",
			log.Stringer("escrowTxID", escrowTxID),
			log.Uint64("custBalance", uint64(msg.State.BC)),
		)
		dispute.Revoked = true
		dispute.Evidence = &LockPreimagePair{
			RevLock:   msg.State.RevLock,
			RevSecret: secret,
		}
		return dispute, nil
	}
	return dispute, changeChannelStatus("check customer close", &c.status, ChannelPendingClose)
}

// MerchantConfirmClose records that a close transaction confirmed.
func MerchantConfirmClose(escrowTxID ids.ID, merch *MerchantMPCState) error {
	merch.lock.Lock()
	defer merch.lock.Unlock()

	c, err := merch.channel(escrowTxID)
	if err != nil {
		return err
	}
	return changeChannelStatus("confirm close", &c.status, ChannelConfirmedClose)
}
