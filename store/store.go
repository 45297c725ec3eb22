// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store persists merchant payment sessions, nonce leases,
// activations and revealed revocation secrets.
package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/zkchannels/utils/timer/mockable"
	"github.com/luxfi/zkchannels/wallet"
)

var (
	_ StateDatabase = (*DB)(nil)

	kvPrefix         = []byte("kv")
	sessionPrefix    = []byte("session")
	maskPrefix       = []byte("mask")
	leasePrefix      = []byte("lease")
	spentPrefix      = []byte("spent")
	activationPrefix = []byte("activation")
	revokedPrefix    = []byte("revoked")

	probeKey = []byte("connected")

	ErrNotConnected   = errors.New("store is not connected")
	ErrSessionUnknown = errors.New("unknown session")
	ErrNonceSpent     = errors.New("nonce already spent")
	ErrNonceLeased    = errors.New("nonce leased by another session")
	ErrLeaseNotHeld   = errors.New("nonce lease not held by session")
)

// StateDatabase is the key-value store consumed by the merchant.
type StateDatabase interface {
	IsConnected(ctx context.Context) error
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Contains(key string) (bool, error)
	Clear(key string) error

	LoadSessionState(sessionID string) (*SessionState, error)
	UpdateSessionState(sessionID string, state *SessionState) error
	GetMaskedMPCInputs(sessionID string) (*MaskedMPCInputs, error)
	// PutSession writes the session and its masks atomically.
	PutSession(sessionID string, state *SessionState, masks *MaskedMPCInputs) error

	// AcquireNonce leases nonce to sessionID. Only one session may pay from
	// a given channel state at a time, and a spent nonce is never leased
	// again.
	AcquireNonce(nonce wallet.Nonce, sessionID string) error
	// RenewNonce extends a lease still held by sessionID.
	RenewNonce(nonce wallet.Nonce, sessionID string) error
	// SpendNonce retires a nonce leased by sessionID. Calling it again for
	// the same session is a no-op.
	SpendNonce(nonce wallet.Nonce, sessionID string) error
	// ReleaseNonce drops the lease without spending the nonce.
	ReleaseNonce(nonce wallet.Nonce, sessionID string) error
	// CompleteSession stores the revealed secret and the final session state
	// in one batch. The session must have spent its nonce.
	CompleteSession(sessionID string, state *SessionState, revLock, revSecret [32]byte) error

	PutActivation(record *ActivationRecord) error
	GetActivation(channelID ids.ID) (*ActivationRecord, error)

	PutRevokedLock(revLock, revSecret [32]byte) error
	GetRevokedSecret(revLock [32]byte) ([32]byte, bool, error)
}

// DB implements StateDatabase over a luxfi database.
type DB struct {
	lock sync.Mutex
	log  log.Logger

	baseDB       *versiondb.Database
	kvDB         database.Database
	sessionDB    database.Database
	maskDB       database.Database
	leaseDB      database.Database
	spentDB      database.Database
	activationDB database.Database
	revokedDB    database.Database

	clock        mockable.Clock
	leaseTimeout time.Duration
}

// New returns a store backed by db.
func New(db database.Database, leaseTimeout time.Duration, logger log.Logger) *DB {
	baseDB := versiondb.New(db)
	return &DB{
		log:          logger,
		baseDB:       baseDB,
		kvDB:         prefixdb.New(kvPrefix, baseDB),
		sessionDB:    prefixdb.New(sessionPrefix, baseDB),
		maskDB:       prefixdb.New(maskPrefix, baseDB),
		leaseDB:      prefixdb.New(leasePrefix, baseDB),
		spentDB:      prefixdb.New(spentPrefix, baseDB),
		activationDB: prefixdb.New(activationPrefix, baseDB),
		revokedDB:    prefixdb.New(revokedPrefix, baseDB),
		leaseTimeout: leaseTimeout,
	}
}

// Clock exposes the lease clock so tests can move time.
func (s *DB) Clock() *mockable.Clock {
	return &s.clock
}

func (s *DB) IsConnected(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, err := s.baseDB.Has(probeKey); err != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	return nil
}

func (s *DB) Get(key string) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.kvDB.Get([]byte(key))
}

func (s *DB) Put(key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.kvDB.Put([]byte(key), value); err != nil {
		return s.abort(err)
	}
	return s.baseDB.Commit()
}

func (s *DB) Contains(key string) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.kvDB.Has([]byte(key))
}

func (s *DB) Clear(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.kvDB.Delete([]byte(key)); err != nil {
		return s.abort(err)
	}
	return s.baseDB.Commit()
}

func (s *DB) LoadSessionState(sessionID string) (*SessionState, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	state := &SessionState{}
	if err := s.get(s.sessionDB, sessionID, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *DB) UpdateSessionState(sessionID string, state *SessionState) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	has, err := s.sessionDB.Has([]byte(sessionID))
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%w: %s", ErrSessionUnknown, sessionID)
	}
	if err := s.put(s.sessionDB, sessionID, state); err != nil {
		return s.abort(err)
	}
	return s.baseDB.Commit()
}

func (s *DB) GetMaskedMPCInputs(sessionID string) (*MaskedMPCInputs, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	masks := &MaskedMPCInputs{}
	if err := s.get(s.maskDB, sessionID, masks); err != nil {
		return nil, err
	}
	return masks, nil
}

func (s *DB) PutSession(sessionID string, state *SessionState, masks *MaskedMPCInputs) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.put(s.sessionDB, sessionID, state); err != nil {
		return s.abort(err)
	}
	if masks != nil {
		if err := s.put(s.maskDB, sessionID, masks); err != nil {
			return s.abort(err)
		}
	}
	return s.baseDB.Commit()
}

func (s *DB) AcquireNonce(nonce wallet.Nonce, sessionID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	spent, err := s.spentDB.Has(nonce[:])
	if err != nil {
		return err
	}
	if spent {
		return fmt.Errorf("%w: %x", ErrNonceSpent, nonce[:])
	}

	now := s.clock.Time()
	lease := &nonceLease{}
	err = s.get(s.leaseDB, string(nonce[:]), lease)
	switch {
	case err == nil:
		if lease.SessionID != sessionID && now.Unix() < lease.Expiry {
			return fmt.Errorf("%w: %x held by %s", ErrNonceLeased, nonce[:], lease.SessionID)
		}
		if lease.SessionID != sessionID {
			s.log.Debug("taking over expired nonce lease",
				log.String("nonce", hex.EncodeToString(nonce[:])),
				log.String("previousSession", lease.SessionID),
			)
		}
	case errors.Is(err, database.ErrNotFound):
	default:
		return err
	}

	lease = &nonceLease{
		SessionID: sessionID,
		Expiry:    now.Add(s.leaseTimeout).Unix(),
	}
	if err := s.put(s.leaseDB, string(nonce[:]), lease); err != nil {
		return s.abort(err)
	}
	return s.baseDB.Commit()
}

func (s *DB) RenewNonce(nonce wallet.Nonce, sessionID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	lease, err := s.heldLease(nonce, sessionID)
	if err != nil {
		return err
	}
	lease.Expiry = s.clock.Time().Add(s.leaseTimeout).Unix()
	if err := s.put(s.leaseDB, string(nonce[:]), lease); err != nil {
		return s.abort(err)
	}
	return s.baseDB.Commit()
}

func (s *DB) SpendNonce(nonce wallet.Nonce, sessionID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	spender, err := s.spentDB.Get(nonce[:])
	switch {
	case err == nil:
		if string(spender) == sessionID {
			return nil
		}
		return fmt.Errorf("%w: %x", ErrNonceSpent, nonce[:])
	case !errors.Is(err, database.ErrNotFound):
		return err
	}

	if _, err := s.heldLease(nonce, sessionID); err != nil {
		return err
	}
	if err := s.leaseDB.Delete(nonce[:]); err != nil {
		return s.abort(err)
	}
	if err := s.spentDB.Put(nonce[:], []byte(sessionID)); err != nil {
		return s.abort(err)
	}
	return s.baseDB.Commit()
}

func (s *DB) ReleaseNonce(nonce wallet.Nonce, sessionID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, err := s.heldLease(nonce, sessionID); err != nil {
		return err
	}
	if err := s.leaseDB.Delete(nonce[:]); err != nil {
		return s.abort(err)
	}
	return s.baseDB.Commit()
}

func (s *DB) CompleteSession(sessionID string, state *SessionState, revLock, revSecret [32]byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	spender, err := s.spentDB.Get(state.Nonce[:])
	switch {
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: %x not spent by %s", ErrLeaseNotHeld, state.Nonce[:], sessionID)
	case err != nil:
		return err
	case string(spender) != sessionID:
		return fmt.Errorf("%w: %x spent by %s", ErrLeaseNotHeld, state.Nonce[:], spender)
	}

	if err := s.revokedDB.Put(revLock[:], revSecret[:]); err != nil {
		return s.abort(err)
	}
	if err := s.put(s.sessionDB, sessionID, state); err != nil {
		return s.abort(err)
	}
	return s.baseDB.Commit()
}

// heldLease returns the lease on nonce if sessionID holds it. A lease that
// expired but was not taken over is still held.
func (s *DB) heldLease(nonce wallet.Nonce, sessionID string) (*nonceLease, error) {
	lease := &nonceLease{}
	if err := s.get(s.leaseDB, string(nonce[:]), lease); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %x", ErrLeaseNotHeld, nonce[:])
		}
		return nil, err
	}
	if lease.SessionID != sessionID {
		return nil, fmt.Errorf("%w: %x held by %s", ErrLeaseNotHeld, nonce[:], lease.SessionID)
	}
	return lease, nil
}

func (s *DB) PutActivation(record *ActivationRecord) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.put(s.activationDB, string(record.ChannelID[:]), record); err != nil {
		return s.abort(err)
	}
	return s.baseDB.Commit()
}

func (s *DB) GetActivation(channelID ids.ID) (*ActivationRecord, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	record := &ActivationRecord{}
	if err := s.get(s.activationDB, string(channelID[:]), record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *DB) PutRevokedLock(revLock, revSecret [32]byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.revokedDB.Put(revLock[:], revSecret[:]); err != nil {
		return s.abort(err)
	}
	return s.baseDB.Commit()
}

func (s *DB) GetRevokedSecret(revLock [32]byte) ([32]byte, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var secret [32]byte
	b, err := s.revokedDB.Get(revLock[:])
	switch {
	case errors.Is(err, database.ErrNotFound):
		return secret, false, nil
	case err != nil:
		return secret, false, err
	}
	copy(secret[:], b)
	return secret, true, nil
}

func (s *DB) get(db database.Database, key string, v interface{}) error {
	b, err := db.Get([]byte(key))
	if err != nil {
		return err
	}
	_, err = Codec.Unmarshal(b, v)
	return err
}

func (s *DB) put(db database.Database, key string, v interface{}) error {
	b, err := Codec.Marshal(CodecVersion, v)
	if err != nil {
		return err
	}
	return db.Put([]byte(key), b)
}

func (s *DB) abort(err error) error {
	s.baseDB.Abort()
	s.log.Error("store write failed", log.Err(err))
	return err
}
