// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/zkchannels/wallet"
)

func newTestDB() *DB {
	return New(memdb.New(), time.Minute, log.NewNoOpLogger())
}

func TestKeyValue(t *testing.T) {
	require := require.New(t)
	db := newTestDB()

	require.NoError(db.IsConnected(context.Background()))

	has, err := db.Contains("a")
	require.NoError(err)
	require.False(has)

	_, err = db.Get("a")
	require.ErrorIs(err, database.ErrNotFound)

	require.NoError(db.Put("a", []byte("value")))
	v, err := db.Get("a")
	require.NoError(err)
	require.Equal([]byte("value"), v)

	require.NoError(db.Clear("a"))
	has, err = db.Contains("a")
	require.NoError(err)
	require.False(has)
}

func TestIsConnectedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, newTestDB().IsConnected(ctx), context.Canceled)
}

func TestSessionRoundTrip(t *testing.T) {
	require := require.New(t)
	db := newTestDB()

	state := &SessionState{
		Nonce:         wallet.Nonce{1, 2, 3},
		RevLockCom:    [32]byte{4},
		Amount:        -10,
		Status:        PaymentPrepare,
		Justification: "refund",
		PayMask:       [32]byte{5},
		PayMaskR:      [16]byte{6},
		StartedAt:     1234,
	}
	masks := &MaskedMPCInputs{
		EscrowMask: [32]byte{7},
		MerchMask:  [32]byte{8},
		REscrowSig: [32]byte{9},
		RMerchSig:  [32]byte{10},
	}

	err := db.UpdateSessionState("s1", state)
	require.ErrorIs(err, ErrSessionUnknown)

	require.NoError(db.PutSession("s1", state, masks))

	loaded, err := db.LoadSessionState("s1")
	require.NoError(err)
	require.Equal(state, loaded)

	loadedMasks, err := db.GetMaskedMPCInputs("s1")
	require.NoError(err)
	require.Equal(masks, loadedMasks)

	loaded.Status = PaymentError
	require.NoError(db.UpdateSessionState("s1", loaded))
	loaded, err = db.LoadSessionState("s1")
	require.NoError(err)
	require.Equal(PaymentError, loaded.Status)

	_, err = db.LoadSessionState("s2")
	require.ErrorIs(err, database.ErrNotFound)
	_, err = db.GetMaskedMPCInputs("s2")
	require.ErrorIs(err, database.ErrNotFound)
}

func TestNonceLease(t *testing.T) {
	require := require.New(t)
	db := newTestDB()
	db.Clock().Set(time.Unix(1_000_000, 0))

	nonce := wallet.Nonce{0xaa}

	require.NoError(db.AcquireNonce(nonce, "s1"))
	// re-acquiring by the holder refreshes the lease
	require.NoError(db.AcquireNonce(nonce, "s1"))

	err := db.AcquireNonce(nonce, "s2")
	require.ErrorIs(err, ErrNonceLeased)

	db.Clock().Advance(2 * time.Minute)
	require.NoError(db.AcquireNonce(nonce, "s2"))

	err = db.SpendNonce(nonce, "s1")
	require.ErrorIs(err, ErrLeaseNotHeld)

	require.NoError(db.SpendNonce(nonce, "s2"))
	require.NoError(db.SpendNonce(nonce, "s2"))
	err = db.AcquireNonce(nonce, "s3")
	require.ErrorIs(err, ErrNonceSpent)
	err = db.SpendNonce(nonce, "s3")
	require.ErrorIs(err, ErrNonceSpent)

	err = db.ReleaseNonce(wallet.Nonce{0xbb}, "s3")
	require.ErrorIs(err, ErrLeaseNotHeld)
}

func TestNonceReleaseUnspent(t *testing.T) {
	require := require.New(t)
	db := newTestDB()

	nonce := wallet.Nonce{0xcc}
	require.NoError(db.AcquireNonce(nonce, "s1"))
	require.NoError(db.ReleaseNonce(nonce, "s1"))
	require.NoError(db.AcquireNonce(nonce, "s2"))
}

func TestRenewNonce(t *testing.T) {
	require := require.New(t)
	db := newTestDB()
	db.Clock().Set(time.Unix(1_000_000, 0))

	nonce := wallet.Nonce{0xdd}
	require.NoError(db.AcquireNonce(nonce, "s1"))

	// renewing keeps s2 out past the original expiry
	db.Clock().Advance(50 * time.Second)
	require.NoError(db.RenewNonce(nonce, "s1"))
	db.Clock().Advance(50 * time.Second)
	err := db.AcquireNonce(nonce, "s2")
	require.ErrorIs(err, ErrNonceLeased)

	// an expired lease nobody took over can still be renewed
	db.Clock().Advance(2 * time.Minute)
	require.NoError(db.RenewNonce(nonce, "s1"))

	db.Clock().Advance(2 * time.Minute)
	require.NoError(db.AcquireNonce(nonce, "s2"))
	err = db.RenewNonce(nonce, "s1")
	require.ErrorIs(err, ErrLeaseNotHeld)
	err = db.ReleaseNonce(nonce, "s1")
	require.ErrorIs(err, ErrLeaseNotHeld)
}

func TestCompleteSession(t *testing.T) {
	require := require.New(t)
	db := newTestDB()

	nonce := wallet.Nonce{0xee}
	state := &SessionState{Nonce: nonce, Status: PaymentUpdate}
	require.NoError(db.PutSession("s1", state, nil))
	require.NoError(db.AcquireNonce(nonce, "s1"))

	lock, secret := [32]byte{1}, [32]byte{2}
	state.Status = PaymentSuccess

	// the nonce must be spent by the session first
	err := db.CompleteSession("s1", state, lock, secret)
	require.ErrorIs(err, ErrLeaseNotHeld)
	_, ok, err := db.GetRevokedSecret(lock)
	require.NoError(err)
	require.False(ok)

	require.NoError(db.SpendNonce(nonce, "s1"))
	err = db.CompleteSession("s2", state, lock, secret)
	require.ErrorIs(err, ErrLeaseNotHeld)

	require.NoError(db.CompleteSession("s1", state, lock, secret))
	got, ok, err := db.GetRevokedSecret(lock)
	require.NoError(err)
	require.True(ok)
	require.Equal(secret, got)
	loaded, err := db.LoadSessionState("s1")
	require.NoError(err)
	require.Equal(PaymentSuccess, loaded.Status)
}

func TestActivation(t *testing.T) {
	require := require.New(t)
	db := newTestDB()

	channelID := ids.GenerateTestID()
	_, err := db.GetActivation(channelID)
	require.ErrorIs(err, database.ErrNotFound)

	record := &ActivationRecord{
		ChannelID: channelID,
		Nonce:     wallet.Nonce{1},
		RevLock:   [32]byte{2},
		PayToken:  [32]byte{3},
	}
	require.NoError(db.PutActivation(record))

	loaded, err := db.GetActivation(channelID)
	require.NoError(err)
	require.Equal(record, loaded)
}

func TestRevokedLocks(t *testing.T) {
	require := require.New(t)
	db := newTestDB()

	lock := [32]byte{1}
	_, ok, err := db.GetRevokedSecret(lock)
	require.NoError(err)
	require.False(ok)

	require.NoError(db.PutRevokedLock(lock, [32]byte{2}))
	secret, ok, err := db.GetRevokedSecret(lock)
	require.NoError(err)
	require.True(ok)
	require.Equal([32]byte{2}, secret)
}

func TestPaymentStatusString(t *testing.T) {
	require.Equal(t, "prepare", PaymentPrepare.String())
	require.Equal(t, "error", PaymentError.String())
	require.Equal(t, "unknown", PaymentStatus(99).String())
}
