// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channels

import (
	"errors"
	"fmt"
)

// Protocol phases named by PhaseError.
const (
	PhaseEstablish = "establish"
	PhasePay       = "pay"
	PhaseRevoke    = "revoke"
	PhaseClose     = "close"
)

var (
	ErrInvalidBalance     = errors.New("invalid balance")
	ErrDustLimit          = errors.New("balance after payment is below dust limit")
	ErrNotEstablished     = errors.New("channel is not established")
	ErrNoParams           = errors.New("channel parameters are not initialized")
	ErrBadProof           = errors.New("proof verification failed")
	ErrBadToken           = errors.New("token verification failed")
	ErrReusedWpk          = errors.New("wallet public key was already used")
	ErrUnknownWpk         = errors.New("unknown wallet public key")
	ErrBadRevokeToken     = errors.New("revoke token verification failed")
	ErrNoParkedToken      = errors.New("no pay token waiting for revocation")
	ErrAmountsDoNotOffset = errors.New("intermediary amounts do not offset")
	ErrBadCloseMessage    = errors.New("close message verification failed")
)

// PhaseError names the protocol phase a failure happened in.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func phaseErr(phase string, err error) error {
	return &PhaseError{Phase: phase, Err: err}
}
