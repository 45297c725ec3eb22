// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mpc

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrInvalidStatus = errors.New("invalid status")

// ProtocolStatus is a party's position in the payment protocol.
type ProtocolStatus uint8

const (
	ProtocolNew ProtocolStatus = iota
	ProtocolInitialized
	ProtocolActivated
	ProtocolEstablished
	ProtocolError
)

func (s ProtocolStatus) String() string {
	switch s {
	case ProtocolNew:
		return "new"
	case ProtocolInitialized:
		return "initialized"
	case ProtocolActivated:
		return "activated"
	case ProtocolEstablished:
		return "established"
	case ProtocolError:
		return "error"
	default:
		return "unknown"
	}
}

var protocolTransitions = map[ProtocolStatus][]ProtocolStatus{
	ProtocolNew:         {ProtocolInitialized},
	ProtocolInitialized: {ProtocolActivated},
	ProtocolActivated:   {ProtocolEstablished},
	ProtocolEstablished: {ProtocolEstablished},
}

// CanTransition reports whether s may move to next. Every status may move
// to ProtocolError.
func (s ProtocolStatus) CanTransition(next ProtocolStatus) bool {
	return next == ProtocolError || slices.Contains(protocolTransitions[s], next)
}

// ChannelStatus is the on-chain position of a channel.
type ChannelStatus uint8

const (
	ChannelNone ChannelStatus = iota
	ChannelPendingOpen
	ChannelOpen
	ChannelPendingClose
	ChannelConfirmedClose
	ChannelCustomerInitClose
	ChannelMerchantInitClose
)

func (s ChannelStatus) String() string {
	switch s {
	case ChannelNone:
		return "none"
	case ChannelPendingOpen:
		return "pending_open"
	case ChannelOpen:
		return "open"
	case ChannelPendingClose:
		return "pending_close"
	case ChannelConfirmedClose:
		return "confirmed_close"
	case ChannelCustomerInitClose:
		return "customer_init_close"
	case ChannelMerchantInitClose:
		return "merchant_init_close"
	default:
		return "unknown"
	}
}

var channelTransitions = map[ChannelStatus][]ChannelStatus{
	ChannelNone:              {ChannelPendingOpen},
	ChannelPendingOpen:       {ChannelOpen},
	ChannelOpen:              {ChannelPendingClose, ChannelCustomerInitClose, ChannelMerchantInitClose},
	ChannelPendingClose:      {ChannelConfirmedClose},
	ChannelCustomerInitClose: {ChannelPendingClose, ChannelConfirmedClose},
	ChannelMerchantInitClose: {ChannelCustomerInitClose, ChannelConfirmedClose},
}

// CanTransition reports whether s may move to next.
func (s ChannelStatus) CanTransition(next ChannelStatus) bool {
	return slices.Contains(channelTransitions[s], next)
}

// StatusError reports an operation invoked in the wrong status. It matches
// ErrInvalidStatus.
type StatusError struct {
	Op   string
	Have fmt.Stringer
	Want []fmt.Stringer
}

func (e *StatusError) Error() string {
	want := make([]string, len(e.Want))
	for i, w := range e.Want {
		want[i] = w.String()
	}
	return fmt.Sprintf("%s: %s: have %s, want %s", e.Op, ErrInvalidStatus, e.Have, strings.Join(want, " or "))
}

func (e *StatusError) Is(target error) bool {
	return target == ErrInvalidStatus
}

func checkProtocolStatus(op string, have ProtocolStatus, want ...ProtocolStatus) error {
	if slices.Contains(want, have) {
		return nil
	}
	err := &StatusError{Op: op, Have: have}
	for _, w := range want {
		err.Want = append(err.Want, w)
	}
	return err
}

func checkChannelStatus(op string, have ChannelStatus, want ...ChannelStatus) error {
	if slices.Contains(want, have) {
		return nil
	}
	err := &StatusError{Op: op, Have: have}
	for _, w := range want {
		err.Want = append(err.Want, w)
	}
	return err
}

// changeChannelStatus moves *status to next if the transition is allowed.
func changeChannelStatus(op string, status *ChannelStatus, next ChannelStatus) error {
	if !status.CanTransition(next) {
		return &StatusError{Op: op, Have: *status, Want: []fmt.Stringer{next}}
	}
	*status = next
	return nil
}

func changeProtocolStatus(op string, status *ProtocolStatus, next ProtocolStatus) error {
	if !status.CanTransition(next) {
		return &StatusError{Op: op, Have: *status, Want: []fmt.Stringer{next}}
	}
	*status = next
	return nil
}
