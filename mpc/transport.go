// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/libp2p/go-msgio"

	"github.com/luxfi/zkchannels/config"
)

var (
	_ Transport = (*CallbackTransport)(nil)
	_ Transport = (*ConnTransport)(nil)

	ErrTransport    = errors.New("transport failure")
	ErrNoCallback   = errors.New("transport callback not set")
	ErrCallbackConn = errors.New("callback connections cannot be dialed")
)

// Transport carries the messages of one MPC execution.
type Transport interface {
	Send(ctx context.Context, msg []byte) error
	Receive(ctx context.Context) ([]byte, error)
}

type (
	SendFunc    func(peer any, msg []byte) error
	ReceiveFunc func(peer any) ([]byte, error)
)

// CallbackTransport hands messages to caller-provided functions together
// with an opaque peer value.
type CallbackTransport struct {
	Peer      any
	SendFn    SendFunc
	ReceiveFn ReceiveFunc
}

func NewCallbackTransport(peer any, send SendFunc, receive ReceiveFunc) *CallbackTransport {
	return &CallbackTransport{
		Peer:      peer,
		SendFn:    send,
		ReceiveFn: receive,
	}
}

func (t *CallbackTransport) Send(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.SendFn == nil {
		return ErrNoCallback
	}
	if err := t.SendFn(t.Peer, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

func (t *CallbackTransport) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.ReceiveFn == nil {
		return nil, ErrNoCallback
	}
	msg, err := t.ReceiveFn(t.Peer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return msg, nil
}

// ConnTransport frames messages over a stream connection with 4 byte
// length prefixes.
type ConnTransport struct {
	conn net.Conn
	rw   msgio.ReadWriter

	sendLock sync.Mutex
	recvLock sync.Mutex
}

func NewConnTransport(conn net.Conn) *ConnTransport {
	return &ConnTransport{
		conn: conn,
		rw:   msgio.NewReadWriter(conn),
	}
}

// Dial connects to the peer described by cfg.
func Dial(ctx context.Context, cfg config.NetworkConfig) (*ConnTransport, error) {
	var network, address string
	switch cfg.ConnType {
	case config.ConnTCP:
		network, address = "tcp", net.JoinHostPort(cfg.DestIP, strconv.Itoa(int(cfg.DestPort)))
	case config.ConnUnix:
		network, address = "unix", cfg.Path
	case config.ConnCallback:
		return nil, ErrCallbackConn
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidNetwork, cfg.ConnType)
	}

	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return NewConnTransport(conn), nil
}

func (t *ConnTransport) Send(ctx context.Context, msg []byte) error {
	t.sendLock.Lock()
	defer t.sendLock.Unlock()

	if err := t.conn.SetWriteDeadline(deadline(ctx)); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if err := t.rw.WriteMsg(msg); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

func (t *ConnTransport) Receive(ctx context.Context) ([]byte, error) {
	t.recvLock.Lock()
	defer t.recvLock.Unlock()

	if err := t.conn.SetReadDeadline(deadline(ctx)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	msg, err := t.rw.ReadMsg()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	out := make([]byte, len(msg))
	copy(out, msg)
	t.rw.ReleaseMsg(msg)
	return out, nil
}

func (t *ConnTransport) Close() error {
	return t.conn.Close()
}

// deadline returns the context deadline, or the zero time for none.
func deadline(ctx context.Context) time.Time {
	d, _ := ctx.Deadline()
	return d
}
