// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/zkchannels/config"
)

func TestConnTransport(t *testing.T) {
	require := require.New(t)

	a, b := net.Pipe()
	ta, tb := NewConnTransport(a), NewConnTransport(b)
	defer ta.Close()
	defer tb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- ta.Send(ctx, []byte("hello"))
	}()
	msg, err := tb.Receive(ctx)
	require.NoError(err)
	require.Equal([]byte("hello"), msg)
	require.NoError(<-done)
}

func TestConnTransportDeadline(t *testing.T) {
	require := require.New(t)

	a, b := net.Pipe()
	defer a.Close()
	tb := NewConnTransport(b)
	defer tb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := tb.Receive(ctx)
	require.ErrorIs(err, ErrTransport)
}

func TestDialTCP(t *testing.T) {
	require := require.New(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	cfg := config.NetworkConfig{
		ConnType:    config.ConnTCP,
		DestIP:      "127.0.0.1",
		DestPort:    uint16(addr.Port),
		DialTimeout: time.Second,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, cfg)
	require.NoError(err)
	defer client.Close()
	server := NewConnTransport(<-accepted)
	defer server.Close()

	require.NoError(client.Send(ctx, []byte{1, 2, 3}))
	msg, err := server.Receive(ctx)
	require.NoError(err)
	require.Equal([]byte{1, 2, 3}, msg)
}

func TestDialCallback(t *testing.T) {
	_, err := Dial(context.Background(), config.NetworkConfig{ConnType: config.ConnCallback})
	require.ErrorIs(t, err, ErrCallbackConn)
}

func TestCallbackTransport(t *testing.T) {
	require := require.New(t)

	type peer struct{ sent [][]byte }
	p := &peer{}
	errClosed := errors.New("closed")

	tr := NewCallbackTransport(p,
		func(peerCtx any, msg []byte) error {
			pp := peerCtx.(*peer)
			pp.sent = append(pp.sent, msg)
			return nil
		},
		func(peerCtx any) ([]byte, error) {
			pp := peerCtx.(*peer)
			if len(pp.sent) == 0 {
				return nil, errClosed
			}
			msg := pp.sent[0]
			pp.sent = pp.sent[1:]
			return msg, nil
		},
	)

	ctx := context.Background()
	require.NoError(tr.Send(ctx, []byte("x")))
	msg, err := tr.Receive(ctx)
	require.NoError(err)
	require.Equal([]byte("x"), msg)

	_, err = tr.Receive(ctx)
	require.ErrorIs(err, ErrTransport)
	require.ErrorIs(err, errClosed)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(tr.Send(cancelled, nil), context.Canceled)

	empty := &CallbackTransport{}
	require.ErrorIs(empty.Send(ctx, nil), ErrNoCallback)
}
