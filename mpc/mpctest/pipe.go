// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mpctest

import (
	"bytes"
	"context"

	"github.com/luxfi/zkchannels/mpc"
)

var _ mpc.Transport = (*pipeEnd)(nil)

type pipeEnd struct {
	in  <-chan []byte
	out chan<- []byte
}

// Pipe returns two connected in-memory transports.
func Pipe() (mpc.Transport, mpc.Transport) {
	a := make(chan []byte, 4)
	b := make(chan []byte, 4)
	return &pipeEnd{in: a, out: b}, &pipeEnd{in: b, out: a}
}

func (p *pipeEnd) Send(ctx context.Context, msg []byte) error {
	select {
	case p.out <- bytes.Clone(msg):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
