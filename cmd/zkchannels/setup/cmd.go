// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package setup

import (
	"crypto/rand"
	"time"

	"github.com/google/renameio/v2"
	"github.com/luxfi/log"
	"github.com/spf13/cobra"

	"github.com/luxfi/zkchannels/crypto/ccs08"
	"github.com/luxfi/zkchannels/crypto/pedersen"
	"github.com/luxfi/zkchannels/utils/hashing"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "setup",
		Short: "Runs the range proof trusted setup",
		RunE:  setupFunc,
	}
	flags := c.Flags()
	AddFlags(flags)
	return c
}

func setupFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	start := time.Now()
	cs, err := pedersen.SetupGenParams(rand.Reader, config.Slots)
	if err != nil {
		return err
	}
	sp, err := ccs08.SetupWithBase(rand.Reader, config.A, config.B, config.Base, cs)
	if err != nil {
		return err
	}
	blob, err := sp.Pub.MarshalBinary()
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(config.Out, blob, 0o644); err != nil {
		return err
	}

	log.Root().Info("wrote range proof parameters",
		log.String("path", config.Out),
		log.Int("u", int(sp.Pub.P.U)),
		log.Int("l", int(sp.Pub.P.L)),
		log.String("fingerprint", hashing.FingerprintHex(blob)),
		log.Duration("duration", time.Since(start)),
	)
	c.Printf("wrote parameters for [%d, %d] with u=%d, l=%d to %s\n",
		config.A, config.B, sp.Pub.P.U, sp.Pub.P.L, config.Out)
	return nil
}
