// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package check

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/zkchannels/crypto/ccs08"
	"github.com/luxfi/zkchannels/utils/hashing"
)

const InKey = "in"

var errNoInput = errors.New("--in is required")

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "check",
		Short: "Decodes range proof parameters and verifies every digit signature",
		RunE:  checkFunc,
	}
	c.Flags().String(InKey, "", "Parameter file to check (required)")
	return c
}

func checkFunc(c *cobra.Command, _ []string) error {
	path, err := c.Flags().GetString(InKey)
	if err != nil {
		return err
	}
	if path == "" {
		return errNoInput
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	params, err := ccs08.UnmarshalRPPublicParams(blob)
	if err != nil {
		return fmt.Errorf("couldn't decode %s: %w", path, err)
	}
	if err := params.P.VerifyDigitSignatures(rand.Reader); err != nil {
		return fmt.Errorf("couldn't verify %s: %w", path, err)
	}

	c.Printf("ok: [%d, %d] u=%d l=%d fingerprint=%s\n",
		params.A, params.B, params.P.U, params.P.L, hashing.FingerprintHex(blob))
	return nil
}
