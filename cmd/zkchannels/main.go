// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/zkchannels/cmd/zkchannels/check"
	"github.com/luxfi/zkchannels/cmd/zkchannels/setup"
)

func main() {
	cmd := &cobra.Command{
		Use:          "zkchannels",
		Short:        "Manages zkChannels range proof parameters",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		setup.Command(),
		check.Command(),
	)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "zkchannels failed: %s\n", err)
		os.Exit(1)
	}
}
