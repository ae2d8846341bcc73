package main

import (
	"fmt"

	"github.com/spf13/cobra"

	x402 "github.com/davedumto/nex402"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			info := x402.GetVersion()
			fmt.Fprintf(cmd.OutOrStdout(), "nex402 %s (library %s, x402 protocol v%d)\n",
				version, info["library_version"], info["protocol_version"])
		},
	}
}
