package main

import (
	"fmt"

	"github.com/spf13/cobra"

	x402 "github.com/davedumto/nex402"
	"github.com/davedumto/nex402/presenter"
)

func newInspectCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect <url>",
		Short: "Show the payment requirements of an endpoint without paying",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := presenter.ParseFormat(format)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}

			url := x402.NormalizeURL(args[0])
			out := cmd.OutOrStdout()
			if f == presenter.FormatText {
				fmt.Fprintf(out, "\n🔍 x402 Endpoint Inspector\n\nTarget: %s\n\n", url)
			}

			in, err := c.Inspect(cmd.Context(), url)
			if err != nil {
				return err
			}

			p := presenter.New(out, f)
			if !in.Gated() {
				return p.NotGated(in.Probe)
			}
			if err := p.Report(*in.Report, *in.Challenge); err != nil {
				return err
			}
			if f == presenter.FormatText {
				fmt.Fprintf(out, "\n  Inspection complete.\n\n")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or yaml")
	return cmd
}
