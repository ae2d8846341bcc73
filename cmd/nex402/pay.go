package main

import (
	"fmt"

	"github.com/spf13/cobra"

	x402 "github.com/davedumto/nex402"
	"github.com/davedumto/nex402/payment"
	"github.com/davedumto/nex402/presenter"
	"github.com/davedumto/nex402/types"
	"github.com/davedumto/nex402/utils"
)

func newPayCmd(a *app) *cobra.Command {
	var (
		format string
		req    payment.Request
		data   string
	)

	cmd := &cobra.Command{
		Use:   "pay <url>",
		Short: "Request an endpoint, paying if it answers 402",
		Long: `pay sends the request and, if the endpoint answers 402 Payment Required,
signs one of the offered payment options and retries once.

The signing key is taken from --key, then $NEXT_PUBLIC_APTOS_PRIVATE_KEY,
then NEXT_PUBLIC_APTOS_PRIVATE_KEY in .env.local.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := presenter.ParseFormat(format)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}

			req.URL = x402.NormalizeURL(args[0])
			if data != "" {
				if err := utils.ValidateJSON(data); err != nil {
					return types.NewError(types.ErrConfigError, "--data must be valid JSON", err)
				}
				req.Body = []byte(data)
			}

			out := cmd.OutOrStdout()
			if f == presenter.FormatText {
				fmt.Fprintf(out, "\n💸 x402 Payment Client\n\nTarget: %s\n", req.URL)
			}

			res, err := c.Pay(cmd.Context(), req)
			if err != nil {
				return err
			}
			return presenter.New(out, f).Payment(req.URL, res)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&req.Key, "key", "k", "", "private key (hex)")
	flags.StringVarP(&req.Method, "method", "m", "GET", "HTTP method")
	flags.StringVarP(&data, "data", "d", "", "request body for POST, PUT or PATCH")
	flags.StringVar(&format, "format", "text", "output format: text, json or yaml")
	flags.String("max-amount", "", "refuse to pay more than this many atomic units")
	flags.String("secrets-file", payment.DefaultSecretsFile, "dotenv file searched for the key")
	_ = a.v.BindPFlag("max_amount", flags.Lookup("max-amount"))
	_ = a.v.BindPFlag("secrets_file", flags.Lookup("secrets-file"))
	return cmd
}
