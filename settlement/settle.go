// Package settlement decodes the settlement receipt a server returns after a
// paid request.
package settlement

import (
	"fmt"
	"net/http"

	"github.com/davedumto/nex402/encoding"
	"github.com/davedumto/nex402/types"
)

// Receipt headers, in lookup order.
const (
	HeaderPaymentResponse       = "PAYMENT-RESPONSE"
	HeaderLegacyPaymentResponse = "X-PAYMENT-RESPONSE"
)

// DecodeReceipt parses a payment-response header value. Both base64(JSON)
// and plain JSON are accepted. The transaction id comes from "transaction",
// then "txHash".
func DecodeReceipt(value string) (*types.TransactionReceipt, error) {
	data, _, ok := encoding.DecodeStrict(value)
	if !ok {
		return nil, decodeError("payment response is neither JSON nor base64 JSON", nil)
	}

	fields, ok := data.(map[string]any)
	if !ok {
		return nil, decodeError(fmt.Sprintf("payment response is a %T, want an object", data), nil)
	}

	tx := stringOf(fields["transaction"])
	if tx == "" {
		tx = stringOf(fields["txHash"])
	}
	if tx == "" {
		return nil, decodeError("payment response has no transaction id", nil)
	}

	network := stringOf(fields["network"])
	return &types.TransactionReceipt{
		TransactionID: tx,
		Network:       network,
		Payer:         stringOf(fields["payer"]),
		ExplorerURL:   ExplorerURL(types.Network(network), tx),
	}, nil
}

// FromHeaders decodes the receipt carried by a response, if any. A response
// without a receipt header yields nil and no error.
func FromHeaders(h http.Header) (*types.TransactionReceipt, error) {
	for _, name := range []string{HeaderPaymentResponse, HeaderLegacyPaymentResponse} {
		if v := h.Get(name); v != "" {
			return DecodeReceipt(v)
		}
	}
	return nil, nil
}

// ExplorerURL links a transaction in the block explorer for its network.
// Unknown networks use the Aptos testnet explorer.
func ExplorerURL(network types.Network, tx string) string {
	return fmt.Sprintf(network.ExplorerTemplate(), tx)
}

func decodeError(msg string, err error) error {
	if err == nil {
		err = types.ErrDecode
	} else {
		err = fmt.Errorf("%w: %w", types.ErrDecode, err)
	}
	return types.NewError(types.ErrReceiptDecode, msg, err)
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}
