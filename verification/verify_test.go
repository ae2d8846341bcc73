package verification

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davedumto/nex402/types"
)

func aptosOption() types.PaymentOption {
	return types.PaymentOption{
		Scheme:          "exact",
		Network:         "aptos:2",
		PayTo:           "0x1f2e",
		RawAtomicAmount: "10000",
		Decimals:        6,
		Symbol:          "USDC",
	}
}

func TestCheckOption(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.PaymentOption)
		code   string
	}{
		{"valid", func(*types.PaymentOption) {}, ""},
		{"price only", func(o *types.PaymentOption) { o.RawAtomicAmount = ""; o.PriceDecimal = "0.01" }, ""},
		{"no scheme", func(o *types.PaymentOption) { o.Scheme = "" }, types.ErrInvalidRequirements},
		{"no network", func(o *types.PaymentOption) { o.Network = "" }, types.ErrInvalidRequirements},
		{"no payTo", func(o *types.PaymentOption) { o.PayTo = "" }, types.ErrInvalidRequirements},
		{"bad aptos payTo", func(o *types.PaymentOption) { o.PayTo = "alice" }, types.ErrInvalidRequirements},
		{"bad evm payTo", func(o *types.PaymentOption) { o.Network = "eip155:8453"; o.PayTo = "0x1f2e" }, types.ErrInvalidRequirements},
		{"fractional amount", func(o *types.PaymentOption) { o.RawAtomicAmount = "1.5" }, types.ErrInvalidRequirements},
		{"no amount", func(o *types.PaymentOption) { o.RawAtomicAmount = "" }, types.ErrInvalidRequirements},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := aptosOption()
			tt.mutate(&opt)

			err := CheckOption(opt, Policy{})
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, types.Code(err))
		})
	}
}

func TestCheckOptionMaxAmount(t *testing.T) {
	opt := aptosOption()

	assert.NoError(t, CheckOption(opt, Policy{MaxAmount: big.NewInt(10000)}))

	err := CheckOption(opt, Policy{MaxAmount: big.NewInt(9999)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrAmountExceeded))

	var xe *types.X402Error
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, "10000", xe.Details["amount"])
}

func TestAtomicAmount(t *testing.T) {
	n, err := AtomicAmount(types.PaymentOption{PriceDecimal: "$1.25", Decimals: 6})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_250_000), n)
}
