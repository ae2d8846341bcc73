package encoding

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davedumto/nex402/types"
)

func TestDecodeLenient(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte(`{"scheme":"exact"}`))
	unpadded := base64.RawStdEncoding.EncodeToString([]byte(`{"a":1}`))

	tests := []struct {
		name   string
		value  string
		method Method
	}{
		{"plain json", `{"scheme":"exact"}`, MethodJSON},
		{"json array", `[{"scheme":"exact"}]`, MethodJSON},
		{"base64 json", b64, MethodBase64},
		{"unpadded base64", unpadded, MethodBase64},
		{"bearer token", `Bearer realm="x402"`, MethodRaw},
		{"base64 of non json", base64.StdEncoding.EncodeToString([]byte("hello")), MethodRaw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v any
			var m Method
			assert.NotPanics(t, func() { v, m = DecodeLenient(tt.value) })
			assert.Equal(t, tt.method, m)
			assert.NotNil(t, v)
			if tt.method == MethodRaw {
				assert.Equal(t, map[string]any{RawKey: tt.value}, v)
			}
		})
	}
}

func TestDecodeStrictRejects(t *testing.T) {
	_, m, ok := DecodeStrict("not-json!!")
	assert.False(t, ok)
	assert.Equal(t, MethodNone, m)

	_, _, ok = DecodeStrict("   ")
	assert.False(t, ok)
}

func TestEncodeDecodePayment(t *testing.T) {
	original := types.PaymentPayload{
		X402Version: 2,
		Scheme:      "exact",
		Network:     "aptos:2",
		Accepted: types.PaymentOption{
			Scheme:          "exact",
			Network:         "aptos:2",
			RawAtomicAmount: "10000",
			PayTo:           "0x1",
			Decimals:        6,
			Symbol:          "USDC",
		},
		Payload: map[string]any{"signature": "0xabcdef"},
	}

	encoded, err := EncodePayment(original)
	require.NoError(t, err)

	v, m, ok := DecodeStrict(encoded)
	require.True(t, ok)
	assert.Equal(t, MethodBase64, m)
	assert.Equal(t, "aptos:2", v.(map[string]any)["network"])

	decoded, err := DecodePayment(encoded)
	require.NoError(t, err)
	assert.Equal(t, original.Accepted, decoded.Accepted)
	assert.Equal(t, "0xabcdef", decoded.Payload.(map[string]any)["signature"])
}

func TestDecodePaymentErrors(t *testing.T) {
	_, err := DecodePayment("%%%")
	assert.Error(t, err)

	_, err = DecodePayment(base64.StdEncoding.EncodeToString([]byte("nope")))
	assert.Error(t, err)
}

func TestMethodString(t *testing.T) {
	assert.Equal(t, "base64", MethodBase64.String())
	assert.Equal(t, "none", MethodNone.String())
}
