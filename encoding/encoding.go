// Package encoding provides utilities for encoding and decoding x402 header values.
// Servers disagree on how they put JSON into headers, so decoding tries plain
// JSON first, then base64-wrapped JSON, and finally keeps the raw value.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/davedumto/nex402/types"
	"github.com/davedumto/nex402/utils"
)

// Method records which decoder produced a value.
type Method int

const (
	MethodNone Method = iota
	MethodJSON
	MethodBase64
	MethodRaw
)

func (m Method) String() string {
	switch m {
	case MethodJSON:
		return "json"
	case MethodBase64:
		return "base64"
	case MethodRaw:
		return "raw"
	default:
		return "none"
	}
}

// RawKey is the key under which undecodable header values are wrapped.
const RawKey = "raw"

// base64 alphabets tried in order; servers emit padded and unpadded variants.
var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeStrict decodes value as JSON, then as base64(JSON).
// It reports MethodNone and false when neither works.
func DecodeStrict(value string) (any, Method, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, MethodNone, false
	}

	if v, err := utils.DecodeJSON([]byte(trimmed)); err == nil {
		return v, MethodJSON, true
	}

	if decoded, ok := decodeBase64(trimmed); ok {
		if v, err := utils.DecodeJSON(decoded); err == nil {
			return v, MethodBase64, true
		}
	}

	return nil, MethodNone, false
}

// DecodeLenient behaves like DecodeStrict but never fails: a value that is
// neither JSON nor base64(JSON) comes back as {"raw": value}.
func DecodeLenient(value string) (any, Method) {
	if v, m, ok := DecodeStrict(value); ok {
		return v, m
	}
	return map[string]any{RawKey: value}, MethodRaw
}

func decodeBase64(s string) ([]byte, bool) {
	for _, enc := range base64Encodings {
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}

// EncodePayment converts a PaymentPayload to base64-encoded JSON string.
// This is used for the X-PAYMENT and PAYMENT-SIGNATURE request headers.
func EncodePayment(payment types.PaymentPayload) (string, error) {
	paymentJSON, err := json.Marshal(payment)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment: %w", err)
	}
	return base64.StdEncoding.EncodeToString(paymentJSON), nil
}

// DecodePayment converts a base64-encoded JSON string to PaymentPayload.
func DecodePayment(encoded string) (types.PaymentPayload, error) {
	var payment types.PaymentPayload

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return payment, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(decoded, &payment); err != nil {
		return payment, fmt.Errorf("failed to unmarshal payment: %w", err)
	}

	return payment, nil
}

// EncodeJSON base64-encodes the JSON form of v. Test servers use it to
// build challenge and receipt headers.
func EncodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
