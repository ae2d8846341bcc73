package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/davedumto/nex402/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// DecodeOption builds a PaymentOption from one entry of an accepts list.
//
// Amounts come from "amount" then "maxAmountRequired"; decimals and symbol
// from "extra" then "resource", defaulting to 6 and USDC; the asset from
// "resource.address" then "asset".
func DecodeOption(raw map[string]any) (types.PaymentOption, error) {
	opt := types.PaymentOption{
		Scheme:   stringField(raw, "scheme"),
		PayTo:    stringField(raw, "payTo"),
		Network:  stringField(raw, "network"),
		Decimals: types.DefaultDecimals,
		Symbol:   types.DefaultSymbol,
	}

	if v, ok := firstPresent(raw, "amount", "maxAmountRequired"); ok {
		opt.RawAtomicAmount = scalarString(v)
	}
	if v, ok := raw["price"]; ok && v != nil {
		opt.PriceDecimal = scalarString(v)
	}

	extra, _ := raw["extra"].(map[string]any)
	resource, _ := raw["resource"].(map[string]any)

	if d, ok := intField(extra, "decimals"); ok && d > 0 {
		opt.Decimals = d
	} else if d, ok := intField(resource, "decimals"); ok && d > 0 {
		opt.Decimals = d
	}
	if s := stringField(extra, "symbol"); s != "" {
		opt.Symbol = s
	} else if s := stringField(resource, "symbol"); s != "" {
		opt.Symbol = s
	}

	if a := stringField(resource, "address"); a != "" {
		opt.Asset = a
	} else {
		opt.Asset = stringField(raw, "asset")
	}

	if t, ok := intField(raw, "maxTimeoutSeconds"); ok {
		opt.MaxTimeoutSeconds = t
	}

	if len(extra) > 0 {
		opt.Extra = make(map[string]any, len(extra))
		for k, v := range extra {
			opt.Extra[k] = v
		}
	}

	if err := validate.Struct(&opt); err != nil {
		return opt, &types.X402Error{
			Code:    types.ErrInvalidRequirements,
			Message: fmt.Sprintf("validation failed: %v", err),
			Err:     err,
		}
	}
	if opt.RawAtomicAmount != "" {
		if _, err := ValidateAtomicAmount(opt.RawAtomicAmount); err != nil {
			return opt, &types.X402Error{
				Code:    types.ErrInvalidRequirements,
				Message: fmt.Sprintf("amount %q is not an integer", opt.RawAtomicAmount),
				Err:     err,
			}
		}
	}

	return opt, nil
}

// DecodeJSON unmarshals data keeping numbers as json.Number so large
// atomic amounts survive intact.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected trailing data after JSON value")
	}
	return v, nil
}

// NormalizeJSON formats JSON with consistent indentation
func NormalizeJSON(data interface{}) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

// TitleCase upper-cases the first letter of a key, e.g. "feePayer" -> "FeePayer".
func TitleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstPresent(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func intField(m map[string]any, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// scalarString renders a JSON scalar without float formatting artifacts.
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// FlattenHeaders lowercases header names and joins repeated values with
// ", " the way fetch-style clients present them.
func FlattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	return out
}
