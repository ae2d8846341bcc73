// Package challenge locates payment-requirement data in a 402 response.
//
// Implementations disagree on where that data lives, so extraction runs an
// ordered chain of matchers over the headers and body and takes the first hit.
package challenge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/davedumto/nex402/encoding"
	"github.com/davedumto/nex402/types"
	"github.com/davedumto/nex402/utils"
)

// KnownHeaders are checked first, in this order. The first one present is
// authoritative even if its value is not JSON.
var KnownHeaders = []string{
	"x-payment",
	"x-payment-requirements",
	"payment-requirements",
	"x-402-payment",
	"www-authenticate",
}

// scanMarkers select headers for the fallback scan.
var scanMarkers = []string{"402", "payment", "x402"}

type input struct {
	status  int
	headers map[string]string
	body    any
}

type matcher func(in input) (types.PaymentChallenge, bool)

var chain = []matcher{
	matchKnownHeader,
	matchScannedHeader,
	matchBody,
}

// Extract returns the payment challenge carried by a 402 response. headers
// must have lowercased names (see utils.FlattenHeaders); parsedBody is the
// output of ParseBody. It never fails: when nothing is found the challenge
// has SourceNone and carries the header map for debugging.
func Extract(status int, headers map[string]string, parsedBody any) types.PaymentChallenge {
	in := input{status: status, headers: headers, body: parsedBody}

	for _, m := range chain {
		if c, ok := m(in); ok {
			return c
		}
	}

	return types.PaymentChallenge{
		HTTPStatus:   status,
		Headers:      headers,
		Source:       types.SourceNone,
		SourceDetail: string(types.SourceNone),
	}
}

// ExtractResult parses the probe body and extracts its challenge.
func ExtractResult(res *types.ProbeResult) types.PaymentChallenge {
	return Extract(res.Status, res.Headers, ParseBody(res.RawBody))
}

// ParseBody decodes a response body as JSON. Empty, blank or non-JSON
// bodies yield nil; headers may still carry the challenge.
func ParseBody(raw []byte) any {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	v, err := utils.DecodeJSON(raw)
	if err != nil {
		return nil
	}
	return v
}

func matchKnownHeader(in input) (types.PaymentChallenge, bool) {
	for _, name := range KnownHeaders {
		value := in.headers[name]
		if value == "" {
			continue
		}
		data, method := encoding.DecodeLenient(value)
		return headerChallenge(in, name, data, method), true
	}
	return types.PaymentChallenge{}, false
}

func matchScannedHeader(in input) (types.PaymentChallenge, bool) {
	names := make([]string, 0, len(in.headers))
	for name := range in.headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !paymentRelated(name) {
			continue
		}
		data, method, ok := encoding.DecodeStrict(in.headers[name])
		if !ok {
			continue
		}
		return headerChallenge(in, name, data, method), true
	}
	return types.PaymentChallenge{}, false
}

func matchBody(in input) (types.PaymentChallenge, bool) {
	switch b := in.body.(type) {
	case map[string]any:
		if len(b) == 0 {
			return types.PaymentChallenge{}, false
		}
	case []any:
		if len(b) == 0 {
			return types.PaymentChallenge{}, false
		}
	default:
		return types.PaymentChallenge{}, false
	}

	return types.PaymentChallenge{
		HTTPStatus:   in.status,
		Headers:      in.headers,
		Body:         in.body,
		Source:       types.SourceBody,
		SourceDetail: string(types.SourceBody),
	}, true
}

func headerChallenge(in input, name string, data any, method encoding.Method) types.PaymentChallenge {
	detail := fmt.Sprintf("header: %s", name)
	if method == encoding.MethodBase64 {
		detail += " (base64)"
	}
	return types.PaymentChallenge{
		HTTPStatus:   in.status,
		Headers:      in.headers,
		Body:         data,
		Source:       types.SourceHeader,
		SourceDetail: detail,
	}
}

func paymentRelated(name string) bool {
	name = strings.ToLower(name)
	for _, marker := range scanMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}
