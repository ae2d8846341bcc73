package challenge

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davedumto/nex402/types"
)

const acceptsJSON = `{"accepts":[{"scheme":"exact","price":"0.01","network":"aptos:2"}]}`

func TestExtractKnownHeader(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte(acceptsJSON))

	tests := []struct {
		name    string
		headers map[string]string
		detail  string
		raw     bool
	}{
		{
			name:    "json",
			headers: map[string]string{"x-payment": acceptsJSON},
			detail:  "header: x-payment",
		},
		{
			name:    "base64",
			headers: map[string]string{"payment-requirements": b64},
			detail:  "header: payment-requirements (base64)",
		},
		{
			name:    "raw",
			headers: map[string]string{"www-authenticate": `x402 realm="api"`},
			detail:  "header: www-authenticate",
			raw:     true,
		},
		{
			name: "first listed header wins",
			headers: map[string]string{
				"x-payment-requirements": "opaque",
				"payment-requirements":   acceptsJSON,
			},
			detail: "header: x-payment-requirements",
			raw:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Extract(402, tt.headers, nil)

			assert.Equal(t, types.SourceHeader, c.Source)
			assert.Equal(t, tt.detail, c.SourceDetail)
			assert.True(t, c.Found())
			m, ok := c.Body.(map[string]any)
			require.True(t, ok)
			if tt.raw {
				assert.Contains(t, m, "raw")
			} else {
				assert.Contains(t, m, "accepts")
			}
		})
	}
}

func TestExtractEmptyKnownHeaderIsAbsent(t *testing.T) {
	c := Extract(402, map[string]string{"x-payment": "", "x-payment-requirements": acceptsJSON}, nil)
	assert.Equal(t, "header: x-payment-requirements", c.SourceDetail)
}

func TestExtractScannedHeader(t *testing.T) {
	headers := map[string]string{
		"content-type":       "application/json",
		"x-402-info":         "not json at all",
		"x-payment-required": base64.StdEncoding.EncodeToString([]byte(acceptsJSON)),
	}

	c := Extract(402, headers, nil)

	assert.Equal(t, types.SourceHeader, c.Source)
	assert.Equal(t, "header: x-payment-required (base64)", c.SourceDetail)
}

func TestExtractBody(t *testing.T) {
	body := ParseBody([]byte(acceptsJSON))

	c := Extract(402, map[string]string{"content-type": "application/json"}, body)

	assert.Equal(t, types.SourceBody, c.Source)
	assert.Equal(t, "body", c.SourceDetail)
	assert.Equal(t, body, c.Body)
}

func TestExtractBodyArray(t *testing.T) {
	c := Extract(402, nil, ParseBody([]byte(`[{"scheme":"exact"}]`)))
	assert.Equal(t, types.SourceBody, c.Source)
}

func TestExtractNone(t *testing.T) {
	headers := map[string]string{"content-type": "text/plain", "x-payment-hint": "pay me"}

	for _, body := range []any{nil, map[string]any{}, []any{}, "string body"} {
		c := Extract(402, headers, body)

		assert.Equal(t, types.SourceNone, c.Source)
		assert.False(t, c.Found())
		assert.Equal(t, headers, c.Headers)
		assert.Equal(t, 402, c.HTTPStatus)
	}
}

func TestParseBody(t *testing.T) {
	assert.Nil(t, ParseBody(nil))
	assert.Nil(t, ParseBody([]byte("  \n")))
	assert.Nil(t, ParseBody([]byte("<html>402</html>")))
	assert.NotNil(t, ParseBody([]byte(`{"a":1}`)))
}

func TestExtractResult(t *testing.T) {
	res := &types.ProbeResult{
		Status:  402,
		Headers: map[string]string{},
		RawBody: []byte(acceptsJSON),
	}

	c := ExtractResult(res)
	assert.Equal(t, types.SourceBody, c.Source)
}
