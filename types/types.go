package types

import "fmt"

// X402Version represents the version of the x402 protocol
type X402Version int

const (
	X402Version1 X402Version = 1
	X402Version2 X402Version = 2
)

// PaymentScheme represents different payment schemes
type PaymentScheme string

const (
	SchemeExact PaymentScheme = "exact"
)

// ChallengeSource tells where a payment challenge was found.
type ChallengeSource string

const (
	SourceHeader ChallengeSource = "header"
	SourceBody   ChallengeSource = "body"
	SourceNone   ChallengeSource = "none"
)

// ProbeResult is the outcome of an unauthenticated request against an endpoint.
type ProbeResult struct {
	URL        string            `json:"url"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers,omitempty"`
	RawBody    []byte            `json:"-"`

	// Challenged is true only for 402 Payment Required responses.
	Challenged bool `json:"challenged"`
}

// OK reports whether the probed status is in the 2xx range.
func (p *ProbeResult) OK() bool {
	return p.Status >= 200 && p.Status < 300
}

// PaymentChallenge is the payment-requirement data located in a 402 response.
// Exactly one is produced per probe.
type PaymentChallenge struct {
	HTTPStatus int               `json:"httpStatus"`
	Headers    map[string]string `json:"headers,omitempty"`

	// Body is the decoded challenge payload: a JSON object, a JSON array,
	// or a {"raw": value} wrapper for opaque header values.
	Body any `json:"body,omitempty"`

	Source ChallengeSource `json:"source"`

	// SourceDetail is a human description such as "header: x-payment (base64)".
	SourceDetail string `json:"sourceDetail"`
}

// Found reports whether any payment data was located.
func (c PaymentChallenge) Found() bool {
	return c.Source != SourceNone && c.Body != nil
}

// PaymentOption is one accepted way of satisfying a challenge.
type PaymentOption struct {
	Scheme  string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	PayTo   string `json:"payTo,omitempty" yaml:"payTo,omitempty"`
	Network string `json:"network,omitempty" yaml:"network,omitempty"`

	// PriceDecimal is a human-readable price such as "0.01".
	PriceDecimal string `json:"price,omitempty" yaml:"price,omitempty"`

	// RawAtomicAmount is the amount in the asset's smallest unit.
	RawAtomicAmount string `json:"amount,omitempty" yaml:"amount,omitempty" validate:"omitempty,numeric"`

	Decimals          int    `json:"decimals" yaml:"decimals" validate:"gte=0,lte=36"`
	Symbol            string `json:"symbol" yaml:"symbol"`
	Asset             string `json:"asset,omitempty" yaml:"asset,omitempty"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds,omitempty" yaml:"maxTimeoutSeconds,omitempty" validate:"gte=0"`

	// Extra holds protocol extensions not covered by the fields above.
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

const (
	DefaultDecimals = 6
	DefaultSymbol   = "USDC"
)

// RequirementsReport is the normalized view of a challenge.
type RequirementsReport struct {
	URL         string          `json:"url" yaml:"url"`
	Source      string          `json:"source" yaml:"source"`
	Version     *int            `json:"x402Version,omitempty" yaml:"x402Version,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	MimeType    string          `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
	Options     []PaymentOption `json:"options" yaml:"options"`

	// Raw is set only when no option list could be located.
	Raw any `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// Recognized reports whether at least one option was extracted.
func (r *RequirementsReport) Recognized() bool {
	return len(r.Options) > 0
}

// TransactionReceipt identifies the on-chain settlement of a payment.
type TransactionReceipt struct {
	TransactionID string `json:"transaction"`
	Network       string `json:"network,omitempty"`
	Payer         string `json:"payer,omitempty"`
	ExplorerURL   string `json:"explorerUrl,omitempty"`
}

// PaymentRequestResult is the final outcome of a pay invocation.
type PaymentRequestResult struct {
	HTTPStatus   int                 `json:"httpStatus"`
	StatusText   string              `json:"statusText"`
	OK           bool                `json:"ok"`
	Receipt      *TransactionReceipt `json:"receipt,omitempty"`
	ResponseBody []byte              `json:"-"`
	ContentType  string              `json:"contentType,omitempty"`

	// Attempts is 1 when no payment was made and 2 after a paid retry.
	Attempts int `json:"attempts"`

	// Wallet is the address of the primary signer loaded for this call.
	Wallet string `json:"wallet,omitempty"`
}

// PaymentPayload is sent by clients in the X-PAYMENT header.
type PaymentPayload struct {
	X402Version int           `json:"x402Version"`
	Scheme      string        `json:"scheme"`
	Network     string        `json:"network"`
	Accepted    PaymentOption `json:"accepted"`

	// Payload is the scheme-specific signed data produced by a signer.
	Payload any `json:"payload"`
}

// CredentialSource records where a signing key came from.
type CredentialSource string

const (
	CredentialFromFlag CredentialSource = "flag"
	CredentialFromEnv  CredentialSource = "env"
	CredentialFromFile CredentialSource = "file"
)

// SigningCredential is private key material held in memory for one call.
type SigningCredential struct {
	PrivateKey string
	Source     CredentialSource
}

// String redacts the key so credentials never reach logs or error text.
func (c SigningCredential) String() string {
	return fmt.Sprintf("credential(source=%s, key=<redacted>)", c.Source)
}

// GoString redacts the key for %#v as well.
func (c SigningCredential) GoString() string {
	return c.String()
}
