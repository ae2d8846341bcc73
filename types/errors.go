package types

import (
	"errors"
	"strings"
)

// Sentinel errors, matchable with errors.Is through an X402Error.
var (
	ErrCredentialMissing = errors.New("x402: no private key found")
	ErrInvalidCredential = errors.New("x402: invalid private key")
	ErrConnectionRefused = errors.New("x402: connection refused")
	ErrDNSFailure        = errors.New("x402: DNS lookup failed")
	ErrDecode            = errors.New("x402: decode failed")
	ErrNoValidSigner     = errors.New("x402: no signer can satisfy payment requirements")
	ErrAmountExceeded    = errors.New("x402: payment amount exceeds spend limit")
)

// Common error codes
const (
	ErrNetworkError          = "NETWORK_ERROR"
	ErrCodeConnRefused       = "CONNECTION_REFUSED"
	ErrCodeDNSFailure        = "DNS_FAILURE"
	ErrCodeCredentialMissing = "CREDENTIAL_MISSING"
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL"
	ErrChallengeParse        = "CHALLENGE_PARSE_FAILURE"
	ErrReceiptDecode         = "RECEIPT_DECODE_FAILURE"
	ErrCodeNoValidSigner     = "NO_VALID_SIGNER"
	ErrCodeAmountExceeded    = "AMOUNT_EXCEEDED"
	ErrInvalidRequirements   = "INVALID_REQUIREMENTS"
	ErrSigningFailed         = "SIGNING_FAILED"
	ErrConfigError           = "CONFIG_ERROR"
)

// X402Error carries a programmatic code alongside the message.
type X402Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *X402Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *X402Error) Unwrap() error {
	return e.Err
}

// WithDetails adds context to the error.
func (e *X402Error) WithDetails(key string, value any) *X402Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NewError builds an X402Error.
func NewError(code, message string, err error) *X402Error {
	return &X402Error{Code: code, Message: message, Err: err}
}

// Code returns the X402Error code in err's chain, or "" if there is none.
func Code(err error) string {
	var xe *X402Error
	if errors.As(err, &xe) {
		return xe.Code
	}
	return ""
}

// Remediation returns operator-facing advice for a terminal error.
func Remediation(err error) string {
	switch {
	case errors.Is(err, ErrConnectionRefused):
		return "Could not connect to the endpoint.\nMake sure the server is running and the URL is correct."
	case errors.Is(err, ErrDNSFailure):
		return "DNS lookup failed, host not found.\nCheck the URL and your internet connection."
	case errors.Is(err, ErrCredentialMissing):
		return strings.Join([]string{
			"Provide a key using one of these methods:",
			"  1. --key flag:    nex402 pay <url> --key 0xYOUR_KEY",
			"  2. Env variable:  export NEXT_PUBLIC_APTOS_PRIVATE_KEY=0xYOUR_KEY",
			"  3. .env.local:    add NEXT_PUBLIC_APTOS_PRIVATE_KEY=0xYOUR_KEY to .env.local",
		}, "\n")
	case errors.Is(err, ErrInvalidCredential):
		return "Make sure your private key is a valid hex string."
	case errors.Is(err, ErrNoValidSigner):
		return "None of the offered payment options can be signed with this key."
	case errors.Is(err, ErrAmountExceeded):
		return "Raise --max-amount if you intend to pay this much."
	}
	switch Code(err) {
	case ErrNetworkError:
		return "Check the URL and your network connection."
	case ErrSigningFailed:
		return "Check that your wallet has enough funds for this payment."
	}
	return ""
}
