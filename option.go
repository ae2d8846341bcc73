package x402

import (
	"math/big"
	"net/http"
	"time"

	"github.com/davedumto/nex402/logger"
	"github.com/davedumto/nex402/metrics"
	"github.com/davedumto/nex402/payment"
)

type Option func(*Client)

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}

// WithTimeout bounds each HTTP request. Zero means no timeout.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) {
		c.timeout = t
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxAmount caps the atomic amount Pay will sign for.
func WithMaxAmount(limit *big.Int) Option {
	return func(c *Client) {
		c.payOpts = append(c.payOpts, payment.WithMaxAmount(limit))
	}
}

// WithSecretsFile sets the dotenv file searched for a signing key.
func WithSecretsFile(path string) Option {
	return func(c *Client) {
		c.payOpts = append(c.payOpts, payment.WithCredentialLookup(payment.CredentialLookup{SecretsFile: path}))
	}
}

// WithPaymentOptions passes options straight to the payment orchestrator.
func WithPaymentOptions(opts ...payment.Option) Option {
	return func(c *Client) {
		c.payOpts = append(c.payOpts, opts...)
	}
}
