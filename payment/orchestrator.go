// Package payment performs a request against a payment-gated endpoint,
// paying once if the server answers 402 Payment Required.
package payment

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/davedumto/nex402/logger"
	"github.com/davedumto/nex402/metrics"
	"github.com/davedumto/nex402/probe"
	"github.com/davedumto/nex402/settlement"
	"github.com/davedumto/nex402/signer"
	"github.com/davedumto/nex402/types"
	"github.com/davedumto/nex402/verification"
)

// Request describes one pay invocation.
type Request struct {
	URL string

	// Method defaults to GET and is upper-cased.
	Method string

	// Body is sent for POST, PUT and PATCH as application/json.
	Body []byte

	// Key overrides the environment and secrets-file lookups.
	Key string
}

// Orchestrator resolves a credential, builds signers and runs the request
// through a paying Transport.
type Orchestrator struct {
	client  *http.Client
	logger  logger.Logger
	metrics metrics.Recorder
	policy  verification.Policy
	lookup  CredentialLookup
	signers SignerFactory
}

type Option func(*Orchestrator)

// WithHTTPClient sets the client whose transport and timeout are used.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Orchestrator) {
		o.client = c
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		o.metrics = r
	}
}

// WithMaxAmount refuses options whose atomic amount exceeds limit.
func WithMaxAmount(limit *big.Int) Option {
	return func(o *Orchestrator) {
		o.policy.MaxAmount = limit
	}
}

// WithCredentialLookup replaces the environment and secrets-file sources.
func WithCredentialLookup(l CredentialLookup) Option {
	return func(o *Orchestrator) {
		o.lookup = l
	}
}

// WithSignerFactory replaces the default Aptos + EVM signer set.
func WithSignerFactory(f SignerFactory) Option {
	return func(o *Orchestrator) {
		o.signers = f
	}
}

func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:  &http.Client{},
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		lookup:  CredentialLookup{SecretsFile: DefaultSecretsFile},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.signers == nil {
		o.signers = DefaultSigners(o.logger)
	}
	return o
}

// Pay sends the request, paying at most once. A missing or malformed key
// fails before any network traffic.
func (o *Orchestrator) Pay(ctx context.Context, r Request) (*types.PaymentRequestResult, error) {
	start := time.Now()

	cred, err := ResolveCredential(r.Key, o.lookup)
	if err != nil {
		return nil, err
	}
	signers, err := o.signers(cred)
	if err != nil {
		return nil, err
	}

	req, err := newRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	trace := &Trace{}
	client := &http.Client{
		Transport: &Transport{
			Base:     o.client.Transport,
			Signers:  signers,
			Selector: signer.Selector{Policy: o.policy},
			Logger:   o.logger,
			Metrics:  o.metrics,
		},
		Timeout:       o.client.Timeout,
		CheckRedirect: o.client.CheckRedirect,
		Jar:           o.client.Jar,
	}

	resp, err := client.Do(req.WithContext(WithTrace(req.Context(), trace)))
	if err != nil {
		var xe *types.X402Error
		if errors.As(err, &xe) {
			return nil, xe
		}
		return nil, probe.ClassifyError(err)
	}
	defer resp.Body.Close()

	body, err := probe.ReadBody(resp)
	if err != nil {
		return nil, types.NewError(types.ErrNetworkError, "failed to read response body", err)
	}

	result := &types.PaymentRequestResult{
		HTTPStatus:   resp.StatusCode,
		StatusText:   probe.StatusText(resp),
		OK:           resp.StatusCode >= 200 && resp.StatusCode < 300,
		ResponseBody: body,
		ContentType:  resp.Header.Get("Content-Type"),
		Attempts:     trace.Attempts,
	}
	if len(signers) > 0 {
		result.Wallet = signers[0].Address()
	}

	receipt, err := settlement.FromHeaders(resp.Header)
	if err != nil {
		o.logger.Debug("could not decode payment receipt", map[string]any{"error": err.Error()})
	}
	result.Receipt = receipt

	network := ""
	if trace.Selection != nil {
		network = trace.Selection.Option.Network
	}
	o.metrics.ObserveLatency("pay", time.Since(start), map[string]string{"network": network})
	o.logger.Debug("pay finished", map[string]any{
		"status":   resp.StatusCode,
		"state":    trace.State.String(),
		"attempts": trace.Attempts,
	})

	return result, nil
}

func newRequest(ctx context.Context, r Request) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	withBody := len(r.Body) > 0 && (method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch)
	if withBody {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, types.NewError(types.ErrNetworkError, "invalid request", err)
	}
	req.Header.Set("Accept", "application/json")
	if withBody {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
