// Package x402 is a client for HTTP 402 "Payment Required" endpoints. It
// inspects what an endpoint charges and pays for a request with one signed
// retry.
package x402

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/davedumto/nex402/challenge"
	"github.com/davedumto/nex402/logger"
	"github.com/davedumto/nex402/metrics"
	"github.com/davedumto/nex402/payment"
	"github.com/davedumto/nex402/presenter"
	"github.com/davedumto/nex402/probe"
	"github.com/davedumto/nex402/types"
)

// Client is the main entry point: Inspect for the read-only path, Pay for
// the paying one. It holds no per-request state.
type Client struct {
	httpClient *http.Client
	logger     logger.Logger
	metrics    metrics.Recorder
	timeout    time.Duration
	payOpts    []payment.Option
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// Inspection is the result of probing an endpoint. Challenge and Report are
// nil when the endpoint did not answer 402.
type Inspection struct {
	Probe     *types.ProbeResult
	Challenge *types.PaymentChallenge
	Report    *types.RequirementsReport
}

// Gated reports whether the endpoint demanded payment.
func (i *Inspection) Gated() bool {
	return i.Probe != nil && i.Probe.Challenged
}

// Inspect probes url without paying and, on a 402, locates and normalizes
// the payment requirements.
func (c *Client) Inspect(ctx context.Context, url string) (*Inspection, error) {
	start := time.Now()
	url = NormalizeURL(url)

	res, err := probe.Probe(ctx, c.httpClient, url)
	if err != nil {
		c.logger.Debug("probe failed", map[string]any{"url": url, "error": err.Error()})
		return nil, err
	}
	c.metrics.IncCounter("probe", map[string]string{"network": ""})

	out := &Inspection{Probe: res}
	if !res.Challenged {
		c.logger.Info("endpoint not gated", map[string]any{"url": url, "status": res.Status})
		return out, nil
	}

	ch := challenge.ExtractResult(res)
	report := presenter.Normalize(url, ch)
	out.Challenge = &ch
	out.Report = &report

	network := ""
	if report.Recognized() {
		network = report.Options[0].Network
	}
	c.metrics.IncCounter("challenge", map[string]string{"network": network})
	c.metrics.ObserveLatency("inspect", time.Since(start), map[string]string{"network": network})
	c.logger.Info("payment challenge found", map[string]any{
		"url":     url,
		"source":  ch.SourceDetail,
		"options": len(report.Options),
	})

	return out, nil
}

// Pay performs the request, paying once if challenged.
func (c *Client) Pay(ctx context.Context, req payment.Request) (*types.PaymentRequestResult, error) {
	req.URL = NormalizeURL(req.URL)

	opts := append([]payment.Option{
		payment.WithHTTPClient(c.httpClient),
		payment.WithLogger(c.logger),
		payment.WithMetrics(c.metrics),
	}, c.payOpts...)

	return payment.NewOrchestrator(opts...).Pay(ctx, req)
}

// NormalizeURL prefixes https:// when the URL has no scheme.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

// Version information
const (
	Version         = "0.3.0"
	ProtocolVersion = 2
)

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	return map[string]interface{}{
		"library_version":  Version,
		"protocol_version": ProtocolVersion,
		"supported_networks": []string{
			string(types.NetworkAptosMainnet), string(types.NetworkAptosTestnet),
			string(types.NetworkBase), string(types.NetworkBaseSepolia),
			string(types.NetworkEthereum), string(types.NetworkSepolia),
			string(types.NetworkPolygon), string(types.NetworkPolygonAmoy),
			string(types.NetworkAvalanche), string(types.NetworkAvalancheFuji),
		},
		"supported_schemes": []string{
			string(types.SchemeExact),
		},
	}
}
