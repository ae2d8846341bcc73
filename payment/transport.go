package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/davedumto/nex402/challenge"
	"github.com/davedumto/nex402/encoding"
	"github.com/davedumto/nex402/logger"
	"github.com/davedumto/nex402/metrics"
	"github.com/davedumto/nex402/presenter"
	"github.com/davedumto/nex402/probe"
	"github.com/davedumto/nex402/signer"
	"github.com/davedumto/nex402/types"
	"github.com/davedumto/nex402/utils"
)

// Payment request headers. Both are sent so v1 and v2 servers accept the retry.
const (
	HeaderPayment          = "X-PAYMENT"
	HeaderPaymentSignature = "PAYMENT-SIGNATURE"
)

// State tracks one request through the payment flow.
type State int

const (
	StateUnsent State = iota
	StateSent
	StateChallenged
	StatePaidRetrySent
	StateOK
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnsent:
		return "UNSENT"
	case StateSent:
		return "SENT"
	case StateChallenged:
		return "CHALLENGED"
	case StatePaidRetrySent:
		return "PAID_RETRY_SENT"
	case StateOK:
		return "OK"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Trace records what the transport did for one request.
type Trace struct {
	State     State
	Attempts  int
	Paid      bool
	Challenge *types.PaymentChallenge
	Selection *signer.Selection
}

type traceKey struct{}

// WithTrace returns a context whose requests record into t.
func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

func traceFrom(ctx context.Context) *Trace {
	if t, ok := ctx.Value(traceKey{}).(*Trace); ok {
		return t
	}
	return &Trace{}
}

// Transport is a RoundTripper that answers a 402 Payment Required with one
// signed retry. A second 402 is returned to the caller unchanged, including
// one reached by following a redirect after the payment was sent.
type Transport struct {
	// Base is the underlying RoundTripper (typically http.DefaultTransport).
	Base http.RoundTripper

	// Signers is the list of available payment signers.
	Signers []signer.Signer

	// Selector chooses the option to pay and signs it.
	Selector signer.Selector

	Logger  logger.Logger
	Metrics metrics.Recorder
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	log := t.Logger
	if log == nil {
		log = logger.NoopLogger{}
	}
	rec := t.Metrics
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	trace := traceFrom(req.Context())

	if trace.Paid {
		resp, err := base.RoundTrip(req.Clone(req.Context()))
		if err != nil {
			trace.State = StateFailed
			return nil, err
		}
		trace.State = finalState(resp)
		if resp.StatusCode == http.StatusPaymentRequired {
			log.Warn("payment already sent, not paying again", map[string]any{"url": req.URL.String()})
		}
		return resp, nil
	}

	// Clone the request to avoid modifying the original
	first := req.Clone(req.Context())
	trace.State = StateSent
	trace.Attempts = 1

	resp, err := base.RoundTrip(first)
	if err != nil {
		trace.State = StateFailed
		return nil, err
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		trace.State = finalState(resp)
		return resp, nil
	}

	trace.State = StateChallenged
	body, err := probe.ReadBody(resp)
	resp.Body.Close()
	if err != nil {
		trace.State = StateFailed
		return nil, types.NewError(types.ErrNetworkError, "failed to read 402 response body", err)
	}

	c := challenge.Extract(resp.StatusCode, utils.FlattenHeaders(resp.Header), challenge.ParseBody(body))
	trace.Challenge = &c
	report := presenter.Normalize(req.URL.String(), c)
	rec.IncCounter("challenge", map[string]string{"network": firstNetwork(report.Options)})

	if !report.Recognized() {
		trace.State = StateFailed
		return nil, types.NewError(types.ErrChallengeParse, "payment required but no payment options could be parsed", nil).
			WithDetails("source", c.SourceDetail)
	}

	sel, err := t.Selector.SelectAndSign(t.Signers, report.Options)
	if err != nil {
		trace.State = StateFailed
		var xe *types.X402Error
		if errors.As(err, &xe) {
			xe.WithDetails("source", c.SourceDetail)
		}
		return nil, err
	}
	trace.Selection = sel

	header, err := encoding.EncodePayment(*sel.Payload)
	if err != nil {
		trace.State = StateFailed
		return nil, types.NewError(types.ErrSigningFailed, "failed to build payment header", err)
	}

	network := sel.Option.Network
	log.Info("paying for request", map[string]any{
		"network": network,
		"scheme":  sel.Option.Scheme,
		"amount":  sel.Option.RawAtomicAmount,
		"payTo":   sel.Option.PayTo,
		"payer":   sel.Signer.Address(),
	})
	rec.IncCounter("payment_attempt", map[string]string{"network": network})

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		if retry.Body, err = req.GetBody(); err != nil {
			trace.State = StateFailed
			return nil, types.NewError(types.ErrNetworkError, "failed to rewind request body", err)
		}
	}
	retry.Header.Set(HeaderPayment, header)
	retry.Header.Set(HeaderPaymentSignature, header)

	start := time.Now()
	trace.State = StatePaidRetrySent
	trace.Attempts = 2
	trace.Paid = true

	respRetry, err := base.RoundTrip(retry)
	rec.ObserveLatency("paid_retry", time.Since(start), map[string]string{"network": network})
	if err != nil {
		trace.State = StateFailed
		rec.IncCounter("payment_failure", map[string]string{"network": network})
		return nil, err
	}

	trace.State = finalState(respRetry)
	if trace.State == StateOK {
		rec.IncCounter("payment_success", map[string]string{"network": network})
	} else {
		rec.IncCounter("payment_failure", map[string]string{"network": network})
		log.Warn("paid retry was not accepted", map[string]any{"status": respRetry.StatusCode, "network": network})
	}
	return respRetry, nil
}

func finalState(resp *http.Response) State {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return StateOK
	}
	return StateFailed
}

func firstNetwork(opts []types.PaymentOption) string {
	if len(opts) == 0 {
		return ""
	}
	return opts[0].Network
}
