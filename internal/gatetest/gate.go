// Package gatetest provides an in-process payment-gating proxy for tests.
// It answers unpaid requests with a 402 challenge and forwards paid ones.
package gatetest

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/davedumto/nex402/encoding"
	"github.com/davedumto/nex402/types"
)

// Placement selects where the gate puts the challenge.
type Placement int

const (
	// HeaderJSON sends the challenge as plain JSON in X-PAYMENT.
	HeaderJSON Placement = iota
	// HeaderBase64 sends base64(JSON) in PAYMENT-REQUIRED.
	HeaderBase64
	// Body sends the challenge as the JSON response body.
	Body
)

// Config holds the configuration for the gate.
type Config struct {
	Accepts   []map[string]any
	Placement Placement

	// Receipt, when set, is returned base64-encoded in PAYMENT-RESPONSE
	// on paid requests.
	Receipt map[string]any

	// Verify decides whether a payment is accepted. Nil accepts every
	// payload that decodes.
	Verify func(types.PaymentPayload) bool

	// AlwaysChallenge rejects even paid requests with another 402.
	AlwaysChallenge bool
}

// Gate is a payment-gating http.Handler.
type Gate struct {
	next   http.Handler
	config Config

	mu       sync.Mutex
	requests []*http.Request
	payments []types.PaymentPayload
}

func New(next http.Handler, config Config) *Gate {
	return &Gate{next: next, config: config}
}

// ServeHTTP implements http.Handler.
func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.requests = append(g.requests, r.Clone(r.Context()))
	g.mu.Unlock()

	header := r.Header.Get("X-PAYMENT")
	if header == "" {
		g.challenge(w)
		return
	}

	payment, err := encoding.DecodePayment(header)
	if err != nil {
		g.challenge(w)
		return
	}

	g.mu.Lock()
	g.payments = append(g.payments, payment)
	g.mu.Unlock()

	if g.config.AlwaysChallenge || (g.config.Verify != nil && !g.config.Verify(payment)) {
		g.challenge(w)
		return
	}

	if g.config.Receipt != nil {
		if v, err := encoding.EncodeJSON(g.config.Receipt); err == nil {
			w.Header().Set("PAYMENT-RESPONSE", v)
		}
	}
	g.next.ServeHTTP(w, r)
}

// Requests returns every request the gate received, in order.
func (g *Gate) Requests() []*http.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*http.Request(nil), g.requests...)
}

// Payments returns every decoded payment the gate received.
func (g *Gate) Payments() []types.PaymentPayload {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]types.PaymentPayload(nil), g.payments...)
}

func (g *Gate) challenge(w http.ResponseWriter) {
	body := map[string]any{
		"x402Version": 2,
		"error":       "payment required",
		"accepts":     g.config.Accepts,
	}

	switch g.config.Placement {
	case HeaderBase64:
		if v, err := encoding.EncodeJSON(body); err == nil {
			w.Header().Set("PAYMENT-REQUIRED", v)
		}
		w.WriteHeader(http.StatusPaymentRequired)
	case Body:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(body)
	default:
		if b, err := json.Marshal(body); err == nil {
			w.Header().Set("X-PAYMENT", string(b))
		}
		w.WriteHeader(http.StatusPaymentRequired)
	}
}

// JSONHandler answers every request with status 200 and v as JSON.
func JSONHandler(v any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	})
}
