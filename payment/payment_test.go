package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davedumto/nex402/internal/gatetest"
	"github.com/davedumto/nex402/signer/aptos"
	"github.com/davedumto/nex402/types"
)

const testKey = "0x0101010101010101010101010101010101010101010101010101010101010101"

var aptosAccepts = []map[string]any{{
	"scheme":            "exact",
	"network":           "aptos:2",
	"amount":            "10000",
	"payTo":             "0x42",
	"asset":             "0x69091fbab5f7d635ee7ac5098cf0c1efbe31d68fec0f2cd565e8d168daf52832",
	"maxTimeoutSeconds": 60,
}}

func noEnv(string) string { return "" }

func newTestOrchestrator(opts ...Option) *Orchestrator {
	base := []Option{WithCredentialLookup(CredentialLookup{Getenv: noEnv})}
	return NewOrchestrator(append(base, opts...)...)
}

func TestPayMissingCredentialBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	dir := t.TempDir()
	o := NewOrchestrator(WithCredentialLookup(CredentialLookup{
		Getenv:      noEnv,
		SecretsFile: filepath.Join(dir, ".env.local"),
	}))

	_, err := o.Pay(context.Background(), Request{URL: server.URL})

	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrCredentialMissing))
	assert.Equal(t, int32(0), hits.Load())
}

func TestPayInvalidCredential(t *testing.T) {
	_, err := newTestOrchestrator().Pay(context.Background(), Request{URL: "http://127.0.0.1:1", Key: "0xnope"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidCredential))
	assert.Equal(t, types.ErrCodeInvalidCredential, types.Code(err))
}

func TestPayNeverChallenged(t *testing.T) {
	server := httptest.NewServer(gatetest.JSONHandler(map[string]string{"data": "free"}))
	defer server.Close()

	res, err := newTestOrchestrator().Pay(context.Background(), Request{URL: server.URL, Key: testKey})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.True(t, res.OK)
	assert.Nil(t, res.Receipt)
	assert.Equal(t, 1, res.Attempts)
	assert.JSONEq(t, `{"data":"free"}`, string(res.ResponseBody))
}

func TestPayChallengedThenPaid(t *testing.T) {
	a, err := aptos.NewSigner(testKey)
	require.NoError(t, err)
	wallet := a.Address()

	for _, placement := range []gatetest.Placement{gatetest.HeaderJSON, gatetest.HeaderBase64, gatetest.Body} {
		gate := gatetest.New(gatetest.JSONHandler(map[string]string{"weather": "sunny"}), gatetest.Config{
			Accepts:   aptosAccepts,
			Placement: placement,
			Receipt:   map[string]any{"success": true, "transaction": "0xfeed", "network": "aptos:2"},
		})
		server := httptest.NewServer(gate)

		res, err := newTestOrchestrator().Pay(context.Background(), Request{URL: server.URL, Key: testKey})
		server.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, res.HTTPStatus)
		assert.Equal(t, 2, res.Attempts)
		assert.Equal(t, wallet, res.Wallet)
		require.NotNil(t, res.Receipt)
		assert.Equal(t, "0xfeed", res.Receipt.TransactionID)
		assert.Equal(t, "https://explorer.aptoslabs.com/txn/0xfeed?network=testnet", res.Receipt.ExplorerURL)

		reqs := gate.Requests()
		require.Len(t, reqs, 2)
		assert.Empty(t, reqs[0].Header.Get(HeaderPayment))
		assert.NotEmpty(t, reqs[1].Header.Get(HeaderPayment))
		assert.Equal(t, reqs[1].Header.Get(HeaderPayment), reqs[1].Header.Get(HeaderPaymentSignature))

		payments := gate.Payments()
		require.Len(t, payments, 1)
		assert.Equal(t, "aptos:2", payments[0].Network)
		assert.Equal(t, "10000", payments[0].Accepted.RawAtomicAmount)
	}
}

func TestPaySignatureVerifies(t *testing.T) {
	gate := gatetest.New(gatetest.JSONHandler(nil), gatetest.Config{Accepts: aptosAccepts})
	server := httptest.NewServer(gate)
	defer server.Close()

	_, err := newTestOrchestrator().Pay(context.Background(), Request{URL: server.URL, Key: testKey})
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(gate.Requests()[1].Header.Get(HeaderPayment))
	require.NoError(t, err)

	var envelope struct {
		Payload aptos.Payload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.True(t, aptos.Verify(envelope.Payload))
	assert.Equal(t, "0x42", envelope.Payload.Authorization.To)
}

func TestPayAtMostOneRetry(t *testing.T) {
	gate := gatetest.New(gatetest.JSONHandler(nil), gatetest.Config{Accepts: aptosAccepts, AlwaysChallenge: true})
	server := httptest.NewServer(gate)
	defer server.Close()

	res, err := newTestOrchestrator().Pay(context.Background(), Request{URL: server.URL, Key: testKey})
	require.NoError(t, err)

	assert.Equal(t, http.StatusPaymentRequired, res.HTTPStatus)
	assert.False(t, res.OK)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, gate.Requests(), 2)
}

func TestPayRedirectAfterPaymentNotPaidAgain(t *testing.T) {
	final := gatetest.New(gatetest.JSONHandler(map[string]string{"weather": "sunny"}), gatetest.Config{Accepts: aptosAccepts})
	start := gatetest.New(http.RedirectHandler("/final", http.StatusFound), gatetest.Config{Accepts: aptosAccepts})

	mux := http.NewServeMux()
	mux.Handle("/start", start)
	mux.Handle("/final", final)
	server := httptest.NewServer(mux)
	defer server.Close()

	res, err := newTestOrchestrator().Pay(context.Background(), Request{URL: server.URL + "/start", Key: testKey})
	require.NoError(t, err)

	assert.Equal(t, http.StatusPaymentRequired, res.HTTPStatus)
	assert.False(t, res.OK)
	assert.Equal(t, 2, res.Attempts)

	assert.Len(t, start.Payments(), 1)
	assert.Empty(t, final.Payments())
	require.Len(t, final.Requests(), 1)
	assert.Empty(t, final.Requests()[0].Header.Get(HeaderPayment))
}

func TestPayNoValidSigner(t *testing.T) {
	gate := gatetest.New(gatetest.JSONHandler(nil), gatetest.Config{
		Accepts: []map[string]any{{"scheme": "exact", "network": "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1", "amount": "1", "payTo": "So1"}},
	})
	server := httptest.NewServer(gate)
	defer server.Close()

	_, err := newTestOrchestrator().Pay(context.Background(), Request{URL: server.URL, Key: testKey})

	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNoValidSigner))
	assert.Len(t, gate.Requests(), 1)

	var xe *types.X402Error
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, "header: x-payment", xe.Details["source"])
}

func TestPayMaxAmount(t *testing.T) {
	gate := gatetest.New(gatetest.JSONHandler(nil), gatetest.Config{Accepts: aptosAccepts})
	server := httptest.NewServer(gate)
	defer server.Close()

	_, err := newTestOrchestrator(WithMaxAmount(big.NewInt(9999))).
		Pay(context.Background(), Request{URL: server.URL, Key: testKey})

	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrAmountExceeded))
	assert.Len(t, gate.Requests(), 1)
}

func TestPayUnparseableChallenge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	_, err := newTestOrchestrator().Pay(context.Background(), Request{URL: server.URL, Key: testKey})
	require.Error(t, err)
	assert.Equal(t, types.ErrChallengeParse, types.Code(err))
}

func TestPayPostBodyResentOnRetry(t *testing.T) {
	var bodies []string
	var contentTypes []string
	gate := gatetest.New(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), gatetest.Config{Accepts: aptosAccepts})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		contentTypes = append(contentTypes, r.Header.Get("Content-Type"))
		gate.ServeHTTP(w, r)
	}))
	defer server.Close()

	res, err := newTestOrchestrator().Pay(context.Background(), Request{
		URL:    server.URL,
		Method: "post",
		Body:   []byte(`{"q":"x"}`),
		Key:    testKey,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Equal(t, []string{`{"q":"x"}`, `{"q":"x"}`}, bodies)
	assert.Equal(t, []string{"application/json", "application/json"}, contentTypes)
	assert.Equal(t, http.MethodPost, gate.Requests()[1].Method)
}

func TestPayGetIgnoresBody(t *testing.T) {
	var got []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
		assert.Empty(t, r.Header.Get("Content-Type"))
	}))
	defer server.Close()

	_, err := newTestOrchestrator().Pay(context.Background(), Request{URL: server.URL, Body: []byte("x"), Key: testKey})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPayConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestOrchestrator().Pay(context.Background(), Request{URL: url, Key: testKey})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConnectionRefused))
}

func TestResolveCredentialOrder(t *testing.T) {
	dir := t.TempDir()
	secrets := filepath.Join(dir, ".env.local")
	require.NoError(t, os.WriteFile(secrets, []byte("OTHER=1\nNEXT_PUBLIC_APTOS_PRIVATE_KEY = 0xfromfile\n"), 0o600))

	env := func(v string) func(string) string {
		return func(k string) string {
			if k == EnvPrivateKey {
				return v
			}
			return ""
		}
	}

	c, err := ResolveCredential("0xflag", CredentialLookup{Getenv: env("0xenv"), SecretsFile: secrets})
	require.NoError(t, err)
	assert.Equal(t, types.CredentialFromFlag, c.Source)
	assert.Equal(t, "0xflag", c.PrivateKey)

	c, err = ResolveCredential("", CredentialLookup{Getenv: env("0xenv"), SecretsFile: secrets})
	require.NoError(t, err)
	assert.Equal(t, types.CredentialFromEnv, c.Source)

	c, err = ResolveCredential("", CredentialLookup{Getenv: env(""), SecretsFile: secrets})
	require.NoError(t, err)
	assert.Equal(t, types.CredentialFromFile, c.Source)
	assert.Equal(t, "0xfromfile", c.PrivateKey)

	_, err = ResolveCredential("  ", CredentialLookup{Getenv: env(""), SecretsFile: filepath.Join(dir, "missing")})
	assert.True(t, errors.Is(err, types.ErrCredentialMissing))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "PAID_RETRY_SENT", StatePaidRetrySent.String())
	assert.Equal(t, "UNSENT", StateUnsent.String())
}

func TestTransportTrace(t *testing.T) {
	gate := gatetest.New(gatetest.JSONHandler(nil), gatetest.Config{Accepts: aptosAccepts})
	server := httptest.NewServer(gate)
	defer server.Close()

	signers, err := DefaultSigners(nil)(types.SigningCredential{PrivateKey: testKey})
	require.NoError(t, err)

	trace := &Trace{}
	client := &http.Client{Transport: &Transport{Signers: signers}}
	req, err := http.NewRequestWithContext(WithTrace(context.Background(), trace), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, StateOK, trace.State)
	assert.Equal(t, 2, trace.Attempts)
	require.NotNil(t, trace.Selection)
	assert.Equal(t, "aptos:2", trace.Selection.Option.Network)
	require.NotNil(t, trace.Challenge)
	assert.Equal(t, types.SourceHeader, trace.Challenge.Source)
}
