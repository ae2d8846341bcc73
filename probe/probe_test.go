package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davedumto/nex402/types"
)

func TestProbeNotGated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("X-PAYMENT"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":"free"}`))
	}))
	defer server.Close()

	res, err := Probe(context.Background(), server.Client(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "OK", res.StatusText)
	assert.False(t, res.Challenged)
	assert.True(t, res.OK())
}

func TestProbeChallenged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Payment", `{"accepts":[]}`)
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	res, err := Probe(context.Background(), server.Client(), server.URL)
	require.NoError(t, err)

	assert.True(t, res.Challenged)
	assert.Equal(t, "Payment Required", res.StatusText)
	assert.Equal(t, `{"accepts":[]}`, res.Headers["x-payment"])
}

func TestProbeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	res, err := Probe(context.Background(), server.Client(), server.URL)
	require.NoError(t, err)
	assert.False(t, res.Challenged)
	assert.False(t, res.OK())
}

func TestProbeConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := Probe(context.Background(), nil, url)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConnectionRefused))
	assert.Equal(t, types.ErrCodeConnRefused, types.Code(err))
}

func TestClassifyError(t *testing.T) {
	dns := ClassifyError(&net.OpError{Op: "dial", Err: &net.DNSError{Name: "nope.invalid", IsNotFound: true}})
	assert.True(t, errors.Is(dns, types.ErrDNSFailure))
	assert.Equal(t, types.ErrCodeDNSFailure, types.Code(dns))

	refused := ClassifyError(&net.OpError{Op: "dial", Err: syscall.ECONNREFUSED})
	assert.True(t, errors.Is(refused, types.ErrConnectionRefused))

	other := ClassifyError(context.DeadlineExceeded)
	assert.Equal(t, types.ErrNetworkError, types.Code(other))
	assert.True(t, errors.Is(other, context.DeadlineExceeded))

	assert.Nil(t, ClassifyError(nil))
}

func TestProbeBodyIsBounded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write(make([]byte, MaxBodySize+1024))
	}))
	defer server.Close()

	res, err := Probe(context.Background(), server.Client(), server.URL)
	require.NoError(t, err)
	assert.Len(t, res.RawBody, MaxBodySize)
}
