// Package probe sends the unauthenticated request that tells whether an
// endpoint is payment-gated.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/davedumto/nex402/types"
	"github.com/davedumto/nex402/utils"
)

// MaxBodySize bounds how much of a response body is read into memory.
const MaxBodySize = 4 << 20

// Probe issues GET url with Accept: application/json and no payment.
// Only a 402 marks the result as challenged; every other status is returned
// as-is. Transport failures are classified by ClassifyError and never retried.
func Probe(ctx context.Context, client *http.Client, url string) (*types.ProbeResult, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewError(types.ErrNetworkError, fmt.Sprintf("invalid url %q", url), err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, ClassifyError(err)
	}
	defer resp.Body.Close()

	body, err := ReadBody(resp)
	if err != nil {
		return nil, types.NewError(types.ErrNetworkError, "failed to read response body", err)
	}

	return &types.ProbeResult{
		URL:        url,
		Status:     resp.StatusCode,
		StatusText: StatusText(resp),
		Headers:    utils.FlattenHeaders(resp.Header),
		RawBody:    body,
		Challenged: resp.StatusCode == http.StatusPaymentRequired,
	}, nil
}

// ReadBody reads at most MaxBodySize bytes of the response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
}

// StatusText returns the reason phrase the server sent, falling back to the
// standard text for the code.
func StatusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// ClassifyError maps a transport error onto the connection-refused,
// DNS-failure or generic network error kinds.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return types.NewError(types.ErrCodeConnRefused, "could not connect to the endpoint",
			fmt.Errorf("%w: %w", types.ErrConnectionRefused, err))
	case errors.As(err, &dnsErr):
		return types.NewError(types.ErrCodeDNSFailure, fmt.Sprintf("host %q not found", dnsErr.Name),
			fmt.Errorf("%w: %w", types.ErrDNSFailure, err))
	default:
		return types.NewError(types.ErrNetworkError, "request failed", err)
	}
}
