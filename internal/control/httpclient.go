package control

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/autoorder/core/netutil"
)

const (
	dialTimeout       = 5 * time.Second
	tlsHandshake      = 5 * time.Second
	idleConnTimeout   = 30 * time.Second
	keepAliveInterval = 30 * time.Second
	sendRetries       = 3
	sendRetryBackoff  = 2 * time.Second
)

// buildHTTPClient returns the HTTP client used for Bot API calls.
// getUpdates holds the response open for up to pollTimeout, so the
// header and client timeouts must clear it with room to spare.
func buildHTTPClient(pollTimeout time.Duration) *http.Client {
	grace := pollTimeout + 10*time.Second
	timeout := 30 * time.Second
	if grace > timeout {
		timeout = grace
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshake,
		ResponseHeaderTimeout: grace,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &retryTransport{
			base:    transport,
			retries: sendRetries,
			backoff: sendRetryBackoff,
		},
	}
}

// retryTransport retries transient network failures and gateway errors
// from the Bot API edge. Requests with a non-replayable body are never
// retried.
type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	attempts := t.retries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		currReq := req
		if attempt > 1 {
			currReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				currReq.Body = body
			} else if req.Body != nil {
				return nil, lastErr
			}
		}

		resp, err := base.RoundTrip(currReq)
		if err == nil {
			if attempt == attempts || !netutil.RetryableStatus(resp.StatusCode) {
				return resp, nil
			}
			// Drain so the connection can be reused before retrying.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("bot api: %s", resp.Status)
		} else {
			lastErr = err
			if !netutil.ShouldRetry(err) || attempt == attempts {
				break
			}
		}

		delay := t.backoff * time.Duration(attempt)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}
