package passkey

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// HTTPClient defines the interface for making HTTP requests.
// This abstraction allows for testing and custom implementations.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// defaultHTTPClient is a production HTTP client with sensible defaults.
type defaultHTTPClient struct {
	client *http.Client
}

// newDefaultHTTPClient creates an HTTP client configured for ceremony
// traffic: pooled connections, TLS >= 1.2, and a cookie jar so relying-party
// session cookies survive across the options/verify request pair.
func newDefaultHTTPClient(timeout time.Duration, tlsConfig *tls.Config, insecureSkipVerify, disableCookies bool) HTTPClient {
	customTLS := tlsConfig
	if customTLS == nil {
		customTLS = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	} else {
		// Clone to avoid modifying the original
		customTLS = tlsConfig.Clone()
	}

	if insecureSkipVerify {
		customTLS.InsecureSkipVerify = true
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       customTLS,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: &retryTransport{base: transport},
	}

	if !disableCookies {
		// cookiejar.New only fails on bad options; none are passed.
		if jar, err := cookiejar.New(nil); err == nil {
			client.Jar = jar
		}
	}

	return &defaultHTTPClient{client: client}
}

// Do executes the HTTP request.
func (c *defaultHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req)
}

// retryTransport wraps an http.RoundTripper with retry logic for transient
// failures. Rejections (4xx) are never replayed, so a challenge is never
// presented twice and a verify verdict is never re-solicited.
type retryTransport struct {
	base http.RoundTripper
}

// RoundTrip implements http.RoundTripper with retry logic. The request is
// never mutated; each retry runs on a clone with a fresh body from GetBody.
// When attempts run out the final response is returned as-is so the caller
// can still classify a structured error body.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	const maxRetries = 3
	const initialBackoff = 100 * time.Millisecond

	backoff := initialBackoff

	for attempt := 0; ; attempt++ {
		attemptReq := req
		if attempt > 0 {
			attemptReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				attemptReq.Body = body
			}
		}

		resp, err := t.base.RoundTrip(attemptReq)

		// Done - non-transient responses (2xx and 4xx alike) are the
		// caller's to interpret
		if err == nil && !shouldRetry(resp) {
			return resp, nil
		}

		// Out of attempts, or a body that cannot be replayed: hand back
		// whatever the final attempt produced
		if attempt == maxRetries-1 || (req.Body != nil && req.GetBody == nil) {
			return resp, err
		}

		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// shouldRetry determines if an HTTP response indicates a transient failure.
func shouldRetry(resp *http.Response) bool {
	if resp == nil {
		return true
	}

	// Retry on server errors (5xx) and rate limiting (429)
	return resp.StatusCode == 429 || resp.StatusCode >= 500
}
