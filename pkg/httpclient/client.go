// Package httpclient builds the HTTP client shared by the request pipeline,
// the upload coordinator and the CLI.
//
// Every request it sends carries a User-Agent, an X-Request-ID and, when
// tracing is enabled, a W3C traceparent. Each round trip is logged with
// presign signatures redacted and credential headers reduced to their
// category names. Credential headers are dropped when a redirect leaves the
// original host.
//
//	cfg := httpclient.DefaultConfig()
//	cfg.UserAgent = "audionote/1.2.0"
//	client, err := httpclient.New(cfg)
package httpclient

import (
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"
)

const maxRedirects = 10

// New creates an HTTP client from cfg. The client has no overall timeout;
// callers bound requests with their context.
func New(cfg Config) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		ForceAttemptHTTP2: true,

		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,

		// Audio bodies are large; fewer syscalls per upload.
		WriteBufferSize: 64 << 10,
	}

	return &http.Client{
		Transport:     newLoggingTransport(baseTransport, cfg.UserAgent, cfg.Logger),
		CheckRedirect: stripCredentialsOnRedirect,
	}, nil
}

// stripCredentialsOnRedirect removes credential headers when a redirect
// moves to a different host.
func stripCredentialsOnRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}
	if req.URL.Host == via[0].URL.Host {
		return nil
	}
	for name := range req.Header {
		if isCredentialHeader(name) {
			req.Header.Del(name)
		}
	}
	return nil
}
