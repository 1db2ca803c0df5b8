// SPDX-FileCopyrightText: Copyright 2026 Popcorn Time, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package networking provides construction of the outbound HTTP clients used
// for identity provider and backend calls.
package networking

import (
	"net/http"
	"time"
)

// ProviderTimeout is the timeout for requests to the identity provider.
const ProviderTimeout = 5 * time.Second

// HttpClientBuilder provides a fluent interface for building HTTP clients
type HttpClientBuilder struct {
	clientTimeout         time.Duration
	tlsHandshakeTimeout   time.Duration
	responseHeaderTimeout time.Duration
	followRedirects       bool
	bearerToken           string
}

// NewHttpClientBuilder returns a new HttpClientBuilder
func NewHttpClientBuilder() *HttpClientBuilder {
	return &HttpClientBuilder{
		clientTimeout:         ProviderTimeout,
		tlsHandshakeTimeout:   10 * time.Second,
		responseHeaderTimeout: 10 * time.Second,
		followRedirects:       true,
	}
}

// WithTimeout sets the overall request timeout
func (b *HttpClientBuilder) WithTimeout(timeout time.Duration) *HttpClientBuilder {
	b.clientTimeout = timeout
	return b
}

// WithoutRedirects disables redirect following. Token and JWKS requests must
// never follow redirects; a redirecting provider could be used to leak
// credentials (SSRF).
func (b *HttpClientBuilder) WithoutRedirects() *HttpClientBuilder {
	b.followRedirects = false
	return b
}

// WithBearerToken attaches a static bearer token to every request
func (b *HttpClientBuilder) WithBearerToken(token string) *HttpClientBuilder {
	b.bearerToken = token
	return b
}

// bearerTransport adds Bearer token authentication to HTTP requests
type bearerTransport struct {
	transport http.RoundTripper
	token     string
}

// RoundTrip adds the Authorization header and forwards the request
func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	newReq := req.Clone(req.Context())
	newReq.Header.Set("Authorization", "Bearer "+t.token)

	return t.transport.RoundTrip(newReq)
}

// Build creates the configured HTTP client
func (b *HttpClientBuilder) Build() *http.Client {
	var transport http.RoundTripper = &http.Transport{
		TLSHandshakeTimeout:   b.tlsHandshakeTimeout,
		ResponseHeaderTimeout: b.responseHeaderTimeout,
	}

	if b.bearerToken != "" {
		transport = &bearerTransport{
			transport: transport,
			token:     b.bearerToken,
		}
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   b.clientTimeout,
	}

	if !b.followRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client
}
