// SPDX-FileCopyrightText: Copyright 2026 Popcorn Time, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package backend holds the authenticated HTTP client used for calls to the
// application backend. The client carries the session's access token and is
// rebuilt whenever the token changes, e.g. after a refresh.
package backend

import (
	"net/http"
	"sync"
	"time"

	"github.com/popcorntime/session/pkg/networking"
)

// requestTimeout is the overall timeout for backend requests.
const requestTimeout = 30 * time.Second

// ClientHolder hands out an *http.Client authenticated with the current
// access token. Safe for concurrent use.
type ClientHolder struct {
	baseURL string

	mu     sync.Mutex
	token  string
	client *http.Client
}

// NewClientHolder creates a holder for the given backend base URL. The
// initial client is unauthenticated until UpdateToken is called.
func NewClientHolder(baseURL string) *ClientHolder {
	return &ClientHolder{
		baseURL: baseURL,
		client:  buildClient(""),
	}
}

// BaseURL returns the backend base URL requests should target.
func (h *ClientHolder) BaseURL() string {
	return h.baseURL
}

// Client returns the current authenticated client. Callers must not retain
// it across token changes; fetch it per request.
func (h *ClientHolder) Client() *http.Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.client
}

// UpdateToken swaps in a client carrying the given access token. An empty
// token yields an unauthenticated client. Setting the same token again
// keeps the existing client.
func (h *ClientHolder) UpdateToken(accessToken string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if accessToken == h.token {
		return
	}
	h.token = accessToken
	h.client = buildClient(accessToken)
}

func buildClient(accessToken string) *http.Client {
	builder := networking.NewHttpClientBuilder().WithTimeout(requestTimeout)
	if accessToken != "" {
		builder = builder.WithBearerToken(accessToken)
	}
	return builder.Build()
}
