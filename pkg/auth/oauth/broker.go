// SPDX-FileCopyrightText: Copyright 2026 Popcorn Time, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package oauth drives the Authorization-Code-with-PKCE flow against the
// identity provider, including the ephemeral loopback callback listener.
package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"github.com/popcorntime/session/pkg/errors"
	"github.com/popcorntime/session/pkg/logger"
	"github.com/popcorntime/session/pkg/networking"
)

const (
	// CallbackPort is the fixed loopback port registered with the provider.
	CallbackPort = 8085

	// attemptTimeout bounds one authorization attempt end to end.
	attemptTimeout = 300 * time.Second

	defaultSuccessURL = "https://watch.popcorntime.app/auth/success"
)

// Scopes requested for every authorization attempt.
var scopes = []string{"openid", "offline", "profile"}

// Config contains configuration for the authorization broker.
type Config struct {
	// ClientID is the OAuth client ID provisioned for the desktop app
	ClientID string

	// Issuer is the identity provider's base URL
	Issuer string

	// SuccessURL overrides the page the callback redirects to (tests)
	SuccessURL string

	// CallbackPort overrides the loopback port (tests)
	CallbackPort int

	// AttemptTimeout overrides the authorization attempt bound (tests)
	AttemptTimeout time.Duration
}

// Event announces that an authorization attempt is ready for the browser.
// The URL is the local listener's root, which redirects to the provider's
// authorization endpoint; re-announcements while an attempt is in flight
// carry the same value.
type Event struct {
	AuthorizeURL string `json:"authorizeUrl"`
}

// TokenResponse is the result of a successful code or refresh exchange.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    *time.Duration
}

// RefreshTokenHolder provides the stored refresh token, if any.
type RefreshTokenHolder interface {
	RefreshToken() *string
}

// Broker drives PKCE authorization attempts. At most one attempt is in
// flight per broker; the guard flag is reset on every attempt exit path.
type Broker struct {
	oauth2Config   *oauth2.Config
	httpClient     *http.Client
	port           int
	successURL     string
	attemptTimeout time.Duration

	running atomic.Bool
}

// NewBroker creates a broker for the given client and provider.
func NewBroker(config *Config) (*Broker, error) {
	if config == nil {
		return nil, fmt.Errorf("broker config cannot be nil")
	}
	if config.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if _, err := url.Parse(config.Issuer); err != nil || config.Issuer == "" {
		return nil, fmt.Errorf("invalid issuer URL: %q", config.Issuer)
	}

	logger.Infof("creating authorization broker for client %s", config.ClientID)

	authURL, err := url.JoinPath(config.Issuer, "oauth2/auth")
	if err != nil {
		return nil, fmt.Errorf("invalid authorization URL: %w", err)
	}
	tokenURL, err := url.JoinPath(config.Issuer, "oauth2/token")
	if err != nil {
		return nil, fmt.Errorf("invalid token URL: %w", err)
	}

	port := config.CallbackPort
	if port == 0 {
		port = CallbackPort
	}
	successURL := config.SuccessURL
	if successURL == "" {
		successURL = defaultSuccessURL
	}
	timeout := config.AttemptTimeout
	if timeout == 0 {
		timeout = attemptTimeout
	}

	return &Broker{
		oauth2Config: &oauth2.Config{
			ClientID:    config.ClientID,
			RedirectURL: fmt.Sprintf("http://127.0.0.1:%d/callback", port),
			Scopes:      scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		// Redirect-following on provider calls would open the client up to
		// credential leakage via SSRF.
		httpClient:     networking.NewHttpClientBuilder().WithoutRedirects().Build(),
		port:           port,
		successURL:     successURL,
		attemptTimeout: timeout,
	}, nil
}

// Running reports whether an authorization attempt is currently in flight.
func (b *Broker) Running() bool {
	return b.running.Load()
}

// listenerURL is the local root URL announced to the shell; it redirects to
// the provider's authorization endpoint while the attempt is alive.
func (b *Broker) listenerURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", b.port)
}

// AuthorizeInBackground starts one authorization attempt: it generates a
// fresh PKCE pair and CSRF token, announces the authorization URL through
// onReady, runs the loopback listener, and exchanges the returned code for
// tokens, delivering them through onToken.
//
// The call is idempotent while an attempt is running: a second caller just
// receives onReady again with the same URL and no second listener is
// started. onToken is not invoked on timeout, CSRF mismatch, or exchange
// failure; those end the attempt with a log line only.
func (b *Broker) AuthorizeInBackground(onReady func(Event) error, onToken func(TokenResponse) error) error {
	if !b.running.CompareAndSwap(false, true) {
		return onReady(Event{AuthorizeURL: b.listenerURL()})
	}

	verifier, challenge, err := generatePKCEPair()
	if err != nil {
		b.running.Store(false)
		return fmt.Errorf("failed to generate PKCE pair: %w", err)
	}
	state, err := generateState()
	if err != nil {
		b.running.Store(false)
		return fmt.Errorf("failed to generate state: %w", err)
	}

	authorizeURL := b.oauth2Config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	results := make(chan callbackResult, 1)
	srv := newCallbackServer(authorizeURL, b.successURL, b.port, results)

	go func() {
		defer b.running.Store(false)
		defer srv.triggerShutdown()

		if err := onReady(Event{AuthorizeURL: b.listenerURL()}); err != nil {
			logger.Errorf("failed to announce authorization URL: %v", err)
			return
		}

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- srv.run()
		}()

		select {
		case result := <-results:
			if result.state != state {
				// Internal protocol defense: nobody legitimate is waiting on
				// this attempt, so the abort is logged but never surfaced.
				logger.Error("CSRF state mismatch, rejecting authorization callback")
				return
			}
			b.exchangeCode(result.code, verifier, onToken)
		case err := <-serveErr:
			if err != nil {
				logger.Errorf("authorization listener failed: %v", err)
			} else {
				logger.Error("authorization listener closed before receiving a callback")
			}
		case <-time.After(b.attemptTimeout):
			logger.Warnf("authorization attempt timed out after %v", b.attemptTimeout)
		}
	}()

	return nil
}

// exchangeCode trades the authorization code plus PKCE verifier for tokens
// and delivers them through onToken.
func (b *Broker) exchangeCode(code, verifier string, onToken func(TokenResponse) error) {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, b.httpClient)

	token, err := b.oauth2Config.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", verifier),
	)
	if err != nil {
		logger.Errorf("failed to exchange authorization code: %v", err)
		return
	}

	if err := onToken(tokenResponse(token)); err != nil {
		logger.Errorf("failed to handle token: %v", err)
	}
}

// ExchangeRefreshToken performs one refresh-token grant for the session's
// stored refresh token. Single attempt; the caller decides what a failure
// means.
func (b *Broker) ExchangeRefreshToken(ctx context.Context, sess RefreshTokenHolder) (*TokenResponse, error) {
	refreshToken := sess.RefreshToken()
	if refreshToken == nil || *refreshToken == "" {
		return nil, errors.NewInvalidSessionError("no refresh token found", nil)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	token, err := b.oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: *refreshToken}).Token()
	if err != nil {
		return nil, errors.NewServerUnreachableError("failed to exchange refresh token", err)
	}

	response := tokenResponse(token)
	return &response, nil
}

func tokenResponse(token *oauth2.Token) TokenResponse {
	response := TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiresIn := time.Until(token.Expiry)
		response.ExpiresIn = &expiresIn
	}
	return response
}

// generatePKCEPair generates a PKCE code verifier and its S256 challenge
// (RFC 7636). The verifier is consumed exactly once, at code exchange.
func generatePKCEPair() (verifier, challenge string, err error) {
	verifierBytes := make([]byte, 32)
	if _, err := rand.Read(verifierBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate code verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(verifierBytes)

	hash := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(hash[:])
	return verifier, challenge, nil
}

// generateState generates the random per-attempt CSRF token.
func generateState() (string, error) {
	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(stateBytes), nil
}
