// SPDX-FileCopyrightText: Copyright 2026 Popcorn Time, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package service composes the authorization broker, the persisted store,
// and the live session record into the operations the rest of the
// application calls: validate, authorize, logout, settings.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/popcorntime/session/pkg/auth/jwks"
	"github.com/popcorntime/session/pkg/auth/oauth"
	"github.com/popcorntime/session/pkg/auth/session"
	"github.com/popcorntime/session/pkg/config"
	"github.com/popcorntime/session/pkg/errors"
	"github.com/popcorntime/session/pkg/logger"
)

// Default provider parameters for the production desktop client.
const (
	DefaultIssuer   = "https://auth.popcorntime.app"
	DefaultClientID = "popcorntime-desktop"
)

// State is the session lifecycle as observed by the shell.
type State string

// Session states
const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
	StateRefreshing      State = "refreshing"
)

// Settings is the app-settings snapshot published to the shell.
type Settings struct {
	Onboarded       bool `json:"onboarded"`
	EnableAnalytics bool `json:"enableAnalytics"`
}

// Config contains configuration for the authorization service.
type Config struct {
	// ConfigDir overrides the settings directory (empty means xdg)
	ConfigDir string

	// ClientID overrides the OAuth client ID
	ClientID string

	// Issuer overrides the identity provider base URL
	Issuer string

	// Broker overrides the full broker configuration (tests)
	Broker *oauth.Config
}

// Service is the top-level session orchestrator. One instance serves the
// whole process; the design is single active session.
type Service struct {
	broker *oauth.Broker
	store  *config.Store

	// mu guards the live session mirror and the observable state. It is
	// held across a validate/refresh cycle on purpose: background
	// propagation must not interleave with the retry protocol.
	mu      sync.RWMutex
	session *session.Session
	state   State
}

// New builds the service: loads the persisted store, creates the broker and
// key-set client, and seeds the live session from the store snapshot.
func New(cfg Config) (*Service, error) {
	store, err := config.NewStore(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}
	record := store.Get()

	clientID := cfg.ClientID
	if clientID == "" {
		// A provisioned client ID in the settings file wins over the
		// compiled-in default.
		if record.OAuthApp != nil && record.OAuthApp.OAuthClientID != nil {
			clientID = *record.OAuthApp.OAuthClientID
		} else {
			clientID = DefaultClientID
		}
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}

	brokerCfg := cfg.Broker
	if brokerCfg == nil {
		brokerCfg = &oauth.Config{ClientID: clientID, Issuer: issuer}
	}
	if brokerCfg.Issuer != "" {
		issuer = brokerCfg.Issuer
	}

	broker, err := oauth.NewBroker(brokerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization broker: %w", err)
	}

	jwksURL := strings.TrimSuffix(issuer, "/") + "/.well-known/jwks.json"
	sess := session.New(jwks.NewClient(jwksURL))

	svc := &Service{
		broker:  broker,
		store:   store,
		session: sess,
		state:   StateUnauthenticated,
	}
	svc.applyRecord(record)
	return svc, nil
}

// Store exposes the persisted store, e.g. for the shell's config path.
func (s *Service) Store() *config.Store {
	return s.store
}

// State returns the session lifecycle state as currently observable.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// An authorize attempt that ended without a token leaves no
	// notification behind; derive the settled state from the broker flag.
	if s.state == StateAuthenticating && !s.broker.Running() {
		if s.session.AccessToken() != nil {
			return StateAuthenticated
		}
		return StateUnauthenticated
	}
	return s.state
}

// WatchConfigInBackground watches the settings file and keeps both the live
// session and the shell informed:
//   - sends the initial settings record on start
//   - sends the updated record on every external write
//
// Each change also updates the service's session mirror, without blocking
// the watcher on the session lock.
func (s *Service) WatchConfigInBackground(sendEvent func(config.Record) error) error {
	return s.store.WatchInBackground(func(record config.Record) {
		// Isolated update so a held session lock can't stall the watcher.
		go s.applyRecord(record)

		if err := sendEvent(record); err != nil {
			logger.Errorf("failed to publish settings update: %v", err)
		}
	})
}

// applyRecord propagates a store snapshot into the live session mirror.
// The session setters no-op on equal values, so replaying the same record
// (eager update plus watcher event) is safe.
func (s *Service) applyRecord(record config.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.WithAccessToken(record.AccessToken)
	s.session.WithRefreshToken(record.RefreshToken)
	if record.ExpiresAt != nil {
		expiresAt := record.ExpiresAt.Time
		s.session.WithExpiresAt(&expiresAt)
	} else {
		s.session.WithExpiresAt(nil)
	}

	// External edits move the settled states; in-flight attempts keep their
	// transitional state until they finish.
	switch s.state {
	case StateAuthenticating, StateRefreshing:
	default:
		if record.AccessToken == nil {
			s.state = StateUnauthenticated
		} else {
			s.state = StateAuthenticated
		}
	}
}

// AuthorizeInBackground starts a browser authorization attempt. onReady is
// invoked with the authorization URL (again, with the same URL, if an
// attempt is already in flight). On success the tokens are persisted to the
// store and mirrored into the live session.
func (s *Service) AuthorizeInBackground(onReady func(oauth.Event) error) error {
	s.mu.Lock()
	s.state = StateAuthenticating
	s.mu.Unlock()

	return s.broker.AuthorizeInBackground(onReady, func(token oauth.TokenResponse) error {
		if err := s.store.UpdateAccessToken(context.Background(),
			token.AccessToken, refreshPtr(token), token.ExpiresIn); err != nil {
			logger.Errorf("failed to update access token: %v", err)
		}

		// Eager mirror update; the watcher replays the same values later.
		s.mu.Lock()
		accessToken := token.AccessToken
		s.session.WithAccessToken(&accessToken)
		s.session.WithRefreshToken(refreshPtr(token))
		if token.ExpiresIn != nil {
			expiresAt := time.Now().Add(*token.ExpiresIn)
			s.session.WithExpiresAt(&expiresAt)
		}
		s.state = StateAuthenticated
		s.mu.Unlock()

		return nil
	})
}

// Validate checks the current session and transparently refreshes it once.
//
//  1. Validate the live session; success is returned as-is.
//  2. On an invalid session, exchange the stored refresh token.
//  3. On refresh success, persist the new tokens (the watcher will replay
//     them), eagerly set the new access token on the live session so the
//     retry does not race the background propagation, and
//  4. re-validate exactly once. A token that is invalid immediately after a
//     successful refresh is a hard failure, not a retry.
func (s *Service) Validate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.session.Validate(ctx)
	if err == nil {
		s.state = StateAuthenticated
		return nil
	}
	if !errors.IsInvalidSession(err) {
		return err
	}

	logger.Info("session invalid; attempting token refresh")
	s.state = StateRefreshing

	response, refreshErr := s.broker.ExchangeRefreshToken(ctx, s.session)
	if refreshErr != nil {
		s.state = StateUnauthenticated
		return errors.NewInvalidSessionError("failed to refresh session", refreshErr)
	}

	// Update storage; the session mirror is also updated in the background
	// by the watcher.
	if err := s.store.UpdateAccessToken(ctx,
		response.AccessToken, refreshPtr(*response), response.ExpiresIn); err != nil {
		logger.Errorf("failed to update access token: %v", err)
	}

	// Make sure the access token is updated now; we don't want to rely on
	// the watcher to update the session before the retry below.
	accessToken := response.AccessToken
	s.session.WithAccessToken(&accessToken)

	if err := s.session.Validate(ctx); err != nil {
		s.state = StateUnauthenticated
		return err
	}
	s.state = StateAuthenticated
	return nil
}

// Logout clears the persisted tokens and the live session.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.DeleteAccessToken(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.session.WithAccessToken(nil)
	s.session.WithRefreshToken(nil)
	s.session.WithExpiresAt(nil)
	s.state = StateUnauthenticated
	s.mu.Unlock()
	return nil
}

// Settings returns the current app-settings snapshot.
func (s *Service) Settings() Settings {
	record := s.store.Get()
	return Settings{
		Onboarded:       record.OnboardingComplete,
		EnableAnalytics: record.EnableAnalytics,
	}
}

// SetOnboarded persists the onboarding flag.
func (s *Service) SetOnboarded(ctx context.Context, onboarded bool) error {
	return s.store.UpdateOnboardingComplete(ctx, onboarded)
}

// IsAnalyticsEnabled reports whether the user opted into analytics.
func (s *Service) IsAnalyticsEnabled() bool {
	return s.store.Get().EnableAnalytics
}

// SetEnableAnalytics persists the analytics opt-in flag.
func (s *Service) SetEnableAnalytics(ctx context.Context, allow bool) error {
	return s.store.UpdateEnableAnalytics(ctx, allow)
}

// refreshPtr converts a token response's refresh token into the store's
// partial-update form: an absent refresh token leaves the stored one alone.
func refreshPtr(token oauth.TokenResponse) *string {
	if token.RefreshToken == "" {
		return nil
	}
	refresh := token.RefreshToken
	return &refresh
}
