// SPDX-FileCopyrightText: Copyright 2026 Popcorn Time, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/popcorntime/session/pkg/errors"
	"github.com/popcorntime/session/pkg/logger"
)

// lockTimeout is the maximum time to wait for the settings file lock
const lockTimeout = 1 * time.Second

// Store is the durable, file-backed record of session and app settings.
//
// It owns an in-memory snapshot guarded for concurrent access; every mutator
// rewrites the whole record back to disk. External edits to the file are
// picked up by the background watcher (see WatchInBackground) which
// republishes the snapshot.
type Store struct {
	path string

	mu       sync.RWMutex
	snapshot Record
}

// NewStore loads the settings file under configDir and returns a store for
// it. If configDir is empty the xdg config home is used. A missing file
// yields the all-defaults record.
func NewStore(configDir string) (*Store, error) {
	var settingsPath string
	var err error

	if configDir == "" {
		settingsPath, err = getSettingsPath()
		if err != nil {
			return nil, fmt.Errorf("unable to fetch settings path: %w", err)
		}
	} else {
		settingsPath = filepath.Join(configDir, SettingsFile)
	}

	record, err := Load(settingsPath)
	if err != nil {
		return nil, errors.NewStorageFailureError("failed to load settings", err)
	}

	return &Store{
		path:     settingsPath,
		snapshot: record,
	}, nil
}

// Path returns the location of the settings file.
func (s *Store) Path() string {
	return s.path
}

// Get returns a copy of the current in-memory snapshot.
func (s *Store) Get() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.clone()
}

// UpdateOnboardingComplete sets the onboarding flag and persists the record.
func (s *Store) UpdateOnboardingComplete(ctx context.Context, complete bool) error {
	s.mu.Lock()
	s.snapshot.OnboardingComplete = complete
	s.mu.Unlock()

	return s.save(ctx)
}

// UpdateEnableAnalytics sets the analytics flag and persists the record.
func (s *Store) UpdateEnableAnalytics(ctx context.Context, allow bool) error {
	s.mu.Lock()
	s.snapshot.EnableAnalytics = allow
	s.mu.Unlock()

	return s.save(ctx)
}

// UpdateAccessToken stores a freshly acquired access token and persists the
// record. refreshToken and expiresIn are partial updates: a nil value leaves
// the currently stored value unchanged.
func (s *Store) UpdateAccessToken(ctx context.Context, accessToken string, refreshToken *string, expiresIn *time.Duration) error {
	s.mu.Lock()
	s.snapshot.AccessToken = &accessToken
	if refreshToken != nil {
		s.snapshot.RefreshToken = refreshToken
	}
	if expiresIn != nil {
		expiresAt := NewTimestamp(time.Now().Add(*expiresIn))
		s.snapshot.ExpiresAt = &expiresAt
	}
	s.mu.Unlock()

	return s.save(ctx)
}

// DeleteAccessToken clears the token triple and persists the record.
func (s *Store) DeleteAccessToken(ctx context.Context) error {
	s.mu.Lock()
	s.snapshot.AccessToken = nil
	s.snapshot.RefreshToken = nil
	s.snapshot.ExpiresAt = nil
	s.mu.Unlock()

	return s.save(ctx)
}

// save writes the current snapshot to disk under the cross-process file lock.
func (s *Store) save(ctx context.Context) error {
	// Use a separate lock file for cross-platform compatibility
	lockPath := s.path + ".lock"
	fileLock := flock.New(lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return errors.NewStorageFailureError("failed to acquire settings lock", err)
	}
	if !locked {
		return errors.NewStorageFailureError(
			fmt.Sprintf("failed to acquire settings lock: timeout after %v", lockTimeout), nil)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			logger.Warnf("failed to release settings lock: %v", err)
		}
	}()

	s.mu.RLock()
	record := s.snapshot.clone()
	s.mu.RUnlock()

	logger.Debugf("saving settings to %s", s.path)
	if err := record.save(s.path); err != nil {
		return errors.NewStorageFailureError("failed to save settings", err)
	}
	return nil
}

// replaceSnapshot swaps the in-memory snapshot wholesale. Used by the
// watcher after an external file edit.
func (s *Store) replaceSnapshot(record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = record
}

// clone returns a deep copy so callers can't mutate the snapshot through
// the optional fields.
func (r Record) clone() Record {
	out := r
	if r.OAuthApp != nil {
		app := OAuthApp{}
		if r.OAuthApp.OAuthClientID != nil {
			id := *r.OAuthApp.OAuthClientID
			app.OAuthClientID = &id
		}
		out.OAuthApp = &app
	}
	if r.AccessToken != nil {
		v := *r.AccessToken
		out.AccessToken = &v
	}
	if r.ExpiresAt != nil {
		v := *r.ExpiresAt
		out.ExpiresAt = &v
	}
	if r.RefreshToken != nil {
		v := *r.RefreshToken
		out.RefreshToken = &v
	}
	return out
}
