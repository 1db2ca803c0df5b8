// SPDX-FileCopyrightText: Copyright 2026 Popcorn Time, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config contains the persisted session/settings record and the
// logic required to load, update, and watch it.
//
// The record lives in a single TOML file (settings.toml under the xdg config
// home). The whole record is rewritten on every mutation; the file is also
// the unit of change detection for the background watcher.
package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

// SettingsFile is the name of the settings file inside the config directory.
const SettingsFile = "settings.toml"

// defaultPathGenerator generates the default settings path using xdg
var defaultPathGenerator = func() (string, error) {
	return xdg.ConfigFile("popcorntime/" + SettingsFile)
}

// getSettingsPath is the current path generator, can be replaced in tests
var getSettingsPath = defaultPathGenerator

// Timestamp stores a time.Time as an RFC3339 string in the settings file.
// TOML has a native datetime type, but the file is shared with the frontend
// tooling which expects a plain string.
type Timestamp struct {
	time.Time
}

// NewTimestamp returns a Timestamp for the given time, truncated to seconds.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Second)}
}

// MarshalText implements encoding.TextMarshaler.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.UTC().Format(time.RFC3339)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Timestamp) UnmarshalText(data []byte) error {
	parsed, err := time.Parse(time.RFC3339, string(data))
	if err != nil {
		return fmt.Errorf("invalid expiresAt timestamp: %w", err)
	}
	t.Time = parsed
	return nil
}

// Equal reports whether two optional timestamps denote the same instant.
func (t *Timestamp) Equal(other *Timestamp) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Time.Equal(other.Time)
}

// OAuthApp holds the OAuth application settings provisioned for this client.
type OAuthApp struct {
	OAuthClientID *string `toml:"oauthClientId,omitempty"`
}

// Record is the persisted session/settings record.
//
// Pointer fields are optional: absent in the file means "unset", and
// mutators leave nil inputs unchanged (partial updates).
type Record struct {
	OnboardingComplete bool       `toml:"onboardingComplete"`
	EnableAnalytics    bool       `toml:"enableAnalytics"`
	OAuthApp           *OAuthApp  `toml:"oauthApp,omitempty"`
	AccessToken        *string    `toml:"accessToken,omitempty"`
	ExpiresAt          *Timestamp `toml:"expiresAt,omitempty"`
	RefreshToken       *string    `toml:"refreshToken,omitempty"`
}

// Load deserializes the settings file at the given path.
// A missing file yields the all-defaults record, never an error.
func Load(settingsPath string) (Record, error) {
	var record Record

	settingsPath = path.Clean(settingsPath)
	// #nosec G304: the path is derived from the xdg config home.
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return record, nil
		}
		return record, fmt.Errorf("unable to read settings file %s: %w", settingsPath, err)
	}

	if err := toml.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("failed to parse settings file toml: %w", err)
	}
	return record, nil
}

// save serializes the record and writes it to the given path.
func (r Record) save(settingsPath string) error {
	data, err := toml.Marshal(r)
	if err != nil {
		return fmt.Errorf("error serializing settings file: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0600); err != nil {
		return fmt.Errorf("error writing settings file: %w", err)
	}
	return nil
}
