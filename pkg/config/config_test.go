package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	t.Parallel()

	record, err := Load(filepath.Join(t.TempDir(), SettingsFile))
	require.NoError(t, err)

	assert.False(t, record.OnboardingComplete)
	assert.False(t, record.EnableAnalytics)
	assert.Nil(t, record.OAuthApp)
	assert.Nil(t, record.AccessToken)
	assert.Nil(t, record.ExpiresAt)
	assert.Nil(t, record.RefreshToken)
}

func TestLoadOmittedFieldsDefaultPerField(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), SettingsFile)
	require.NoError(t, os.WriteFile(path, []byte("onboardingComplete = true\n"), 0600))

	record, err := Load(path)
	require.NoError(t, err)

	assert.True(t, record.OnboardingComplete)
	assert.False(t, record.EnableAnalytics)
	assert.Nil(t, record.AccessToken)
}

func TestLoadMalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), SettingsFile)
	require.NoError(t, os.WriteFile(path, []byte("onboardingComplete = {"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestExpiresAtSerializedAsRFC3339String(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), SettingsFile)
	expiresAt := NewTimestamp(time.Date(2026, 8, 29, 12, 30, 0, 0, time.UTC))
	token := "abc"
	record := Record{
		AccessToken: &token,
		ExpiresAt:   &expiresAt,
	}
	require.NoError(t, record.save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `expiresAt = '2026-08-29T12:30:00Z'`)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, reloaded.ExpiresAt)
	assert.True(t, reloaded.ExpiresAt.Equal(&expiresAt))
}

func TestOAuthAppRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), SettingsFile)
	clientID := "desktop-client"
	record := Record{
		OAuthApp: &OAuthApp{OAuthClientID: &clientID},
	}
	require.NoError(t, record.save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[oauthApp]")
	assert.Contains(t, string(data), "oauthClientId = 'desktop-client'")

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, reloaded.OAuthApp)
	require.NotNil(t, reloaded.OAuthApp.OAuthClientID)
	assert.Equal(t, clientID, *reloaded.OAuthApp.OAuthClientID)
}

func TestTimestampEqual(t *testing.T) {
	t.Parallel()

	now := NewTimestamp(time.Now())
	same := NewTimestamp(now.Time)
	other := NewTimestamp(now.Add(time.Hour))

	assert.True(t, now.Equal(&same))
	assert.False(t, now.Equal(&other))
	assert.False(t, now.Equal(nil))
	var nilTS *Timestamp
	assert.True(t, nilTS.Equal(nil))
}
