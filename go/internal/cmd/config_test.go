package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Equal(t, 30.0, cfg.Draft.TimerSec)
	assert.Equal(t, time.Second, cfg.Draft.TickInterval())
	assert.Equal(t, time.Minute, cfg.Draft.ReconnectGrace())
	assert.Equal(t, 2*time.Second, cfg.Draft.BotPickDelay())
	assert.Equal(t, 10*time.Second, cfg.Draft.LobbyCountdown())
	assert.Equal(t, "main-draft-room", cfg.Draft.LobbyRoomID)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "file", cfg.Catalog.PlayersSource)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
draft:
  timer_sec: 45
  lobby_shuffle: true
storage:
  driver: sqlite
  db_file: /tmp/draft.db
admin:
  user_ids: [alice]
`)
	t.Setenv("TIMER_SEC", "12.5")
	t.Setenv("ADMIN_USER_IDS", "bob, carol")
	t.Setenv("NATS_EMBEDDED", "true")

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 12.5, cfg.Draft.TimerSec)
	assert.True(t, cfg.Draft.LobbyShuffle)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/draft.db", cfg.Storage.DBFile)
	assert.Equal(t, []string{"bob", "carol"}, cfg.Admin.UserIDs)
	assert.True(t, cfg.Events.NATSEmbedded)
	// Fields the file leaves out keep their defaults.
	assert.Equal(t, 1000, cfg.Draft.TickIntervalMs)
}

func TestLoadConfigIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("TICK_INTERVAL_MS", "soon")
	t.Setenv("LOBBY_SHUFFLE", "maybe")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Draft.TickIntervalMs)
	assert.False(t, cfg.Draft.LobbyShuffle)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "unknown storage driver", env: map[string]string{"STORAGE_DRIVER": "redis"}},
		{name: "unknown players source", env: map[string]string{"PLAYERS_SOURCE": "api"}},
		{name: "zero timer", body: "draft:\n  timer_sec: 0\n"},
		{name: "negative tick", env: map[string]string{"TICK_INTERVAL_MS": "-5"}},
		{name: "malformed yaml", body: "draft: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "missing.yaml")
			if tt.body != "" {
				path = writeConfig(t, tt.body)
			}
			_, err := loadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, allowedOrigins(""))
	assert.Equal(t, []string{"*"}, allowedOrigins(" , "))
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, allowedOrigins("http://a.test, http://b.test"))
}
