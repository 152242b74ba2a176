package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/puckdraft/go/internal/auth"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Draft   DraftConfig   `yaml:"draft"`
	Storage StorageConfig `yaml:"storage"`
	Events  EventsConfig  `yaml:"events"`
	Catalog CatalogConfig `yaml:"catalog"`
	Admin   AdminConfig   `yaml:"admin"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

type DraftConfig struct {
	TimerSec          float64 `yaml:"timer_sec"`
	TickIntervalMs    int     `yaml:"tick_interval_ms"`
	ReconnectGraceMs  int     `yaml:"reconnect_grace_ms"`
	BotPickDelayMs    int     `yaml:"bot_pick_delay_ms"`
	LobbyCountdownSec int     `yaml:"lobby_countdown_sec"`
	LobbyShuffle      bool    `yaml:"lobby_shuffle"`
	LobbyRoomID       string  `yaml:"lobby_room_id"`
}

func (d DraftConfig) TickInterval() time.Duration {
	return time.Duration(d.TickIntervalMs) * time.Millisecond
}

func (d DraftConfig) ReconnectGrace() time.Duration {
	return time.Duration(d.ReconnectGraceMs) * time.Millisecond
}

func (d DraftConfig) BotPickDelay() time.Duration {
	return time.Duration(d.BotPickDelayMs) * time.Millisecond
}

func (d DraftConfig) LobbyCountdown() time.Duration {
	return time.Duration(d.LobbyCountdownSec) * time.Second
}

type StorageConfig struct {
	Driver   string `yaml:"driver"`
	DBFile   string `yaml:"db_file"`
	MongoURI string `yaml:"mongo_uri"`
	MongoDB  string `yaml:"mongo_db"`
}

type EventsConfig struct {
	NATSURL      string `yaml:"nats_url"`
	NATSEmbedded bool   `yaml:"nats_embedded"`
}

type CatalogConfig struct {
	PlayersFile           string `yaml:"players_file"`
	EligiblePositionsFile string `yaml:"eligible_positions_file"`
	PlayersSource         string `yaml:"players_source"`
}

type AdminConfig struct {
	UserIDs []string `yaml:"user_ids"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{Port: "4000", CORSOrigin: "*"},
		Draft: DraftConfig{
			TimerSec:          30,
			TickIntervalMs:    1000,
			ReconnectGraceMs:  60000,
			BotPickDelayMs:    2000,
			LobbyCountdownSec: 10,
			LobbyRoomID:       "main-draft-room",
		},
		Storage: StorageConfig{Driver: "memory", DBFile: "puckdraft.db", MongoDB: "puckdraft"},
		Catalog: CatalogConfig{
			PlayersFile:           "data/players.json",
			EligiblePositionsFile: "data/eligible_positions.json",
			PlayersSource:         "file",
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// loadConfig reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&config)
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyEnv(c *Config) {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.CORSOrigin = getEnv("CORS_ORIGIN", c.Server.CORSOrigin)

	c.Draft.TimerSec = getEnvAsFloat("TIMER_SEC", c.Draft.TimerSec)
	c.Draft.TickIntervalMs = getEnvAsInt("TICK_INTERVAL_MS", c.Draft.TickIntervalMs)
	c.Draft.ReconnectGraceMs = getEnvAsInt("RECONNECT_GRACE_MS", c.Draft.ReconnectGraceMs)
	c.Draft.BotPickDelayMs = getEnvAsInt("BOT_PICK_DELAY_MS", c.Draft.BotPickDelayMs)
	c.Draft.LobbyCountdownSec = getEnvAsInt("LOBBY_COUNTDOWN_SEC", c.Draft.LobbyCountdownSec)
	c.Draft.LobbyShuffle = getEnvAsBool("LOBBY_SHUFFLE", c.Draft.LobbyShuffle)
	c.Draft.LobbyRoomID = getEnv("LOBBY_ROOM_ID", c.Draft.LobbyRoomID)

	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.DBFile = getEnv("DB_FILE", c.Storage.DBFile)
	c.Storage.MongoURI = getEnv("MONGO_URI", c.Storage.MongoURI)
	c.Storage.MongoDB = getEnv("MONGO_DB", c.Storage.MongoDB)

	c.Events.NATSURL = getEnv("NATS_URL", c.Events.NATSURL)
	c.Events.NATSEmbedded = getEnvAsBool("NATS_EMBEDDED", c.Events.NATSEmbedded)

	c.Catalog.PlayersFile = getEnv("PLAYERS_FILE", c.Catalog.PlayersFile)
	c.Catalog.EligiblePositionsFile = getEnv("ELIGIBLE_POSITIONS_FILE", c.Catalog.EligiblePositionsFile)
	c.Catalog.PlayersSource = getEnv("PLAYERS_SOURCE", c.Catalog.PlayersSource)

	if raw := os.Getenv("ADMIN_USER_IDS"); raw != "" {
		c.Admin.UserIDs = auth.ParseAdminIDs(raw)
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres", "mongo":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	switch c.Catalog.PlayersSource {
	case "file", "postgres":
	default:
		return fmt.Errorf("unknown PLAYERS_SOURCE %q", c.Catalog.PlayersSource)
	}
	if c.Draft.TimerSec <= 0 {
		return fmt.Errorf("TIMER_SEC must be positive, got %v", c.Draft.TimerSec)
	}
	if c.Draft.TickIntervalMs <= 0 {
		return fmt.Errorf("TICK_INTERVAL_MS must be positive, got %d", c.Draft.TickIntervalMs)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
