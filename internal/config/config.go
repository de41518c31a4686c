package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Defaults applied when the config file omits a value.
const (
	DefaultServerURL       = "http://localhost:8080"
	DefaultWebSocketURL    = "ws://localhost:8080/ws"
	DefaultBadgePollSecs   = 30
	DefaultNotifyPollSecs  = 30
	DefaultReconnectSecs   = 5
	DefaultHeartbeatSecs   = 4
	DefaultHistoryPageSize = 200
)

// Config represents the global ~/.glowchat/config.toml.
type Config struct {
	ServerURL       string `toml:"server_url"`
	WebSocketURL    string `toml:"websocket_url"`
	DefaultAccount  string `toml:"default_account"`
	BadgePollSecs   int    `toml:"badge_poll_seconds"`
	NotifyPollSecs  int    `toml:"notify_poll_seconds"`
	ReconnectSecs   int    `toml:"reconnect_seconds"`
	HeartbeatSecs   int    `toml:"heartbeat_seconds"`
	HistoryPageSize int    `toml:"history_page_size"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault reads config from the given path, falling back to defaults
// when the file does not exist.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
		cfg.applyDefaults()
	}
	return cfg
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) applyDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.WebSocketURL == "" {
		c.WebSocketURL = DefaultWebSocketURL
	}
	if c.BadgePollSecs <= 0 {
		c.BadgePollSecs = DefaultBadgePollSecs
	}
	if c.NotifyPollSecs <= 0 {
		c.NotifyPollSecs = DefaultNotifyPollSecs
	}
	if c.ReconnectSecs <= 0 {
		c.ReconnectSecs = DefaultReconnectSecs
	}
	if c.HeartbeatSecs <= 0 {
		c.HeartbeatSecs = DefaultHeartbeatSecs
	}
	if c.HistoryPageSize <= 0 {
		c.HistoryPageSize = DefaultHistoryPageSize
	}
}
