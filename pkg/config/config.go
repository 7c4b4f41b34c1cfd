package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	API   APIConfig   `json:"api"`
	Chat  ChatConfig  `json:"chat"`
	State StateConfig `json:"state"`
}

type APIConfig struct {
	// BaseURL is the REST root, including the /api suffix.
	BaseURL        string `env:"AGRICHAT_API_BASE_URL"        json:"base_url"`
	TimeoutSeconds int    `env:"AGRICHAT_API_TIMEOUT_SECONDS" json:"timeout_seconds"`
}

type ChatConfig struct {
	// SocketURL overrides the derived websocket endpoint. When empty the
	// endpoint is the API base with the /api suffix stripped and the scheme
	// switched to ws/wss.
	SocketURL              string `env:"AGRICHAT_CHAT_SOCKET_URL"                json:"socket_url,omitempty"`
	ReconnectAttempts      int    `env:"AGRICHAT_CHAT_RECONNECT_ATTEMPTS"        json:"reconnect_attempts"`
	ReconnectDelaySeconds  int    `env:"AGRICHAT_CHAT_RECONNECT_DELAY_SECONDS"   json:"reconnect_delay_seconds"`
	EchoMatchWindowSeconds int    `env:"AGRICHAT_CHAT_ECHO_MATCH_WINDOW_SECONDS" json:"echo_match_window_seconds"`
}

type StateConfig struct {
	// Dir holds persisted credentials and cached state.
	Dir string `env:"AGRICHAT_STATE_DIR" json:"dir"`
}

func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://127.0.0.1:5001/api",
			TimeoutSeconds: 15,
		},
		Chat: ChatConfig{
			ReconnectAttempts:      5,
			ReconnectDelaySeconds:  1,
			EchoMatchWindowSeconds: 120,
		},
		State: StateConfig{
			Dir: "~/.agrichat",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing config is fine; env overrides still apply.
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if _, err := url.Parse(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url is invalid: %w", err)
	}
	if c.Chat.ReconnectAttempts < 0 {
		return fmt.Errorf("chat.reconnect_attempts must not be negative")
	}
	return nil
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Chat.ReconnectDelaySeconds) * time.Second
}

func (c *Config) EchoMatchWindow() time.Duration {
	return time.Duration(c.Chat.EchoMatchWindowSeconds) * time.Second
}

// SocketEndpoint returns the websocket URL for the chat service. The
// backend serves the socket at the service root, so the /api suffix of the
// REST base is stripped.
func (c *Config) SocketEndpoint() (string, error) {
	if c.Chat.SocketURL != "" {
		return c.Chat.SocketURL, nil
	}

	u, err := url.Parse(strings.TrimSuffix(c.API.BaseURL, "/api"))
	if err != nil {
		return "", fmt.Errorf("deriving socket endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}

// StateDir returns the state directory with ~ expanded.
func (c *Config) StateDir() string {
	return expandHome(c.State.Dir)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
