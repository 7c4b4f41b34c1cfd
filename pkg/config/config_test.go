package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.API.BaseURL != "http://127.0.0.1:5001/api" {
		t.Errorf("unexpected default base url %q", cfg.API.BaseURL)
	}
	if cfg.Chat.ReconnectAttempts != 5 {
		t.Errorf("unexpected default reconnect attempts %d", cfg.Chat.ReconnectAttempts)
	}
	if cfg.EchoMatchWindow() != 2*time.Minute {
		t.Errorf("unexpected default echo match window %s", cfg.EchoMatchWindow())
	}
}

func TestConfig_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://chat.agrigrow.example/api"
	cfg.Chat.ReconnectAttempts = 3
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.API.BaseURL != cfg.API.BaseURL {
		t.Errorf("expected %q, got %q", cfg.API.BaseURL, loaded.API.BaseURL)
	}
	if loaded.Chat.ReconnectAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", loaded.Chat.ReconnectAttempts)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("AGRICHAT_API_BASE_URL", "http://staging.agrigrow.example/api")
	t.Setenv("AGRICHAT_CHAT_RECONNECT_DELAY_SECONDS", "2")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.API.BaseURL != "http://staging.agrigrow.example/api" {
		t.Errorf("env override not applied, got %q", cfg.API.BaseURL)
	}
	if cfg.ReconnectDelay() != 2*time.Second {
		t.Errorf("expected 2s delay, got %s", cfg.ReconnectDelay())
	}
}

func TestConfig_SocketEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		override string
		want     string
	}{
		{"http strips api suffix", "http://127.0.0.1:5001/api", "", "ws://127.0.0.1:5001"},
		{"https becomes wss", "https://chat.agrigrow.example/api", "", "wss://chat.agrigrow.example"},
		{"explicit override wins", "http://127.0.0.1:5001/api", "ws://other.example/stream", "ws://other.example/stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.API.BaseURL = tt.baseURL
			cfg.Chat.SocketURL = tt.override

			got, err := cfg.SocketEndpoint()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}

	cfg.API.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty base url")
	}

	cfg = DefaultConfig()
	cfg.Chat.ReconnectAttempts = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative reconnect attempts")
	}
}
