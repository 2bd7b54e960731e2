package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDecodeDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Decode(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Poller.MaxAttempts != 120 {
		t.Fatalf("max_attempts = %d, want 120", cfg.Poller.MaxAttempts)
	}
	if got := cfg.Poller.PollInterval(); got != 5*time.Second {
		t.Fatalf("interval = %v, want 5s", got)
	}
	if got := cfg.Poller.Budget(); got != 10*time.Minute {
		t.Fatalf("budget = %v, want 10m", got)
	}
	if cfg.Provider.VideoModel != "kling-v2-5-turbo" {
		t.Fatalf("video_model = %q", cfg.Provider.VideoModel)
	}
	if !cfg.Remux.Enabled || cfg.Remux.FFmpegPath != "ffmpeg" {
		t.Fatalf("unexpected remux defaults: %+v", cfg.Remux)
	}
	if cfg.Storage.PublicBaseURL != "http://localhost:5000/files" {
		t.Fatalf("public_base_url = %q", cfg.Storage.PublicBaseURL)
	}
}

func TestPublicBaseURLFollowsPort(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("server.port", "8081")

	cfg, err := Decode(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Storage.PublicBaseURL != "http://localhost:8081/files" {
		t.Fatalf("public_base_url = %q, want port 8081", cfg.Storage.PublicBaseURL)
	}

	v.Set("storage.public_base_url", "https://cdn.example.com/files")
	cfg, err = Decode(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Storage.PublicBaseURL != "https://cdn.example.com/files" {
		t.Fatalf("explicit public_base_url overridden: %q", cfg.Storage.PublicBaseURL)
	}
}

func TestDecodeFromYAML(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	yaml := `
server:
  port: "8081"
poller:
  max_attempts: 3
  interval_ms: 10
storage:
  root: /tmp/samco
`
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("read config: %v", err)
	}

	cfg, err := Decode(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Server.Port != "8081" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
	if cfg.Poller.MaxAttempts != 3 || cfg.Poller.PollInterval() != 10*time.Millisecond {
		t.Fatalf("poller = %+v", cfg.Poller)
	}
	if cfg.Storage.Root != "/tmp/samco" {
		t.Fatalf("storage root = %q", cfg.Storage.Root)
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{name: "empty port", key: "server.port", val: ""},
		{name: "zero attempts", key: "poller.max_attempts", val: 0},
		{name: "zero interval", key: "poller.interval_ms", val: 0},
		{name: "negative retries", key: "poller.transport_retries", val: -1},
		{name: "empty base url", key: "provider.base_url", val: " "},
		{name: "zero retention", key: "janitor.retention_days", val: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.Set(tc.key, tc.val)
			if _, err := Decode(v); err == nil {
				t.Fatalf("expected validation error for %s", tc.key)
			}
		})
	}
}
