package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("RIDER_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIURL != "http://localhost:3105" {
		t.Errorf("APIURL = %q, want default", cfg.APIURL)
	}
	if cfg.WSURL != "ws://localhost:3105/ws" {
		t.Errorf("WSURL = %q, want ws://localhost:3105/ws", cfg.WSURL)
	}
	if cfg.Home != filepath.Join(home, ".rider") {
		t.Errorf("Home = %q, want ~/.rider", cfg.Home)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", cfg.HTTPTimeout)
	}
	if cfg.ReconnectMin != time.Second || cfg.ReconnectMax != 30*time.Second {
		t.Errorf("reconnect = %v..%v, want 1s..30s", cfg.ReconnectMin, cfg.ReconnectMax)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.SignupURL != "http://localhost:3105/signup" {
		t.Errorf("SignupURL = %q", cfg.SignupURL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RIDER_API_URL", "https://api.example.com/")
	t.Setenv("RIDER_HOME", dir)
	t.Setenv("RIDER_HTTP_TIMEOUT", "5s")
	t.Setenv("RIDER_RECONNECT_MIN", "250ms")
	t.Setenv("RIDER_RECONNECT_MAX", "4s")
	t.Setenv("RIDER_PUSH_TOKEN", "push-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIURL != "https://api.example.com" {
		t.Errorf("APIURL = %q, want trailing slash trimmed", cfg.APIURL)
	}
	if cfg.WSURL != "wss://api.example.com/ws" {
		t.Errorf("WSURL = %q, want wss derived", cfg.WSURL)
	}
	if cfg.Home != dir {
		t.Errorf("Home = %q, want %q", cfg.Home, dir)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("HTTPTimeout = %v, want 5s", cfg.HTTPTimeout)
	}
	if cfg.ReconnectMin != 250*time.Millisecond || cfg.ReconnectMax != 4*time.Second {
		t.Errorf("reconnect = %v..%v", cfg.ReconnectMin, cfg.ReconnectMax)
	}
	if cfg.PushToken != "push-1" {
		t.Errorf("PushToken = %q, want push-1", cfg.PushToken)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad scheme", map[string]string{"RIDER_API_URL": "ftp://host"}, "scheme"},
		{"backoff inverted", map[string]string{"RIDER_RECONNECT_MIN": "10s", "RIDER_RECONNECT_MAX": "1s"}, "RECONNECT_MIN"},
		{"zero timeout", map[string]string{"RIDER_HTTP_TIMEOUT": "0s"}, "HTTP_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RIDER_HOME", t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mentioning %q", err, tt.want)
			}
		})
	}
}

func TestDeriveWSURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://localhost:3105", "ws://localhost:3105/ws"},
		{"https://api.example.com/v1", "wss://api.example.com/v1/ws"},
	}
	for _, tt := range tests {
		got, err := DeriveWSURL(tt.in)
		if err != nil {
			t.Fatalf("DeriveWSURL(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("DeriveWSURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
