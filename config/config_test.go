package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	raw := "superusers:\n  - 123456\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 8071 {
		t.Fatalf("http port = %d, want 8071", cfg.HTTPPort)
	}
	if cfg.WebsocketURL != "ws://127.0.0.1:13001" {
		t.Fatalf("websocket url = %q", cfg.WebsocketURL)
	}
	if cfg.UserLimits != 5 {
		t.Fatalf("user limits = %d, want 5", cfg.UserLimits)
	}
	if cfg.JM.Proxy != "system" || cfg.JM.Threads != 10 {
		t.Fatalf("jm defaults = %q/%d", cfg.JM.Proxy, cfg.JM.Threads)
	}
	if cfg.CardNickname != "jm助手" {
		t.Fatalf("card nickname = %q", cfg.CardNickname)
	}
	if cfg.CardUserID != 123456 {
		t.Fatalf("card user id = %d, want first superuser", cfg.CardUserID)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadSeedsFromExample(t *testing.T) {
	dir := t.TempDir()
	example := filepath.Join(dir, "config.example.yml")
	if err := os.WriteFile(example, []byte("user_limits: 3\n"), 0o644); err != nil {
		t.Fatalf("write example: %v", err)
	}

	path := filepath.Join(dir, "config.yml")
	cfg, err := Load(path, example)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UserLimits != 3 {
		t.Fatalf("user limits = %d, want 3 from example", cfg.UserLimits)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("config file should be created from the example")
	}
}

func TestLoadMissingEverything(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "config.yml"), filepath.Join(dir, "nope.yml")); err == nil {
		t.Fatal("expected error when both config and example are missing")
	}
}

func TestIsSuperuser(t *testing.T) {
	cfg := &Config{Superusers: []int64{1, 2}}
	if !cfg.IsSuperuser(1) || !cfg.IsSuperuser(2) {
		t.Fatal("configured superusers should match")
	}
	if cfg.IsSuperuser(3) {
		t.Fatal("unknown user must not be a superuser")
	}
}
