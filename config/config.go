package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Superusers []int64 `yaml:"superusers"`

	HTTPHost       string `yaml:"http_host"`
	HTTPPort       int    `yaml:"http_port"`
	WebsocketURL   string `yaml:"websocket_url"`
	WebsocketToken string `yaml:"websocket_token"`

	DataFile string `yaml:"data_file"`
	CacheDir string `yaml:"cache_dir"`

	CardUserID   int64  `yaml:"card_user_id"`
	CardNickname string `yaml:"card_nickname"`

	Log LogConfig `yaml:"log"`
	JM  JMConfig  `yaml:"jmcomic"`

	AllowGroups bool `yaml:"allow_groups"`
	UserLimits  int  `yaml:"user_limits"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type JMConfig struct {
	Log      bool   `yaml:"log"`
	Proxy    string `yaml:"proxy"`
	Threads  int    `yaml:"threads"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads the config file, seeding it from the example file when it
// does not exist yet.
func Load(path, examplePath string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		raw, readErr := os.ReadFile(examplePath)
		if readErr != nil {
			return nil, fmt.Errorf("missing %s and unreadable %s: %w", path, examplePath, readErr)
		}
		if writeErr := os.WriteFile(path, raw, 0o644); writeErr != nil {
			return nil, writeErr
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	fillDefaults(cfg)
	return cfg, nil
}

func fillDefaults(cfg *Config) {
	if cfg.HTTPHost == "" {
		cfg.HTTPHost = "0.0.0.0"
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8071
	}
	if cfg.WebsocketURL == "" {
		cfg.WebsocketURL = "ws://127.0.0.1:13001"
	}
	if cfg.DataFile == "" {
		cfg.DataFile = "./data/jmcomic_data.json"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "./cache/"
	}
	if strings.TrimSpace(cfg.CardNickname) == "" {
		cfg.CardNickname = "jm助手"
	}
	if cfg.CardUserID == 0 {
		if len(cfg.Superusers) > 0 {
			cfg.CardUserID = cfg.Superusers[0]
		} else {
			cfg.CardUserID = 10000
		}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.JM.Proxy == "" {
		cfg.JM.Proxy = "system"
	}
	if cfg.JM.Threads <= 0 {
		cfg.JM.Threads = 10
	}
	if cfg.UserLimits <= 0 {
		cfg.UserLimits = 5
	}
}

// IsSuperuser reports whether the user is a configured superuser.
func (c *Config) IsSuperuser(userID int64) bool {
	for _, id := range c.Superusers {
		if id == userID {
			return true
		}
	}
	return false
}
