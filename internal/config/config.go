package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for assistbot. It is loaded once at
// startup and injected into the adapters; nothing mutates it afterwards.
type Config struct {
	General  GeneralConfig  `json:"general" yaml:"general"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Channels ChannelsConfig `json:"channels" yaml:"channels"`
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	Search   SearchConfig   `json:"search" yaml:"search"`
}

type GeneralConfig struct {
	LogLevel    string `json:"logLevel" yaml:"logLevel"`
	UploadsDir  string `json:"uploadsDir" yaml:"uploadsDir"`
	MaxUploadMB int64  `json:"maxUploadMb" yaml:"maxUploadMb"`
	PersonaPath string `json:"personaPath,omitempty" yaml:"personaPath,omitempty"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath" yaml:"dbPath"`
}

type ChannelsConfig struct {
	Web WebConfig `json:"web" yaml:"web"`
	Bot BotConfig `json:"bot" yaml:"bot"`
}

type WebConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Host        string   `json:"host" yaml:"host"`
	Port        int      `json:"port" yaml:"port"`
	CORSOrigins []string `json:"corsOrigins,omitempty" yaml:"corsOrigins,omitempty"`
}

// BotConfig holds the single resolved bot access token. Both the poller and
// outbound sends read this one value.
type BotConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Token     string   `json:"token" yaml:"token"`
	AllowFrom []string `json:"allowFrom,omitempty" yaml:"allowFrom,omitempty"`
}

type ProviderConfig struct {
	APIBase     string `json:"apiBase" yaml:"apiBase"`
	APIKey      string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	ChatModel   string `json:"chatModel" yaml:"chatModel"`
	VisionModel string `json:"visionModel" yaml:"visionModel"`
}

type SearchConfig struct {
	Endpoint        string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	BrowserFallback bool   `json:"browserFallback" yaml:"browserFallback"`
}

func DefaultConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".assistbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads a config file; .yaml/.yml files are parsed as YAML, anything
// else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Defaults()
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as indented JSON.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func Validate(cfg *Config) error {
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logLevel %q", cfg.General.LogLevel)
	}
	if cfg.General.MaxUploadMB <= 0 {
		return fmt.Errorf("maxUploadMb must be positive, got %d", cfg.General.MaxUploadMB)
	}
	if cfg.Store.DBPath == "" {
		return fmt.Errorf("store.dbPath is required")
	}
	if cfg.Channels.Web.Enabled {
		if cfg.Channels.Web.Port < 1 || cfg.Channels.Web.Port > 65535 {
			return fmt.Errorf("invalid web port %d", cfg.Channels.Web.Port)
		}
	}
	if cfg.Channels.Bot.Enabled && cfg.Channels.Bot.Token == "" {
		return fmt.Errorf("channels.bot.token is required when the bot channel is enabled")
	}
	return nil
}
